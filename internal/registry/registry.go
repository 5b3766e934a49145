// Package registry is the durable token -> export-link store behind
// single-use download links.
package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sync"

	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"

	"github.com/careline/chatvault/internal/errs"
	"github.com/careline/chatvault/internal/model"
)

// Registry serializes all access to a single shared JSON file through its own
// mutex; callers never see or manage the lock. Update holds the lock across
// the whole read-modify-write cycle, so concurrent redemption attempts on the
// same token cannot lose attempt or download increments. There is no
// optimistic conflict detection: last writer wins.
type Registry struct {
	path string
	log  *zap.Logger

	mu sync.Mutex
}

// New constructs a Registry persisting to path.
func New(path string, log *zap.Logger) *Registry {
	return &Registry{path: path, log: log}
}

// Create registers a new export link keyed by its token. Tokens are unique;
// re-registering an existing token is an error.
func (r *Registry) Create(ctx context.Context, entry *model.ExportLink) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	reg, err := r.load()
	if err != nil {
		return err
	}
	if _, exists := reg[entry.Token]; exists {
		return fmt.Errorf("token already registered")
	}
	reg[entry.Token] = entry
	return r.save(reg)
}

// Get returns a copy of the entry for token, or ErrNotFound.
func (r *Registry) Get(ctx context.Context, tok string) (*model.ExportLink, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	reg, err := r.load()
	if err != nil {
		return nil, err
	}
	e, ok := reg[tok]
	if !ok {
		return nil, errs.ErrNotFound
	}
	cpy := *e
	return &cpy, nil
}

// Update applies fn to the entry under the registry lock and persists the
// result. fn returning an error aborts the write; sentinel errors from fn
// pass through unwrapped so callers can map them. The mutated entry is
// returned even when fn fails, so callers can report state such as
// attempts-left after a recorded failure.
func (r *Registry) Update(ctx context.Context, tok string, fn func(*model.ExportLink) error) (*model.ExportLink, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	reg, err := r.load()
	if err != nil {
		return nil, err
	}
	e, ok := reg[tok]
	if !ok {
		return nil, errs.ErrNotFound
	}
	fnErr := fn(e)
	if err := r.save(reg); err != nil {
		return nil, err
	}
	cpy := *e
	return &cpy, fnErr
}

// Delete removes the entry for token. Missing entries are ErrNotFound.
func (r *Registry) Delete(ctx context.Context, tok string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	reg, err := r.load()
	if err != nil {
		return err
	}
	if _, ok := reg[tok]; !ok {
		return errs.ErrNotFound
	}
	delete(reg, tok)
	return r.save(reg)
}

// DeleteAndPurgeArtifact removes the entry and best-effort deletes the
// referenced artifact file. Artifact removal failure is logged but does not
// fail the registry mutation.
func (r *Registry) DeleteAndPurgeArtifact(ctx context.Context, tok string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	reg, err := r.load()
	if err != nil {
		return err
	}
	e, ok := reg[tok]
	if !ok {
		return errs.ErrNotFound
	}
	if err := os.Remove(e.ArtifactPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
		r.log.Error("failed to remove artifact on purge",
			zap.String("artifact", e.ArtifactPath),
			zap.Error(err),
		)
	}
	delete(reg, tok)
	return r.save(reg)
}

// FindByRevokeID returns the first entry matching (userID, revokeID).
// Linear scan: fine at expected scale, a scaling limit rather than a
// correctness one.
func (r *Registry) FindByRevokeID(ctx context.Context, userID int64, revokeID string) (*model.ExportLink, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	reg, err := r.load()
	if err != nil {
		return nil, err
	}
	for _, e := range reg {
		if e.UserID == userID && e.RevokeID == revokeID {
			cpy := *e
			return &cpy, nil
		}
	}
	return nil, errs.ErrNotFound
}

// RevokeIDTaken reports whether any of the user's links already carries the
// given revoke ID.
func (r *Registry) RevokeIDTaken(ctx context.Context, userID int64, revokeID string) (bool, error) {
	_, err := r.FindByRevokeID(ctx, userID, revokeID)
	if errors.Is(err, errs.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// load reads the whole registry file. Callers must hold r.mu.
func (r *Registry) load() (map[string]*model.ExportLink, error) {
	b, err := os.ReadFile(r.path)
	if errors.Is(err, fs.ErrNotExist) {
		return map[string]*model.ExportLink{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: read registry: %v", errs.ErrStorage, err)
	}
	reg := map[string]*model.ExportLink{}
	if err := json.Unmarshal(b, &reg); err != nil {
		return nil, fmt.Errorf("%w: decode registry: %v", errs.ErrStorage, err)
	}
	for tok, e := range reg {
		e.Token = tok
	}
	return reg, nil
}

// save rewrites the registry wholesale through a temp file and atomic rename.
// A failed rename leaves the previous file intact; the error is surfaced so
// a dropped registration is never silent. Callers must hold r.mu.
func (r *Registry) save(reg map[string]*model.ExportLink) error {
	b, err := json.MarshalIndent(reg, "", "  ")
	if err != nil {
		return fmt.Errorf("encode registry: %w", err)
	}
	tmp := r.path + ".tmp." + uuid.Must(uuid.NewV4()).String()
	if err := os.WriteFile(tmp, b, 0o600); err != nil {
		return fmt.Errorf("%w: write registry: %v", errs.ErrStorage, err)
	}
	if err := os.Rename(tmp, r.path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("%w: replace registry: %v", errs.ErrStorage, err)
	}
	return nil
}
