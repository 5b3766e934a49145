// Package profile stores per-user delivery settings.
package profile

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/gofrs/uuid/v5"

	"github.com/careline/chatvault/internal/errs"
)

// record is the versioned on-disk shape of a user profile. Legacy files
// carrying only counselor_email still decode.
type record struct {
	RecipientEmail string `json:"counselor_email"`
}

// Store persists one small JSON profile per user.
type Store struct {
	dir string
	mu  sync.Mutex
}

// NewStore constructs a Store rooted at dir.
func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

// SetRecipient registers the delivery address for a user's exports.
func (s *Store) SetRecipient(userID int64, email string) error {
	if email == "" {
		return fmt.Errorf("validation: empty recipient")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, err := s.load(userID)
	if err != nil && !errors.Is(err, errs.ErrNotFound) {
		return err
	}
	rec.RecipientEmail = email
	return s.save(userID, rec)
}

// Recipient returns the registered delivery address, or ErrNotFound when
// none is set. A corrupt profile file reads as not-found, never a crash.
func (s *Store) Recipient(userID int64) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, err := s.load(userID)
	if err != nil {
		return "", err
	}
	if rec.RecipientEmail == "" {
		return "", errs.ErrNotFound
	}
	return rec.RecipientEmail, nil
}

func (s *Store) path(userID int64) string {
	return filepath.Join(s.dir, strconv.FormatInt(userID, 10)+"_config.json")
}

func (s *Store) load(userID int64) (record, error) {
	b, err := os.ReadFile(s.path(userID))
	if errors.Is(err, fs.ErrNotExist) {
		return record{}, errs.ErrNotFound
	}
	if err != nil {
		return record{}, fmt.Errorf("%w: read profile: %v", errs.ErrStorage, err)
	}
	var rec record
	if err := json.Unmarshal(b, &rec); err != nil {
		return record{}, errs.ErrNotFound
	}
	return rec, nil
}

func (s *Store) save(userID int64, rec record) error {
	if err := os.MkdirAll(s.dir, 0o700); err != nil {
		return fmt.Errorf("%w: create profile dir: %v", errs.ErrStorage, err)
	}
	b, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("encode profile: %w", err)
	}
	tmp := s.path(userID) + ".tmp." + uuid.Must(uuid.NewV4()).String()
	if err := os.WriteFile(tmp, b, 0o600); err != nil {
		return fmt.Errorf("%w: write profile: %v", errs.ErrStorage, err)
	}
	if err := os.Rename(tmp, s.path(userID)); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("%w: replace profile: %v", errs.ErrStorage, err)
	}
	return nil
}
