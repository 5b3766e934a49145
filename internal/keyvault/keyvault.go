// Package keyvault derives and persists one long-lived symmetric key per user.
package keyvault

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"

	"github.com/gofrs/uuid/v5"

	"github.com/careline/chatvault/internal/crypto"
	"github.com/careline/chatvault/internal/errs"
)

// Vault owns per-user storage keys. Keys are derived once, written to a
// restricted key directory, and never rotated.
type Vault struct {
	dir    string
	master []byte
}

// New constructs a Vault rooted at dir. The directory is created with
// owner-only permissions on first use.
func New(dir string, master []byte) *Vault {
	return &Vault{dir: dir, master: master}
}

// GetOrCreateKey returns the user's persistent 32-byte key. The first call
// generates a random seed, derives the key, and persists it; later calls
// read the stored key unchanged. An unwritable store is a storage failure,
// never a silent fallback to an ephemeral key: that would make prior
// ciphertext unrecoverable without detection.
func (v *Vault) GetOrCreateKey(userID int64) ([]byte, error) {
	path := v.keyPath(userID)

	key, err := os.ReadFile(path)
	if err == nil {
		if len(key) != crypto.KeyLen {
			return nil, fmt.Errorf("%w: key file %s has %d bytes", errs.ErrStorage, path, len(key))
		}
		return key, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: read key: %v", errs.ErrStorage, err)
	}

	if err := os.MkdirAll(v.dir, 0o700); err != nil {
		return nil, fmt.Errorf("%w: create key dir: %v", errs.ErrStorage, err)
	}

	seed, err := crypto.RandBytes(crypto.KeyLen)
	if err != nil {
		return nil, fmt.Errorf("generate seed: %w", err)
	}
	key, err = crypto.DeriveUserKey(v.master, seed, userID)
	if err != nil {
		return nil, err
	}

	// Publish a fully written temp file through an exclusive hard link.
	// A concurrent first-use race stays idempotent: exactly one writer
	// wins, and a racing reader never observes a partial key file.
	tmp := path + ".tmp." + uuid.Must(uuid.NewV4()).String()
	if err := os.WriteFile(tmp, key, 0o600); err != nil {
		return nil, fmt.Errorf("%w: write key: %v", errs.ErrStorage, err)
	}
	err = os.Link(tmp, path)
	_ = os.Remove(tmp)
	if errors.Is(err, fs.ErrExist) {
		return v.GetOrCreateKey(userID)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: publish key: %v", errs.ErrStorage, err)
	}
	return key, nil
}

func (v *Vault) keyPath(userID int64) string {
	return filepath.Join(v.dir, strconv.FormatInt(userID, 10)+".key")
}
