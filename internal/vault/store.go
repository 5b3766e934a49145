package vault

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"

	"github.com/gofrs/uuid/v5"

	"github.com/careline/chatvault/internal/errs"
	"github.com/careline/chatvault/internal/model"
)

// logStore persists one ordered JSON log file per user. Writes go through a
// temp file and an atomic rename, so a reader never observes a partial log.
type logStore struct {
	dir string
}

func (s *logStore) path(userID int64) string {
	return filepath.Join(s.dir, strconv.FormatInt(userID, 10)+".json")
}

func (s *logStore) load(userID int64) ([]model.StoredMessage, error) {
	b, err := os.ReadFile(s.path(userID))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: read log: %v", errs.ErrStorage, err)
	}
	var log []model.StoredMessage
	if err := json.Unmarshal(b, &log); err != nil {
		return nil, fmt.Errorf("%w: decode log: %v", errs.ErrStorage, err)
	}
	return log, nil
}

func (s *logStore) save(userID int64, log []model.StoredMessage) error {
	if err := os.MkdirAll(s.dir, 0o700); err != nil {
		return fmt.Errorf("%w: create data dir: %v", errs.ErrStorage, err)
	}
	b, err := json.MarshalIndent(log, "", "  ")
	if err != nil {
		return fmt.Errorf("encode log: %w", err)
	}

	tmp := s.path(userID) + ".tmp." + uuid.Must(uuid.NewV4()).String()
	if err := os.WriteFile(tmp, b, 0o600); err != nil {
		return fmt.Errorf("%w: write log: %v", errs.ErrStorage, err)
	}
	if err := os.Rename(tmp, s.path(userID)); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("%w: replace log: %v", errs.ErrStorage, err)
	}
	return nil
}
