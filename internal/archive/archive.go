// Package archive packages decrypted export artifacts into a single bundle.
// The secure-link core is agnostic to the bundle's internal format.
package archive

import (
	"archive/zip"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gofrs/uuid/v5"

	"github.com/careline/chatvault/internal/errs"
	"github.com/careline/chatvault/internal/model"
)

// BuildBundle writes a zip containing the decrypted transcript and, when
// non-empty, a summary text. The bundle name carries a random suffix so
// repeated exports of the same period never collide.
func BuildBundle(dir string, userID int64, period string, msgs []model.Message, summary string) (string, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("%w: create bundle dir: %v", errs.ErrStorage, err)
	}

	base := fmt.Sprintf("%d_%s_%s.zip",
		userID,
		strings.ReplaceAll(period, "~", "_to_"),
		uuid.Must(uuid.NewV4()).String()[:8],
	)
	path := filepath.Join(dir, base)

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return "", fmt.Errorf("%w: create bundle: %v", errs.ErrStorage, err)
	}

	discard := func() {
		_ = f.Close()
		_ = os.Remove(path)
	}

	zw := zip.NewWriter(f)
	if err := writeTranscript(zw, msgs); err != nil {
		_ = zw.Close()
		discard()
		return "", err
	}
	if summary != "" {
		if err := writeEntry(zw, "summary.txt", []byte(summary)); err != nil {
			_ = zw.Close()
			discard()
			return "", err
		}
	}

	if err := zw.Close(); err != nil {
		discard()
		return "", fmt.Errorf("finalize bundle: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(path)
		return "", fmt.Errorf("%w: close bundle: %v", errs.ErrStorage, err)
	}
	return path, nil
}

func writeTranscript(zw *zip.Writer, msgs []model.Message) error {
	b, err := json.MarshalIndent(msgs, "", "  ")
	if err != nil {
		return fmt.Errorf("encode transcript: %w", err)
	}
	return writeEntry(zw, "transcript.json", b)
}

func writeEntry(zw *zip.Writer, name string, data []byte) error {
	w, err := zw.Create(name)
	if err != nil {
		return fmt.Errorf("bundle entry %s: %w", name, err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("bundle entry %s: %w", name, err)
	}
	return nil
}
