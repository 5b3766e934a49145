package profile

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/careline/chatvault/internal/errs"
)

func TestSetAndGetRecipient(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	s := NewStore(dir)

	if err := s.SetRecipient(7, "counselor@example.com"); err != nil {
		t.Fatalf("SetRecipient: %v", err)
	}

	got, err := s.Recipient(7)
	if err != nil {
		t.Fatalf("Recipient: %v", err)
	}
	if got != "counselor@example.com" {
		t.Fatalf("got %q", got)
	}

	// Overwrite sticks, including across a reopen.
	if err := s.SetRecipient(7, "other@example.com"); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	got, err = NewStore(dir).Recipient(7)
	if err != nil {
		t.Fatalf("reopen Recipient: %v", err)
	}
	if got != "other@example.com" {
		t.Fatalf("got %q after overwrite", got)
	}
}

func TestRecipient_NotSet(t *testing.T) {
	t.Parallel()
	s := NewStore(t.TempDir())
	if _, err := s.Recipient(7); !errors.Is(err, errs.ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
}

func TestSetRecipient_RejectsEmpty(t *testing.T) {
	t.Parallel()
	s := NewStore(t.TempDir())
	if err := s.SetRecipient(7, ""); err == nil {
		t.Fatalf("empty recipient accepted")
	}
}

func TestRecipient_CorruptFileReadsAsNotFound(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "7_config.json"), []byte("{broken"), 0o600); err != nil {
		t.Fatalf("setup: %v", err)
	}

	s := NewStore(dir)
	if _, err := s.Recipient(7); !errors.Is(err, errs.ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}

	// Setting a recipient repairs the profile in place.
	if err := s.SetRecipient(7, "counselor@example.com"); err != nil {
		t.Fatalf("SetRecipient over corrupt file: %v", err)
	}
	if got, err := s.Recipient(7); err != nil || got != "counselor@example.com" {
		t.Fatalf("after repair: %q, %v", got, err)
	}
}
