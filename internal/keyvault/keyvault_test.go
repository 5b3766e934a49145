package keyvault

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/careline/chatvault/internal/errs"
)

func TestGetOrCreateKey_PersistsAcrossCalls(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	v := New(filepath.Join(dir, "user_keys"), []byte("master"))

	k1, err := v.GetOrCreateKey(7)
	if err != nil {
		t.Fatalf("first call: %v", err)
	}
	if len(k1) != 32 {
		t.Fatalf("key length = %d", len(k1))
	}

	k2, err := v.GetOrCreateKey(7)
	if err != nil {
		t.Fatalf("second call: %v", err)
	}
	if !bytes.Equal(k1, k2) {
		t.Fatalf("key changed between calls")
	}

	// A fresh vault over the same directory reads the same key back.
	again, err := New(filepath.Join(dir, "user_keys"), []byte("master")).GetOrCreateKey(7)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if !bytes.Equal(k1, again) {
		t.Fatalf("key changed across restarts")
	}

	other, err := v.GetOrCreateKey(8)
	if err != nil {
		t.Fatalf("other user: %v", err)
	}
	if bytes.Equal(k1, other) {
		t.Fatalf("two users share a key")
	}
}

func TestGetOrCreateKey_CreateRaceIsIdempotent(t *testing.T) {
	t.Parallel()
	v := New(filepath.Join(t.TempDir(), "keys"), []byte("master"))

	const workers = 16
	keys := make([][]byte, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			k, err := v.GetOrCreateKey(99)
			if err != nil {
				t.Errorf("worker %d: %v", i, err)
				return
			}
			keys[i] = k
		}(i)
	}
	wg.Wait()

	for i := 1; i < workers; i++ {
		if !bytes.Equal(keys[0], keys[i]) {
			t.Fatalf("workers observed divergent keys")
		}
	}
}

func TestGetOrCreateKey_UnwritableStore(t *testing.T) {
	t.Parallel()
	blocker := filepath.Join(t.TempDir(), "not-a-dir")
	if err := os.WriteFile(blocker, []byte("x"), 0o600); err != nil {
		t.Fatalf("setup: %v", err)
	}

	v := New(filepath.Join(blocker, "keys"), []byte("master"))
	if _, err := v.GetOrCreateKey(1); !errors.Is(err, errs.ErrStorage) {
		t.Fatalf("want ErrStorage, got %v", err)
	}
}

func TestGetOrCreateKey_RejectsTruncatedKeyFile(t *testing.T) {
	t.Parallel()
	dir := filepath.Join(t.TempDir(), "keys")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		t.Fatalf("setup: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "5.key"), []byte("short"), 0o600); err != nil {
		t.Fatalf("setup: %v", err)
	}

	v := New(dir, []byte("master"))
	if _, err := v.GetOrCreateKey(5); !errors.Is(err, errs.ErrStorage) {
		t.Fatalf("want ErrStorage on truncated key, got %v", err)
	}
}
