package archive

import (
	"archive/zip"
	"encoding/json"
	"io"
	"path/filepath"
	"strings"
	"testing"

	"github.com/careline/chatvault/internal/model"
)

func testMessages() []model.Message {
	return []model.Message{
		{Role: model.RoleUser, Content: "hello", Timestamp: "2024-01-01T10:00:00Z"},
		{Role: model.RoleAssistant, Content: "hi there", Timestamp: "2024-01-01T10:00:05Z"},
	}
}

func readEntry(t *testing.T, zr *zip.ReadCloser, name string) []byte {
	t.Helper()
	for _, f := range zr.File {
		if f.Name != name {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			t.Fatalf("open %s: %v", name, err)
		}
		defer func() { _ = rc.Close() }()
		b, err := io.ReadAll(rc)
		if err != nil {
			t.Fatalf("read %s: %v", name, err)
		}
		return b
	}
	t.Fatalf("entry %s not found", name)
	return nil
}

func TestBuildBundle(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	path, err := BuildBundle(dir, 7, "2024-01-01~2024-01-07", testMessages(), "went well")
	if err != nil {
		t.Fatalf("BuildBundle: %v", err)
	}
	if filepath.Dir(path) != dir {
		t.Fatalf("bundle outside target dir: %q", path)
	}
	base := filepath.Base(path)
	if !strings.HasPrefix(base, "7_2024-01-01_to_2024-01-07_") || !strings.HasSuffix(base, ".zip") {
		t.Fatalf("bundle name: %q", base)
	}

	zr, err := zip.OpenReader(path)
	if err != nil {
		t.Fatalf("open bundle: %v", err)
	}
	defer func() { _ = zr.Close() }()

	if len(zr.File) != 2 {
		t.Fatalf("bundle has %d entries", len(zr.File))
	}

	var transcript []model.Message
	if err := json.Unmarshal(readEntry(t, zr, "transcript.json"), &transcript); err != nil {
		t.Fatalf("decode transcript: %v", err)
	}
	if len(transcript) != 2 || transcript[0].Content != "hello" {
		t.Fatalf("unexpected transcript: %+v", transcript)
	}

	if got := string(readEntry(t, zr, "summary.txt")); got != "went well" {
		t.Fatalf("summary: %q", got)
	}
}

func TestBuildBundle_NoSummary(t *testing.T) {
	t.Parallel()

	path, err := BuildBundle(t.TempDir(), 7, "2024-01-01~2024-01-07", testMessages(), "")
	if err != nil {
		t.Fatalf("BuildBundle: %v", err)
	}

	zr, err := zip.OpenReader(path)
	if err != nil {
		t.Fatalf("open bundle: %v", err)
	}
	defer func() { _ = zr.Close() }()

	if len(zr.File) != 1 || zr.File[0].Name != "transcript.json" {
		t.Fatalf("unexpected entries: %+v", zr.File)
	}
}

func TestBuildBundle_RepeatedExportsNeverCollide(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	a, err := BuildBundle(dir, 7, "2024-01-01~2024-01-07", testMessages(), "")
	if err != nil {
		t.Fatalf("first bundle: %v", err)
	}
	b, err := BuildBundle(dir, 7, "2024-01-01~2024-01-07", testMessages(), "")
	if err != nil {
		t.Fatalf("second bundle: %v", err)
	}
	if a == b {
		t.Fatalf("bundles collided: %q", a)
	}
}
