package staging

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"klyppr/internal/logging"
)

func TestCreateEncodesJobID(t *testing.T) {
	parent := t.TempDir()
	dir, err := Create(parent, "0123456789abcdef")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	name := filepath.Base(dir)
	if !strings.HasPrefix(name, ".klyppr-01234567-") {
		t.Fatalf("unexpected name %q", name)
	}
	if id, ok := JobIDPrefix(name); !ok || id != "01234567" {
		t.Fatalf("JobIDPrefix(%q) = %q, %v", name, id, ok)
	}
	for _, bad := range []string{"segments", ".klyppr-", ".klyppr-abc"} {
		if _, ok := JobIDPrefix(bad); ok {
			t.Fatalf("JobIDPrefix(%q) should not match", bad)
		}
	}
}

func TestListOnlyReturnsJobDirectories(t *testing.T) {
	parent := t.TempDir()
	dir, err := Create(parent, "aaaaaaaa-1")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "seg.mp4"), []byte("12345"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := os.Mkdir(filepath.Join(parent, "other"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(parent, ".klyppr-file-x"), nil, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	dirs, err := List(parent)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(dirs) != 1 || dirs[0].Path != dir || dirs[0].JobID != "aaaaaaaa" || dirs[0].Size != 5 {
		t.Fatalf("unexpected dirs %+v", dirs)
	}

	if dirs, err := List(filepath.Join(parent, "missing")); err != nil || dirs != nil {
		t.Fatalf("missing parent: %v %v", dirs, err)
	}
}

func TestCleanStaleRemovesOldInactiveDirectories(t *testing.T) {
	parent := t.TempDir()
	old, _ := Create(parent, "old00000")
	running, _ := Create(parent, "run00000")
	recent, _ := Create(parent, "new00000")
	past := time.Now().Add(-2 * time.Hour)
	for _, dir := range []string{old, running} {
		if err := os.Chtimes(dir, past, past); err != nil {
			t.Fatalf("chtimes: %v", err)
		}
	}

	result := CleanStale(context.Background(), parent, time.Hour, map[string]bool{"run00000": true}, logging.NewNop())
	if len(result.Errors) != 0 {
		t.Fatalf("unexpected errors %+v", result.Errors)
	}
	if len(result.Removed) != 1 || result.Removed[0] != old {
		t.Fatalf("expected only %s removed, got %v", old, result.Removed)
	}
	for _, dir := range []string{running, recent} {
		if _, err := os.Stat(dir); err != nil {
			t.Fatalf("%s should remain: %v", dir, err)
		}
	}
}

func TestCleanStaleEmptyParent(t *testing.T) {
	for _, parent := range []string{"", "  ", filepath.Join(t.TempDir(), "nope")} {
		result := CleanStale(context.Background(), parent, time.Hour, nil, nil)
		if len(result.Removed) != 0 || len(result.Errors) != 0 {
			t.Fatalf("expected empty result for %q, got %+v", parent, result)
		}
	}
}
