package preflight

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"klyppr/internal/testsupport"
)

func TestCheckDirectoryAccess_OK(t *testing.T) {
	dir := t.TempDir()
	result := CheckDirectoryAccess("test", dir)
	if !result.Passed {
		t.Fatalf("expected pass for temp dir, got: %s", result.Detail)
	}
}

func TestCheckDirectoryAccess_NotExist(t *testing.T) {
	result := CheckDirectoryAccess("test", filepath.Join(t.TempDir(), "nope"))
	if result.Passed {
		t.Fatal("expected failure for missing dir")
	}
	if !strings.Contains(result.Detail, "does not exist") {
		t.Fatalf("unexpected detail %q", result.Detail)
	}
}

func TestCheckDirectoryAccess_NotDir(t *testing.T) {
	f := filepath.Join(t.TempDir(), "file.txt")
	if err := os.WriteFile(f, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	result := CheckDirectoryAccess("test", f)
	if result.Passed {
		t.Fatal("expected failure for file path")
	}
}

func TestCheckFreeSpace(t *testing.T) {
	dir := t.TempDir()
	free, err := FreeBytes(dir)
	if err != nil {
		t.Fatalf("FreeBytes: %v", err)
	}
	if free == 0 {
		t.Skip("temp filesystem reports no free space")
	}
	if result := CheckFreeSpace("space", dir, math.MaxUint64-MinFreeBytes); result.Passed {
		t.Fatalf("expected failure for impossible requirement, got %q", result.Detail)
	}
	if result := CheckFreeSpace("space", filepath.Join(dir, "missing"), 0); result.Passed {
		t.Fatal("expected failure for missing path")
	}
}

func TestForJobAndFirstFailure(t *testing.T) {
	results := ForJob(filepath.Join(t.TempDir(), "absent"), 0)
	failed, ok := FirstFailure(results)
	if !ok || failed.Name != "Output directory" {
		t.Fatalf("expected output directory failure, got %#v", results)
	}
	if _, ok := FirstFailure([]Result{{Name: "a", Passed: true}}); ok {
		t.Fatal("expected no failure")
	}
}

func TestRunAllReportsEngineBinaries(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithStubbedBinaries())
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}
	results := RunAll(context.Background(), cfg)
	names := make(map[string]Result, len(results))
	for _, result := range results {
		names[result.Name] = result
	}
	for _, name := range []string{"FFmpeg", "FFprobe", "Output directory", "Music directory", "State directory"} {
		result, ok := names[name]
		if !ok {
			t.Fatalf("missing result %q in %#v", name, results)
		}
		if !result.Passed {
			t.Fatalf("expected %s to pass, got %q", name, result.Detail)
		}
	}
}
