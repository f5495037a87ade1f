package watch

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"testing"
	"time"
)

func TestAccepts(t *testing.T) {
	w := New(t.TempDir(), nil, WithSkipPrefixes("processed_"))
	cases := map[string]bool{
		"talk.mp4":           true,
		"Talk.MOV":           true,
		"notes.txt":          false,
		".klyppr-1234":       false,
		".partial.mp4":       false,
		"processed_talk.mp4": false,
	}
	for name, want := range cases {
		if got := w.Accepts(name); got != want {
			t.Fatalf("Accepts(%q) = %v, want %v", name, got, want)
		}
	}

	custom := New(t.TempDir(), nil, WithExtensions("MKV", ".webm"))
	if !custom.Accepts("a.mkv") || custom.Accepts("a.mp4") {
		t.Fatal("custom extensions not applied")
	}
}

func TestSettledWaitsForStableSize(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "clip.mp4")
	if err := os.WriteFile(path, []byte("partial"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	w := New(dir, nil, WithSettle(time.Second))
	pending := map[string]pendingFile{path: {size: -1}}

	start := time.Now()
	if ready := w.settled(pending, start); len(ready) != 0 {
		t.Fatalf("first observation must not be ready: %v", ready)
	}
	if ready := w.settled(pending, start.Add(500*time.Millisecond)); len(ready) != 0 {
		t.Fatalf("ready before settle window: %v", ready)
	}
	if ready := w.settled(pending, start.Add(1500*time.Millisecond)); len(ready) != 1 || ready[0] != path {
		t.Fatalf("expected %s ready, got %v", path, ready)
	}

	if err := os.Remove(path); err != nil {
		t.Fatalf("remove: %v", err)
	}
	w.settled(pending, start.Add(2*time.Second))
	if _, ok := pending[path]; ok {
		t.Fatal("removed file should leave the pending set")
	}
}

func TestSettledReturnsReadyFilesByName(t *testing.T) {
	dir := t.TempDir()
	var paths []string
	for _, name := range []string{"c.mp4", "a.mp4", "b.mp4"} {
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, []byte("data"), 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
		paths = append(paths, path)
	}
	w := New(dir, nil, WithSettle(time.Second))
	pending := make(map[string]pendingFile)
	for _, path := range paths {
		pending[path] = pendingFile{size: -1}
	}
	start := time.Now()
	w.settled(pending, start)
	ready := w.settled(pending, start.Add(2*time.Second))
	want := []string{filepath.Join(dir, "a.mp4"), filepath.Join(dir, "b.mp4"), filepath.Join(dir, "c.mp4")}
	if !slices.Equal(ready, want) {
		t.Fatalf("got %v, want %v", ready, want)
	}
}

func TestRunHandlesDroppedFile(t *testing.T) {
	dir := t.TempDir()
	handled := make(chan string, 4)
	w := New(dir, func(_ context.Context, path string) error {
		handled <- path
		return errors.New("handler errors are logged, not fatal")
	}, WithSettle(50*time.Millisecond), WithPollInterval(10*time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	// Give the watcher a moment to register the directory.
	time.Sleep(100 * time.Millisecond)
	target := filepath.Join(dir, "drop.mp4")
	if err := os.WriteFile(target, []byte("video bytes"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "ignore.txt"), []byte("x"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	select {
	case path := <-handled:
		if path != target {
			t.Fatalf("handled %q, want %q", path, target)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("dropped file was not handled")
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("watcher did not stop")
	}
	if len(handled) != 0 {
		t.Fatalf("unexpected extra handling: %d", len(handled))
	}
}

func TestRunQueuesExistingFiles(t *testing.T) {
	dir := t.TempDir()
	existing := filepath.Join(dir, "already.mp4")
	if err := os.WriteFile(existing, []byte("video"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	handled := make(chan string, 1)
	w := New(dir, func(_ context.Context, path string) error {
		handled <- path
		return nil
	}, WithExisting(true), WithSettle(20*time.Millisecond), WithPollInterval(10*time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = w.Run(ctx) }()

	select {
	case path := <-handled:
		if path != existing {
			t.Fatalf("handled %q", path)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("existing file was not handled")
	}
}

func TestRunRequiresHandler(t *testing.T) {
	if err := New(t.TempDir(), nil).Run(context.Background()); err == nil {
		t.Fatal("expected error without handler")
	}
}
