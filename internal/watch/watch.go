// Package watch processes videos dropped into a folder. A file is handed to
// the handler once its size has stopped changing for the settle window, and
// files are handled one at a time in the order they settle.
package watch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"klyppr/internal/logging"
)

// Handler processes one settled file. Errors are logged and do not stop the
// watch.
type Handler func(ctx context.Context, path string) error

// DefaultExtensions are the video containers picked up by default.
var DefaultExtensions = []string{".mp4", ".mov", ".mkv", ".m4v", ".webm", ".avi"}

const (
	defaultSettle = 5 * time.Second
	defaultPoll   = 500 * time.Millisecond
)

// Watcher turns filesystem events in one directory into handler calls.
type Watcher struct {
	dir        string
	handler    Handler
	settle     time.Duration
	poll       time.Duration
	extensions []string
	skip       []string
	logger     *slog.Logger
	existing   bool
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithSettle sets how long a file's size must hold still.
func WithSettle(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.settle = d
		}
	}
}

// WithPollInterval sets how often pending files are re-examined.
func WithPollInterval(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.poll = d
		}
	}
}

// WithExtensions replaces DefaultExtensions.
func WithExtensions(exts ...string) Option {
	return func(w *Watcher) {
		if len(exts) > 0 {
			w.extensions = normalizeExtensions(exts)
		}
	}
}

// WithSkipPrefixes ignores files whose names start with any prefix, such as
// the outputs of earlier runs written into the watched folder.
func WithSkipPrefixes(prefixes ...string) Option {
	return func(w *Watcher) {
		w.skip = append(w.skip, prefixes...)
	}
}

// WithExisting also queues files already present when the watch starts.
func WithExisting(enabled bool) Option {
	return func(w *Watcher) {
		w.existing = enabled
	}
}

// WithLogger attaches a logger.
func WithLogger(logger *slog.Logger) Option {
	return func(w *Watcher) {
		if logger != nil {
			w.logger = logger
		}
	}
}

// New constructs a watcher for dir.
func New(dir string, handler Handler, opts ...Option) *Watcher {
	w := &Watcher{
		dir:        dir,
		handler:    handler,
		settle:     defaultSettle,
		poll:       defaultPoll,
		extensions: normalizeExtensions(DefaultExtensions),
		logger:     logging.NewNop(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

type pendingFile struct {
	size    int64
	changed time.Time
}

// Run watches until ctx ends. It returns nil on cancellation.
func (w *Watcher) Run(ctx context.Context) error {
	if w.handler == nil {
		return errors.New("watch handler is required")
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create file watcher: %w", err)
	}
	defer fw.Close()
	if err := fw.Add(w.dir); err != nil {
		return fmt.Errorf("watch %s: %w", w.dir, err)
	}
	w.logger.Info("watching folder",
		logging.String("dir", w.dir),
		logging.Duration("settle", w.settle),
	)

	pending := make(map[string]pendingFile)
	handled := make(map[string]bool)
	if w.existing {
		entries, err := os.ReadDir(w.dir)
		if err != nil {
			return fmt.Errorf("read %s: %w", w.dir, err)
		}
		for _, entry := range entries {
			if !entry.IsDir() && w.Accepts(entry.Name()) {
				pending[filepath.Join(w.dir, entry.Name())] = pendingFile{size: -1, changed: time.Now()}
			}
		}
	}

	ticker := time.NewTicker(w.poll)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			name := filepath.Base(event.Name)
			if !w.Accepts(name) {
				continue
			}
			switch {
			case event.Op&(fsnotify.Create|fsnotify.Write) != 0:
				if handled[event.Name] && event.Op&fsnotify.Create == 0 {
					continue
				}
				delete(handled, event.Name)
				pending[event.Name] = pendingFile{size: -1, changed: time.Now()}
			case event.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
				delete(pending, event.Name)
				delete(handled, event.Name)
			}

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("file watcher error", logging.Error(err))

		case now := <-ticker.C:
			for _, path := range w.settled(pending, now) {
				delete(pending, path)
				handled[path] = true
				if ctx.Err() != nil {
					return nil
				}
				w.logger.Info("processing dropped file", logging.String("file", path))
				if err := w.handler(ctx, path); err != nil {
					w.logger.Error("dropped file failed",
						logging.String(logging.FieldEventType, "watch_job_failure"),
						logging.String("file", path),
						logging.Error(err),
					)
				}
			}
		}
	}
}

// settled updates pending sizes and returns, sorted by name, the files whose
// size has held for the settle window.
func (w *Watcher) settled(pending map[string]pendingFile, now time.Time) []string {
	var ready []string
	for path, state := range pending {
		info, err := os.Stat(path)
		if err != nil {
			delete(pending, path)
			continue
		}
		if info.Size() != state.size {
			pending[path] = pendingFile{size: info.Size(), changed: now}
			continue
		}
		if info.Size() > 0 && now.Sub(state.changed) >= w.settle {
			ready = append(ready, path)
		}
	}
	slices.Sort(ready)
	return ready
}

// Accepts reports whether a file name should be processed.
func (w *Watcher) Accepts(name string) bool {
	if strings.HasPrefix(name, ".") {
		return false
	}
	for _, prefix := range w.skip {
		if prefix != "" && strings.HasPrefix(name, prefix) {
			return false
		}
	}
	return slices.Contains(w.extensions, strings.ToLower(filepath.Ext(name)))
}

func normalizeExtensions(exts []string) []string {
	out := make([]string, 0, len(exts))
	for _, ext := range exts {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		out = append(out, ext)
	}
	return out
}
