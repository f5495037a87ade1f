package staging

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"klyppr/internal/logging"
)

// Prefix starts the name of every job directory.
const Prefix = ".klyppr-"

const idPrefixLen = 8

// Create makes a fresh job directory for jobID under parent.
func Create(parent, jobID string) (string, error) {
	dir, err := os.MkdirTemp(parent, Prefix+shortID(jobID)+"-")
	if err != nil {
		return "", fmt.Errorf("create job directory: %w", err)
	}
	return dir, nil
}

// JobIDPrefix returns the job ID prefix encoded in a job directory name.
func JobIDPrefix(name string) (string, bool) {
	rest, ok := strings.CutPrefix(name, Prefix)
	if !ok {
		return "", false
	}
	id, _, ok := strings.Cut(rest, "-")
	if !ok || id == "" {
		return "", false
	}
	return id, true
}

// Dir describes one job directory found on disk.
type Dir struct {
	Name    string
	Path    string
	JobID   string
	ModTime time.Time
	Size    int64
}

// List returns the job directories directly under parent. A missing parent
// yields no directories.
func List(parent string) ([]Dir, error) {
	parent = strings.TrimSpace(parent)
	if parent == "" {
		return nil, nil
	}
	entries, err := os.ReadDir(parent)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read %s: %w", parent, err)
	}
	var dirs []Dir
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		id, ok := JobIDPrefix(entry.Name())
		if !ok {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		path := filepath.Join(parent, entry.Name())
		dirs = append(dirs, Dir{
			Name:    entry.Name(),
			Path:    path,
			JobID:   id,
			ModTime: info.ModTime(),
			Size:    dirSize(path),
		})
	}
	return dirs, nil
}

// CleanupError pairs a directory with the error that kept it on disk.
type CleanupError struct {
	Path  string
	Error error
}

// CleanResult is the outcome of CleanStale.
type CleanResult struct {
	Removed []string
	Errors  []CleanupError
}

// CleanStale removes job directories under parent that were last modified
// before maxAge ago. Directories whose job ID prefix is in active are kept.
func CleanStale(ctx context.Context, parent string, maxAge time.Duration, active map[string]bool, logger *slog.Logger) CleanResult {
	if logger == nil {
		logger = logging.NewNop()
	}
	var result CleanResult
	dirs, err := List(parent)
	if err != nil {
		result.Errors = append(result.Errors, CleanupError{Path: parent, Error: err})
		return result
	}
	cutoff := time.Now().Add(-maxAge)
	for _, dir := range dirs {
		if ctx.Err() != nil {
			break
		}
		if active[dir.JobID] || !dir.ModTime.Before(cutoff) {
			continue
		}
		if err := os.RemoveAll(dir.Path); err != nil {
			result.Errors = append(result.Errors, CleanupError{Path: dir.Path, Error: err})
			logger.Warn("failed to remove stale job directory",
				logging.String("path", dir.Path),
				logging.Error(err),
				logging.String(logging.FieldEventType, "staging_cleanup_failed"),
				logging.String(logging.FieldErrorHint, "check output directory permissions"),
				logging.String(logging.FieldImpact, "disk space not reclaimed"),
			)
			continue
		}
		result.Removed = append(result.Removed, dir.Path)
		logger.Info("removed stale job directory",
			logging.String("path", dir.Path),
			logging.Duration("age", time.Since(dir.ModTime)),
			logging.String(logging.FieldEventType, "staging_cleanup"),
		)
	}
	return result
}

func shortID(id string) string {
	if len(id) > idPrefixLen {
		return id[:idPrefixLen]
	}
	return id
}

func dirSize(path string) int64 {
	var size int64
	_ = filepath.WalkDir(path, func(_ string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if info, err := d.Info(); err == nil && !d.IsDir() {
			size += info.Size()
		}
		return nil
	})
	return size
}
