package testsupport

import (
	"path/filepath"
	"testing"

	"klyppr/internal/config"
)

// ConfigOption adjusts a config built by NewConfig. base is the per-test
// temp root that also contains every configured directory.
type ConfigOption func(t testing.TB, base string, cfg *config.Config)

// NewConfig returns the default config with every path rooted in a fresh
// temp directory, then applies opts in order.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths = config.Paths{
		OutputDir:    filepath.Join(base, "output"),
		MusicDir:     filepath.Join(base, "music"),
		MusicLibrary: filepath.Join(base, "music", "library.json"),
		StateDir:     filepath.Join(base, "state"),
		LogDir:       filepath.Join(base, "logs"),
	}
	for _, opt := range opts {
		opt(t, base, &cfg)
	}
	return &cfg
}

// WithStubbedBinaries points the ffmpeg and ffprobe settings at scripts that
// print a version banner and exit cleanly.
func WithStubbedBinaries() ConfigOption {
	return func(t testing.TB, base string, cfg *config.Config) {
		bin := filepath.Join(base, "bin")
		for name, target := range map[string]*string{
			"ffmpeg":  &cfg.FFmpeg.FFmpegBinary,
			"ffprobe": &cfg.FFmpeg.FFprobeBinary,
		} {
			path := filepath.Join(bin, name)
			WriteScript(t, path, "echo '"+name+" version 7.1-stub'")
			*target = path
		}
	}
}

// BaseDir returns the temp root behind a config built by NewConfig.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.StateDir)
}
