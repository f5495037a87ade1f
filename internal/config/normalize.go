package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

func (c *Config) normalize() error {
	c.applyEnv()
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeFFmpeg()
	c.normalizeWorkflow()
	c.normalizeLogging()
	return nil
}

// applyEnv lets the environment (including .env) override file values.
func (c *Config) applyEnv() {
	overrides := []struct {
		key    string
		target *string
	}{
		{"KLYPPR_FFMPEG", &c.FFmpeg.FFmpegBinary},
		{"KLYPPR_FFPROBE", &c.FFmpeg.FFprobeBinary},
		{"KLYPPR_OUTPUT_DIR", &c.Paths.OutputDir},
		{"KLYPPR_MUSIC_DIR", &c.Paths.MusicDir},
		{"KLYPPR_LOG_LEVEL", &c.Logging.Level},
	}
	for _, override := range overrides {
		if value, ok := os.LookupEnv(override.key); ok && strings.TrimSpace(value) != "" {
			*override.target = strings.TrimSpace(value)
		}
	}
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.MusicDir) == "" {
		c.Paths.MusicDir = defaultMusicDir
	}
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		c.Paths.StateDir = defaultStateDir
	}
	if c.Paths.OutputDir, err = expandPath(c.Paths.OutputDir); err != nil {
		return fmt.Errorf("paths.output_dir: %w", err)
	}
	if c.Paths.MusicDir, err = expandPath(c.Paths.MusicDir); err != nil {
		return fmt.Errorf("paths.music_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.MusicLibrary) == "" {
		c.Paths.MusicLibrary = filepath.Join(c.Paths.MusicDir, "library.json")
	}
	if c.Paths.MusicLibrary, err = expandPath(c.Paths.MusicLibrary); err != nil {
		return fmt.Errorf("paths.music_library: %w", err)
	}
	if c.Paths.StateDir, err = expandPath(c.Paths.StateDir); err != nil {
		return fmt.Errorf("paths.state_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeFFmpeg() {
	c.FFmpeg.FFmpegBinary = strings.TrimSpace(c.FFmpeg.FFmpegBinary)
	if c.FFmpeg.FFmpegBinary == "" {
		c.FFmpeg.FFmpegBinary = defaultFFmpegBinary
	}
	c.FFmpeg.FFprobeBinary = strings.TrimSpace(c.FFmpeg.FFprobeBinary)
	if c.FFmpeg.FFprobeBinary == "" {
		c.FFmpeg.FFprobeBinary = defaultFFprobeBinary
	}
}

func (c *Config) normalizeWorkflow() {
	if c.Workflow.ExtractBatchSize <= 0 {
		c.Workflow.ExtractBatchSize = defaultExtractBatchSize
	}
	if c.Workflow.WatchSettleSeconds <= 0 {
		c.Workflow.WatchSettleSeconds = defaultWatchSettleSeconds
	}
	if c.Music.CrossfadeSeconds <= 0 {
		c.Music.CrossfadeSeconds = defaultCrossfadeSeconds
	}
}

func (c *Config) normalizeLogging() {
	format := strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if format == "" {
		format = defaultLogFormat
	}
	c.Logging.Format = format

	level := strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if level == "" {
		level = defaultLogLevel
	}
	c.Logging.Level = level
}
