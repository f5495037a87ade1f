package config

import (
	"errors"
	"fmt"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateSilence(); err != nil {
		return err
	}
	if err := c.validateWorkflow(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validatePaths() error {
	if c.Paths.OutputDir == "" {
		return errors.New("paths.output_dir must be set")
	}
	if c.Paths.MusicDir == "" {
		return errors.New("paths.music_dir must be set")
	}
	return nil
}

func (c *Config) validateSilence() error {
	if c.Silence.ThresholdDB >= 0 {
		return fmt.Errorf("silence.threshold_db must be negative, got %v", c.Silence.ThresholdDB)
	}
	if c.Silence.MinDuration <= 0 {
		return errors.New("silence.min_duration must be positive")
	}
	if c.Silence.Padding < 0 {
		return errors.New("silence.padding must not be negative")
	}
	return nil
}

func (c *Config) validateWorkflow() error {
	if c.Workflow.ExtractBatchSize > 32 {
		return fmt.Errorf("workflow.extract_batch_size must be at most 32, got %d", c.Workflow.ExtractBatchSize)
	}
	if c.Music.CrossfadeSeconds > 30 {
		return fmt.Errorf("music.crossfade_seconds must be at most 30, got %v", c.Music.CrossfadeSeconds)
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
	if c.Logging.MaxSizeMB < 0 || c.Logging.MaxBackups < 0 || c.Logging.MaxAgeDays < 0 {
		return errors.New("logging rotation limits must not be negative")
	}
	return nil
}
