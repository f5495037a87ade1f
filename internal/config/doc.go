// Package config loads, normalizes, and validates klyppr configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, overlays a .env file, and honours environment
// overrides such as KLYPPR_FFMPEG. The Config type centralizes every knob the
// pipeline and CLI need so silence thresholds, music locations and engine
// binaries are discovered in one pass.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
