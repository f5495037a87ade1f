// Package services defines shared utilities consumed by the pipeline phases
// and the media engine wrappers.
//
// Key responsibilities:
//   - Context helpers that stamp job IDs and phase names for logging.
//   - Structured error markers plus the Wrap helper so callers can classify
//     failures with errors.Is and recover the phase that failed.
//
// Use these helpers when wiring new phase logic so error handling and
// observability stay uniform across the pipeline.
package services
