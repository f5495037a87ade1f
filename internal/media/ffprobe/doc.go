// Package ffprobe provides a typed wrapper around ffprobe JSON output.
//
// Key types:
//   - Result: parsed ffprobe output containing streams and format metadata
//   - Stream: individual audio/video stream properties
//   - Format: container-level metadata (duration, size, bitrate)
//
// Primary entry points:
//   - Inspect: executes ffprobe and returns the parsed Result
//   - Decode: parses an ffprobe JSON payload that was captured elsewhere
//
// Helper methods on Result and Stream cover stream lookup, duration
// fallbacks and frame-rate rationals.
package ffprobe
