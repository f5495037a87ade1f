// Package logging assembles structured slog loggers and formatting helpers used
// across klyppr.
//
// It owns the configurable console/JSON handlers, rotates file output through
// lumberjack, and exposes context-aware helpers so phase code can tag log
// lines with job IDs and phase names. The package also provides a no-op
// logger for tests and a line handler that forwards formatted records to a
// job reporter.
package logging
