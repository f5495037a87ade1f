// Package preflight provides readiness checks for the binaries and
// filesystem paths klyppr depends on.
//
// These checks run in two contexts:
//   - The pipeline calls ForJob before a job starts. A failed check stops the
//     job before any ffmpeg run is wasted on a doomed output directory.
//   - The CLI "klyppr doctor" command uses RunAll to display overall health.
package preflight
