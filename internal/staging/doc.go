// Package staging owns the per-job working directories. A job writes its
// segments, manifest and intermediate renders into a hidden directory next to
// its output, named .klyppr-<job id prefix>-<random>, and removes it when the
// job ends. Directories left by a process that died mid-job are found and
// removed by CleanStale.
package staging
