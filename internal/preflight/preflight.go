package preflight

import (
	"context"
	"fmt"
	"strings"

	"klyppr/internal/config"
	"klyppr/internal/deps"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes every check for cfg: engine binaries, configured
// directories and free space in the output directory.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}
	var results []Result
	for _, status := range deps.CheckEngine(ctx, cfg.FFmpeg.FFmpegBinary, cfg.FFmpeg.FFprobeBinary) {
		results = append(results, fromStatus(status))
	}
	results = append(results,
		CheckDirectoryAccess("Output directory", cfg.Paths.OutputDir),
		CheckDirectoryAccess("Music directory", cfg.Paths.MusicDir),
		CheckDirectoryAccess("State directory", cfg.Paths.StateDir),
		CheckFreeSpace("Output free space", cfg.Paths.OutputDir, 0),
	)
	return results
}

// ForJob checks the output directory of one job. expectedBytes is a rough
// size of what the job will write (segments plus the final file).
func ForJob(outputDir string, expectedBytes uint64) []Result {
	return []Result{
		CheckDirectoryAccess("Output directory", outputDir),
		CheckFreeSpace("Output free space", outputDir, expectedBytes),
	}
}

// FirstFailure returns the first failed result.
func FirstFailure(results []Result) (Result, bool) {
	for _, result := range results {
		if !result.Passed {
			return result, true
		}
	}
	return Result{}, false
}

func fromStatus(status deps.Status) Result {
	if !status.Available {
		return Result{Name: status.Name, Passed: !status.Blocking(), Detail: status.Detail}
	}
	detail := status.Path
	if status.Version != "" {
		detail = fmt.Sprintf("%s (version %s)", status.Path, status.Version)
	}
	if strings.TrimSpace(status.Detail) != "" {
		detail += " " + status.Detail
	}
	return Result{Name: status.Name, Passed: true, Detail: detail}
}
