package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"klyppr/internal/jobs"
	"klyppr/internal/music"
	"klyppr/internal/preflight"
	"klyppr/internal/staging"
)

func newDoctorCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool
	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check ffmpeg, directories, the music library and job history",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			results := preflight.RunAll(cmd.Context(), cfg)
			musicLines, musicOK := musicHealth(ctx)

			if jsonOutput {
				type jsonCheck struct {
					Name   string `json:"name"`
					Passed bool   `json:"passed"`
					Detail string `json:"detail,omitempty"`
				}
				checks := make([]jsonCheck, 0, len(results)+len(musicLines))
				for _, r := range results {
					checks = append(checks, jsonCheck{Name: r.Name, Passed: r.Passed, Detail: r.Detail})
				}
				for _, line := range musicLines {
					checks = append(checks, jsonCheck{Name: line.label, Passed: line.kind != statusError, Detail: line.detail})
				}
				if err := printJSON(cmd.OutOrStdout(), checks); err != nil {
					return err
				}
			} else {
				out := cmd.OutOrStdout()
				colorize := isTerminal(out)
				for _, line := range renderSectionHeader("Engine & Paths", colorize) {
					fmt.Fprintln(out, line)
				}
				for _, r := range results {
					kind := statusOK
					if !r.Passed {
						kind = statusError
					}
					fmt.Fprintln(out, renderStatusLine(r.Name, kind, r.Detail, colorize))
				}
				fmt.Fprintln(out)
				for _, line := range renderSectionHeader("Music Library", colorize) {
					fmt.Fprintln(out, line)
				}
				for _, line := range musicLines {
					fmt.Fprintln(out, renderStatusLine(line.label, line.kind, line.detail, colorize))
				}
				fmt.Fprintln(out)
				for _, line := range renderSectionHeader("Job History", colorize) {
					fmt.Fprintln(out, line)
				}
				fmt.Fprintln(out, historyLine(cmd, ctx, colorize))
				fmt.Fprintln(out, workDirLine(workDirParents(cfg), colorize))
			}

			if failed, ok := preflight.FirstFailure(results); ok {
				return fmt.Errorf("%s: %s", failed.Name, failed.Detail)
			}
			if !musicOK {
				return fmt.Errorf("music library has problems")
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print checks as JSON")
	return cmd
}

type healthLine struct {
	label  string
	kind   statusKind
	detail string
}

// musicHealth reports the library state. Missing selected files are errors
// only while music is enabled, since a job would fall back to no music.
func musicHealth(ctx *commandContext) ([]healthLine, bool) {
	store, err := ctx.library()
	if err != nil {
		return []healthLine{{"Library", statusError, err.Error()}}, false
	}
	lib, err := store.Load()
	if err != nil {
		return []healthLine{{"Library", statusError, err.Error()}}, false
	}

	lines := []healthLine{
		{"Background music", statusInfo, enabledLabel(lib.Settings.Enabled)},
		{"Tracks", statusInfo, fmt.Sprintf("%d", len(lib.Tracks))},
		{"Mode", statusInfo, string(lib.Settings.Mode)},
		{"Volume", statusInfo, formatDB(lib.Settings.VolumeDB) + " dB"},
	}
	ok := true
	var missing []string
	for _, id := range lib.Settings.SelectedTrackIDs {
		track, found := lib.FindByID(id)
		if !found {
			continue
		}
		if _, err := os.Stat(store.TrackPath(track)); err != nil {
			missing = append(missing, track.Name)
		}
	}
	_, playlistErr := store.BuildPlaylist(lib, 1)
	switch {
	case len(missing) > 0:
		kind := statusWarn
		if lib.Settings.Enabled {
			kind, ok = statusError, false
		}
		lines = append(lines, healthLine{"Selection", kind, "missing files: " + strings.Join(missing, ", ")})
	case playlistErr != nil:
		kind := statusInfo
		if lib.Settings.Enabled {
			kind = statusWarn
		}
		lines = append(lines, healthLine{"Selection", kind, "no track selected"})
	default:
		lines = append(lines, healthLine{"Selection", statusOK, fmt.Sprintf("%d track(s)", len(lib.Settings.SelectedTrackIDs))})
	}
	if lib.Settings.Mode != music.ModeLoop && lib.Settings.Mode != music.ModeSequence {
		lines = append(lines, healthLine{"Mode", statusError, "unknown mode " + string(lib.Settings.Mode)})
		ok = false
	}
	return lines, ok
}

func historyLine(cmd *cobra.Command, ctx *commandContext, colorize bool) string {
	store, err := ctx.jobStore()
	if err != nil {
		return renderStatusLine("Database", statusError, err.Error(), colorize)
	}
	stats, err := store.Stats(cmd.Context())
	if err != nil {
		return renderStatusLine("Database", statusError, err.Error(), colorize)
	}
	parts := make([]string, 0, len(jobs.AllStatuses()))
	for _, status := range jobs.AllStatuses() {
		parts = append(parts, fmt.Sprintf("%d %s", stats[status], status))
	}
	return renderStatusLine("Jobs", statusOK, strings.Join(parts, ", "), colorize)
}

func workDirLine(parents []string, colorize bool) string {
	count := 0
	var size int64
	for _, parent := range parents {
		dirs, err := staging.List(parent)
		if err != nil {
			return renderStatusLine("Work directories", statusWarn, err.Error(), colorize)
		}
		for _, dir := range dirs {
			count++
			size += dir.Size
		}
	}
	if count == 0 {
		return renderStatusLine("Work directories", statusOK, "none left behind", colorize)
	}
	detail := fmt.Sprintf("%d found (%s); run `klyppr jobs reap` once no job is running", count, humanize.IBytes(uint64(size)))
	return renderStatusLine("Work directories", statusWarn, detail, colorize)
}
