package main

import (
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"klyppr/internal/music"
)

const (
	minVolumeDB = -60.0
	maxVolumeDB = 12.0
)

func newMusicCommand(ctx *commandContext) *cobra.Command {
	musicCmd := &cobra.Command{
		Use:   "music",
		Short: "Manage the background music library",
	}

	musicCmd.AddCommand(newMusicListCommand(ctx))
	musicCmd.AddCommand(newMusicAddCommand(ctx))
	musicCmd.AddCommand(newMusicRemoveCommand(ctx))
	musicCmd.AddCommand(newMusicSelectCommand(ctx))
	musicCmd.AddCommand(newMusicModeCommand(ctx))
	musicCmd.AddCommand(newMusicVolumeCommand(ctx))
	musicCmd.AddCommand(newMusicToggleCommand(ctx, "enable", true))
	musicCmd.AddCommand(newMusicToggleCommand(ctx, "disable", false))
	musicCmd.AddCommand(newMusicSyncCommand(ctx))

	return musicCmd
}

func newMusicListCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tracks and music settings",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := ctx.library()
			if err != nil {
				return err
			}
			lib, err := store.Load()
			if err != nil {
				return err
			}
			if jsonOutput {
				return printJSON(cmd.OutOrStdout(), lib)
			}
			printLibrary(cmd.OutOrStdout(), lib)
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print the library as JSON")
	return cmd
}

func printLibrary(out io.Writer, lib *music.Library) {
	settings := lib.Settings
	fmt.Fprintf(out, "Music: %s  Mode: %s  Volume: %s dB\n",
		enabledLabel(settings.Enabled), settings.Mode, formatDB(settings.VolumeDB))
	if len(lib.Tracks) == 0 {
		fmt.Fprintln(out, "No tracks in the library. Add one with `klyppr music add <file>`.")
		return
	}
	rows := make([][]string, 0, len(lib.Tracks))
	for _, track := range lib.Tracks {
		order := ""
		if idx := slices.Index(settings.SelectedTrackIDs, track.ID); idx >= 0 {
			order = strconv.Itoa(idx + 1)
		}
		rows = append(rows, []string{
			shortID(track.ID),
			track.Name,
			formatClock(track.DurationSeconds),
			string(track.Origin),
			order,
		})
	}
	fmt.Fprintln(out, renderTable([]column{
		leftColumn("ID"),
		leftColumn("Name"),
		rightColumn("Duration"),
		leftColumn("Source"),
		rightColumn("Selected"),
	}, rows))
}

func newMusicAddCommand(ctx *commandContext) *cobra.Command {
	var selectAdded bool
	cmd := &cobra.Command{
		Use:   "add <file>...",
		Short: "Copy audio files into the user music library",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := ctx.library()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			var added []string
			for _, path := range args {
				track, err := store.AddUserTrack(cmd.Context(), path)
				if err != nil {
					return fmt.Errorf("add %s: %w", path, err)
				}
				added = append(added, track.ID)
				fmt.Fprintf(out, "Added %s (%s, %s)\n", track.Name, shortID(track.ID), formatClock(track.DurationSeconds))
			}
			if !selectAdded {
				return nil
			}
			_, err = store.UpdateSettings(func(lib *music.Library) error {
				for _, id := range added {
					if !slices.Contains(lib.Settings.SelectedTrackIDs, id) {
						lib.Settings.SelectedTrackIDs = append(lib.Settings.SelectedTrackIDs, id)
					}
				}
				return nil
			})
			return err
		},
	}
	cmd.Flags().BoolVar(&selectAdded, "select", false, "Append the added tracks to the selection")
	return cmd
}

func newMusicRemoveCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <id|name>",
		Short: "Remove a track from the library",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := ctx.library()
			if err != nil {
				return err
			}
			track, err := store.RemoveTrack(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %s\n", track.Name)
			return nil
		},
	}
}

func newMusicSelectCommand(ctx *commandContext) *cobra.Command {
	var appendMode bool
	var clearSelection bool
	cmd := &cobra.Command{
		Use:   "select [id|name]...",
		Short: "Choose the tracks used for background music, in order",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !clearSelection && len(args) == 0 {
				return fmt.Errorf("name at least one track, or pass --clear")
			}
			store, err := ctx.library()
			if err != nil {
				return err
			}
			lib, err := store.UpdateSettings(func(lib *music.Library) error {
				selected := []string{}
				if appendMode && !clearSelection {
					selected = slices.Clone(lib.Settings.SelectedTrackIDs)
				}
				for _, ref := range args {
					track, err := lib.Find(ref)
					if err != nil {
						return err
					}
					if !slices.Contains(selected, track.ID) {
						selected = append(selected, track.ID)
					}
				}
				lib.Settings.SelectedTrackIDs = selected
				return nil
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d track(s) selected\n", len(lib.Settings.SelectedTrackIDs))
			return nil
		},
	}
	cmd.Flags().BoolVar(&appendMode, "append", false, "Add to the current selection instead of replacing it")
	cmd.Flags().BoolVar(&clearSelection, "clear", false, "Clear the selection")
	return cmd
}

func newMusicModeCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:       "mode <loop|sequence>",
		Short:     "Loop the first selected track or crossfade the selection in sequence",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{string(music.ModeLoop), string(music.ModeSequence)},
		RunE: func(cmd *cobra.Command, args []string) error {
			mode := music.Mode(strings.ToLower(strings.TrimSpace(args[0])))
			if mode != music.ModeLoop && mode != music.ModeSequence {
				return fmt.Errorf("unknown mode %q (want loop or sequence)", args[0])
			}
			store, err := ctx.library()
			if err != nil {
				return err
			}
			if _, err := store.UpdateSettings(func(lib *music.Library) error {
				lib.Settings.Mode = mode
				return nil
			}); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Music mode set to %s\n", mode)
			return nil
		},
	}
}

func newMusicVolumeCommand(ctx *commandContext) *cobra.Command {
	var reset bool
	cmd := &cobra.Command{
		Use:   "volume <dB>",
		Short: "Set the music gain in dB (use -- before negative values)",
		Example: `  klyppr music volume -- -18
  klyppr music volume --reset`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !reset && len(args) == 0 {
				return fmt.Errorf("provide a volume in dB or pass --reset")
			}
			var value float64
			if !reset {
				parsed, err := strconv.ParseFloat(strings.TrimSpace(strings.TrimSuffix(strings.ToLower(args[0]), "db")), 64)
				if err != nil {
					return fmt.Errorf("invalid volume %q", args[0])
				}
				if parsed < minVolumeDB || parsed > maxVolumeDB {
					return fmt.Errorf("volume %s dB is outside %s..%s dB", formatDB(parsed), formatDB(minVolumeDB), formatDB(maxVolumeDB))
				}
				value = parsed
			}
			store, err := ctx.library()
			if err != nil {
				return err
			}
			lib, err := store.UpdateSettings(func(lib *music.Library) error {
				if reset {
					lib.Settings.VolumeDB = lib.Settings.DefaultVolumeDB
				} else {
					lib.Settings.VolumeDB = value
				}
				return nil
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Music volume set to %s dB\n", formatDB(lib.Settings.VolumeDB))
			return nil
		},
	}
	cmd.Flags().BoolVar(&reset, "reset", false, "Restore the default volume")
	return cmd
}

func newMusicToggleCommand(ctx *commandContext, name string, enabled bool) *cobra.Command {
	return &cobra.Command{
		Use:   name,
		Short: strings.ToUpper(name[:1]) + name[1:] + " background music for new jobs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := ctx.library()
			if err != nil {
				return err
			}
			if _, err := store.UpdateSettings(func(lib *music.Library) error {
				lib.Settings.Enabled = enabled
				return nil
			}); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Background music %s\n", strings.ToLower(enabledLabel(enabled)))
			return nil
		},
	}
}

func newMusicSyncCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Register audio files placed in the bundled music folder",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := ctx.library()
			if err != nil {
				return err
			}
			added, err := store.SyncBundled(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d bundled track(s) added\n", added)
			return nil
		},
	}
}

func enabledLabel(enabled bool) string {
	if enabled {
		return "Enabled"
	}
	return "Disabled"
}

func formatDB(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func formatClock(seconds float64) string {
	if seconds <= 0 {
		return "-"
	}
	total := int(seconds + 0.5)
	h, m, s := total/3600, (total/60)%60, total%60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}
