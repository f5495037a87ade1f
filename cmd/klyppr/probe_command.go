package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"klyppr/internal/media"
)

func newProbeCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool
	cmd := &cobra.Command{
		Use:   "probe <file>",
		Short: "Show the streams and duration of a media file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			prober, err := ctx.prober()
			if err != nil {
				return err
			}
			info, err := prober.Probe(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if jsonOutput {
				return printJSON(cmd.OutOrStdout(), info)
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderProbeTable(info))
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print the probe result as JSON")
	return cmd
}

func renderProbeTable(info media.Info) string {
	rows := [][]string{
		{"Duration", formatClock(info.DurationSeconds)},
		{"Video", yesNo(info.HasVideo)},
	}
	if info.HasVideo {
		rows = append(rows,
			[]string{"Video codec", info.VideoCodec},
			[]string{"Resolution", fmt.Sprintf("%dx%d", info.Width, info.Height)},
			[]string{"Frame rate", strconv.FormatFloat(info.FrameRate, 'f', 2, 64)},
		)
	}
	rows = append(rows, []string{"Audio", yesNo(info.HasAudio)})
	if info.HasAudio {
		rows = append(rows,
			[]string{"Audio codec", info.AudioCodec},
			[]string{"Sample rate", fmt.Sprintf("%d Hz", info.SampleRate)},
			[]string{"Channels", strconv.Itoa(info.Channels)},
		)
	}
	return renderTable([]column{leftColumn("Property"), leftColumn("Value")}, rows)
}
