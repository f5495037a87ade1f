package main

import (
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"klyppr/internal/media/ffmpeg"
	"klyppr/internal/segments"
	"klyppr/internal/silence"
)

type detectResult struct {
	Intervals        []silence.Interval `json:"silences"`
	Segments         []segments.Segment `json:"segments"`
	InputDuration    float64            `json:"input_duration"`
	ExpectedDuration float64            `json:"expected_duration"`
}

func newDetectCommand(ctx *commandContext) *cobra.Command {
	var threshold, minSilence, padding float64
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "detect <file>",
		Short: "Report silent sections and the segments a process run would keep",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			params := silence.Params{
				ThresholdDB: cfg.Silence.ThresholdDB,
				MinDuration: cfg.Silence.MinDuration,
				Padding:     cfg.Silence.Padding,
			}
			flags := cmd.Flags()
			if flags.Changed("threshold") {
				params.ThresholdDB = threshold
			}
			if flags.Changed("min-silence") {
				params.MinDuration = minSilence
			}
			if flags.Changed("padding") {
				params.Padding = padding
			}

			prober, err := ctx.prober()
			if err != nil {
				return err
			}
			logger, err := ctx.fileLogger()
			if err != nil {
				return err
			}
			info, err := prober.Probe(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			detector := silence.NewDetector(prober, ffmpeg.New(cfg.FFmpeg.FFmpegBinary), silence.WithLogger(logger))
			intervals, err := detector.Detect(cmd.Context(), args[0], params)
			if err != nil {
				return err
			}
			plan, err := segments.Plan(intervals, info.DurationSeconds)
			if err != nil {
				return err
			}
			result := detectResult{
				Intervals:        intervals,
				Segments:         plan,
				InputDuration:    info.DurationSeconds,
				ExpectedDuration: segments.TotalDuration(plan),
			}
			if result.Intervals == nil {
				result.Intervals = []silence.Interval{}
			}
			if jsonOutput {
				return printJSON(cmd.OutOrStdout(), result)
			}
			printDetectResult(cmd.OutOrStdout(), result)
			return nil
		},
	}
	cmd.Flags().Float64Var(&threshold, "threshold", 0, "Silence threshold in dB")
	cmd.Flags().Float64Var(&minSilence, "min-silence", 0, "Minimum silence duration in seconds")
	cmd.Flags().Float64Var(&padding, "padding", 0, "Silence kept on each side of a cut in seconds")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print the analysis as JSON")
	return cmd
}

func printDetectResult(out io.Writer, result detectResult) {
	if len(result.Intervals) == 0 {
		fmt.Fprintln(out, "No silence found")
		return
	}
	rows := make([][]string, 0, len(result.Intervals))
	for i, interval := range result.Intervals {
		rows = append(rows, []string{
			strconv.Itoa(i + 1),
			seconds(interval.Start),
			seconds(interval.End),
			seconds(interval.Duration()),
		})
	}
	fmt.Fprintln(out, renderTable([]column{
		rightColumn("#"),
		rightColumn("Start"),
		rightColumn("End"),
		rightColumn("Length"),
	}, rows))
	removed := 0.0
	if result.InputDuration > 0 {
		removed = (1 - result.ExpectedDuration/result.InputDuration) * 100
	}
	fmt.Fprintf(out, "%d segment(s) kept: %s of %s (%.1f%% removed)\n",
		len(result.Segments), formatClock(result.ExpectedDuration), formatClock(result.InputDuration), removed)
}

func seconds(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64) + "s"
}
