package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"klyppr/internal/config"
	"klyppr/internal/logging"
	"klyppr/internal/pipeline"
	"klyppr/internal/services"
)

type processOptions struct {
	output      string
	noCut       bool
	noNormalize bool
	music       bool
	noMusic     bool
	threshold   float64
	minSilence  float64
	padding     float64
	quiet       bool
	jsonOutput  bool
}

type processResult struct {
	Success     bool   `json:"success"`
	Input       string `json:"input"`
	Output      string `json:"output,omitempty"`
	FailedPhase string `json:"failed_phase,omitempty"`
	Error       string `json:"error,omitempty"`
}

func newProcessCommand(ctx *commandContext) *cobra.Command {
	var opts processOptions

	cmd := &cobra.Command{
		Use:   "process <input>",
		Short: "Remove silence, normalize audio and add background music",
		Long: `Process a video file. By default silent sections are cut, loudness is
normalized to -16 LUFS and the selected background music is mixed in.

Without --output the result is written as processed_<name> into the last
output directory used, or the configured output directory.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			job, err := buildJob(cmd, ctx, cfg, args[0], opts)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if opts.jsonOutput {
				out = io.Discard
			}

			completion, runErr := ctx.runJob(cmd.Context(), job, out, !opts.quiet)
			result := processResult{
				Success: completion.Success,
				Input:   job.InputPath,
				Output:  completion.OutputPath,
			}
			if runErr != nil {
				result.FailedPhase = failedPhaseLabel(completion, runErr)
				result.Error = runErr.Error()
			}
			if opts.jsonOutput {
				if err := printJSON(cmd.OutOrStdout(), result); err != nil {
					return err
				}
				return runErr
			}
			if runErr != nil {
				return fmt.Errorf("processing failed during %s: %w", result.FailedPhase, runErr)
			}
			fmt.Fprintf(out, "Output: %s\n", completion.OutputPath)
			return nil
		},
	}

	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "Output file or directory")
	cmd.Flags().BoolVar(&opts.noCut, "no-cut", false, "Keep silent sections")
	cmd.Flags().BoolVar(&opts.noNormalize, "no-normalize", false, "Skip loudness normalization")
	cmd.Flags().BoolVar(&opts.music, "music", false, "Force background music on")
	cmd.Flags().BoolVar(&opts.noMusic, "no-music", false, "Skip background music")
	cmd.Flags().Float64Var(&opts.threshold, "threshold", 0, "Silence threshold in dB")
	cmd.Flags().Float64Var(&opts.minSilence, "min-silence", 0, "Minimum silence duration in seconds")
	cmd.Flags().Float64Var(&opts.padding, "padding", 0, "Silence kept on each side of a cut in seconds")
	cmd.Flags().BoolVarP(&opts.quiet, "quiet", "q", false, "Show progress only, not job log lines")
	cmd.Flags().BoolVar(&opts.jsonOutput, "json", false, "Print the result as JSON")
	cmd.MarkFlagsMutuallyExclusive("music", "no-music")
	return cmd
}

// buildJob turns flags and configured defaults into a job.
func buildJob(cmd *cobra.Command, ctx *commandContext, cfg *config.Config, input string, opts processOptions) (pipeline.Job, error) {
	abs, err := filepath.Abs(input)
	if err != nil {
		return pipeline.Job{}, fmt.Errorf("resolve input path: %w", err)
	}
	output, err := defaultOutput(cfg, opts.output)
	if err != nil {
		return pipeline.Job{}, err
	}

	job := pipeline.JobFromConfig(cfg, abs, output)
	flags := cmd.Flags()
	if opts.noCut {
		job.AutoCutSilence = false
	}
	if opts.noNormalize {
		job.NormalizeAudio = false
	}
	if flags.Changed("threshold") {
		job.SilenceThresholdDB = opts.threshold
	}
	if flags.Changed("min-silence") {
		job.MinSilenceDuration = opts.minSilence
	}
	if flags.Changed("padding") {
		job.PaddingDuration = opts.padding
	}

	switch {
	case opts.noMusic:
		job.BackgroundMusicEnabled = false
	case opts.music:
		job.BackgroundMusicEnabled = true
	default:
		library, err := ctx.library()
		if err != nil {
			return pipeline.Job{}, err
		}
		lib, err := library.Load()
		if err != nil {
			return pipeline.Job{}, err
		}
		job.BackgroundMusicEnabled = lib.Settings.Enabled
	}
	return job, nil
}

// defaultOutput picks the explicit output, then the last output directory,
// then the configured output directory.
func defaultOutput(cfg *config.Config, explicit string) (string, error) {
	if explicit = strings.TrimSpace(explicit); explicit != "" {
		expanded, err := config.ExpandPath(explicit)
		if err != nil {
			return "", fmt.Errorf("resolve output path: %w", err)
		}
		if strings.HasSuffix(explicit, string(os.PathSeparator)) {
			expanded += string(os.PathSeparator)
		}
		return expanded, nil
	}
	state, err := loadState(cfg.StatePath())
	if err != nil {
		return "", err
	}
	if dir := state.LastOutputPath; dir != "" {
		if info, err := os.Stat(dir); err == nil && info.IsDir() {
			return dir + string(os.PathSeparator), nil
		}
	}
	return cfg.Paths.OutputDir + string(os.PathSeparator), nil
}

// runJob runs one job with a progress view on out and records the output
// directory on success.
func (c *commandContext) runJob(ctx context.Context, job pipeline.Job, out io.Writer, showLines bool) (pipeline.Completion, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return pipeline.Completion{}, err
	}
	logger, err := c.fileLogger()
	if err != nil {
		return pipeline.Completion{}, err
	}
	store, err := c.jobStore()
	if err != nil {
		return pipeline.Completion{}, err
	}
	orchestrator := pipeline.NewFromConfig(cfg, logger, store)

	reporter := pipeline.NewChannelReporter(256)
	view := newProgressView(out, isTerminal(out), showLines)
	done := make(chan struct{})
	go func() {
		view.pump(reporter)
		close(done)
	}()
	completion, runErr := orchestrator.Run(ctx, job, reporter)
	reporter.Close()
	<-done

	if runErr == nil {
		state := cliState{LastOutputPath: filepath.Dir(completion.OutputPath)}
		if err := saveState(cfg.StatePath(), state); err != nil {
			logger.Warn("could not remember output directory", logging.Error(err))
		}
	}
	return completion, runErr
}

func failedPhaseLabel(completion pipeline.Completion, err error) string {
	if phase := services.PhaseOf(err); phase != "" {
		return pipeline.Phase(phase).Label()
	}
	if errors.Is(err, context.Canceled) {
		return "cancellation"
	}
	if completion.FailedPhase != "" {
		return completion.FailedPhase.Label()
	}
	return pipeline.PhaseIdle.Label()
}
