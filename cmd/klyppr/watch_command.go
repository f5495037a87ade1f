package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"klyppr/internal/pipeline"
	"klyppr/internal/watch"
)

func newWatchCommand(ctx *commandContext) *cobra.Command {
	var opts processOptions
	var existing bool
	var settle time.Duration

	cmd := &cobra.Command{
		Use:   "watch <dir>",
		Short: "Process every video dropped into a folder",
		Long: `Watch a folder and process each new video once it stops growing.
Jobs run one at a time with the same defaults as process. Files named
processed_* are skipped so the output folder may be the watched folder.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			dir, err := filepath.Abs(args[0])
			if err != nil {
				return fmt.Errorf("resolve watch directory: %w", err)
			}
			if info, err := os.Stat(dir); err != nil || !info.IsDir() {
				return fmt.Errorf("watch directory %s is not a directory", dir)
			}
			logger, err := ctx.fileLogger()
			if err != nil {
				return err
			}
			if opts.output != "" && !strings.HasSuffix(opts.output, string(os.PathSeparator)) {
				opts.output += string(os.PathSeparator)
			}
			if !cmd.Flags().Changed("settle") {
				settle = time.Duration(cfg.Workflow.WatchSettleSeconds) * time.Second
			}

			out := cmd.OutOrStdout()
			handler := func(runCtx context.Context, path string) error {
				job, err := buildJob(cmd, ctx, cfg, path, opts)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "Processing %s\n", filepath.Base(path))
				completion, err := ctx.runJob(runCtx, job, out, !opts.quiet)
				if err != nil {
					fmt.Fprintf(out, "Failed %s during %s: %v\n", filepath.Base(path), failedPhaseLabel(completion, err), err)
					return err
				}
				fmt.Fprintf(out, "Output: %s\n", completion.OutputPath)
				return nil
			}

			watcher := watch.New(dir, handler,
				watch.WithSettle(settle),
				watch.WithSkipPrefixes(pipeline.OutputPrefix),
				watch.WithExisting(existing),
				watch.WithLogger(logger),
			)
			fmt.Fprintf(out, "Watching %s (Ctrl+C to stop)\n", dir)
			return watcher.Run(cmd.Context())
		},
	}

	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "Output directory")
	cmd.Flags().BoolVar(&opts.noCut, "no-cut", false, "Keep silent sections")
	cmd.Flags().BoolVar(&opts.noNormalize, "no-normalize", false, "Skip loudness normalization")
	cmd.Flags().BoolVar(&opts.music, "music", false, "Force background music on")
	cmd.Flags().BoolVar(&opts.noMusic, "no-music", false, "Skip background music")
	cmd.Flags().BoolVarP(&opts.quiet, "quiet", "q", false, "Show progress only, not job log lines")
	cmd.Flags().BoolVar(&existing, "existing", false, "Also process videos already in the folder")
	cmd.Flags().DurationVar(&settle, "settle", 5*time.Second, "How long a file must stop changing before it is processed")
	cmd.MarkFlagsMutuallyExclusive("music", "no-music")
	return cmd
}
