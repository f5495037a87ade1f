package main

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"klyppr/internal/config"
	"klyppr/internal/jobs"
	"klyppr/internal/pipeline"
	"klyppr/internal/staging"
)

func newJobsCommand(ctx *commandContext) *cobra.Command {
	jobsCmd := &cobra.Command{
		Use:     "jobs",
		Aliases: []string{"history"},
		Short:   "Inspect the job history",
	}

	jobsCmd.AddCommand(newJobsListCommand(ctx))
	jobsCmd.AddCommand(newJobsShowCommand(ctx))
	jobsCmd.AddCommand(newJobsRemoveCommand(ctx))
	jobsCmd.AddCommand(newJobsClearCommand(ctx))
	jobsCmd.AddCommand(newJobsReapCommand(ctx))

	return jobsCmd
}

type jobView struct {
	ID               string     `json:"id"`
	Input            string     `json:"input"`
	Output           string     `json:"output,omitempty"`
	Status           string     `json:"status"`
	Phase            string     `json:"phase,omitempty"`
	Progress         float64    `json:"progress"`
	Message          string     `json:"message,omitempty"`
	Error            string     `json:"error,omitempty"`
	AutoCut          bool       `json:"auto_cut"`
	Normalize        bool       `json:"normalize"`
	Music            bool       `json:"music"`
	InputDuration    float64    `json:"input_duration,omitempty"`
	ExpectedDuration float64    `json:"expected_duration,omitempty"`
	Segments         int        `json:"segments,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	FinishedAt       *time.Time `json:"finished_at,omitempty"`
}

func toJobView(job *jobs.Job) jobView {
	return jobView{
		ID:               job.ID,
		Input:            job.InputPath,
		Output:           job.OutputPath,
		Status:           string(job.Status),
		Phase:            job.Phase,
		Progress:         job.ProgressPercent,
		Message:          job.ProgressMessage,
		Error:            job.ErrorMessage,
		AutoCut:          job.AutoCut,
		Normalize:        job.Normalize,
		Music:            job.Music,
		InputDuration:    job.InputDuration,
		ExpectedDuration: job.ExpectedDuration,
		Segments:         job.SegmentCount,
		CreatedAt:        job.CreatedAt,
		FinishedAt:       job.FinishedAt,
	}
}

func newJobsListCommand(ctx *commandContext) *cobra.Command {
	var statusFlags []string
	var limit int
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recent jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			statuses, err := parseStatuses(statusFlags)
			if err != nil {
				return err
			}
			store, err := ctx.jobStore()
			if err != nil {
				return err
			}
			list, err := store.List(cmd.Context(), jobs.ListOptions{Statuses: statuses, Limit: limit})
			if err != nil {
				return err
			}
			if jsonOutput {
				views := make([]jobView, 0, len(list))
				for _, job := range list {
					views = append(views, toJobView(job))
				}
				return printJSON(cmd.OutOrStdout(), views)
			}
			out := cmd.OutOrStdout()
			if len(list) == 0 {
				fmt.Fprintln(out, "No jobs recorded")
				return nil
			}
			fmt.Fprintln(out, renderJobsTable(list, time.Now()))
			return nil
		},
	}
	cmd.Flags().StringSliceVarP(&statusFlags, "status", "s", nil, "Filter by status (running, completed, failed)")
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum jobs to show (0 for all)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print jobs as JSON")
	return cmd
}

func parseStatuses(values []string) ([]jobs.Status, error) {
	var statuses []jobs.Status
	for _, value := range values {
		status, ok := jobs.ParseStatus(value)
		if !ok {
			return nil, fmt.Errorf("unknown status %q", value)
		}
		statuses = append(statuses, status)
	}
	return statuses, nil
}

func renderJobsTable(list []*jobs.Job, now time.Time) string {
	rows := make([][]string, 0, len(list))
	for _, job := range list {
		progress := fmt.Sprintf("%.0f%%", job.ProgressPercent)
		if job.Status == jobs.StatusFailed {
			progress = "-"
		}
		rows = append(rows, []string{
			shortID(job.ID),
			string(job.Status),
			phaseLabel(job.Phase),
			progress,
			filepath.Base(job.InputPath),
			formatReduction(job.Reduction()),
			job.Elapsed(now).Round(time.Second).String(),
		})
	}
	return renderTable([]column{
		leftColumn("ID"),
		leftColumn("Status"),
		leftColumn("Phase"),
		rightColumn("Progress"),
		leftColumn("Input"),
		rightColumn("Cut"),
		rightColumn("Elapsed"),
	}, rows)
}

func newJobsShowCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool
	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show one job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := ctx.jobStore()
			if err != nil {
				return err
			}
			job, err := findJob(cmd, store, args[0])
			if err != nil {
				return err
			}
			if jsonOutput {
				return printJSON(cmd.OutOrStdout(), toJobView(job))
			}
			printJob(cmd.OutOrStdout(), job)
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print the job as JSON")
	return cmd
}

func findJob(cmd *cobra.Command, store *jobs.Store, ref string) (*jobs.Job, error) {
	job, err := store.Find(cmd.Context(), ref)
	if errors.Is(err, jobs.ErrNotFound) {
		return nil, fmt.Errorf("job %q not found", ref)
	}
	return job, err
}

func printJob(out io.Writer, job *jobs.Job) {
	fields := [][2]string{
		{"ID", job.ID},
		{"Status", string(job.Status)},
		{"Phase", phaseLabel(job.Phase)},
		{"Progress", fmt.Sprintf("%.0f%%", job.ProgressPercent)},
		{"Input", job.InputPath},
		{"Output", job.OutputPath},
		{"Silence cut", yesNo(job.AutoCut)},
		{"Normalize", yesNo(job.Normalize)},
		{"Music", yesNo(job.Music)},
		{"Input duration", formatClock(job.InputDuration)},
		{"Expected duration", formatClock(job.ExpectedDuration)},
		{"Segments", fmt.Sprintf("%d", job.SegmentCount)},
		{"Removed", formatReduction(job.Reduction())},
		{"Created", job.CreatedAt.Local().Format(time.DateTime)},
	}
	if job.FinishedAt != nil {
		fields = append(fields, [2]string{"Finished", job.FinishedAt.Local().Format(time.DateTime)})
	}
	if job.ProgressMessage != "" {
		fields = append(fields, [2]string{"Message", job.ProgressMessage})
	}
	if job.ErrorMessage != "" {
		fields = append(fields, [2]string{"Error", job.ErrorMessage})
	}
	for _, field := range fields {
		if field[1] == "" {
			continue
		}
		fmt.Fprintf(out, "%-18s %s\n", field[0]+":", field[1])
	}
}

func newJobsRemoveCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <id>",
		Short: "Delete a job from the history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := ctx.jobStore()
			if err != nil {
				return err
			}
			job, err := findJob(cmd, store, args[0])
			if err != nil {
				return err
			}
			if _, err := store.Remove(cmd.Context(), job.ID); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Job %s removed\n", shortID(job.ID))
			return nil
		},
	}
}

func newJobsClearCommand(ctx *commandContext) *cobra.Command {
	var all bool
	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove finished jobs from the history",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := ctx.jobStore()
			if err != nil {
				return err
			}
			var removed int64
			if all {
				removed, err = store.Clear(cmd.Context())
			} else {
				removed, err = store.ClearFinished(cmd.Context())
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %d job(s)\n", removed)
			return nil
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "Also remove running jobs")
	return cmd
}

func newJobsReapCommand(ctx *commandContext) *cobra.Command {
	var olderThan time.Duration
	cmd := &cobra.Command{
		Use:   "reap",
		Short: "Fail jobs left running by an exited process and remove their work directories",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			store, err := ctx.jobStore()
			if err != nil {
				return err
			}
			marked, err := store.MarkInterrupted(cmd.Context(), time.Now().Add(-olderThan))
			if err != nil {
				return err
			}
			running, err := store.List(cmd.Context(), jobs.ListOptions{Statuses: []jobs.Status{jobs.StatusRunning}})
			if err != nil {
				return err
			}
			active := make(map[string]bool, len(running))
			for _, job := range running {
				active[shortID(job.ID)] = true
			}
			logger, err := ctx.fileLogger()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Marked %d job(s) as interrupted\n", marked)
			removed := 0
			for _, dir := range workDirParents(cfg) {
				result := staging.CleanStale(cmd.Context(), dir, olderThan, active, logger)
				removed += len(result.Removed)
				for _, failed := range result.Errors {
					fmt.Fprintf(out, "Could not remove %s: %v\n", failed.Path, failed.Error)
				}
			}
			fmt.Fprintf(out, "Removed %d stale work directories\n", removed)
			return nil
		},
	}
	cmd.Flags().DurationVar(&olderThan, "older-than", time.Hour, "Only jobs and directories untouched for this long")
	return cmd
}

// workDirParents lists the directories job work directories may live in: the
// configured output directory and the last one used.
func workDirParents(cfg *config.Config) []string {
	dirs := []string{cfg.Paths.OutputDir}
	if state, err := loadState(cfg.StatePath()); err == nil && state.LastOutputPath != "" && state.LastOutputPath != cfg.Paths.OutputDir {
		dirs = append(dirs, state.LastOutputPath)
	}
	return dirs
}

func phaseLabel(phase string) string {
	if strings.TrimSpace(phase) == "" {
		return "-"
	}
	return pipeline.Phase(phase).Label()
}

func formatReduction(fraction float64) string {
	if fraction <= 0 {
		return "-"
	}
	return fmt.Sprintf("%.1f%%", fraction*100)
}
