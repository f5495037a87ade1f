package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"klyppr/internal/config"
	"klyppr/internal/jobs"
	"klyppr/internal/logging"
	"klyppr/internal/media"
	"klyppr/internal/media/ffmpeg"
	"klyppr/internal/music"
	"klyppr/internal/preflight"
	"klyppr/internal/services"
)

// JobRecorder persists job history. *jobs.Store satisfies it.
type JobRecorder interface {
	Create(ctx context.Context, spec jobs.NewJob) (*jobs.Job, error)
	Update(ctx context.Context, job *jobs.Job) error
	UpdateProgress(ctx context.Context, id, phase string, percent float64, message string) error
	Finish(ctx context.Context, job *jobs.Job, outputPath string, cause error) error
}

// Orchestrator runs jobs. One Orchestrator may run several jobs, one per
// Run call; jobs writing the same output are serialized by a file lock.
type Orchestrator struct {
	prober    media.Prober
	runner    ffmpeg.Runner
	library   *music.LibraryStore
	recorder  JobRecorder
	logger    *slog.Logger
	batchSize int
	crossfade float64
	preflight bool
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLogger attaches the base logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithLibrary sets the music library used by the mixing phase. Without one,
// every job is written without music.
func WithLibrary(library *music.LibraryStore) Option {
	return func(o *Orchestrator) {
		o.library = library
	}
}

// WithRecorder records every job in a history store.
func WithRecorder(recorder JobRecorder) Option {
	return func(o *Orchestrator) {
		o.recorder = recorder
	}
}

// WithBatchSize overrides the extraction batch size.
func WithBatchSize(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.batchSize = n
		}
	}
}

// WithCrossfadeSeconds overrides the overlap between sequenced tracks.
func WithCrossfadeSeconds(seconds float64) Option {
	return func(o *Orchestrator) {
		if seconds > 0 {
			o.crossfade = seconds
		}
	}
}

// WithPreflight enables the output directory access and free-space checks.
func WithPreflight(enabled bool) Option {
	return func(o *Orchestrator) {
		o.preflight = enabled
	}
}

// New constructs an orchestrator around a prober and an engine.
func New(prober media.Prober, runner ffmpeg.Runner, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		prober:    prober,
		runner:    runner,
		logger:    logging.NewNop(),
		crossfade: music.DefaultCrossfadeSeconds,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// NewFromConfig wires the real ffmpeg engine, ffprobe and music library
// described by cfg. recorder may be nil.
func NewFromConfig(cfg *config.Config, logger *slog.Logger, recorder JobRecorder) *Orchestrator {
	prober := media.NewProber(cfg.FFmpeg.FFprobeBinary)
	engine := ffmpeg.New(cfg.FFmpeg.FFmpegBinary)
	library := music.NewLibraryStore(cfg.Paths.MusicLibrary, cfg.Paths.MusicDir, prober)
	opts := []Option{
		WithLogger(logger),
		WithLibrary(library),
		WithBatchSize(cfg.Workflow.ExtractBatchSize),
		WithCrossfadeSeconds(cfg.Music.CrossfadeSeconds),
		WithPreflight(true),
	}
	if recorder != nil {
		opts = append(opts, WithRecorder(recorder))
	}
	return New(prober, engine, opts...)
}

// Library returns the music library, or nil.
func (o *Orchestrator) Library() *music.LibraryStore {
	return o.library
}

// Run executes job and blocks until it ends. The returned error is nil
// exactly when Completion.Success is true. Cancelling ctx stops the running
// ffmpeg process and fails the job.
func (o *Orchestrator) Run(ctx context.Context, job Job, reporter Reporter) (Completion, error) {
	if reporter == nil {
		reporter = NopReporter{}
	}
	job.OutputPath = ResolveOutputPath(job.InputPath, job.OutputPath)
	if err := job.Validate(); err != nil {
		return Completion{FailedPhase: PhaseIdle}, err
	}
	outputDir := filepath.Dir(job.OutputPath)
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return Completion{FailedPhase: PhaseIdle}, services.Wrap(services.ErrValidation, "", "prepare output", outputDir, err)
	}
	if o.preflight {
		if failed, ok := preflight.FirstFailure(preflight.ForJob(outputDir, expectedBytes(job.InputPath))); ok {
			return Completion{FailedPhase: PhaseIdle}, services.Wrap(services.ErrValidation, "", "preflight", failed.Name+": "+failed.Detail, nil)
		}
	}

	lock, err := acquireOutputLock(job.OutputPath)
	if err != nil {
		return Completion{FailedPhase: PhaseIdle}, err
	}
	defer lock.release()

	record := o.startRecord(ctx, job)
	id := uuid.NewString()
	if record != nil {
		id = record.ID
	}
	ctx = services.WithJobID(ctx, id)
	logger := logging.TeeLogger(o.logger, logging.NewLineHandler(slog.LevelInfo, reporter.Log)).
		With(logging.String(logging.FieldComponent, "pipeline"))

	jc, err := NewJobContext(id, job, outputDir)
	if err != nil {
		o.finishRecord(ctx, logger, record, "", err)
		return Completion{FailedPhase: PhaseIdle}, err
	}
	defer func() {
		if err := jc.Close(); err != nil {
			logger.Warn("job directory cleanup failed", logging.String("dir", jc.TempDir), logging.Error(err))
		}
	}()

	logging.WithContext(ctx, logger).Info(
		"job started",
		logging.String(logging.FieldEventType, "job_start"),
		logging.String("input", job.InputPath),
		logging.String("output", job.OutputPath),
		logging.Bool("auto_cut", job.AutoCutSilence),
		logging.Bool("normalize", job.NormalizeAudio),
		logging.Bool("music", job.BackgroundMusicEnabled),
	)

	r := &run{o: o, jc: jc, reporter: reporter, logger: logger, record: record}
	if err := r.execute(ctx); err != nil {
		return r.fail(ctx, err)
	}

	if err := jc.Transition(PhaseCompleted); err != nil {
		return r.fail(ctx, err)
	}
	reporter.Progress(Progress{Phase: PhaseCompleted, Percent: 100})
	logging.WithContext(ctx, logger).Info(
		"job completed",
		logging.String(logging.FieldEventType, "job_complete"),
		logging.String("output", job.OutputPath),
	)
	o.finishRecord(ctx, logger, record, job.OutputPath, nil)
	return Completion{Success: true, OutputPath: job.OutputPath}, nil
}

func expectedBytes(input string) uint64 {
	info, err := os.Stat(input)
	if err != nil || info.Size() <= 0 {
		return 0
	}
	// Segments, the joined file and the final output may coexist.
	return uint64(info.Size()) * 3
}

func (o *Orchestrator) startRecord(ctx context.Context, job Job) *jobs.Job {
	if o.recorder == nil {
		return nil
	}
	record, err := o.recorder.Create(ctx, jobs.NewJob{
		InputPath:  job.InputPath,
		OutputPath: job.OutputPath,
		AutoCut:    job.AutoCutSilence,
		Normalize:  job.NormalizeAudio,
		Music:      job.BackgroundMusicEnabled,
	})
	if err != nil {
		logging.WarnEvent(o.logger, "job_history", "job history unavailable",
			logging.Error(err),
			logging.String(logging.FieldImpact, "this job will not appear in klyppr jobs"),
		)
		return nil
	}
	return record
}

func (o *Orchestrator) finishRecord(ctx context.Context, logger *slog.Logger, record *jobs.Job, output string, cause error) {
	if o.recorder == nil || record == nil {
		return
	}
	// The job context may already be cancelled; history must still be written.
	if err := o.recorder.Finish(context.WithoutCancel(ctx), record, output, cause); err != nil {
		logger.Warn("failed to record job result", logging.Error(err))
	}
}

// run carries one job through its phases.
type run struct {
	o        *Orchestrator
	jc       *JobContext
	reporter Reporter
	logger   *slog.Logger
	record   *jobs.Job
	sampler  *logging.ProgressSampler

	info     media.Info
	premix   string
	duration float64
}

func (r *run) execute(ctx context.Context) error {
	job := r.jc.Job
	info, err := r.o.prober.Probe(ctx, job.InputPath)
	if err != nil {
		return services.Wrap(services.ErrProbe, string(PhaseIdle), "probe input", job.InputPath, err)
	}
	r.info = info
	r.duration = info.DurationSeconds
	r.premix = job.InputPath
	if r.record != nil {
		r.record.InputDuration = info.DurationSeconds
	}
	logging.WithContext(ctx, r.logger).Info("input probed",
		logging.Float64("duration_seconds", info.DurationSeconds),
		logging.Bool("has_audio", info.HasAudio),
		logging.Bool("has_video", info.HasVideo),
	)

	cut := false
	if job.AutoCutSilence {
		intervals, err := r.detect(ctx)
		if err != nil {
			return err
		}
		if len(intervals) > 0 {
			if err := r.cut(ctx, intervals); err != nil {
				return err
			}
			cut = true
		}
	}
	if !cut {
		if err := r.normalizeOrCopy(ctx); err != nil {
			return err
		}
	}
	return r.mixMusic(ctx)
}

// enter moves to phase and returns a context and logger tagged with it.
func (r *run) enter(ctx context.Context, phase Phase) (context.Context, *slog.Logger, error) {
	if err := r.jc.Transition(phase); err != nil {
		return ctx, r.logger, err
	}
	phaseCtx := services.WithPhase(ctx, string(phase))
	logger := logging.WithContext(phaseCtx, r.logger)
	logger.Info("phase started",
		logging.String(logging.FieldEventType, "phase_start"),
		logging.String("label", phase.Label()),
	)
	r.sampler = logging.NewProgressSampler(5)
	r.report(phaseCtx, r.jc.Percent())
	return phaseCtx, logger, nil
}

// report publishes overall progress. History writes are sampled.
func (r *run) report(ctx context.Context, percent float64) {
	percent = max(0, min(100, percent))
	phase := r.jc.Phase()
	r.jc.setPercent(percent)
	r.reporter.Progress(Progress{Phase: phase, Percent: percent})
	if r.record == nil || r.o.recorder == nil {
		return
	}
	if r.sampler != nil && !r.sampler.ShouldLog(percent, string(phase)) {
		return
	}
	if err := r.o.recorder.UpdateProgress(ctx, r.record.ID, string(phase), percent, phase.Label()); err != nil {
		r.logger.Debug("job progress not recorded", logging.Error(err))
	}
}

func (r *run) fail(ctx context.Context, err error) (Completion, error) {
	failedPhase := r.jc.Phase()
	if services.PhaseOf(err) == "" && services.MarkerOf(err) != nil {
		err = services.Wrap(services.MarkerOf(err), string(failedPhase), "run", "", err)
	}
	_ = r.jc.Transition(PhaseFailed)
	r.reporter.Progress(Progress{Phase: PhaseFailed, Percent: r.jc.Percent()})
	logging.ErrorEvent(logging.WithContext(ctx, r.logger), "job_failure", "job failed",
		logging.String("failed_phase", string(failedPhase)),
		logging.Error(err),
	)
	if r.record != nil {
		r.record.Phase = string(failedPhase)
	}
	r.o.finishRecord(ctx, r.logger, r.record, "", err)
	return Completion{Success: false, OutputPath: r.jc.Job.OutputPath, FailedPhase: failedPhase}, err
}

func (r *run) writeOutput(ctx context.Context, logger *slog.Logger, source string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := publish(source, r.jc.Job.OutputPath, r.jc.TempDir); err != nil {
		return services.Wrap(services.ErrMix, string(PhaseMixingMusic), "write output", r.jc.Job.OutputPath, err)
	}
	logger.Info("output written", logging.String("output", r.jc.Job.OutputPath))
	return nil
}

// errCancelled reports whether err stems from the job context ending.
func errCancelled(ctx context.Context, err error) bool {
	return ctx.Err() != nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

func reductionPercent(original, kept float64) float64 {
	if original <= 0 || kept >= original {
		return 0
	}
	return (1 - kept/original) * 100
}

func formatSeconds(seconds float64) string {
	return strings.TrimSuffix(strings.TrimRight(fmt.Sprintf("%.2f", seconds), "0"), ".") + "s"
}
