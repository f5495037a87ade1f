package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"klyppr/internal/fileutil"
	"klyppr/internal/logging"
	"klyppr/internal/media/ffmpeg"
	"klyppr/internal/media/filters"
	"klyppr/internal/music"
	"klyppr/internal/segments"
	"klyppr/internal/services"
	"klyppr/internal/silence"
)

// Share of overall progress given to extraction; concatenation takes the rest.
const extractionShare = 50.0

const (
	concatenatedFile = "concatenated.mp4"
	normalizedFile   = "normalized.mp4"
	mixedFile        = "mixed.mp4"
)

func (r *run) detect(ctx context.Context) ([]silence.Interval, error) {
	phaseCtx, logger, err := r.enter(ctx, PhaseDetectingSilence)
	if err != nil {
		return nil, err
	}
	job := r.jc.Job
	detector := silence.NewDetector(r.o.prober, r.o.runner, silence.WithLogger(r.logger))
	intervals, err := detector.Detect(phaseCtx, job.InputPath, silence.Params{
		ThresholdDB: job.SilenceThresholdDB,
		MinDuration: job.MinSilenceDuration,
		Padding:     job.PaddingDuration,
	})
	if err != nil {
		return nil, err
	}
	if len(intervals) == 0 {
		logger.Info("no silence to remove; keeping the full input")
	}
	return intervals, nil
}

func (r *run) cut(ctx context.Context, intervals []silence.Interval) error {
	_, logger, err := r.enter(ctx, PhasePlanningSegments)
	if err != nil {
		return err
	}
	plan, err := segments.Plan(intervals, r.info.DurationSeconds)
	if err != nil {
		return err
	}
	expected := segments.TotalDuration(plan)
	logger.Info("segments planned",
		logging.Int("segments", len(plan)),
		logging.String("original_duration", formatSeconds(r.info.DurationSeconds)),
		logging.String("expected_duration", formatSeconds(expected)),
		logging.Float64("reduction_percent", roundTenth(reductionPercent(r.info.DurationSeconds, expected))),
	)
	if r.record != nil {
		r.record.ExpectedDuration = expected
		r.record.SegmentCount = len(plan)
		if err := r.o.recorder.Update(context.WithoutCancel(ctx), r.record); err != nil {
			logger.Debug("job plan not recorded", logging.Error(err))
		}
	}

	phaseCtx, logger, err := r.enter(ctx, PhaseExtractingSegments)
	if err != nil {
		return err
	}
	if !r.info.HasVideo {
		return services.Wrap(services.ErrProbe, string(PhaseExtractingSegments), "extract", "input has no video stream", nil)
	}
	extractor := segments.NewExtractor(r.o.runner,
		segments.WithBatchSize(r.o.batchSize),
		segments.WithExtractorLogger(r.logger),
		segments.WithBatchProgress(func(done, total int) {
			r.report(phaseCtx, float64(done)/float64(total)*extractionShare)
		}),
	)
	normalize := r.jc.Job.NormalizeAudio && r.info.HasAudio
	files, err := extractor.ExtractAll(phaseCtx, r.jc.Job.InputPath, plan, r.jc.TempDir, normalize)
	if err != nil {
		return err
	}
	r.jc.SegmentFiles = files
	logger.Info("segments extracted", logging.Int("files", len(files)), logging.Bool("normalized", normalize))

	phaseCtx, logger, err = r.enter(ctx, PhaseConcatenating)
	if err != nil {
		return err
	}
	joined := r.jc.Path(concatenatedFile)
	if err := segments.Concatenate(phaseCtx, r.o.runner, files, joined, expected, func(percent float64) {
		r.report(phaseCtx, extractionShare+percent*(100-extractionShare)/100)
	}); err != nil {
		return err
	}
	r.premix = joined
	r.duration = expected
	logger.Info("segments joined", logging.String("file", filepath.Base(joined)))
	return nil
}

func (r *run) normalizeOrCopy(ctx context.Context) error {
	phaseCtx, logger, err := r.enter(ctx, PhaseNormalizingAudio)
	if err != nil {
		return err
	}
	if !r.jc.Job.NormalizeAudio || !r.info.HasAudio {
		logger.Info("keeping source audio",
			logging.Bool("normalize_requested", r.jc.Job.NormalizeAudio),
			logging.Bool("has_audio", r.info.HasAudio),
		)
		r.premix = r.jc.Job.InputPath
		return nil
	}
	output := r.jc.Path(normalizedFile)
	args := NormalizeArgs(r.jc.Job.InputPath, output)
	err = r.o.runner.Run(phaseCtx, args, func(ev ffmpeg.Event) {
		if ev.Kind == ffmpeg.EventProgress {
			r.report(phaseCtx, ev.Percent)
		}
	}, ffmpeg.WithDuration(r.info.DurationSeconds))
	if err != nil {
		return services.Wrap(services.ErrNormalization, string(PhaseNormalizingAudio), "loudnorm", r.jc.Job.InputPath, err)
	}
	r.premix = output
	logger.Info("audio normalized")
	return nil
}

// NormalizeArgs returns the arguments normalizing loudness while copying
// the video stream.
func NormalizeArgs(input, output string) []string {
	args := []string{
		"-y",
		"-i", input,
		"-c:v", "copy",
		"-af", filters.Loudnorm(),
	}
	args = append(args, ffmpeg.AudioProfileArgs()...)
	args = append(args, ffmpeg.FastStartArgs()...)
	return append(args, output)
}

func (r *run) mixMusic(ctx context.Context) error {
	phaseCtx, logger, err := r.enter(ctx, PhaseMixingMusic)
	if err != nil {
		return err
	}
	library := r.o.library
	if !r.jc.Job.BackgroundMusicEnabled || library == nil {
		logger.Info("background music disabled")
		return r.writeOutput(phaseCtx, logger, r.premix)
	}

	lib, err := library.Load()
	if err != nil {
		return r.fallback(phaseCtx, logger, err)
	}
	playlist, err := library.BuildPlaylist(lib, r.duration)
	if errors.Is(err, services.ErrNoMusicSelected) {
		logger.Info("no music selected; writing output without music")
		return r.writeOutput(phaseCtx, logger, r.premix)
	}
	if err != nil {
		return r.fallback(phaseCtx, logger, err)
	}

	input, err := r.musicInput(phaseCtx, playlist)
	if err != nil {
		return r.fallback(phaseCtx, logger, err)
	}
	mixed := r.jc.Path(mixedFile)
	mixer := music.NewMixer(r.o.prober, r.o.runner, r.logger,
		music.WithMixProgress(func(percent float64) { r.report(phaseCtx, percent) }),
	)
	if err := mixer.Mix(phaseCtx, r.premix, input, mixed, r.duration, lib.Settings.VolumeDB); err != nil {
		return r.fallback(phaseCtx, logger, err)
	}
	r.report(phaseCtx, 100)
	return r.writeOutput(phaseCtx, logger, mixed)
}

func (r *run) musicInput(ctx context.Context, playlist music.Playlist) (music.Input, error) {
	if playlist.Mode == music.ModeLoop {
		return music.Input{Kind: music.InputLoop, Path: playlist.LoopPath()}, nil
	}
	builder := music.NewCrossfadeBuilder(r.o.runner,
		music.WithCrossfadeSeconds(r.o.crossfade),
		music.WithCrossfadeLogger(r.logger),
	)
	return builder.Build(ctx, playlist.Paths(), r.jc.TempDir)
}

// fallback downgrades a music failure to a plain copy of the pre-mix file.
// Cancellation is not downgraded.
func (r *run) fallback(ctx context.Context, logger *slog.Logger, cause error) error {
	if errCancelled(ctx, cause) {
		return cause
	}
	logging.WarnEvent(logger, "music_fallback", "background music failed; writing output without music",
		logging.Error(cause),
		logging.String(logging.FieldErrorHint, "check the music library with klyppr music list"),
		logging.String(logging.FieldImpact, "output has no background music"),
	)
	return r.writeOutput(ctx, logger, r.premix)
}

// publish moves or copies source to dst. Job files are renamed; the input
// itself is copied.
func publish(source, dst, jobDir string) error {
	if rel, err := filepath.Rel(jobDir, source); err == nil && !strings.HasPrefix(rel, "..") {
		if err := os.Rename(source, dst); err == nil {
			return nil
		}
	}
	return fileutil.CopyFile(source, dst)
}

func roundTenth(v float64) float64 {
	return float64(int64(v*10+0.5)) / 10
}
