package silence

import (
	"context"
	"log/slog"
	"strings"

	"klyppr/internal/logging"
	"klyppr/internal/media"
	"klyppr/internal/media/ffmpeg"
	"klyppr/internal/media/filters"
	"klyppr/internal/services"
)

// Params tunes a detection run.
type Params struct {
	ThresholdDB float64
	MinDuration float64
	Padding     float64
}

// Detector runs silencedetect analyses.
type Detector struct {
	prober media.Prober
	runner ffmpeg.Runner
	logger *slog.Logger
}

// Option configures the detector.
type Option func(*Detector)

// WithLogger attaches a logger.
func WithLogger(logger *slog.Logger) Option {
	return func(d *Detector) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// NewDetector constructs a detector.
func NewDetector(prober media.Prober, runner ffmpeg.Runner, opts ...Option) *Detector {
	d := &Detector{
		prober: prober,
		runner: runner,
		logger: logging.NewNop(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Detect returns the padded silent intervals of path in encounter order.
// Files without an audio stream yield no intervals and no analysis run.
func (d *Detector) Detect(ctx context.Context, path string, params Params) ([]Interval, error) {
	const phase = "detecting_silence"
	logger := logging.WithContext(ctx, d.logger)

	info, err := d.prober.Probe(ctx, path)
	if err != nil {
		return nil, services.Wrap(services.ErrDetection, phase, "probe", path, err)
	}
	if !info.HasAudio {
		logger.Info("no audio stream; skipping silence detection", logging.String("input", path))
		return nil, nil
	}

	args := []string{
		"-i", path,
		"-vn",
		"-af", filters.SilenceDetect(params.ThresholdDB, params.MinDuration),
		"-f", "null",
		"-",
	}
	parser := NewParser(params.Padding)
	sampler := logging.NewProgressSampler(10)
	err = d.runner.Run(ctx, args, func(ev ffmpeg.Event) {
		switch ev.Kind {
		case ffmpeg.EventLine:
			if strings.Contains(ev.Line, "silence_") {
				parser.Feed(ev.Line)
			}
		case ffmpeg.EventProgress:
			if sampler.ShouldLog(ev.Percent, phase) {
				logger.Debug("silence analysis progress", logging.Float64("percent", ev.Percent))
			}
		}
	}, ffmpeg.WithDuration(info.DurationSeconds))
	if err != nil {
		return nil, services.Wrap(services.ErrDetection, phase, "silencedetect", path, err)
	}

	intervals, discarded := parser.Finish()
	if discarded {
		logger.Debug("discarded trailing silence without end marker")
	}
	logger.Info("silence detection complete",
		logging.Int("intervals", len(intervals)),
		logging.Int("rejected_short", parser.Rejected()),
	)
	return intervals, nil
}
