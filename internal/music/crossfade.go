package music

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"klyppr/internal/logging"
	"klyppr/internal/media/ffmpeg"
	"klyppr/internal/media/filters"
	"klyppr/internal/services"
)

// DefaultCrossfadeSeconds is the overlap between consecutive tracks.
const DefaultCrossfadeSeconds = 4.0

// CrossfadeFileName is the rendered sequence written into the job directory.
const CrossfadeFileName = "background_music.m4a"

// CrossfadeStep merges the Left and Right streams into Output.
type CrossfadeStep struct {
	Left   string
	Right  string
	Output string
}

// Filter renders the step as an acrossfade stage.
func (s CrossfadeStep) Filter(seconds float64) string {
	return filters.Crossfade(s.Left, s.Right, s.Output, seconds)
}

// PlanCrossfade returns the acrossfade chain joining n inputs. The first step
// merges 0:a and 1:a into xf1; step k merges xf(k-1) with k:a into xfk.
func PlanCrossfade(n int) []CrossfadeStep {
	if n < 2 {
		return nil
	}
	steps := make([]CrossfadeStep, 0, n-1)
	acc := "0:a"
	for k := 1; k < n; k++ {
		out := fmt.Sprintf("xf%d", k)
		steps = append(steps, CrossfadeStep{Left: acc, Right: fmt.Sprintf("%d:a", k), Output: out})
		acc = out
	}
	return steps
}

// CrossfadeGraph renders the full filter_complex for n inputs and returns it
// with the label of the final stream.
func CrossfadeGraph(n int, seconds float64) (string, string) {
	steps := PlanCrossfade(n)
	if len(steps) == 0 {
		return "", ""
	}
	chains := make([]string, len(steps))
	for i, step := range steps {
		chains[i] = step.Filter(seconds)
	}
	return filters.Graph(chains...), steps[len(steps)-1].Output
}

// CrossfadeBuilder materializes a track sequence into one audio file.
type CrossfadeBuilder struct {
	runner  ffmpeg.Runner
	seconds float64
	logger  *slog.Logger
}

// CrossfadeOption configures a CrossfadeBuilder.
type CrossfadeOption func(*CrossfadeBuilder)

// WithCrossfadeSeconds overrides DefaultCrossfadeSeconds.
func WithCrossfadeSeconds(seconds float64) CrossfadeOption {
	return func(b *CrossfadeBuilder) {
		if seconds > 0 {
			b.seconds = seconds
		}
	}
}

// WithCrossfadeLogger attaches a logger.
func WithCrossfadeLogger(logger *slog.Logger) CrossfadeOption {
	return func(b *CrossfadeBuilder) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// NewCrossfadeBuilder constructs a builder.
func NewCrossfadeBuilder(runner ffmpeg.Runner, opts ...CrossfadeOption) *CrossfadeBuilder {
	b := &CrossfadeBuilder{runner: runner, seconds: DefaultCrossfadeSeconds, logger: logging.NewNop()}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Build returns the music input for tracks. A single track is used as is;
// longer sequences are rendered once into dir.
func (b *CrossfadeBuilder) Build(ctx context.Context, tracks []string, dir string) (Input, error) {
	switch len(tracks) {
	case 0:
		return Input{}, services.Wrap(services.ErrNoMusicSelected, playlistPhase, "crossfade", "", nil)
	case 1:
		return Input{Kind: InputSingle, Path: tracks[0]}, nil
	}

	logger := logging.WithContext(ctx, b.logger)
	output := filepath.Join(dir, CrossfadeFileName)
	args := CrossfadeArgs(tracks, output, b.seconds)
	logger.Info("rendering music sequence",
		logging.Int("tracks", len(tracks)),
		logging.Float64("crossfade_seconds", b.seconds),
	)
	err := b.runner.Run(ctx, args, func(ev ffmpeg.Event) {
		if ev.Kind == ffmpeg.EventLine && ev.Diagnostic {
			logger.Warn("crossfade diagnostic", logging.String("line", ev.Line))
		}
	})
	if err != nil {
		return Input{}, services.Wrap(services.ErrCrossfade, playlistPhase, "crossfade", output, err)
	}
	return Input{Kind: InputSequence, Path: output}, nil
}

// CrossfadeArgs returns the ffmpeg arguments rendering tracks into output.
func CrossfadeArgs(tracks []string, output string, seconds float64) []string {
	args := make([]string, 0, 2*len(tracks)+12)
	for _, track := range tracks {
		args = append(args, "-i", track)
	}
	graph, last := CrossfadeGraph(len(tracks), seconds)
	args = append(args,
		"-filter_complex", graph,
		"-map", "["+last+"]",
		"-ac", "2",
		"-ar", "48000",
		"-c:a", "aac",
		"-y", output,
	)
	return args
}
