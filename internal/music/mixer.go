package music

import (
	"context"
	"log/slog"

	"klyppr/internal/logging"
	"klyppr/internal/media"
	"klyppr/internal/media/ffmpeg"
	"klyppr/internal/media/filters"
	"klyppr/internal/services"
)

// InputKind describes how a music file relates to the video length.
type InputKind string

const (
	// InputLoop repeats a single track until the video ends.
	InputLoop InputKind = "loop"
	// InputSingle plays one track once.
	InputSingle InputKind = "single"
	// InputSequence plays a rendered crossfade of several tracks.
	InputSequence InputKind = "sequence"
)

// Input is the one music input handed to the mixer.
type Input struct {
	Kind InputKind
	Path string
}

// Mixer lays a music bed under a video.
type Mixer struct {
	prober     media.Prober
	runner     ffmpeg.Runner
	logger     *slog.Logger
	onProgress func(percent float64)
}

// MixerOption configures a Mixer.
type MixerOption func(*Mixer)

// WithMixProgress receives the engine's percent complete during a mix run.
func WithMixProgress(fn func(percent float64)) MixerOption {
	return func(m *Mixer) {
		m.onProgress = fn
	}
}

// NewMixer constructs a mixer.
func NewMixer(prober media.Prober, runner ffmpeg.Runner, logger *slog.Logger, opts ...MixerOption) *Mixer {
	if logger == nil {
		logger = logging.NewNop()
	}
	m := &Mixer{prober: prober, runner: runner, logger: logger}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Mix writes videoPath with input mixed under its audio to outputPath. When
// the video has no audio the music bed becomes the only audio track.
func (m *Mixer) Mix(ctx context.Context, videoPath string, input Input, outputPath string, videoDuration, volumeDB float64) error {
	info, err := m.prober.Probe(ctx, videoPath)
	if err != nil {
		return services.Wrap(services.ErrMix, playlistPhase, "probe", videoPath, err)
	}
	if videoDuration <= 0 {
		videoDuration = info.DurationSeconds
	}
	args := MixArgs(videoPath, input, outputPath, videoDuration, volumeDB, info.HasAudio)
	logging.WithContext(ctx, m.logger).Info("mixing background music",
		logging.String("kind", string(input.Kind)),
		logging.Bool("original_audio", info.HasAudio),
		logging.Float64("volume_db", volumeDB),
	)
	var handler ffmpeg.Handler
	if m.onProgress != nil {
		handler = func(ev ffmpeg.Event) {
			if ev.Kind == ffmpeg.EventProgress {
				m.onProgress(ev.Percent)
			}
		}
	}
	if err := m.runner.Run(ctx, args, handler, ffmpeg.WithDuration(videoDuration)); err != nil {
		return services.Wrap(services.ErrMix, playlistPhase, "amix", outputPath, err)
	}
	return nil
}

// MixArgs returns the ffmpeg arguments for one mix run.
func MixArgs(videoPath string, input Input, outputPath string, videoDuration, volumeDB float64, hasAudio bool) []string {
	bed := filters.MusicBed("1:a", input.Kind == InputLoop, videoDuration, volumeDB)
	graph := bed
	audioLabel := filters.MusicLabel
	if hasAudio {
		graph = filters.Graph(bed, filters.Mix("0:a"))
		audioLabel = filters.MixLabel
	}
	args := []string{
		"-i", videoPath,
		"-i", input.Path,
		"-filter_complex", graph,
		"-map", "0:v",
		"-map", "[" + audioLabel + "]",
		"-c:v", "copy",
	}
	args = append(args, ffmpeg.AudioProfileArgs()...)
	args = append(args, ffmpeg.FastStartArgs()...)
	return append(args, "-y", outputPath)
}
