package media

import (
	"context"
	"fmt"
	"strings"

	"klyppr/internal/media/ffprobe"
	"klyppr/internal/services"
)

// Info summarizes a probed media file. Codec and geometry fields are zero
// when the corresponding stream is absent.
type Info struct {
	DurationSeconds float64 `json:"duration_seconds"`
	HasAudio        bool    `json:"has_audio"`
	HasVideo        bool    `json:"has_video"`
	AudioCodec      string  `json:"audio_codec,omitempty"`
	SampleRate      int     `json:"sample_rate,omitempty"`
	Channels        int     `json:"channels,omitempty"`
	VideoCodec      string  `json:"video_codec,omitempty"`
	Width           int     `json:"width,omitempty"`
	Height          int     `json:"height,omitempty"`
	FrameRate       float64 `json:"frame_rate,omitempty"`
}

// Prober reports stream composition for a media file.
type Prober interface {
	Probe(ctx context.Context, path string) (Info, error)
}

// ProberFunc adapts a function to the Prober interface.
type ProberFunc func(ctx context.Context, path string) (Info, error)

// Probe calls f.
func (f ProberFunc) Probe(ctx context.Context, path string) (Info, error) {
	return f(ctx, path)
}

// InspectFunc runs ffprobe and returns its decoded output.
type InspectFunc func(ctx context.Context, binary, path string) (ffprobe.Result, error)

// FFProbe implements Prober on top of the ffprobe binary.
type FFProbe struct {
	binary  string
	inspect InspectFunc
}

// ProbeOption configures an FFProbe.
type ProbeOption func(*FFProbe)

// WithInspector swaps the ffprobe invocation (primarily for tests).
func WithInspector(fn InspectFunc) ProbeOption {
	return func(p *FFProbe) {
		if fn != nil {
			p.inspect = fn
		}
	}
}

// NewProber constructs an ffprobe-backed prober.
func NewProber(binary string, opts ...ProbeOption) *FFProbe {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		binary = "ffprobe"
	}
	p := &FFProbe{binary: binary, inspect: ffprobe.Inspect}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Probe inspects path. Unreadable files and files without a stream table
// fail with services.ErrProbe.
func (p *FFProbe) Probe(ctx context.Context, path string) (Info, error) {
	result, err := p.inspect(ctx, p.binary, path)
	if err != nil {
		return Info{}, services.Wrap(services.ErrProbe, "", "ffprobe", path, err)
	}
	info, err := Summarize(result)
	if err != nil {
		return Info{}, services.Wrap(services.ErrProbe, "", "ffprobe", path, err)
	}
	return info, nil
}

// Summarize reduces an ffprobe result to Info.
func Summarize(result ffprobe.Result) (Info, error) {
	if len(result.Streams) == 0 {
		return Info{}, fmt.Errorf("no stream table")
	}
	info := Info{DurationSeconds: result.DurationSeconds()}
	if audio, ok := result.FirstStream("audio"); ok {
		info.HasAudio = true
		info.AudioCodec = audio.CodecName
		info.SampleRate = audio.SampleRateHz()
		info.Channels = audio.Channels
	}
	if video, ok := result.FirstStream("video"); ok {
		info.HasVideo = true
		info.VideoCodec = video.CodecName
		info.Width = video.Width
		info.Height = video.Height
		info.FrameRate = video.FrameRate()
	}
	return info, nil
}
