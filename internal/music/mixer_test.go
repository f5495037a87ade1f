package music

import (
	"context"
	"errors"
	"strings"
	"testing"

	"klyppr/internal/media"
	"klyppr/internal/services"
	"klyppr/internal/testsupport"
)

func TestMixArgsWithOriginalAudio(t *testing.T) {
	args := MixArgs("v.mp4", Input{Kind: InputLoop, Path: "m.mp3"}, "out.mp4", 100, -24, true)
	got := strings.Join(args, " ")
	want := "-i v.mp4 -i m.mp3 -filter_complex " +
		"[1:a]aloop=loop=-1:size=2e9,atrim=0:100,afade=t=out:st=97:d=3,volume=-24dB[bg_music];" +
		"[0:a][bg_music]amix=inputs=2:duration=first:weights=1 0.3[aout] " +
		"-map 0:v -map [aout] -c:v copy -c:a aac -b:a 192k -ar 48000 -ac 2 -movflags +faststart -y out.mp4"
	if got != want {
		t.Fatalf("got  %q\nwant %q", got, want)
	}
}

func TestMixArgsWithoutOriginalAudio(t *testing.T) {
	args := MixArgs("v.mp4", Input{Kind: InputSequence, Path: "bed.m4a"}, "out.mp4", 2, -10, false)
	got := strings.Join(args, " ")
	if strings.Contains(got, "amix") || strings.Contains(got, "aloop") {
		t.Fatalf("unexpected filters in %q", got)
	}
	if !strings.Contains(got, "[1:a]atrim=0:2,afade=t=out:st=0:d=3,volume=-10dB[bg_music]") {
		t.Fatalf("unexpected music chain in %q", got)
	}
	if !strings.Contains(got, "-map 0:v -map [bg_music]") {
		t.Fatalf("expected music-only mapping in %q", got)
	}
}

func TestMixProbesVideoForAudio(t *testing.T) {
	prober := &testsupport.StaticProber{Default: media.Info{HasVideo: true, DurationSeconds: 30}}
	engine := &testsupport.FakeEngine{}
	mixer := NewMixer(prober, engine, nil)
	if err := mixer.Mix(context.Background(), "v.mp4", Input{Kind: InputSingle, Path: "m.mp3"}, t.TempDir()+"/out.mp4", 0, -24); err != nil {
		t.Fatalf("Mix: %v", err)
	}
	calls := engine.CallsContaining("[bg_music]")
	if len(calls) != 1 || !strings.Contains(strings.Join(calls[0], " "), "atrim=0:30") {
		t.Fatalf("expected probed duration in mix call, got %v", engine.Calls())
	}
}

func TestMixForwardsEngineProgress(t *testing.T) {
	prober := &testsupport.StaticProber{Default: media.Info{HasAudio: true, HasVideo: true, DurationSeconds: 12}}
	var seen []float64
	mixer := NewMixer(prober, &testsupport.FakeEngine{}, nil, WithMixProgress(func(percent float64) {
		seen = append(seen, percent)
	}))
	if err := mixer.Mix(context.Background(), "v.mp4", Input{Kind: InputLoop, Path: "m.mp3"}, t.TempDir()+"/out.mp4", 12, -24); err != nil {
		t.Fatalf("Mix: %v", err)
	}
	if len(seen) != 1 || seen[0] != 100 {
		t.Fatalf("expected engine progress forwarded, got %v", seen)
	}
}

func TestMixFailures(t *testing.T) {
	prober := &testsupport.StaticProber{Err: errors.New("boom")}
	mixer := NewMixer(prober, &testsupport.FakeEngine{}, nil)
	if err := mixer.Mix(context.Background(), "v.mp4", Input{Kind: InputLoop, Path: "m.mp3"}, "out.mp4", 10, -24); !errors.Is(err, services.ErrMix) {
		t.Fatalf("expected ErrMix on probe failure, got %v", err)
	}

	prober = &testsupport.StaticProber{Default: media.Info{HasAudio: true, HasVideo: true}}
	mixer = NewMixer(prober, &testsupport.FakeEngine{FailOn: []string{"amix"}}, nil)
	if err := mixer.Mix(context.Background(), "v.mp4", Input{Kind: InputLoop, Path: "m.mp3"}, "out.mp4", 10, -24); !errors.Is(err, services.ErrMix) {
		t.Fatalf("expected ErrMix on engine failure, got %v", err)
	}
}
