package ffprobe

import (
	"math"
	"testing"
)

const sampleJSON = `{
  "streams": [
    {"index": 0, "codec_name": "h264", "codec_type": "video", "width": 1920, "height": 1080, "r_frame_rate": "30000/1001", "avg_frame_rate": "30000/1001", "duration": "61.995"},
    {"index": 1, "codec_name": "aac", "codec_type": "audio", "sample_rate": "48000", "channels": 2, "r_frame_rate": "0/0", "duration": "62.016"}
  ],
  "format": {"filename": "talk.mp4", "nb_streams": 2, "duration": "62.016000", "size": "1048576", "format_name": "mov,mp4,m4a,3gp,3g2,mj2"}
}`

func TestDecodeSample(t *testing.T) {
	result, err := Decode([]byte(sampleJSON))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if result.VideoStreamCount() != 1 || result.AudioStreamCount() != 1 {
		t.Fatalf("unexpected stream counts: %d video, %d audio", result.VideoStreamCount(), result.AudioStreamCount())
	}
	if result.DurationSeconds() != 62.016 {
		t.Fatalf("unexpected duration: %v", result.DurationSeconds())
	}
	if result.SizeBytes() != 1048576 {
		t.Fatalf("unexpected size: %d", result.SizeBytes())
	}
	video, ok := result.FirstStream("video")
	if !ok {
		t.Fatal("expected video stream")
	}
	if rate := video.FrameRate(); math.Abs(rate-29.97) > 0.01 {
		t.Fatalf("unexpected frame rate: %v", rate)
	}
	audio, ok := result.FirstStream("audio")
	if !ok {
		t.Fatal("expected audio stream")
	}
	if audio.SampleRateHz() != 48000 || audio.Channels != 2 {
		t.Fatalf("unexpected audio stream: %+v", audio)
	}
	if audio.FrameRate() != 0 {
		t.Fatalf("expected 0 frame rate for audio, got %v", audio.FrameRate())
	}
}

func TestDurationFallsBackToStreams(t *testing.T) {
	result := Result{
		Streams: []Stream{{CodecType: "video", Duration: "10.5"}, {CodecType: "audio", Duration: "11.25"}},
		Format:  Format{Duration: "N/A"},
	}
	if result.DurationSeconds() != 11.25 {
		t.Fatalf("expected stream fallback, got %v", result.DurationSeconds())
	}
}

func TestHelpersHandleInvalidNumbers(t *testing.T) {
	result := Result{Format: Format{Size: "-1"}}
	if result.SizeBytes() != 0 {
		t.Fatalf("expected size 0, got %d", result.SizeBytes())
	}
	if result.DurationSeconds() != 0 {
		t.Fatalf("expected duration 0, got %v", result.DurationSeconds())
	}
	if rate := parseRational("25/0"); rate != 0 {
		t.Fatalf("expected 0 for zero denominator, got %v", rate)
	}
	if rate := parseRational("25"); rate != 25 {
		t.Fatalf("expected plain rate 25, got %v", rate)
	}
}

func TestDecodeRejectsGarbage(t *testing.T) {
	if _, err := Decode([]byte("not json")); err == nil {
		t.Fatal("expected parse error")
	}
}
