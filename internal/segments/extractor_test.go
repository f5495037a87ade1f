package segments

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"sync"
	"testing"

	"klyppr/internal/media/ffmpeg"
	"klyppr/internal/services"
	"klyppr/internal/testsupport"
)

func TestExtractArgs(t *testing.T) {
	got := strings.Join(ExtractArgs("/in/talk.mp4", Segment{Start: 2.5, End: 4}, "/tmp/segment_0000.mp4", true), " ")
	want := "-y -i /in/talk.mp4 -af loudnorm=I=-16:TP=-1.5:LRA=11 -ss 2.5 -t 1.5 -c:v libx264 -preset ultrafast -crf 20 " +
		"-c:a aac -b:a 192k -ar 48000 -ac 2 -avoid_negative_ts make_zero -max_muxing_queue_size 9999 /tmp/segment_0000.mp4"
	if got != want {
		t.Fatalf("got  %q\nwant %q", got, want)
	}

	plain := strings.Join(ExtractArgs("in.mp4", Segment{Start: 0, End: 1}, "out.mp4", false), " ")
	if strings.Contains(plain, "loudnorm") {
		t.Fatalf("expected no loudnorm without normalize: %q", plain)
	}
}

func TestExtractAllOrdersFilesAndReportsBatches(t *testing.T) {
	dir := t.TempDir()
	engine := &testsupport.FakeEngine{}
	var progress []int
	extractor := NewExtractor(engine, WithBatchSize(2), WithBatchProgress(func(done, total int) {
		if total != 5 {
			t.Fatalf("unexpected total %d", total)
		}
		progress = append(progress, done)
	}))

	segs := []Segment{{0, 1}, {2, 3}, {4, 5}, {6, 7}, {8, 9}}
	files, err := extractor.ExtractAll(context.Background(), "in.mp4", segs, dir, false)
	if err != nil {
		t.Fatalf("ExtractAll: %v", err)
	}
	for i, file := range files {
		want := filepath.Join(dir, SegmentFileName(i))
		if file != want {
			t.Fatalf("file %d = %q, want %q", i, file, want)
		}
		if _, err := os.Stat(file); err != nil {
			t.Fatalf("expected %s to exist: %v", file, err)
		}
	}
	if !reflect.DeepEqual(progress, []int{2, 4, 5}) {
		t.Fatalf("unexpected batch progress %v", progress)
	}
	if len(engine.Calls()) != 5 {
		t.Fatalf("expected 5 extractions, got %d", len(engine.Calls()))
	}
}

type gatedRunner struct {
	mu       sync.Mutex
	inFlight int
	peak     int
}

func (g *gatedRunner) Run(_ context.Context, args []string, _ ffmpeg.Handler, _ ...ffmpeg.RunOption) error {
	g.mu.Lock()
	g.inFlight++
	if g.inFlight > g.peak {
		g.peak = g.inFlight
	}
	g.mu.Unlock()

	err := os.WriteFile(args[len(args)-1], nil, 0o644)

	g.mu.Lock()
	g.inFlight--
	g.mu.Unlock()
	return err
}

func TestExtractAllBoundsConcurrency(t *testing.T) {
	runner := &gatedRunner{}
	extractor := NewExtractor(runner, WithBatchSize(3))
	segs := make([]Segment, 10)
	for i := range segs {
		segs[i] = Segment{Start: float64(i), End: float64(i) + 0.5}
	}
	if _, err := extractor.ExtractAll(context.Background(), "in.mp4", segs, t.TempDir(), true); err != nil {
		t.Fatalf("ExtractAll: %v", err)
	}
	if runner.peak > 3 {
		t.Fatalf("expected at most 3 concurrent extractions, saw %d", runner.peak)
	}
}

func TestExtractAllFailureStopsBeforeNextBatch(t *testing.T) {
	dir := t.TempDir()
	engine := &testsupport.FakeEngine{FailOn: []string{"segment_0001.mp4"}}
	extractor := NewExtractor(engine, WithBatchSize(2))

	segs := []Segment{{0, 1}, {2, 3}, {4, 5}}
	_, err := extractor.ExtractAll(context.Background(), "in.mp4", segs, dir, false)
	if !errors.Is(err, services.ErrExtraction) {
		t.Fatalf("expected ErrExtraction, got %v", err)
	}
	if !strings.Contains(err.Error(), "segment 1") {
		t.Fatalf("expected failing segment in error, got %v", err)
	}
	if len(engine.Calls()) != 2 {
		t.Fatalf("expected the third segment to be skipped, got %d calls", len(engine.Calls()))
	}
	if _, err := os.Stat(filepath.Join(dir, SegmentFileName(0))); err != nil {
		t.Fatalf("expected completed segment to be left for cleanup: %v", err)
	}
}
