package segments

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"

	"klyppr/internal/logging"
	"klyppr/internal/media/ffmpeg"
	"klyppr/internal/media/filters"
	"klyppr/internal/services"
)

// DefaultBatchSize is how many segments are extracted concurrently.
const DefaultBatchSize = 4

// Extractor cuts segments out of a source file.
type Extractor struct {
	runner    ffmpeg.Runner
	batchSize int
	logger    *slog.Logger
	progress  func(done, total int)
}

// ExtractorOption configures an Extractor.
type ExtractorOption func(*Extractor)

// WithBatchSize overrides DefaultBatchSize.
func WithBatchSize(n int) ExtractorOption {
	return func(e *Extractor) {
		if n > 0 {
			e.batchSize = n
		}
	}
}

// WithExtractorLogger attaches a logger.
func WithExtractorLogger(logger *slog.Logger) ExtractorOption {
	return func(e *Extractor) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithBatchProgress registers a callback invoked after every batch with the
// number of segments completed so far.
func WithBatchProgress(fn func(done, total int)) ExtractorOption {
	return func(e *Extractor) {
		e.progress = fn
	}
}

// NewExtractor constructs an extractor.
func NewExtractor(runner ffmpeg.Runner, opts ...ExtractorOption) *Extractor {
	e := &Extractor{
		runner:    runner,
		batchSize: DefaultBatchSize,
		logger:    logging.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// SegmentFileName returns the file name used for the segment at index.
func SegmentFileName(index int) string {
	return fmt.Sprintf("segment_%04d.mp4", index)
}

// ExtractAll cuts every segment of input into dir and returns the files in
// segment order. Each batch is awaited in full before the next starts. On
// failure, files already written stay in dir for the caller to remove.
func (e *Extractor) ExtractAll(ctx context.Context, input string, segments []Segment, dir string, normalize bool) ([]string, error) {
	const phase = "extracting_segments"
	logger := logging.WithContext(ctx, e.logger)

	files := make([]string, len(segments))
	for i := range segments {
		files[i] = filepath.Join(dir, SegmentFileName(i))
	}

	total := len(segments)
	for start := 0; start < total; start += e.batchSize {
		end := min(start+e.batchSize, total)
		errs := make([]error, end-start)

		var wg sync.WaitGroup
		for i := start; i < end; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				args := ExtractArgs(input, segments[i], files[i], normalize)
				errs[i-start] = e.runner.Run(ctx, args, nil, ffmpeg.WithDuration(segments[i].Duration()))
			}(i)
		}
		wg.Wait()

		for offset, err := range errs {
			if err != nil {
				idx := start + offset
				seg := segments[idx]
				return nil, services.Wrap(services.ErrExtraction, phase, "extract",
					fmt.Sprintf("segment %d [%s, %s)", idx, filters.Number(seg.Start), filters.Number(seg.End)), err)
			}
		}

		logger.Debug("segment batch extracted", logging.Int("completed", end), logging.Int("total", total))
		if e.progress != nil {
			e.progress(end, total)
		}
	}
	return files, nil
}

// ExtractArgs builds the ffmpeg arguments that cut seg from input to output.
func ExtractArgs(input string, seg Segment, output string, normalize bool) []string {
	args := []string{"-y", "-i", input}
	if normalize {
		args = append(args, "-af", filters.Loudnorm())
	}
	args = append(args,
		"-ss", filters.Number(seg.Start),
		"-t", filters.Number(seg.Duration()),
		"-c:v", "libx264", "-preset", "ultrafast", "-crf", "20",
	)
	args = append(args, ffmpeg.AudioProfileArgs()...)
	args = append(args,
		"-avoid_negative_ts", "make_zero",
		"-max_muxing_queue_size", "9999",
		output,
	)
	return args
}
