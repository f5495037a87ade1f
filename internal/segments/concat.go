package segments

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"klyppr/internal/media/ffmpeg"
	"klyppr/internal/services"
)

// Concatenate joins files, in order, into output through the concat demuxer.
// Every file must exist. progress, when set, receives engine percentages.
func Concatenate(ctx context.Context, runner ffmpeg.Runner, files []string, output string, expectedDuration float64, progress func(percent float64)) error {
	const phase = "concatenating"
	if len(files) == 0 {
		return services.Wrap(services.ErrMissingSegment, phase, "verify", "no segment files", nil)
	}
	for _, file := range files {
		if _, err := os.Stat(file); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return services.Wrap(services.ErrMissingSegment, phase, "verify", file, nil)
			}
			return services.Wrap(services.ErrMissingSegment, phase, "verify", file, err)
		}
	}

	manifest, err := WriteManifest(filepath.Dir(output), files)
	if err != nil {
		return services.Wrap(services.ErrConcatenation, phase, "manifest", "", err)
	}
	defer os.Remove(manifest)

	handler := func(ev ffmpeg.Event) {
		if progress != nil && ev.Kind == ffmpeg.EventProgress {
			progress(ev.Percent)
		}
	}
	if err := runner.Run(ctx, ConcatArgs(manifest, output), handler, ffmpeg.WithDuration(expectedDuration)); err != nil {
		return services.Wrap(services.ErrConcatenation, phase, "concat", output, err)
	}
	return nil
}

// WriteManifest writes a concat demuxer list for files into dir and returns
// its path.
func WriteManifest(dir string, files []string) (string, error) {
	var b strings.Builder
	for _, file := range files {
		abs, err := filepath.Abs(file)
		if err != nil {
			return "", fmt.Errorf("resolve %s: %w", file, err)
		}
		b.WriteString("file ")
		b.WriteString(QuoteManifestPath(filepath.ToSlash(abs)))
		b.WriteByte('\n')
	}

	f, err := os.CreateTemp(dir, "concat_*.txt")
	if err != nil {
		return "", err
	}
	if _, err := f.WriteString(b.String()); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", err
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", err
	}
	return f.Name(), nil
}

// QuoteManifestPath single-quotes path for the concat demuxer. Embedded
// quotes close the string, emit an escaped quote and reopen it.
func QuoteManifestPath(path string) string {
	return "'" + strings.ReplaceAll(path, "'", `'\''`) + "'"
}

// ConcatArgs builds the concat demuxer invocation. Audio is re-encoded
// without a loudness filter; segments were normalized when cut.
func ConcatArgs(manifest, output string) []string {
	args := []string{
		"-y",
		"-f", "concat", "-safe", "0",
		"-i", manifest,
		"-c:v", "libx264", "-preset", "fast", "-crf", "18",
	}
	args = append(args, ffmpeg.AudioProfileArgs()...)
	args = append(args,
		"-fps_mode", "cfr",
		"-af", "aresample=async=1",
		"-max_muxing_queue_size", "9999",
	)
	args = append(args, ffmpeg.FastStartArgs()...)
	return append(args, output)
}
