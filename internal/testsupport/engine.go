package testsupport

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"klyppr/internal/media"
	"klyppr/internal/media/ffmpeg"
)

// FakeEngine implements ffmpeg.Runner without spawning processes. Every call
// is recorded and, unless it fails, the output (last argument) is created.
type FakeEngine struct {
	mu    sync.Mutex
	calls [][]string

	// Lines are replayed as EventLine events for calls matching the key
	// substring of the joined arguments.
	Lines map[string][]string
	// FailOn fails calls whose joined arguments contain any of the entries.
	FailOn []string
	// Err is returned for failed calls; defaults to a RunError.
	Err error
}

// Run records args and simulates the invocation.
func (f *FakeEngine) Run(_ context.Context, args []string, handler ffmpeg.Handler, _ ...ffmpeg.RunOption) error {
	joined := strings.Join(args, " ")
	f.mu.Lock()
	f.calls = append(f.calls, append([]string(nil), args...))
	f.mu.Unlock()

	emit := func(ev ffmpeg.Event) {
		if handler != nil {
			handler(ev)
		}
	}
	emit(ffmpeg.Event{Kind: ffmpeg.EventStart, Line: "ffmpeg " + joined})
	for key, lines := range f.Lines {
		if !strings.Contains(joined, key) {
			continue
		}
		for _, line := range lines {
			emit(ffmpeg.Event{Kind: ffmpeg.EventLine, Line: line, Diagnostic: ffmpeg.IsDiagnostic(line)})
		}
	}
	for _, marker := range f.FailOn {
		if strings.Contains(joined, marker) {
			err := f.Err
			if err == nil {
				err = &ffmpeg.RunError{Args: args, Tail: []string{"Error: simulated failure"}, Err: os.ErrInvalid}
			}
			emit(ffmpeg.Event{Kind: ffmpeg.EventError, Err: err})
			return err
		}
	}
	if len(args) > 0 {
		out := args[len(args)-1]
		if out != "-" && out != "" {
			if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil {
				return err
			}
			if err := os.WriteFile(out, []byte("fake media"), 0o644); err != nil {
				return err
			}
		}
	}
	emit(ffmpeg.Event{Kind: ffmpeg.EventProgress, Percent: 100})
	emit(ffmpeg.Event{Kind: ffmpeg.EventEnd, Percent: 100})
	return nil
}

// Calls returns a copy of the recorded argument lists.
func (f *FakeEngine) Calls() [][]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([][]string, len(f.calls))
	for i, call := range f.calls {
		out[i] = append([]string(nil), call...)
	}
	return out
}

// CallsContaining returns recorded calls whose joined arguments contain substr.
func (f *FakeEngine) CallsContaining(substr string) [][]string {
	var out [][]string
	for _, call := range f.Calls() {
		if strings.Contains(strings.Join(call, " "), substr) {
			out = append(out, call)
		}
	}
	return out
}

// StaticProber answers probes from a fixed table keyed by path. Unknown
// paths return Default.
type StaticProber struct {
	mu      sync.Mutex
	Infos   map[string]media.Info
	Default media.Info
	Err     error
	probed  []string
}

// Probe implements media.Prober.
func (p *StaticProber) Probe(_ context.Context, path string) (media.Info, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.probed = append(p.probed, path)
	if p.Err != nil {
		return media.Info{}, p.Err
	}
	if info, ok := p.Infos[path]; ok {
		return info, nil
	}
	return p.Default, nil
}

// Probed returns the paths probed so far.
func (p *StaticProber) Probed() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.probed...)
}
