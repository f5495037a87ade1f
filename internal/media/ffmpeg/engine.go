package ffmpeg

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
)

// EventKind identifies the lifecycle signal carried by an Event.
type EventKind int

const (
	EventStart EventKind = iota
	EventLine
	EventProgress
	EventError
	EventEnd
)

func (k EventKind) String() string {
	switch k {
	case EventStart:
		return "start"
	case EventLine:
		return "line"
	case EventProgress:
		return "progress"
	case EventError:
		return "error"
	case EventEnd:
		return "end"
	default:
		return "unknown"
	}
}

// Event is one signal emitted while an invocation runs.
type Event struct {
	Kind EventKind
	// Line holds the raw stderr line for EventLine, or the joined command
	// line for EventStart.
	Line string
	// Diagnostic marks lines that ffmpeg used to report a problem.
	Diagnostic bool
	Percent    float64
	Err        error
}

// Handler receives events. It is never called concurrently.
type Handler func(Event)

// Runner executes one ffmpeg invocation.
type Runner interface {
	Run(ctx context.Context, args []string, handler Handler, opts ...RunOption) error
}

// Executor abstracts command execution for testability.
type Executor interface {
	Run(ctx context.Context, binary string, args []string, onLine func(string)) error
}

// Option configures the engine.
type Option func(*Engine)

// WithExecutor injects a custom executor (primarily for tests).
func WithExecutor(exec Executor) Option {
	return func(e *Engine) {
		if exec != nil {
			e.exec = exec
		}
	}
}

// WithTailSize sets how many diagnostic lines a RunError keeps.
func WithTailSize(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.tailSize = n
		}
	}
}

// Engine wraps ffmpeg CLI invocations.
type Engine struct {
	binary   string
	exec     Executor
	tailSize int
}

const defaultTailSize = 8

// New constructs an ffmpeg engine.
func New(binary string, opts ...Option) *Engine {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		binary = "ffmpeg"
	}
	engine := &Engine{
		binary:   binary,
		exec:     commandExecutor{},
		tailSize: defaultTailSize,
	}
	for _, opt := range opts {
		opt(engine)
	}
	return engine
}

// Binary returns the ffmpeg executable the engine invokes.
func (e *Engine) Binary() string {
	return e.binary
}

// RunError reports a failed invocation.
type RunError struct {
	Args []string
	Tail []string
	Err  error
}

func (e *RunError) Error() string {
	if len(e.Tail) == 0 {
		return fmt.Sprintf("ffmpeg: %v", e.Err)
	}
	return fmt.Sprintf("ffmpeg: %v: %s", e.Err, e.Tail[len(e.Tail)-1])
}

func (e *RunError) Unwrap() error {
	return e.Err
}

// Diagnostics returns the tail of diagnostic lines captured before failure.
func (e *RunError) Diagnostics() string {
	return strings.Join(e.Tail, "\n")
}

type runOptions struct {
	duration float64
}

// RunOption tunes a single invocation.
type RunOption func(*runOptions)

// WithDuration seeds the progress denominator, for runs whose output is
// shorter than the input header advertises.
func WithDuration(seconds float64) RunOption {
	return func(o *runOptions) {
		if seconds > 0 {
			o.duration = seconds
		}
	}
}

// Run executes ffmpeg with the provided arguments, emitting events to handler.
// The engine always prepends -hide_banner and -nostdin.
func (e *Engine) Run(ctx context.Context, args []string, handler Handler, opts ...RunOption) error {
	if len(args) == 0 {
		return errors.New("ffmpeg: no arguments")
	}
	var ro runOptions
	for _, opt := range opts {
		opt(&ro)
	}
	full := append([]string{"-hide_banner", "-nostdin"}, args...)

	// The executor calls onLine from one goroutine per output stream. mu
	// guards the tail, the tracker and handler delivery.
	var mu sync.Mutex
	deliver := func(ev Event) {
		if handler != nil {
			handler(ev)
		}
	}
	emit := func(ev Event) {
		mu.Lock()
		defer mu.Unlock()
		deliver(ev)
	}

	tracker := newProgressTracker(ro.duration)
	tail := newLineTail(e.tailSize)

	emit(Event{Kind: EventStart, Line: e.binary + " " + strings.Join(full, " ")})
	err := e.exec.Run(ctx, e.binary, full, func(line string) {
		line = strings.TrimSpace(line)
		if line == "" {
			return
		}
		mu.Lock()
		defer mu.Unlock()
		diagnostic := IsDiagnostic(line)
		if diagnostic {
			tail.add(line)
		}
		deliver(Event{Kind: EventLine, Line: line, Diagnostic: diagnostic})
		if percent, ok := tracker.observe(line); ok {
			deliver(Event{Kind: EventProgress, Percent: percent})
		}
	})
	if err != nil {
		mu.Lock()
		runErr := &RunError{Args: full, Tail: tail.lines(), Err: err}
		mu.Unlock()
		emit(Event{Kind: EventError, Err: runErr})
		return runErr
	}
	emit(Event{Kind: EventEnd, Percent: 100})
	return nil
}

var diagnosticMarkers = []string{"Error", "Invalid", "does not exist", "No such file", "Conversion failed"}

// IsDiagnostic reports whether ffmpeg used line to report a problem.
func IsDiagnostic(line string) bool {
	for _, marker := range diagnosticMarkers {
		if strings.Contains(line, marker) {
			return true
		}
	}
	return false
}

type lineTail struct {
	size int
	buf  []string
}

func newLineTail(size int) *lineTail {
	return &lineTail{size: size}
}

func (t *lineTail) add(line string) {
	t.buf = append(t.buf, line)
	if len(t.buf) > t.size {
		t.buf = t.buf[len(t.buf)-t.size:]
	}
}

func (t *lineTail) lines() []string {
	return append([]string(nil), t.buf...)
}
