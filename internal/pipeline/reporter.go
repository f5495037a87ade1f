package pipeline

import "sync"

// Progress is one progress observation.
type Progress struct {
	Phase   Phase
	Percent float64
}

// Completion is the result handed back when a job ends.
type Completion struct {
	Success    bool
	OutputPath string
	// FailedPhase is set when Success is false.
	FailedPhase Phase
}

// Reporter receives progress and log lines while a job runs. Calls arrive
// from the job goroutine and, during extraction, from worker goroutines, so
// implementations must be safe for concurrent use.
type Reporter interface {
	Progress(Progress)
	Log(line string)
}

// NopReporter discards everything.
type NopReporter struct{}

func (NopReporter) Progress(Progress) {}

func (NopReporter) Log(string) {}

// ReporterFuncs adapts plain functions to a Reporter. Nil fields are skipped.
type ReporterFuncs struct {
	OnProgress func(Progress)
	OnLog      func(string)
}

func (r ReporterFuncs) Progress(p Progress) {
	if r.OnProgress != nil {
		r.OnProgress(p)
	}
}

func (r ReporterFuncs) Log(line string) {
	if r.OnLog != nil {
		r.OnLog(line)
	}
}

// ChannelReporter forwards reports onto buffered channels. Sends never block
// the job: when a buffer is full the report is dropped, except for terminal
// phases, which evict the oldest queued progress so the consumer always sees
// how the job ended.
type ChannelReporter struct {
	progress chan Progress
	logs     chan string
	once     sync.Once
	mu       sync.RWMutex
	closed   bool
}

// NewChannelReporter creates a reporter with the given buffer size.
func NewChannelReporter(buffer int) *ChannelReporter {
	if buffer < 1 {
		buffer = 1
	}
	return &ChannelReporter{
		progress: make(chan Progress, buffer),
		logs:     make(chan string, buffer),
	}
}

// ProgressC returns the progress channel.
func (r *ChannelReporter) ProgressC() <-chan Progress { return r.progress }

// LogC returns the log line channel.
func (r *ChannelReporter) LogC() <-chan string { return r.logs }

func (r *ChannelReporter) Progress(p Progress) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		return
	}
	if !p.Phase.Terminal() {
		select {
		case r.progress <- p:
		default:
		}
		return
	}
	for {
		select {
		case r.progress <- p:
			return
		default:
		}
		select {
		case <-r.progress:
		default:
		}
	}
}

func (r *ChannelReporter) Log(line string) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		return
	}
	select {
	case r.logs <- line:
	default:
	}
}

// Close closes both channels. Reports after Close are dropped.
func (r *ChannelReporter) Close() {
	r.once.Do(func() {
		r.mu.Lock()
		r.closed = true
		close(r.progress)
		close(r.logs)
		r.mu.Unlock()
	})
}
