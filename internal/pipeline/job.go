package pipeline

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"klyppr/internal/config"
	"klyppr/internal/services"
	"klyppr/internal/staging"
)

// Job holds the immutable parameters of one run.
type Job struct {
	InputPath              string
	OutputPath             string
	AutoCutSilence         bool
	NormalizeAudio         bool
	SilenceThresholdDB     float64
	MinSilenceDuration     float64
	PaddingDuration        float64
	BackgroundMusicEnabled bool
}

// JobFromConfig seeds a job with the configured defaults.
func JobFromConfig(cfg *config.Config, input, output string) Job {
	return Job{
		InputPath:          input,
		OutputPath:         output,
		AutoCutSilence:     cfg.Silence.AutoCut,
		NormalizeAudio:     cfg.Audio.Normalize,
		SilenceThresholdDB: cfg.Silence.ThresholdDB,
		MinSilenceDuration: cfg.Silence.MinDuration,
		PaddingDuration:    cfg.Silence.Padding,
	}
}

// Validate checks the job parameters before any work starts.
func (j Job) Validate() error {
	const op = "validate job"
	if strings.TrimSpace(j.InputPath) == "" {
		return services.Wrap(services.ErrValidation, "", op, "input path is required", nil)
	}
	if strings.TrimSpace(j.OutputPath) == "" {
		return services.Wrap(services.ErrValidation, "", op, "output path is required", nil)
	}
	info, err := os.Stat(j.InputPath)
	if err != nil {
		return services.Wrap(services.ErrValidation, "", op, "input "+j.InputPath, err)
	}
	if info.IsDir() {
		return services.Wrap(services.ErrValidation, "", op, "input "+j.InputPath+" is a directory", nil)
	}
	if sameFile(j.InputPath, j.OutputPath) {
		return services.Wrap(services.ErrValidation, "", op, "output would overwrite the input", nil)
	}
	if !j.AutoCutSilence {
		return nil
	}
	if j.SilenceThresholdDB >= 0 {
		return services.Wrap(services.ErrValidation, "", op, fmt.Sprintf("silence threshold must be negative dB, got %v", j.SilenceThresholdDB), nil)
	}
	if j.MinSilenceDuration <= 0 {
		return services.Wrap(services.ErrValidation, "", op, "minimum silence duration must be positive", nil)
	}
	// Padding wider than the silence is allowed; the detector drops intervals
	// that shrink below its acceptance floor.
	if j.PaddingDuration < 0 {
		return services.Wrap(services.ErrValidation, "", op, "padding must not be negative", nil)
	}
	return nil
}

func sameFile(a, b string) bool {
	ai, errA := os.Stat(a)
	bi, errB := os.Stat(b)
	if errA == nil && errB == nil {
		return os.SameFile(ai, bi)
	}
	absA, errA := filepath.Abs(a)
	absB, errB := filepath.Abs(b)
	return errA == nil && errB == nil && absA == absB
}

// OutputPrefix is prepended to the input name when the output is a directory.
const OutputPrefix = "processed_"

// ResolveOutputPath returns the file a job writes. A directory output (an
// existing directory or a path ending in a separator) receives
// processed_<input basename>.
func ResolveOutputPath(input, output string) string {
	output = strings.TrimSpace(output)
	isDir := strings.HasSuffix(output, string(os.PathSeparator))
	if info, err := os.Stat(output); err == nil && info.IsDir() {
		isDir = true
	}
	if isDir {
		return filepath.Join(output, OutputPrefix+filepath.Base(input))
	}
	return output
}

// JobContext is the mutable state of one running job. It is owned by the
// goroutine executing Run.
type JobContext struct {
	ID           string
	Job          Job
	TempDir      string
	SegmentFiles []string

	mu      sync.Mutex
	phase   Phase
	percent float64
}

// NewJobContext creates the job's temp directory under parent.
func NewJobContext(id string, job Job, parent string) (*JobContext, error) {
	dir, err := staging.Create(parent, id)
	if err != nil {
		return nil, err
	}
	return &JobContext{ID: id, Job: job, TempDir: dir, phase: PhaseIdle}, nil
}

// Path returns name inside the job's temp directory.
func (jc *JobContext) Path(name string) string {
	return filepath.Join(jc.TempDir, name)
}

// Phase returns the current phase.
func (jc *JobContext) Phase() Phase {
	jc.mu.Lock()
	defer jc.mu.Unlock()
	return jc.phase
}

// Percent returns the last reported overall progress.
func (jc *JobContext) Percent() float64 {
	jc.mu.Lock()
	defer jc.mu.Unlock()
	return jc.percent
}

// Transition moves the job to next when the phase table allows it.
func (jc *JobContext) Transition(next Phase) error {
	jc.mu.Lock()
	defer jc.mu.Unlock()
	if !jc.phase.CanTransition(next) {
		return &TransitionError{From: jc.phase, To: next}
	}
	jc.phase = next
	if next == PhaseCompleted {
		jc.percent = 100
	}
	return nil
}

func (jc *JobContext) setPercent(percent float64) {
	jc.mu.Lock()
	jc.percent = percent
	jc.mu.Unlock()
}

// Close removes the temp directory and everything in it.
func (jc *JobContext) Close() error {
	if jc == nil || jc.TempDir == "" {
		return nil
	}
	if err := os.RemoveAll(jc.TempDir); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove job directory: %w", err)
	}
	return nil
}
