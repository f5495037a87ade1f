package logging

import (
	"math"
	"strings"
)

// ProgressSampler thins progress logging to one line per step of percent
// within a phase. A new phase always logs and restarts the steps.
type ProgressSampler struct {
	step  float64
	phase string
	next  float64
}

// NewProgressSampler returns a sampler that logs every step percent. A
// non-positive step selects 5.
func NewProgressSampler(step float64) *ProgressSampler {
	if step <= 0 {
		step = 5
	}
	return &ProgressSampler{step: step}
}

// ShouldLog reports whether a progress event at percent within phase should
// be logged. A negative percent means the total is unknown and only phase
// changes log. A nil sampler logs everything.
func (s *ProgressSampler) ShouldLog(percent float64, phase string) bool {
	if s == nil {
		return true
	}
	changed := false
	if phase = strings.TrimSpace(phase); phase != "" && phase != s.phase {
		s.phase = phase
		s.next = 0
		changed = true
	}
	if percent < 0 || percent < s.next {
		return changed
	}
	if percent >= 100 {
		s.next = math.Inf(1)
	} else {
		s.next = (math.Floor(percent/s.step) + 1) * s.step
	}
	return true
}

// Reset forgets the current phase so the next event always logs.
func (s *ProgressSampler) Reset() {
	if s != nil {
		s.phase, s.next = "", 0
	}
}
