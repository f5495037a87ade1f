package jobs

import (
	"strings"
	"time"
)

// Status represents the lifecycle of a job.
type Status string

const (
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// InterruptedReason is the error recorded for jobs left running by a process
// that exited before finishing them.
const InterruptedReason = "interrupted before completion"

var allStatuses = []Status{StatusRunning, StatusCompleted, StatusFailed}

// ParseStatus converts a string into a Status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	for _, status := range allStatuses {
		if status == normalized {
			return status, true
		}
	}
	return "", false
}

// AllStatuses returns the known statuses.
func AllStatuses() []Status {
	return append([]Status(nil), allStatuses...)
}

// Job is one persisted processing run.
type Job struct {
	ID               string
	InputPath        string
	OutputPath       string
	Status           Status
	Phase            string
	ProgressPercent  float64
	ProgressMessage  string
	ErrorMessage     string
	AutoCut          bool
	Normalize        bool
	Music            bool
	InputDuration    float64
	ExpectedDuration float64
	SegmentCount     int
	CreatedAt        time.Time
	UpdatedAt        time.Time
	FinishedAt       *time.Time
}

// IsFinished reports whether the job reached a terminal status.
func (j *Job) IsFinished() bool {
	return j.Status == StatusCompleted || j.Status == StatusFailed
}

// Elapsed returns the wall time from creation to finish, or to now while the
// job is running.
func (j *Job) Elapsed(now time.Time) time.Duration {
	end := now
	if j.FinishedAt != nil {
		end = *j.FinishedAt
	}
	if j.CreatedAt.IsZero() || end.Before(j.CreatedAt) {
		return 0
	}
	return end.Sub(j.CreatedAt)
}

// Reduction returns the fraction of the input removed by silence cutting.
func (j *Job) Reduction() float64 {
	if j.InputDuration <= 0 || j.ExpectedDuration <= 0 || j.ExpectedDuration >= j.InputDuration {
		return 0
	}
	return 1 - j.ExpectedDuration/j.InputDuration
}
