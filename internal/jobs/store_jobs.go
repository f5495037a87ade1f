package jobs

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned when no job matches an identifier.
var ErrNotFound = errors.New("job not found")

// NewJob describes a job about to start.
type NewJob struct {
	InputPath  string
	OutputPath string
	AutoCut    bool
	Normalize  bool
	Music      bool
}

// Create inserts a running job and returns it with a fresh ID.
func (s *Store) Create(ctx context.Context, spec NewJob) (*Job, error) {
	if strings.TrimSpace(spec.InputPath) == "" {
		return nil, errors.New("input path is required")
	}
	id := uuid.NewString()
	timestamp := s.now().UTC().Format(time.RFC3339Nano)
	if _, err := s.exec(
		ctx,
		`INSERT INTO jobs (
            id, input_path, output_path, status, auto_cut, normalize, music,
            created_at, updated_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id,
		spec.InputPath,
		nullableString(spec.OutputPath),
		StatusRunning,
		boolToInt(spec.AutoCut),
		boolToInt(spec.Normalize),
		boolToInt(spec.Music),
		timestamp,
		timestamp,
	); err != nil {
		return nil, fmt.Errorf("insert job: %w", err)
	}
	return s.Get(ctx, id)
}

// Get fetches a job by ID.
func (s *Store) Get(ctx context.Context, id string) (*Job, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = ?`, id)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	return job, nil
}

// Find resolves a full ID or a unique ID prefix, as shown in job listings.
func (s *Store) Find(ctx context.Context, ref string) (*Job, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil, fmt.Errorf("%w: empty id", ErrNotFound)
	}
	rows, err := s.db.QueryContext(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id LIKE ? ORDER BY created_at LIMIT 2`, ref+"%")
	if err != nil {
		return nil, fmt.Errorf("find job: %w", err)
	}
	defer rows.Close()

	var matches []*Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		matches = append(matches, job)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	switch len(matches) {
	case 0:
		return nil, fmt.Errorf("%w: %s", ErrNotFound, ref)
	case 1:
		return matches[0], nil
	default:
		return nil, fmt.Errorf("job id prefix %q is ambiguous", ref)
	}
}

// Update persists every mutable field of job.
func (s *Store) Update(ctx context.Context, job *Job) error {
	if job == nil {
		return errors.New("job is nil")
	}
	job.UpdatedAt = s.now().UTC()
	res, err := s.exec(
		ctx,
		`UPDATE jobs
         SET output_path = ?, status = ?, phase = ?, progress_percent = ?,
             progress_message = ?, error_message = ?, input_duration = ?,
             expected_duration = ?, segment_count = ?, updated_at = ?, finished_at = ?
         WHERE id = ?`,
		nullableString(job.OutputPath),
		job.Status,
		nullableString(job.Phase),
		job.ProgressPercent,
		nullableString(job.ProgressMessage),
		nullableString(job.ErrorMessage),
		job.InputDuration,
		job.ExpectedDuration,
		job.SegmentCount,
		job.UpdatedAt.Format(time.RFC3339Nano),
		nullableTime(job.FinishedAt),
		job.ID,
	)
	if err != nil {
		return fmt.Errorf("update job: %w", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, job.ID)
	}
	return nil
}

// UpdateProgress records the phase and percentage of a running job.
func (s *Store) UpdateProgress(ctx context.Context, id, phase string, percent float64, message string) error {
	timestamp := s.now().UTC().Format(time.RFC3339Nano)
	if _, err := s.exec(
		ctx,
		`UPDATE jobs SET phase = ?, progress_percent = ?, progress_message = ?, updated_at = ?
         WHERE id = ? AND status = ?`,
		nullableString(phase),
		percent,
		nullableString(message),
		timestamp,
		id,
		StatusRunning,
	); err != nil {
		return fmt.Errorf("update progress: %w", err)
	}
	return nil
}

// Finish marks a job completed or failed. A non-nil cause fails the job and
// records its message; the phase is kept so the failure points at the stage
// that broke.
func (s *Store) Finish(ctx context.Context, job *Job, outputPath string, cause error) error {
	if job == nil {
		return errors.New("job is nil")
	}
	now := s.now().UTC()
	job.FinishedAt = &now
	if outputPath != "" {
		job.OutputPath = outputPath
	}
	if cause != nil {
		job.Status = StatusFailed
		job.ErrorMessage = cause.Error()
	} else {
		job.Status = StatusCompleted
		job.ProgressPercent = 100
		job.ErrorMessage = ""
	}
	return s.Update(ctx, job)
}

// ListOptions filters List.
type ListOptions struct {
	Statuses []Status
	// Limit caps the number of rows; zero means no cap.
	Limit int
}

// List returns jobs newest first.
func (s *Store) List(ctx context.Context, opts ListOptions) ([]*Job, error) {
	query := `SELECT ` + jobColumns + ` FROM jobs`
	args := make([]any, 0, len(opts.Statuses)+1)
	if len(opts.Statuses) > 0 {
		query += ` WHERE status IN (` + makePlaceholders(len(opts.Statuses)) + `)`
		for _, status := range opts.Statuses {
			args = append(args, status)
		}
	}
	query += ` ORDER BY created_at DESC`
	if opts.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, opts.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// Remove deletes a job by ID.
func (s *Store) Remove(ctx context.Context, id string) (bool, error) {
	res, err := s.exec(ctx, `DELETE FROM jobs WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("delete job: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

// ClearFinished removes completed and failed jobs.
func (s *Store) ClearFinished(ctx context.Context) (int64, error) {
	res, err := s.exec(ctx, `DELETE FROM jobs WHERE status IN (?, ?)`, StatusCompleted, StatusFailed)
	if err != nil {
		return 0, fmt.Errorf("clear finished: %w", err)
	}
	return res.RowsAffected()
}

// Clear removes every job.
func (s *Store) Clear(ctx context.Context) (int64, error) {
	res, err := s.exec(ctx, `DELETE FROM jobs`)
	if err != nil {
		return 0, fmt.Errorf("clear jobs: %w", err)
	}
	return res.RowsAffected()
}

// MarkInterrupted fails running jobs last updated before cutoff. Those were
// left behind by a process that exited mid-run.
func (s *Store) MarkInterrupted(ctx context.Context, cutoff time.Time) (int64, error) {
	timestamp := s.now().UTC().Format(time.RFC3339Nano)
	res, err := s.exec(
		ctx,
		`UPDATE jobs SET status = ?, error_message = ?, updated_at = ?, finished_at = ?
         WHERE status = ? AND updated_at < ?`,
		StatusFailed,
		InterruptedReason,
		timestamp,
		timestamp,
		StatusRunning,
		cutoff.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return 0, fmt.Errorf("mark interrupted: %w", err)
	}
	return res.RowsAffected()
}

// Stats returns a count of jobs grouped by status.
func (s *Store) Stats(ctx context.Context) (map[Status]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(1) FROM jobs GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("job stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[Status]int)
	for rows.Next() {
		var status Status
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		stats[status] = count
	}
	return stats, rows.Err()
}
