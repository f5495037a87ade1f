package jobs

import (
	"database/sql"
	"errors"
	"time"
)

const jobColumns = "id, input_path, output_path, status, phase, progress_percent, progress_message, error_message, auto_cut, normalize, music, input_duration, expected_duration, segment_count, created_at, updated_at, finished_at"

func scanJob(scanner interface{ Scan(dest ...any) error }) (*Job, error) {
	var (
		id               string
		inputPath        string
		outputPath       sql.NullString
		statusStr        string
		phase            sql.NullString
		progressPercent  float64
		progressMessage  sql.NullString
		errorMessage     sql.NullString
		autoCut          int
		normalize        int
		music            int
		inputDuration    float64
		expectedDuration float64
		segmentCount     int
		createdRaw       string
		updatedRaw       string
		finishedRaw      sql.NullString
	)
	if err := scanner.Scan(
		&id,
		&inputPath,
		&outputPath,
		&statusStr,
		&phase,
		&progressPercent,
		&progressMessage,
		&errorMessage,
		&autoCut,
		&normalize,
		&music,
		&inputDuration,
		&expectedDuration,
		&segmentCount,
		&createdRaw,
		&updatedRaw,
		&finishedRaw,
	); err != nil {
		return nil, err
	}

	job := &Job{
		ID:               id,
		InputPath:        inputPath,
		OutputPath:       outputPath.String,
		Status:           Status(statusStr),
		Phase:            phase.String,
		ProgressPercent:  progressPercent,
		ProgressMessage:  progressMessage.String,
		ErrorMessage:     errorMessage.String,
		AutoCut:          autoCut != 0,
		Normalize:        normalize != 0,
		Music:            music != 0,
		InputDuration:    inputDuration,
		ExpectedDuration: expectedDuration,
		SegmentCount:     segmentCount,
	}
	if created, err := parseTimeString(createdRaw); err == nil {
		job.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw); err == nil {
		job.UpdatedAt = updated
	}
	if finishedRaw.Valid {
		if finished, err := parseTimeString(finishedRaw.String); err == nil {
			job.FinishedAt = &finished
		}
	}
	return job, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func nullableTime(value *time.Time) any {
	if value == nil {
		return nil
	}
	return value.UTC().Format(time.RFC3339Nano)
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	return time.Parse(time.RFC3339Nano, value)
}

func makePlaceholders(count int) string {
	if count <= 0 {
		return ""
	}
	placeholders := make([]byte, 0, count*2)
	for i := 0; i < count; i++ {
		if i > 0 {
			placeholders = append(placeholders, ',')
		}
		placeholders = append(placeholders, '?')
	}
	return string(placeholders)
}
