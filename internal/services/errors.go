package services

import (
	"errors"
	"strings"
)

var (
	ErrProbe            = errors.New("probe error")
	ErrDetection        = errors.New("detection error")
	ErrNoContent        = errors.New("no content to process")
	ErrExtraction       = errors.New("extraction error")
	ErrMissingSegment   = errors.New("missing segment")
	ErrConcatenation    = errors.New("concatenation error")
	ErrNormalization    = errors.New("normalization error")
	ErrNoMusicSelected  = errors.New("no music selected")
	ErrMissingMusicFile = errors.New("missing music file")
	ErrCrossfade        = errors.New("crossfade error")
	ErrMix              = errors.New("mix error")
	ErrValidation       = errors.New("validation error")
	ErrConfiguration    = errors.New("configuration error")
	ErrLocked           = errors.New("output locked")
)

// Error carries the marker, the phase and the operation that failed.
type Error struct {
	Marker    error
	Phase     string
	Operation string
	Message   string
	Err       error
}

func (e *Error) Error() string {
	detail := buildDetail(e.Phase, e.Operation, e.Message)
	if e.Err != nil {
		return e.Marker.Error() + ": " + detail + ": " + e.Err.Error()
	}
	return e.Marker.Error() + ": " + detail
}

// Unwrap exposes both the marker and the underlying cause to errors.Is.
func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Marker}
	}
	return []error{e.Marker, e.Err}
}

// Wrap builds an error message that includes phase context while tagging it
// with the provided marker for later classification. The marker should be one
// of the exported sentinel errors above.
func Wrap(marker error, phase, operation, message string, err error) error {
	if marker == nil {
		marker = ErrValidation
	}
	return &Error{
		Marker:    marker,
		Phase:     strings.TrimSpace(phase),
		Operation: strings.TrimSpace(operation),
		Message:   strings.TrimSpace(message),
		Err:       err,
	}
}

// PhaseOf returns the phase recorded by the outermost wrapped error that has
// one.
func PhaseOf(err error) string {
	for err != nil {
		var svcErr *Error
		if !errors.As(err, &svcErr) {
			return ""
		}
		if svcErr.Phase != "" {
			return svcErr.Phase
		}
		err = svcErr.Err
	}
	return ""
}

// MarkerOf reports which sentinel the error was tagged with, or nil.
func MarkerOf(err error) error {
	var svcErr *Error
	if errors.As(err, &svcErr) {
		return svcErr.Marker
	}
	return nil
}

func buildDetail(phase, operation, message string) string {
	parts := make([]string, 0, 3)
	if phase != "" {
		parts = append(parts, phase)
	}
	if operation != "" {
		parts = append(parts, operation)
	}
	if message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "pipeline failure"
	}
	return strings.Join(parts, ": ")
}
