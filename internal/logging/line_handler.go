package logging

import (
	"bytes"
	"log/slog"
)

// NewLineHandler returns a handler that formats records like the console
// handler, minus the timestamp, and passes each line to fn.
func NewLineHandler(level slog.Leveler, fn func(string)) slog.Handler {
	if fn == nil {
		return NoopHandler{}
	}
	if level == nil {
		level = slog.LevelInfo
	}
	h := newPrettyHandler(lineWriter(fn), level, false)
	h.omitTime = true
	return h
}

type lineWriter func(string)

func (w lineWriter) Write(p []byte) (int, error) {
	for _, line := range bytes.Split(bytes.TrimRight(p, "\n"), []byte{'\n'}) {
		w(string(line))
	}
	return len(p), nil
}
