package logging

import (
	"context"
	"errors"
	"log/slog"
)

// teeHandler sends each record to every handler that accepts its level.
type teeHandler []slog.Handler

func (t teeHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range t {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (t teeHandler) Handle(ctx context.Context, record slog.Record) error {
	var errs []error
	for _, h := range t {
		if h.Enabled(ctx, record.Level) {
			errs = append(errs, h.Handle(ctx, record.Clone()))
		}
	}
	return errors.Join(errs...)
}

func (t teeHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return t.each(func(h slog.Handler) slog.Handler { return h.WithAttrs(attrs) })
}

func (t teeHandler) WithGroup(name string) slog.Handler {
	return t.each(func(h slog.Handler) slog.Handler { return h.WithGroup(name) })
}

func (t teeHandler) each(fn func(slog.Handler) slog.Handler) teeHandler {
	next := make(teeHandler, len(t))
	for i, h := range t {
		next[i] = fn(h)
	}
	return next
}

// TeeLogger returns a logger that writes to base and to each extra handler.
// Job runs use it to mirror their log lines onto a progress reporter.
func TeeLogger(base *slog.Logger, extra ...slog.Handler) *slog.Logger {
	var tee teeHandler
	if base != nil {
		tee = append(tee, base.Handler())
	}
	for _, h := range extra {
		if _, noop := h.(NoopHandler); h != nil && !noop {
			tee = append(tee, h)
		}
	}
	switch len(tee) {
	case 0:
		return NewNop()
	case 1:
		return slog.New(tee[0])
	default:
		return slog.New(tee)
	}
}
