package logger

import (
	"context"
	"errors"
	"log/slog"
)

// fanout hands every record to each handler that accepts its level.
type fanout []slog.Handler

// Multi returns a logger writing to every given logger, such as the pretty
// terminal logger and the JSON log file of weave serve. Nil loggers are
// skipped; with a single logger left, that logger is returned as is.
func Multi(loggers ...*slog.Logger) *slog.Logger {
	var hs fanout
	for _, l := range loggers {
		if l != nil {
			hs = append(hs, l.Handler())
		}
	}

	switch len(hs) {
	case 0:
		return Nop()
	case 1:
		return slog.New(hs[0])
	default:
		return slog.New(hs)
	}
}

func (f fanout) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range f {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

// Handle writes r to every handler, even when an earlier one fails.
func (f fanout) Handle(ctx context.Context, r slog.Record) error {
	var errs []error
	for _, h := range f {
		if !h.Enabled(ctx, r.Level) {
			continue
		}
		if err := h.Handle(ctx, r.Clone()); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (f fanout) WithAttrs(attrs []slog.Attr) slog.Handler {
	return f.each(func(h slog.Handler) slog.Handler { return h.WithAttrs(attrs) })
}

func (f fanout) WithGroup(name string) slog.Handler {
	return f.each(func(h slog.Handler) slog.Handler { return h.WithGroup(name) })
}

func (f fanout) each(fn func(slog.Handler) slog.Handler) fanout {
	out := make(fanout, len(f))
	for i, h := range f {
		out[i] = fn(h)
	}
	return out
}
