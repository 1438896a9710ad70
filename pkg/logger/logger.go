// Package logger builds the slog loggers of weave: pretty terminal output for
// commands, JSON for log files, and a fan-out of both for weave serve.
package logger

import (
	"io"
	"log/slog"
	"os"

	charmlog "github.com/charmbracelet/log"
)

type config struct {
	level   slog.Level
	format  Format
	source  bool
	writers []io.Writer
	attrs   []any
}

// New builds a *slog.Logger. Without options it writes text to stdout at
// info level.
func New(opts ...Option) *slog.Logger {
	c := &config{
		level:  slog.LevelInfo,
		format: FormatText,
	}
	for _, opt := range opts {
		opt(c)
	}

	l := slog.New(c.handler(c.writer()))
	if len(c.attrs) > 0 {
		l = l.With(c.attrs...)
	}
	return l
}

func (c *config) writer() io.Writer {
	switch len(c.writers) {
	case 0:
		return os.Stdout
	case 1:
		return c.writers[0]
	default:
		return io.MultiWriter(c.writers...)
	}
}

func (c *config) handler(w io.Writer) slog.Handler {
	switch c.format {
	case FormatJSON:
		return slog.NewJSONHandler(w, &slog.HandlerOptions{Level: c.level, AddSource: c.source})
	case FormatPretty:
		return charmlog.NewWithOptions(w, charmlog.Options{
			Level:           charmlog.Level(c.level),
			ReportTimestamp: true,
			ReportCaller:    c.source,
		})
	default:
		return slog.NewTextHandler(w, &slog.HandlerOptions{Level: c.level, AddSource: c.source})
	}
}

// Nop returns a logger that discards everything.
func Nop() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}
