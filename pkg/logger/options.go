package logger

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
)

// Format selects the handler New builds.
type Format string

const (
	// FormatText is slog's key=value text handler.
	FormatText Format = "text"

	// FormatPretty is the colorized charmbracelet/log handler used for
	// terminal output.
	FormatPretty Format = "pretty"

	// FormatJSON is slog's JSON handler, one object per line.
	FormatJSON Format = "json"
)

// ParseFormat parses a format name. The empty string is FormatText.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case "":
		return FormatText, nil
	case FormatText, FormatPretty, FormatJSON:
		return f, nil
	default:
		return "", fmt.Errorf("unknown log format %q (want text, pretty or json)", s)
	}
}

// Option configures a Logger created with New.
type Option func(*config)

// WithDebug lowers the level to Debug.
func WithDebug(debug bool) Option {
	return func(c *config) {
		c.level = slog.LevelInfo
		if debug {
			c.level = slog.LevelDebug
		}
	}
}

// WithFormat selects the handler.
func WithFormat(f Format) Option {
	return func(c *config) {
		c.format = f
	}
}

// WithWriter sets the outputs. Several writers receive the same bytes.
// Defaults to os.Stdout.
func WithWriter(w ...io.Writer) Option {
	return func(c *config) {
		c.writers = w
	}
}

// WithSource includes source file:line in log output.
func WithSource(source bool) Option {
	return func(c *config) {
		c.source = source
	}
}

// WithAttrs binds attributes to every record, e.g. "component", "serve".
func WithAttrs(args ...any) Option {
	return func(c *config) {
		c.attrs = append(c.attrs, args...)
	}
}
