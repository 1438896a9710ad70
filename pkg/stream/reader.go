package stream

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"log/slog"

	"github.com/docweave/weave/pkg/logger"
	"github.com/docweave/weave/pkg/utils"
)

// DecodeFunc turns one record payload, with framing already stripped, into a
// record.
type DecodeFunc[T any] func(payload []byte) (T, error)

// Option configures a Reader.
type Option func(*options)

type options struct {
	logger   *slog.Logger
	tee      io.Writer
	readSize int
}

// WithLogger sets the logger used for dropped records.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// WithTee copies every transport byte, verbatim and before parsing, to w.
func WithTee(w io.Writer) Option {
	return func(o *options) {
		o.tee = w
	}
}

// WithReadSize sets the size of a single transport read.
func WithReadSize(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.readSize = n
		}
	}
}

// Reader decodes records of type T from a framed byte stream.
//
// A Reader never reads ahead of its consumer: every record produced by one
// transport read is handed out before the next read is issued.
type Reader[T any] struct {
	src      io.Reader
	framing  Framing
	decode   DecodeFunc[T]
	splitter *Splitter
	logger   *slog.Logger
	tee      io.Writer
	buf      []byte

	// lines holds complete lines from the last parse pass that have not
	// been decoded yet.
	lines [][]byte

	eof      bool
	flushed  bool
	sentinel bool

	records      int
	decodeErrors int
}

// NewReader returns a Reader over src.
func NewReader[T any](src io.Reader, framing Framing, decode DecodeFunc[T], opts ...Option) *Reader[T] {
	o := &options{
		logger:   logger.Nop(),
		readSize: defaultReadSize,
	}
	for _, opt := range opts {
		opt(o)
	}

	framing = framing.withDefaults()
	return &Reader[T]{
		src:      src,
		framing:  framing,
		decode:   decode,
		splitter: NewSplitter(framing),
		logger:   o.logger,
		tee:      o.tee,
		buf:      make([]byte, o.readSize),
	}
}

// Next returns the next decoded record. It returns io.EOF once the source is
// exhausted and any residual has been flushed. Malformed records are logged
// and skipped; they never surface as errors.
func (r *Reader[T]) Next(ctx context.Context) (T, error) {
	var zero T

	for {
		for len(r.lines) > 0 {
			line := r.lines[0]
			r.lines = r.lines[1:]

			if rec, ok := r.decodeLine(line); ok {
				return rec, nil
			}
		}

		if r.eof {
			if r.flushResidual() {
				continue
			}
			return zero, io.EOF
		}

		if err := ctx.Err(); err != nil {
			return zero, err
		}

		if err := r.fill(ctx); err != nil {
			return zero, err
		}
	}
}

// Consume calls handle once for every record, in arrival order. handle runs
// before the next transport read. A non-nil error from handle stops the
// stream and is returned as is.
func (r *Reader[T]) Consume(ctx context.Context, handle func(T) error) error {
	for {
		rec, err := r.Next(ctx)
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}

		if err := handle(rec); err != nil {
			return err
		}
	}
}

// All returns the records as a sequence. A transport failure is yielded once
// as the final pair.
func (r *Reader[T]) All(ctx context.Context) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		for {
			rec, err := r.Next(ctx)
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				var zero T
				yield(zero, err)
				return
			}
			if !yield(rec, nil) {
				return
			}
		}
	}
}

// Close closes the source when it is an io.Closer.
func (r *Reader[T]) Close() error {
	if c, ok := r.src.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// Records is the number of records handed out so far.
func (r *Reader[T]) Records() int {
	return r.records
}

// DecodeErrors is the number of lines dropped because they failed to decode.
func (r *Reader[T]) DecodeErrors() int {
	return r.decodeErrors
}

// SawSentinel reports whether the framing's end marker has been seen.
func (r *Reader[T]) SawSentinel() bool {
	return r.sentinel
}

// fill performs one transport read and splits whatever it returned.
func (r *Reader[T]) fill(ctx context.Context) error {
	n, err := r.src.Read(r.buf)
	if n > 0 {
		chunk := r.buf[:n]
		if r.tee != nil {
			if _, werr := r.tee.Write(chunk); werr != nil {
				return fmt.Errorf("stream: writing tee: %w", werr)
			}
		}

		lines, perr := r.splitter.Push(chunk)
		r.lines = append(r.lines, lines...)
		if perr != nil {
			return perr
		}
	}

	switch {
	case err == nil:
		return nil
	case errors.Is(err, io.EOF):
		r.eof = true
		return nil
	case ctx.Err() != nil:
		return ctx.Err()
	default:
		return fmt.Errorf("stream: reading transport: %w", err)
	}
}

// flushResidual queues the unterminated tail for one last decode pass.
// It reports whether anything was queued.
func (r *Reader[T]) flushResidual() bool {
	if r.flushed {
		return false
	}
	r.flushed = true

	residual := r.splitter.Residual()
	r.splitter.Reset()
	if !r.framing.FlushResidual || len(bytes.TrimSpace(residual)) == 0 {
		return false
	}

	r.lines = append(r.lines, residual)
	return true
}

func (r *Reader[T]) decodeLine(line []byte) (T, bool) {
	var zero T

	payload, ok := r.payload(line)
	if !ok {
		return zero, false
	}

	rec, err := r.decode(payload)
	if err != nil {
		r.decodeErrors++
		r.logger.Warn("dropping malformed stream record",
			"error", err,
			"payload", utils.Truncate(string(payload), 120),
		)
		return zero, false
	}

	r.records++
	return rec, true
}

// payload applies the prefix filter and sentinel check to a complete line.
func (r *Reader[T]) payload(line []byte) ([]byte, bool) {
	line = bytes.TrimSuffix(line, []byte{'\r'})

	if r.framing.Prefix != "" {
		if !bytes.HasPrefix(line, []byte(r.framing.Prefix)) {
			return nil, false
		}
		line = line[len(r.framing.Prefix):]
	}

	line = bytes.TrimSpace(line)
	if len(line) == 0 {
		return nil, false
	}

	if r.framing.Sentinel != "" && string(line) == r.framing.Sentinel {
		r.sentinel = true
		return nil, false
	}

	return line, true
}
