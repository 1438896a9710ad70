package session

import (
	"context"
	"fmt"

	"github.com/docweave/weave/pkg/stream"
)

// Outcome is how a stream ended.
type Outcome struct {
	// Err is the transport or handler error that stopped the stream, nil
	// when the transport reported a clean end of stream.
	Err error

	Records      int
	DecodeErrors int
}

// Sink receives the records of one streaming session.
type Sink[T any] interface {
	// Begin is called once before the first transport read.
	Begin() error

	// Apply folds one record into the session state. A non-nil error stops
	// the stream.
	Apply(rec T) error

	// Finish is called exactly once when the stream ends, whether it ended
	// cleanly or not.
	Finish(o Outcome)
}

// Drive runs one streaming session end to end: it starts the sink, hands it
// every record in arrival order, closes the transport and reports the outcome.
// Finish runs even when Begin fails. The returned error is the one passed to
// Finish.
func Drive[T any](ctx context.Context, r *stream.Reader[T], sink Sink[T]) error {
	defer r.Close()

	if err := sink.Begin(); err != nil {
		sink.Finish(Outcome{Err: err})
		return err
	}

	err := r.Consume(ctx, sink.Apply)
	sink.Finish(Outcome{
		Err:          err,
		Records:      r.Records(),
		DecodeErrors: r.DecodeErrors(),
	})
	return err
}

// Abort finishes a sink whose request failed before a stream was opened.
func Abort[T any](sink Sink[T], err error) {
	sink.Finish(Outcome{Err: err})
}

// BackendError is an application error reported in-band by the backend
// through an "error" record.
type BackendError struct {
	Message string
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("backend error: %s", e.Message)
}
