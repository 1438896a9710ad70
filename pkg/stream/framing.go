// Package stream reassembles line-framed records from a streaming HTTP body.
//
// The backend answers long running requests with one of two framings:
// server-sent-event style "data: <json>" lines terminated by a "data: [DONE]"
// sentinel, or newline-delimited JSON objects terminated only by the end of the
// body. Transport chunks carry no alignment with record boundaries, so a
// record may arrive split across many reads, and a single read may carry many
// records.
//
//	┌──────────────────┐
//	│ source io.Reader │  chunks of arbitrary size
//	└──────────────────┘
//	         │
//	         ▼
//	┌──────────────────┐   ┌──────────────────────┐
//	│     Splitter     │──▶│ tee io.Writer (opt.) │
//	└──────────────────┘   └──────────────────────┘
//	         │ complete lines
//	         ▼
//	┌──────────────────┐
//	│ prefix, sentinel │
//	│    DecodeFunc    │
//	└──────────────────┘
//	         │
//	         ▼
//	   Reader.Next() → T
package stream

import "errors"

const (
	defaultMaxPending = 1024 * 1024
	defaultReadSize   = 4 * 1024
)

var (
	// ErrRecordTooLarge is returned when the pending buffer grows past the
	// framing's MaxPending without a delimiter.
	ErrRecordTooLarge = errors.New("stream: record exceeds maximum pending size")
)

// Framing describes how records are laid out in a byte stream.
type Framing struct {
	// Delimiter separates records. Defaults to '\n'.
	Delimiter byte

	// Prefix, when set, is required at the start of a line for it to be a
	// record. Lines without it are dropped before decoding.
	Prefix string

	// Sentinel is a payload that marks the logical end of the stream. It is
	// never decoded.
	Sentinel string

	// FlushResidual decodes a non-blank unterminated tail once the source
	// reports end of stream.
	FlushResidual bool

	// MaxPending bounds the pending buffer. Defaults to 1 MiB.
	MaxPending int
}

// SSE is the framing of the /chat and /refine endpoints.
var SSE = Framing{
	Delimiter: '\n',
	Prefix:    "data: ",
	Sentinel:  "[DONE]",
}

// NDJSON is the framing of the /research and /compare endpoints.
var NDJSON = Framing{
	Delimiter:     '\n',
	FlushResidual: true,
}

// Document treats a whole body as one record. The ASCII record separator can
// not occur unescaped in JSON, so the body is only ever decoded by the final
// residual flush.
var Document = Framing{
	Delimiter:     0x1e,
	FlushResidual: true,
	MaxPending:    64 * 1024 * 1024,
}

func (f Framing) withDefaults() Framing {
	if f.Delimiter == 0 {
		f.Delimiter = '\n'
	}
	if f.MaxPending <= 0 {
		f.MaxPending = defaultMaxPending
	}
	return f
}
