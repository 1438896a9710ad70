package session

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Kind names the type of a session.
type Kind string

const (
	KindChat     Kind = "chat"
	KindResearch Kind = "research"
	KindCompare  Kind = "compare"
	KindVoice    Kind = "voice"
)

// Summary describes a finished (or running) session. It is what the history
// store indexes and what session events carry.
type Summary struct {
	ID           string    `json:"id"`
	Kind         Kind      `json:"kind"`
	Index        string    `json:"index,omitempty"`
	Title        string    `json:"title"`
	State        string    `json:"state"`
	Error        string    `json:"error,omitempty"`
	StartedAt    time.Time `json:"started_at"`
	FinishedAt   time.Time `json:"finished_at,omitzero"`
	DurationMs   int64     `json:"duration_ms"`
	Records      int       `json:"records"`
	DecodeErrors int       `json:"decode_errors"`
}

// Recordable is implemented by every session that can be persisted.
type Recordable interface {
	Summary() Summary

	// Snapshot returns the JSON-serializable state of the session.
	Snapshot() any
}

// base carries what every streaming session has in common.
type base struct {
	Lifecycle

	id    string
	kind  Kind
	index string

	statsMu      sync.RWMutex
	records      int
	decodeErrors int
}

func (b *base) init(kind Kind, index string) {
	b.id = uuid.NewString()
	b.kind = kind
	b.index = index
}

// ID returns the session id.
func (b *base) ID() string {
	return b.id
}

// Index returns the index the session ran against.
func (b *base) Index() string {
	return b.index
}

func (b *base) record(o Outcome) {
	b.statsMu.Lock()
	defer b.statsMu.Unlock()
	b.records += o.Records
	b.decodeErrors += o.DecodeErrors
}

func (b *base) summary(title string) Summary {
	b.statsMu.RLock()
	defer b.statsMu.RUnlock()

	s := Summary{
		ID:           b.id,
		Kind:         b.kind,
		Index:        b.index,
		Title:        title,
		State:        b.State().String(),
		StartedAt:    b.StartedAt(),
		FinishedAt:   b.FinishedAt(),
		DurationMs:   b.Duration().Milliseconds(),
		Records:      b.records,
		DecodeErrors: b.decodeErrors,
	}
	if err := b.Err(); err != nil {
		s.Error = err.Error()
	}
	return s
}
