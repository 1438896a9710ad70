package eventstream

import (
	"time"

	"github.com/google/uuid"

	"github.com/docweave/weave/pkg/session"
)

const (
	// SchemaVersionV1 is the first version of the event payload schema.
	SchemaVersionV1 = 1

	// EventTypeSessionCompleted is emitted after a session reaches a final
	// state and has been stored.
	EventTypeSessionCompleted = "weave.session.completed"
)

// SessionEvent is a transport-neutral event payload for a finished session.
type SessionEvent struct {
	SchemaVersion int             `json:"schema_version"`
	EventType     string          `json:"event_type"`
	EventID       string          `json:"event_id"`
	EmittedAt     time.Time       `json:"emitted_at"`
	Source        EventSource     `json:"source"`
	Session       session.Summary `json:"session"`
}

// EventSource identifies where the session ran.
type EventSource struct {
	Host    string `json:"host,omitempty"`
	Backend string `json:"backend"`
}

// NewSessionEvent wraps a session summary in a completed event.
func NewSessionEvent(src EventSource, sum session.Summary) *SessionEvent {
	return &SessionEvent{
		SchemaVersion: SchemaVersionV1,
		EventType:     EventTypeSessionCompleted,
		EventID:       uuid.NewString(),
		EmittedAt:     time.Now().UTC(),
		Source:        src,
		Session:       sum,
	}
}
