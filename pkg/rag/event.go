package rag

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrUntypedEvent is returned by DecodeEvent for JSON objects without a type.
var ErrUntypedEvent = errors.New("rag: event has no type")

// Event types emitted on the NDJSON endpoints. The set is open: unknown types
// decode fine and are ignored by the sessions.
const (
	EventResearchStart    = "research_start"
	EventSearch           = "search"
	EventSearchComplete   = "search_complete"
	EventCitation         = "citation"
	EventFinalCitation    = "final_citation"
	EventMessage          = "message"
	EventStatus           = "status"
	EventHeartbeat        = "heartbeat"
	EventChatComplete     = "chat_complete"
	EventFinalConclusion  = "final_conclusion"
	EventRequirement      = "requirement"
	EventRequirements     = "requirements"
	EventRefined          = "refined_requirements"
	EventSourceData       = "source_data"
	EventComparisonResult = "comparison_result"
	EventError            = "error"
)

// Event is one line of an NDJSON stream.
type Event struct {
	Type    string          `json:"type"`
	Content json.RawMessage `json:"content,omitempty"`

	// FullResponse is sent alongside some terminal events with the complete
	// text the content was derived from.
	FullResponse string `json:"full_response,omitempty"`

	// Error is set on backends that report failures as {"error": "..."}.
	Error string `json:"error,omitempty"`
}

// DecodeEvent decodes one NDJSON line. Objects without a "type" are rejected,
// except for bare {"error": ...} objects which are mapped to error events.
func DecodeEvent(payload []byte) (Event, error) {
	var e Event
	if err := json.Unmarshal(payload, &e); err != nil {
		return Event{}, err
	}

	if e.Type == "" {
		if e.Error == "" {
			return Event{}, ErrUntypedEvent
		}
		e.Type = EventError
	}

	return e, nil
}

// Text returns the event content as text. String content is returned
// unquoted; anything else is returned as compact JSON.
func (e Event) Text() string {
	return Text(e.Content)
}

// ErrorText returns the message of an error event.
func (e Event) ErrorText() string {
	if msg := e.Text(); msg != "" {
		return msg
	}
	return e.Error
}

// Decode unmarshals the event content into v.
func (e Event) Decode(v any) error {
	if len(e.Content) == 0 {
		return fmt.Errorf("rag: %s event has no content", e.Type)
	}
	if err := json.Unmarshal(e.Content, v); err != nil {
		return fmt.Errorf("rag: decoding %s content: %w", e.Type, err)
	}
	return nil
}

// Requirements returns the requirements carried by a "requirement" event (one
// object), or by a "requirements" or "refined_requirements" event (an array).
func (e Event) Requirements() ([]Requirement, error) {
	switch e.Type {
	case EventRequirement:
		var r Requirement
		if err := e.Decode(&r); err != nil {
			return nil, err
		}
		return []Requirement{r}, nil
	case EventRequirements, EventRefined:
		var rs []Requirement
		if err := e.Decode(&rs); err != nil {
			return nil, err
		}
		return rs, nil
	default:
		return nil, fmt.Errorf("rag: %s event carries no requirements", e.Type)
	}
}

// Text renders raw content that may be a JSON string or any other value.
func Text(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return ""
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}

	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return string(raw)
	}
	return buf.String()
}

// SearchContent is the content of a "search" event.
type SearchContent struct {
	Index        string `json:"index"`
	Query        string `json:"query"`
	RelatedQuery string `json:"relatedQuery,omitempty"`
}

// SearchCompleteContent is the content of a "search_complete" event.
type SearchCompleteContent struct {
	Index        string `json:"index"`
	Result       string `json:"result,omitempty"`
	FullResponse string `json:"full_response,omitempty"`
}

// CitationContent is the content of a "citation" event: a citation plus the
// query that surfaced it.
type CitationContent struct {
	Citation
	Query string `json:"query,omitempty"`
}

// Requirement is one generated comparison criterion.
type Requirement struct {
	Description string `json:"description"`
	MetricType  string `json:"metric_type,omitempty"`
	MetricUnit  string `json:"metric_unit,omitempty"`
}

// SourceData is the content of a "source_data" event: the raw answer an
// index gave while requirements were generated.
type SourceData struct {
	Index    string `json:"index"`
	Response string `json:"response"`
}

// ComparisonResult is the content of a "comparison_result" event.
type ComparisonResult struct {
	Requirement Requirement             `json:"requirement"`
	Sources     map[string]SourceResult `json:"sources"`
}

// SourceResult is the answer one index gave for a requirement.
type SourceResult struct {
	Response        string         `json:"response"`
	SimplifiedValue any            `json:"simplified_value,omitempty"`
	Citations       []CitationInfo `json:"citations,omitempty"`
}

// CitationInfo is the citation shape of comparison results.
type CitationInfo struct {
	Text       string `json:"text,omitempty"`
	DocumentID string `json:"document_id,omitempty"`
	Content    string `json:"content,omitempty"`
	IndexName  string `json:"index_name,omitempty"`
}

// Value renders the simplified value of a source result.
func (r SourceResult) Value() string {
	switch v := r.SimplifiedValue.(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		return fmt.Sprintf("%g", v)
	case bool:
		return fmt.Sprintf("%t", v)
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprint(v)
		}
		return string(b)
	}
}
