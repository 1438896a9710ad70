// Package rag defines the records exchanged with the document backend: the
// OpenAI-shaped chat deltas of the SSE endpoints, the typed events of the
// NDJSON endpoints, and the request and response bodies of the REST calls.
package rag

import (
	"encoding/json"
	"time"
)

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// GenericErrorMessage is appended to a conversation when a reply could not be
// streamed at all.
const GenericErrorMessage = "An error occurred while processing your request."

// Message is one entry of a conversation. While a reply streams in, the
// assistant message's Content grows; it is immutable once the stream ends.
type Message struct {
	Role      string     `json:"role"`
	Content   string     `json:"content"`
	Citations []Citation `json:"citations,omitempty"`

	// Error marks a message synthesized for a failed request.
	Error bool `json:"error,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// Citation references a source document backing part of an answer.
type Citation struct {
	Title      string `json:"title"`
	URL        string `json:"url,omitempty"`
	Filepath   string `json:"filepath,omitempty"`
	DocumentID string `json:"document_id,omitempty"`
	ChunkID    string `json:"chunk_id,omitempty"`
	Content    string `json:"content,omitempty"`
}

// Location returns the URL of the cited document, falling back to its path.
func (c Citation) Location() string {
	if c.URL != "" {
		return c.URL
	}
	return c.Filepath
}

// Key identifies the cited document for aggregation.
func (c Citation) Key() string {
	switch {
	case c.Title != "":
		return c.Title
	case c.DocumentID != "":
		return c.DocumentID
	default:
		return c.Location()
	}
}

// ChatChunk is one "data:" payload of the /chat and /refine streams.
type ChatChunk struct {
	ID      string   `json:"id,omitempty"`
	Model   string   `json:"model,omitempty"`
	Choices []Choice `json:"choices"`
}

// Choice is a single completion choice within a chunk.
type Choice struct {
	Index        int     `json:"index"`
	Delta        Delta   `json:"delta"`
	FinishReason *string `json:"finish_reason,omitempty"`
}

// Delta is an incremental fragment of the assistant reply.
type Delta struct {
	Role    string        `json:"role,omitempty"`
	Content string        `json:"content,omitempty"`
	Context *DeltaContext `json:"context,omitempty"`
}

// DeltaContext carries retrieval metadata attached to a delta.
type DeltaContext struct {
	// Citations is nil when the delta carries no citation list, and
	// non-nil (possibly empty) when it replaces the current one.
	Citations []Citation `json:"citations"`
	Intent    string     `json:"intent,omitempty"`
}

// Delta returns the first choice's delta. ok is false for chunks without
// choices, such as keep-alive or usage chunks.
func (c ChatChunk) Delta() (Delta, bool) {
	if len(c.Choices) == 0 {
		return Delta{}, false
	}
	return c.Choices[0].Delta, true
}

// Citations returns the citation list carried by the chunk, if any.
func (c ChatChunk) Citations() ([]Citation, bool) {
	d, ok := c.Delta()
	if !ok || d.Context == nil || d.Context.Citations == nil {
		return nil, false
	}
	return d.Context.Citations, true
}

// DecodeChatChunk decodes one SSE payload.
func DecodeChatChunk(payload []byte) (ChatChunk, error) {
	var c ChatChunk
	if err := json.Unmarshal(payload, &c); err != nil {
		return ChatChunk{}, err
	}
	return c, nil
}

// ChatRequest is the body of POST /chat.
type ChatRequest struct {
	Messages     []ChatTurn     `json:"messages"`
	IndexName    string         `json:"index_name"`
	IsRestricted bool           `json:"is_restricted"`
	Context      map[string]any `json:"context,omitempty"`
	SessionState map[string]any `json:"session_state,omitempty"`
}

// ChatTurn is the wire form of a message sent to the backend.
type ChatTurn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// RefineRequest is the body of POST /refine.
type RefineRequest struct {
	Message          string     `json:"message"`
	Citations        []Citation `json:"citations"`
	IndexName        string     `json:"index_name"`
	IsRestricted     bool       `json:"is_restricted"`
	OriginalQuestion string     `json:"original_question"`
}
