package session

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/docweave/weave/pkg/rag"
	"github.com/docweave/weave/pkg/utils"
)

// ErrReplyInProgress is returned when a new reply is requested while another
// reply of the same conversation is still streaming.
var ErrReplyInProgress = errors.New("session: a reply is already streaming")

// Conversation is a chat transcript against one index. Each reply is streamed
// by its own ChatStream.
type Conversation struct {
	mu sync.RWMutex

	id        string
	index     string
	createdAt time.Time
	messages  []rag.Message

	// open is the stream currently appending to the transcript.
	open *ChatStream
	last *ChatStream

	records      int
	decodeErrors int
}

// NewConversation starts an empty conversation against index.
func NewConversation(index string) *Conversation {
	return &Conversation{
		id:        uuid.NewString(),
		index:     index,
		createdAt: time.Now(),
	}
}

// RestoreConversation rebuilds a conversation from a stored snapshot.
func RestoreConversation(s ConversationSnapshot) *Conversation {
	return &Conversation{
		id:        s.ID,
		index:     s.Index,
		createdAt: s.CreatedAt,
		messages:  slices.Clone(s.Messages),
	}
}

// ID returns the conversation id.
func (c *Conversation) ID() string {
	return c.id
}

// Index returns the index the conversation runs against.
func (c *Conversation) Index() string {
	return c.index
}

// Ask appends a user message and returns the stream for the reply. Until that
// stream finishes, Ask and Reply return ErrReplyInProgress.
func (c *Conversation) Ask(question string) (*ChatStream, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.open != nil {
		return nil, ErrReplyInProgress
	}

	c.messages = append(c.messages, rag.Message{
		Role:      rag.RoleUser,
		Content:   question,
		CreatedAt: time.Now(),
	})
	return c.newStream(), nil
}

// Reply returns a stream for an assistant message that does not answer a new
// user message, such as a refinement of the previous answer.
func (c *Conversation) Reply() (*ChatStream, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.open != nil {
		return nil, ErrReplyInProgress
	}
	return c.newStream(), nil
}

// newStream claims the conversation for the returned stream until it
// finishes. c.mu must be held.
func (c *Conversation) newStream() *ChatStream {
	s := &ChatStream{conv: c, open: -1, written: -1}
	c.open = s
	return s
}

// Messages returns a copy of the transcript.
func (c *Conversation) Messages() []rag.Message {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]rag.Message, len(c.messages))
	for i, m := range c.messages {
		m.Citations = slices.Clone(m.Citations)
		out[i] = m
	}
	return out
}

// History returns the transcript in the wire form expected by the backend.
// Synthesized error messages are left out.
func (c *Conversation) History() []rag.ChatTurn {
	c.mu.RLock()
	defer c.mu.RUnlock()

	turns := make([]rag.ChatTurn, 0, len(c.messages))
	for _, m := range c.messages {
		if m.Error {
			continue
		}
		turns = append(turns, rag.ChatTurn{Role: m.Role, Content: m.Content})
	}
	return turns
}

// LastAnswer returns the most recent assistant message that is not an error.
func (c *Conversation) LastAnswer() (rag.Message, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	for i := len(c.messages) - 1; i >= 0; i-- {
		m := c.messages[i]
		if m.Role == rag.RoleAssistant && !m.Error {
			m.Citations = slices.Clone(m.Citations)
			return m, true
		}
	}
	return rag.Message{}, false
}

// LastQuestion returns the most recent user message.
func (c *Conversation) LastQuestion() (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	for i := len(c.messages) - 1; i >= 0; i-- {
		if c.messages[i].Role == rag.RoleUser {
			return c.messages[i].Content, true
		}
	}
	return "", false
}

// Title is the first question, shortened.
func (c *Conversation) Title() string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	for _, m := range c.messages {
		if m.Role == rag.RoleUser {
			return utils.Truncate(m.Content, 80)
		}
	}
	return ""
}

// Summary reports the conversation with the state of its latest reply.
func (c *Conversation) Summary() Summary {
	title := c.Title()

	c.mu.RLock()
	defer c.mu.RUnlock()

	s := Summary{
		ID:           c.id,
		Kind:         KindChat,
		Index:        c.index,
		Title:        title,
		State:        Idle.String(),
		StartedAt:    c.createdAt,
		Records:      c.records,
		DecodeErrors: c.decodeErrors,
	}
	if c.last != nil {
		s.State = c.last.State().String()
		s.FinishedAt = c.last.FinishedAt()
		if err := c.last.Err(); err != nil {
			s.Error = err.Error()
		}
	}
	if !s.FinishedAt.IsZero() {
		s.DurationMs = s.FinishedAt.Sub(s.StartedAt).Milliseconds()
	}
	return s
}

// ConversationSnapshot is the stored form of a conversation.
type ConversationSnapshot struct {
	ID        string        `json:"id"`
	Index     string        `json:"index"`
	CreatedAt time.Time     `json:"created_at"`
	Messages  []rag.Message `json:"messages"`
}

// Snapshot implements Recordable.
func (c *Conversation) Snapshot() any {
	return ConversationSnapshot{
		ID:        c.id,
		Index:     c.index,
		CreatedAt: c.createdAt,
		Messages:  c.Messages(),
	}
}

// ChatStream folds the SSE deltas of one reply into its conversation.
//
// The assistant message is opened by the first record that carries content or
// citations. Consecutive identical content fragments are treated as duplicate
// deliveries and skipped; the last fragment is tracked per stream.
type ChatStream struct {
	Lifecycle

	conv *Conversation

	// open is the index of the assistant message being appended to, or -1.
	open int

	// written is the index of the message this stream wrote, or -1.
	written int

	lastFragment string
	onDelta      func(fragment string)
}

// OnDelta registers fn to be called with every appended fragment. It must be
// set before the stream begins.
func (s *ChatStream) OnDelta(fn func(fragment string)) {
	s.onDelta = fn
}

// Conversation returns the conversation the stream writes to.
func (s *ChatStream) Conversation() *Conversation {
	return s.conv
}

// Begin implements Sink.
func (s *ChatStream) Begin() error {
	c := s.conv
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.open != nil && c.open != s {
		return ErrReplyInProgress
	}
	if err := s.Start(); err != nil {
		return err
	}
	c.open = s
	c.last = s
	return nil
}

// Apply implements Sink.
func (s *ChatStream) Apply(chunk rag.ChatChunk) error {
	if st := s.State(); st != Streaming {
		return fmt.Errorf("%w: record while %s", ErrInvalidTransition, st)
	}

	delta, ok := chunk.Delta()
	if !ok {
		return nil
	}

	if delta.Content != "" && delta.Content != s.lastFragment {
		s.lastFragment = delta.Content
		s.appendContent(delta.Content)
		if s.onDelta != nil {
			s.onDelta(delta.Content)
		}
	}

	if cites, ok := chunk.Citations(); ok {
		s.setCitations(cites)
	}
	return nil
}

// Finish implements Sink. A transport failure appends one generic error
// message to the conversation; a cancelled request does not. Finishing a
// stream twice has no effect.
func (s *ChatStream) Finish(o Outcome) {
	c := s.conv
	c.mu.Lock()
	defer c.mu.Unlock()

	if s.State().Final() {
		return
	}

	c.records += o.Records
	c.decodeErrors += o.DecodeErrors
	if c.open == s {
		c.open = nil
	}
	c.last = s
	s.open = -1

	if o.Err == nil {
		if err := s.Complete(); err != nil {
			_ = s.Fail(err)
		}
		return
	}

	_ = s.Fail(o.Err)
	if errors.Is(o.Err, context.Canceled) {
		return
	}
	c.messages = append(c.messages, rag.Message{
		Role:      rag.RoleAssistant,
		Content:   rag.GenericErrorMessage,
		Error:     true,
		CreatedAt: time.Now(),
	})
}

// Message returns the assistant message written by this stream.
func (s *ChatStream) Message() (rag.Message, bool) {
	c := s.conv
	c.mu.RLock()
	defer c.mu.RUnlock()

	if s.written < 0 {
		return rag.Message{}, false
	}
	m := c.messages[s.written]
	m.Citations = slices.Clone(m.Citations)
	return m, true
}

func (s *ChatStream) appendContent(fragment string) {
	c := s.conv
	c.mu.Lock()
	defer c.mu.Unlock()

	s.openLocked()
	c.messages[s.open].Content += fragment
}

func (s *ChatStream) setCitations(cites []rag.Citation) {
	c := s.conv
	c.mu.Lock()
	defer c.mu.Unlock()

	s.openLocked()
	c.messages[s.open].Citations = slices.Clone(cites)
}

func (s *ChatStream) openLocked() {
	if s.open >= 0 {
		return
	}
	s.conv.messages = append(s.conv.messages, rag.Message{
		Role:      rag.RoleAssistant,
		CreatedAt: time.Now(),
	})
	s.open = len(s.conv.messages) - 1
	s.written = s.open
}
