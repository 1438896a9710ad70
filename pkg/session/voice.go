package session

import (
	"encoding/base64"
	"fmt"
	"sync"
	"time"

	"github.com/docweave/weave/pkg/rag"
)

// Voice folds the single reply of a /voice_chat request into a conversation:
// the transcribed question and the spoken answer are appended as a user and
// an assistant message.
type Voice struct {
	base

	mu    sync.RWMutex
	conv  *Conversation
	reply rag.VoiceReply
	got   bool
}

// NewVoice returns an idle voice session writing to conv.
func NewVoice(conv *Conversation) *Voice {
	v := &Voice{conv: conv}
	v.init(KindVoice, conv.Index())
	return v
}

// Begin implements Sink.
func (v *Voice) Begin() error {
	return v.Start()
}

// Apply implements Sink.
func (v *Voice) Apply(r rag.VoiceReply) error {
	if st := v.State(); st != Streaming {
		return fmt.Errorf("%w: record while %s", ErrInvalidTransition, st)
	}
	if r.Error != "" {
		return &BackendError{Message: r.Error}
	}

	v.mu.Lock()
	v.reply = r
	v.got = true
	v.mu.Unlock()

	now := time.Now()
	c := v.conv
	c.mu.Lock()
	defer c.mu.Unlock()

	if r.UserText != "" {
		c.messages = append(c.messages, rag.Message{
			Role:      rag.RoleUser,
			Content:   r.UserText,
			CreatedAt: now,
		})
	}
	c.messages = append(c.messages, rag.Message{
		Role:      rag.RoleAssistant,
		Content:   r.Response,
		CreatedAt: now,
	})
	return nil
}

// Finish implements Sink.
func (v *Voice) Finish(o Outcome) {
	v.record(o)

	if o.Err != nil {
		_ = v.Fail(o.Err)
		return
	}

	v.mu.RLock()
	got := v.got
	v.mu.RUnlock()

	if !got {
		_ = v.Fail(&BackendError{Message: "empty voice reply"})
		return
	}
	if err := v.Complete(); err != nil {
		_ = v.Fail(err)
	}
}

// Reply returns the decoded reply and whether one arrived.
func (v *Voice) Reply() (rag.VoiceReply, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.reply, v.got
}

// Audio decodes the spoken reply.
func (v *Voice) Audio() ([]byte, error) {
	r, ok := v.Reply()
	if !ok || r.Audio == "" {
		return nil, nil
	}

	b, err := base64.StdEncoding.DecodeString(r.Audio)
	if err != nil {
		return nil, fmt.Errorf("decoding voice reply audio: %w", err)
	}
	return b, nil
}

// Conversation returns the conversation the session writes to.
func (v *Voice) Conversation() *Conversation {
	return v.conv
}

// Summary implements Recordable.
func (v *Voice) Summary() Summary {
	r, _ := v.Reply()
	return v.summary(r.UserText)
}

// Snapshot implements Recordable.
func (v *Voice) Snapshot() any {
	return v.conv.Snapshot()
}
