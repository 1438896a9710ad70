// Package runner opens backend streams and drives them into sessions. It is
// shared by the CLI commands and the MCP tools; finished sessions are handed
// to an optional Recorder.
package runner

import (
	"context"
	"errors"
	"log/slog"

	"github.com/docweave/weave/pkg/client"
	"github.com/docweave/weave/pkg/logger"
	"github.com/docweave/weave/pkg/rag"
	"github.com/docweave/weave/pkg/session"
	"github.com/docweave/weave/pkg/stream"
)

// ErrNothingToRefine is returned by Refine when the conversation has no
// answer yet.
var ErrNothingToRefine = errors.New("no answer to refine yet")

// Recorder receives finished sessions. *worker.Pool implements it.
type Recorder interface {
	Record(s session.Recordable) bool
}

// Runner runs streaming sessions against one backend.
type Runner struct {
	client   *client.Client
	recorder Recorder
	logger   *slog.Logger
}

// New returns a runner. recorder may be nil.
func New(c *client.Client, recorder Recorder, l *slog.Logger) *Runner {
	if l == nil {
		l = logger.Nop()
	}
	return &Runner{client: c, recorder: recorder, logger: l}
}

// Client returns the backend client.
func (r *Runner) Client() *client.Client {
	return r.client
}

func (r *Runner) record(s session.Recordable) {
	if r.recorder == nil {
		return
	}
	if !r.recorder.Record(s) {
		r.logger.Warn("session not recorded", "session_id", s.Summary().ID)
	}
}

// Chat asks question in conv and streams the reply. onDelta, when set, is
// called with every appended fragment. The returned stream is finished; its
// error is also returned.
func (r *Runner) Chat(ctx context.Context, conv *session.Conversation, question string, onDelta func(string)) (*session.ChatStream, error) {
	s, err := conv.Ask(question)
	if err != nil {
		return nil, err
	}
	s.OnDelta(onDelta)

	reader, err := r.client.Chat(ctx, rag.ChatRequest{
		Messages:     conv.History(),
		IndexName:    conv.Index(),
		IsRestricted: r.client.Restricted(),
	})
	return s, r.finishChat(ctx, conv, s, reader, err)
}

// Refine asks the backend to rework the last answer of conv according to
// feedback. The refined answer is appended as a new assistant message.
func (r *Runner) Refine(ctx context.Context, conv *session.Conversation, feedback string, onDelta func(string)) (*session.ChatStream, error) {
	answer, ok := conv.LastAnswer()
	if !ok {
		return nil, ErrNothingToRefine
	}
	question, _ := conv.LastQuestion()

	s, err := conv.Reply()
	if err != nil {
		return nil, err
	}
	s.OnDelta(onDelta)

	reader, err := r.client.Refine(ctx, rag.RefineRequest{
		Message:          feedback,
		Citations:        answer.Citations,
		IndexName:        conv.Index(),
		IsRestricted:     r.client.Restricted(),
		OriginalQuestion: question,
	})
	return s, r.finishChat(ctx, conv, s, reader, err)
}

func (r *Runner) finishChat(ctx context.Context, conv *session.Conversation, s *session.ChatStream, reader *stream.Reader[rag.ChatChunk], openErr error) error {
	defer r.record(conv)

	if openErr != nil {
		return abort[rag.ChatChunk](s, openErr)
	}
	return session.Drive(ctx, reader, s)
}

// Research runs a research session to completion.
func (r *Runner) Research(ctx context.Context, req rag.ResearchRequest, onEvent func(session.TimelineEvent)) (*session.Research, error) {
	res := session.NewResearch(req.Question, req.DataSources...)
	res.OnEvent(onEvent)
	defer r.record(res)

	reader, err := r.client.Research(ctx, req)
	if err != nil {
		return res, abort[rag.Event](res, err)
	}
	return res, session.Drive(ctx, reader, res)
}

// Compare runs one comparison phase to completion.
func (r *Runner) Compare(ctx context.Context, req rag.CompareRequest, onEvent func(rag.Event)) (*session.Comparison, error) {
	req.IsRestricted = r.client.Restricted()

	cmp := session.NewComparison(req)
	cmp.OnEvent(onEvent)
	defer r.record(cmp)

	reader, err := r.client.Compare(ctx, req)
	if err != nil {
		return cmp, abort[rag.Event](cmp, err)
	}
	return cmp, session.Drive(ctx, reader, cmp)
}

// Voice sends a recorded question in conv and folds the reply into it.
func (r *Runner) Voice(ctx context.Context, conv *session.Conversation, audio []byte, filename string) (*session.Voice, error) {
	v := session.NewVoice(conv)
	defer r.record(v)

	reader, err := r.client.VoiceChat(ctx, rag.VoiceRequest{
		Audio:      audio,
		Filename:   filename,
		IndexName:  conv.Index(),
		Restricted: r.client.Restricted(),
		History:    conv.History(),
	})
	if err != nil {
		return v, abort[rag.VoiceReply](v, err)
	}
	return v, session.Drive(ctx, reader, v)
}

// abort moves a sink that never got a stream to its errored state.
func abort[T any](sink session.Sink[T], err error) error {
	session.Abort(sink, err)
	return err
}
