package session_test

import (
	"context"
	"errors"
	"sync"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/docweave/weave/pkg/rag"
	"github.com/docweave/weave/pkg/session"
	"github.com/docweave/weave/pkg/stream"
)

var _ = Describe("ChatStream", func() {
	var conv *session.Conversation

	BeforeEach(func() {
		conv = session.NewConversation("hr")
	})

	It("reassembles a delta split across chunks", func() {
		s, err := conv.Ask("greet me")
		Expect(err).NotTo(HaveOccurred())

		var fragments []string
		s.OnDelta(func(f string) { fragments = append(fragments, f) })

		err = session.Drive(ctx, sseReader(
			`data: {"choices":[{"delta":{"content":"Hel`,
			`lo"}}]}`+"\n",
			"data: [DONE]\n",
		), s)
		Expect(err).NotTo(HaveOccurred())

		Expect(fragments).To(Equal([]string{"Hello"}))
		Expect(s.State()).To(Equal(session.Complete))

		msgs := conv.Messages()
		Expect(msgs).To(HaveLen(2))
		Expect(msgs[0].Role).To(Equal(rag.RoleUser))
		Expect(msgs[1].Role).To(Equal(rag.RoleAssistant))
		Expect(msgs[1].Content).To(Equal("Hello"))
	})

	It("skips a fragment identical to the previous one", func() {
		s, _ := conv.Ask("q")
		err := session.Drive(ctx, sseReader(
			deltaLine("The "),
			deltaLine("answer"),
			deltaLine("answer"),
			deltaLine("."),
			deltaLine("answer"),
		), s)
		Expect(err).NotTo(HaveOccurred())

		m, ok := s.Message()
		Expect(ok).To(BeTrue())
		Expect(m.Content).To(Equal("The answer.answer"))
	})

	It("keeps duplicate tracking per stream", func() {
		first, _ := conv.Ask("one")
		Expect(session.Drive(ctx, sseReader(deltaLine("same")), first)).To(Succeed())

		other := session.NewConversation("hr")
		second, _ := other.Ask("two")
		Expect(session.Drive(ctx, sseReader(deltaLine("same")), second)).To(Succeed())

		third, _ := conv.Ask("three")
		Expect(session.Drive(ctx, sseReader(deltaLine("same")), third)).To(Succeed())

		m, _ := second.Message()
		Expect(m.Content).To(Equal("same"))
		m, _ = third.Message()
		Expect(m.Content).To(Equal("same"))
	})

	It("does not share state across concurrent streams", func() {
		var wg sync.WaitGroup
		convs := make([]*session.Conversation, 8)
		for i := range convs {
			convs[i] = session.NewConversation("hr")
			s, _ := convs[i].Ask("q")
			wg.Add(1)
			go func() {
				defer wg.Done()
				defer GinkgoRecover()
				Expect(session.Drive(ctx, sseReader(deltaLine("a"), deltaLine("b"), deltaLine("a")), s)).To(Succeed())
			}()
		}
		wg.Wait()

		for _, c := range convs {
			m, ok := c.LastAnswer()
			Expect(ok).To(BeTrue())
			Expect(m.Content).To(Equal("aba"))
		}
	})

	It("replaces the citations of the open message", func() {
		s, _ := conv.Ask("q")
		err := session.Drive(ctx, sseReader(
			deltaLine("See the handbook."),
			`data: {"choices":[{"delta":{"context":{"citations":[{"title":"Old","url":"u0"}]}}}]}`+"\n",
			`data: {"choices":[{"delta":{"context":{"citations":[{"title":"Handbook","url":"u1"},{"title":"Policy","url":"u2"}]}}}]}`+"\n",
			"data: [DONE]\n",
		), s)
		Expect(err).NotTo(HaveOccurred())

		m, _ := conv.LastAnswer()
		Expect(m.Content).To(Equal("See the handbook."))
		Expect(m.Citations).To(HaveLen(2))
		Expect(m.Citations[0].Title).To(Equal("Handbook"))
	})

	It("ignores chunks without content or citations", func() {
		s, _ := conv.Ask("q")
		err := session.Drive(ctx, sseReader(
			`data: {"choices":[]}`+"\n",
			`data: {"choices":[{"delta":{"role":"assistant"}}]}`+"\n",
		), s)
		Expect(err).NotTo(HaveOccurred())

		_, ok := s.Message()
		Expect(ok).To(BeFalse())
		Expect(conv.Messages()).To(HaveLen(1))
		Expect(s.State()).To(Equal(session.Complete))
	})

	It("appends one generic error message on transport failure", func() {
		s, _ := conv.Ask("q")
		src := &chunks{parts: []string{deltaLine("partial")}, err: errors.New("connection reset")}
		r := stream.NewReader(src, stream.SSE, rag.DecodeChatChunk)

		err := session.Drive(ctx, r, s)
		Expect(err).To(MatchError(ContainSubstring("connection reset")))
		Expect(s.State()).To(Equal(session.Errored))

		msgs := conv.Messages()
		Expect(msgs).To(HaveLen(3))
		Expect(msgs[1].Content).To(Equal("partial"))
		Expect(msgs[2].Content).To(Equal(rag.GenericErrorMessage))
		Expect(msgs[2].Error).To(BeTrue())

		_, ok := conv.LastAnswer()
		Expect(ok).To(BeTrue())
		Expect(conv.History()).To(HaveLen(2))
	})

	It("records a request that failed before streaming", func() {
		s, _ := conv.Ask("q")
		session.Abort[rag.ChatChunk](s, errors.New("backend returned 500"))

		Expect(s.State()).To(Equal(session.Errored))
		msgs := conv.Messages()
		Expect(msgs[len(msgs)-1].Content).To(Equal(rag.GenericErrorMessage))
		Expect(conv.Summary().State).To(Equal("errored"))
	})

	It("appends nothing when the request is cancelled", func() {
		s, _ := conv.Ask("q")
		cctx, cancel := context.WithCancel(ctx)
		cancel()

		err := session.Drive(cctx, sseReader(deltaLine("x")), s)
		Expect(err).To(MatchError(context.Canceled))
		Expect(s.State()).To(Equal(session.Errored))
		Expect(conv.Messages()).To(HaveLen(1))
	})

	It("refuses a second reply while one is streaming", func() {
		s, _ := conv.Ask("q")
		Expect(s.Begin()).To(Succeed())

		_, err := conv.Ask("again")
		Expect(err).To(MatchError(session.ErrReplyInProgress))

		s.Finish(session.Outcome{})
		_, err = conv.Reply()
		Expect(err).NotTo(HaveOccurred())
	})

	It("claims the conversation before the reply begins", func() {
		s, err := conv.Ask("q")
		Expect(err).NotTo(HaveOccurred())

		_, err = conv.Ask("again")
		Expect(err).To(MatchError(session.ErrReplyInProgress))
		_, err = conv.Reply()
		Expect(err).To(MatchError(session.ErrReplyInProgress))
		Expect(conv.Messages()).To(HaveLen(1))

		Expect(session.Drive(ctx, sseReader(deltaLine("a")), s)).To(Succeed())
		_, err = conv.Ask("next")
		Expect(err).NotTo(HaveOccurred())
	})

	It("ignores a second drive of a finished stream", func() {
		s, _ := conv.Ask("q")
		Expect(session.Drive(ctx, sseReader(deltaLine("done")), s)).To(Succeed())

		err := session.Drive(ctx, sseReader(deltaLine("again")), s)
		Expect(err).To(MatchError(session.ErrInvalidTransition))
		Expect(s.State()).To(Equal(session.Complete))
		Expect(conv.Messages()).To(HaveLen(2))
	})

	It("rejects records once the stream is complete", func() {
		s, _ := conv.Ask("q")
		Expect(session.Drive(ctx, sseReader(deltaLine("done")), s)).To(Succeed())

		chunk, _ := rag.DecodeChatChunk([]byte(`{"choices":[{"delta":{"content":"late"}}]}`))
		Expect(s.Apply(chunk)).To(MatchError(session.ErrInvalidTransition))

		m, _ := s.Message()
		Expect(m.Content).To(Equal("done"))
	})
})

var _ = Describe("Conversation", func() {
	It("summarizes with the first question as title", func() {
		conv := session.NewConversation("legal")
		s, _ := conv.Ask("What is the notice period?")
		Expect(session.Drive(ctx, sseReader(deltaLine("30 days")), s)).To(Succeed())

		sum := conv.Summary()
		Expect(sum.ID).To(Equal(conv.ID()))
		Expect(sum.Kind).To(Equal(session.KindChat))
		Expect(sum.Index).To(Equal("legal"))
		Expect(sum.Title).To(Equal("What is the notice period?"))
		Expect(sum.State).To(Equal("complete"))
		Expect(sum.Records).To(Equal(1))
	})

	It("restores from a snapshot", func() {
		conv := session.NewConversation("legal")
		s, _ := conv.Ask("q")
		Expect(session.Drive(ctx, sseReader(deltaLine("a")), s)).To(Succeed())

		snap, ok := conv.Snapshot().(session.ConversationSnapshot)
		Expect(ok).To(BeTrue())

		restored := session.RestoreConversation(snap)
		Expect(restored.ID()).To(Equal(conv.ID()))
		Expect(restored.Messages()).To(Equal(conv.Messages()))

		q, ok := restored.LastQuestion()
		Expect(ok).To(BeTrue())
		Expect(q).To(Equal("q"))
	})
})
