package runner_test

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"sync"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/docweave/weave/pkg/client"
	"github.com/docweave/weave/pkg/rag"
	"github.com/docweave/weave/pkg/runner"
	"github.com/docweave/weave/pkg/session"
	testutils "github.com/docweave/weave/pkg/utils/test"
)

type recorder struct {
	mu       sync.Mutex
	sessions []session.Summary
}

func (r *recorder) Record(s session.Recordable) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions = append(r.sessions, s.Summary())
	return true
}

var _ = Describe("Runner", func() {
	var (
		ctx     context.Context
		backend *testutils.FakeBackend
		rec     *recorder
		run     *runner.Runner
	)

	BeforeEach(func() {
		ctx = context.Background()
		backend = testutils.NewFakeBackend()
		DeferCleanup(backend.Close)

		c, err := client.New(backend.URL, client.WithRestricted(false))
		Expect(err).NotTo(HaveOccurred())

		rec = &recorder{}
		run = runner.New(c, rec, nil)
	})

	Describe("Chat", func() {
		It("streams the answer, reports deltas and records the conversation", func() {
			backend.ChatParts = []string{
				`data: {"choices":[{"delta":{"content":"Twenty"}}]}` + "\n",
				`data: {"choices":[{"delta":{"content":" days."}}]}` + "\n",
				"data: [DONE]\n",
			}

			var deltas []string
			conv := session.NewConversation("hr")
			s, err := run.Chat(ctx, conv, "How much leave?", func(f string) { deltas = append(deltas, f) })
			Expect(err).NotTo(HaveOccurred())
			Expect(s.State()).To(Equal(session.Complete))
			Expect(deltas).To(Equal([]string{"Twenty", " days."}))

			answer, ok := conv.LastAnswer()
			Expect(ok).To(BeTrue())
			Expect(answer.Content).To(Equal("Twenty days."))

			req, _ := backend.LastRequest("/chat")
			var body rag.ChatRequest
			Expect(json.Unmarshal(req.Body, &body)).To(Succeed())
			Expect(body.IsRestricted).To(BeFalse())

			Expect(rec.sessions).To(HaveLen(1))
			Expect(rec.sessions[0].ID).To(Equal(conv.ID()))
			Expect(rec.sessions[0].State).To(Equal("complete"))
		})

		It("ends errored with the generic message when the request fails", func() {
			backend.FailWith["/chat"] = http.StatusInternalServerError

			conv := session.NewConversation("hr")
			s, err := run.Chat(ctx, conv, "q", nil)
			Expect(err).To(HaveOccurred())
			Expect(s.State()).To(Equal(session.Errored))

			msgs := conv.Messages()
			Expect(msgs).To(HaveLen(2))
			Expect(msgs[1].Error).To(BeTrue())
			Expect(msgs[1].Content).To(Equal(rag.GenericErrorMessage))
			Expect(rec.sessions[0].State).To(Equal("errored"))
		})
	})

	Describe("Refine", func() {
		It("refuses when there is no answer", func() {
			_, err := run.Refine(ctx, session.NewConversation("hr"), "shorter", nil)
			Expect(err).To(MatchError(runner.ErrNothingToRefine))
		})

		It("sends the last question and citations and appends the refined answer", func() {
			backend.ChatParts = []string{
				`data: {"choices":[{"delta":{"content":"Long answer","context":{"citations":[{"title":"Policy","url":"u1"}]}}}]}` + "\n",
			}
			backend.RefineParts = []string{`data: {"choices":[{"delta":{"content":"Short."}}]}` + "\n"}

			conv := session.NewConversation("hr")
			_, err := run.Chat(ctx, conv, "What is the policy?", nil)
			Expect(err).NotTo(HaveOccurred())

			_, err = run.Refine(ctx, conv, "shorter please", nil)
			Expect(err).NotTo(HaveOccurred())

			answer, _ := conv.LastAnswer()
			Expect(answer.Content).To(Equal("Short."))

			req, _ := backend.LastRequest("/refine")
			var body rag.RefineRequest
			Expect(json.Unmarshal(req.Body, &body)).To(Succeed())
			Expect(body.Message).To(Equal("shorter please"))
			Expect(body.OriginalQuestion).To(Equal("What is the policy?"))
			Expect(body.Citations).To(HaveLen(1))
		})
	})

	Describe("Research", func() {
		It("runs to completion and records the run", func() {
			backend.ResearchParts = []string{
				`{"type":"search","content":{"index":"hr","query":"leave"}}` + "\n",
				`{"type":"final_conclusion","content":"Twenty days."}` + "\n",
			}

			var events []session.TimelineEvent
			res, err := run.Research(ctx, rag.ResearchRequest{
				Question:    "leave?",
				MaxRounds:   1,
				DataSources: []rag.DataSource{{Index: "hr", Name: "HR"}},
			}, func(e session.TimelineEvent) { events = append(events, e) })
			Expect(err).NotTo(HaveOccurred())
			Expect(res.State()).To(Equal(session.Complete))
			Expect(events).To(HaveLen(2))
			Expect(rec.sessions[0].Kind).To(Equal(session.KindResearch))
		})

		It("records a run that could not start", func() {
			res, err := run.Research(ctx, rag.ResearchRequest{Question: "q"}, nil)
			Expect(err).To(HaveOccurred())
			Expect(res.State()).To(Equal(session.Errored))
			Expect(rec.sessions).To(HaveLen(1))
		})
	})

	Describe("Compare", func() {
		It("sends the client restriction flag", func() {
			backend.CompareParts = []string{`{"type":"requirement","content":{"description":"Speed"}}` + "\n"}

			cmp, err := run.Compare(ctx, rag.CompareRequest{
				Phase:   rag.PhaseGenerate,
				Indexes: []string{"a", "b"},
			}, nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(cmp.Requirements()).To(HaveLen(1))

			req, _ := backend.LastRequest("/compare")
			var body rag.CompareRequest
			Expect(json.Unmarshal(req.Body, &body)).To(Succeed())
			Expect(body.IsRestricted).To(BeFalse())
		})
	})

	Describe("Voice", func() {
		It("folds the reply into the conversation", func() {
			audio := base64.StdEncoding.EncodeToString([]byte("RIFF"))
			backend.VoiceBody = `{"user_text":"How much leave?","response":"Twenty days.","audio":"` + audio + `"}`

			conv := session.NewConversation("hr")
			v, err := run.Voice(ctx, conv, []byte("wav"), "q.wav")
			Expect(err).NotTo(HaveOccurred())
			Expect(v.State()).To(Equal(session.Complete))

			msgs := conv.Messages()
			Expect(msgs).To(HaveLen(2))
			Expect(msgs[0].Content).To(Equal("How much leave?"))
			Expect(msgs[1].Content).To(Equal("Twenty days."))

			raw, err := v.Audio()
			Expect(err).NotTo(HaveOccurred())
			Expect(raw).To(Equal([]byte("RIFF")))
		})
	})
})
