package client_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/docweave/weave/pkg/client"
	"github.com/docweave/weave/pkg/rag"
	"github.com/docweave/weave/pkg/session"
	testutils "github.com/docweave/weave/pkg/utils/test"
)

var _ = Describe("Client", func() {
	var (
		backend *testutils.FakeBackend
		c       *client.Client
		ctx     context.Context
	)

	BeforeEach(func() {
		var err error
		ctx = context.Background()
		backend = testutils.NewFakeBackend()
		c, err = client.New(backend.URL, client.WithRestricted(false))
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		backend.Close()
	})

	Describe("New", func() {
		It("rejects non-http URLs", func() {
			_, err := client.New("ftp://example.com")
			Expect(err).To(HaveOccurred())
		})

		It("defaults the base URL", func() {
			c, err := client.New("")
			Expect(err).NotTo(HaveOccurred())
			Expect(c.BaseURL()).To(Equal(client.DefaultBaseURL))
			Expect(c.Restricted()).To(BeTrue())
		})
	})

	Describe("Chat", func() {
		It("streams a reply into a conversation", func() {
			backend.ChatParts = []string{
				`data: {"choices":[{"delta":{"content":"Hel`,
				`lo"}}]}` + "\n",
				`data: {"choices":[{"delta":{"context":{"citations":[{"title":"Doc A","url":"u1"}]}}}]}` + "\n",
				"data: [DONE]\n",
			}

			conv := session.NewConversation("hr")
			s, err := conv.Ask("hi")
			Expect(err).NotTo(HaveOccurred())

			r, err := c.Chat(ctx, rag.ChatRequest{Messages: conv.History(), IndexName: "hr"})
			Expect(err).NotTo(HaveOccurred())
			Expect(session.Drive(ctx, r, s)).To(Succeed())

			m, ok := conv.LastAnswer()
			Expect(ok).To(BeTrue())
			Expect(m.Content).To(Equal("Hello"))
			Expect(m.Citations).To(HaveLen(1))
			Expect(r.SawSentinel()).To(BeTrue())

			req, ok := backend.LastRequest("/chat")
			Expect(ok).To(BeTrue())
			var body rag.ChatRequest
			Expect(json.Unmarshal(req.Body, &body)).To(Succeed())
			Expect(body.IndexName).To(Equal("hr"))
			Expect(body.Messages).To(Equal([]rag.ChatTurn{{Role: "user", Content: "hi"}}))
		})

		It("returns a status error for non-2xx answers", func() {
			backend.FailWith["/chat"] = http.StatusForbidden

			_, err := c.Chat(ctx, rag.ChatRequest{IndexName: "hr"})
			Expect(err).To(HaveOccurred())
			Expect(client.IsStatus(err, http.StatusForbidden)).To(BeTrue())
			Expect(err.Error()).To(ContainSubstring("forced failure"))
		})

		It("copies the raw stream to the tee", func() {
			var raw bytes.Buffer
			tc, err := client.New(backend.URL, client.WithTee(&raw))
			Expect(err).NotTo(HaveOccurred())

			backend.ChatParts = []string{"data: [DONE]\n"}
			r, err := tc.Chat(ctx, rag.ChatRequest{})
			Expect(err).NotTo(HaveOccurred())

			Expect(r.Consume(ctx, func(rag.ChatChunk) error { return nil })).To(Succeed())
			Expect(raw.String()).To(Equal("data: [DONE]\n"))
		})
	})

	Describe("Refine", func() {
		It("streams the refined answer", func() {
			backend.RefineParts = []string{`data: {"choices":[{"delta":{"content":"Shorter."}}]}` + "\n", "data: [DONE]\n"}

			r, err := c.Refine(ctx, rag.RefineRequest{Message: "Long answer", IndexName: "hr", OriginalQuestion: "q"})
			Expect(err).NotTo(HaveOccurred())

			var got []string
			Expect(r.Consume(ctx, func(chunk rag.ChatChunk) error {
				d, _ := chunk.Delta()
				got = append(got, d.Content)
				return nil
			})).To(Succeed())
			Expect(got).To(Equal([]string{"Shorter."}))
		})
	})

	Describe("Research", func() {
		It("streams NDJSON events including an unterminated last one", func() {
			backend.ResearchParts = []string{
				`{"type":"search","content":{"index":"hr","query":"q"}}` + "\n" + `{"type":"cit`,
				`ation","content":{"title":"Doc A","url":"u1","query":"q"}}` + "\n",
				`{"type":"final_conclusion","content":"done"}`,
			}

			res := session.NewResearch("q", rag.DataSource{Index: "hr", Name: "HR"})
			r, err := c.Research(ctx, rag.ResearchRequest{
				Question:    "q",
				MaxRounds:   2,
				DataSources: []rag.DataSource{{Index: "hr", Name: "HR"}},
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(session.Drive(ctx, r, res)).To(Succeed())

			Expect(res.Completed()).To(BeTrue())
			Expect(res.TopDocuments(1)[0].Title).To(Equal("Doc A"))
		})

		It("validates the request locally", func() {
			_, err := c.Research(ctx, rag.ResearchRequest{Question: "q"})
			Expect(err).To(MatchError(ContainSubstring("data source")))
			Expect(backend.Requests()).To(BeEmpty())
		})
	})

	Describe("Compare", func() {
		It("refuses invalid phases before sending", func() {
			_, err := c.Compare(ctx, rag.CompareRequest{Phase: "nope", Indexes: []string{"a", "b"}})
			Expect(err).To(HaveOccurred())
			Expect(backend.Requests()).To(BeEmpty())
		})

		It("streams generated requirements", func() {
			backend.CompareParts = []string{`{"type":"requirement","content":{"description":"Speed"}}`}

			req := rag.CompareRequest{Phase: rag.PhaseGenerate, Indexes: []string{"a", "b"}, NumRequirements: 1}
			cmp := session.NewComparison(req)
			r, err := c.Compare(ctx, req)
			Expect(err).NotTo(HaveOccurred())
			Expect(session.Drive(ctx, r, cmp)).To(Succeed())
			Expect(cmp.Requirements()).To(HaveLen(1))
		})
	})

	Describe("VoiceChat", func() {
		It("uploads the recording as a multipart form", func() {
			backend.VoiceBody = `{"user_text":"hi","response":"hello"}`

			conv := session.NewConversation("hr")
			v := session.NewVoice(conv)
			r, err := c.VoiceChat(ctx, rag.VoiceRequest{
				Audio:     []byte("RIFF"),
				IndexName: "hr",
				History:   []rag.ChatTurn{{Role: "user", Content: "earlier"}},
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(session.Drive(ctx, r, v)).To(Succeed())
			Expect(conv.Messages()).To(HaveLen(2))

			req, ok := backend.LastRequest("/voice_chat")
			Expect(ok).To(BeTrue())
			Expect(req.Form).To(HaveKeyWithValue("index_name", "hr"))
			Expect(req.Form).To(HaveKeyWithValue("is_restricted", "false"))
			Expect(req.Form["conversation_history"]).To(ContainSubstring("earlier"))
		})
	})

	Describe("indexes", func() {
		It("creates, lists and deletes indexes", func() {
			res, err := c.CreateIndex(ctx, "hr")
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Message).To(ContainSubstring("created"))

			indexes, err := c.Indexes(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(indexes).To(Equal([]rag.Index{{Name: "hr", Restricted: false}}))

			_, err = c.DeleteIndex(ctx, "hr")
			Expect(err).NotTo(HaveOccurred())

			indexes, err = c.Indexes(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(indexes).To(BeEmpty())
		})

		It("rejects names the backend would refuse", func() {
			_, err := c.CreateIndex(ctx, "Handbook2024")
			Expect(err).To(MatchError(client.ErrInvalidIndexName))
		})

		It("sends the restricted flag with index operations", func() {
			_, err := c.Files(ctx, "hr")
			Expect(err).NotTo(HaveOccurred())

			req, _ := backend.LastRequest("/indexes/hr/files")
			Expect(req.Query).To(Equal("is_restricted=false"))
		})

		It("uploads, lists and removes files", func() {
			up, err := c.Upload(ctx, "hr", "handbook.pdf", strings.NewReader("%PDF-1.7"), true)
			Expect(err).NotTo(HaveOccurred())
			Expect(up.Filename).To(Equal("handbook.pdf"))
			Expect(backend.Uploads).To(HaveKeyWithValue("hr/handbook.pdf", []byte("%PDF-1.7")))

			req, _ := backend.LastRequest("/indexes/hr/upload")
			Expect(req.Form).To(HaveKeyWithValue("multimodal", "true"))

			files, err := c.Files(ctx, "hr")
			Expect(err).NotTo(HaveOccurred())
			Expect(files.Files).To(ConsistOf("handbook.pdf"))

			_, err = c.DeleteFile(ctx, "hr", "handbook.pdf")
			Expect(err).NotTo(HaveOccurred())

			files, err = c.Files(ctx, "hr")
			Expect(err).NotTo(HaveOccurred())
			Expect(files.Files).To(BeEmpty())
		})

		It("starts indexing and reports its status", func() {
			status, err := c.IndexStatus(ctx, "hr")
			Expect(err).NotTo(HaveOccurred())
			Expect(status.Done()).To(BeFalse())

			job, err := c.StartIndexing(ctx, "hr")
			Expect(err).NotTo(HaveOccurred())
			Expect(job.JobID).To(Equal("hr-ingestion"))

			status, err = c.IndexStatus(ctx, "hr")
			Expect(err).NotTo(HaveOccurred())
			Expect(status.Status).To(Equal(rag.IndexCompleted))
		})

		It("downloads source documents", func() {
			backend.PDFs["hr/policies/travel.pdf"] = []byte("%PDF")

			body, err := c.PDF(ctx, "hr", "policies/travel.pdf")
			Expect(err).NotTo(HaveOccurred())
			defer body.Close()

			content, err := io.ReadAll(body)
			Expect(err).NotTo(HaveOccurred())
			Expect(string(content)).To(Equal("%PDF"))
		})

		It("reports missing documents", func() {
			_, err := c.PDF(ctx, "hr", "missing.pdf")
			Expect(client.IsStatus(err, http.StatusNotFound)).To(BeTrue())
		})
	})

	Describe("Ask", func() {
		It("returns the answers", func() {
			backend.Answers = []rag.Answer{{Question: "q1", Answer: "a1"}}

			answers, err := c.Ask(ctx, rag.AskRequest{Questions: []string{"q1"}, IndexName: "hr"})
			Expect(err).NotTo(HaveOccurred())
			Expect(answers).To(HaveLen(1))
		})

		It("requires a question", func() {
			_, err := c.Ask(ctx, rag.AskRequest{IndexName: "hr"})
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("Config", func() {
		It("reads the backend flags", func() {
			cfg, err := c.Config(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(cfg.OperationsRestricted).To(BeFalse())
		})
	})
})

var _ = Describe("StatusError", func() {
	It("falls back to the body", func() {
		err := &client.StatusError{StatusCode: 502, Body: "bad gateway\n"}
		Expect(err.Error()).To(Equal("backend returned status 502: bad gateway"))
	})

	It("prefers the backend message", func() {
		err := &client.StatusError{StatusCode: 400, Message: "Index name is required", Body: "{}"}
		Expect(err.Error()).To(Equal("backend returned status 400: Index name is required"))
	})
})

var _ = DescribeTable("ValidateIndexName",
	func(name string, ok bool) {
		err := client.ValidateIndexName(name)
		if ok {
			Expect(err).NotTo(HaveOccurred())
		} else {
			Expect(err).To(MatchError(client.ErrInvalidIndexName))
		}
	},
	Entry("lowercase", "hr", true),
	Entry("with digits", "hr2024", true),
	Entry("empty", "", false),
	Entry("too long", "abcdefghijk", false),
	Entry("uppercase", "HR", false),
	Entry("digits only", "2024", false),
)
