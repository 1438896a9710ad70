package rag_test

import (
	"encoding/json"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/docweave/weave/pkg/rag"
)

var _ = Describe("Index", func() {
	It("decodes the tuple form of GET /indexes", func() {
		var list rag.IndexList
		Expect(json.Unmarshal([]byte(`{"indexes":[["hr",true],["legal",false]]}`), &list)).To(Succeed())
		Expect(list.Indexes).To(Equal([]rag.Index{
			{Name: "hr", Restricted: true},
			{Name: "legal", Restricted: false},
		}))
	})

	It("decodes the object form", func() {
		var idx rag.Index
		Expect(json.Unmarshal([]byte(`{"name":"hr","restricted":true}`), &idx)).To(Succeed())
		Expect(idx).To(Equal(rag.Index{Name: "hr", Restricted: true}))
	})

	It("rejects short tuples", func() {
		var idx rag.Index
		Expect(json.Unmarshal([]byte(`["hr"]`), &idx)).To(MatchError(ContainSubstring("want 2")))
	})
})

var _ = Describe("IndexStatus", func() {
	DescribeTable("Done",
		func(status string, done bool) {
			Expect(rag.IndexStatus{Status: status}.Done()).To(Equal(done))
		},
		Entry("in progress", rag.IndexInProgress, false),
		Entry("completed", rag.IndexCompleted, true),
		Entry("failed", rag.IndexFailed, true),
		Entry("error", rag.IndexError, true),
	)
})

var _ = Describe("CompareRequest", func() {
	var req rag.CompareRequest

	BeforeEach(func() {
		req = rag.CompareRequest{
			Phase:        rag.PhaseGenerate,
			Indexes:      []string{"a", "b"},
			Requirements: []rag.Requirement{{Description: "speed"}},
		}
	})

	It("accepts a generate request", func() {
		Expect(req.Validate()).To(Succeed())
	})

	It("requires two indexes", func() {
		req.Indexes = []string{"a"}
		Expect(req.Validate()).To(MatchError(ContainSubstring("exactly 2 indexes")))
	})

	It("requires feedback when refining", func() {
		req.Phase = rag.PhaseRefine
		Expect(req.Validate()).To(HaveOccurred())

		req.Feedback = "more detail"
		Expect(req.Validate()).To(Succeed())
	})

	It("requires requirements when executing", func() {
		req.Phase = rag.PhaseExecute
		req.Requirements = nil
		Expect(req.Validate()).To(HaveOccurred())
	})

	It("rejects unknown phases", func() {
		req.Phase = "publish"
		Expect(req.Validate()).To(MatchError(ContainSubstring("invalid comparison phase")))
	})
})

var _ = Describe("DecodeVoiceReply", func() {
	It("decodes the reply object", func() {
		r, err := rag.DecodeVoiceReply([]byte(`{"user_text":"hi","response":"hello","audio":"AAAA"}`))
		Expect(err).NotTo(HaveOccurred())
		Expect(r.UserText).To(Equal("hi"))
		Expect(r.Response).To(Equal("hello"))
	})
})
