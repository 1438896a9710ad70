package rag_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/docweave/weave/pkg/rag"
)

var _ = Describe("Event", func() {
	Describe("DecodeEvent", func() {
		It("decodes a typed event", func() {
			e, err := rag.DecodeEvent([]byte(`{"type":"status","content":"ok"}`))
			Expect(err).NotTo(HaveOccurred())
			Expect(e.Type).To(Equal(rag.EventStatus))
			Expect(e.Text()).To(Equal("ok"))
		})

		It("rejects untyped objects", func() {
			_, err := rag.DecodeEvent([]byte(`{"content":"ok"}`))
			Expect(err).To(MatchError(rag.ErrUntypedEvent))
		})

		It("maps bare error objects to error events", func() {
			e, err := rag.DecodeEvent([]byte(`{"error":"Comparison failed"}`))
			Expect(err).NotTo(HaveOccurred())
			Expect(e.Type).To(Equal(rag.EventError))
			Expect(e.ErrorText()).To(Equal("Comparison failed"))
		})

		It("keeps unknown types", func() {
			e, err := rag.DecodeEvent([]byte(`{"type":"something_new","content":{"a":1}}`))
			Expect(err).NotTo(HaveOccurred())
			Expect(e.Type).To(Equal("something_new"))
			Expect(e.Text()).To(Equal(`{"a":1}`))
		})
	})

	Describe("Decode", func() {
		It("decodes citation content with its query", func() {
			e, err := rag.DecodeEvent([]byte(`{"type":"citation","content":{"title":"Doc A","url":"u1","query":"q"}}`))
			Expect(err).NotTo(HaveOccurred())

			var c rag.CitationContent
			Expect(e.Decode(&c)).To(Succeed())
			Expect(c.Title).To(Equal("Doc A"))
			Expect(c.URL).To(Equal("u1"))
			Expect(c.Query).To(Equal("q"))
		})

		It("fails on missing content", func() {
			e := rag.Event{Type: rag.EventSearch}
			var s rag.SearchContent
			Expect(e.Decode(&s)).To(MatchError(ContainSubstring("no content")))
		})

		It("decodes comparison results", func() {
			e, err := rag.DecodeEvent([]byte(`{"type":"comparison_result","content":{
				"requirement":{"description":"Max speed","metric_type":"numeric","metric_unit":"km/h"},
				"sources":{"a":{"response":"120 km/h","simplified_value":120,"citations":[{"document_id":"d1","index_name":"a"}]},
				           "b":{"response":"yes","simplified_value":true}}}}`))
			Expect(err).NotTo(HaveOccurred())

			var r rag.ComparisonResult
			Expect(e.Decode(&r)).To(Succeed())
			Expect(r.Requirement.MetricUnit).To(Equal("km/h"))
			Expect(r.Sources["a"].Value()).To(Equal("120"))
			Expect(r.Sources["b"].Value()).To(Equal("true"))
			Expect(r.Sources["a"].Citations[0].IndexName).To(Equal("a"))
		})
	})

	Describe("Requirements", func() {
		It("wraps a single requirement", func() {
			e, _ := rag.DecodeEvent([]byte(`{"type":"requirement","content":{"description":"a"}}`))
			rs, err := e.Requirements()
			Expect(err).NotTo(HaveOccurred())
			Expect(rs).To(Equal([]rag.Requirement{{Description: "a"}}))
		})

		It("reads requirement arrays", func() {
			e, _ := rag.DecodeEvent([]byte(`{"type":"refined_requirements","content":[{"description":"a"},{"description":"b"}]}`))
			rs, err := e.Requirements()
			Expect(err).NotTo(HaveOccurred())
			Expect(rs).To(HaveLen(2))
		})

		It("refuses other event types", func() {
			_, err := rag.Event{Type: rag.EventStatus}.Requirements()
			Expect(err).To(HaveOccurred())
		})
	})

	DescribeTable("Text",
		func(raw string, want string) {
			Expect(rag.Text([]byte(raw))).To(Equal(want))
		},
		Entry("string", `"hello"`, "hello"),
		Entry("null", `null`, ""),
		Entry("empty", ``, ""),
		Entry("object", `{ "a" : 1 }`, `{"a":1}`),
		Entry("number", `42`, "42"),
	)
})
