package stream_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/docweave/weave/pkg/stream"
)

var _ = Describe("Splitter", func() {
	It("keeps a partial line pending", func() {
		s := stream.NewSplitter(stream.NDJSON)

		lines, err := s.Push([]byte("abc"))
		Expect(err).NotTo(HaveOccurred())
		Expect(lines).To(BeEmpty())
		Expect(string(s.Residual())).To(Equal("abc"))

		lines, err = s.Push([]byte("def\ngh"))
		Expect(err).NotTo(HaveOccurred())
		Expect(lines).To(HaveLen(1))
		Expect(string(lines[0])).To(Equal("abcdef"))
		Expect(string(s.Residual())).To(Equal("gh"))
	})

	It("leaves an empty pending buffer when a chunk ends on the delimiter", func() {
		s := stream.NewSplitter(stream.NDJSON)

		lines, err := s.Push([]byte("one\ntwo\n"))
		Expect(err).NotTo(HaveOccurred())
		Expect(lines).To(HaveLen(2))
		Expect(s.Residual()).To(BeEmpty())
	})

	It("returns empty lines between consecutive delimiters", func() {
		s := stream.NewSplitter(stream.SSE)

		lines, err := s.Push([]byte("a\n\nb\n"))
		Expect(err).NotTo(HaveOccurred())
		Expect(lines).To(HaveLen(3))
		Expect(string(lines[1])).To(BeEmpty())
	})

	It("does not alias returned lines to the pending buffer", func() {
		s := stream.NewSplitter(stream.NDJSON)

		lines, err := s.Push([]byte("first\nsec"))
		Expect(err).NotTo(HaveOccurred())

		_, err = s.Push([]byte("ond\n"))
		Expect(err).NotTo(HaveOccurred())
		Expect(string(lines[0])).To(Equal("first"))
	})

	It("drops everything on reset", func() {
		s := stream.NewSplitter(stream.NDJSON)
		_, _ = s.Push([]byte("partial"))
		s.Reset()
		Expect(s.Residual()).To(BeEmpty())
	})
})
