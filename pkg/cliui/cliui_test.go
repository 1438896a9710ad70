package cliui_test

import (
	"bytes"
	"errors"
	"os"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/docweave/weave/pkg/cliui"
	"github.com/docweave/weave/pkg/rag"
)

var _ = Describe("Step", func() {
	It("prints a success mark and returns nil", func() {
		var buf bytes.Buffer
		Expect(cliui.Step(&buf, "Uploading", func() error { return nil })).To(Succeed())
		Expect(buf.String()).To(ContainSubstring("Uploading"))
		Expect(buf.String()).To(ContainSubstring(cliui.SuccessMark))
	})

	It("returns the error of fn", func() {
		var buf bytes.Buffer
		boom := errors.New("boom")
		Expect(cliui.Step(&buf, "Indexing", func() error { return boom })).To(MatchError(boom))
		Expect(buf.String()).To(ContainSubstring(cliui.FailMark))
	})
})

var _ = DescribeTable("FormatDuration",
	func(d time.Duration, want string) {
		Expect(cliui.FormatDuration(d)).To(Equal(want))
	},
	Entry("milliseconds", 12*time.Millisecond, "12ms"),
	Entry("seconds", 3200*time.Millisecond, "3.2s"),
)

var _ = Describe("Theme", func() {
	BeforeEach(func() {
		os.Setenv("NO_COLOR", "1")
		DeferCleanup(func() { os.Unsetenv("NO_COLOR") })
	})

	It("rejects unknown themes", func() {
		_, err := cliui.NewTheme("neon")
		Expect(err).To(HaveOccurred())
	})

	It("honours NO_COLOR", func() {
		t, err := cliui.NewTheme("dark")
		Expect(err).NotTo(HaveOccurred())
		Expect(t.Plain()).To(BeTrue())
		Expect(t.User.Render("you> ")).To(Equal("you> "))
	})

	It("renders markdown", func() {
		t, err := cliui.NewTheme("light")
		Expect(err).NotTo(HaveOccurred())

		out, err := t.RenderMarkdown("# Policy\n\nTravel is **reimbursed**.", 60)
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(ContainSubstring("Policy"))
		Expect(out).To(ContainSubstring("reimbursed"))
	})

	It("lists citations once per document", func() {
		t, err := cliui.NewTheme("dark")
		Expect(err).NotTo(HaveOccurred())

		out := t.Citations([]rag.Citation{
			{Title: "Handbook", URL: "https://docs/handbook.pdf"},
			{Title: "Handbook", URL: "https://docs/handbook.pdf"},
			{Filepath: "policies/travel.pdf"},
		})
		Expect(out).To(Equal("  [1] Handbook https://docs/handbook.pdf\n  [2] policies/travel.pdf\n"))
	})

	It("prints nothing without citations", func() {
		t, err := cliui.NewTheme("dark")
		Expect(err).NotTo(HaveOccurred())
		Expect(t.Citations(nil)).To(BeEmpty())
	})
})

var _ = Describe("Excerpt", func() {
	It("collapses whitespace and truncates", func() {
		Expect(cliui.Excerpt("a\n\n  b   c", 80)).To(Equal("a b c"))
		Expect(cliui.Excerpt("abcdef", 3)).To(Equal("abc..."))
	})
})
