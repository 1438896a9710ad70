package indexcmder_test

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	indexcmder "github.com/docweave/weave/cmd/weave/index"
	"github.com/docweave/weave/pkg/config"
	"github.com/docweave/weave/pkg/rag"
	testutils "github.com/docweave/weave/pkg/utils/test"
)

var _ = Describe("Index command", func() {
	var (
		tmpDir  string
		origDir string
		backend *testutils.FakeBackend
		out     *bytes.Buffer
		stdin   string
	)

	execute := func(args ...string) error {
		cmd := indexcmder.NewIndexCmd()
		cmd.SetOut(out)
		cmd.SetErr(&bytes.Buffer{})
		cmd.SetIn(strings.NewReader(stdin))
		cmd.SetArgs(append(args, "--backend", backend.URL))
		return cmd.Execute()
	}

	writeFile := func(rel, content string) string {
		path := filepath.Join(tmpDir, rel)
		Expect(os.MkdirAll(filepath.Dir(path), 0o755)).To(Succeed())
		Expect(os.WriteFile(path, []byte(content), 0o644)).To(Succeed())
		return path
	}

	BeforeEach(func() {
		var err error
		tmpDir, err = os.MkdirTemp("", "weave-index-test-*")
		Expect(err).NotTo(HaveOccurred())
		origDir, err = os.Getwd()
		Expect(err).NotTo(HaveOccurred())
		Expect(os.MkdirAll(filepath.Join(tmpDir, ".weave"), 0o755)).To(Succeed())
		Expect(os.Chdir(tmpDir)).To(Succeed())

		out = &bytes.Buffer{}
		stdin = ""
		backend = testutils.NewFakeBackend()
		backend.Indexes = []rag.Index{{Name: "handbook", Restricted: true}, {Name: "contracts"}}
	})

	AfterEach(func() {
		backend.Close()
		Expect(os.Chdir(origDir)).To(Succeed())
		os.RemoveAll(tmpDir)
	})

	Describe("list", func() {
		It("marks the selected index", func() {
			Expect(execute("list", "-i", "handbook")).To(Succeed())
			Expect(out.String()).To(ContainSubstring("handbook *"))
			Expect(out.String()).To(ContainSubstring("contracts"))
		})

		It("hints at create when there are no indexes", func() {
			backend.Indexes = nil
			Expect(execute("list")).To(Succeed())
			Expect(out.String()).To(ContainSubstring("weave index create"))
		})
	})

	Describe("create", func() {
		It("creates the index and selects it", func() {
			Expect(execute("create", "policies")).To(Succeed())
			Expect(out.String()).To(ContainSubstring("policies-ingestion"))

			cfger, err := config.NewConfiger(filepath.Join(tmpDir, ".weave"))
			Expect(err).NotTo(HaveOccurred())
			v, err := cfger.GetConfigValue("chat.index")
			Expect(err).NotTo(HaveOccurred())
			Expect(v).To(Equal("policies"))
		})

		It("rejects invalid names before calling the backend", func() {
			Expect(execute("create", "Policies")).NotTo(Succeed())
			_, ok := backend.LastRequest("/indexes")
			Expect(ok).To(BeFalse())
		})
	})

	Describe("delete", func() {
		It("asks for confirmation", func() {
			stdin = "n\n"
			Expect(execute("delete", "contracts")).To(Succeed())
			Expect(out.String()).To(ContainSubstring("Aborted."))
			Expect(backend.Indexes).To(HaveLen(2))
		})

		It("deletes with --yes", func() {
			Expect(execute("delete", "contracts", "--yes")).To(Succeed())
			Expect(out.String()).To(ContainSubstring("Index deleted successfully"))
			Expect(backend.Indexes).To(HaveLen(1))
		})
	})

	Describe("files and rm", func() {
		BeforeEach(func() {
			backend.Files["handbook"] = []string{"leave.pdf", "expenses.pdf"}
		})

		It("lists the documents", func() {
			Expect(execute("files", "-i", "handbook")).To(Succeed())
			Expect(out.String()).To(ContainSubstring("expenses.pdf\nleave.pdf"))
			Expect(out.String()).To(ContainSubstring("2 file(s) in handbook"))
		})

		It("removes documents", func() {
			Expect(execute("rm", "-i", "handbook", "leave.pdf")).To(Succeed())
			Expect(backend.Files["handbook"]).To(Equal([]string{"expenses.pdf"}))
		})

		It("requires an index", func() {
			Expect(execute("files")).To(MatchError(ContainSubstring("no index selected")))
		})
	})

	Describe("upload", func() {
		BeforeEach(func() {
			writeFile("docs/leave.pdf", "%PDF leave")
			writeFile("docs/sub/expenses.pdf", "%PDF expenses")
			writeFile("docs/notes.txt", "not a pdf")
		})

		It("uploads a folder once", func() {
			Expect(execute("upload", "-i", "handbook", "docs")).To(Succeed())
			Expect(backend.Uploads).To(HaveKey("handbook/leave.pdf"))
			Expect(backend.Uploads).To(HaveKey("handbook/expenses.pdf"))
			Expect(backend.Uploads).NotTo(HaveKey("handbook/notes.txt"))
			Expect(out.String()).To(ContainSubstring("2 uploaded, 0 unchanged, 0 failed"))

			out.Reset()
			Expect(execute("upload", "-i", "handbook", "docs")).To(Succeed())
			Expect(out.String()).To(ContainSubstring("0 uploaded, 2 unchanged, 0 failed"))
			Expect(filepath.Join(tmpDir, ".weave", "uploads.json")).To(BeAnExistingFile())
		})

		It("uploads single files and waits for indexing", func() {
			Expect(execute("upload", "-i", "handbook", "--build", "--wait", filepath.Join("docs", "leave.pdf"))).To(Succeed())
			Expect(backend.Uploads).To(HaveKeyWithValue("handbook/leave.pdf", []byte("%PDF leave")))
			Expect(out.String()).To(ContainSubstring("Indexing started"))
			Expect(out.String()).To(ContainSubstring(rag.IndexCompleted))
		})

		It("reports failed uploads", func() {
			backend.FailWith["/indexes/handbook/upload"] = 500
			err := execute("upload", "-i", "handbook", "docs")
			Expect(err).To(MatchError(ContainSubstring("2 upload(s) failed")))
		})
	})

	Describe("build and status", func() {
		It("fails when the job failed", func() {
			backend.Status["handbook"] = rag.IndexStatus{Status: rag.IndexFailed, Message: "no documents"}
			err := execute("build", "-i", "handbook", "--wait")
			Expect(err).To(MatchError(ContainSubstring("no documents")))
		})

		It("prints the job state", func() {
			Expect(execute("status", "-i", "handbook")).To(Succeed())
			Expect(out.String()).To(ContainSubstring(rag.IndexInProgress))
		})
	})

	Describe("pdf", func() {
		It("writes the document to a file", func() {
			backend.PDFs["handbook/policies/leave.pdf"] = []byte("%PDF-1.7")
			Expect(execute("pdf", "-i", "handbook", "policies/leave.pdf")).To(Succeed())

			data, err := os.ReadFile(filepath.Join(tmpDir, "leave.pdf"))
			Expect(err).NotTo(HaveOccurred())
			Expect(string(data)).To(Equal("%PDF-1.7"))
		})

		It("reports a missing document", func() {
			Expect(execute("pdf", "-i", "handbook", "missing.pdf")).To(MatchError(ContainSubstring("404")))
		})
	})
})
