package historycmder_test

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	historycmder "github.com/docweave/weave/cmd/weave/history"
	"github.com/docweave/weave/pkg/rag"
	"github.com/docweave/weave/pkg/session"
	"github.com/docweave/weave/pkg/storage"
	"github.com/docweave/weave/pkg/storage/sqlite"
)

var _ = Describe("History command", func() {
	var (
		tmpDir   string
		origDir  string
		dbPath   string
		out      *bytes.Buffer
		chatID   string
		research *session.Research
	)

	execute := func(args ...string) error {
		cmd := historycmder.NewHistoryCmd()
		cmd.SetOut(out)
		cmd.SetErr(&bytes.Buffer{})
		cmd.SetArgs(append(args, "--sqlite", dbPath, "--markdown=false"))
		return cmd.Execute()
	}

	save := func(driver storage.Driver, s session.Recordable) {
		rec, err := storage.NewRecord(s)
		Expect(err).NotTo(HaveOccurred())
		Expect(driver.Save(context.Background(), rec)).To(Succeed())
	}

	BeforeEach(func() {
		var err error
		tmpDir, err = os.MkdirTemp("", "weave-history-test-*")
		Expect(err).NotTo(HaveOccurred())
		origDir, err = os.Getwd()
		Expect(err).NotTo(HaveOccurred())
		Expect(os.MkdirAll(filepath.Join(tmpDir, ".weave"), 0o755)).To(Succeed())
		Expect(os.Chdir(tmpDir)).To(Succeed())

		out = &bytes.Buffer{}
		dbPath = filepath.Join(tmpDir, "history.sqlite")

		driver, err := sqlite.NewSQLiteDriver(dbPath)
		Expect(err).NotTo(HaveOccurred())
		defer driver.Close()

		conv := session.RestoreConversation(session.ConversationSnapshot{
			ID:        "c0ffee00-0000-4000-8000-000000000001",
			Index:     "handbook",
			CreatedAt: time.Now().Add(-time.Hour),
			Messages: []rag.Message{
				{Role: rag.RoleUser, Content: "How long is parental leave?"},
				{Role: rag.RoleAssistant, Content: "Sixteen weeks.", Citations: []rag.Citation{{Title: "Leave policy"}}},
			},
		})
		chatID = conv.ID()
		save(driver, conv)

		research = session.NewResearch("Which vendor is cheaper?", rag.DataSource{Index: "vendors"})
		Expect(research.Begin()).To(Succeed())
		Expect(research.Apply(rag.Event{Type: rag.EventFinalConclusion, Content: json.RawMessage(`"Vendor B."`)})).To(Succeed())
		research.Finish(session.Outcome{Records: 1})
		save(driver, research)
	})

	AfterEach(func() {
		Expect(os.Chdir(origDir)).To(Succeed())
		os.RemoveAll(tmpDir)
	})

	Describe("list", func() {
		It("lists every session", func() {
			Expect(execute("list")).To(Succeed())
			Expect(out.String()).To(ContainSubstring("c0ffee00"))
			Expect(out.String()).To(ContainSubstring("How long is parental leave?"))
			Expect(out.String()).To(ContainSubstring("Which vendor is cheaper?"))
		})

		It("filters by kind", func() {
			Expect(execute("list", "--kind", "research", "--json")).To(Succeed())

			var summaries []session.Summary
			Expect(json.Unmarshal(out.Bytes(), &summaries)).To(Succeed())
			Expect(summaries).To(HaveLen(1))
			Expect(summaries[0].Kind).To(Equal(session.KindResearch))
			Expect(summaries[0].State).To(Equal(session.Complete.String()))
		})

		It("rejects unknown kinds", func() {
			Expect(execute("list", "--kind", "podcast")).To(MatchError(ContainSubstring("unknown session kind")))
		})
	})

	Describe("show", func() {
		It("prints a conversation by ID prefix", func() {
			Expect(execute("show", "c0ffee")).To(Succeed())
			Expect(out.String()).To(ContainSubstring(chatID))
			Expect(out.String()).To(ContainSubstring("Sixteen weeks."))
			Expect(out.String()).To(ContainSubstring("Leave policy"))
		})

		It("prints a research conclusion", func() {
			Expect(execute("show", research.Summary().ID)).To(Succeed())
			Expect(out.String()).To(ContainSubstring("Conclusion"))
			Expect(out.String()).To(ContainSubstring("Vendor B."))
		})

		It("prints the stored record as JSON", func() {
			Expect(execute("show", chatID, "--json")).To(Succeed())

			var rec storage.Record
			Expect(json.Unmarshal(out.Bytes(), &rec)).To(Succeed())
			Expect(rec.ID).To(Equal(chatID))

			var snap session.ConversationSnapshot
			Expect(rec.Decode(&snap)).To(Succeed())
			Expect(snap.Messages).To(HaveLen(2))
		})

		It("reports unknown sessions", func() {
			err := execute("show", "nope")
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("session not found"))
		})
	})

	Describe("rm", func() {
		It("removes a session", func() {
			Expect(execute("rm", "c0ffee")).To(Succeed())
			Expect(out.String()).To(ContainSubstring("Removed c0ffee00"))

			out.Reset()
			Expect(execute("list", "--json")).To(Succeed())
			var summaries []session.Summary
			Expect(json.Unmarshal(out.Bytes(), &summaries)).To(Succeed())
			Expect(summaries).To(HaveLen(1))
		})
	})
})
