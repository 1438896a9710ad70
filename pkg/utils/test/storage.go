package testutils

import (
	"context"
	"encoding/json"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/docweave/weave/pkg/session"
	"github.com/docweave/weave/pkg/storage"
)

// NewTestRecord returns a finished record with a small JSON payload.
func NewTestRecord(id string, kind session.Kind, startedAt time.Time) *storage.Record {
	return &storage.Record{
		Summary: session.Summary{
			ID:         id,
			Kind:       kind,
			Index:      "hr",
			Title:      "record " + id,
			State:      session.Complete.String(),
			StartedAt:  startedAt.UTC().Truncate(time.Second),
			FinishedAt: startedAt.UTC().Truncate(time.Second).Add(1500 * time.Millisecond),
			Records:    3,
		},
		Payload: json.RawMessage(`{"question":"` + id + `"}`),
	}
}

// DescribeDriver registers the behavior every storage.Driver must have.
// newDriver is called before each test; the driver must start empty.
func DescribeDriver(newDriver func() storage.Driver) {
	var (
		driver storage.Driver
		ctx    context.Context
		t0     time.Time
	)

	BeforeEach(func() {
		ctx = context.Background()
		t0 = time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)
		driver = nil
		driver = newDriver()
	})

	AfterEach(func() {
		if driver != nil {
			Expect(driver.Close()).To(Succeed())
		}
	})

	Describe("Save and Get", func() {
		It("stores and retrieves a record", func() {
			rec := NewTestRecord("a", session.KindResearch, t0)
			Expect(driver.Save(ctx, rec)).To(Succeed())

			got, err := driver.Get(ctx, "a")
			Expect(err).NotTo(HaveOccurred())
			Expect(got.ID).To(Equal("a"))
			Expect(got.Kind).To(Equal(session.KindResearch))
			Expect(got.Index).To(Equal("hr"))
			Expect(got.State).To(Equal("complete"))
			Expect(got.StartedAt).To(BeTemporally("==", rec.StartedAt))
			Expect(got.FinishedAt).To(BeTemporally("==", rec.FinishedAt))
			Expect(got.Records).To(Equal(3))
			Expect(string(got.Payload)).To(MatchJSON(string(rec.Payload)))
		})

		It("replaces a record with the same id", func() {
			rec := NewTestRecord("a", session.KindChat, t0)
			Expect(driver.Save(ctx, rec)).To(Succeed())

			rec.State = session.Errored.String()
			rec.Error = "backend error: boom"
			Expect(driver.Save(ctx, rec)).To(Succeed())

			got, err := driver.Get(ctx, "a")
			Expect(err).NotTo(HaveOccurred())
			Expect(got.State).To(Equal("errored"))
			Expect(got.Error).To(Equal("backend error: boom"))

			all, err := driver.List(ctx, storage.ListOptions{})
			Expect(err).NotTo(HaveOccurred())
			Expect(all).To(HaveLen(1))
		})

		It("keeps an unfinished record without a finish time", func() {
			rec := NewTestRecord("a", session.KindChat, t0)
			rec.FinishedAt = time.Time{}
			Expect(driver.Save(ctx, rec)).To(Succeed())

			got, err := driver.Get(ctx, "a")
			Expect(err).NotTo(HaveOccurred())
			Expect(got.FinishedAt.IsZero()).To(BeTrue())
		})

		It("returns ErrNotFound for unknown ids", func() {
			_, err := driver.Get(ctx, "missing")
			Expect(err).To(MatchError(storage.ErrNotFound))
		})

		It("rejects records without an id", func() {
			Expect(driver.Save(ctx, &storage.Record{})).NotTo(Succeed())
		})
	})

	Describe("List", func() {
		BeforeEach(func() {
			Expect(driver.Save(ctx, NewTestRecord("old", session.KindChat, t0))).To(Succeed())
			Expect(driver.Save(ctx, NewTestRecord("mid", session.KindResearch, t0.Add(time.Minute)))).To(Succeed())
			Expect(driver.Save(ctx, NewTestRecord("new", session.KindChat, t0.Add(2*time.Minute)))).To(Succeed())
		})

		It("returns records newest first without payloads", func() {
			all, err := driver.List(ctx, storage.ListOptions{})
			Expect(err).NotTo(HaveOccurred())
			Expect(ids(all)).To(Equal([]string{"new", "mid", "old"}))
			Expect(all[0].Payload).To(BeEmpty())
		})

		It("filters by kind", func() {
			chats, err := driver.List(ctx, storage.ListOptions{Kind: session.KindChat})
			Expect(err).NotTo(HaveOccurred())
			Expect(ids(chats)).To(Equal([]string{"new", "old"}))
		})

		It("honours the limit", func() {
			top, err := driver.List(ctx, storage.ListOptions{Limit: 1})
			Expect(err).NotTo(HaveOccurred())
			Expect(ids(top)).To(Equal([]string{"new"}))
		})
	})

	Describe("Delete", func() {
		It("removes a record", func() {
			Expect(driver.Save(ctx, NewTestRecord("a", session.KindChat, t0))).To(Succeed())
			Expect(driver.Delete(ctx, "a")).To(Succeed())

			_, err := driver.Get(ctx, "a")
			Expect(err).To(MatchError(storage.ErrNotFound))
		})

		It("returns ErrNotFound for unknown ids", func() {
			Expect(driver.Delete(ctx, "missing")).To(MatchError(storage.ErrNotFound))
		})
	})
}

func ids(records []*storage.Record) []string {
	out := make([]string, len(records))
	for i, r := range records {
		out[i] = r.ID
	}
	return out
}
