package stream_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/docweave/weave/pkg/logger"
	"github.com/docweave/weave/pkg/stream"
)

type delta struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
	} `json:"choices"`
}

type event struct {
	Type    string          `json:"type"`
	Content json.RawMessage `json:"content"`
}

func decodeDelta(b []byte) (delta, error) {
	var d delta
	err := json.Unmarshal(b, &d)
	return d, err
}

func decodeEvent(b []byte) (event, error) {
	var e event
	if err := json.Unmarshal(b, &e); err != nil {
		return e, err
	}
	if e.Type == "" {
		return e, errors.New("untyped")
	}
	return e, nil
}

// chunkReader hands out one predefined chunk per Read call.
type chunkReader struct {
	chunks [][]byte
	reads  int
	err    error
}

func newChunkReader(chunks ...string) *chunkReader {
	r := &chunkReader{}
	for _, c := range chunks {
		r.chunks = append(r.chunks, []byte(c))
	}
	return r
}

func (r *chunkReader) Read(p []byte) (int, error) {
	if len(r.chunks) == 0 {
		if r.err != nil {
			return 0, r.err
		}
		return 0, io.EOF
	}
	r.reads++
	n := copy(p, r.chunks[0])
	if n < len(r.chunks[0]) {
		r.chunks[0] = r.chunks[0][n:]
	} else {
		r.chunks = r.chunks[1:]
	}
	return n, nil
}

func collect[T any](r *stream.Reader[T]) ([]T, error) {
	var out []T
	err := r.Consume(context.Background(), func(rec T) error {
		out = append(out, rec)
		return nil
	})
	return out, err
}

// splitEvery cuts s into pieces of at most n bytes.
func splitEvery(s string, n int) []string {
	var out []string
	for len(s) > n {
		out = append(out, s[:n])
		s = s[n:]
	}
	return append(out, s)
}

var _ = Describe("Reader", func() {
	Describe("SSE framing", func() {
		It("reassembles a delta split across chunks", func() {
			src := newChunkReader(
				`data: {"choices":[{"delta":{"content":"Hel`,
				`lo"}}]}`+"\n",
				"data: [DONE]\n",
			)
			r := stream.NewReader(src, stream.SSE, decodeDelta)

			recs, err := collect(r)
			Expect(err).NotTo(HaveOccurred())
			Expect(recs).To(HaveLen(1))
			Expect(recs[0].Choices[0].Delta.Content).To(Equal("Hello"))
			Expect(r.SawSentinel()).To(BeTrue())
			Expect(r.DecodeErrors()).To(BeZero())
		})

		It("never passes lines without the prefix to the decoder", func() {
			var seen []string
			decode := func(b []byte) (string, error) {
				seen = append(seen, string(b))
				return string(b), nil
			}

			src := strings.NewReader(": keep-alive\nevent: ping\n\ndata: {\"a\":1}\nid: 7\n")
			r := stream.NewReader(src, stream.SSE, decode)

			recs, err := collect(r)
			Expect(err).NotTo(HaveOccurred())
			Expect(recs).To(Equal([]string{`{"a":1}`}))
			Expect(seen).To(Equal([]string{`{"a":1}`}))
		})

		It("never decodes the sentinel", func() {
			calls := 0
			decode := func(b []byte) (string, error) {
				calls++
				return "", errors.New("should not be called")
			}

			r := stream.NewReader(strings.NewReader("data: [DONE]\n"), stream.SSE, decode)
			recs, err := collect(r)
			Expect(err).NotTo(HaveOccurred())
			Expect(recs).To(BeEmpty())
			Expect(calls).To(BeZero())
			Expect(r.DecodeErrors()).To(BeZero())
		})

		It("tolerates CRLF line endings", func() {
			src := strings.NewReader("data: {\"choices\":[{\"delta\":{\"content\":\"hi\"}}]}\r\ndata: [DONE]\r\n")
			r := stream.NewReader(src, stream.SSE, decodeDelta)

			recs, err := collect(r)
			Expect(err).NotTo(HaveOccurred())
			Expect(recs).To(HaveLen(1))
			Expect(r.SawSentinel()).To(BeTrue())
		})

		It("does not flush an unterminated residual", func() {
			src := strings.NewReader(`data: {"choices":[{"delta":{"content":"x"}}]}`)
			r := stream.NewReader(src, stream.SSE, decodeDelta)

			recs, err := collect(r)
			Expect(err).NotTo(HaveOccurred())
			Expect(recs).To(BeEmpty())
		})
	})

	Describe("NDJSON framing", func() {
		It("skips a malformed line and keeps going", func() {
			var logs bytes.Buffer
			src := strings.NewReader("not json\n{\"type\":\"status\",\"content\":\"ok\"}\n")
			r := stream.NewReader(src, stream.NDJSON, decodeEvent,
				stream.WithLogger(logger.New(logger.WithWriter(&logs))))

			recs, err := collect(r)
			Expect(err).NotTo(HaveOccurred())
			Expect(recs).To(HaveLen(1))
			Expect(recs[0].Type).To(Equal("status"))
			Expect(r.DecodeErrors()).To(Equal(1))
			Expect(logs.String()).To(ContainSubstring("dropping malformed stream record"))
		})

		It("flushes an unterminated final record", func() {
			src := newChunkReader(
				`{"type":"requirement","content":{"description":"a"}}`+"\n",
				`{"type":"requirement","content":{"description":"b"}}`,
			)
			r := stream.NewReader(src, stream.NDJSON, decodeEvent)

			recs, err := collect(r)
			Expect(err).NotTo(HaveOccurred())
			Expect(recs).To(HaveLen(2))
			Expect(string(recs[1].Content)).To(ContainSubstring(`"b"`))
		})

		It("ignores a blank residual", func() {
			src := strings.NewReader("{\"type\":\"status\",\"content\":1}\n   ")
			r := stream.NewReader(src, stream.NDJSON, decodeEvent)

			recs, err := collect(r)
			Expect(err).NotTo(HaveOccurred())
			Expect(recs).To(HaveLen(1))
			Expect(r.DecodeErrors()).To(BeZero())
		})

		It("survives zero-length chunks", func() {
			src := newChunkReader("", `{"type":"a","content":1}`, "", "\n", "")
			r := stream.NewReader(src, stream.NDJSON, decodeEvent)

			recs, err := collect(r)
			Expect(err).NotTo(HaveOccurred())
			Expect(recs).To(HaveLen(1))
		})
	})

	Describe("chunk boundary independence", func() {
		payload := strings.Join([]string{
			`{"type":"search","content":{"query":"q1","index":"hr"}}`,
			``,
			`garbage`,
			`{"type":"citation","content":{"title":"Doc A","url":"u1","query":"q1"}}`,
			`{"type":"message","content":"naïve – ünïcode"}`,
			`{"type":"final_conclusion","content":"done"}`,
		}, "\n")

		whole := func() []event {
			r := stream.NewReader(strings.NewReader(payload), stream.NDJSON, decodeEvent)
			recs, err := collect(r)
			Expect(err).NotTo(HaveOccurred())
			return recs
		}

		It("yields the same records for every chunk size", func() {
			expected := whole()
			Expect(expected).To(HaveLen(4))

			for size := 1; size <= len(payload); size++ {
				src := newChunkReader(splitEvery(payload, size)...)
				r := stream.NewReader(src, stream.NDJSON, decodeEvent)

				recs, err := collect(r)
				Expect(err).NotTo(HaveOccurred())
				Expect(recs).To(Equal(expected), "chunk size %d", size)
			}
		})

		It("yields the same records for tiny transport reads", func() {
			expected := whole()
			r := stream.NewReader(strings.NewReader(payload), stream.NDJSON, decodeEvent, stream.WithReadSize(3))

			recs, err := collect(r)
			Expect(err).NotTo(HaveOccurred())
			Expect(recs).To(Equal(expected))
		})
	})

	Describe("back-pressure", func() {
		It("hands out every record of a chunk before reading again", func() {
			src := newChunkReader(
				"{\"type\":\"a\",\"content\":1}\n{\"type\":\"b\",\"content\":2}\n",
				"{\"type\":\"c\",\"content\":3}\n",
			)
			r := stream.NewReader(src, stream.NDJSON, decodeEvent)

			var readsAtHandle []int
			err := r.Consume(context.Background(), func(event) error {
				readsAtHandle = append(readsAtHandle, src.reads)
				return nil
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(readsAtHandle).To(Equal([]int{1, 1, 2}))
		})

		It("stops when the handler fails", func() {
			src := strings.NewReader("{\"type\":\"a\",\"content\":1}\n{\"type\":\"b\",\"content\":2}\n")
			r := stream.NewReader(src, stream.NDJSON, decodeEvent)

			boom := errors.New("boom")
			calls := 0
			err := r.Consume(context.Background(), func(event) error {
				calls++
				return boom
			})
			Expect(err).To(MatchError(boom))
			Expect(calls).To(Equal(1))
		})
	})

	Describe("failures", func() {
		It("wraps transport errors", func() {
			src := newChunkReader("{\"type\":\"a\",\"content\":1}\n")
			src.err = errors.New("connection reset")
			r := stream.NewReader(src, stream.NDJSON, decodeEvent)

			recs, err := collect(r)
			Expect(recs).To(HaveLen(1))
			Expect(err).To(MatchError(ContainSubstring("connection reset")))
		})

		It("returns the context error once cancelled", func() {
			ctx, cancel := context.WithCancel(context.Background())
			cancel()

			r := stream.NewReader(strings.NewReader("{\"type\":\"a\",\"content\":1}\n"), stream.NDJSON, decodeEvent)
			_, err := r.Next(ctx)
			Expect(err).To(MatchError(context.Canceled))
		})

		It("bounds the pending buffer", func() {
			framing := stream.NDJSON
			framing.MaxPending = 8

			r := stream.NewReader(strings.NewReader(strings.Repeat("x", 64)), framing, decodeEvent)
			_, err := r.Next(context.Background())
			Expect(err).To(MatchError(stream.ErrRecordTooLarge))
		})
	})

	Describe("tee", func() {
		It("copies the raw transport bytes", func() {
			input := "data: {\"choices\":[]}\n\ndata: [DONE]\n"
			var raw bytes.Buffer
			r := stream.NewReader(strings.NewReader(input), stream.SSE, decodeDelta, stream.WithTee(&raw))

			_, err := collect(r)
			Expect(err).NotTo(HaveOccurred())
			Expect(raw.String()).To(Equal(input))
		})
	})

	Describe("All", func() {
		It("iterates records in order", func() {
			src := strings.NewReader("{\"type\":\"a\",\"content\":1}\n{\"type\":\"b\",\"content\":2}")
			r := stream.NewReader(src, stream.NDJSON, decodeEvent)

			var types []string
			for rec, err := range r.All(context.Background()) {
				Expect(err).NotTo(HaveOccurred())
				types = append(types, rec.Type)
			}
			Expect(types).To(Equal([]string{"a", "b"}))
			Expect(r.Records()).To(Equal(2))
		})
	})
})

var _ = Describe("Document framing", func() {
	It("decodes a pretty printed body as one record", func() {
		body := "{\n  \"type\": \"status\",\n  \"content\": \"ok\"\n}\n"
		r := stream.NewReader(newChunkReader(splitEvery(body, 5)...), stream.Document, decodeEvent)

		recs, err := collect(r)
		Expect(err).NotTo(HaveOccurred())
		Expect(recs).To(HaveLen(1))
		Expect(recs[0].Type).To(Equal("status"))
	})
})
