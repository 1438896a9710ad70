package testutils

import (
	"bytes"
	"encoding/json"
	"io"
	"mime"
	"net/http"
	"net/http/httptest"
	"sort"
	"sync"

	"github.com/go-chi/chi/v5"

	"github.com/docweave/weave/pkg/rag"
)

// RecordedRequest is one request received by a FakeBackend.
type RecordedRequest struct {
	Method string
	Path   string
	Query  string
	Body   []byte
	Form   map[string]string
}

// FakeBackend is an in-process stand-in for the document backend. Streaming
// endpoints write their configured parts one by one, flushing after each, so
// clients see them as separate transport chunks.
type FakeBackend struct {
	*httptest.Server

	mu sync.Mutex

	ChatParts     []string
	RefineParts   []string
	ResearchParts []string
	CompareParts  []string
	VoiceBody     string

	Indexes []rag.Index
	Files   map[string][]string
	Status  map[string]rag.IndexStatus
	Uploads map[string][]byte
	Answers []rag.Answer
	PDFs    map[string][]byte

	// FailWith makes the route answer with a status and {"error": ...}.
	FailWith map[string]int

	requests []RecordedRequest
}

// NewFakeBackend starts a fake backend. The caller must Close it.
func NewFakeBackend() *FakeBackend {
	b := &FakeBackend{
		Files:    make(map[string][]string),
		Status:   make(map[string]rag.IndexStatus),
		Uploads:  make(map[string][]byte),
		PDFs:     make(map[string][]byte),
		FailWith: make(map[string]int),
	}

	r := chi.NewRouter()
	r.Use(b.record)

	r.Post("/chat", b.streamParts(func() []string { return b.ChatParts }, "text/event-stream"))
	r.Post("/refine", b.streamParts(func() []string { return b.RefineParts }, "text/event-stream"))
	r.Post("/research", b.streamParts(func() []string { return b.ResearchParts }, "application/x-ndjson"))
	r.Post("/compare", b.streamParts(func() []string { return b.CompareParts }, "application/x-ndjson"))
	r.Post("/voice_chat", b.streamParts(func() []string { return []string{b.VoiceBody} }, "application/json"))
	r.Post("/intro", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, rag.VoiceReply{Response: "Hello! How can I help you today?"})
	})

	r.Get("/indexes", func(w http.ResponseWriter, _ *http.Request) {
		b.mu.Lock()
		defer b.mu.Unlock()

		tuples := make([][]any, 0, len(b.Indexes))
		for _, idx := range b.Indexes {
			tuples = append(tuples, []any{idx.Name, idx.Restricted})
		}
		writeJSON(w, http.StatusOK, map[string]any{"indexes": tuples})
	})
	r.Post("/indexes", func(w http.ResponseWriter, r *http.Request) {
		var req rag.CreateIndexRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}

		b.mu.Lock()
		b.Indexes = append(b.Indexes, rag.Index{Name: req.Name, Restricted: req.IsRestricted})
		b.mu.Unlock()

		writeJSON(w, http.StatusCreated, rag.OperationResult{
			Message:    "Index created successfully",
			Containers: []string{req.Name + "-ingestion", req.Name + "-reference"},
		})
	})
	r.Delete("/indexes/{index}", func(w http.ResponseWriter, r *http.Request) {
		name := chi.URLParam(r, "index")

		b.mu.Lock()
		kept := b.Indexes[:0]
		for _, idx := range b.Indexes {
			if idx.Name != name {
				kept = append(kept, idx)
			}
		}
		b.Indexes = kept
		delete(b.Files, name)
		b.mu.Unlock()

		writeJSON(w, http.StatusOK, rag.OperationResult{Message: "Index deleted successfully"})
	})
	r.Get("/indexes/{index}/files", func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		files := append([]string{}, b.Files[chi.URLParam(r, "index")]...)
		b.mu.Unlock()

		sort.Strings(files)
		writeJSON(w, http.StatusOK, rag.FileList{Files: files})
	})
	r.Delete("/indexes/{index}/files/{filename}", func(w http.ResponseWriter, r *http.Request) {
		index, filename := chi.URLParam(r, "index"), chi.URLParam(r, "filename")

		b.mu.Lock()
		kept := b.Files[index][:0]
		for _, f := range b.Files[index] {
			if f != filename {
				kept = append(kept, f)
			}
		}
		b.Files[index] = kept
		b.mu.Unlock()

		writeJSON(w, http.StatusOK, rag.OperationResult{Message: "All pages of " + filename + " deleted successfully from all containers"})
	})
	r.Post("/indexes/{index}/upload", func(w http.ResponseWriter, r *http.Request) {
		file, header, err := r.FormFile("file")
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "No file part"})
			return
		}
		defer file.Close()
		content, _ := io.ReadAll(file)

		index := chi.URLParam(r, "index")
		b.mu.Lock()
		b.Uploads[index+"/"+header.Filename] = content
		b.Files[index] = append(b.Files[index], header.Filename)
		b.mu.Unlock()

		writeJSON(w, http.StatusAccepted, rag.UploadResult{
			Message:  "File uploaded successfully",
			Filename: header.Filename,
			NumPages: 1,
		})
	})
	r.Post("/indexes/{index}/index", func(w http.ResponseWriter, r *http.Request) {
		index := chi.URLParam(r, "index")

		b.mu.Lock()
		if _, ok := b.Status[index]; !ok {
			b.Status[index] = rag.IndexStatus{Status: rag.IndexCompleted, Message: "Indexing completed"}
		}
		b.mu.Unlock()

		writeJSON(w, http.StatusAccepted, rag.IndexJob{
			Status:  "initiated",
			JobID:   index + "-ingestion",
			Message: "Indexing job initiated successfully",
		})
	})
	r.Get("/indexes/{index}/index/status", func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		status, ok := b.Status[chi.URLParam(r, "index")]
		b.mu.Unlock()

		if !ok {
			status = rag.IndexStatus{Status: rag.IndexInProgress}
		}
		writeJSON(w, http.StatusOK, status)
	})
	r.Get("/pdf/{index}/*", func(w http.ResponseWriter, r *http.Request) {
		key := chi.URLParam(r, "index") + "/" + chi.URLParam(r, "*")

		b.mu.Lock()
		content, ok := b.PDFs[key]
		b.mu.Unlock()

		if !ok {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "PDF file not found: " + key})
			return
		}
		w.Header().Set("Content-Type", "application/pdf")
		_, _ = w.Write(content)
	})
	r.Post("/ask", func(w http.ResponseWriter, _ *http.Request) {
		b.mu.Lock()
		answers := b.Answers
		b.mu.Unlock()
		writeJSON(w, http.StatusOK, rag.AskResponse{Answers: answers})
	})
	r.Get("/config", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, rag.BackendConfig{OperationsRestricted: false})
	})

	b.Server = httptest.NewServer(r)
	return b
}

// Requests returns every request received so far.
func (b *FakeBackend) Requests() []RecordedRequest {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]RecordedRequest{}, b.requests...)
}

// LastRequest returns the most recent request to path.
func (b *FakeBackend) LastRequest(path string) (RecordedRequest, bool) {
	reqs := b.Requests()
	for i := len(reqs) - 1; i >= 0; i-- {
		if reqs[i].Path == path {
			return reqs[i], true
		}
	}
	return RecordedRequest{}, false
}

func (b *FakeBackend) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := RecordedRequest{
			Method: r.Method,
			Path:   r.URL.Path,
			Query:  r.URL.RawQuery,
		}

		if r.MultipartForm == nil && isMultipart(r) {
			if err := r.ParseMultipartForm(32 << 20); err == nil {
				rec.Form = make(map[string]string)
				for k, v := range r.MultipartForm.Value {
					if len(v) > 0 {
						rec.Form[k] = v[0]
					}
				}
			}
		} else if r.Body != nil {
			body, _ := io.ReadAll(r.Body)
			rec.Body = body
			r.Body = io.NopCloser(bytes.NewReader(body))
		}

		b.mu.Lock()
		b.requests = append(b.requests, rec)
		status, fail := b.FailWith[r.URL.Path]
		b.mu.Unlock()

		if fail {
			writeJSON(w, status, map[string]string{"error": "forced failure"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (b *FakeBackend) streamParts(parts func() []string, contentType string) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		b.mu.Lock()
		body := append([]string{}, parts()...)
		b.mu.Unlock()

		w.Header().Set("Content-Type", contentType)
		w.WriteHeader(http.StatusOK)
		flusher, _ := w.(http.Flusher)
		for _, p := range body {
			_, _ = io.WriteString(w, p)
			if flusher != nil {
				flusher.Flush()
			}
		}
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func isMultipart(r *http.Request) bool {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && mediaType == "multipart/form-data"
}
