package session

import (
	"cmp"
	"encoding/json"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/docweave/weave/pkg/rag"
	"github.com/docweave/weave/pkg/utils"
)

// TimelineEvent is one entry of a research event log.
type TimelineEvent struct {
	Type    string        `json:"type"`
	At      time.Time     `json:"at"`
	Elapsed time.Duration `json:"elapsed"`
	Index   string        `json:"index,omitempty"`
	Text    string        `json:"text"`
}

// Counters are the monotonically increasing totals of a research run.
type Counters struct {
	Searches  int `json:"searches"`
	Completed int `json:"completed"`
	Citations int `json:"citations"`
	Statuses  int `json:"statuses"`
}

// Point samples the counters at the arrival of a progress event.
type Point struct {
	At      time.Time     `json:"at"`
	Elapsed time.Duration `json:"elapsed"`
	Counters
}

// Document aggregates the citations of one document.
type Document struct {
	Key       string    `json:"key"`
	Title     string    `json:"title"`
	URL       string    `json:"url,omitempty"`
	Query     string    `json:"query,omitempty"`
	Count     int       `json:"count"`
	FirstSeen time.Time `json:"first_seen"`
}

// Research folds the NDJSON events of a /research stream.
//
// Backend "error" records are recorded without stopping the stream; a run
// that saw one ends errored even when the transport ended cleanly.
type Research struct {
	base

	mu sync.RWMutex

	question string
	events   []TimelineEvent
	counters Counters
	series   []Point

	documents map[string]*Document
	// order is the first-seen order of documents; it breaks ranking ties.
	order []string

	finalCitations []rag.Citation
	conclusion     string
	fullResponse   string
	completed      bool
	errors         []string

	onEvent func(TimelineEvent)
}

// NewResearch returns an idle research session.
func NewResearch(question string, sources ...rag.DataSource) *Research {
	r := &Research{
		question:  question,
		documents: make(map[string]*Document),
	}

	index := ""
	if len(sources) > 0 {
		index = sources[0].Index
	}
	r.init(KindResearch, index)
	return r
}

// OnEvent registers fn to be called with every timeline event. It must be set
// before the stream begins.
func (r *Research) OnEvent(fn func(TimelineEvent)) {
	r.onEvent = fn
}

// Question returns the research question.
func (r *Research) Question() string {
	return r.question
}

// Begin implements Sink.
func (r *Research) Begin() error {
	return r.Start()
}

// Apply implements Sink.
func (r *Research) Apply(e rag.Event) error {
	if st := r.State(); st != Streaming {
		return fmt.Errorf("%w: record while %s", ErrInvalidTransition, st)
	}

	r.mu.Lock()
	ev, emit := r.applyLocked(e)
	r.mu.Unlock()

	if emit && r.onEvent != nil {
		r.onEvent(ev)
	}
	return nil
}

func (r *Research) applyLocked(e rag.Event) (TimelineEvent, bool) {
	now := time.Now()
	ev := TimelineEvent{
		Type:    e.Type,
		At:      now,
		Elapsed: now.Sub(r.StartedAt()),
	}

	switch e.Type {
	case rag.EventHeartbeat:
		return ev, false

	case rag.EventSearch:
		var c rag.SearchContent
		if err := e.Decode(&c); err == nil {
			ev.Index = c.Index
			ev.Text = c.Query
			if c.RelatedQuery != "" {
				ev.Text = c.RelatedQuery
			}
		}
		r.counters.Searches++
		r.sampleLocked(ev)

	case rag.EventSearchComplete:
		var c rag.SearchCompleteContent
		if err := e.Decode(&c); err == nil {
			ev.Index = c.Index
			ev.Text = utils.Truncate(c.Result, 200)
		}
		r.counters.Completed++
		r.sampleLocked(ev)

	case rag.EventStatus:
		ev.Text = e.Text()
		r.counters.Statuses++
		r.sampleLocked(ev)

	case rag.EventCitation:
		var c rag.CitationContent
		if err := e.Decode(&c); err != nil {
			return ev, false
		}
		r.counters.Citations++
		r.mentionLocked(c, now)
		ev.Text = c.Title

	case rag.EventFinalCitation:
		var c rag.Citation
		if err := e.Decode(&c); err != nil {
			return ev, false
		}
		r.finalCitations = append(r.finalCitations, c)
		ev.Text = c.Title

	case rag.EventFinalConclusion:
		r.conclusion = e.Text()
		r.fullResponse = e.FullResponse
		r.completed = true
		ev.Text = utils.Truncate(r.conclusion, 200)

	case rag.EventMessage:
		ev.Text = messageText(e.Content)

	case rag.EventResearchStart:
		var c struct {
			Question string `json:"question"`
		}
		if err := e.Decode(&c); err == nil {
			ev.Text = c.Question
		}

	case rag.EventChatComplete:

	case rag.EventError:
		msg := e.ErrorText()
		r.errors = append(r.errors, msg)
		ev.Text = msg

	default:
		return ev, false
	}

	r.events = append(r.events, ev)
	return ev, true
}

func (r *Research) sampleLocked(ev TimelineEvent) {
	r.series = append(r.series, Point{
		At:       ev.At,
		Elapsed:  ev.Elapsed,
		Counters: r.counters,
	})
}

func (r *Research) mentionLocked(c rag.CitationContent, now time.Time) {
	key := c.Key()
	doc, ok := r.documents[key]
	if !ok {
		doc = &Document{
			Key:       key,
			Title:     c.Title,
			URL:       c.Location(),
			Query:     c.Query,
			FirstSeen: now,
		}
		r.documents[key] = doc
		r.order = append(r.order, key)
	}
	doc.Count++
}

// Finish implements Sink.
func (r *Research) Finish(o Outcome) {
	r.record(o)

	if o.Err != nil {
		_ = r.Fail(o.Err)
		return
	}

	r.mu.RLock()
	errs := slices.Clone(r.errors)
	r.mu.RUnlock()

	if len(errs) > 0 {
		_ = r.Fail(&BackendError{Message: errs[len(errs)-1]})
		return
	}
	if err := r.Complete(); err != nil {
		_ = r.Fail(err)
	}
}

// Events returns a copy of the event log.
func (r *Research) Events() []TimelineEvent {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.events)
}

// Counters returns the current totals.
func (r *Research) Counters() Counters {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.counters
}

// Series returns the sampled counters in arrival order.
func (r *Research) Series() []Point {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.series)
}

// Document returns the aggregate for one document key.
func (r *Research) Document(key string) (Document, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	doc, ok := r.documents[key]
	if !ok {
		return Document{}, false
	}
	return *doc, true
}

// TopDocuments returns up to n documents ranked by mention count. Documents
// with equal counts keep their first-seen order. n <= 0 returns all of them.
func (r *Research) TopDocuments(n int) []Document {
	r.mu.RLock()
	defer r.mu.RUnlock()

	docs := make([]Document, 0, len(r.order))
	for _, key := range r.order {
		docs = append(docs, *r.documents[key])
	}
	slices.SortStableFunc(docs, func(a, b Document) int {
		return cmp.Compare(b.Count, a.Count)
	})

	if n > 0 && len(docs) > n {
		docs = docs[:n]
	}
	return docs
}

// FinalCitations returns the citations attached to the conclusion.
func (r *Research) FinalCitations() []rag.Citation {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.finalCitations)
}

// Conclusion returns the final conclusion and whether it has arrived.
func (r *Research) Conclusion() (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.conclusion, r.completed
}

// Completed reports whether the final conclusion has arrived.
func (r *Research) Completed() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.completed
}

// Errors returns the backend errors reported during the run.
func (r *Research) Errors() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.errors)
}

// Summary implements Recordable.
func (r *Research) Summary() Summary {
	return r.summary(utils.Truncate(r.question, 80))
}

// ResearchSnapshot is the stored form of a research run.
type ResearchSnapshot struct {
	Question       string          `json:"question"`
	Conclusion     string          `json:"conclusion,omitempty"`
	FullResponse   string          `json:"full_response,omitempty"`
	Completed      bool            `json:"completed"`
	Counters       Counters        `json:"counters"`
	Events         []TimelineEvent `json:"events"`
	Series         []Point         `json:"series"`
	Documents      []Document      `json:"documents"`
	FinalCitations []rag.Citation  `json:"final_citations,omitempty"`
	Errors         []string        `json:"errors,omitempty"`
}

// Snapshot implements Recordable.
func (r *Research) Snapshot() any {
	docs := r.TopDocuments(0)

	r.mu.RLock()
	defer r.mu.RUnlock()

	return ResearchSnapshot{
		Question:       r.question,
		Conclusion:     r.conclusion,
		FullResponse:   r.fullResponse,
		Completed:      r.completed,
		Counters:       r.counters,
		Events:         slices.Clone(r.events),
		Series:         slices.Clone(r.series),
		Documents:      docs,
		FinalCitations: slices.Clone(r.finalCitations),
		Errors:         slices.Clone(r.errors),
	}
}

// messageText extracts readable text from a "message" event, whose content
// is either a string or an agent message object.
func messageText(raw json.RawMessage) string {
	var msg struct {
		Name    string `json:"name"`
		Content any    `json:"content"`
	}
	if err := json.Unmarshal(raw, &msg); err != nil {
		return rag.Text(raw)
	}

	text, ok := msg.Content.(string)
	if !ok || text == "" {
		return rag.Text(raw)
	}
	if msg.Name != "" {
		return msg.Name + ": " + text
	}
	return text
}
