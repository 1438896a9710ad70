package session

import (
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"

	"github.com/docweave/weave/pkg/rag"
)

// Comparison folds the NDJSON events of one /compare phase.
//
// An "error" record aborts the generate and refine phases. During execute it
// is recorded and the remaining results are still collected.
type Comparison struct {
	base

	mu sync.RWMutex

	request      rag.CompareRequest
	requirements []rag.Requirement
	results      []rag.ComparisonResult
	sources      map[string]string
	errors       []string

	onEvent func(rag.Event)
}

// NewComparison returns an idle comparison session for req.
func NewComparison(req rag.CompareRequest) *Comparison {
	c := &Comparison{
		request: req,
		sources: make(map[string]string),
	}
	c.init(KindCompare, strings.Join(req.Indexes, ","))
	return c
}

// OnEvent registers fn to be called with every applied event. It must be set
// before the stream begins.
func (c *Comparison) OnEvent(fn func(rag.Event)) {
	c.onEvent = fn
}

// Phase returns the comparison phase.
func (c *Comparison) Phase() string {
	return c.request.Phase
}

// Begin implements Sink.
func (c *Comparison) Begin() error {
	return c.Start()
}

// Apply implements Sink.
func (c *Comparison) Apply(e rag.Event) error {
	if st := c.State(); st != Streaming {
		return fmt.Errorf("%w: record while %s", ErrInvalidTransition, st)
	}

	applied, err := c.apply(e)
	if err != nil {
		return err
	}
	if applied && c.onEvent != nil {
		c.onEvent(e)
	}
	return nil
}

func (c *Comparison) apply(e rag.Event) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch e.Type {
	case rag.EventRequirement, rag.EventRequirements, rag.EventRefined:
		reqs, err := e.Requirements()
		if err != nil {
			return false, nil
		}
		c.requirements = append(c.requirements, reqs...)

	case rag.EventComparisonResult:
		var r rag.ComparisonResult
		if err := e.Decode(&r); err != nil {
			return false, nil
		}
		c.results = append(c.results, r)

	case rag.EventSourceData:
		var s rag.SourceData
		if err := e.Decode(&s); err != nil {
			return false, nil
		}
		c.sources[s.Index] = s.Response

	case rag.EventError:
		msg := e.ErrorText()
		c.errors = append(c.errors, msg)
		if c.request.Phase != rag.PhaseExecute {
			return true, &BackendError{Message: msg}
		}

	default:
		return false, nil
	}
	return true, nil
}

// Finish implements Sink.
func (c *Comparison) Finish(o Outcome) {
	c.record(o)

	if o.Err != nil {
		_ = c.Fail(o.Err)
		return
	}

	c.mu.RLock()
	errs := slices.Clone(c.errors)
	c.mu.RUnlock()

	if len(errs) > 0 {
		_ = c.Fail(&BackendError{Message: errs[len(errs)-1]})
		return
	}
	if err := c.Complete(); err != nil {
		_ = c.Fail(err)
	}
}

// Requirements returns the generated or refined requirements.
func (c *Comparison) Requirements() []rag.Requirement {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Clone(c.requirements)
}

// Results returns the comparison results in arrival order.
func (c *Comparison) Results() []rag.ComparisonResult {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Clone(c.results)
}

// Sources returns the per-index source summaries of the generate phase.
func (c *Comparison) Sources() map[string]string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return maps.Clone(c.sources)
}

// Errors returns the backend errors reported during the phase.
func (c *Comparison) Errors() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Clone(c.errors)
}

// Summary implements Recordable.
func (c *Comparison) Summary() Summary {
	title := c.request.Phase
	if c.request.ComparisonSubject != "" {
		title = fmt.Sprintf("%s: %s", c.request.Phase, c.request.ComparisonSubject)
	}
	return c.summary(title)
}

// ComparisonSnapshot is the stored form of a comparison phase.
type ComparisonSnapshot struct {
	Request      rag.CompareRequest     `json:"request"`
	Requirements []rag.Requirement      `json:"requirements"`
	Results      []rag.ComparisonResult `json:"results,omitempty"`
	Sources      map[string]string      `json:"sources,omitempty"`
	Errors       []string               `json:"errors,omitempty"`
}

// Snapshot implements Recordable.
func (c *Comparison) Snapshot() any {
	sources := c.Sources()

	c.mu.RLock()
	defer c.mu.RUnlock()

	return ComparisonSnapshot{
		Request:      c.request,
		Requirements: slices.Clone(c.requirements),
		Results:      slices.Clone(c.results),
		Sources:      sources,
		Errors:       slices.Clone(c.errors),
	}
}
