package mcp

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/docweave/weave/pkg/rag"
	"github.com/docweave/weave/pkg/session"
)

var (
	researchToolName    = "research"
	researchDescription = "Run a multi-step research over one or more indexes. Returns the final conclusion, its citations and the documents consulted most often."
)

const (
	defaultMaxRounds    = 3
	defaultTopDocuments = 5
)

// ResearchInput represents the input arguments for the research tool.
type ResearchInput struct {
	Question  string   `json:"question" jsonschema:"the research question"`
	Indexes   []string `json:"indexes" jsonschema:"the indexes to research"`
	MaxRounds int      `json:"max_rounds,omitempty" jsonschema:"maximum number of search rounds (default: 3)"`
	TopK      int      `json:"top_k,omitempty" jsonschema:"number of top documents to return (default: 5)"`
}

// ResearchOutput represents the output of the research tool.
type ResearchOutput struct {
	SessionID  string             `json:"session_id"`
	Conclusion string             `json:"conclusion"`
	Completed  bool               `json:"completed"`
	Citations  []rag.Citation     `json:"citations"`
	Documents  []DocumentHit      `json:"documents"`
	Counters   session.Counters   `json:"counters"`
	Errors     []string           `json:"errors,omitempty"`
}

func (s *Server) handleResearch(ctx context.Context, _ *mcp.CallToolRequest, input ResearchInput) (*mcp.CallToolResult, ResearchOutput, error) {
	if input.Question == "" || len(input.Indexes) == 0 {
		return toolError("question and at least one index are required"), ResearchOutput{}, nil
	}

	maxRounds := input.MaxRounds
	if maxRounds <= 0 {
		maxRounds = defaultMaxRounds
	}
	topK := input.TopK
	if topK <= 0 {
		topK = defaultTopDocuments
	}

	restricted := s.config.Runner.Client().Restricted()
	sources := make([]rag.DataSource, 0, len(input.Indexes))
	for _, idx := range input.Indexes {
		sources = append(sources, rag.DataSource{Index: idx, Name: idx, IsRestricted: restricted})
	}

	s.config.Logger.Debug("MCP research request",
		"indexes", input.Indexes,
		"max_rounds", maxRounds,
	)

	res, err := s.config.Runner.Research(ctx, rag.ResearchRequest{
		Question:    input.Question,
		MaxRounds:   maxRounds,
		DataSources: sources,
	}, nil)
	if err != nil && !res.Completed() {
		s.config.Logger.Error("research failed", "error", err)
		return toolError("Research failed: %v", err), ResearchOutput{}, nil
	}

	conclusion, completed := res.Conclusion()
	out := ResearchOutput{
		SessionID:  res.ID(),
		Conclusion: conclusion,
		Completed:  completed,
		Citations:  res.FinalCitations(),
		Documents:  documentHits(res.TopDocuments(topK)),
		Counters:   res.Counters(),
		Errors:     res.Errors(),
	}
	if out.Citations == nil {
		out.Citations = []rag.Citation{}
	}
	return toolResult(out), out, nil
}


// DocumentHit is a document consulted during research.
type DocumentHit struct {
	Title    string `json:"title"`
	URL      string `json:"url,omitempty"`
	Mentions int    `json:"mentions"`
}

func documentHits(docs []session.Document) []DocumentHit {
	hits := make([]DocumentHit, 0, len(docs))
	for _, d := range docs {
		hits = append(hits, DocumentHit{Title: d.Title, URL: d.URL, Mentions: d.Count})
	}
	return hits
}
