package mcp

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/docweave/weave/pkg/rag"
)

var (
	listIndexesToolName    = "list_indexes"
	listIndexesDescription = "List the document indexes available on the backend. Use an index name from this list with the chat and research tools."
)

// ListIndexesInput takes no arguments.
type ListIndexesInput struct{}

// ListIndexesOutput is the structured output of list_indexes.
type ListIndexesOutput struct {
	Indexes []rag.Index `json:"indexes"`
	Count   int         `json:"count"`
}

func (s *Server) handleListIndexes(ctx context.Context, _ *mcp.CallToolRequest, _ ListIndexesInput) (*mcp.CallToolResult, ListIndexesOutput, error) {
	indexes, err := s.config.Runner.Client().Indexes(ctx)
	if err != nil {
		s.config.Logger.Error("failed to list indexes", "error", err)
		return toolError("Failed to list indexes: %v", err), ListIndexesOutput{}, nil
	}
	if indexes == nil {
		indexes = []rag.Index{}
	}

	out := ListIndexesOutput{Indexes: indexes, Count: len(indexes)}
	return toolResult(out), out, nil
}
