// Package mcp provides an MCP (Model Context Protocol) server that exposes the
// document backend to agents: listing indexes, chatting against an index and
// running research.
package mcp

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/docweave/weave/pkg/runner"
	"github.com/docweave/weave/pkg/utils"
)

type Config struct {
	// Runner opens backend streams and records finished sessions.
	Runner *runner.Runner

	// Noop for empty MCP server
	Noop bool

	Logger *slog.Logger
}

type Server struct {
	config    Config
	mcpServer *mcp.Server
	handler   *mcp.StreamableHTTPHandler
}

// NewServer creates a new MCP server with the backend tools.
func NewServer(c Config) (*Server, error) {
	s := &Server{
		config: c,
	}

	mcpServer := mcp.NewServer(
		&mcp.Implementation{
			Name:    "weave",
			Version: utils.Version,
		},
		&mcp.ServerOptions{},
	)

	if !c.Noop {
		if c.Runner == nil {
			return nil, errors.New("runner is required")
		}
		if c.Logger == nil {
			return nil, errors.New("logger is required")
		}

		mcp.AddTool(mcpServer, &mcp.Tool{
			Name:        listIndexesToolName,
			Description: listIndexesDescription,
		}, s.handleListIndexes)

		mcp.AddTool(mcpServer, &mcp.Tool{
			Name:        chatToolName,
			Description: chatDescription,
		}, s.handleChat)

		mcp.AddTool(mcpServer, &mcp.Tool{
			Name:        researchToolName,
			Description: researchDescription,
		}, s.handleResearch)
	}

	s.mcpServer = mcpServer

	// Create a streamable HTTP net/http handler for stateless operations
	s.handler = mcp.NewStreamableHTTPHandler(
		func(_ *http.Request) *mcp.Server {
			return mcpServer
		},
		&mcp.StreamableHTTPOptions{
			Stateless: true,
		},
	)

	return s, nil
}

// Handler returns the HTTP handler for the MCP server.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// toolError builds the result of a failed tool call.
func toolError(format string, args ...any) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		IsError: true,
		Content: []mcp.Content{
			&mcp.TextContent{Text: fmt.Sprintf(format, args...)},
		},
	}
}

// toolResult serializes out into a text block alongside the structured
// output, for clients that only read text content.
func toolResult(out any) *mcp.CallToolResult {
	b, err := json.Marshal(out)
	if err != nil {
		return toolError("Failed to serialize results: %v", err)
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: string(b)},
		},
	}
}
