package mcp

import (
	"context"

	"github.com/google/uuid"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/docweave/weave/pkg/rag"
	"github.com/docweave/weave/pkg/session"
)

var (
	chatToolName    = "chat"
	chatDescription = "Ask a question about the documents of one index. Returns the answer and the citations it is grounded on. Pass earlier turns in history to continue a conversation."
)

// ChatInput represents the input arguments for the chat tool.
type ChatInput struct {
	Index    string         `json:"index" jsonschema:"the index to answer from"`
	Question string         `json:"question" jsonschema:"the question to ask"`
	History  []rag.ChatTurn `json:"history,omitempty" jsonschema:"earlier user and assistant turns, oldest first"`
}

// ChatOutput represents the output of the chat tool.
type ChatOutput struct {
	SessionID string         `json:"session_id"`
	Answer    string         `json:"answer"`
	Citations []rag.Citation `json:"citations"`
}

func (s *Server) handleChat(ctx context.Context, _ *mcp.CallToolRequest, input ChatInput) (*mcp.CallToolResult, ChatOutput, error) {
	if input.Index == "" || input.Question == "" {
		return toolError("index and question are required"), ChatOutput{}, nil
	}

	s.config.Logger.Debug("MCP chat request", "index", input.Index)

	conv := session.RestoreConversation(session.ConversationSnapshot{
		ID:       uuid.NewString(),
		Index:    input.Index,
		Messages: historyMessages(input.History),
	})

	stream, err := s.config.Runner.Chat(ctx, conv, input.Question, nil)
	if err != nil {
		s.config.Logger.Error("chat failed", "index", input.Index, "error", err)
		return toolError("Chat failed: %v", err), ChatOutput{}, nil
	}

	out := ChatOutput{SessionID: conv.ID(), Citations: []rag.Citation{}}
	if msg, ok := stream.Message(); ok {
		out.Answer = msg.Content
		if msg.Citations != nil {
			out.Citations = msg.Citations
		}
	}
	return toolResult(out), out, nil
}

func historyMessages(turns []rag.ChatTurn) []rag.Message {
	msgs := make([]rag.Message, 0, len(turns))
	for _, t := range turns {
		if t.Role != rag.RoleUser && t.Role != rag.RoleAssistant {
			continue
		}
		msgs = append(msgs, rag.Message{Role: t.Role, Content: t.Content})
	}
	return msgs
}
