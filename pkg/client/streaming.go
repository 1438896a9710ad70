package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/docweave/weave/pkg/rag"
	"github.com/docweave/weave/pkg/stream"
)

// Chat posts a chat request and returns the SSE stream of reply deltas.
func (c *Client) Chat(ctx context.Context, req rag.ChatRequest) (*stream.Reader[rag.ChatChunk], error) {
	httpReq, err := c.newJSONRequest(ctx, http.MethodPost, c.endpoint("/chat", nil), req)
	if err != nil {
		return nil, err
	}
	return openStream(c, httpReq, stream.SSE, rag.DecodeChatChunk)
}

// Refine asks the backend to rework a previous answer. The reply streams in
// the same format as Chat.
func (c *Client) Refine(ctx context.Context, req rag.RefineRequest) (*stream.Reader[rag.ChatChunk], error) {
	httpReq, err := c.newJSONRequest(ctx, http.MethodPost, c.endpoint("/refine", nil), req)
	if err != nil {
		return nil, err
	}
	return openStream(c, httpReq, stream.SSE, rag.DecodeChatChunk)
}

// Research starts a research run and returns its NDJSON event stream.
func (c *Client) Research(ctx context.Context, req rag.ResearchRequest) (*stream.Reader[rag.Event], error) {
	if req.Question == "" {
		return nil, fmt.Errorf("research question is required")
	}
	if len(req.DataSources) == 0 {
		return nil, fmt.Errorf("research needs at least one data source")
	}

	httpReq, err := c.newJSONRequest(ctx, http.MethodPost, c.endpoint("/research", nil), req)
	if err != nil {
		return nil, err
	}
	return openStream(c, httpReq, stream.NDJSON, rag.DecodeEvent)
}

// Compare runs one comparison phase and returns its NDJSON event stream.
func (c *Client) Compare(ctx context.Context, req rag.CompareRequest) (*stream.Reader[rag.Event], error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	httpReq, err := c.newJSONRequest(ctx, http.MethodPost, c.endpoint("/compare", nil), req)
	if err != nil {
		return nil, err
	}
	return openStream(c, httpReq, stream.NDJSON, rag.DecodeEvent)
}

// VoiceChat uploads a recorded question and returns the reply, which arrives
// as a single JSON document.
func (c *Client) VoiceChat(ctx context.Context, req rag.VoiceRequest) (*stream.Reader[rag.VoiceReply], error) {
	history := req.History
	if history == nil {
		history = []rag.ChatTurn{}
	}
	historyJSON, err := json.Marshal(history)
	if err != nil {
		return nil, fmt.Errorf("marshaling conversation history: %w", err)
	}

	filename := req.Filename
	if filename == "" {
		filename = "recording.wav"
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("audio", filename)
	if err != nil {
		return nil, fmt.Errorf("creating audio part: %w", err)
	}
	if _, err := part.Write(req.Audio); err != nil {
		return nil, fmt.Errorf("writing audio part: %w", err)
	}

	fields := [][2]string{
		{"index_name", req.IndexName},
		{"is_restricted", strconv.FormatBool(req.Restricted)},
		{"conversation_history", string(historyJSON)},
	}
	for _, f := range fields {
		if err := mw.WriteField(f[0], f[1]); err != nil {
			return nil, fmt.Errorf("writing %s field: %w", f[0], err)
		}
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("closing multipart body: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint("/voice_chat", nil), &body)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("Content-Type", mw.FormDataContentType())
	return openStream(c, httpReq, stream.Document, rag.DecodeVoiceReply)
}

// Intro fetches the spoken greeting of the voice assistant.
func (c *Client) Intro(ctx context.Context) (rag.VoiceReply, error) {
	var reply rag.VoiceReply
	err := c.roundTrip(ctx, http.MethodPost, c.endpoint("/intro", nil), struct{}{}, &reply)
	return reply, err
}
