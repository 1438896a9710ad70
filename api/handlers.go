package api

import (
	"encoding/json"
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/docweave/weave/pkg/session"
	"github.com/docweave/weave/pkg/storage"
)

const maxListLimit = 500

// SessionResponse is one recorded session with its stored state.
type SessionResponse struct {
	session.Summary

	Payload json.RawMessage `json:"payload,omitempty"`
}

// SessionListResponse is the body of GET /v1/sessions.
type SessionListResponse struct {
	Count    int               `json:"count"`
	Sessions []session.Summary `json:"sessions"`
}

// handlePing returns a simple health check response.
func (s *Server) handlePing(c *fiber.Ctx) error {
	return c.JSON("pong")
}

// handleListSessions lists recorded sessions, newest first. It accepts an
// optional kind filter and a limit.
func (s *Server) handleListSessions(c *fiber.Ctx) error {
	opts := storage.ListOptions{
		Kind: session.Kind(c.Query("kind")),
	}

	switch opts.Kind {
	case "", session.KindChat, session.KindResearch, session.KindCompare, session.KindVoice:
	default:
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "unknown session kind: " + string(opts.Kind)})
	}

	if raw := c.Query("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "limit must be a non-negative integer"})
		}
		opts.Limit = min(limit, maxListLimit)
	}

	records, err := s.storer.List(c.Context(), opts)
	if err != nil {
		s.logger.Error("failed to list sessions", "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: "failed to list sessions"})
	}

	sessions := make([]session.Summary, 0, len(records))
	for _, r := range records {
		sessions = append(sessions, r.Summary)
	}

	return c.JSON(SessionListResponse{
		Count:    len(sessions),
		Sessions: sessions,
	})
}

// handleGetSession returns one session with its payload.
func (s *Server) handleGetSession(c *fiber.Ctx) error {
	id := c.Params("id")

	rec, err := s.storer.Get(c.Context(), id)
	if errors.Is(err, storage.ErrNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(ErrorResponse{Error: "session not found"})
	}
	if err != nil {
		s.logger.Error("failed to get session", "id", id, "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: "failed to get session"})
	}

	return c.JSON(SessionResponse{Summary: rec.Summary, Payload: rec.Payload})
}

// handleDeleteSession removes one session.
func (s *Server) handleDeleteSession(c *fiber.Ctx) error {
	id := c.Params("id")

	err := s.storer.Delete(c.Context(), id)
	if errors.Is(err, storage.ErrNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(ErrorResponse{Error: "session not found"})
	}
	if err != nil {
		s.logger.Error("failed to delete session", "id", id, "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: "failed to delete session"})
	}

	return c.SendStatus(fiber.StatusNoContent)
}
