package api

import (
	"log/slog"

	"github.com/gofiber/adaptor/v2"
	"github.com/gofiber/fiber/v2"

	"github.com/docweave/weave/pkg/storage"
)

// Server is the API server for browsing recorded sessions.
type Server struct {
	config Config
	storer storage.Driver
	logger *slog.Logger
	app    *fiber.App
}

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error string `json:"error"`
}

// NewServer creates a new API server.
// The storer is injected to allow sharing with the worker pool that writes
// to it.
func NewServer(config Config, storer storage.Driver, logger *slog.Logger) *Server {
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
	})

	s := &Server{
		config: config,
		storer: storer,
		logger: logger,
		app:    app,
	}

	app.Get("/ping", s.handlePing)
	app.Get("/v1/sessions", s.handleListSessions)
	app.Get("/v1/sessions/:id", s.handleGetSession)
	app.Delete("/v1/sessions/:id", s.handleDeleteSession)

	if config.MCPHandler != nil {
		app.All("/mcp", adaptor.HTTPHandler(config.MCPHandler))
	}

	return s
}

// Run starts the API server on the configured address.
func (s *Server) Run() error {
	s.logger.Info("starting API server",
		"listen", s.config.ListenAddr,
		"mcp", s.config.MCPHandler != nil,
	)
	return s.app.Listen(s.config.ListenAddr)
}

// Shutdown gracefully shuts down the API server.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}
