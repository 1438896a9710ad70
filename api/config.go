// Package api provides a local HTTP API over the recorded session history,
// plus the MCP endpoint for agents.
package api

import "net/http"

// Config is the API server configuration.
type Config struct {
	// ListenAddr is the address to listen on (e.g., ":8765")
	ListenAddr string

	// MCPHandler is mounted at /mcp when set.
	MCPHandler http.Handler
}
