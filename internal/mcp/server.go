// Package mcp exposes storycheck and the story twin's admin plane as MCP
// tools so agents can drive test runs.
package mcp

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/storyspoiler/storycheck/internal/client"
	"github.com/storyspoiler/storycheck/internal/config"
)

// ServerName is the implementation name reported during initialize.
const ServerName = "storycheck-mcp"

// Server wraps the MCP server with the storycheck configuration.
type Server struct {
	server *mcp.Server
	cfg    *config.Config
	logger *zap.Logger
	admin  *client.AdminClient
}

// NewServer creates a server for cfg with every tool registered.
func NewServer(cfg *config.Config, logger *zap.Logger, version string) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	srv := mcp.NewServer(
		&mcp.Implementation{Name: ServerName, Version: version},
		&mcp.ServerOptions{Instructions: "Run the story CRUD suite and JSON scenarios against " + cfg.BaseURL + " and control the story twin's admin plane."},
	)

	s := &Server{
		server: srv,
		cfg:    cfg,
		logger: logger.Named("mcp"),
		admin:  client.New(cfg.BaseURL),
	}
	s.registerTools()
	return s
}

func (s *Server) registerTools() {
	// Test runs
	registerRun(s)
	registerScenario(s)

	// Twin admin plane
	registerStatus(s)
	registerReset(s)
	registerSeed(s)
	registerInspect(s)
	registerConfig(s)
	registerFault(s)
}

// Run serves the tools on stdio until ctx ends or the client disconnects.
func (s *Server) Run(ctx context.Context) error {
	return s.server.Run(ctx, &mcp.StdioTransport{})
}

// MCPServer returns the underlying MCP server (for testing).
func (s *Server) MCPServer() *mcp.Server {
	return s.server
}
