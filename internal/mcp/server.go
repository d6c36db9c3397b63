// ABOUTME: MCP server implementation for feedsync
// ABOUTME: Provides tools, resources, and prompts for AI agents to work with synced accounts

package mcp

import (
	"time"

	"github.com/harper/feedsync/internal/account"
	"github.com/harper/feedsync/internal/registry"
	"github.com/mark3labs/mcp-go/server"
)

// Server wraps the MCP server with the account registry it operates on.
type Server struct {
	mcpServer *server.MCPServer
	registry  *registry.Registry
	now       func() time.Time
}

// NewServer creates a new MCP server instance
func NewServer(reg *registry.Registry, version string) *Server {
	s := &Server{
		registry: reg,
		now:      time.Now,
	}

	s.mcpServer = server.NewMCPServer(
		"feedsync",
		version,
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(true, false),
		server.WithPromptCapabilities(true),
	)

	s.registerTools()
	s.registerResources()
	s.registerPrompts()

	return s
}

// ServeStdio starts the MCP server on stdio
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

// accountFor resolves an optional account ID, defaulting to the local account.
func (s *Server) accountFor(id *string) (*account.Account, error) {
	if id == nil || *id == "" {
		return s.registry.DefaultAccount(), nil
	}
	return s.registry.Account(*id)
}
