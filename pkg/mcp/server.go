package mcp

import (
	"context"

	"github.com/mark3labs/mcp-go/server"
	"github.com/urmzd/homepanel/pkg/assistant"
	"github.com/urmzd/homepanel/pkg/home"
)

// CommandRunner executes natural-language commands.
type CommandRunner interface {
	Execute(ctx context.Context, cmd assistant.Command) (*assistant.Result, error)
}

// Server wraps the MCP server with the panel's device, scene and command tools
type Server struct {
	mcpServer *server.MCPServer
	store     *home.Store
	commands  CommandRunner
}

// NewServer creates a new MCP server over store. A nil runner leaves the
// run_command tool unregistered.
func NewServer(store *home.Store, commands CommandRunner) *Server {
	s := &Server{
		store:    store,
		commands: commands,
	}

	// Create MCP server
	s.mcpServer = server.NewMCPServer(
		"homepanel",
		"1.0.0",
		server.WithToolCapabilities(true),
	)

	// Register all tools
	s.registerTools()

	return s
}

// MCPServer returns the underlying server.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcpServer
}

// ServeStdio starts the MCP server using stdio transport
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}
