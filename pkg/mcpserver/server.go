// Package mcpserver exposes configured automata as MCP tools so
// external agent hosts can delegate tasks to the hierarchy.
package mcpserver

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/jllopis/automata/pkg/automaton"
	"github.com/jllopis/automata/pkg/schema"
)

// Server wraps the mcp-go server and publishes one tool per automaton.
type Server struct {
	mcpServer *server.MCPServer
	loader    *automaton.Loader
}

// New creates an MCP server backed by the loader.
func New(name, version string, loader *automaton.Loader) *Server {
	return &Server{
		mcpServer: server.NewMCPServer(name, version),
		loader:    loader,
	}
}

// RegisterAutomaton publishes one automaton as a tool taking a single
// "task" string. The automaton is resolved lazily at call time so the
// server starts even while declarations are still being edited.
func (s *Server) RegisterAutomaton(identifier string, decl schema.Declaration) {
	tool := mcp.NewTool(identifier,
		mcp.WithDescription(decl.CatalogDescription()),
		mcp.WithString("task",
			mcp.Required(),
			mcp.Description("The task to delegate to this automaton."),
		),
	)

	s.mcpServer.AddTool(tool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args, _ := request.Params.Arguments.(map[string]interface{})
		task, _ := args["task"].(string)
		if task == "" {
			return mcp.NewToolResultError("task argument is required"), nil
		}

		node, err := s.loader.Resolve(ctx, identifier, "")
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("resolve %s: %v", identifier, err)), nil
		}
		result, err := node.Run(ctx, task)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultText(result), nil
	})
}

// ServeStdio starts the server on Stdio.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}
