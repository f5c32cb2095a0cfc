// Package mcp implements the Model Context Protocol server for Tsushin.
//
// It exposes the coordination state (live agents, the debug log, the
// simulation control record and client launch requests) as MCP tools and
// resources so an assistant can watch or steer a running simulation.
package mcp

import (
	"encoding/json"
	"log/slog"

	mcplib "github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/ashita-ai/tsushin/internal/clock"
	"github.com/ashita-ai/tsushin/internal/control"
	"github.com/ashita-ai/tsushin/internal/eventlog"
	"github.com/ashita-ai/tsushin/internal/launchqueue"
	"github.com/ashita-ai/tsushin/internal/naming"
	"github.com/ashita-ai/tsushin/internal/registry"
)

// Deps are the stores the MCP surface reads and writes. They are the same
// instances the HTTP handlers use. Clock is optional. DefaultEventLimit
// falls back to eventlog.DefaultQueryLimit when zero.
type Deps struct {
	Registry          *registry.Registry
	Events            *eventlog.Log
	Control           *control.Store
	Names             *naming.Allocator
	Queue             *launchqueue.Queue
	Clock             clock.Clock
	Logger            *slog.Logger
	DefaultEventLimit int
}

// Server wraps the MCP server with Tsushin's stores.
type Server struct {
	mcpServer *mcpserver.MCPServer
	registry  *registry.Registry
	events    *eventlog.Log
	control   *control.Store
	names     *naming.Allocator
	queue     *launchqueue.Queue
	clock     clock.Clock
	logger    *slog.Logger

	defaultEventLimit int
}

// New creates and configures a new MCP server with all resources, tools
// and prompts.
func New(d Deps, version string) *Server {
	clk := d.Clock
	if clk == nil {
		clk = clock.System()
	}
	limit := d.DefaultEventLimit
	if limit <= 0 {
		limit = eventlog.DefaultQueryLimit
	}
	s := &Server{
		registry: d.Registry,
		events:   d.Events,
		control:  d.Control,
		names:    d.Names,
		queue:    d.Queue,
		clock:    clk,
		logger:   d.Logger,

		defaultEventLimit: limit,
	}

	s.mcpServer = mcpserver.NewMCPServer(
		"tsushin",
		version,
		mcpserver.WithResourceCapabilities(false, true),
		mcpserver.WithToolCapabilities(true),
		mcpserver.WithPromptCapabilities(true),
	)

	s.registerResources()
	s.registerTools()
	s.registerPrompts()

	return s
}

// MCPServer returns the underlying mcp-go server for transport setup.
func (s *Server) MCPServer() *mcpserver.MCPServer {
	return s.mcpServer
}

func jsonResult(v any) (*mcplib.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return errorResult("marshal result: " + err.Error()), nil
	}
	return &mcplib.CallToolResult{
		Content: []mcplib.Content{
			mcplib.TextContent{Type: "text", Text: string(data)},
		},
	}, nil
}

func errorResult(msg string) *mcplib.CallToolResult {
	return &mcplib.CallToolResult{
		Content: []mcplib.Content{
			mcplib.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}
