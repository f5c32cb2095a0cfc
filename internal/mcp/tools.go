package mcp

import (
	"context"
	"fmt"

	mcplib "github.com/mark3labs/mcp-go/mcp"

	"github.com/ashita-ai/tsushin/internal/model"
)

func (s *Server) registerTools() {
	// tsushin_agents: agents currently reporting state.
	s.mcpServer.AddTool(
		mcplib.NewTool("tsushin_agents",
			mcplib.WithDescription(`List the simulation agents that are currently alive.

Agents that have not reported for longer than the staleness window are
evicted before the listing is built, exactly as the dashboard sees them.
Each entry is the agent's last reported snapshot plus last_seen
(unix seconds).`),
			mcplib.WithReadOnlyHintAnnotation(true),
			mcplib.WithIdempotentHintAnnotation(false),
			mcplib.WithOpenWorldHintAnnotation(false),
			mcplib.WithString("agent_id",
				mcplib.Description("Optional: return only this agent"),
			),
		),
		s.handleAgents,
	)

	// tsushin_debug_events: query the debug log.
	s.mcpServer.AddTool(
		mcplib.NewTool("tsushin_debug_events",
			mcplib.WithDescription(`Read recent debug events emitted by the agents, oldest first.

FILTERS combine: agent_id="Chef1", level="ERROR" returns only Chef1's errors.
Levels used by the agents: DEBUG, INFO, SUCCESS, WARNING, ERROR.`),
			mcplib.WithReadOnlyHintAnnotation(true),
			mcplib.WithIdempotentHintAnnotation(true),
			mcplib.WithOpenWorldHintAnnotation(false),
			mcplib.WithString("agent_id", mcplib.Description("Only events from this agent")),
			mcplib.WithString("level", mcplib.Description("Only events at this level")),
			mcplib.WithNumber("limit",
				mcplib.Description("Maximum number of (most recent) events to return"),
				mcplib.Min(0),
				mcplib.DefaultNumber(float64(s.defaultEventLimit)),
			),
		),
		s.handleDebugEvents,
	)

	// tsushin_control: read or change the simulation control record.
	s.mcpServer.AddTool(
		mcplib.NewTool("tsushin_control",
			mcplib.WithDescription(`Read the simulation control record, or change part of it.

Call with no arguments to read. Any field supplied is written and the full
resulting record is returned; omitted fields keep their value.`),
			mcplib.WithDestructiveHintAnnotation(false),
			mcplib.WithIdempotentHintAnnotation(true),
			mcplib.WithOpenWorldHintAnnotation(false),
			mcplib.WithBoolean("running", mcplib.Description("Start (true) or pause (false) the simulation")),
			mcplib.WithNumber("speed", mcplib.Description("Simulation speed multiplier")),
			mcplib.WithBoolean("initialized", mcplib.Description("Whether the world has been set up")),
			mcplib.WithNumber("grid_width", mcplib.Description("Grid width in cells")),
			mcplib.WithNumber("grid_height", mcplib.Description("Grid height in cells")),
		),
		s.handleControl,
	)

	// tsushin_add_client: request a new client agent.
	s.mcpServer.AddTool(
		mcplib.NewTool("tsushin_add_client",
			mcplib.WithDescription(`Request that the launcher start a new client agent.

Allocates the next unique client name and queues it for the launcher.
Returns the allocated name.`),
			mcplib.WithDestructiveHintAnnotation(false),
			mcplib.WithIdempotentHintAnnotation(false),
			mcplib.WithOpenWorldHintAnnotation(true),
		),
		s.handleAddClient,
	)

	// tsushin_remove_agent: drop an agent from the registry.
	s.mcpServer.AddTool(
		mcplib.NewTool("tsushin_remove_agent",
			mcplib.WithDescription("Remove an agent from the live registry. The agent reappears if it reports again."),
			mcplib.WithDestructiveHintAnnotation(true),
			mcplib.WithIdempotentHintAnnotation(true),
			mcplib.WithOpenWorldHintAnnotation(false),
			mcplib.WithString("agent_id", mcplib.Description("Agent to remove"), mcplib.Required()),
		),
		s.handleRemoveAgent,
	)
}

func (s *Server) handleAgents(_ context.Context, request mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	agents := s.registry.ListActive(s.clock.Now())

	if id := request.GetString("agent_id", ""); id != "" {
		for _, a := range agents {
			if a.ID == id {
				return jsonResult([]model.AgentRecord{a})
			}
		}
		return jsonResult([]model.AgentRecord{})
	}

	if agents == nil {
		agents = []model.AgentRecord{}
	}
	return jsonResult(agents)
}

func (s *Server) handleDebugEvents(_ context.Context, request mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	filter := model.EventFilter{
		AgentID: request.GetString("agent_id", ""),
		Level:   request.GetString("level", ""),
	}
	limit := request.GetInt("limit", s.defaultEventLimit)
	return jsonResult(s.events.Query(filter, limit))
}

func (s *Server) handleControl(_ context.Context, request mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	state, err := s.control.ApplyBody(request.GetArguments())
	if err != nil {
		return errorResult(err.Error()), nil
	}
	return jsonResult(state)
}

func (s *Server) handleAddClient(_ context.Context, _ mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	name, err := s.names.Allocate()
	if err != nil {
		return errorResult(err.Error()), nil
	}
	if err := s.queue.Enqueue(name); err != nil {
		s.logger.Error("mcp: enqueue launch request", "client_name", name, "error", err)
		return errorResult(fmt.Sprintf("client %s allocated but not queued: %v", name, err)), nil
	}

	s.logger.Info("mcp: client creation requested", "client_name", name)
	return jsonResult(model.AddClientResponse{
		Status:     model.StatusSuccess,
		ClientName: name,
		Message:    "Client creation requested: " + name,
	})
}

func (s *Server) handleRemoveAgent(_ context.Context, request mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	id := request.GetString("agent_id", "")
	if id == "" {
		return errorResult("agent_id is required"), nil
	}
	if !s.registry.Remove(id) {
		return jsonResult(model.StatusResponse{Status: model.StatusNotFound})
	}
	return jsonResult(model.StatusResponse{Status: model.StatusSuccess})
}
