package mcp

import (
	"context"
	"fmt"

	mcplib "github.com/mark3labs/mcp-go/mcp"
)

func (s *Server) registerPrompts() {
	// diagnose-agent: walk through an agent's recent trouble.
	s.mcpServer.AddPrompt(
		mcplib.NewPrompt("diagnose-agent",
			mcplib.WithPromptDescription("Investigate why a simulation agent is misbehaving"),
			mcplib.WithArgument("agent_id",
				mcplib.ArgumentDescription("The agent to investigate (e.g., Chef1, Client3)"),
				mcplib.RequiredArgument(),
			),
		),
		s.handleDiagnoseAgentPrompt,
	)

	// simulation-overview: summarize the running simulation.
	s.mcpServer.AddPrompt(
		mcplib.NewPrompt("simulation-overview",
			mcplib.WithPromptDescription("Summarize the current state of the simulation"),
		),
		s.handleOverviewPrompt,
	)
}

func (s *Server) handleDiagnoseAgentPrompt(_ context.Context, request mcplib.GetPromptRequest) (*mcplib.GetPromptResult, error) {
	agentID := request.Params.Arguments["agent_id"]
	if agentID == "" {
		return nil, fmt.Errorf("agent_id argument is required")
	}

	return &mcplib.GetPromptResult{
		Description: fmt.Sprintf("Diagnose agent %s", agentID),
		Messages: []mcplib.PromptMessage{
			{
				Role: mcplib.RoleUser,
				Content: mcplib.TextContent{
					Type: "text",
					Text: fmt.Sprintf(`Investigate simulation agent %[1]s:

1. CALL tsushin_agents with agent_id="%[1]s". If it is missing, the agent has
   stopped reporting for longer than the staleness window.

2. CALL tsushin_debug_events with agent_id="%[1]s" and level="ERROR", then
   again with level="WARNING", to find what went wrong.

3. CALL tsushin_debug_events with agent_id="%[1]s" and no level to see the
   sequence of events leading up to the first error.

4. SUMMARIZE: current state, first failure, likely cause, and whether the
   agent recovered.`, agentID),
				},
			},
		},
	}, nil
}

func (s *Server) handleOverviewPrompt(_ context.Context, _ mcplib.GetPromptRequest) (*mcplib.GetPromptResult, error) {
	state := s.control.Get()
	status := "paused"
	if state.Running {
		status = "running"
	}

	return &mcplib.GetPromptResult{
		Description: "Simulation overview",
		Messages: []mcplib.PromptMessage{
			{
				Role: mcplib.RoleUser,
				Content: mcplib.TextContent{
					Type: "text",
					Text: fmt.Sprintf(`The simulation is %s at speed %g on a %dx%d grid.

Read tsushin://agents to see every live agent, then call
tsushin_debug_events with level="ERROR" for recent failures. Report how many
agents of each type are active, what they are doing, and any agent that is
repeatedly failing.`, status, state.Speed, state.GridWidth, state.GridHeight),
				},
			},
		},
	}, nil
}
