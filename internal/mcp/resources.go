package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	mcplib "github.com/mark3labs/mcp-go/mcp"

	"github.com/ashita-ai/tsushin/internal/model"
)

const (
	uriControl        = "tsushin://control"
	uriAgents         = "tsushin://agents"
	uriLaunchRequests = "tsushin://launch-requests"
	uriAgentPrefix    = "tsushin://agent/"
)

// AgentEventWindow is how many of an agent's most recent debug events the
// agent resource includes.
const AgentEventWindow = 20

func (s *Server) registerResources() {
	// tsushin://control: the simulation control record.
	s.mcpServer.AddResource(
		mcplib.NewResource(
			uriControl,
			"Simulation Control",
			mcplib.WithResourceDescription("Current simulation control record (running, speed, grid)"),
			mcplib.WithMIMEType("application/json"),
		),
		s.handleControlResource,
	)

	// tsushin://agents: live agents.
	s.mcpServer.AddResource(
		mcplib.NewResource(
			uriAgents,
			"Live Agents",
			mcplib.WithResourceDescription("Snapshots of every agent that reported within the staleness window"),
			mcplib.WithMIMEType("application/json"),
		),
		s.handleAgentsResource,
	)

	// tsushin://launch-requests: names queued for the launcher.
	s.mcpServer.AddResource(
		mcplib.NewResource(
			uriLaunchRequests,
			"Launch Requests",
			mcplib.WithResourceDescription("Client names written to the launcher request file, oldest first"),
			mcplib.WithMIMEType("application/json"),
		),
		s.handleLaunchRequestsResource,
	)

	// tsushin://agent/{id}: one agent's latest snapshot plus its recent events.
	s.mcpServer.AddResourceTemplate(
		mcplib.NewResourceTemplate(
			uriAgentPrefix+"{id}",
			"Agent",
			mcplib.WithTemplateDescription("Latest snapshot and recent debug events for one agent"),
			mcplib.WithTemplateMIMEType("application/json"),
		),
		s.handleAgentResource,
	)
}

func (s *Server) handleControlResource(_ context.Context, _ mcplib.ReadResourceRequest) ([]mcplib.ResourceContents, error) {
	return jsonContents(uriControl, s.control.Get())
}

func (s *Server) handleAgentsResource(_ context.Context, _ mcplib.ReadResourceRequest) ([]mcplib.ResourceContents, error) {
	agents := s.registry.ListActive(s.clock.Now())
	if agents == nil {
		agents = []model.AgentRecord{}
	}
	return jsonContents(uriAgents, agents)
}

func (s *Server) handleLaunchRequestsResource(_ context.Context, _ mcplib.ReadResourceRequest) ([]mcplib.ResourceContents, error) {
	names, _, err := s.queue.ReadFrom(0)
	if err != nil {
		return nil, fmt.Errorf("mcp: read launch requests: %w", err)
	}
	if names == nil {
		names = []string{}
	}
	return jsonContents(uriLaunchRequests, map[string]any{
		"path":     s.queue.Path(),
		"requests": names,
	})
}

func (s *Server) handleAgentResource(_ context.Context, request mcplib.ReadResourceRequest) ([]mcplib.ResourceContents, error) {
	uri := request.Params.URI
	agentID, err := parseAgentURI(uri)
	if err != nil {
		return nil, err
	}

	// Reading a single agent does not evict; stale agents remain visible
	// here, flagged, until the next listing.
	rec, ok := s.registry.Get(agentID)
	var snapshot map[string]any
	stale := false
	if ok {
		snapshot = rec.Snapshot()
		stale = s.clock.Now().Sub(rec.LastSeen) > s.registry.StaleAfter()
	}

	return jsonContents(uri, map[string]any{
		"agent_id": agentID,
		"known":    ok,
		"stale":    stale,
		"state":    snapshot,
		"events":   s.events.Query(model.EventFilter{AgentID: agentID}, AgentEventWindow),
	})
}

// parseAgentURI extracts the agent id from tsushin://agent/{id}.
func parseAgentURI(uri string) (string, error) {
	if !strings.HasPrefix(uri, uriAgentPrefix) {
		return "", fmt.Errorf("mcp: invalid agent URI: %q", uri)
	}
	id := strings.TrimPrefix(uri, uriAgentPrefix)
	if id == "" || strings.Contains(id, "/") {
		return "", fmt.Errorf("mcp: invalid agent URI: %q", uri)
	}
	return id, nil
}

func jsonContents(uri string, v any) ([]mcplib.ResourceContents, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("mcp: marshal %s: %w", uri, err)
	}
	return []mcplib.ResourceContents{
		mcplib.TextResourceContents{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}
