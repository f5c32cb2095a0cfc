package tsushin

import (
	"encoding/json"
	"fmt"
	"time"
)

// AgentState is an agent's snapshot as stored by the server. The server
// adds last_seen; every other key is whatever the agent reported.
type AgentState map[string]any

// ID returns the agent id as text.
func (a AgentState) ID() string {
	switch v := a["id"].(type) {
	case string:
		return v
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}

// LastSeen returns the server's receipt time for this snapshot.
func (a AgentState) LastSeen() time.Time {
	if f, ok := a["last_seen"].(float64); ok {
		return unixSeconds(f)
	}
	return time.Time{}
}

// Debug levels understood by the dashboard.
const (
	LevelDebug   = "DEBUG"
	LevelInfo    = "INFO"
	LevelSuccess = "SUCCESS"
	LevelWarning = "WARNING"
	LevelError   = "ERROR"
)

// DebugEvent is a debug message. AgentID and Message are required when
// posting; Timestamp is set by the server.
type DebugEvent struct {
	Timestamp time.Time      `json:"-"`
	AgentID   string         `json:"agent_id"`
	AgentType string         `json:"agent_type,omitempty"`
	Message   string         `json:"message"`
	Level     string         `json:"level,omitempty"`
	Container string         `json:"container,omitempty"`
	Status    string         `json:"status,omitempty"`
	Details   map[string]any `json:"details,omitempty"`
}

// UnmarshalJSON reads the server's fractional unix seconds timestamp.
func (e *DebugEvent) UnmarshalJSON(data []byte) error {
	type alias DebugEvent
	var aux struct {
		Timestamp float64 `json:"timestamp"`
		*alias
	}
	aux.alias = (*alias)(e)
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	e.Timestamp = unixSeconds(aux.Timestamp)
	return nil
}

// DebugQuery filters DebugEvents. Zero fields are not sent.
type DebugQuery struct {
	AgentID string
	Level   string
	Limit   int
}

// Control is the simulation control record.
type Control struct {
	Running     bool    `json:"running"`
	Speed       float64 `json:"speed"`
	Initialized bool    `json:"initialized"`
	GridWidth   int     `json:"grid_width"`
	GridHeight  int     `json:"grid_height"`
}

// ControlPatch changes only the fields that are non-nil.
type ControlPatch struct {
	Running     *bool    `json:"running,omitempty"`
	Speed       *float64 `json:"speed,omitempty"`
	Initialized *bool    `json:"initialized,omitempty"`
	GridWidth   *int     `json:"grid_width,omitempty"`
	GridHeight  *int     `json:"grid_height,omitempty"`
}

// Health is the server's health report.
type Health struct {
	Status         string `json:"status"`
	Version        string `json:"version"`
	Agents         int    `json:"agents"`
	DebugEvents    int    `json:"debug_events"`
	EventCapacity  int    `json:"event_capacity"`
	ClientsIssued  int64  `json:"clients_issued"`
	SSESubscribers int    `json:"sse_subscribers"`
	Uptime         int64  `json:"uptime_seconds"`
}

type statusResponse struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

type addClientResponse struct {
	Status     string `json:"status"`
	ClientName string `json:"client_name"`
	Message    string `json:"message"`
}

func unixSeconds(f float64) time.Time {
	sec := int64(f)
	return time.Unix(sec, int64((f-float64(sec))*float64(time.Second)))
}
