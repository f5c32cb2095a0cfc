package model

import (
	"encoding/json"
	"time"
)

// Debug levels emitted by the simulation agents. Levels are not validated:
// any caller-supplied string is stored as-is.
const (
	LevelDebug   = "DEBUG"
	LevelInfo    = "INFO"
	LevelSuccess = "SUCCESS"
	LevelWarning = "WARNING"
	LevelError   = "ERROR"
)

// Defaults applied to optional debug event fields.
const (
	DefaultAgentType = "unknown"
	DefaultContainer = "unknown"
	DefaultLevel     = LevelInfo
)

// DebugEventInput is a debug event as submitted by an agent. AgentID and
// Message are required; everything else falls back to a default.
type DebugEventInput struct {
	AgentID   string         `json:"agent_id"`
	AgentType string         `json:"agent_type,omitempty"`
	Message   string         `json:"message"`
	Level     string         `json:"level,omitempty"`
	Container string         `json:"container,omitempty"`
	Status    string         `json:"status,omitempty"`
	Details   map[string]any `json:"details,omitempty"`
}

// UnmarshalJSON accepts agent_id as a string or a number, the same rule
// AgentIDFromPayload applies to update bodies. Any other agent_id type
// decodes as empty and is rejected by the log as a missing field.
func (in *DebugEventInput) UnmarshalJSON(data []byte) error {
	type alias DebugEventInput
	var aux struct {
		AgentID any `json:"agent_id"`
		*alias
	}
	aux.alias = (*alias)(in)
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	in.AgentID, _ = agentIDText(aux.AgentID)
	return nil
}

// DebugEvent is an immutable entry in the event log.
type DebugEvent struct {
	Timestamp time.Time      `json:"-"`
	AgentID   string         `json:"agent_id"`
	AgentType string         `json:"agent_type"`
	Message   string         `json:"message"`
	Level     string         `json:"level"`
	Container string         `json:"container"`
	Status    string         `json:"status"`
	Details   map[string]any `json:"details"`
}

// MarshalJSON adds the timestamp as fractional unix seconds.
func (e DebugEvent) MarshalJSON() ([]byte, error) {
	type alias DebugEvent
	return json.Marshal(struct {
		Timestamp float64 `json:"timestamp"`
		alias
	}{
		Timestamp: UnixSeconds(e.Timestamp),
		alias:     alias(e),
	})
}

// UnmarshalJSON reads the fractional unix seconds timestamp back.
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
	sec := int64(aux.Timestamp)
	nsec := int64((aux.Timestamp - float64(sec)) * float64(time.Second))
	e.Timestamp = time.Unix(sec, nsec)
	return nil
}

// EventFilter narrows a debug event query. Empty fields match everything;
// set fields are exact string matches combined as a conjunction.
type EventFilter struct {
	AgentID string
	Level   string
}

// Matches reports whether ev satisfies every set predicate.
func (f EventFilter) Matches(ev DebugEvent) bool {
	if f.AgentID != "" && ev.AgentID != f.AgentID {
		return false
	}
	if f.Level != "" && ev.Level != f.Level {
		return false
	}
	return true
}
