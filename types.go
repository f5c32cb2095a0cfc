package tsushin

import "time"

// AgentUpdate is an agent snapshot as the registry stored it. State carries
// the reported keys plus last_seen.
type AgentUpdate struct {
	ID       string
	State    map[string]any
	LastSeen time.Time
}

// DebugEvent is an entry appended to the debug log, with defaults applied.
type DebugEvent struct {
	Timestamp time.Time
	AgentID   string
	AgentType string
	Message   string
	Level     string
	Container string
	Status    string
	Details   map[string]any
}
