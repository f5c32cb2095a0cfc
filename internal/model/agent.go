package model

import (
	"encoding/json"
	"fmt"
	"maps"
	"strconv"
	"time"
)

// LastSeenKey is the payload key the registry stamps with the receipt time
// when a record is rendered. Any caller-supplied value under this key is
// overwritten.
const LastSeenKey = "last_seen"

// IDKey is the payload key carrying the agent identity in update bodies.
const IDKey = "id"

// AgentRecord is the latest known state of one agent. Payload is replaced
// wholesale on every upsert; LastSeen is set by the registry, never by the
// caller.
type AgentRecord struct {
	ID       string
	Payload  map[string]any
	LastSeen time.Time
}

// Snapshot returns a copy of the payload with last_seen set to the receipt
// time in fractional unix seconds.
func (r AgentRecord) Snapshot() map[string]any {
	out := make(map[string]any, len(r.Payload)+1)
	maps.Copy(out, r.Payload)
	out[LastSeenKey] = UnixSeconds(r.LastSeen)
	return out
}

// MarshalJSON renders the record as its payload snapshot, which is the
// shape the dashboard polls for.
func (r AgentRecord) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.Snapshot())
}

// AgentIDFromPayload extracts the identity from an update body. Strings are
// used verbatim and JSON numbers are formatted as their decimal text; any
// other type, an absent key, or an empty string is an invalid argument.
func AgentIDFromPayload(payload map[string]any) (string, error) {
	raw, ok := payload[IDKey]
	if !ok || raw == nil {
		return "", fmt.Errorf("%w: missing agent id", ErrInvalidArgument)
	}
	id, ok := agentIDText(raw)
	if !ok {
		return "", fmt.Errorf("%w: agent id must be a string or number, got %T", ErrInvalidArgument, raw)
	}
	if id == "" {
		return "", fmt.Errorf("%w: missing agent id", ErrInvalidArgument)
	}
	return id, nil
}

// agentIDText renders a decoded JSON id as text. ok is false for anything
// that is not a string or a number.
func agentIDText(raw any) (id string, ok bool) {
	switch v := raw.(type) {
	case string:
		return v, true
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), true
	case json.Number:
		return v.String(), true
	default:
		return "", false
	}
}

// UnixSeconds converts t to fractional seconds since the epoch.
func UnixSeconds(t time.Time) float64 {
	return float64(t.UnixNano()) / float64(time.Second)
}
