package model

// Status values used in response bodies. The dashboard and the Java agents
// branch on these strings.
const (
	StatusSuccess  = "success"
	StatusError    = "error"
	StatusNotFound = "not_found"
)

// StatusResponse is the body of every mutating endpoint.
type StatusResponse struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// AddClientResponse is returned by POST /add_client.
type AddClientResponse struct {
	Status     string `json:"status"`
	ClientName string `json:"client_name"`
	Message    string `json:"message"`
}

// HealthResponse is returned by GET /health.
type HealthResponse struct {
	Status         string `json:"status"`
	Version        string `json:"version"`
	Agents         int    `json:"agents"`
	DebugEvents    int    `json:"debug_events"`
	EventCapacity  int    `json:"event_capacity"`
	ClientsIssued  int64  `json:"clients_issued"`
	SSESubscribers int    `json:"sse_subscribers"`
	Uptime         int64  `json:"uptime_seconds"`
}
