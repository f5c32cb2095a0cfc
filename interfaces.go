package tsushin

import (
	"context"
	"net/http"
	"time"
)

// Clock supplies the current time. Any type with a Now method works.
type Clock interface {
	Now() time.Time
}

// EventHook receives asynchronous notifications after writes succeed.
// Methods run in their own goroutine with a bounded context and must not
// block indefinitely. Errors are logged and do not fail the request.
type EventHook interface {
	OnAgentUpdated(ctx context.Context, update AgentUpdate) error
	OnDebugEvent(ctx context.Context, event DebugEvent) error
	OnClientRequested(ctx context.Context, clientName string) error
}

// RouteRegistrar registers additional routes on the shared HTTP mux. Extra
// routes get the same request ID, tracing, logging and recovery middleware
// as the built-in ones.
type RouteRegistrar func(mux *http.ServeMux)

// Middleware wraps the root HTTP handler. It runs before routing, so it
// sees every request including /health.
type Middleware func(http.Handler) http.Handler
