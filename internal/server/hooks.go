package server

import (
	"context"
	"time"

	"github.com/ashita-ai/tsushin/internal/model"
)

// Hook receives notifications after an agent-facing write succeeds. Defined
// here rather than in the root tsushin package so internal/server does not
// import its own embedder; the root package adapts its public EventHook.
//
// Each method runs in its own goroutine with a bounded context. Failures are
// logged and never fail the originating request.
type Hook interface {
	OnAgentUpdated(ctx context.Context, record model.AgentRecord) error
	OnDebugEvent(ctx context.Context, event model.DebugEvent) error
	OnClientRequested(ctx context.Context, clientName string) error
}

const hookTimeout = 5 * time.Second

// fireHooks runs call against every registered hook. The request context's
// values are kept but its cancellation is not: the response is usually
// written before a hook finishes.
func (h *Handlers) fireHooks(ctx context.Context, kind string, call func(context.Context, Hook) error) {
	if len(h.hooks) == 0 {
		return
	}
	base := context.WithoutCancel(ctx)
	for _, hook := range h.hooks {
		go func() {
			hctx, cancel := context.WithTimeout(base, hookTimeout)
			defer cancel()
			if err := call(hctx, hook); err != nil {
				h.logger.Warn("hook failed", "kind", kind, "error", err)
			}
		}()
	}
}
