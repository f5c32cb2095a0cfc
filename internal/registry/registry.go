// Package registry keeps the latest reported state of every simulation
// agent and forgets agents whose producers have gone quiet.
//
// Eviction is read-triggered: ListActive drops stale entries before it
// returns, so there is no background sweeper and staleness is observable
// exactly at read time.
package registry

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/metric"

	"github.com/ashita-ai/tsushin/internal/clock"
	"github.com/ashita-ai/tsushin/internal/model"
	"github.com/ashita-ai/tsushin/internal/telemetry"
)

// DefaultStaleAfter is how long an agent may stay silent before it is evicted.
const DefaultStaleAfter = 10 * time.Second

// Registry is a keyed store of AgentRecords. Safe for concurrent use.
type Registry struct {
	clock      clock.Clock
	staleAfter time.Duration
	logger     *slog.Logger

	mu     sync.Mutex
	agents map[string]model.AgentRecord

	evicted atomic.Int64
}

// New creates an empty registry. A non-positive staleAfter falls back to
// DefaultStaleAfter.
func New(clk clock.Clock, staleAfter time.Duration, logger *slog.Logger) *Registry {
	if clk == nil {
		clk = clock.System()
	}
	if staleAfter <= 0 {
		staleAfter = DefaultStaleAfter
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		clock:      clk,
		staleAfter: staleAfter,
		logger:     logger,
		agents:     make(map[string]model.AgentRecord),
	}
}

// Upsert stores payload as the latest state for id, replacing any previous
// payload, and stamps last_seen with the registry's clock.
func (r *Registry) Upsert(id string, payload map[string]any) (model.AgentRecord, error) {
	if id == "" {
		return model.AgentRecord{}, fmt.Errorf("%w: missing agent id", model.ErrInvalidArgument)
	}

	// Copy so later mutation of the caller's map cannot leak into the store.
	stored := maps.Clone(payload)
	if stored == nil {
		stored = make(map[string]any)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	// Stamp under the lock so last_seen order matches write order.
	rec := model.AgentRecord{
		ID:       id,
		Payload:  stored,
		LastSeen: r.clock.Now(),
	}
	r.agents[id] = rec
	return rec, nil
}

// Remove deletes the record for id and reports whether it existed.
func (r *Registry) Remove(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.agents[id]; !ok {
		return false
	}
	delete(r.agents, id)
	return true
}

// ClearAll deletes every record and returns how many were dropped.
func (r *Registry) ClearAll() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := len(r.agents)
	clear(r.agents)
	return n
}

// ListActive evicts every record with now - last_seen > staleAfter and
// returns copies of the rest in unspecified order.
//
// The staleness decision and the snapshot happen under one critical
// section against the record currently stored, so an upsert that lands
// before the scan is judged on its fresh stamp and one that lands after is
// simply visible on the next read.
func (r *Registry) ListActive(now time.Time) []model.AgentRecord {
	r.mu.Lock()
	defer r.mu.Unlock()

	var evicted []string
	out := make([]model.AgentRecord, 0, len(r.agents))
	for id, rec := range r.agents {
		if now.Sub(rec.LastSeen) > r.staleAfter {
			delete(r.agents, id)
			evicted = append(evicted, id)
			continue
		}
		out = append(out, model.AgentRecord{
			ID:       rec.ID,
			Payload:  maps.Clone(rec.Payload),
			LastSeen: rec.LastSeen,
		})
	}

	if len(evicted) > 0 {
		r.evicted.Add(int64(len(evicted)))
		r.logger.Info("registry: evicted stale agents", "count", len(evicted), "agent_ids", evicted)
	}
	return out
}

// Get returns the stored record for id without evicting anything.
func (r *Registry) Get(id string) (model.AgentRecord, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.agents[id]
	if !ok {
		return model.AgentRecord{}, false
	}
	rec.Payload = maps.Clone(rec.Payload)
	return rec, true
}

// Len returns the number of stored records, stale or not.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.agents)
}

// StaleAfter returns the eviction threshold.
func (r *Registry) StaleAfter() time.Duration {
	return r.staleAfter
}

// Evicted returns the total number of records dropped for staleness.
func (r *Registry) Evicted() int64 {
	return r.evicted.Load()
}

// RegisterMetrics registers observable gauges for the registry. Call after
// telemetry.Init so the global meter provider is in place.
func (r *Registry) RegisterMetrics() {
	meter := telemetry.Meter("tsushin/registry")

	_, _ = meter.Int64ObservableGauge("tsushin.registry.agents",
		metric.WithDescription("Agent records currently held, including not yet evicted stale ones"),
		metric.WithInt64Callback(func(_ context.Context, o metric.Int64Observer) error {
			o.Observe(int64(r.Len()))
			return nil
		}),
	)

	_, _ = meter.Int64ObservableGauge("tsushin.registry.evicted_total",
		metric.WithDescription("Total agent records evicted for staleness"),
		metric.WithInt64Callback(func(_ context.Context, o metric.Int64Observer) error {
			o.Observe(r.Evicted())
			return nil
		}),
	)
}
