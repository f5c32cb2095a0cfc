// Package eventlog holds a bounded, insertion-ordered history of debug
// events pushed by simulation agents.
package eventlog

import (
	"context"
	"fmt"
	"maps"
	"sync"
	"sync/atomic"

	"go.opentelemetry.io/otel/metric"

	"github.com/ashita-ai/tsushin/internal/clock"
	"github.com/ashita-ai/tsushin/internal/model"
	"github.com/ashita-ai/tsushin/internal/telemetry"
)

const (
	// DefaultCapacity is the number of events retained before the oldest is
	// discarded.
	DefaultCapacity = 500

	// DefaultQueryLimit is the result cap used when a caller gives none.
	DefaultQueryLimit = 100
)

// Log is a fixed-capacity ring of DebugEvents. When full, each append
// discards exactly the single oldest event. Eviction is strictly FIFO; level
// plays no part in it. Safe for concurrent use.
type Log struct {
	clock    clock.Clock
	capacity int

	mu   sync.Mutex
	ring []model.DebugEvent
	head int // index of the oldest event
	size int

	dropped  atomic.Int64
	appended atomic.Int64
}

// New creates an empty log. A non-positive capacity falls back to
// DefaultCapacity.
func New(clk clock.Clock, capacity int) *Log {
	if clk == nil {
		clk = clock.System()
	}
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Log{
		clock:    clk,
		capacity: capacity,
		ring:     make([]model.DebugEvent, capacity),
	}
}

// Append validates in, fills defaults, timestamps it and stores it,
// evicting the oldest event if the log is full. It returns the stored event.
func (l *Log) Append(in model.DebugEventInput) (model.DebugEvent, error) {
	if in.AgentID == "" || in.Message == "" {
		return model.DebugEvent{}, fmt.Errorf("%w: agent_id and message are required", model.ErrInvalidArgument)
	}

	ev := model.DebugEvent{
		AgentID:   in.AgentID,
		AgentType: orDefault(in.AgentType, model.DefaultAgentType),
		Message:   in.Message,
		Level:     orDefault(in.Level, model.DefaultLevel),
		Container: orDefault(in.Container, model.DefaultContainer),
		Status:    in.Status,
		Details:   maps.Clone(in.Details),
	}
	if ev.Details == nil {
		ev.Details = map[string]any{}
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	// Timestamp under the lock so ring order and timestamp order agree.
	ev.Timestamp = l.clock.Now()

	if l.size < l.capacity {
		l.ring[(l.head+l.size)%l.capacity] = ev
		l.size++
	} else {
		l.ring[l.head] = ev
		l.head = (l.head + 1) % l.capacity
		l.dropped.Add(1)
	}
	l.appended.Add(1)

	return ev, nil
}

// Query returns the most recent limit events matching filter, oldest first.
// The result is a suffix of the filtered sequence in insertion order. A
// non-positive limit returns no events.
func (l *Log) Query(filter model.EventFilter, limit int) []model.DebugEvent {
	if limit <= 0 {
		return []model.DebugEvent{}
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	// Walk newest to oldest so we can stop as soon as limit matches are found.
	picked := make([]model.DebugEvent, 0, min(limit, l.size))
	for i := l.size - 1; i >= 0 && len(picked) < limit; i-- {
		ev := l.ring[(l.head+i)%l.capacity]
		if !filter.Matches(ev) {
			continue
		}
		ev.Details = maps.Clone(ev.Details)
		picked = append(picked, ev)
	}

	for i, j := 0, len(picked)-1; i < j; i, j = i+1, j-1 {
		picked[i], picked[j] = picked[j], picked[i]
	}
	return picked
}

// ClearAll empties the log and returns how many events were discarded.
func (l *Log) ClearAll() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	n := l.size
	clear(l.ring)
	l.head = 0
	l.size = 0
	return n
}

// Len returns the number of retained events.
func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.size
}

// Capacity returns the maximum number of retained events.
func (l *Log) Capacity() int {
	return l.capacity
}

// Dropped returns how many events have been discarded by FIFO eviction.
func (l *Log) Dropped() int64 {
	return l.dropped.Load()
}

// RegisterMetrics registers observable gauges for log depth and evictions.
func (l *Log) RegisterMetrics() {
	meter := telemetry.Meter("tsushin/eventlog")

	_, _ = meter.Int64ObservableGauge("tsushin.eventlog.depth",
		metric.WithDescription("Debug events currently retained"),
		metric.WithInt64Callback(func(_ context.Context, o metric.Int64Observer) error {
			o.Observe(int64(l.Len()))
			return nil
		}),
	)

	_, _ = meter.Int64ObservableGauge("tsushin.eventlog.dropped_total",
		metric.WithDescription("Debug events discarded because the log was at capacity"),
		metric.WithInt64Callback(func(_ context.Context, o metric.Int64Observer) error {
			o.Observe(l.Dropped())
			return nil
		}),
	)

	_, _ = meter.Int64ObservableCounter("tsushin.eventlog.appended_total",
		metric.WithDescription("Debug events accepted since start"),
		metric.WithInt64Callback(func(_ context.Context, o metric.Int64Observer) error {
			o.Observe(l.appended.Load())
			return nil
		}),
	)
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
