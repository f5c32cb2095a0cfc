// Package naming hands out unique, human-readable agent names.
package naming

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"sync/atomic"

	"go.opentelemetry.io/otel/metric"

	"github.com/ashita-ai/tsushin/internal/model"
	"github.com/ashita-ai/tsushin/internal/telemetry"
)

// DefaultPrefix is prepended to every allocated number.
const DefaultPrefix = "Client"

// exhausted marks a counter that has handed out math.MaxInt64.
const exhausted = -1

// Allocator produces names of the form <prefix><N>, N starting at 1 and
// increasing by exactly one per call. Numbers are never reused. Safe for
// concurrent use.
type Allocator struct {
	prefix string
	next   atomic.Int64
}

// New creates an allocator whose first name is <prefix>1.
func New(prefix string) *Allocator {
	return NewFrom(prefix, 1)
}

// NewFrom creates an allocator whose first name is <prefix><start>.
// start must be positive.
func NewFrom(prefix string, start int64) *Allocator {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	if start < 1 {
		start = 1
	}
	a := &Allocator{prefix: prefix}
	a.next.Store(start)
	return a
}

// Allocate returns the next unused name. Once math.MaxInt64 has been handed
// out every further call fails with model.ErrAllocationExhausted instead of
// wrapping.
func (a *Allocator) Allocate() (string, error) {
	for {
		cur := a.next.Load()
		if cur == exhausted {
			return "", fmt.Errorf("%w: %s counter reached its maximum", model.ErrAllocationExhausted, a.prefix)
		}
		following := cur + 1
		if cur == math.MaxInt64 {
			following = exhausted
		}
		if a.next.CompareAndSwap(cur, following) {
			return a.prefix + strconv.FormatInt(cur, 10), nil
		}
	}
}

// Issued returns the highest number handed out so far, or start-1 before
// the first allocation.
func (a *Allocator) Issued() int64 {
	cur := a.next.Load()
	if cur == exhausted {
		return math.MaxInt64
	}
	return cur - 1
}

// RegisterMetrics registers a gauge for the number of names issued.
func (a *Allocator) RegisterMetrics() {
	meter := telemetry.Meter("tsushin/naming")

	_, _ = meter.Int64ObservableGauge("tsushin.naming.allocated_total",
		metric.WithDescription("Agent names handed out since start"),
		metric.WithInt64Callback(func(_ context.Context, o metric.Int64Observer) error {
			o.Observe(a.Issued())
			return nil
		}),
	)
}
