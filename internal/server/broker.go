package server

import (
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/ashita-ai/tsushin/internal/model"
)

// sseEventDebug is the SSE event type carrying appended debug events.
const sseEventDebug = "debug"

// Broker fans out appended debug events to SSE subscribers. Publish never
// blocks: subscribers whose buffer is full miss the event.
type Broker struct {
	logger *slog.Logger

	mu          sync.RWMutex
	subscribers map[chan []byte]struct{}

	closeOnce sync.Once
	done      chan struct{}
}

// NewBroker creates a new SSE broker.
func NewBroker(logger *slog.Logger) *Broker {
	return &Broker{
		logger:      logger,
		subscribers: make(map[chan []byte]struct{}),
		done:        make(chan struct{}),
	}
}

// Publish formats ev as an SSE message and sends it to every subscriber.
func (b *Broker) Publish(ev model.DebugEvent) {
	data, err := json.Marshal(ev)
	if err != nil {
		b.logger.Warn("broker: marshal debug event", "agent_id", ev.AgentID, "error", err)
		return
	}
	b.broadcast(formatSSE(sseEventDebug, string(data)))
}

// Subscribe returns a channel that receives SSE-formatted events.
// The caller must call Unsubscribe when done.
func (b *Broker) Subscribe() chan []byte {
	ch := make(chan []byte, 64) // Buffer to avoid blocking the broadcast loop.
	b.mu.Lock()
	b.subscribers[ch] = struct{}{}
	b.mu.Unlock()
	return ch
}

// Unsubscribe removes a subscriber channel and closes it.
func (b *Broker) Unsubscribe(ch chan []byte) {
	b.mu.Lock()
	if _, ok := b.subscribers[ch]; ok {
		delete(b.subscribers, ch)
		close(ch)
	}
	b.mu.Unlock()
}

// SubscriberCount returns the number of connected stream clients.
func (b *Broker) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}

// Done is closed by Close. Stream handlers select on it so that server
// shutdown is not held open by long-lived connections.
func (b *Broker) Done() <-chan struct{} {
	return b.done
}

// Close signals all stream handlers to return. Safe to call multiple times.
func (b *Broker) Close() {
	b.closeOnce.Do(func() { close(b.done) })
}

// broadcast sends an event to all subscribers. Slow subscribers that have
// a full buffer are skipped (their event is dropped) to prevent one slow
// client from blocking all others.
func (b *Broker) broadcast(event []byte) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for ch := range b.subscribers {
		select {
		case ch <- event:
		default:
			// Subscriber buffer full, drop this event for them.
		}
	}
}

// formatSSE formats a payload as a Server-Sent Events message.
func formatSSE(eventType, data string) []byte {
	// SSE format: "event: <type>\ndata: <payload>\n\n"
	return []byte("event: " + eventType + "\ndata: " + data + "\n\n")
}
