package server

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashita-ai/tsushin/internal/model"
	"github.com/ashita-ai/tsushin/internal/testutil"
)

func receive(t *testing.T, ch chan []byte) []byte {
	t.Helper()
	select {
	case got := <-ch:
		return got
	case <-time.After(100 * time.Millisecond):
		t.Fatal("timed out waiting for event")
		return nil
	}
}

func TestBrokerFanOut(t *testing.T) {
	broker := NewBroker(testutil.TestLogger())

	ch1 := broker.Subscribe()
	ch2 := broker.Subscribe()
	assert.Equal(t, 2, broker.SubscriberCount())

	event := formatSSE(sseEventDebug, `{"agent_id":"Chef1"}`)
	broker.broadcast(event)

	assert.Equal(t, event, receive(t, ch1))
	assert.Equal(t, event, receive(t, ch2))

	// Unsubscribe ch1, broadcast again: only ch2 should receive.
	broker.Unsubscribe(ch1)
	event2 := formatSSE(sseEventDebug, `{"agent_id":"Chef2"}`)
	broker.broadcast(event2)
	assert.Equal(t, event2, receive(t, ch2))

	broker.Unsubscribe(ch2)
	assert.Zero(t, broker.SubscriberCount())
}

func TestBrokerPublishDebugEvent(t *testing.T) {
	broker := NewBroker(testutil.TestLogger())
	ch := broker.Subscribe()
	defer broker.Unsubscribe(ch)

	broker.Publish(model.DebugEvent{
		Timestamp: time.Unix(100, 0),
		AgentID:   "Waiter1",
		AgentType: "waiter",
		Message:   "took order",
		Level:     model.LevelSuccess,
		Container: "c1",
		Details:   map[string]any{},
	})

	got := string(receive(t, ch))
	require.True(t, strings.HasPrefix(got, "event: debug\ndata: "), got)
	require.True(t, strings.HasSuffix(got, "\n\n"))

	payload := strings.TrimSuffix(strings.TrimPrefix(got, "event: debug\ndata: "), "\n\n")
	var ev model.DebugEvent
	require.NoError(t, json.Unmarshal([]byte(payload), &ev))
	assert.Equal(t, "Waiter1", ev.AgentID)
	assert.Equal(t, model.LevelSuccess, ev.Level)
	assert.Equal(t, int64(100), ev.Timestamp.Unix())
}

func TestFormatSSE(t *testing.T) {
	got := string(formatSSE("debug", `{"id":"123"}`))
	assert.Equal(t, "event: debug\ndata: {\"id\":\"123\"}\n\n", got)
}

func TestBrokerSlowSubscriber(t *testing.T) {
	broker := NewBroker(testutil.TestLogger())

	slow := broker.Subscribe()
	fast := broker.Subscribe()

	// Fill the slow subscriber's buffer.
	for range 65 {
		broker.broadcast(formatSSE("test", "fill"))
	}

	// Drain fast so it has room, then broadcast once more.
	for len(fast) > 0 {
		<-fast
	}
	event := formatSSE("test", "after-fill")
	broker.broadcast(event)

	assert.Equal(t, event, receive(t, fast))
	assert.Len(t, slow, cap(slow), "slow subscriber stays full, extra events dropped")

	broker.Unsubscribe(slow)
	broker.Unsubscribe(fast)
}

func TestBrokerUnsubscribeTwice(t *testing.T) {
	broker := NewBroker(testutil.TestLogger())
	ch := broker.Subscribe()
	broker.Unsubscribe(ch)
	assert.NotPanics(t, func() { broker.Unsubscribe(ch) })
}

func TestBrokerClose(t *testing.T) {
	broker := NewBroker(testutil.TestLogger())
	broker.Close()
	broker.Close()

	select {
	case <-broker.Done():
	default:
		t.Fatal("Done should be closed after Close")
	}
}
