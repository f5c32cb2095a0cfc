package tsushin

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

// mockServer creates an httptest server that mimics the Tsushin API.
func mockServer(t *testing.T, handlers map[string]http.HandlerFunc) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	for pattern, handler := range handlers {
		mux.HandleFunc(pattern, handler)
	}
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func newTestClient(t *testing.T, serverURL string) *Client {
	t.Helper()
	c, err := NewClient(Config{BaseURL: serverURL + "/", Timeout: 5 * time.Second})
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}
	return c
}

func TestNewClientRequiresBaseURL(t *testing.T) {
	if _, err := NewClient(Config{}); err == nil {
		t.Fatal("expected error for empty BaseURL")
	}
}

func TestUpdate(t *testing.T) {
	var got map[string]any
	srv := mockServer(t, map[string]http.HandlerFunc{
		"POST /update": func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("X-Request-ID") == "" {
				t.Error("missing X-Request-ID")
			}
			_ = json.NewDecoder(r.Body).Decode(&got)
			writeJSON(w, http.StatusOK, map[string]any{"status": "success"})
		},
	})
	c := newTestClient(t, srv.URL)

	if err := c.Update(context.Background(), map[string]any{"id": "Chef1", "x": 3}); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if got["id"] != "Chef1" {
		t.Errorf("server saw id %v, want Chef1", got["id"])
	}

	if err := c.Update(context.Background(), map[string]any{"x": 3}); err == nil {
		t.Error("expected client-side error for missing id")
	}
}

func TestUpdateServerError(t *testing.T) {
	srv := mockServer(t, map[string]http.HandlerFunc{
		"POST /update": func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, http.StatusBadRequest, map[string]any{"status": "error", "message": "Missing agent id"})
		},
	})
	c := newTestClient(t, srv.URL)

	err := c.Update(context.Background(), map[string]any{"id": ""})
	if !IsBadRequest(err) {
		t.Fatalf("expected 400 error, got %v", err)
	}
	var apiErr *Error
	if !errors.As(err, &apiErr) || apiErr.Message != "Missing agent id" {
		t.Errorf("unexpected error detail: %v", err)
	}
}

func TestAgents(t *testing.T) {
	srv := mockServer(t, map[string]http.HandlerFunc{
		"GET /agents": func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, http.StatusOK, []map[string]any{
				{"id": "Chef1", "last_seen": 1700000000.5},
				{"id": 7, "last_seen": 1700000001.0},
			})
		},
	})
	c := newTestClient(t, srv.URL)

	agents, err := c.Agents(context.Background())
	if err != nil {
		t.Fatalf("Agents: %v", err)
	}
	if len(agents) != 2 {
		t.Fatalf("got %d agents, want 2", len(agents))
	}
	if agents[0].ID() != "Chef1" || agents[1].ID() != "7" {
		t.Errorf("ids = %q, %q", agents[0].ID(), agents[1].ID())
	}
	want := time.Unix(1700000000, 500_000_000)
	if !agents[0].LastSeen().Equal(want) {
		t.Errorf("LastSeen = %v, want %v", agents[0].LastSeen(), want)
	}
}

func TestRemove(t *testing.T) {
	srv := mockServer(t, map[string]http.HandlerFunc{
		"DELETE /remove/{id}": func(w http.ResponseWriter, r *http.Request) {
			if r.PathValue("id") == "Chef1" {
				writeJSON(w, http.StatusOK, map[string]any{"status": "success"})
				return
			}
			writeJSON(w, http.StatusNotFound, map[string]any{"status": "not_found"})
		},
	})
	c := newTestClient(t, srv.URL)

	removed, err := c.Remove(context.Background(), "Chef1")
	if err != nil || !removed {
		t.Errorf("Remove(Chef1) = %v, %v; want true, nil", removed, err)
	}
	removed, err = c.Remove(context.Background(), "Ghost")
	if err != nil || removed {
		t.Errorf("Remove(Ghost) = %v, %v; want false, nil", removed, err)
	}
}

func TestDebugEvents(t *testing.T) {
	srv := mockServer(t, map[string]http.HandlerFunc{
		"GET /debug": func(w http.ResponseWriter, r *http.Request) {
			q := r.URL.Query()
			if q.Get("agent_id") != "X" || q.Get("level") != "ERROR" || q.Get("limit") != "5" {
				t.Errorf("unexpected query: %s", r.URL.RawQuery)
			}
			writeJSON(w, http.StatusOK, []map[string]any{{
				"timestamp":  1700000000.25,
				"agent_id":   "X",
				"agent_type": "chef",
				"message":    "burnt",
				"level":      "ERROR",
				"container":  "c1",
				"status":     "",
				"details":    map[string]any{"dish": "soup"},
			}})
		},
	})
	c := newTestClient(t, srv.URL)

	events, err := c.DebugEvents(context.Background(), &DebugQuery{AgentID: "X", Level: LevelError, Limit: 5})
	if err != nil {
		t.Fatalf("DebugEvents: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("got %d events, want 1", len(events))
	}
	ev := events[0]
	if ev.Message != "burnt" || ev.Details["dish"] != "soup" {
		t.Errorf("unexpected event: %+v", ev)
	}
	if !ev.Timestamp.Equal(time.Unix(1700000000, 250_000_000)) {
		t.Errorf("Timestamp = %v", ev.Timestamp)
	}
}

func TestDebugValidatesLocally(t *testing.T) {
	c := newTestClient(t, "http://127.0.0.1:1")
	if err := c.Debug(context.Background(), DebugEvent{AgentID: "X"}); err == nil {
		t.Error("expected error for missing message")
	}
}

func TestSetControl(t *testing.T) {
	srv := mockServer(t, map[string]http.HandlerFunc{
		"POST /control": func(w http.ResponseWriter, r *http.Request) {
			body, _ := io.ReadAll(r.Body)
			if string(body) != `{"running":true}` {
				t.Errorf("patch body = %s, want only running", body)
			}
			writeJSON(w, http.StatusOK, Control{Running: true, Speed: 1, GridWidth: 120, GridHeight: 120})
		},
	})
	c := newTestClient(t, srv.URL)

	running := true
	ctl, err := c.SetControl(context.Background(), ControlPatch{Running: &running})
	if err != nil {
		t.Fatalf("SetControl: %v", err)
	}
	if !ctl.Running || ctl.GridWidth != 120 {
		t.Errorf("unexpected control: %+v", ctl)
	}
}

func TestAddClient(t *testing.T) {
	srv := mockServer(t, map[string]http.HandlerFunc{
		"POST /add_client": func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, http.StatusOK, map[string]any{
				"status":      "success",
				"client_name": "Client4",
				"message":     "Client creation requested: Client4",
			})
		},
	})
	c := newTestClient(t, srv.URL)

	name, err := c.AddClient(context.Background())
	if err != nil {
		t.Fatalf("AddClient: %v", err)
	}
	if name != "Client4" {
		t.Errorf("name = %q, want Client4", name)
	}
}

func TestRateLimited(t *testing.T) {
	srv := mockServer(t, map[string]http.HandlerFunc{
		"POST /debug": func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, http.StatusTooManyRequests, map[string]any{"status": "error", "message": "too many requests"})
		},
	})
	c := newTestClient(t, srv.URL)

	err := c.Debug(context.Background(), DebugEvent{AgentID: "X", Message: "m"})
	if !IsRateLimited(err) {
		t.Fatalf("expected 429, got %v", err)
	}
}

func TestNonJSONError(t *testing.T) {
	srv := mockServer(t, map[string]http.HandlerFunc{
		"GET /health": func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, "upstream down", http.StatusBadGateway)
		},
	})
	c := newTestClient(t, srv.URL)

	_, err := c.Health(context.Background())
	var apiErr *Error
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *Error, got %v", err)
	}
	if apiErr.StatusCode != http.StatusBadGateway || apiErr.Message != "upstream down" {
		t.Errorf("unexpected error: %+v", apiErr)
	}
}

func TestHeartbeat(t *testing.T) {
	var updates atomic.Int32
	srv := mockServer(t, map[string]http.HandlerFunc{
		"POST /update": func(w http.ResponseWriter, _ *http.Request) {
			updates.Add(1)
			writeJSON(w, http.StatusOK, map[string]any{"status": "success"})
		},
	})
	c := newTestClient(t, srv.URL)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- c.Heartbeat(ctx, 10*time.Millisecond, func() map[string]any {
			return map[string]any{"id": "Chef1"}
		}, func(err error) { t.Errorf("unexpected heartbeat error: %v", err) })
	}()

	deadline := time.Now().Add(2 * time.Second)
	for updates.Load() < 3 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	cancel()

	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Errorf("Heartbeat returned %v, want context.Canceled", err)
	}
	if updates.Load() < 3 {
		t.Errorf("got %d updates, want at least 3", updates.Load())
	}
}

func TestHeartbeatRejectsNonPositiveInterval(t *testing.T) {
	var updates atomic.Int32
	srv := mockServer(t, map[string]http.HandlerFunc{
		"POST /update": func(w http.ResponseWriter, _ *http.Request) {
			updates.Add(1)
			writeJSON(w, http.StatusOK, map[string]any{"status": "success"})
		},
	})
	c := newTestClient(t, srv.URL)

	for _, interval := range []time.Duration{0, -time.Second} {
		err := c.Heartbeat(context.Background(), interval, func() map[string]any {
			return map[string]any{"id": "Chef1"}
		}, nil)
		if err == nil {
			t.Errorf("Heartbeat(%v) returned nil, want error", interval)
		}
	}
	if n := updates.Load(); n != 0 {
		t.Errorf("got %d updates, want 0", n)
	}
}
