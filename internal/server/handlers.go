package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/ashita-ai/tsushin/internal/clock"
	"github.com/ashita-ai/tsushin/internal/control"
	"github.com/ashita-ai/tsushin/internal/eventlog"
	"github.com/ashita-ai/tsushin/internal/launchqueue"
	"github.com/ashita-ai/tsushin/internal/model"
	"github.com/ashita-ai/tsushin/internal/naming"
	"github.com/ashita-ai/tsushin/internal/registry"
)

// Handlers holds HTTP handler dependencies.
type Handlers struct {
	registry            *registry.Registry
	events              *eventlog.Log
	control             *control.Store
	names               *naming.Allocator
	queue               *launchqueue.Queue
	broker              *Broker
	clock               clock.Clock
	logger              *slog.Logger
	startedAt           time.Time
	version             string
	maxRequestBodyBytes int64
	defaultEventLimit   int
	openapiSpec         []byte
	hooks               []Hook
}

// HandlersDeps holds all dependencies for constructing Handlers.
// Optional (nil-safe): Broker, Clock, OpenAPISpec, Hooks.
type HandlersDeps struct {
	Registry            *registry.Registry
	Events              *eventlog.Log
	Control             *control.Store
	Names               *naming.Allocator
	Queue               *launchqueue.Queue
	Broker              *Broker
	Clock               clock.Clock
	Logger              *slog.Logger
	Version             string
	MaxRequestBodyBytes int64
	DefaultEventLimit   int
	OpenAPISpec         []byte
	Hooks               []Hook
}

// NewHandlers creates a new Handlers with all dependencies.
func NewHandlers(d HandlersDeps) *Handlers {
	clk := d.Clock
	if clk == nil {
		clk = clock.System()
	}
	limit := d.DefaultEventLimit
	if limit <= 0 {
		limit = eventlog.DefaultQueryLimit
	}
	return &Handlers{
		registry:            d.Registry,
		events:              d.Events,
		control:             d.Control,
		names:               d.Names,
		queue:               d.Queue,
		broker:              d.Broker,
		clock:               clk,
		logger:              d.Logger,
		startedAt:           clk.Now(),
		version:             d.Version,
		maxRequestBodyBytes: d.MaxRequestBodyBytes,
		defaultEventLimit:   limit,
		openapiSpec:         d.OpenAPISpec,
		hooks:               d.Hooks,
	}
}

// HandleGetControl handles GET /control.
func (h *Handlers) HandleGetControl(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.control.Get())
}

// HandleSetControl handles POST /control. Known keys are applied, unknown
// keys are ignored, and the full resulting state is returned.
func (h *Handlers) HandleSetControl(w http.ResponseWriter, r *http.Request) {
	var body map[string]any
	if err := decodeJSON(w, r, &body, h.maxRequestBodyBytes); err != nil {
		handleDecodeError(w, err)
		return
	}

	state, err := h.control.ApplyBody(body)
	if err != nil {
		writeError(w, statusForError(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, state)
}

// HandleUpdate handles POST /update. The whole body is the agent's snapshot;
// its "id" key names the agent.
func (h *Handlers) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	var body map[string]any
	if err := decodeJSON(w, r, &body, h.maxRequestBodyBytes); err != nil {
		handleDecodeError(w, err)
		return
	}

	id, err := model.AgentIDFromPayload(body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Missing agent id")
		return
	}
	rec, err := h.registry.Upsert(id, body)
	if err != nil {
		writeError(w, statusForError(err), err.Error())
		return
	}
	h.fireHooks(r.Context(), "agent_updated", func(ctx context.Context, hook Hook) error {
		return hook.OnAgentUpdated(ctx, rec)
	})
	writeSuccess(w)
}

// HandleListAgents handles GET /agents. Stale agents are evicted before the
// listing is built.
func (h *Handlers) HandleListAgents(w http.ResponseWriter, _ *http.Request) {
	agents := h.registry.ListActive(h.clock.Now())
	if agents == nil {
		agents = []model.AgentRecord{}
	}
	writeJSON(w, http.StatusOK, agents)
}

// HandleRemoveAgent handles POST and DELETE /remove/{agent_id}.
func (h *Handlers) HandleRemoveAgent(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("agent_id")
	if !h.registry.Remove(id) {
		writeJSON(w, http.StatusNotFound, model.StatusResponse{Status: model.StatusNotFound})
		return
	}
	writeSuccess(w)
}

// HandleClearAgents handles POST /clear.
func (h *Handlers) HandleClearAgents(w http.ResponseWriter, _ *http.Request) {
	h.registry.ClearAll()
	writeSuccess(w)
}

// HandleAppendDebug handles POST /debug.
func (h *Handlers) HandleAppendDebug(w http.ResponseWriter, r *http.Request) {
	var in model.DebugEventInput
	if err := decodeJSON(w, r, &in, h.maxRequestBodyBytes); err != nil {
		handleDecodeError(w, err)
		return
	}

	ev, err := h.events.Append(in)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Missing required fields")
		return
	}
	if h.broker != nil {
		h.broker.Publish(ev)
	}
	h.fireHooks(r.Context(), "debug_event", func(ctx context.Context, hook Hook) error {
		return hook.OnDebugEvent(ctx, ev)
	})
	writeSuccess(w)
}

// HandleQueryDebug handles GET /debug?agent_id=&level=&limit=.
func (h *Handlers) HandleQueryDebug(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	limit := h.defaultEventLimit
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("limit must be an integer, got %q", raw))
			return
		}
		limit = n
	}

	filter := model.EventFilter{
		AgentID: q.Get("agent_id"),
		Level:   q.Get("level"),
	}
	writeJSON(w, http.StatusOK, h.events.Query(filter, limit))
}

// HandleClearDebug handles POST /debug/clear.
func (h *Handlers) HandleClearDebug(w http.ResponseWriter, _ *http.Request) {
	h.events.ClearAll()
	writeSuccess(w)
}

// HandleDebugStream handles GET /debug/stream, pushing every appended debug
// event to the client as it arrives.
func (h *Handlers) HandleDebugStream(w http.ResponseWriter, r *http.Request) {
	if h.broker == nil {
		writeError(w, http.StatusServiceUnavailable, "debug stream not available")
		return
	}

	rc := http.NewResponseController(w)

	// Subscribe before the headers go out so nothing published after the
	// client sees 200 is missed.
	ch := h.broker.Subscribe()
	defer h.broker.Unsubscribe(ch)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	if err := rc.Flush(); err != nil {
		h.logger.Warn("debug stream: flush not supported", "error", err)
		return
	}

	// Disable the server's WriteTimeout for this long-lived connection.
	_ = rc.SetWriteDeadline(time.Time{})

	keepalive := time.NewTicker(15 * time.Second)
	defer keepalive.Stop()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case <-h.broker.Done():
			return
		case <-keepalive.C:
			if _, err := w.Write([]byte(":keepalive\n\n")); err != nil {
				return
			}
			_ = rc.Flush()
		case event, ok := <-ch:
			if !ok {
				return
			}
			if _, err := w.Write(event); err != nil {
				return
			}
			_ = rc.Flush()
		}
	}
}

// HandleAddClient handles POST /add_client: allocate the next client name
// and queue it for the launcher. A failed write still consumes the name.
func (h *Handlers) HandleAddClient(w http.ResponseWriter, r *http.Request) {
	name, err := h.names.Allocate()
	if err != nil {
		h.logger.Error("add client: allocate name", "error", err)
		writeError(w, statusForError(err), err.Error())
		return
	}

	if err := h.queue.Enqueue(name); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, model.ErrInvalidArgument) {
			status = http.StatusBadRequest
		}
		h.logger.Error("add client: enqueue launch request", "client_name", name, "error", err)
		writeError(w, status, err.Error())
		return
	}

	h.logger.Info("client creation requested", "client_name", name, "requests_file", h.queue.Path())
	h.fireHooks(r.Context(), "client_requested", func(ctx context.Context, hook Hook) error {
		return hook.OnClientRequested(ctx, name)
	})
	writeJSON(w, http.StatusOK, model.AddClientResponse{
		Status:     model.StatusSuccess,
		ClientName: name,
		Message:    "Client creation requested: " + name,
	})
}

// HandleHealth handles GET /health (no auth required).
func (h *Handlers) HandleHealth(w http.ResponseWriter, _ *http.Request) {
	resp := model.HealthResponse{
		Status:        "healthy",
		Version:       h.version,
		Agents:        h.registry.Len(),
		DebugEvents:   h.events.Len(),
		EventCapacity: h.events.Capacity(),
		ClientsIssued: h.names.Issued(),
		Uptime:        int64(h.clock.Now().Sub(h.startedAt).Seconds()),
	}
	if h.broker != nil {
		resp.SSESubscribers = h.broker.SubscriberCount()
	}
	writeJSON(w, http.StatusOK, resp)
}

// HandleOpenAPISpec serves the embedded OpenAPI specification.
func (h *Handlers) HandleOpenAPISpec(w http.ResponseWriter, r *http.Request) {
	if len(h.openapiSpec) == 0 {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "application/yaml")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(h.openapiSpec)
}
