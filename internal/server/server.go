package server

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"time"

	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/ashita-ai/tsushin/internal/clock"
	"github.com/ashita-ai/tsushin/internal/control"
	"github.com/ashita-ai/tsushin/internal/eventlog"
	"github.com/ashita-ai/tsushin/internal/launchqueue"
	"github.com/ashita-ai/tsushin/internal/naming"
	"github.com/ashita-ai/tsushin/internal/ratelimit"
	"github.com/ashita-ai/tsushin/internal/registry"
)

// Server is the Tsushin HTTP server.
type Server struct {
	httpServer *http.Server
	handler    http.Handler
	logger     *slog.Logger
}

// Handler returns the root HTTP handler, middleware included.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// ServerConfig holds all dependencies and configuration for creating a Server.
// Optional fields (nil-safe): Clock, Broker, Limiter, MCPServer, OpenAPISpec,
// StaticFS, Hooks, ExtraRoutes, Middlewares.
type ServerConfig struct {
	// Required dependencies.
	Registry *registry.Registry
	Events   *eventlog.Log
	Control  *control.Store
	Names    *naming.Allocator
	Queue    *launchqueue.Queue
	Logger   *slog.Logger

	// Optional dependencies (nil = disabled or default).
	Clock     clock.Clock
	Broker    *Broker
	Limiter   ratelimit.Limiter
	MCPServer *mcpserver.MCPServer

	// HTTP server settings.
	Port                int
	ReadTimeout         time.Duration
	WriteTimeout        time.Duration
	Version             string
	MaxRequestBodyBytes int64
	DefaultEventLimit   int
	OpenAPISpec         []byte

	// Dashboard assets served at / and /static/.
	StaticFS fs.FS

	// Extension points for embedders.
	Hooks       []Hook
	ExtraRoutes []func(*http.ServeMux)
	Middlewares []func(http.Handler) http.Handler // first is outermost
}

// New creates a new HTTP server with all routes configured.
func New(cfg ServerConfig) *Server {
	h := NewHandlers(HandlersDeps{
		Registry:            cfg.Registry,
		Events:              cfg.Events,
		Control:             cfg.Control,
		Names:               cfg.Names,
		Queue:               cfg.Queue,
		Broker:              cfg.Broker,
		Clock:               cfg.Clock,
		Logger:              cfg.Logger,
		Version:             cfg.Version,
		MaxRequestBodyBytes: cfg.MaxRequestBodyBytes,
		DefaultEventLimit:   cfg.DefaultEventLimit,
		OpenAPISpec:         cfg.OpenAPISpec,
		Hooks:               cfg.Hooks,
	})

	// Ingest routes are the only ones an agent can hammer in a loop.
	ingestRL := ratelimit.Middleware(cfg.Limiter, ratelimit.IPKeyFunc, cfg.Logger)

	mux := http.NewServeMux()

	// Simulation control (dashboard).
	mux.HandleFunc("GET /control", h.HandleGetControl)
	mux.HandleFunc("POST /control", h.HandleSetControl)

	// Agent state.
	mux.Handle("POST /update", ingestRL(http.HandlerFunc(h.HandleUpdate)))
	mux.HandleFunc("GET /agents", h.HandleListAgents)
	mux.HandleFunc("POST /remove/{agent_id}", h.HandleRemoveAgent)
	mux.HandleFunc("DELETE /remove/{agent_id}", h.HandleRemoveAgent)
	mux.HandleFunc("POST /clear", h.HandleClearAgents)

	// Debug events.
	mux.Handle("POST /debug", ingestRL(http.HandlerFunc(h.HandleAppendDebug)))
	mux.HandleFunc("GET /debug", h.HandleQueryDebug)
	mux.HandleFunc("POST /debug/clear", h.HandleClearDebug)

	// Live debug stream (no rate limit, long-lived connection).
	if cfg.Broker != nil {
		mux.HandleFunc("GET /debug/stream", h.HandleDebugStream)
	}

	// Client launch requests.
	mux.HandleFunc("POST /add_client", h.HandleAddClient)

	// MCP StreamableHTTP transport.
	if cfg.MCPServer != nil {
		mux.Handle("/mcp", mcpserver.NewStreamableHTTPServer(cfg.MCPServer))
	}

	// Health (no rate limit).
	mux.HandleFunc("GET /health", h.HandleHealth)
	mux.HandleFunc("GET /openapi.yaml", h.HandleOpenAPISpec)

	// Embedder routes. A pattern that collides with a built-in panics here.
	for _, register := range cfg.ExtraRoutes {
		register(mux)
	}

	// Dashboard. Registered last so API routes win on pattern precedence.
	if cfg.StaticFS != nil {
		static := newStaticHandler(cfg.StaticFS)
		mux.Handle("GET /{$}", static)
		mux.Handle("GET /static/", http.StripPrefix("/static", static))
		cfg.Logger.Info("dashboard enabled, serving static files at /")
	}

	// Middleware chain (outermost executes first):
	// request ID → security headers → tracing → logging → recovery → handler.
	var handler http.Handler = mux
	handler = recoveryMiddleware(cfg.Logger, handler)
	handler = loggingMiddleware(cfg.Logger, handler)
	handler = tracingMiddleware(handler)
	handler = securityHeadersMiddleware(handler)
	handler = requestIDMiddleware(handler)
	for i := len(cfg.Middlewares) - 1; i >= 0; i-- {
		handler = cfg.Middlewares[i](handler)
	}

	return &Server{
		httpServer: &http.Server{
			Addr:         fmt.Sprintf(":%d", cfg.Port),
			Handler:      handler,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
		},
		handler: handler,
		logger:  cfg.Logger,
	}
}

// Start begins serving HTTP requests.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("http server shutting down")
	return s.httpServer.Shutdown(ctx)
}
