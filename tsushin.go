// Package tsushin is the public API for embedding the Tsushin coordination
// server in another program, for example a simulation harness that wants the
// agent registry and debug log in-process:
//
//	app, err := tsushin.New(
//	    tsushin.WithVersion(version),
//	    tsushin.WithLogger(logger),
//	    tsushin.WithEventHook(myHook{}),
//	    tsushin.WithExtraRoutes(scenarioRoutes),
//	)
//	if err != nil { ... }
//	if err := app.Run(ctx); err != nil { ... }
//
// internal/* never imports this package. Public types (AgentUpdate,
// DebugEvent) are standalone structs; the conversion from internal models
// lives in this file.
package tsushin

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ashita-ai/tsushin/api"
	"github.com/ashita-ai/tsushin/internal/clock"
	"github.com/ashita-ai/tsushin/internal/config"
	"github.com/ashita-ai/tsushin/internal/control"
	"github.com/ashita-ai/tsushin/internal/eventlog"
	"github.com/ashita-ai/tsushin/internal/launchqueue"
	"github.com/ashita-ai/tsushin/internal/mcp"
	"github.com/ashita-ai/tsushin/internal/model"
	"github.com/ashita-ai/tsushin/internal/naming"
	"github.com/ashita-ai/tsushin/internal/ratelimit"
	"github.com/ashita-ai/tsushin/internal/registry"
	"github.com/ashita-ai/tsushin/internal/server"
	"github.com/ashita-ai/tsushin/internal/telemetry"
	"github.com/ashita-ai/tsushin/ui"
)

const shutdownHTTPTimeout = 10 * time.Second

// App is the Tsushin server lifecycle. Construct with New, run with Run.
type App struct {
	cfg          config.Config
	srv          *server.Server
	broker       *server.Broker
	limiter      ratelimit.Limiter
	otelShutdown telemetry.Shutdown
	logger       *slog.Logger
	version      string
}

// New wires the stores, the MCP server and the HTTP server. It does not
// start any goroutines or accept connections; call Run.
func New(opts ...Option) (*App, error) {
	o := resolvedOptions{}
	for _, fn := range opts {
		fn(&o)
	}

	logger := o.logger
	if logger == nil {
		logger = slog.Default()
	}
	version := o.version
	if version == "" {
		version = "dev"
	}

	var cfg config.Config
	if o.config != nil {
		cfg = *o.config
	} else {
		loaded, err := config.Load()
		if err != nil {
			return nil, fmt.Errorf("load config: %w", err)
		}
		cfg = loaded
	}
	if o.port != 0 {
		cfg.Port = o.port
	}
	if o.requestsFile != "" {
		cfg.RequestsFile = o.requestsFile
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger.Info("tsushin starting", "version", version, "port", cfg.Port)

	otelShutdown, err := telemetry.Init(context.Background(), telemetry.Config{
		Endpoint:    cfg.OTELEndpoint,
		ServiceName: cfg.ServiceName,
		Version:     version,
		Insecure:    cfg.OTELInsecure,
	})
	if err != nil {
		return nil, fmt.Errorf("telemetry: %w", err)
	}

	// Coordination stores, shared by the HTTP and MCP surfaces.
	var clk clock.Clock = clock.System()
	if o.clock != nil {
		clk = o.clock
	}
	reg := registry.New(clk, cfg.StaleAfter, logger)
	events := eventlog.New(clk, cfg.EventCapacity)
	ctrl := control.New(model.ControlState{
		Speed:      control.DefaultSpeed,
		GridWidth:  cfg.GridWidth,
		GridHeight: cfg.GridHeight,
	})
	names := naming.New(cfg.ClientPrefix)
	queue := launchqueue.New(cfg.RequestsFile, cfg.RequestsSync)

	// Store metrics register against whatever provider Init installed.
	reg.RegisterMetrics()
	events.RegisterMetrics()
	names.RegisterMetrics()

	logger.Info("stores ready",
		"stale_after", cfg.StaleAfter,
		"event_capacity", cfg.EventCapacity,
		"client_prefix", cfg.ClientPrefix,
		"requests_file", queue.Path(),
	)

	broker := server.NewBroker(logger)

	var mcpSrv *mcp.Server
	if cfg.MCPEnabled {
		mcpSrv = mcp.New(mcp.Deps{
			Registry: reg,
			Events:   events,
			Control:  ctrl,
			Names:    names,
			Queue:    queue,
			Clock:    clk,
			Logger:   logger,

			DefaultEventLimit: cfg.DefaultEventLimit,
		}, version)
		logger.Info("mcp: enabled at /mcp")
	} else {
		logger.Info("mcp: disabled")
	}

	staticFS := o.staticFS
	if staticFS == nil {
		staticFS, err = dashboardFS(cfg.StaticDir)
		if err != nil {
			_ = otelShutdown(context.Background())
			return nil, err
		}
	}

	var limiter ratelimit.Limiter
	if cfg.RateLimitEnabled {
		limiter = ratelimit.NewMemoryLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
		logger.Info("rate limiting: memory (in-process token bucket)",
			"rps", cfg.RateLimitRPS, "burst", cfg.RateLimitBurst)
	} else {
		limiter = ratelimit.NoopLimiter{}
		logger.Info("rate limiting: disabled")
	}

	// Adapt public extension points to their internal server form.
	var hooks []server.Hook
	for _, h := range o.eventHooks {
		hooks = append(hooks, &eventHookAdapter{hook: h})
	}
	var extraRoutes []func(*http.ServeMux)
	for _, fn := range o.routeRegistrars {
		extraRoutes = append(extraRoutes, func(mux *http.ServeMux) { fn(mux) })
	}
	var middlewares []func(http.Handler) http.Handler
	for _, mw := range o.middlewares {
		middlewares = append(middlewares, func(h http.Handler) http.Handler { return mw(h) })
	}

	srvCfg := server.ServerConfig{
		Registry:            reg,
		Events:              events,
		Control:             ctrl,
		Names:               names,
		Queue:               queue,
		Logger:              logger,
		Clock:               clk,
		Broker:              broker,
		Limiter:             limiter,
		Port:                cfg.Port,
		ReadTimeout:         cfg.ReadTimeout,
		WriteTimeout:        cfg.WriteTimeout,
		Version:             version,
		MaxRequestBodyBytes: cfg.MaxRequestBodyBytes,
		DefaultEventLimit:   cfg.DefaultEventLimit,
		OpenAPISpec:         api.OpenAPISpec,
		StaticFS:            staticFS,
		Hooks:               hooks,
		ExtraRoutes:         extraRoutes,
		Middlewares:         middlewares,
	}
	if mcpSrv != nil {
		srvCfg.MCPServer = mcpSrv.MCPServer()
	}

	return &App{
		cfg:          cfg,
		srv:          server.New(srvCfg),
		broker:       broker,
		limiter:      limiter,
		otelShutdown: otelShutdown,
		logger:       logger,
		version:      version,
	}, nil
}

// Handler returns the root HTTP handler, for serving the App from an
// existing http.Server or from tests.
func (a *App) Handler() http.Handler {
	return a.srv.Handler()
}

// Run starts the HTTP server and blocks until ctx is cancelled or the server
// fails. On return Shutdown has already been called.
func (a *App) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := a.srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		return a.Shutdown(context.Background())
	})
	return g.Wait()
}

// Shutdown releases SSE subscribers, drains in-flight HTTP requests and
// flushes telemetry. Streams are closed first: Shutdown waits for every
// connection to go idle and an open stream never does.
func (a *App) Shutdown(ctx context.Context) error {
	a.logger.Info("tsushin shutting down")

	a.broker.Close()

	httpCtx, httpCancel := context.WithTimeout(ctx, shutdownHTTPTimeout)
	if err := a.srv.Shutdown(httpCtx); err != nil {
		a.logger.Error("http shutdown error", "error", err)
	}
	httpCancel()

	_ = a.limiter.Close()
	_ = a.otelShutdown(context.Background())

	a.logger.Info("tsushin stopped")
	return nil
}

// eventHookAdapter presents a public EventHook as a server.Hook.
type eventHookAdapter struct {
	hook EventHook
}

func (a *eventHookAdapter) OnAgentUpdated(ctx context.Context, rec model.AgentRecord) error {
	return a.hook.OnAgentUpdated(ctx, toPublicAgentUpdate(rec))
}

func (a *eventHookAdapter) OnDebugEvent(ctx context.Context, ev model.DebugEvent) error {
	return a.hook.OnDebugEvent(ctx, toPublicDebugEvent(ev))
}

func (a *eventHookAdapter) OnClientRequested(ctx context.Context, clientName string) error {
	return a.hook.OnClientRequested(ctx, clientName)
}

func toPublicAgentUpdate(rec model.AgentRecord) AgentUpdate {
	return AgentUpdate{
		ID:       rec.ID,
		State:    rec.Snapshot(),
		LastSeen: rec.LastSeen,
	}
}

func toPublicDebugEvent(ev model.DebugEvent) DebugEvent {
	return DebugEvent{
		Timestamp: ev.Timestamp,
		AgentID:   ev.AgentID,
		AgentType: ev.AgentType,
		Message:   ev.Message,
		Level:     ev.Level,
		Container: ev.Container,
		Status:    ev.Status,
		Details:   ev.Details,
	}
}

// dashboardFS opens the dashboard directory. With no directory configured
// it falls back to the dashboard compiled in with the ui build tag, which is
// nil in a plain build.
func dashboardFS(dir string) (fs.FS, error) {
	if dir == "" {
		return ui.DistFS()
	}
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("static dir: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("static dir: %s is not a directory", dir)
	}
	return os.DirFS(dir), nil
}
