package tsushin

import (
	"io/fs"
	"log/slog"

	"github.com/ashita-ai/tsushin/internal/config"
)

// Option configures an App.
type Option func(*resolvedOptions)

// resolvedOptions holds every extension point after options are applied.
type resolvedOptions struct {
	config          *config.Config
	port            int
	requestsFile    string
	logger          *slog.Logger
	version         string
	clock           Clock
	staticFS        fs.FS
	eventHooks      []EventHook
	routeRegistrars []RouteRegistrar
	middlewares     []Middleware
}

// WithConfig replaces environment loading with an already resolved
// configuration. cmd/tsushin uses it after applying its flags.
func WithConfig(cfg config.Config) Option {
	return func(o *resolvedOptions) { o.config = &cfg }
}

// WithPort overrides the TCP port (TSUSHIN_PORT / PORT).
func WithPort(port int) Option {
	return func(o *resolvedOptions) { o.port = port }
}

// WithRequestsFile overrides the launch request file (TSUSHIN_REQUESTS_FILE).
func WithRequestsFile(path string) Option {
	return func(o *resolvedOptions) { o.requestsFile = path }
}

// WithLogger sets the structured logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(o *resolvedOptions) { o.logger = logger }
}

// WithVersion sets the version reported by /health and the MCP handshake.
func WithVersion(version string) Option {
	return func(o *resolvedOptions) { o.version = version }
}

// WithClock replaces the wall clock used for last_seen stamps, event
// timestamps and staleness. Mostly useful in tests.
func WithClock(c Clock) Option {
	return func(o *resolvedOptions) { o.clock = c }
}

// WithStaticFS serves the dashboard from fsys instead of TSUSHIN_STATIC_DIR
// or the embedded build.
func WithStaticFS(fsys fs.FS) Option {
	return func(o *resolvedOptions) { o.staticFS = fsys }
}

// WithEventHook registers a hook notified of agent updates, debug events and
// client launch requests. Every registered hook receives every event.
func WithEventHook(hook EventHook) Option {
	return func(o *resolvedOptions) { o.eventHooks = append(o.eventHooks, hook) }
}

// WithExtraRoutes registers additional routes on the shared mux. Registrars
// run in registration order after the built-in routes.
func WithExtraRoutes(fn RouteRegistrar) Option {
	return func(o *resolvedOptions) { o.routeRegistrars = append(o.routeRegistrars, fn) }
}

// WithMiddleware registers an outermost HTTP middleware. The first
// registered is called first by every request.
func WithMiddleware(mw Middleware) Option {
	return func(o *resolvedOptions) { o.middlewares = append(o.middlewares, mw) }
}
