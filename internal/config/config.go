// Package config loads and validates application configuration from environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	// Server settings.
	Port                int
	ReadTimeout         time.Duration
	WriteTimeout        time.Duration
	MaxRequestBodyBytes int64
	StaticDir           string // Dashboard directory served at /. Empty disables it.

	// Store settings.
	StaleAfter        time.Duration // Registry eviction threshold.
	EventCapacity     int           // Debug events retained before FIFO eviction.
	DefaultEventLimit int           // Query cap when the caller sends no limit.
	ClientPrefix      string        // Prefix for allocated agent names.

	// Initial control state.
	GridWidth  int
	GridHeight int

	// Launcher hand-off.
	RequestsFile string // Append-only file polled by the agent launcher.
	RequestsSync bool   // fsync after every launch request.

	// Rate limiting of ingest routes.
	RateLimitEnabled bool
	RateLimitRPS     float64
	RateLimitBurst   int

	// MCP endpoint.
	MCPEnabled bool

	// OTEL settings.
	OTELEndpoint string
	OTELInsecure bool
	ServiceName  string

	// Operational settings.
	LogLevel string
}

// Load reads configuration from environment variables with sensible defaults.
// Every malformed variable is reported, not only the first.
func Load() (Config, error) {
	var errs []error
	collect := func(err error) {
		if err != nil {
			errs = append(errs, err)
		}
	}

	// PORT is honoured for compatibility with the launcher scripts; the
	// prefixed variable wins when both are set.
	defaultPort, err := envInt("PORT", 5001)
	collect(err)

	cfg := Config{
		StaticDir:    envStr("TSUSHIN_STATIC_DIR", ""),
		ClientPrefix: envStr("TSUSHIN_CLIENT_PREFIX", "Client"),
		RequestsFile: envStr("TSUSHIN_REQUESTS_FILE", "client_requests.txt"),
		OTELEndpoint: envStr("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		ServiceName:  envStr("OTEL_SERVICE_NAME", "tsushin"),
		LogLevel:     envStr("TSUSHIN_LOG_LEVEL", "info"),
	}

	cfg.Port, err = envInt("TSUSHIN_PORT", defaultPort)
	collect(err)
	cfg.ReadTimeout, err = envDuration("TSUSHIN_READ_TIMEOUT", 30*time.Second)
	collect(err)
	cfg.WriteTimeout, err = envDuration("TSUSHIN_WRITE_TIMEOUT", 30*time.Second)
	collect(err)
	bodyBytes, err := envInt("TSUSHIN_MAX_REQUEST_BODY_BYTES", 1*1024*1024) // 1 MB default
	collect(err)
	cfg.MaxRequestBodyBytes = int64(bodyBytes)

	cfg.StaleAfter, err = envDuration("TSUSHIN_STALE_AFTER", 10*time.Second)
	collect(err)
	cfg.EventCapacity, err = envInt("TSUSHIN_EVENT_CAPACITY", 500)
	collect(err)
	cfg.DefaultEventLimit, err = envInt("TSUSHIN_DEFAULT_EVENT_LIMIT", 100)
	collect(err)

	cfg.GridWidth, err = envInt("TSUSHIN_GRID_WIDTH", 120)
	collect(err)
	cfg.GridHeight, err = envInt("TSUSHIN_GRID_HEIGHT", 120)
	collect(err)

	cfg.RequestsSync, err = envBool("TSUSHIN_REQUESTS_SYNC", false)
	collect(err)

	cfg.RateLimitEnabled, err = envBool("TSUSHIN_RATE_LIMIT_ENABLED", false)
	collect(err)
	cfg.RateLimitRPS, err = envFloat("TSUSHIN_RATE_LIMIT_RPS", 50)
	collect(err)
	cfg.RateLimitBurst, err = envInt("TSUSHIN_RATE_LIMIT_BURST", 200)
	collect(err)

	cfg.MCPEnabled, err = envBool("TSUSHIN_MCP_ENABLED", true)
	collect(err)
	cfg.OTELInsecure, err = envBool("TSUSHIN_OTEL_INSECURE", false)
	collect(err)

	if len(errs) > 0 {
		return Config{}, fmt.Errorf("config: %w", errors.Join(errs...))
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks that numeric settings are usable.
func (c Config) Validate() error {
	var errs []error
	if c.Port < 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("port %d out of range", c.Port))
	}
	if c.StaleAfter <= 0 {
		errs = append(errs, fmt.Errorf("TSUSHIN_STALE_AFTER must be positive"))
	}
	if c.EventCapacity <= 0 {
		errs = append(errs, fmt.Errorf("TSUSHIN_EVENT_CAPACITY must be positive"))
	}
	if c.DefaultEventLimit <= 0 {
		errs = append(errs, fmt.Errorf("TSUSHIN_DEFAULT_EVENT_LIMIT must be positive"))
	}
	if c.MaxRequestBodyBytes <= 0 {
		errs = append(errs, fmt.Errorf("TSUSHIN_MAX_REQUEST_BODY_BYTES must be positive"))
	}
	if c.GridWidth <= 0 || c.GridHeight <= 0 {
		errs = append(errs, fmt.Errorf("TSUSHIN_GRID_WIDTH and TSUSHIN_GRID_HEIGHT must be positive"))
	}
	if c.RateLimitEnabled && (c.RateLimitRPS <= 0 || c.RateLimitBurst <= 0) {
		errs = append(errs, fmt.Errorf("TSUSHIN_RATE_LIMIT_RPS and TSUSHIN_RATE_LIMIT_BURST must be positive"))
	}
	if c.RequestsFile == "" {
		errs = append(errs, fmt.Errorf("TSUSHIN_REQUESTS_FILE is required"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: %w", errors.Join(errs...))
	}
	return nil
}

func envStr(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envInt(key string, defaultVal int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal, nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return 0, fmt.Errorf("%s=%q is not a valid integer", key, v)
	}
	return n, nil
}

func envFloat(key string, defaultVal float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal, nil
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		return 0, fmt.Errorf("%s=%q is not a valid number", key, v)
	}
	return f, nil
}

func envBool(key string, defaultVal bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal, nil
	}
	b, err := strconv.ParseBool(strings.TrimSpace(v))
	if err != nil {
		return false, fmt.Errorf("%s=%q is not a valid boolean", key, v)
	}
	return b, nil
}

func envDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal, nil
	}
	d, err := time.ParseDuration(strings.TrimSpace(v))
	if err != nil {
		return 0, fmt.Errorf("%s=%q is not a valid duration", key, v)
	}
	return d, nil
}
