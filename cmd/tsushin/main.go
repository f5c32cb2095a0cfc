package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"

	"github.com/ashita-ai/tsushin"
	"github.com/ashita-ai/tsushin/internal/config"
)

// version is set at build time via -ldflags.
var version = "dev"

// flags are command-line overrides applied on top of the environment.
type flags struct {
	envFile      string
	port         int
	logLevel     string
	staticDir    string
	requestsFile string
	showVersion  bool
}

func main() {
	os.Exit(realMain())
}

func realMain() int {
	f, err := parseFlags(os.Args[1:])
	if errors.Is(err, pflag.ErrHelp) {
		return 0
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 2
	}
	if f.showVersion {
		fmt.Println("tsushin", version)
		return 0
	}

	// Load .env file if present (non-fatal unless one was named explicitly).
	if f.envFile != "" {
		if err := godotenv.Load(f.envFile); err != nil {
			fmt.Fprintf(os.Stderr, "error: load env file: %v\n", err)
			return 1
		}
	} else {
		_ = godotenv.Load()
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}
	if err := f.apply(&cfg); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		fmt.Fprintf(os.Stderr, "error: invalid log level %q\n", cfg.LogLevel)
		return 1
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, cfg, logger); err != nil {
		slog.Error("fatal error", "error", err)
		return 1
	}
	return 0
}

func parseFlags(args []string) (flags, error) {
	var f flags
	flagSet := pflag.NewFlagSet("tsushin", pflag.ContinueOnError)
	flagSet.StringVar(&f.envFile, "env-file", "", "load environment from this file (default: .env if present)")
	flagSet.IntVar(&f.port, "port", 0, "listen port (overrides TSUSHIN_PORT and PORT)")
	flagSet.StringVar(&f.logLevel, "log-level", "", "debug, info, warn or error (overrides TSUSHIN_LOG_LEVEL)")
	flagSet.StringVar(&f.staticDir, "static-dir", "", "dashboard directory served at / (overrides TSUSHIN_STATIC_DIR)")
	flagSet.StringVar(&f.requestsFile, "requests-file", "", "client launch request file (overrides TSUSHIN_REQUESTS_FILE)")
	flagSet.BoolVar(&f.showVersion, "version", false, "print version and exit")

	if err := flagSet.Parse(args); err != nil {
		return flags{}, err
	}
	if rest := flagSet.Args(); len(rest) > 0 {
		return flags{}, fmt.Errorf("unexpected argument: %s", rest[0])
	}
	return f, nil
}

// apply overwrites cfg with any flag that was set and revalidates.
func (f flags) apply(cfg *config.Config) error {
	if f.port != 0 {
		cfg.Port = f.port
	}
	if f.logLevel != "" {
		cfg.LogLevel = f.logLevel
	}
	if f.staticDir != "" {
		cfg.StaticDir = f.staticDir
	}
	if f.requestsFile != "" {
		cfg.RequestsFile = f.requestsFile
	}
	return cfg.Validate()
}

func run(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	app, err := tsushin.New(
		tsushin.WithConfig(cfg),
		tsushin.WithLogger(logger),
		tsushin.WithVersion(version),
	)
	if err != nil {
		return err
	}
	return app.Run(ctx)
}
