// Command kigalisim is the CLI front end for the simulation engine under
// internal/engine/.... It parses a DSL script, runs the scenarios it
// declares, and writes results as CSV, optionally mirroring them to an
// external sink. The engine core never imports this package.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/example/kigalisim/internal/config"
	"github.com/example/kigalisim/internal/db"
	"github.com/example/kigalisim/internal/logging"
)

func main() {
	logger := logging.New(logging.Config{
		Level:  slog.LevelInfo,
		Format: logging.FormatText,
		Output: os.Stdout,
	})

	if len(os.Args) < 2 {
		fmt.Println("usage: kigalisim <run|validate|report|serve> [args]")
		os.Exit(1)
	}

	command := os.Args[1]
	var code int
	switch command {
	case "run":
		code = runCmd(logger, os.Args[2:])
	case "validate":
		code = validateCmd(logger, os.Args[2:])
	case "report":
		code = reportCmd(logger, os.Args[2:])
	case "serve":
		code = serveCmd(logger, os.Args[2:])
	default:
		fmt.Printf("unknown command: %s\n", command)
		code = 1
	}
	os.Exit(code)
}

// runtime bundles the shared dependencies every subcommand needs: a
// cancellable context, the logger, the loaded configuration, and an
// optional Postgres connection when a sink DSN is configured.
type runtime struct {
	ctx    context.Context
	cancel context.CancelFunc
	cfg    config.Config
	db     *db.DB
	logger *slog.Logger
}

func buildRuntime(logger *slog.Logger) (*runtime, error) {
	if logger == nil {
		logger = slog.Default()
	}

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())

	var database *db.DB
	if cfg.Sinks.PostgresDSN != "" {
		database, err = db.Connect(ctx, db.Config{DSN: cfg.Sinks.PostgresDSN})
		if err != nil {
			cancel()
			return nil, fmt.Errorf("connect sink db: %w", err)
		}
		if err := database.RunMigrations(ctx); err != nil {
			cancel()
			return nil, fmt.Errorf("run migrations: %w", err)
		}
	}

	return &runtime{
		ctx:    ctx,
		cancel: cancel,
		cfg:    cfg,
		db:     database,
		logger: logger,
	}, nil
}

func (rt *runtime) close() {
	rt.cancel()
	if rt.db != nil {
		_ = rt.db.Close()
	}
}
