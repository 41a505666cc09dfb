// Package main is the entry point for the task manager API.
//
// The main package stays minimal. Its job is to:
// 1. Read configuration (config.yaml and environment variables)
// 2. Build the logger
// 3. Hand both to internal/server and block until shutdown
//
// Everything else lives in internal/ so it can be tested without a process.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/sakif/task-manager/internal/config"
	"github.com/sakif/task-manager/internal/server"
)

func main() {
	// === 1. READ CONFIGURATION ===
	// Logging is not configured yet, so a config error goes to stderr as-is.
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	// === 2. SET UP LOGGING ===
	logger, err := newLogger(cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	slog.SetDefault(logger)

	// === 3. CREATE AND START THE SERVER ===
	srv, err := server.New(context.Background(), cfg, logger)
	if err != nil {
		logger.Error("failed to create server", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Start() blocks until the server is shut down (via Ctrl+C or SIGTERM)
	if err := srv.Start(); err != nil {
		logger.Error("server error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

// newLogger honours LOG_LEVEL (debug, info, warn, error) and LOG_FORMAT
// (text for terminals, json for log shippers).
func newLogger(cfg *config.Config) (*slog.Logger, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		return nil, fmt.Errorf("config: unknown LOG_LEVEL %q", cfg.LogLevel)
	}

	opts := &slog.HandlerOptions{Level: level}
	if cfg.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts)), nil
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts)), nil
}
