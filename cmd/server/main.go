package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/pjetools/triagem/internal/config"
	"github.com/pjetools/triagem/internal/logging"
	"github.com/pjetools/triagem/internal/schema"
	"github.com/pjetools/triagem/internal/session"
	"github.com/pjetools/triagem/internal/web"
)

func main() {
	// Load .env file if it exists (Overload overwrites existing env vars)
	if err := godotenv.Overload(); err != nil {
		slog.Info("no .env file found, using environment variables")
	} else {
		slog.Info("loaded .env file (overwriting existing env vars)")
	}

	// Load and validate configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	// Setup structured logging based on config
	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)

	slog.Info("configuration loaded",
		"port", cfg.Server.Port,
		"max_files", cfg.Upload.MaxFiles,
		"max_concurrent", cfg.Upload.MaxConcurrent,
		"timezone", cfg.Pipeline.Timezone,
	)

	// Build the pipeline schema: built-in defaults plus the optional
	// override file.
	sch := schema.Default()
	if cfg.Pipeline.SchemaFile != "" {
		if err := sch.LoadFile(cfg.Pipeline.SchemaFile); err != nil {
			slog.Error("failed to load schema file",
				"file", cfg.Pipeline.SchemaFile,
				"error", err,
			)
			os.Exit(1)
		}
		slog.Info("schema overrides loaded", "file", cfg.Pipeline.SchemaFile)
	}

	loc, err := cfg.Pipeline.Location()
	if err != nil {
		slog.Error("failed to resolve timezone", "error", err)
		os.Exit(1)
	}

	service := session.New(sch, loc, cfg.Upload.MaxConcurrent)
	server := web.NewServer(service, cfg)

	// Graceful shutdown on SIGINT/SIGTERM
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	slog.Info("server starting", "addr", cfg.Server.Addr())
	if err := server.Start(ctx); err != nil {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
	slog.Info("server stopped")
}
