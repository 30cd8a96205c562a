// Package main provides the watchdog service: a standalone process that
// periodically sweeps the context store for orphaned extractor attempts
// and drops their owning pipeline (and, once settled, the root event).
package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/integration-os/core/internal/config"
	"github.com/integration-os/core/internal/contextstore"
	"github.com/integration-os/core/internal/storage"
	"github.com/integration-os/core/internal/watchdog"
)

const (
	version = "1.0.0-dev"
	name    = "watchdog"
)

func main() {
	versionFlag := flag.Bool("version", false, "show version information")
	flag.Parse()

	if *versionFlag {
		log.Printf("%s v%s\n", name, version)
		os.Exit(0)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: config.GetEnvLogLevel("LOG_LEVEL", slog.LevelInfo),
	}))

	logger.Info("starting watchdog service", slog.String("service", name), slog.String("version", version))

	dbCfg := storage.LoadConfig()
	if err := dbCfg.Validate(); err != nil {
		logger.Error("invalid database configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	conn, err := storage.NewConnection(dbCfg)
	if err != nil {
		logger.Error("failed to connect to database", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer conn.Close()

	logger.Info("connected to database", slog.String("url", dbCfg.MaskDatabaseURL()))

	store := contextstore.NewPostgresStore(conn)
	cfg := watchdog.LoadConfig()

	logger.Info("loaded watchdog configuration",
		slog.Duration("poll_duration", cfg.PollDuration),
		slog.Duration("event_timeout", cfg.EventTimeout),
	)

	dog := watchdog.New(store, cfg, logger)

	ctx, cancel := context.WithCancel(context.Background())

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	go func() {
		sig := <-stop
		logger.Info("received shutdown signal", slog.String("signal", sig.String()))
		cancel()
	}()

	dog.Run(ctx)

	logger.Info("watchdog service stopped")
}
