// Package main provides the dispatcher service: the HTTP-facing process
// that serves POST /v1/event (ingress admission and pipeline fan-out) and
// POST /v1/emit (idempotent lifecycle-event publish).
package main

import (
	"flag"
	"log"
	"log/slog"
	"os"

	"github.com/integration-os/core/internal/api"
	"github.com/integration-os/core/internal/api/middleware"
	"github.com/integration-os/core/internal/config"
	"github.com/integration-os/core/internal/contextstore"
	"github.com/integration-os/core/internal/controldata"
	"github.com/integration-os/core/internal/credential"
	"github.com/integration-os/core/internal/emit"
	"github.com/integration-os/core/internal/ingress"
	"github.com/integration-os/core/internal/pipeline"
	"github.com/integration-os/core/internal/storage"
)

const (
	version = "1.0.0-dev"
	name    = "dispatcher"
)

func main() {
	versionFlag := flag.Bool("version", false, "show version information")
	flag.Parse()

	if *versionFlag {
		log.Printf("%s v%s\n", name, version)
		os.Exit(0)
	}

	serverConfig := api.LoadServerConfig()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: serverConfig.LogLevel,
	}))

	logger.Info("starting dispatcher service", slog.String("service", name), slog.String("version", version))

	coreCfg := config.LoadCoreConfig()
	if err := coreCfg.Validate(); err != nil {
		logger.Error("invalid core configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

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

	credentialStore := credential.NewPostgresStore(conn)
	cache := credential.NewCache(coreCfg.CacheSize, coreCfg.CacheTTL, credentialStore)
	gate := credential.NewGate(cache)

	contextStore := contextstore.NewPostgresStore(conn)

	pipelineStore := controldata.NewCachedPipelineStore(
		coreCfg.CacheSize, coreCfg.CacheTTL, controldata.NewPostgresStore(conn),
	)

	eventStore := ingress.NewPostgresStore(conn)

	idemStore := emit.NewPostgresStore(conn)
	dedup := emit.NewDeduplication(coreCfg.CacheSize)

	stream := emit.NewStream(emit.StreamConfig{
		Brokers:        coreCfg.KafkaBrokers,
		Topic:          coreCfg.EventTopic,
		PartitionCount: coreCfg.PartitionCount,
	}, idemStore, logger)

	dispatcher := pipeline.NewDispatcher(contextStore, nil, nil, logger)

	ingressHandler := ingress.NewHandler(
		gate, eventStore, contextStore, pipelineStore, dedup, dispatcher, ingress.LoadConfig(), logger,
	)

	rateLimiter := middleware.NewInMemoryRateLimiter(middleware.LoadConfig())

	server := api.NewServer(&serverConfig, rateLimiter, ingressHandler, stream)

	if err := server.Start(); err != nil {
		logger.Error("server failed to start", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger.Info("dispatcher service stopped")
}
