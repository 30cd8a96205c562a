// Package main provides the emitter service: a set of partition consumers
// that read lifecycle events off the emit topic and apply them through the
// registered handlers, dead-lettering on retry exhaustion.
package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/integration-os/core/internal/config"
	"github.com/integration-os/core/internal/controldata"
	"github.com/integration-os/core/internal/domain"
	"github.com/integration-os/core/internal/emit"
	"github.com/integration-os/core/internal/storage"
)

const (
	version = "1.0.0-dev"
	name    = "emitter"
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

	logger.Info("starting emitter service", slog.String("service", name), slog.String("version", version))

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

	connectionStore := controldata.NewPostgresStore(conn)
	registry := emit.NewRegistry(connectionStore)

	idemStore := emit.NewPostgresStore(conn)

	streamCfg := emit.StreamConfig{
		Brokers:        coreCfg.KafkaBrokers,
		Topic:          coreCfg.EventTopic,
		PartitionCount: coreCfg.PartitionCount,
	}

	retryPolicy := loadRetryPolicy()

	ctx, cancel := context.WithCancel(context.Background())

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	go func() {
		sig := <-stop
		logger.Info("received shutdown signal", slog.String("signal", sig.String()))
		cancel()
	}()

	var wg sync.WaitGroup

	for partition := 0; partition < coreCfg.PartitionCount; partition++ {
		consumer := emit.NewConsumer(partition, emit.ConsumerConfig{
			Stream:   streamCfg,
			Retry:    retryPolicy,
			Registry: registry,
		}, idemStore, idemStore, logger)

		wg.Add(1)

		go func(partition int, consumer *emit.Consumer) {
			defer wg.Done()

			logger.Info("starting partition consumer", slog.Int("partition", partition))

			if err := consumer.Run(ctx); err != nil {
				logger.Error("partition consumer stopped with error",
					slog.Int("partition", partition), slog.String("error", err.Error()))

				return
			}

			logger.Info("partition consumer stopped", slog.Int("partition", partition))
		}(partition, consumer)
	}

	wg.Wait()

	logger.Info("emitter service stopped")
}

// loadRetryPolicy reads EMIT_RETRY_INTERVAL and EMIT_RETRY_MAX_ATTEMPTS,
// matching the grammar domain.RetryPolicy.GetInterval parses ("<N>
// second[s]|minute[s]").
func loadRetryPolicy() domain.RetryPolicy {
	return domain.RetryPolicy{
		InitialInterval: config.GetEnvStr("EMIT_RETRY_INTERVAL", "5 seconds"),
		MaximumAttempts: uint64(config.GetEnvInt("EMIT_RETRY_MAX_ATTEMPTS", 3)),
	}
}
