package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"example.com/activityplanner/internal/config"
	"example.com/activityplanner/internal/logging"
	"example.com/activityplanner/internal/outbox"
	httptransport "example.com/activityplanner/internal/transport/http"
)

const defaultDLQBatchSize = 50

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	log := logging.New(os.Stdout, cfg.LogLevel, cfg.LogFormat).With("service", "activity-dlq-manager")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Store != config.StorePostgres {
		log.Error(ctx, "dlq manager requires STORE=postgres")
		os.Exit(1)
	}

	pool, err := pgxpool.New(ctx, cfg.PostgresURL)
	if err != nil {
		log.Error(ctx, "failed to connect to postgres", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	manager := outbox.NewDLQManager(pool, cfg.DLQMaxRetries, cfg.DLQBaseDelay, log)

	metricsSrv := httptransport.NewServer(httptransport.ServerConfig{
		Address:     cfg.MetricsAddress,
		ReadTimeout: cfg.ReadTimeout,
		IdleTimeout: cfg.IdleTimeout,
	}, promhttp.Handler())
	metricsDone := make(chan struct{})
	go func() {
		defer close(metricsDone)
		if err := httptransport.Run(ctx, metricsSrv, cfg.ShutdownTimeout, log); err != nil {
			log.Error(ctx, "metrics server error", "error", err)
		}
	}()

	ticker := time.NewTicker(cfg.DLQPollInterval)
	defer ticker.Stop()

	log.Info(ctx, "dlq manager started", "interval", cfg.DLQPollInterval.String(), "max_retries", cfg.DLQMaxRetries)

	for {
		select {
		case <-ctx.Done():
			log.Info(context.Background(), "dlq manager received shutdown signal")
			<-metricsDone
			return
		case <-ticker.C:
			processed, err := manager.RunOnce(ctx, defaultDLQBatchSize)
			if err != nil {
				log.Error(ctx, "dlq manager error", "error", err)
			} else if processed > 0 {
				log.Info(ctx, "dlq manager processed entries", "count", processed)
			}
		}
	}
}
