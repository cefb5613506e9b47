package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/segmentio/kafka-go"

	"example.com/activityplanner/internal/cache"
	"example.com/activityplanner/internal/config"
	"example.com/activityplanner/internal/consumer"
	"example.com/activityplanner/internal/events"
	"example.com/activityplanner/internal/logging"
	httptransport "example.com/activityplanner/internal/transport/http"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	log := logging.New(os.Stdout, cfg.LogLevel, cfg.LogFormat).With("service", "activity-event-consumer")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Store != config.StorePostgres || !cfg.EventsEnabled() {
		log.Error(ctx, "consumer requires STORE=postgres and KAFKA_BROKERS")
		os.Exit(1)
	}

	pool, err := pgxpool.New(ctx, cfg.PostgresURL)
	if err != nil {
		log.Error(ctx, "failed to connect to postgres", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	eventLog := consumer.NewPersistenceHandler(pool)
	var invalidation consumer.Handler
	if cfg.RedisAddr != "" {
		client, err := cache.Connect(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			log.Error(ctx, "failed to connect to redis", "error", err)
			os.Exit(1)
		}
		defer client.Close()
		invalidation = consumer.NewInvalidationHandler(cache.NewStatisticsCache(client, cfg.StatsCacheTTL, log))
	}
	router := consumer.NewRouter()
	for aggregate, handlers := range map[string][]consumer.Handler{
		events.AggregateActivity:   {eventLog, invalidation},
		events.AggregateResolution: {eventLog},
	} {
		if err := router.Register(aggregate, handlers...); err != nil {
			log.Error(ctx, "invalid consumer pipeline", "error", err)
			os.Exit(1)
		}
	}

	metricsSrv := httptransport.NewServer(httptransport.ServerConfig{
		Address:     cfg.MetricsAddress,
		ReadTimeout: cfg.ReadTimeout,
		IdleTimeout: cfg.IdleTimeout,
	}, promhttp.Handler())
	go func() {
		if err := httptransport.Run(ctx, metricsSrv, cfg.ShutdownTimeout, log); err != nil {
			log.Error(ctx, "metrics server error", "error", err)
		}
	}()

	var wg sync.WaitGroup
	for _, topic := range cfg.ConsumerTopics {
		reader := kafka.NewReader(kafka.ReaderConfig{
			Brokers:         cfg.KafkaBrokers,
			GroupID:         cfg.ConsumerGroupID,
			Topic:           topic,
			MinBytes:        1e3,
			MaxBytes:        10e6,
			CommitInterval:  time.Second,
			RetentionTime:   24 * time.Hour,
			ReadLagInterval: -1,
		})
		topicLog := log.With("topic", topic, "group", cfg.ConsumerGroupID)
		proc := consumer.NewProcessor(reader, router, consumer.WithLogger(topicLog))

		wg.Add(1)
		go func(r *kafka.Reader) {
			defer wg.Done()
			defer r.Close()

			topicLog.Info(ctx, "consumer started")
			if err := proc.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				topicLog.Error(ctx, "consumer stopped with error", "error", err)
			}
		}(reader)
	}

	<-ctx.Done()
	log.Info(context.Background(), "consumer shutdown requested")
	wg.Wait()
}
