package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"

	"example.com/activityplanner/internal/api"
	"example.com/activityplanner/internal/auth"
	"example.com/activityplanner/internal/cache"
	"example.com/activityplanner/internal/config"
	"example.com/activityplanner/internal/domain"
	"example.com/activityplanner/internal/export"
	"example.com/activityplanner/internal/logging"
	"example.com/activityplanner/internal/notify"
	"example.com/activityplanner/internal/outbox"
	"example.com/activityplanner/internal/persistence/memory"
	"example.com/activityplanner/internal/persistence/postgres"
	"example.com/activityplanner/internal/seed"
	"example.com/activityplanner/internal/storage"
	httptransport "example.com/activityplanner/internal/transport/http"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	log := logging.New(os.Stdout, cfg.LogLevel, cfg.LogFormat).With("service", "activity-api")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error(ctx, "activity api stopped", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, log logging.Logger) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	data, err := seed.Load(cfg.SeedFile)
	if err != nil {
		return err
	}

	var (
		repo        domain.ActivityRepository
		resolutions domain.ResolutionRepository
		dispatcher  *outbox.Dispatcher
	)
	switch cfg.Store {
	case config.StorePostgres:
		if cfg.MigrateOnStart {
			if err := postgres.Migrate(ctx, cfg.PostgresURL, log); err != nil {
				return err
			}
		}
		pool, err := pgxpool.New(ctx, cfg.PostgresURL)
		if err != nil {
			return fmt.Errorf("connect postgres: %w", err)
		}
		defer pool.Close()

		pgRepo := postgres.NewRepository(pool)
		seeded, err := pgRepo.SeedIfEmpty(ctx, data.Activities)
		if err != nil {
			return fmt.Errorf("seed activities: %w", err)
		}
		if seeded > 0 {
			log.Info(ctx, "seeded activities", "count", seeded)
		}
		seeded, err = pgRepo.SeedResolutionsIfEmpty(ctx, data.Resolutions)
		if err != nil {
			return fmt.Errorf("seed resolutions: %w", err)
		}
		if seeded > 0 {
			log.Info(ctx, "seeded resolutions", "count", seeded)
		}
		repo, resolutions = pgRepo, pgRepo

		if cfg.EventsEnabled() {
			producer := outbox.NewKafkaProducer(cfg.KafkaBrokers)
			defer producer.Close()
			registry := outbox.NewSchemaRegistryClient(cfg.SchemaRegistryURL)
			dispatcher = outbox.NewDispatcher(pool, producer, registry, cfg.OutboxPollInterval, cfg.OutboxBatchSize,
				outbox.WithLogger(log.With("component", "outbox")))
			go dispatcher.Start(ctx)
		}
	default:
		memRepo := memory.NewRepository(data.Activities...)
		memRepo.SeedResolutions(data.Resolutions...)
		repo, resolutions = memRepo, memRepo
		if cfg.EventsEnabled() {
			log.Warn(ctx, "kafka brokers configured but events need STORE=postgres; publishing disabled")
		}
	}

	translator, err := notify.NewTranslator(cfg.DefaultLocale)
	if err != nil {
		return err
	}
	opts := []domain.Option{
		domain.WithNotifier(notify.NewNotifier(log.With("component", "notify"), translator)),
		domain.WithLocation(export.Location),
		domain.WithLogger(log.With("component", "domain")),
	}
	if cfg.RedisAddr != "" {
		client, err := cache.Connect(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			return err
		}
		defer client.Close()
		opts = append(opts, domain.WithStatisticsCache(cache.NewStatisticsCache(client, cfg.StatsCacheTTL, log)))
	}
	service := domain.NewService(repo, data.Catalog, opts...)

	handlerOpts := []api.HandlerOption{
		api.WithLogger(log.With("component", "http")),
		api.WithAllowedOrigin(cfg.AllowedOrigin),
		api.WithResolutions(service.Resolutions(resolutions)),
	}
	presigner, err := storage.NewPresigner(ctx, storage.Config{
		Bucket:       cfg.S3Bucket,
		Region:       cfg.S3Region,
		Endpoint:     cfg.S3Endpoint,
		AccessKey:    cfg.S3AccessKey,
		SecretKey:    cfg.S3SecretKey,
		TTL:          cfg.S3PresignTTL,
		UsePathStyle: cfg.S3UsePathStyle,
	})
	switch {
	case err == nil:
		handlerOpts = append(handlerOpts, api.WithSigner(presigner))
	case errors.Is(err, storage.ErrDisabled):
		log.Info(ctx, "attachment storage disabled")
	default:
		return err
	}

	handler := api.NewHandler(service, translator, handlerOpts...)
	authn := auth.NewMiddleware(auth.Config{Secret: cfg.JWTSecret, Issuer: cfg.JWTIssuer})

	server := httptransport.NewServer(httptransport.ServerConfig{
		Address:      cfg.HTTPAddress,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}, handler.Router(authn))

	err = httptransport.Run(ctx, server, cfg.ShutdownTimeout, log)
	cancel()
	if dispatcher != nil {
		dispatcher.Wait()
	}
	return err
}
