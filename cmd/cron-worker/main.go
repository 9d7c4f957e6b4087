package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/biznespilot/payme-merchant/internal/accounts"
	"github.com/biznespilot/payme-merchant/internal/billing"
	"github.com/biznespilot/payme-merchant/internal/cron"
	"github.com/biznespilot/payme-merchant/internal/payme"
	"github.com/biznespilot/payme-merchant/pkg/config"
	"github.com/biznespilot/payme-merchant/pkg/db"
	"github.com/biznespilot/payme-merchant/pkg/instance"
	"github.com/biznespilot/payme-merchant/pkg/logger"
	"github.com/biznespilot/payme-merchant/pkg/metrics"
	"github.com/biznespilot/payme-merchant/pkg/migrate"
	"github.com/biznespilot/payme-merchant/pkg/outbox"
	"github.com/biznespilot/payme-merchant/pkg/redis"
)

const serviceName = "cron-worker"

func main() {
	once := flag.Bool("once", false, "run a single cycle and exit")
	flag.Parse()

	logg := logger.New(logger.Options{ServiceName: serviceName})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: serviceName,
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
		Static:      map[string]any{"instance": instance.GetID(), "env": cfg.App.Env},
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	conn := dbClient.DB()
	outboxRepo := outbox.NewRepository(conn)
	paymeService, err := payme.NewService(payme.ServiceParams{
		DB:       dbClient,
		Ledger:   payme.NewRepository(conn),
		Orders:   billing.NewRepository(conn),
		Accounts: accounts.NewRepository(conn),
		Outbox:   outbox.NewService(outboxRepo, logg),
		Config:   cfg.Payme,
		Logger:   logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create payme service", err)
		os.Exit(1)
	}

	expiryJob, err := cron.NewPaymeExpiryJob(cron.PaymeExpiryJobParams{
		Logger:    logg,
		Expirer:   paymeService,
		BatchSize: cfg.Cron.ExpiryBatchSize,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create payme expiry job", err)
		os.Exit(1)
	}
	retentionJob, err := cron.NewOutboxRetentionJob(cron.OutboxRetentionJobParams{
		Logger:    logg,
		DB:        dbClient,
		Outbox:    outboxRepo,
		Retention: cfg.Cron.OutboxRetentionDays,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create outbox retention job", err)
		os.Exit(1)
	}
	registry, err := cron.NewRegistry(expiryJob, retentionJob)
	if err != nil {
		logg.Error(context.Background(), "failed to register cron jobs", err)
		os.Exit(1)
	}

	lock, err := cron.NewRedisLock(redisClient, redisClient.LockKey(serviceName), cfg.Cron.LockTTL)
	if err != nil {
		logg.Error(context.Background(), "failed to create cron lock", err)
		os.Exit(1)
	}

	service, err := cron.NewService(cron.ServiceParams{
		Logger:     logg,
		Registry:   registry,
		Lock:       lock,
		Metrics:    metrics.NewCronJobMetrics(prometheus.DefaultRegisterer),
		Interval:   cfg.Cron.Interval,
		JobTimeout: cfg.Cron.LockTTL,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create cron service", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"interval": cfg.Cron.Interval.String(),
	})

	if *once {
		logg.Info(ctx, "running single cron cycle")
		if err := service.RunOnce(ctx); err != nil {
			logg.Error(ctx, "cron cycle failed", err)
			os.Exit(1)
		}
		return
	}

	logg.Info(ctx, "starting cron worker")
	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "cron worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "cron worker shutting down gracefully")
}
