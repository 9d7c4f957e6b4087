package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/biznespilot/payme-merchant/api/controllers"
	"github.com/biznespilot/payme-merchant/api/routes"
	"github.com/biznespilot/payme-merchant/internal/accounts"
	"github.com/biznespilot/payme-merchant/internal/billing"
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

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
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
	accountRepo := accounts.NewRepository(conn)
	rpcMetrics := metrics.NewRPCMetrics(prometheus.DefaultRegisterer)

	paymeService, err := payme.NewService(payme.ServiceParams{
		DB:       dbClient,
		Ledger:   payme.NewRepository(conn),
		Orders:   billing.NewRepository(conn),
		Accounts: accountRepo,
		Outbox:   outbox.NewService(outbox.NewRepository(conn), logg),
		Config:   cfg.Payme,
		Logger:   logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create payme service", err)
		os.Exit(1)
	}

	authenticator, err := payme.NewAuthenticator(payme.AuthenticatorParams{
		Accounts: accountRepo,
		Limiter:  redisClient,
		Metrics:  rpcMetrics,
		Config:   cfg.Payme,
		Logger:   logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create payme authenticator", err)
		os.Exit(1)
	}

	rpcServer, err := payme.NewServer(authenticator, paymeService, rpcMetrics, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create payme rpc server", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"addr": addr,
	})

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(routes.RouterParams{
			Config: cfg,
			Logger: logg,
			Payme:  rpcServer,
			Ready: []controllers.Dependency{
				{Name: "database", Pinger: dbClient},
				{Name: "redis", Pinger: redisClient},
			},
		}),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	serveErr := make(chan error, 1)
	go func() {
		logg.Info(ctx, "starting api server")
		serveErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(ctx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
		return
	case <-sigCtx.Done():
	}

	logg.Info(ctx, "shutting down api server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logg.Error(ctx, "api server shutdown failed", err)
		os.Exit(1)
	}
	logg.Info(ctx, "api server stopped")
}
