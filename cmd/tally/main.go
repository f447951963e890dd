package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"time"

	"tally/internal/amqp"
	"tally/internal/backend"
	"tally/internal/budget"
	"tally/internal/cache"
	"tally/internal/cli"
	apphttp "tally/internal/http"
	"tally/internal/log"
	"tally/internal/services"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	cli.LoadEnvFile()

	logger := cli.SetupLogger(slog.LevelInfo)
	cfg := cli.LoadAndValidateConfig(logger)
	logger = cli.SetupLogger(cfg.SlogLevel())
	logger.Info("Starting tally", "version", version, log.FieldOperation, log.OpStartup)

	flush := cli.InitSentry(logger, cfg, version)
	defer flush()

	be, err := backend.NewFactory(logger).CreateBackend(context.Background(), cfg)
	if err != nil {
		logger.Error("Failed to initialize backend", log.FieldError, err.Error(), "backend", cfg.DataBackend)
		os.Exit(1)
	}

	reports := services.NewReportService(be.Store, cfg.ReportCacheSize, cfg.ReportCacheTTL,
		services.WithLogger(logger))
	opts := []services.Option{
		services.WithLogger(logger),
		services.WithInvalidator(reports),
		services.WithMaxExpenseAge(cfg.MaxExpenseAgeMonths),
	}

	// Events are optional: without a broker, writes still commit and the
	// audit trail is simply not fed.
	var amqpClient *amqp.Client
	if cfg.AMQPURL != "" {
		connectCtx, cancel := context.WithTimeout(context.Background(), time.Minute)
		amqpClient, err = amqp.NewClientWithRetry(connectCtx, cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, 5)
		cancel()
		if err != nil {
			logger.Warn("AMQP unavailable, ledger events disabled", log.FieldError, err.Error())
			amqpClient = nil
		} else {
			opts = append(opts, services.WithPublisher(amqpClient))
			logger.Info("AMQP publisher initialized", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
		}
	} else {
		logger.Info("AMQP disabled, ledger events will not be published")
	}

	enforcer := budget.NewEnforcer(cli.BudgetPolicy(cfg), logger)
	svc := apphttp.Services{
		Expenses:   services.NewExpenseService(be.Store, enforcer, opts...),
		Categories: services.NewCategoryService(be.Store, opts...),
		Budgets:    services.NewBudgetService(be.Store, enforcer, opts...),
		Reports:    reports,
	}

	cacheManager := cache.NewManager(logger)
	cacheManager.Register(reports.Cache())
	cacheManager.StartCleanup(time.Minute)

	serverOpts := []apphttp.Option{
		apphttp.WithLogger(logger),
		apphttp.WithRateLimit(cfg.RateLimitPerMinute),
	}
	if be.SQLite != nil {
		serverOpts = append(serverOpts, apphttp.WithReadiness(be.SQLite.Ping))
	}
	srv := apphttp.NewServer(":"+cfg.Port, svc, serverOpts...)

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err.Error())
		}
		cacheManager.Stop()
		if amqpClient != nil {
			if err := amqpClient.Close(); err != nil {
				logger.Warn("AMQP close error", log.FieldError, err.Error())
			}
		}
		if err := be.Close(); err != nil {
			logger.Error("Backend close error", log.FieldError, err.Error())
		}
	})

	logger.Info("Starting HTTP server", "port", cfg.Port, "backend", cfg.DataBackend)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", log.FieldError, err.Error(), "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}
