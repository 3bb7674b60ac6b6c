// Command dashboard serves the interactive sales dashboard.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"carsales/internal/amqp"
	"carsales/internal/backend"
	"carsales/internal/cli"
	apphttp "carsales/internal/http"
	applog "carsales/internal/log"
	"carsales/internal/metrics"
)

func main() {
	cli.LoadEnvFile()

	logger := cli.SetupLogger(applog.ComponentDashboard, os.Getenv("LOG_LEVEL"))
	cfg := cli.LoadAndValidateConfig(logger)

	backendCfg, err := backend.FromAppConfig(cfg)
	cli.ExitOnError(logger, "Invalid data backend", err)
	source, err := backend.NewFactory(logger).CreateSource(backendCfg)
	cli.ExitOnError(logger, "Failed to create data source", err, "backend", cfg.DataBackend)

	holder := backend.NewHolder(source, logger)
	reg := metrics.New()
	srv := apphttp.NewServer(apphttp.Config{
		Addr:               ":" + cfg.Port,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		SummaryCacheTTL:    cfg.SummaryCacheTTL,
		SummaryCacheSize:   cfg.SummaryCacheSize,
		TrustedProxies:     cfg.TrustedProxies,
	}, holder, reg, logger)

	// Configure server timeouts and limits
	srv.ReadTimeout = 15 * time.Second
	srv.WriteTimeout = 3 * time.Minute
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16 // 64KB

	amqpClient := cli.ConnectAMQP(logger, cfg, false)

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(shutdownCtx context.Context) {
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", applog.FieldError, err)
		}
		if amqpClient != nil {
			_ = amqpClient.Close()
		}
	})

	// Serve probes while the first load runs; /readyz reports 503 until it ends.
	go func() {
		if _, err := srv.Reload(ctx, "startup"); err != nil {
			logger.Error("Initial data load failed, waiting for a reload", applog.FieldError, err)
		}
	}()

	if amqpClient != nil {
		if err := amqpClient.DeclareQueue(cfg.AMQPDashboardQueue, amqp.RoutingAggregatesRefreshed); err != nil {
			logger.Warn("Reload events disabled", "queue", cfg.AMQPDashboardQueue, applog.FieldError, err)
		} else {
			go func() {
				err := amqpClient.ConsumeAggregatesRefreshed(ctx, cfg.AMQPDashboardQueue,
					func(ctx context.Context, msg *amqp.AggregatesRefreshedMessage) error {
						_, err := srv.Reload(ctx, "amqp:"+msg.RunID)
						return err
					})
				if err != nil && !errors.Is(err, context.Canceled) {
					logger.Error("Reload event consumption stopped", applog.FieldError, err)
				}
			}()
		}
	}

	logger.Info("Starting dashboard server", "port", cfg.Port, "backend", cfg.DataBackend)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", applog.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}
