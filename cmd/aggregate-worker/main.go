// Command aggregate-worker rebuilds the aggregate outputs whenever the
// loader announces a new dataset.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"github.com/gorilla/mux"

	"carsales/internal/amqp"
	"carsales/internal/cli"
	applog "carsales/internal/log"
	"carsales/internal/metrics"
	"carsales/internal/services"
	"carsales/internal/worker"
)

func main() {
	cli.LoadEnvFile()

	logger := cli.SetupLogger(applog.ComponentWorker, os.Getenv("LOG_LEVEL"))
	logger.Info("Starting aggregate-worker")

	cfg := cli.LoadAndValidateConfig(logger)
	reg := metrics.New()

	amqpClient := cli.ConnectAMQP(logger, cfg, true)
	if err := amqpClient.DeclareQueue(cfg.AMQPRefreshQueue, amqp.RoutingDatasetLoaded); err != nil {
		amqpClient.Close()
		cli.ExitOnError(logger, "Failed to declare refresh queue", err, "queue", cfg.AMQPRefreshQueue)
	}

	var metricsSrv *http.Server
	if cfg.MetricsAddr != "" {
		router := mux.NewRouter()
		router.Handle("/metrics", reg.Handler()).Methods(http.MethodGet)
		router.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte("ok"))
		})
		metricsSrv = &http.Server{Addr: cfg.MetricsAddr, Handler: router, ReadHeaderTimeout: 10 * time.Second}
	}

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(shutdownCtx context.Context) {
		if metricsSrv != nil {
			if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
				logger.Error("Metrics server shutdown error", applog.FieldError, err)
			}
		}
		if err := amqpClient.Close(); err != nil {
			logger.Warn("AMQP close error", applog.FieldError, err)
		}
	})

	// The worker reads the loaded dataset back from the store.
	store := cli.OpenStore(ctx, logger, cfg)
	defer store.Close()

	svc := cli.NewAggregateService(ctx, logger, cfg, cli.AggregatorDeps{
		Store:     store,
		AMQP:      amqpClient,
		Recorder:  reg,
		SinkFlags: cli.SinkOptions{XLSXPath: cfg.ExportXLSXPath, SpreadsheetID: cfg.GoogleSpreadsheetID},
	})
	refresher := worker.NewRefreshWorker(svc, services.AggregateOptions{
		Source:     services.SourceStore,
		BundlePath: cfg.BundlePath,
	}, logger)

	if metricsSrv != nil {
		go func() {
			logger.Info("Serving worker metrics", "addr", cfg.MetricsAddr)
			if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("Metrics server error", applog.FieldError, err)
			}
		}()
	}

	if cfg.RefreshOnStartup {
		if err := refresher.StartupRefresh(ctx); err != nil {
			// Not fatal: the next dataset.loaded event retries.
			logger.Error("Startup refresh failed", applog.FieldError, err)
		}
	}

	go func() {
		err := amqpClient.ConsumeDatasetLoaded(ctx, cfg.AMQPRefreshQueue, refresher.HandleDatasetLoaded)
		if err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("Message consumption failed", applog.FieldError, err)
			store.Close()
			os.Exit(1)
		}
	}()

	cli.WaitForShutdown(ctx, done)
	logger.Info("Worker stopped", "last_run", refresher.LastRun())
}
