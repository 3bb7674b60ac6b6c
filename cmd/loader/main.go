// Command loader moves the car sales CSV into the relational store in
// batches, runs the supplementary SQL script and announces the new load.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"carsales/internal/cli"
	applog "carsales/internal/log"
	"carsales/internal/services"
)

func main() {
	cli.LoadEnvFile()

	csvPath := flag.String("csv", "", "path to the sales CSV (default CSV_PATH)")
	batchSize := flag.Int("batch", 0, "rows per insert transaction (default LOAD_BATCH_SIZE)")
	truncate := flag.Bool("truncate", false, "delete existing sales before loading")
	scriptPath := flag.String("script", "", "SQL script to run after the load (default SQL_SCRIPT_PATH, \"-\" to skip)")
	flag.Parse()

	logger := cli.SetupLogger(applog.ComponentLoader, os.Getenv("LOG_LEVEL"))
	logger.Info("Starting loader")

	cfg := cli.LoadAndValidateConfig(logger)
	if *csvPath == "" {
		*csvPath = cfg.CSVPath
	}
	if *batchSize <= 0 {
		*batchSize = cfg.LoadBatchSize
	}
	switch *scriptPath {
	case "":
		*scriptPath = cfg.SQLScriptPath
	case "-":
		*scriptPath = ""
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store := cli.OpenStore(ctx, logger, cfg)
	defer store.Close()

	var publisher services.LoadedPublisher
	if client := cli.ConnectAMQP(logger, cfg, false); client != nil {
		defer client.Close()
		publisher = client
	}

	svc := services.NewLoadService(store, publisher, logger)
	report, err := svc.Run(ctx, services.LoadOptions{
		CSVPath:    *csvPath,
		Driver:     cfg.DBDriver,
		BatchSize:  *batchSize,
		Truncate:   *truncate,
		ScriptPath: *scriptPath,
	})
	if err != nil {
		logger.Error("Load failed",
			applog.FieldRunID, report.RunID,
			applog.FieldInserted, report.Rows,
			applog.FieldError, err)
		store.Close()
		os.Exit(1)
	}

	logger.Info("Loader finished",
		applog.FieldRunID, report.RunID,
		applog.FieldRows, report.Rows,
		"batches", report.Batches,
		applog.FieldDuration, report.Duration.Milliseconds())
}
