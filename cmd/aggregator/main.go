// Command aggregator computes the summary tables of the sales dataset and
// writes them to the bundle, the flat CSV files and any configured sheet.
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
	"carsales/internal/storage"
)

func main() {
	cli.LoadEnvFile()

	source := flag.String("source", services.SourceCSV, "dataset source: csv or store")
	csvPath := flag.String("csv", "", "path to the sales CSV (default CSV_PATH)")
	dryRun := flag.Bool("dry-run", false, "compute and log the tables without writing them")
	xlsxPath := flag.String("xlsx", "", "also write a workbook to this path (default EXPORT_XLSX_PATH)")
	spreadsheet := flag.String("google", "", "also write to this spreadsheet id (default GOOGLE_SPREADSHEET_ID)")
	flag.Parse()

	logger := cli.SetupLogger(applog.ComponentAggregator, os.Getenv("LOG_LEVEL"))
	logger.Info("Starting aggregator", "source", *source, "dry_run", *dryRun)

	cfg := cli.LoadAndValidateConfig(logger)
	if *csvPath == "" {
		*csvPath = cfg.CSVPath
	}
	if *xlsxPath == "" {
		*xlsxPath = cfg.ExportXLSXPath
	}
	if *spreadsheet == "" {
		*spreadsheet = cfg.GoogleSpreadsheetID
	}
	if *source != services.SourceCSV && *source != services.SourceStore {
		logger.Error("Invalid source, must be csv or store", "source", *source)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	deps := cli.AggregatorDeps{
		DryRun:    *dryRun,
		SinkFlags: cli.SinkOptions{XLSXPath: *xlsxPath, SpreadsheetID: *spreadsheet},
	}
	var store *storage.SalesRepository
	if *source == services.SourceStore {
		store = cli.OpenStore(ctx, logger, cfg)
		defer store.Close()
		deps.Store = store
	}
	if !*dryRun {
		if client := cli.ConnectAMQP(logger, cfg, false); client != nil {
			defer client.Close()
			deps.AMQP = client
		}
	}

	svc := cli.NewAggregateService(ctx, logger, cfg, deps)
	report, err := svc.Run(ctx, services.AggregateOptions{
		Source:      *source,
		CSVPath:     *csvPath,
		BundlePath:  cfg.BundlePath,
		TriggeredBy: "cli",
		DryRun:      *dryRun,
	})
	if err != nil {
		if store != nil {
			store.Close()
		}
		cli.ExitOnError(logger, "Aggregation failed", err, applog.FieldRunID, report.RunID)
	}

	logger.Info("Aggregator finished",
		applog.FieldRunID, report.RunID,
		applog.FieldRows, report.Rows,
		"tables", len(report.Tables),
		applog.FieldDuration, report.Duration.Milliseconds())
}
