package cli

import (
	"context"
	"os"

	"carsales/internal/amqp"
	"carsales/internal/config"
	applog "carsales/internal/log"
	"carsales/internal/services"
	"carsales/internal/sheets/csvdir"
	gsheet "carsales/internal/sheets/google"
	"carsales/internal/sheets/memory"
	"carsales/internal/sheets/xlsx"
	"carsales/internal/storage"
)

// SinkOptions selects the optional table destinations of an aggregation.
type SinkOptions struct {
	XLSXPath      string
	SpreadsheetID string
}

// BuildSinks returns the CSV directory sink plus every optional sink that
// is configured. A Google Sheets client that cannot be created is skipped.
func BuildSinks(ctx context.Context, logger *applog.Logger, cfg *config.Config, opts SinkOptions) []services.Sink {
	sinks := []services.Sink{{Name: "csvdir", Writer: csvdir.New(cfg.ExportDir, cfg.ExportBOM), Required: true}}
	logger.Info("Flat file export enabled", applog.FieldPath, cfg.ExportDir, "bom", cfg.ExportBOM)

	if opts.XLSXPath != "" {
		sinks = append(sinks, services.Sink{Name: "xlsx", Writer: xlsx.New(opts.XLSXPath)})
		logger.Info("Workbook export enabled", applog.FieldPath, opts.XLSXPath)
	}

	if opts.SpreadsheetID != "" {
		client, err := gsheet.NewFromEnv(ctx, opts.SpreadsheetID)
		if err != nil {
			logger.Warn("Google Sheets export disabled", applog.FieldError, err)
		} else {
			sinks = append(sinks, services.Sink{Name: "google", Writer: client})
			logger.Info("Google Sheets export enabled", "spreadsheet_id", opts.SpreadsheetID)
		}
	}
	return sinks
}

// AggregatorDeps are the optional collaborators of an aggregation service.
type AggregatorDeps struct {
	Store     *storage.SalesRepository
	AMQP      *amqp.Client
	Recorder  services.RunRecorder
	DryRun    bool
	SinkFlags SinkOptions
}

// NewAggregateService wires an aggregation service from cfg. Nil
// collaborators stay disabled.
func NewAggregateService(ctx context.Context, logger *applog.Logger, cfg *config.Config, deps AggregatorDeps) *services.AggregateService {
	svcCfg := services.AggregateServiceConfig{
		Recorder: deps.Recorder,
		Logger:   logger,
	}
	if deps.Store != nil {
		svcCfg.Store = deps.Store
	}
	if deps.AMQP != nil {
		svcCfg.Publisher = deps.AMQP
	}
	if deps.DryRun {
		svcCfg.DryRun = memory.New()
	} else {
		svcCfg.Sinks = BuildSinks(ctx, logger, cfg, deps.SinkFlags)
	}
	return services.NewAggregateService(svcCfg)
}

// ExitOnError logs err as fatal and exits with status 1.
func ExitOnError(logger *applog.Logger, msg string, err error, args ...any) {
	if err == nil {
		return
	}
	logger.Error(msg, append(args, applog.FieldError, err)...)
	os.Exit(1)
}
