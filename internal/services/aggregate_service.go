package services

import (
	"context"
	"fmt"
	"time"

	"carsales/internal/aggregate"
	"carsales/internal/amqp"
	"carsales/internal/bundle"
	"carsales/internal/core"
	"carsales/internal/dataset"
	applog "carsales/internal/log"
	"carsales/internal/sheets"
)

// Aggregation input sources.
const (
	SourceCSV   = "csv"
	SourceStore = "store"
)

// SalesLister reads the full dataset back from the relational store.
type SalesLister interface {
	ListSales(ctx context.Context) ([]core.Sale, error)
}

// RefreshedPublisher announces new aggregate bundles.
type RefreshedPublisher interface {
	PublishAggregatesRefreshed(ctx context.Context, msg *amqp.AggregatesRefreshedMessage) error
}

// RunRecorder counts aggregation outcomes.
type RunRecorder interface {
	RecordAggregation(outcome string)
}

// Sink is a named table destination. Required sinks abort the run on
// failure; optional ones only log.
type Sink struct {
	Name     string
	Writer   sheets.TableWriter
	Required bool
}

// AggregateOptions configures one aggregation run.
type AggregateOptions struct {
	Source      string
	CSVPath     string
	BundlePath  string
	TriggeredBy string
	DryRun      bool
}

// AggregateReport describes a finished aggregation run.
type AggregateReport struct {
	RunID    string
	Rows     int
	Tables   aggregate.Tables
	Duration time.Duration
}

// AggregateService turns the sales dataset into the aggregate tables and
// writes them to the bundle and every configured sink.
type AggregateService struct {
	store     SalesLister
	sinks     []Sink
	dryRun    sheets.TableWriter
	publisher RefreshedPublisher
	recorder  RunRecorder
	logger    *applog.Logger
}

// AggregateServiceConfig holds the collaborators of an AggregateService.
// Every field except Logger may be nil.
type AggregateServiceConfig struct {
	Store     SalesLister
	Sinks     []Sink
	DryRun    sheets.TableWriter
	Publisher RefreshedPublisher
	Recorder  RunRecorder
	Logger    *applog.Logger
}

// NewAggregateService wires an aggregator.
func NewAggregateService(cfg AggregateServiceConfig) *AggregateService {
	return &AggregateService{
		store:     cfg.Store,
		sinks:     cfg.Sinks,
		dryRun:    cfg.DryRun,
		publisher: cfg.Publisher,
		recorder:  cfg.Recorder,
		logger:    cfg.Logger.WithComponent(applog.ComponentAggregator),
	}
}

// Run computes every table and persists them. The bundle holds all tables;
// sinks receive the flat ones.
func (s *AggregateService) Run(ctx context.Context, opts AggregateOptions) (report AggregateReport, err error) {
	start := time.Now()
	report.RunID = amqp.NewRunID()
	logger := s.logger.With(applog.FieldRunID, report.RunID)
	if opts.TriggeredBy != "" {
		logger = logger.With("triggered_by", opts.TriggeredBy)
	}
	defer func() {
		if s.recorder == nil {
			return
		}
		if err != nil {
			s.recorder.RecordAggregation("failure")
		} else {
			s.recorder.RecordAggregation("success")
		}
	}()

	sales, err := s.readSales(ctx, opts)
	if err != nil {
		return report, err
	}
	report.Rows = len(sales)
	logger.InfoContext(ctx, "Dataset read",
		applog.FieldOperation, applog.OpRead,
		"source", sourceOf(opts),
		applog.FieldRows, report.Rows)

	report.Tables = aggregate.Compute(sales)
	for _, t := range report.Tables {
		rows, cols := t.Shape()
		logger.InfoContext(ctx, "Table computed",
			applog.FieldOperation, applog.OpCompute,
			applog.FieldTable, t.Name,
			applog.FieldRows, rows,
			"cols", cols,
			applog.FieldColumns, t.Columns)
	}

	if opts.DryRun {
		if s.dryRun != nil {
			if err := s.dryRun.WriteTables(ctx, report.Tables.Flat()); err != nil {
				return report, fmt.Errorf("dry run: %w", err)
			}
		}
		report.Duration = time.Since(start)
		logger.InfoContext(ctx, "Dry run finished, nothing written", "tables", len(report.Tables))
		return report, nil
	}

	if opts.BundlePath != "" {
		if err := bundle.New(report.Tables).WriteFile(opts.BundlePath); err != nil {
			return report, err
		}
		logger.InfoContext(ctx, "Bundle written", applog.FieldOperation, applog.OpExport, applog.FieldPath, opts.BundlePath)
	}

	if err := s.export(ctx, logger, report.Tables.Flat()); err != nil {
		return report, err
	}

	report.Duration = time.Since(start)
	logger.InfoContext(ctx, "Aggregation finished",
		"tables", len(report.Tables),
		applog.FieldRows, report.Rows,
		applog.FieldDuration, report.Duration.Milliseconds())

	s.publish(ctx, logger, amqp.NewAggregatesRefreshedMessage(
		report.RunID, opts.TriggeredBy, opts.BundlePath, len(report.Tables), report.Rows))
	return report, nil
}

func sourceOf(opts AggregateOptions) string {
	if opts.Source == "" {
		return SourceCSV
	}
	return opts.Source
}

func (s *AggregateService) readSales(ctx context.Context, opts AggregateOptions) ([]core.Sale, error) {
	switch sourceOf(opts) {
	case SourceCSV:
		sales, err := dataset.ReadFile(opts.CSVPath)
		if err != nil {
			return nil, fmt.Errorf("read dataset: %w", err)
		}
		return sales, nil
	case SourceStore:
		if s.store == nil {
			return nil, fmt.Errorf("aggregation source %q requires a sales store", SourceStore)
		}
		sales, err := s.store.ListSales(ctx)
		if err != nil {
			return nil, fmt.Errorf("read store: %w", err)
		}
		return sales, nil
	default:
		return nil, fmt.Errorf("unknown aggregation source %q", opts.Source)
	}
}

func (s *AggregateService) export(ctx context.Context, logger *applog.Logger, flat aggregate.Tables) error {
	for _, sink := range s.sinks {
		if err := sink.Writer.WriteTables(ctx, flat); err != nil {
			if sink.Required {
				return fmt.Errorf("export %s: %w", sink.Name, err)
			}
			logger.WarnContext(ctx, "Optional export failed",
				applog.FieldOperation, applog.OpExport, "sink", sink.Name, applog.FieldError, err)
			continue
		}
		logger.InfoContext(ctx, "Tables exported",
			applog.FieldOperation, applog.OpExport, "sink", sink.Name, "tables", len(flat))
	}
	return nil
}

func (s *AggregateService) publish(ctx context.Context, logger *applog.Logger, msg *amqp.AggregatesRefreshedMessage) {
	if s.publisher == nil {
		logger.DebugContext(ctx, "AMQP client not available, skipping aggregates.refreshed")
		return
	}
	if err := s.publisher.PublishAggregatesRefreshed(ctx, msg); err != nil {
		logger.ErrorContext(ctx, "Failed to publish aggregates.refreshed", applog.FieldError, err)
	}
}
