package services

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"time"

	"carsales/internal/amqp"
	"carsales/internal/core"
	"carsales/internal/dataset"
	applog "carsales/internal/log"
	"carsales/internal/storage"
)

// DefaultBatchSize is the number of rows committed per transaction.
const DefaultBatchSize = 1000

// SalesStore is the relational store the loader writes to.
type SalesStore interface {
	Truncate(ctx context.Context) error
	InsertBatch(ctx context.Context, sales []core.Sale) error
	ExecScriptFile(ctx context.Context, path string) (storage.ScriptResult, error)
	Verify(ctx context.Context) (storage.Verification, error)
}

// LoadedPublisher announces finished loads.
type LoadedPublisher interface {
	PublishDatasetLoaded(ctx context.Context, msg *amqp.DatasetLoadedMessage) error
}

// LoadOptions configures one loader run.
type LoadOptions struct {
	CSVPath    string
	Driver     string
	BatchSize  int
	Truncate   bool
	ScriptPath string
}

// LoadReport describes a finished load.
type LoadReport struct {
	RunID        string
	Rows         int
	Batches      int
	Script       *storage.ScriptResult
	Verification *storage.Verification
	Duration     time.Duration
}

// LoadService moves the CSV dataset into the relational store.
type LoadService struct {
	store     SalesStore
	publisher LoadedPublisher
	logger    *applog.Logger
}

// NewLoadService wires a loader. publisher may be nil.
func NewLoadService(store SalesStore, publisher LoadedPublisher, logger *applog.Logger) *LoadService {
	return &LoadService{
		store:     store,
		publisher: publisher,
		logger:    logger.WithComponent(applog.ComponentLoader),
	}
}

// Run reads the CSV, inserts it batch by batch and runs the optional
// script and verification. Only read and insert failures are returned;
// batches committed before a failure stay in the store.
func (s *LoadService) Run(ctx context.Context, opts LoadOptions) (LoadReport, error) {
	start := time.Now()
	report := LoadReport{RunID: amqp.NewRunID()}
	logger := s.logger.With(applog.FieldRunID, report.RunID)

	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}

	sales, err := dataset.ReadFile(opts.CSVPath)
	if err != nil {
		return report, fmt.Errorf("read dataset: %w", err)
	}
	logger.InfoContext(ctx, "Dataset read",
		applog.FieldOperation, applog.OpRead,
		applog.FieldPath, opts.CSVPath,
		applog.FieldRows, len(sales))

	if opts.Truncate {
		if err := s.store.Truncate(ctx); err != nil {
			return report, err
		}
		logger.InfoContext(ctx, "Existing sales removed")
	}

	total := len(sales)
	for lo := 0; lo < total; lo += opts.BatchSize {
		hi := min(lo+opts.BatchSize, total)
		if err := s.store.InsertBatch(ctx, sales[lo:hi]); err != nil {
			logger.ErrorContext(ctx, "Batch insert failed",
				append(applog.NewFields().
					WithOperation(applog.OpInsert).
					WithError(err).
					WithProgress(lo, total).
					ToSlice(), "batch", report.Batches+1)...)
			return report, err
		}
		report.Batches++
		report.Rows = hi
		logger.InfoContext(ctx, "Batch committed",
			applog.NewFields().WithOperation(applog.OpInsert).WithProgress(hi, total).ToSlice()...)
	}

	if opts.ScriptPath != "" {
		s.runScript(ctx, logger, opts.ScriptPath, &report)
	}

	if v, err := s.store.Verify(ctx); err != nil {
		logger.WarnContext(ctx, "Verification failed", applog.FieldOperation, applog.OpVerify, applog.FieldError, err)
	} else {
		report.Verification = &v
		logVerification(ctx, logger, v)
	}

	report.Duration = time.Since(start)
	logger.InfoContext(ctx, "Load finished",
		applog.FieldRows, report.Rows,
		"batches", report.Batches,
		applog.FieldDuration, report.Duration.Milliseconds())

	s.publish(ctx, logger, amqp.NewDatasetLoadedMessage(report.RunID, opts.CSVPath, opts.Driver, report.Rows))
	return report, nil
}

func (s *LoadService) runScript(ctx context.Context, logger *applog.Logger, path string, report *LoadReport) {
	res, err := s.store.ExecScriptFile(ctx, path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		logger.InfoContext(ctx, "Supplementary script not found, skipped", applog.FieldPath, path)
		return
	case err != nil:
		logger.WarnContext(ctx, "Supplementary script unreadable, skipped",
			applog.FieldOperation, applog.OpScript, applog.FieldPath, path, applog.FieldError, err)
		return
	}
	report.Script = &res
	logger.InfoContext(ctx, "Supplementary script executed",
		applog.FieldOperation, applog.OpScript,
		applog.FieldPath, path,
		"executed", res.Executed,
		"failed", len(res.Failed))
}

func logVerification(ctx context.Context, logger *applog.Logger, v storage.Verification) {
	logger.InfoContext(ctx, "Load verified",
		applog.FieldOperation, applog.OpVerify,
		"total_rows", v.TotalRows,
		"distinct_cars", v.DistinctCars,
		"distinct_customers", v.DistinctCustomers,
		"distinct_dealers", v.DistinctDealers,
		"distinct_brands", v.DistinctBrands,
		"distinct_models", v.DistinctModels,
		"first_sale", v.FirstSale,
		"last_sale", v.LastSale,
		"total_revenue", v.TotalRevenue,
		"average_price", v.AveragePrice)
	for i, m := range v.TopModels {
		logger.InfoContext(ctx, "Top model", "position", i+1, "company", m.Company, "model", m.Model, "count", m.Count)
	}
}

func (s *LoadService) publish(ctx context.Context, logger *applog.Logger, msg *amqp.DatasetLoadedMessage) {
	if s.publisher == nil {
		logger.DebugContext(ctx, "AMQP client not available, skipping dataset.loaded")
		return
	}
	if err := s.publisher.PublishDatasetLoaded(ctx, msg); err != nil {
		logger.ErrorContext(ctx, "Failed to publish dataset.loaded", applog.FieldError, err)
	}
}
