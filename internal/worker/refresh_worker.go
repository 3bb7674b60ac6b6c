package worker

import (
	"context"
	"fmt"
	"sync"

	"carsales/internal/amqp"
	applog "carsales/internal/log"
	"carsales/internal/services"
)

// Aggregator reruns the aggregation.
type Aggregator interface {
	Run(ctx context.Context, opts services.AggregateOptions) (services.AggregateReport, error)
}

// RefreshWorker rebuilds the aggregate bundle whenever a new dataset load
// is announced. Runs never overlap.
type RefreshWorker struct {
	aggregator Aggregator
	options    services.AggregateOptions
	logger     *applog.Logger

	mu      sync.Mutex
	lastRun string
}

// NewRefreshWorker creates a worker that runs aggregator with options,
// adding the triggering run id to each run.
func NewRefreshWorker(aggregator Aggregator, options services.AggregateOptions, logger *applog.Logger) *RefreshWorker {
	return &RefreshWorker{
		aggregator: aggregator,
		options:    options,
		logger:     logger.WithComponent(applog.ComponentWorker),
	}
}

// HandleDatasetLoaded processes a single dataset.loaded message from AMQP
func (w *RefreshWorker) HandleDatasetLoaded(ctx context.Context, msg *amqp.DatasetLoadedMessage) error {
	w.logger.InfoContext(ctx, "Processing dataset.loaded",
		applog.FieldRunID, msg.RunID,
		applog.FieldRows, msg.Rows,
		"source", msg.Source)
	return w.refresh(ctx, msg.RunID)
}

// StartupRefresh runs one aggregation before any message is consumed.
func (w *RefreshWorker) StartupRefresh(ctx context.Context) error {
	w.logger.InfoContext(ctx, "Performing startup refresh", applog.FieldOperation, applog.OpStartup)
	return w.refresh(ctx, "startup")
}

// LastRun returns the run id of the latest successful aggregation.
func (w *RefreshWorker) LastRun() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lastRun
}

func (w *RefreshWorker) refresh(ctx context.Context, trigger string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	opts := w.options
	opts.TriggeredBy = trigger
	report, err := w.aggregator.Run(ctx, opts)
	if err != nil {
		return fmt.Errorf("refresh aggregates: %w", err)
	}
	w.lastRun = report.RunID
	w.logger.InfoContext(ctx, "Aggregates refreshed",
		applog.FieldRunID, report.RunID,
		"triggered_by", trigger,
		applog.FieldRows, report.Rows,
		applog.FieldDuration, report.Duration.Milliseconds())
	return nil
}
