package backend

import (
	"context"
	"errors"
	"sync"
	"time"

	applog "carsales/internal/log"
)

// ErrNotLoaded is returned before the first successful load.
var ErrNotLoaded = errors.New("dataset not loaded")

// Holder keeps the current Dataset of a Source. Readers share it; a reload
// swaps it in one step, and a failed reload keeps the previous one.
type Holder struct {
	source Source
	logger *applog.Logger

	mu   sync.RWMutex
	data *Dataset

	reloadMu sync.Mutex
}

// NewHolder creates an empty holder for source.
func NewHolder(source Source, logger *applog.Logger) *Holder {
	return &Holder{source: source, logger: logger.WithComponent(applog.ComponentBackend)}
}

// Reload loads a fresh dataset from the source.
func (h *Holder) Reload(ctx context.Context) (*Dataset, error) {
	h.reloadMu.Lock()
	defer h.reloadMu.Unlock()

	start := time.Now()
	data, err := h.source.Load(ctx)
	if err != nil {
		h.logger.ErrorContext(ctx, "Dataset reload failed",
			applog.FieldOperation, applog.OpReload,
			"source", h.source.Name(),
			applog.FieldError, err)
		return nil, err
	}

	h.mu.Lock()
	h.data = data
	h.mu.Unlock()

	h.logger.InfoContext(ctx, "Dataset loaded",
		applog.FieldOperation, applog.OpReload,
		"source", h.source.Name(),
		applog.FieldPath, data.Origin,
		applog.FieldRows, len(data.Sales),
		"tables", len(data.Tables),
		applog.FieldDuration, time.Since(start).Milliseconds())
	return data, nil
}

// Current returns the loaded dataset. Callers must not modify it.
func (h *Holder) Current() (*Dataset, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.data == nil {
		return nil, ErrNotLoaded
	}
	return h.data, nil
}

// Ready reports whether a dataset has been loaded.
func (h *Holder) Ready() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.data != nil
}

// SourceName names the configured source.
func (h *Holder) SourceName() string {
	return h.source.Name()
}
