package backend

import (
	"context"
	"fmt"
	"time"

	"carsales/internal/aggregate"
	"carsales/internal/bundle"
	"carsales/internal/dataset"
	applog "carsales/internal/log"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *applog.Logger
}

// NewFactory creates a new source factory
func NewFactory(logger *applog.Logger) Factory {
	return &DefaultFactory{logger: logger.WithComponent(applog.ComponentBackend)}
}

// CreateSource implements Factory.CreateSource
func (f *DefaultFactory) CreateSource(config Config) (Source, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	switch config.Type {
	case CSVBackend:
		f.logger.Info("Using CSV data source", applog.FieldPath, config.CSVPath)
		return &CSVSource{Path: config.CSVPath}, nil
	case BundleBackend:
		f.logger.Info("Using bundle data source", applog.FieldPath, config.BundlePath)
		return &BundleSource{Path: config.BundlePath}, nil
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
}

// CSVSource reads the raw CSV and computes the tables itself.
type CSVSource struct {
	Path string
}

func (s *CSVSource) Name() string { return string(CSVBackend) }

// Load implements Source.
func (s *CSVSource) Load(ctx context.Context) (*Dataset, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	sales, err := dataset.ReadFile(s.Path)
	if err != nil {
		return nil, err
	}
	return &Dataset{
		Sales:    sales,
		Tables:   aggregate.Compute(sales),
		Origin:   s.Path,
		LoadedAt: time.Now(),
	}, nil
}

// BundleSource serves the precomputed tables of an aggregate bundle and
// recovers the sales from its raw table.
type BundleSource struct {
	Path string
}

func (s *BundleSource) Name() string { return string(BundleBackend) }

// Load implements Source.
func (s *BundleSource) Load(ctx context.Context) (*Dataset, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b, err := bundle.ReadFile(s.Path)
	if err != nil {
		return nil, err
	}
	raw, ok := b.Tables.Get(aggregate.TableSales)
	if !ok {
		return nil, fmt.Errorf("bundle %s has no %s table", s.Path, aggregate.TableSales)
	}
	sales, err := aggregate.SalesFromTable(raw)
	if err != nil {
		return nil, fmt.Errorf("bundle %s: %w", s.Path, err)
	}
	return &Dataset{
		Sales:    sales,
		Tables:   b.Tables,
		Origin:   s.Path,
		LoadedAt: b.GeneratedAt,
	}, nil
}
