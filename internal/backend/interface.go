package backend

import (
	"context"
	"time"

	"carsales/internal/aggregate"
	"carsales/internal/core"
)

// Dataset is one loaded copy of the sales data with its aggregate tables.
type Dataset struct {
	Sales    []core.Sale
	Tables   aggregate.Tables
	Origin   string
	LoadedAt time.Time
}

// Source produces a fresh Dataset on every Load.
type Source interface {
	Load(ctx context.Context) (*Dataset, error)
	Name() string
}

// Factory creates sources based on configuration
type Factory interface {
	CreateSource(config Config) (Source, error)
}

// Config holds configuration for source creation
type Config struct {
	Type       BackendType
	CSVPath    string
	BundlePath string
}

// BackendType represents the type of data source
type BackendType string

const (
	CSVBackend    BackendType = "csv"
	BundleBackend BackendType = "bundle"
)

// String implements fmt.Stringer
func (bt BackendType) String() string {
	return string(bt)
}

// IsValid returns true if the backend type is valid
func (bt BackendType) IsValid() bool {
	switch bt {
	case CSVBackend, BundleBackend:
		return true
	default:
		return false
	}
}
