package sheets

import (
	"context"

	"carsales/internal/aggregate"
)

// Ports for table sinks. Every implementation stores one sheet per table:
// a CSV file, a workbook tab or a spreadsheet tab.
type (
	TableWriter interface {
		// WriteTables replaces the stored contents of each given table.
		WriteTables(ctx context.Context, tables aggregate.Tables) error
	}

	TableReader interface {
		// ReadTable returns a table previously written under name.
		ReadTable(ctx context.Context, name string) (aggregate.Table, error)
	}

	TableStore interface {
		TableWriter
		TableReader
	}
)
