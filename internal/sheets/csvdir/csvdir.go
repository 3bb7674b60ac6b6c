// Package csvdir writes each aggregate table to its own CSV file.
package csvdir

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/sync/errgroup"

	"carsales/internal/aggregate"
	"carsales/internal/bundle"
	ports "carsales/internal/sheets"
)

const maxParallelWrites = 4

// Writer stores tables as <dir>/<name>.csv.
type Writer struct {
	dir string
	bom bool
}

var _ ports.TableStore = (*Writer)(nil)

// New returns a writer for dir. With bom set, files start with a UTF-8 byte
// order mark so spreadsheet tools pick the right encoding.
func New(dir string, bom bool) *Writer {
	return &Writer{dir: dir, bom: bom}
}

// Path returns the file a table is written to.
func (w *Writer) Path(name string) string {
	return filepath.Join(w.dir, name+".csv")
}

// WriteTables writes all tables concurrently. Each file is replaced
// atomically, so a failure leaves the other tables intact.
func (w *Writer) WriteTables(ctx context.Context, tables aggregate.Tables) error {
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return fmt.Errorf("create export directory: %w", err)
	}
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(maxParallelWrites)
	for _, t := range tables {
		t := t
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			return w.writeTable(t)
		})
	}
	return g.Wait()
}

func (w *Writer) writeTable(t aggregate.Table) error {
	var buf bytes.Buffer
	if w.bom {
		buf.WriteString("\ufeff")
	}
	cw := csv.NewWriter(&buf)
	if err := cw.Write(t.Columns); err != nil {
		return fmt.Errorf("write %s header: %w", t.Name, err)
	}
	record := make([]string, len(t.Columns))
	for _, row := range t.Rows {
		for i, cell := range row {
			record[i] = aggregate.FormatCell(cell)
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("write %s row: %w", t.Name, err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flush %s: %w", t.Name, err)
	}
	return bundle.WriteAtomic(w.Path(t.Name), buf.Bytes())
}

// ReadTable loads <dir>/<name>.csv back into a table.
func (w *Writer) ReadTable(_ context.Context, name string) (aggregate.Table, error) {
	data, err := os.ReadFile(w.Path(name))
	if err != nil {
		return aggregate.Table{}, fmt.Errorf("read %s: %w", name, err)
	}
	data = bytes.TrimPrefix(data, []byte("\ufeff"))
	records, err := csv.NewReader(bytes.NewReader(data)).ReadAll()
	if err != nil {
		return aggregate.Table{}, fmt.Errorf("parse %s: %w", name, err)
	}
	if len(records) == 0 {
		return aggregate.Table{}, fmt.Errorf("parse %s: empty file", name)
	}
	t := aggregate.NewTable(name, records[0]...)
	for _, rec := range records[1:] {
		row := make([]any, len(rec))
		for i, v := range rec {
			row[i] = aggregate.ParseCell(v)
		}
		t.Append(row...)
	}
	return *t, nil
}
