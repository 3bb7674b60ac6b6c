// Package xlsx writes aggregate tables into one workbook, one sheet each.
package xlsx

import (
	"context"
	"fmt"

	"github.com/xuri/excelize/v2"

	"carsales/internal/aggregate"
	"carsales/internal/bundle"
	ports "carsales/internal/sheets"
)

const defaultSheet = "Sheet1"

// maxSheetName is the Excel limit on sheet title length.
const maxSheetName = 31

type Workbook struct {
	path string
}

var _ ports.TableStore = (*Workbook)(nil)

func New(path string) *Workbook {
	return &Workbook{path: path}
}

// SheetName returns the sheet title used for a table.
func SheetName(table string) string {
	if len(table) > maxSheetName {
		return table[:maxSheetName]
	}
	return table
}

// WriteTables replaces the workbook with one sheet per table.
func (w *Workbook) WriteTables(ctx context.Context, tables aggregate.Tables) error {
	f := excelize.NewFile()
	defer f.Close()

	header, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("create header style: %w", err)
	}

	for i, t := range tables {
		if err := ctx.Err(); err != nil {
			return err
		}
		sheet := SheetName(t.Name)
		idx, err := f.NewSheet(sheet)
		if err != nil {
			return fmt.Errorf("create sheet %s: %w", sheet, err)
		}
		if i == 0 {
			f.SetActiveSheet(idx)
		}
		cols := make([]any, len(t.Columns))
		for j, c := range t.Columns {
			cols[j] = c
		}
		if err := f.SetSheetRow(sheet, "A1", &cols); err != nil {
			return fmt.Errorf("write %s header: %w", sheet, err)
		}
		if err := f.SetRowStyle(sheet, 1, 1, header); err != nil {
			return fmt.Errorf("style %s header: %w", sheet, err)
		}
		for r, row := range t.Rows {
			cell, err := excelize.CoordinatesToCellName(1, r+2)
			if err != nil {
				return err
			}
			if err := f.SetSheetRow(sheet, cell, &row); err != nil {
				return fmt.Errorf("write %s row %d: %w", sheet, r+1, err)
			}
		}
	}
	if len(tables) > 0 {
		if err := f.DeleteSheet(defaultSheet); err != nil {
			return fmt.Errorf("remove default sheet: %w", err)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return fmt.Errorf("encode workbook: %w", err)
	}
	return bundle.WriteAtomic(w.path, buf.Bytes())
}

// ReadTable reads a sheet back. Cells come back as numbers where they
// parse as such, and short rows are padded to the header width.
func (w *Workbook) ReadTable(_ context.Context, name string) (aggregate.Table, error) {
	f, err := excelize.OpenFile(w.path)
	if err != nil {
		return aggregate.Table{}, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	rows, err := f.GetRows(SheetName(name))
	if err != nil {
		return aggregate.Table{}, fmt.Errorf("read sheet %s: %w", name, err)
	}
	if len(rows) == 0 {
		return aggregate.Table{}, fmt.Errorf("read sheet %s: empty", name)
	}
	t := aggregate.NewTable(name, rows[0]...)
	for _, rec := range rows[1:] {
		row := make([]any, len(t.Columns))
		for i := range row {
			if i < len(rec) {
				row[i] = aggregate.ParseCell(rec[i])
			}
		}
		t.Append(row...)
	}
	return *t, nil
}
