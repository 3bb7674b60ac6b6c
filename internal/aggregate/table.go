// Package aggregate derives the summary tables of the sales dataset.
package aggregate

import (
	"math"
	"strconv"
)

// Table is a named, column-ordered result set. Cells hold string, int,
// int64, float64 or nil for an undefined value.
type Table struct {
	Name    string   `json:"name"`
	Columns []string `json:"columns"`
	Rows    [][]any  `json:"rows"`
}

// NewTable creates an empty table with the given columns.
func NewTable(name string, columns ...string) *Table {
	return &Table{Name: name, Columns: columns, Rows: [][]any{}}
}

// Append adds one row. The number of cells must match the columns.
func (t *Table) Append(cells ...any) {
	if len(cells) != len(t.Columns) {
		panic("aggregate: row width does not match columns of " + t.Name)
	}
	t.Rows = append(t.Rows, cells)
}

// Shape returns the number of rows and columns.
func (t Table) Shape() (rows, cols int) {
	return len(t.Rows), len(t.Columns)
}

// ColumnIndex returns the position of the named column, or -1.
func (t Table) ColumnIndex(name string) int {
	for i, c := range t.Columns {
		if c == name {
			return i
		}
	}
	return -1
}

// Tables is an ordered collection of tables.
type Tables []Table

// Get returns the table with the given name.
func (ts Tables) Get(name string) (Table, bool) {
	for _, t := range ts {
		if t.Name == name {
			return t, true
		}
	}
	return Table{}, false
}

// Names returns the table names in order.
func (ts Tables) Names() []string {
	names := make([]string, len(ts))
	for i, t := range ts {
		names[i] = t.Name
	}
	return names
}

// Flat returns every table except the raw sales dataset, which is only
// carried by the bundle.
func (ts Tables) Flat() Tables {
	out := make(Tables, 0, len(ts))
	for _, t := range ts {
		if t.Name != TableSales {
			out = append(out, t)
		}
	}
	return out
}

// FormatCell renders a cell for flat-file output. Nil and non-finite
// numbers render as an empty string.
func FormatCell(v any) string {
	switch c := v.(type) {
	case nil:
		return ""
	case string:
		return c
	case int:
		return strconv.Itoa(c)
	case int64:
		return strconv.FormatInt(c, 10)
	case float64:
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return ""
		}
		return strconv.FormatFloat(c, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(c)
	default:
		return ""
	}
}

// ParseCell converts a flat-file value back to a cell: integers and floats
// become numbers, empty strings become nil, everything else stays text.
func ParseCell(s string) any {
	if s == "" {
		return nil
	}
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	return s
}
