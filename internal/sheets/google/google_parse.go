package google

import (
	"fmt"
	"math"
	"strings"

	"carsales/internal/aggregate"
)

// tableValues converts a table to the values matrix the Sheets API takes,
// header row first. Undefined cells become empty strings.
func tableValues(t aggregate.Table) [][]any {
	values := make([][]any, 0, len(t.Rows)+1)
	header := make([]any, len(t.Columns))
	for i, c := range t.Columns {
		header[i] = c
	}
	values = append(values, header)
	for _, row := range t.Rows {
		out := make([]any, len(row))
		for i, cell := range row {
			switch v := cell.(type) {
			case nil:
				out[i] = ""
			case float64:
				if math.IsNaN(v) || math.IsInf(v, 0) {
					out[i] = ""
				} else {
					out[i] = v
				}
			default:
				out[i] = v
			}
		}
		values = append(values, out)
	}
	return values
}

// parseValues converts a values matrix back into a table. The first row
// is the header; trailing empty cells the API drops are restored as nil.
func parseValues(name string, values [][]any) (aggregate.Table, error) {
	if len(values) == 0 {
		return aggregate.Table{}, fmt.Errorf("sheet %s is empty", name)
	}
	t := aggregate.NewTable(name, toStrings(values[0])...)
	for _, raw := range values[1:] {
		cols := toStrings(raw)
		row := make([]any, len(t.Columns))
		for i := range row {
			if i < len(cols) {
				row[i] = aggregate.ParseCell(cols[i])
			}
		}
		t.Append(row...)
	}
	return *t, nil
}

func toStrings(in []any) []string {
	out := make([]string, len(in))
	for i, v := range in {
		out[i] = strings.TrimSpace(fmt.Sprint(v))
	}
	return out
}
