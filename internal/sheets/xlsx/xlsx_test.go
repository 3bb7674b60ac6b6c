package xlsx

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"carsales/internal/aggregate"
	"carsales/internal/core"
)

func TestWorkbookRoundTrip(t *testing.T) {
	sales := []core.Sale{
		{CarID: "1", Date: core.NewDate(2022, 1, 3), Company: "Ford", Model: "Focus", AnnualIncome: 40_000, Price: 100, DealerName: "A", DealerRegion: "Austin", Gender: "Male", Color: "Red"},
		{CarID: "2", Date: core.NewDate(2022, 5, 3), Company: "Audi", Model: "A4", AnnualIncome: 900_000, Price: 250, DealerName: "B", DealerRegion: "Aurora", Gender: "Female", Color: "Black"},
	}
	tables := aggregate.Compute(sales).Flat()
	w := New(filepath.Join(t.TempDir(), "report.xlsx"))

	require.NoError(t, w.WriteTables(context.Background(), tables))

	for _, want := range tables {
		got, err := w.ReadTable(context.Background(), want.Name)
		require.NoError(t, err, want.Name)
		assert.Equal(t, want.Columns, got.Columns, want.Name)
		assert.Len(t, got.Rows, len(want.Rows), want.Name)
	}

	colors, err := w.ReadTable(context.Background(), aggregate.TableColor)
	require.NoError(t, err)
	assert.ElementsMatch(t, []any{"Black", "Red"}, []any{colors.Rows[0][0], colors.Rows[1][0]})
}

func TestSheetNameTruncates(t *testing.T) {
	long := strings.Repeat("x", 40)
	assert.Len(t, SheetName(long), maxSheetName)
	assert.Equal(t, "gender", SheetName("gender"))
}

func TestReadTableMissingWorkbook(t *testing.T) {
	_, err := New(filepath.Join(t.TempDir(), "none.xlsx")).ReadTable(context.Background(), "gender")
	assert.Error(t, err)
}
