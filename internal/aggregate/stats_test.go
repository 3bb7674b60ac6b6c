package aggregate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"carsales/internal/core"
)

func TestGrowth(t *testing.T) {
	cases := []struct {
		name string
		in   []float64
		want []float64
	}{
		{"empty", nil, []float64{}},
		{"single period", []float64{100}, []float64{0}},
		{"increase", []float64{100, 150}, []float64{0, 50}},
		{"decrease", []float64{200, 150, 300}, []float64{0, -25, 100}},
		{"from zero", []float64{0, 10, 20}, []float64{0, 0, 100}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.InDeltaSlice(t, tc.want, Growth(tc.in), 1e-9)
		})
	}
}

func TestRowRank(t *testing.T) {
	assert.Equal(t, []int{1, 2, 3}, RowRank(3))
	assert.Empty(t, RowRank(0))
}

func TestPercentOf(t *testing.T) {
	assert.InDelta(t, 30.0, PercentOf(300, 1000), 1e-9)
	assert.InDelta(t, 70.0, PercentOf(700, 1000), 1e-9)
	assert.Equal(t, 0.0, PercentOf(10, 0))
}

func TestMean(t *testing.T) {
	sales := []core.Sale{{Price: 10}, {Price: 20}, {Price: 60}}
	assert.InDelta(t, 30.0, Mean(sales, Price), 1e-9)
	assert.Equal(t, 0.0, Mean(nil, Price))
	assert.InDelta(t, 90.0, Sum(sales, Price), 1e-9)
}

func TestMeanEffort(t *testing.T) {
	sales := []core.Sale{
		{Price: 10, AnnualIncome: 100},
		{Price: 30, AnnualIncome: 100},
		{Price: 50, AnnualIncome: 0},
	}
	got, ok := MeanEffort(sales)
	require.True(t, ok)
	assert.InDelta(t, 0.2, got, 1e-9)

	_, ok = MeanEffort([]core.Sale{{Price: 1}})
	assert.False(t, ok)
}

func TestCorrelation(t *testing.T) {
	c, ok := Correlation([]float64{1, 2, 3}, []float64{2, 4, 6})
	require.True(t, ok)
	assert.InDelta(t, 1.0, c, 1e-9)

	c, ok = Correlation([]float64{1, 2, 3}, []float64{3, 2, 1})
	require.True(t, ok)
	assert.InDelta(t, -1.0, c, 1e-9)

	_, ok = Correlation([]float64{1, 1, 1}, []float64{1, 2, 3})
	assert.False(t, ok, "zero variance")
	_, ok = Correlation([]float64{1}, []float64{1})
	assert.False(t, ok, "single point")
}

func TestGroupBySortsKeys(t *testing.T) {
	sales := []core.Sale{
		{CarID: "1", Company: "Ford"},
		{CarID: "2", Company: "Audi"},
		{CarID: "3", Company: "Ford"},
	}
	groups := GroupBy(sales, func(s core.Sale) []string { return []string{s.Company} })
	require.Len(t, groups, 2)
	assert.Equal(t, []string{"Audi"}, groups[0].Key)
	assert.Equal(t, []string{"Ford"}, groups[1].Key)
	assert.Equal(t, "1", groups[1].Sales[0].CarID)
	assert.Equal(t, "3", groups[1].Sales[1].CarID)
}

func TestFormatAndParseCell(t *testing.T) {
	assert.Equal(t, "", FormatCell(nil))
	assert.Equal(t, "42", FormatCell(42))
	assert.Equal(t, "1.5", FormatCell(1.5))
	assert.Equal(t, "x", FormatCell("x"))

	assert.Nil(t, ParseCell(""))
	assert.Equal(t, int64(42), ParseCell("42"))
	assert.Equal(t, 1.5, ParseCell("1.5"))
	assert.Equal(t, "2022-01", ParseCell("2022-01"))
}
