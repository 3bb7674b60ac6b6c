package aggregate

import (
	"math"
	"sort"
	"strings"

	"gonum.org/v1/gonum/stat"

	"carsales/internal/core"
)

// Group is one bucket of a group-by, identified by its key parts.
type Group struct {
	Key   []string
	Sales []core.Sale
}

// GroupBy partitions sales by key. Groups come back sorted ascending by
// key parts; sales keep their input order within a group.
func GroupBy(sales []core.Sale, key func(core.Sale) []string) []Group {
	index := make(map[string]int)
	var groups []Group
	for _, s := range sales {
		parts := key(s)
		k := strings.Join(parts, "\x1f")
		i, ok := index[k]
		if !ok {
			i = len(groups)
			index[k] = i
			groups = append(groups, Group{Key: parts})
		}
		groups[i].Sales = append(groups[i].Sales, s)
	}
	sort.SliceStable(groups, func(a, b int) bool {
		return lessKey(groups[a].Key, groups[b].Key)
	})
	return groups
}

func lessKey(a, b []string) bool {
	for i := 0; i < len(a) && i < len(b); i++ {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return len(a) < len(b)
}

// Field extracts a numeric value from a sale.
type Field func(core.Sale) float64

var (
	Price        Field = func(s core.Sale) float64 { return s.Price }
	AnnualIncome Field = func(s core.Sale) float64 { return s.AnnualIncome }
)

// Values collects a field over sales.
func Values(sales []core.Sale, f Field) []float64 {
	out := make([]float64, len(sales))
	for i, s := range sales {
		out[i] = f(s)
	}
	return out
}

// Sum adds a field over sales.
func Sum(sales []core.Sale, f Field) float64 {
	var total float64
	for _, s := range sales {
		total += f(s)
	}
	return total
}

// Mean averages a field over sales; zero for an empty slice.
func Mean(sales []core.Sale, f Field) float64 {
	if len(sales) == 0 {
		return 0
	}
	return stat.Mean(Values(sales, f), nil)
}

// MeanEffort averages the financial effort of sales where it is defined.
func MeanEffort(sales []core.Sale) (float64, bool) {
	var xs []float64
	for _, s := range sales {
		if e, ok := s.FinancialEffort(); ok {
			xs = append(xs, e)
		}
	}
	if len(xs) == 0 {
		return 0, false
	}
	return stat.Mean(xs, nil), true
}

// PercentOf returns part as a percentage of total; zero when total is zero.
func PercentOf(part, total float64) float64 {
	if total == 0 {
		return 0
	}
	return part / total * 100
}

// Growth returns the percentage change of each value over the previous one.
// The first value and any change from zero or a non-finite value are 0.
func Growth(values []float64) []float64 {
	out := make([]float64, len(values))
	for i := 1; i < len(values); i++ {
		prev := values[i-1]
		if prev == 0 {
			continue
		}
		g := (values[i] - prev) / prev * 100
		if math.IsNaN(g) || math.IsInf(g, 0) {
			continue
		}
		out[i] = g
	}
	return out
}

// RowRank returns ranks 1..n for rows that are already sorted.
func RowRank(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i + 1
	}
	return out
}

// Correlation returns the Pearson correlation of x and y. The second value
// is false when it is undefined (fewer than two points or zero variance).
func Correlation(x, y []float64) (float64, bool) {
	if len(x) < 2 || len(x) != len(y) {
		return 0, false
	}
	c := stat.Correlation(x, y, nil)
	if math.IsNaN(c) || math.IsInf(c, 0) {
		return 0, false
	}
	return c, true
}
