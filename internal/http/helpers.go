package http

import (
	"fmt"
	"html/template"
	"math"
	"slices"
	"time"

	"github.com/dustin/go-humanize"

	"carsales/internal/aggregate"
)

// templateFuncs are the formatting helpers available to every page.
func templateFuncs() template.FuncMap {
	return template.FuncMap{
		"count":       formatCount,
		"money":       formatMoney,
		"percent":     formatPercent,
		"cell":        aggregate.FormatCell,
		"ago":         formatAgo,
		"contains":    slices.Contains[[]string, string],
		"containsInt": slices.Contains[[]int, int],
	}
}

// formatCount renders an integer with thousands separators (e.g. "23,906").
func formatCount(n int) string {
	return humanize.Comma(int64(n))
}

// formatMoney renders a dollar amount with two decimals (e.g. "$671,525,465.00").
func formatMoney(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return "-"
	}
	if v < 0 {
		return "-$" + humanize.FormatFloat("#,###.##", -v)
	}
	return "$" + humanize.FormatFloat("#,###.##", v)
}

// formatPercent renders a growth figure with an explicit sign.
func formatPercent(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return "-"
	}
	return fmt.Sprintf("%+.2f%%", v)
}

// formatAgo renders how long ago t was (e.g. "3 minutes ago").
func formatAgo(t time.Time) string {
	if t.IsZero() {
		return "never"
	}
	return humanize.Time(t)
}
