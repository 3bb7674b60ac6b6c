// Package dashboard filters the sales dataset by year and quarter and
// derives the KPIs and chart series shown on the dashboard.
package dashboard

import (
	"slices"
	"strconv"
	"strings"

	"carsales/internal/core"
)

// Selection restricts the dataset to some years and quarter periods. A nil
// slice selects every value; an empty non-nil slice selects none.
type Selection struct {
	Years    []int
	Quarters []string
}

// All selects the whole dataset.
func All() Selection {
	return Selection{}
}

// Normalize sorts and deduplicates the selected values.
func (s Selection) Normalize() Selection {
	out := Selection{}
	if s.Years != nil {
		out.Years = slices.Clone(s.Years)
		slices.Sort(out.Years)
		out.Years = slices.Compact(out.Years)
	}
	if s.Quarters != nil {
		out.Quarters = slices.Clone(s.Quarters)
		slices.Sort(out.Quarters)
		out.Quarters = slices.Compact(out.Quarters)
	}
	return out
}

// Key identifies the selection for caching. Equivalent selections share a key.
func (s Selection) Key() string {
	n := s.Normalize()
	var b strings.Builder
	b.WriteString("y=")
	if n.Years == nil {
		b.WriteString("*")
	} else {
		for i, y := range n.Years {
			if i > 0 {
				b.WriteByte(',')
			}
			b.WriteString(strconv.Itoa(y))
		}
	}
	b.WriteString(";q=")
	if n.Quarters == nil {
		b.WriteString("*")
	} else {
		b.WriteString(strings.Join(n.Quarters, ","))
	}
	return b.String()
}

// Match reports whether sale falls inside the selection.
func (s Selection) Match(sale core.Sale) bool {
	if s.Years != nil && !slices.Contains(s.Years, sale.Date.Year()) {
		return false
	}
	if s.Quarters != nil && !slices.Contains(s.Quarters, sale.Date.QuarterPeriod()) {
		return false
	}
	return true
}

// Filter returns the sales inside the selection, keeping input order.
func Filter(sales []core.Sale, sel Selection) []core.Sale {
	if sel.Years == nil && sel.Quarters == nil {
		return sales
	}
	out := make([]core.Sale, 0, len(sales))
	for _, s := range sales {
		if sel.Match(s) {
			out = append(out, s)
		}
	}
	return out
}

// Options lists the filter values present in a dataset, ascending.
type Options struct {
	Years    []int    `json:"years"`
	Quarters []string `json:"quarters"`
}

// OptionsOf collects the distinct years and quarter periods of sales.
func OptionsOf(sales []core.Sale) Options {
	years := make(map[int]struct{})
	quarters := make(map[string]struct{})
	for _, s := range sales {
		years[s.Date.Year()] = struct{}{}
		quarters[s.Date.QuarterPeriod()] = struct{}{}
	}
	opts := Options{Years: make([]int, 0, len(years)), Quarters: make([]string, 0, len(quarters))}
	for y := range years {
		opts.Years = append(opts.Years, y)
	}
	for q := range quarters {
		opts.Quarters = append(opts.Quarters, q)
	}
	slices.Sort(opts.Years)
	slices.Sort(opts.Quarters)
	return opts
}
