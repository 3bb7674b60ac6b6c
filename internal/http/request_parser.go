// Package http provides HTTP server and handler implementations.
//
// This file implements utilities for parsing the dashboard filters and
// paging parameters from request query strings.

package http

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"carsales/internal/dashboard"
)

// Query parameter names shared by the page form and the JSON API.
const (
	paramYear     = "year"
	paramQuarter  = "quarter"
	paramFiltered = "filtered"
	paramOffset   = "offset"
	paramLimit    = "limit"
)

const (
	defaultPageLimit = 200
	maxPageLimit     = 5000
)

// ParseSelection extracts the year and quarter filters. Both accept repeated
// parameters and comma separated lists. Without filtered=1 a missing filter
// selects every value; with it, a missing filter selects none, which is how
// the page form submits an emptied multi-select.
func ParseSelection(query url.Values) (dashboard.Selection, error) {
	explicit := strings.TrimSpace(query.Get(paramFiltered)) == "1"
	sel := dashboard.Selection{}

	years := splitValues(query[paramYear])
	if len(years) > 0 || explicit {
		sel.Years = make([]int, 0, len(years))
		for _, v := range years {
			y, err := strconv.Atoi(v)
			if err != nil || y < 1 {
				return dashboard.Selection{}, fmt.Errorf("invalid year %q", v)
			}
			sel.Years = append(sel.Years, y)
		}
	}

	quarters := splitValues(query[paramQuarter])
	if len(quarters) > 0 || explicit {
		sel.Quarters = make([]string, 0, len(quarters))
		for _, v := range quarters {
			q := strings.ToUpper(v)
			if !validQuarterPeriod(q) {
				return dashboard.Selection{}, fmt.Errorf("invalid quarter %q: want YYYYQn", v)
			}
			sel.Quarters = append(sel.Quarters, q)
		}
	}

	return sel.Normalize(), nil
}

// splitValues flattens repeated and comma separated values, dropping blanks.
func splitValues(raw []string) []string {
	var out []string
	for _, v := range raw {
		for _, part := range strings.Split(v, ",") {
			if p := strings.TrimSpace(part); p != "" {
				out = append(out, p)
			}
		}
	}
	return out
}

// validQuarterPeriod accepts labels such as 2022Q3.
func validQuarterPeriod(s string) bool {
	if len(s) != 6 || s[4] != 'Q' || s[5] < '1' || s[5] > '4' {
		return false
	}
	_, err := strconv.Atoi(s[:4])
	return err == nil
}

// PageParams is a window over table rows.
type PageParams struct {
	Offset int
	Limit  int
}

// ParsePageParams reads offset and limit, clamping them to sane bounds.
// Invalid values fall back to the defaults.
func ParsePageParams(query url.Values) PageParams {
	p := PageParams{Limit: defaultPageLimit}
	if v := strings.TrimSpace(query.Get(paramOffset)); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			p.Offset = n
		}
	}
	if v := strings.TrimSpace(query.Get(paramLimit)); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			p.Limit = min(n, maxPageLimit)
		}
	}
	return p
}

// Window returns the [start, end) bounds of the page over total rows.
func (p PageParams) Window(total int) (start, end int) {
	start = min(p.Offset, total)
	end = min(start+p.Limit, total)
	return start, end
}
