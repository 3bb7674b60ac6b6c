package http

import (
	"net/url"
	"reflect"
	"testing"
)

func TestParseSelection(t *testing.T) {
	tests := []struct {
		name         string
		query        url.Values
		wantYears    []int
		wantQuarters []string
		wantErr      bool
	}{
		{
			name:  "empty query selects everything",
			query: url.Values{},
		},
		{
			name:      "repeated years are sorted and deduplicated",
			query:     url.Values{"year": {"2023", "2022", "2023"}},
			wantYears: []int{2022, 2023},
		},
		{
			name:         "comma separated quarters are upper-cased",
			query:        url.Values{"quarter": {"2023q1, 2022Q4"}},
			wantQuarters: []string{"2022Q4", "2023Q1"},
		},
		{
			name:         "filtered flag turns missing filters into empty ones",
			query:        url.Values{"filtered": {"1"}, "year": {"2022"}},
			wantYears:    []int{2022},
			wantQuarters: []string{},
		},
		{
			name:         "filtered flag alone selects nothing",
			query:        url.Values{"filtered": {"1"}},
			wantYears:    []int{},
			wantQuarters: []string{},
		},
		{
			name:    "non numeric year",
			query:   url.Values{"year": {"twenty"}},
			wantErr: true,
		},
		{
			name:    "negative year",
			query:   url.Values{"year": {"-1"}},
			wantErr: true,
		},
		{
			name:    "malformed quarter",
			query:   url.Values{"quarter": {"2022-1"}},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sel, err := ParseSelection(tt.query)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %+v", sel)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !reflect.DeepEqual(sel.Years, tt.wantYears) {
				t.Errorf("Years = %#v, want %#v", sel.Years, tt.wantYears)
			}
			if !reflect.DeepEqual(sel.Quarters, tt.wantQuarters) {
				t.Errorf("Quarters = %#v, want %#v", sel.Quarters, tt.wantQuarters)
			}
		})
	}
}

func TestParsePageParams(t *testing.T) {
	tests := []struct {
		name       string
		query      url.Values
		total      int
		wantOffset int
		wantLimit  int
		wantStart  int
		wantEnd    int
	}{
		{name: "defaults", query: url.Values{}, total: 1000, wantLimit: defaultPageLimit, wantStart: 0, wantEnd: defaultPageLimit},
		{name: "explicit window", query: url.Values{"offset": {"10"}, "limit": {"5"}}, total: 100, wantOffset: 10, wantLimit: 5, wantStart: 10, wantEnd: 15},
		{name: "limit is capped", query: url.Values{"limit": {"999999"}}, total: 10, wantLimit: maxPageLimit, wantStart: 0, wantEnd: 10},
		{name: "offset past the end", query: url.Values{"offset": {"50"}}, total: 20, wantOffset: 50, wantLimit: defaultPageLimit, wantStart: 20, wantEnd: 20},
		{name: "invalid values are ignored", query: url.Values{"offset": {"-3"}, "limit": {"x"}}, total: 3, wantLimit: defaultPageLimit, wantStart: 0, wantEnd: 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := ParsePageParams(tt.query)
			if p.Offset != tt.wantOffset || p.Limit != tt.wantLimit {
				t.Fatalf("params = %+v, want offset %d limit %d", p, tt.wantOffset, tt.wantLimit)
			}
			start, end := p.Window(tt.total)
			if start != tt.wantStart || end != tt.wantEnd {
				t.Errorf("Window(%d) = [%d,%d), want [%d,%d)", tt.total, start, end, tt.wantStart, tt.wantEnd)
			}
		})
	}
}
