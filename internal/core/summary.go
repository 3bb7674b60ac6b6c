package core

// PeriodPoint is the sales volume of one month or quarter with its growth
// over the preceding period, in percent.
type PeriodPoint struct {
	Period  string  `json:"period"`
	Count   int     `json:"count"`
	Revenue float64 `json:"revenue"`
	Growth  float64 `json:"growth_pct"`
}

// Summary holds the dashboard KPIs for a filtered subset of sales.
type Summary struct {
	TotalSales          int           `json:"total_sales"`
	TotalRevenue        float64       `json:"total_revenue"`
	AverageTicket       float64       `json:"average_ticket"`
	LastMonthlyGrowth   float64       `json:"last_monthly_growth_pct"`
	LastQuarterlyGrowth float64       `json:"last_quarterly_growth_pct"`
	Monthly             []PeriodPoint `json:"monthly"`
	Quarterly           []PeriodPoint `json:"quarterly"`
}
