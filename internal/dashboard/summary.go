package dashboard

import (
	"carsales/internal/aggregate"
	"carsales/internal/core"
)

// Summarize computes the KPIs and period series of sales. Growth figures
// are month over month and quarter over quarter on transaction counts.
func Summarize(sales []core.Sale) core.Summary {
	sum := core.Summary{
		TotalSales:   len(sales),
		TotalRevenue: aggregate.Sum(sales, aggregate.Price),
		Monthly:      points(aggregate.ByPeriod(sales, core.Date.Period)),
		Quarterly:    points(aggregate.ByPeriod(sales, core.Date.QuarterPeriod)),
	}
	if sum.TotalSales > 0 {
		sum.AverageTicket = sum.TotalRevenue / float64(sum.TotalSales)
	}
	if n := len(sum.Monthly); n > 0 {
		sum.LastMonthlyGrowth = sum.Monthly[n-1].Growth
	}
	if n := len(sum.Quarterly); n > 0 {
		sum.LastQuarterlyGrowth = sum.Quarterly[n-1].Growth
	}
	return sum
}

func points(stats []aggregate.PeriodStats) []core.PeriodPoint {
	out := make([]core.PeriodPoint, len(stats))
	for i, p := range stats {
		out[i] = core.PeriodPoint{Period: p.Period, Count: p.Count, Revenue: p.Revenue, Growth: p.CountGrowth}
	}
	return out
}
