package aggregate

import (
	"sort"
	"strconv"

	"carsales/internal/core"
)

// Table names.
const (
	TableTotalSales       = "total_sales"
	TableRevenueSummary   = "revenue_summary"
	TableMonthlySales     = "monthly_sales"
	TableQuarterlySales   = "quarterly_sales"
	TableTopModels        = "top_models"
	TableSeasonality      = "seasonality"
	TableIncomeBrackets   = "income_brackets"
	TableGender           = "gender"
	TableIncomeByModel    = "income_by_model"
	TableBrandPreferences = "brand_preferences"
	TableRegionalRevenue  = "regional_revenue"
	TableDealerTicket     = "dealer_ticket"
	TableDealerRanking    = "dealer_ranking"
	TableRegionComparison = "region_comparison"
	TableBodyStyle        = "body_style"
	TableTransmission     = "transmission"
	TableColor            = "color"
	TableTopBrands        = "top_brands"
	TableDailySales       = "daily_sales"
	TableCorrelation      = "correlation"
	TableSales            = "sales"
)

const topBrandsLimit = 10

// Compute builds every summary table from the full sale set, followed by
// the raw dataset itself.
func Compute(sales []core.Sale) Tables {
	return Tables{
		TotalSales(sales),
		RevenueSummary(sales),
		MonthlySales(sales),
		QuarterlySales(sales),
		TopModels(sales),
		Seasonality(sales),
		IncomeBrackets(sales),
		GenderBreakdown(sales),
		IncomeByModel(sales),
		BrandPreferences(sales),
		RegionalRevenue(sales),
		DealerTicket(sales),
		DealerRanking(sales),
		RegionComparison(sales),
		BodyStyles(sales),
		Transmissions(sales),
		Colors(sales),
		TopBrands(sales),
		DailySales(sales),
		CorrelationMatrix(sales),
		SalesTable(sales),
	}
}

// TotalSales holds the number of transactions.
func TotalSales(sales []core.Sale) Table {
	t := NewTable(TableTotalSales, "metric", "value")
	t.Append("Total Sales", len(sales))
	return *t
}

// RevenueSummary holds total revenue and the average ticket.
func RevenueSummary(sales []core.Sale) Table {
	t := NewTable(TableRevenueSummary, "metric", "value")
	t.Append("Total Revenue", Sum(sales, Price))
	t.Append("Average Ticket", Mean(sales, Price))
	return *t
}

// PeriodStats is the volume of one calendar period.
type PeriodStats struct {
	Period        string
	Count         int
	Revenue       float64
	CountGrowth   float64
	RevenueGrowth float64
}

// ByPeriod groups sales by a calendar label and computes the growth of
// count and revenue over the preceding period.
func ByPeriod(sales []core.Sale, label func(core.Date) string) []PeriodStats {
	groups := GroupBy(sales, func(s core.Sale) []string { return []string{label(s.Date)} })
	out := make([]PeriodStats, len(groups))
	counts := make([]float64, len(groups))
	revenues := make([]float64, len(groups))
	for i, g := range groups {
		out[i] = PeriodStats{Period: g.Key[0], Count: len(g.Sales), Revenue: Sum(g.Sales, Price)}
		counts[i] = float64(out[i].Count)
		revenues[i] = out[i].Revenue
	}
	countGrowth := Growth(counts)
	revenueGrowth := Growth(revenues)
	for i := range out {
		out[i].CountGrowth = countGrowth[i]
		out[i].RevenueGrowth = revenueGrowth[i]
	}
	return out
}

func periodTable(name, column string, stats []PeriodStats) Table {
	t := NewTable(name, column, "count", "revenue", "count_growth_pct", "revenue_growth_pct")
	for _, p := range stats {
		t.Append(p.Period, p.Count, p.Revenue, p.CountGrowth, p.RevenueGrowth)
	}
	return *t
}

// MonthlySales is count, revenue and growth per YYYY-MM.
func MonthlySales(sales []core.Sale) Table {
	return periodTable(TableMonthlySales, "month", ByPeriod(sales, core.Date.Period))
}

// QuarterlySales is count, revenue and growth per YYYYQn.
func QuarterlySales(sales []core.Sale) Table {
	return periodTable(TableQuarterlySales, "quarter", ByPeriod(sales, core.Date.QuarterPeriod))
}

func byCountDesc(groups []Group) {
	sort.SliceStable(groups, func(a, b int) bool {
		return len(groups[a].Sales) > len(groups[b].Sales)
	})
}

// TopModels ranks company and model pairs by units sold.
func TopModels(sales []core.Sale) Table {
	groups := GroupBy(sales, func(s core.Sale) []string { return []string{s.Company, s.Model} })
	byCountDesc(groups)
	t := NewTable(TableTopModels, "company", "model", "count", "revenue", "avg_price")
	for _, g := range groups {
		t.Append(g.Key[0], g.Key[1], len(g.Sales), Sum(g.Sales, Price), Mean(g.Sales, Price))
	}
	return *t
}

// Seasonality splits volume by year and quarter.
func Seasonality(sales []core.Sale) Table {
	groups := GroupBy(sales, func(s core.Sale) []string {
		return []string{strconv.Itoa(s.Date.Year()), strconv.Itoa(s.Date.Quarter())}
	})
	t := NewTable(TableSeasonality, "year", "quarter", "count", "revenue")
	for _, g := range groups {
		first := g.Sales[0].Date
		t.Append(first.Year(), first.Quarter(), len(g.Sales), Sum(g.Sales, Price))
	}
	return *t
}

// bracketKey orders groups by bracket ordinal rather than label.
func bracketKey(s core.Sale) string {
	return strconv.Itoa(int(s.IncomeBracket()))
}

func segmentTable(name, column string, sales []core.Sale, groups []Group, label func(Group) string) Table {
	t := NewTable(name, column, "count", "avg_price", "avg_income", "pct")
	total := float64(len(sales))
	for _, g := range groups {
		t.Append(label(g), len(g.Sales), Mean(g.Sales, Price), Mean(g.Sales, AnnualIncome),
			PercentOf(float64(len(g.Sales)), total))
	}
	return *t
}

// IncomeBrackets profiles buyers per income bracket, in tier order.
func IncomeBrackets(sales []core.Sale) Table {
	groups := GroupBy(sales, func(s core.Sale) []string { return []string{bracketKey(s)} })
	return segmentTable(TableIncomeBrackets, "income_bracket", sales, groups, func(g Group) string {
		return g.Sales[0].IncomeBracket().String()
	})
}

// GenderBreakdown profiles buyers per gender.
func GenderBreakdown(sales []core.Sale) Table {
	groups := GroupBy(sales, func(s core.Sale) []string { return []string{s.Gender} })
	return segmentTable(TableGender, "gender", sales, groups, func(g Group) string { return g.Key[0] })
}

// byBracketThenCountDesc keeps bracket order and puts the largest groups
// first within each bracket.
func byBracketThenCountDesc(groups []Group) {
	sort.SliceStable(groups, func(a, b int) bool {
		if groups[a].Key[0] != groups[b].Key[0] {
			return groups[a].Key[0] < groups[b].Key[0]
		}
		return len(groups[a].Sales) > len(groups[b].Sales)
	})
}

// IncomeByModel lists the models bought within each income bracket.
func IncomeByModel(sales []core.Sale) Table {
	groups := GroupBy(sales, func(s core.Sale) []string { return []string{bracketKey(s), s.Model} })
	byBracketThenCountDesc(groups)
	t := NewTable(TableIncomeByModel, "income_bracket", "model", "count", "avg_price", "financial_effort")
	for _, g := range groups {
		var effort any
		if e, ok := MeanEffort(g.Sales); ok {
			effort = e
		}
		t.Append(g.Sales[0].IncomeBracket().String(), g.Key[1], len(g.Sales), Mean(g.Sales, Price), effort)
	}
	return *t
}

// BrandPreferences lists brands per income bracket and gender.
func BrandPreferences(sales []core.Sale) Table {
	groups := GroupBy(sales, func(s core.Sale) []string { return []string{bracketKey(s), s.Gender, s.Company} })
	byBracketThenCountDesc(groups)
	t := NewTable(TableBrandPreferences, "income_bracket", "gender", "company", "count", "avg_price")
	for _, g := range groups {
		t.Append(g.Sales[0].IncomeBracket().String(), g.Key[1], g.Key[2], len(g.Sales), Mean(g.Sales, Price))
	}
	return *t
}

// RegionalRevenue ranks regions by revenue with their share of the total.
func RegionalRevenue(sales []core.Sale) Table {
	groups := GroupBy(sales, func(s core.Sale) []string { return []string{s.DealerRegion} })
	revenue := make(map[string]float64, len(groups))
	for _, g := range groups {
		revenue[g.Key[0]] = Sum(g.Sales, Price)
	}
	sort.SliceStable(groups, func(a, b int) bool {
		return revenue[groups[a].Key[0]] > revenue[groups[b].Key[0]]
	})
	total := Sum(sales, Price)
	t := NewTable(TableRegionalRevenue, "region", "count", "revenue", "pct")
	for _, g := range groups {
		r := revenue[g.Key[0]]
		t.Append(g.Key[0], len(g.Sales), r, PercentOf(r, total))
	}
	return *t
}

func dealerGroups(sales []core.Sale) []Group {
	return GroupBy(sales, func(s core.Sale) []string { return []string{s.DealerName, s.DealerRegion} })
}

// DealerTicket ranks dealers by average ticket.
func DealerTicket(sales []core.Sale) Table {
	groups := dealerGroups(sales)
	avg := make([]float64, len(groups))
	for i, g := range groups {
		avg[i] = Mean(g.Sales, Price)
	}
	order := make([]int, len(groups))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool { return avg[order[a]] > avg[order[b]] })

	t := NewTable(TableDealerTicket, "dealer", "region", "count", "revenue", "avg_ticket")
	for _, i := range order {
		g := groups[i]
		t.Append(g.Key[0], g.Key[1], len(g.Sales), Sum(g.Sales, Price), avg[i])
	}
	return *t
}

// DealerRanking ranks dealers by units sold.
func DealerRanking(sales []core.Sale) Table {
	groups := dealerGroups(sales)
	byCountDesc(groups)
	ranks := RowRank(len(groups))
	t := NewTable(TableDealerRanking, "dealer", "region", "count", "revenue", "rank")
	for i, g := range groups {
		t.Append(g.Key[0], g.Key[1], len(g.Sales), Sum(g.Sales, Price), ranks[i])
	}
	return *t
}

// RegionComparison compares dealer count, volume and revenue per region.
func RegionComparison(sales []core.Sale) Table {
	groups := GroupBy(sales, func(s core.Sale) []string { return []string{s.DealerRegion} })
	t := NewTable(TableRegionComparison, "region", "dealers", "count", "revenue", "avg_ticket", "revenue_per_dealer")
	for _, g := range groups {
		dealers := make(map[string]struct{})
		for _, s := range g.Sales {
			dealers[s.DealerName] = struct{}{}
		}
		revenue := Sum(g.Sales, Price)
		t.Append(g.Key[0], len(dealers), len(g.Sales), revenue, Mean(g.Sales, Price),
			revenue/float64(len(dealers)))
	}
	return *t
}

// BodyStyles is volume and average price per body style.
func BodyStyles(sales []core.Sale) Table {
	groups := GroupBy(sales, func(s core.Sale) []string { return []string{s.BodyStyle} })
	byCountDesc(groups)
	t := NewTable(TableBodyStyle, "body_style", "count", "revenue", "avg_price")
	for _, g := range groups {
		t.Append(g.Key[0], len(g.Sales), Sum(g.Sales, Price), Mean(g.Sales, Price))
	}
	return *t
}

// Transmissions compares average price per transmission type.
func Transmissions(sales []core.Sale) Table {
	groups := GroupBy(sales, func(s core.Sale) []string { return []string{s.Transmission} })
	t := NewTable(TableTransmission, "transmission", "count", "avg_price")
	for _, g := range groups {
		t.Append(g.Key[0], len(g.Sales), Mean(g.Sales, Price))
	}
	return *t
}

// Colors ranks colors by units sold.
func Colors(sales []core.Sale) Table {
	groups := GroupBy(sales, func(s core.Sale) []string { return []string{s.Color} })
	byCountDesc(groups)
	t := NewTable(TableColor, "color", "count", "avg_price")
	for _, g := range groups {
		t.Append(g.Key[0], len(g.Sales), Mean(g.Sales, Price))
	}
	return *t
}

// TopBrands is the ten best-selling companies.
func TopBrands(sales []core.Sale) Table {
	groups := GroupBy(sales, func(s core.Sale) []string { return []string{s.Company} })
	byCountDesc(groups)
	if len(groups) > topBrandsLimit {
		groups = groups[:topBrandsLimit]
	}
	t := NewTable(TableTopBrands, "company", "count", "revenue", "avg_price")
	for _, g := range groups {
		t.Append(g.Key[0], len(g.Sales), Sum(g.Sales, Price), Mean(g.Sales, Price))
	}
	return *t
}

// DailySales is count and revenue per calendar day.
func DailySales(sales []core.Sale) Table {
	groups := GroupBy(sales, func(s core.Sale) []string { return []string{s.Date.ISO()} })
	t := NewTable(TableDailySales, "date", "count", "revenue")
	for _, g := range groups {
		t.Append(g.Key[0], len(g.Sales), Sum(g.Sales, Price))
	}
	return *t
}

// CorrelationMatrix is the Pearson correlation of income, price and
// financial effort. Each pair uses every sale where both values are
// defined, so income against price covers the sales with undefined effort.
func CorrelationMatrix(sales []core.Sale) Table {
	type variable struct {
		name  string
		value func(core.Sale) (float64, bool)
	}
	vars := []variable{
		{"annual_income", func(s core.Sale) (float64, bool) { return s.AnnualIncome, true }},
		{"price", func(s core.Sale) (float64, bool) { return s.Price, true }},
		{"financial_effort", core.Sale.FinancialEffort},
	}

	columns := []string{"variable"}
	for _, v := range vars {
		columns = append(columns, v.name)
	}
	t := NewTable(TableCorrelation, columns...)
	for _, a := range vars {
		row := []any{a.name}
		for _, b := range vars {
			var x, y []float64
			for _, s := range sales {
				xv, okX := a.value(s)
				yv, okY := b.value(s)
				if okX && okY {
					x = append(x, xv)
					y = append(y, yv)
				}
			}
			if c, ok := Correlation(x, y); ok {
				row = append(row, c)
			} else {
				row = append(row, nil)
			}
		}
		t.Append(row...)
	}
	return *t
}
