package storage

import (
	"context"
	"database/sql"
	"fmt"
)

// ModelCount is a company and model with its number of sales.
type ModelCount struct {
	Company string
	Model   string
	Count   int
}

// Verification summarizes what the store holds after a load.
type Verification struct {
	TotalRows         int
	DistinctCars      int
	DistinctCustomers int
	DistinctDealers   int
	DistinctBrands    int
	DistinctModels    int
	FirstSale         string
	LastSale          string
	TotalRevenue      float64
	AveragePrice      float64
	TopModels         []ModelCount
}

// Verify computes the post-load summary of the car_sales table.
func (r *SalesRepository) Verify(ctx context.Context) (Verification, error) {
	var (
		v               Verification
		first, last     sql.NullString
		revenue, avgPrc sql.NullFloat64
	)
	err := r.db.QueryRowContext(ctx, verifyOverview).Scan(
		&v.TotalRows, &v.DistinctCars, &v.DistinctCustomers, &v.DistinctDealers,
		&v.DistinctBrands, &v.DistinctModels, &first, &last, &revenue, &avgPrc,
	)
	if err != nil {
		return Verification{}, fmt.Errorf("verify overview: %w", err)
	}
	v.FirstSale = dateOnly(first.String)
	v.LastSale = dateOnly(last.String)
	v.TotalRevenue = revenue.Float64
	v.AveragePrice = avgPrc.Float64

	rows, err := r.db.QueryContext(ctx, verifyTopModels)
	if err != nil {
		return v, fmt.Errorf("verify top models: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var mc ModelCount
		if err := rows.Scan(&mc.Company, &mc.Model, &mc.Count); err != nil {
			return v, fmt.Errorf("scan top model: %w", err)
		}
		v.TopModels = append(v.TopModels, mc)
	}
	return v, rows.Err()
}

// dateOnly trims a driver-formatted timestamp to YYYY-MM-DD.
func dateOnly(s string) string {
	if len(s) > 10 {
		return s[:10]
	}
	return s
}
