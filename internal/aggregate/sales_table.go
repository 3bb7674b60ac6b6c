package aggregate

import (
	"fmt"
	"strconv"

	"carsales/internal/core"
)

// Columns of the raw dataset table, in store order, followed by the
// derived calendar and segment fields.
var salesColumns = []string{
	"car_id", "sale_date", "customer_name", "gender", "annual_income", "phone",
	"dealer_name", "dealer_no", "dealer_region", "company", "model", "body_style",
	"engine", "transmission", "color", "price",
	"year", "month", "quarter", "year_month", "quarter_period", "income_bracket", "financial_effort",
}

// SalesTable renders the raw dataset with its derived fields.
func SalesTable(sales []core.Sale) Table {
	t := NewTable(TableSales, salesColumns...)
	t.Rows = make([][]any, 0, len(sales))
	for _, s := range sales {
		var effort any
		if e, ok := s.FinancialEffort(); ok {
			effort = e
		}
		t.Append(
			s.CarID, s.Date.ISO(), s.CustomerName, s.Gender, s.AnnualIncome, s.Phone,
			s.DealerName, s.DealerNo, s.DealerRegion, s.Company, s.Model, s.BodyStyle,
			s.Engine, s.Transmission, s.Color, s.Price,
			s.Date.Year(), s.Date.Month(), s.Date.Quarter(), s.Date.Period(), s.Date.QuarterPeriod(),
			s.IncomeBracket().String(), effort,
		)
	}
	return *t
}

// SalesFromTable recovers sale records from a raw dataset table, e.g. one
// decoded from a bundle. Derived columns are ignored and recomputed on use.
func SalesFromTable(t Table) ([]core.Sale, error) {
	idx := make(map[string]int, len(t.Columns))
	for i, c := range t.Columns {
		idx[c] = i
	}
	for _, c := range salesColumns[:16] {
		if _, ok := idx[c]; !ok {
			return nil, fmt.Errorf("%s table: %w: %s", t.Name, core.ErrMissingColumn, c)
		}
	}

	sales := make([]core.Sale, 0, len(t.Rows))
	for n, row := range t.Rows {
		r := cellReader{row: row, idx: idx}
		date, err := core.ParseISODate(r.str("sale_date"))
		if err != nil {
			return nil, fmt.Errorf("%s row %d: %w", t.Name, n, err)
		}
		s := core.Sale{
			CarID:        r.str("car_id"),
			Date:         date,
			CustomerName: r.str("customer_name"),
			Gender:       r.str("gender"),
			AnnualIncome: r.num("annual_income"),
			Phone:        int64(r.num("phone")),
			DealerName:   r.str("dealer_name"),
			DealerNo:     r.str("dealer_no"),
			DealerRegion: r.str("dealer_region"),
			Company:      r.str("company"),
			Model:        r.str("model"),
			BodyStyle:    r.str("body_style"),
			Engine:       r.str("engine"),
			Transmission: r.str("transmission"),
			Color:        r.str("color"),
			Price:        r.num("price"),
		}
		if r.err != nil {
			return nil, fmt.Errorf("%s row %d: %w", t.Name, n, r.err)
		}
		sales = append(sales, s)
	}
	return sales, nil
}

type cellReader struct {
	row []any
	idx map[string]int
	err error
}

func (r *cellReader) cell(col string) any {
	i := r.idx[col]
	if i >= len(r.row) {
		return nil
	}
	return r.row[i]
}

func (r *cellReader) str(col string) string {
	switch v := r.cell(col).(type) {
	case nil:
		return ""
	case string:
		return v
	default:
		return FormatCell(v)
	}
}

func (r *cellReader) num(col string) float64 {
	switch v := r.cell(col).(type) {
	case nil:
		return 0
	case float64:
		return v
	case int:
		return float64(v)
	case int64:
		return float64(v)
	case string:
		f, err := strconv.ParseFloat(v, 64)
		if err != nil && r.err == nil {
			r.err = fmt.Errorf("%w in %s: %q", core.ErrInvalidNumber, col, v)
		}
		return f
	default:
		if r.err == nil {
			r.err = fmt.Errorf("%w in %s: %v", core.ErrInvalidNumber, col, v)
		}
		return 0
	}
}
