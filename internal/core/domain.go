package core

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
)

// SaleDateLayout is the month/day/year layout used by the raw dataset.
const SaleDateLayout = "1/2/2006"

// ISODateLayout is the layout used when a sale date is stored or exported.
const ISODateLayout = "2006-01-02"

type (
	Date struct {
		time.Time
	}

	// Sale is one row of the raw dataset after normalization.
	Sale struct {
		CarID        string
		Date         Date
		CustomerName string
		Gender       string
		AnnualIncome float64
		Phone        int64 // 0 when the dataset has no phone
		DealerName   string
		DealerNo     string
		DealerRegion string
		Company      string
		Model        string
		BodyStyle    string
		Engine       string
		Transmission string
		Color        string
		Price        float64
	}
)

var (
	ErrMissingColumn = errors.New("missing column")
	ErrInvalidDate   = errors.New("invalid date")
	ErrInvalidNumber = errors.New("invalid number")
	ErrEmptyCarID    = errors.New("empty car id")
)

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// ParseSaleDate parses a month/day/year date as found in the raw dataset.
func ParseSaleDate(s string) (Date, error) {
	t, err := time.Parse(SaleDateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, fmt.Errorf("%w %q", ErrInvalidDate, s)
	}
	return Date{Time: t}, nil
}

// ParseISODate parses a date written by ISO.
func ParseISODate(s string) (Date, error) {
	s = strings.TrimSpace(s)
	if len(s) > len(ISODateLayout) {
		s = s[:len(ISODateLayout)]
	}
	t, err := time.Parse(ISODateLayout, s)
	if err != nil {
		return Date{}, fmt.Errorf("%w %q", ErrInvalidDate, s)
	}
	return Date{Time: t}, nil
}

// Year returns the year
func (d Date) Year() int {
	return d.Time.Year()
}

// Month returns the month
func (d Date) Month() int {
	return int(d.Time.Month())
}

// Quarter returns the calendar quarter, 1 to 4.
func (d Date) Quarter() int {
	return (d.Month()-1)/3 + 1
}

// Period returns the year-month label, e.g. 2022-03.
func (d Date) Period() string {
	return fmt.Sprintf("%04d-%02d", d.Year(), d.Month())
}

// QuarterPeriod returns the year-quarter label, e.g. 2022Q1.
func (d Date) QuarterPeriod() string {
	return fmt.Sprintf("%04dQ%d", d.Year(), d.Quarter())
}

// ISO returns the date as YYYY-MM-DD.
func (d Date) ISO() string {
	return d.Format(ISODateLayout)
}

// Validate reports a sale that cannot be stored or aggregated: an empty car
// id, a zero date or a non-finite income or price.
func (s Sale) Validate() error {
	if strings.TrimSpace(s.CarID) == "" {
		return ErrEmptyCarID
	}
	if s.Date.IsZero() {
		return fmt.Errorf("%w: zero date for %s", ErrInvalidDate, s.CarID)
	}
	if !IsFinite(s.AnnualIncome) || !IsFinite(s.Price) {
		return fmt.Errorf("%w: non-finite income or price for %s", ErrInvalidNumber, s.CarID)
	}
	return nil
}

// IsFinite reports whether f is neither NaN nor an infinity.
func IsFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// IncomeBracket returns the income bracket of the buyer.
func (s Sale) IncomeBracket() IncomeBracket {
	return IncomeBracketOf(s.AnnualIncome)
}

// FinancialEffort returns price divided by annual income. The second value
// is false when income is not positive or the ratio overflows.
func (s Sale) FinancialEffort() (float64, bool) {
	if s.AnnualIncome <= 0 {
		return 0, false
	}
	e := s.Price / s.AnnualIncome
	if !IsFinite(e) {
		return 0, false
	}
	return e, true
}
