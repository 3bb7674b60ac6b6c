// Package dataset reads the raw car sales CSV into typed sale records.
package dataset

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/gocarina/gocsv"

	"carsales/internal/core"
)

// Header names of the raw dataset.
const (
	ColCarID        = "Car_id"
	ColDate         = "Date"
	ColCustomerName = "Customer Name"
	ColGender       = "Gender"
	ColAnnualIncome = "Annual Income"
	ColDealerName   = "Dealer_Name"
	ColCompany      = "Company"
	ColModel        = "Model"
	ColEngine       = "Engine"
	ColTransmission = "Transmission"
	ColColor        = "Color"
	ColPrice        = "Price ($)"
	ColDealerNo     = "Dealer_No"
	ColBodyStyle    = "Body Style"
	ColPhone        = "Phone"
	ColDealerRegion = "Dealer_Region"
)

// RequiredColumns lists the header names every input file must carry.
// Phone is optional: some exports of the dataset ship without it.
var RequiredColumns = []string{
	ColCarID, ColDate, ColCustomerName, ColGender, ColAnnualIncome,
	ColDealerName, ColCompany, ColModel, ColEngine, ColTransmission,
	ColColor, ColPrice, ColDealerNo, ColBodyStyle, ColDealerRegion,
}

type rawSale struct {
	CarID        string `csv:"Car_id"`
	Date         string `csv:"Date"`
	CustomerName string `csv:"Customer Name"`
	Gender       string `csv:"Gender"`
	AnnualIncome string `csv:"Annual Income"`
	DealerName   string `csv:"Dealer_Name"`
	Company      string `csv:"Company"`
	Model        string `csv:"Model"`
	Engine       string `csv:"Engine"`
	Transmission string `csv:"Transmission"`
	Color        string `csv:"Color"`
	Price        string `csv:"Price ($)"`
	DealerNo     string `csv:"Dealer_No"`
	BodyStyle    string `csv:"Body Style"`
	Phone        string `csv:"Phone"`
	DealerRegion string `csv:"Dealer_Region"`
}

// records feeds already-read rows to gocsv.
type records struct {
	rows [][]string
	pos  int
}

func (r *records) Read() ([]string, error) {
	if r.pos >= len(r.rows) {
		return nil, io.EOF
	}
	row := r.rows[r.pos]
	r.pos++
	return row, nil
}

func (r *records) ReadAll() ([][]string, error) {
	rest := r.rows[r.pos:]
	r.pos = len(r.rows)
	return rest, nil
}

// ReadFile reads and normalizes every sale in the CSV file at path.
func ReadFile(path string) ([]core.Sale, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open dataset: %w", err)
	}
	defer f.Close()
	return Read(f)
}

// Read parses a raw dataset. Header names are matched after trimming
// surrounding whitespace; extra columns are ignored and a missing required
// column fails with core.ErrMissingColumn.
func Read(r io.Reader) ([]core.Sale, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	rows, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read dataset: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("read dataset: %w: empty file", core.ErrMissingColumn)
	}

	header := rows[0]
	for i, h := range header {
		header[i] = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
	}
	if err := checkHeader(header); err != nil {
		return nil, err
	}

	var raws []rawSale
	if err := gocsv.UnmarshalCSV(&records{rows: rows}, &raws); err != nil {
		return nil, fmt.Errorf("decode dataset: %w", err)
	}

	sales := make([]core.Sale, 0, len(raws))
	for i, raw := range raws {
		s, err := raw.normalize()
		if err != nil {
			// +2: one for the header, one for 1-based line numbers
			return nil, fmt.Errorf("line %d: %w", i+2, err)
		}
		sales = append(sales, s)
	}
	return sales, nil
}

func checkHeader(header []string) error {
	present := make(map[string]bool, len(header))
	for _, h := range header {
		present[h] = true
	}
	var missing []string
	for _, c := range RequiredColumns {
		if !present[c] {
			missing = append(missing, c)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", core.ErrMissingColumn, strings.Join(missing, ", "))
	}
	return nil
}

// normalize trims text fields (car id and date excepted), converts numbers
// and defaults a missing phone to 0.
func (r rawSale) normalize() (core.Sale, error) {
	date, err := core.ParseSaleDate(r.Date)
	if err != nil {
		return core.Sale{}, err
	}
	income, err := parseFloat(ColAnnualIncome, r.AnnualIncome)
	if err != nil {
		return core.Sale{}, err
	}
	price, err := parseFloat(ColPrice, r.Price)
	if err != nil {
		return core.Sale{}, err
	}
	phone, err := parsePhone(r.Phone)
	if err != nil {
		return core.Sale{}, err
	}

	s := core.Sale{
		CarID:        r.CarID,
		Date:         date,
		CustomerName: strings.TrimSpace(r.CustomerName),
		Gender:       strings.TrimSpace(r.Gender),
		AnnualIncome: income,
		Phone:        phone,
		DealerName:   strings.TrimSpace(r.DealerName),
		DealerNo:     strings.TrimSpace(r.DealerNo),
		DealerRegion: strings.TrimSpace(r.DealerRegion),
		Company:      strings.TrimSpace(r.Company),
		Model:        strings.TrimSpace(r.Model),
		BodyStyle:    strings.TrimSpace(r.BodyStyle),
		Engine:       strings.TrimSpace(r.Engine),
		Transmission: strings.TrimSpace(r.Transmission),
		Color:        strings.TrimSpace(r.Color),
		Price:        price,
	}
	if err := s.Validate(); err != nil {
		return core.Sale{}, err
	}
	return s, nil
}

func parseFloat(col, v string) (float64, error) {
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil || !core.IsFinite(f) {
		return 0, fmt.Errorf("%w in %s: %q", core.ErrInvalidNumber, col, v)
	}
	return f, nil
}

func parsePhone(v string) (int64, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0, nil
	}
	if p, err := strconv.ParseInt(v, 10, 64); err == nil {
		return p, nil
	}
	// exports occasionally carry the phone as a float, e.g. 8264678.0
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || !core.IsFinite(f) {
		return 0, fmt.Errorf("%w in %s: %q", core.ErrInvalidNumber, ColPhone, v)
	}
	return int64(f), nil
}
