package backend

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"carsales/internal/aggregate"
	"carsales/internal/bundle"
	"carsales/internal/config"
	"carsales/internal/core"
	applog "carsales/internal/log"
)

const csvBody = `Car_id,Date,Customer Name,Gender,Annual Income,Dealer_Name,Company,Model,Engine,Transmission,Color,Price ($),Dealer_No ,Body Style,Phone,Dealer_Region
C_CND_000001,1/2/2022,Geraldine,Male,13500,Buddy Storbeck's Diesel Service Inc,Ford,Expedition,DOHC,Auto,Black,26000,06457-3834,SUV,8264678,Middletown
C_CND_000002,5/2/2023,Gia,Female,1480000,C & M Motors Inc,Dodge,Durango,Overhead Camshaft,Manual,Red,19000,60504-7114,SUV,6848189,Aurora
`

func testLogger() *applog.Logger {
	return applog.New(applog.Config{Output: &bytes.Buffer{}})
}

func TestFromAppConfig(t *testing.T) {
	_, err := FromAppConfig(nil)
	require.Error(t, err)

	_, err = FromAppConfig(&config.Config{DataBackend: "sheets"})
	require.Error(t, err)

	cfg, err := FromAppConfig(&config.Config{DataBackend: "bundle", BundlePath: "b.sz", CSVPath: "c.csv"})
	require.NoError(t, err)
	assert.Equal(t, BundleBackend, cfg.Type)
	assert.Equal(t, "b.sz", cfg.BundlePath)
}

func TestConfigValidate(t *testing.T) {
	assert.Error(t, Config{Type: CSVBackend}.Validate())
	assert.Error(t, Config{Type: BundleBackend}.Validate())
	assert.Error(t, Config{Type: "memory", CSVPath: "x"}.Validate())
	assert.NoError(t, Config{Type: CSVBackend, CSVPath: "x"}.Validate())
}

func TestCSVAndBundleSourcesAgree(t *testing.T) {
	dir := t.TempDir()
	csvPath := filepath.Join(dir, "car_sales.csv")
	require.NoError(t, os.WriteFile(csvPath, []byte(csvBody), 0o644))

	factory := NewFactory(testLogger())
	csvSrc, err := factory.CreateSource(Config{Type: CSVBackend, CSVPath: csvPath})
	require.NoError(t, err)
	fromCSV, err := csvSrc.Load(context.Background())
	require.NoError(t, err)
	require.Len(t, fromCSV.Sales, 2)
	assert.Len(t, fromCSV.Tables, 21)

	bundlePath := filepath.Join(dir, "aggregates.json.sz")
	require.NoError(t, bundle.New(fromCSV.Tables).WriteFile(bundlePath))

	bundleSrc, err := factory.CreateSource(Config{Type: BundleBackend, BundlePath: bundlePath})
	require.NoError(t, err)
	fromBundle, err := bundleSrc.Load(context.Background())
	require.NoError(t, err)

	require.Len(t, fromBundle.Sales, 2)
	for i := range fromCSV.Sales {
		a, b := fromCSV.Sales[i], fromBundle.Sales[i]
		assert.Equal(t, a.CarID, b.CarID)
		assert.Equal(t, a.Date.ISO(), b.Date.ISO())
		assert.Equal(t, a.Price, b.Price)
		assert.Equal(t, a.Phone, b.Phone)
		assert.Equal(t, a.DealerNo, b.DealerNo)
	}
	assert.Equal(t, fromCSV.Tables.Names(), fromBundle.Tables.Names())
}

func TestBundleSourceWithoutSalesTable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "b.sz")
	tables := aggregate.Tables{aggregate.TotalSales([]core.Sale{{CarID: "x", Price: 1}})}
	require.NoError(t, bundle.New(tables).WriteFile(path))

	_, err := (&BundleSource{Path: path}).Load(context.Background())
	require.Error(t, err)
}

type flakySource struct {
	data *Dataset
	err  error
}

func (f *flakySource) Load(context.Context) (*Dataset, error) { return f.data, f.err }
func (f *flakySource) Name() string                           { return "flaky" }

func TestHolderKeepsPreviousDatasetOnFailure(t *testing.T) {
	src := &flakySource{data: &Dataset{Sales: []core.Sale{{CarID: "a"}}}}
	h := NewHolder(src, testLogger())

	_, err := h.Current()
	require.ErrorIs(t, err, ErrNotLoaded)
	assert.False(t, h.Ready())

	_, err = h.Reload(context.Background())
	require.NoError(t, err)
	assert.True(t, h.Ready())

	src.data, src.err = nil, assert.AnError
	_, err = h.Reload(context.Background())
	require.Error(t, err)

	cur, err := h.Current()
	require.NoError(t, err)
	assert.Equal(t, "a", cur.Sales[0].CarID)
}
