package services

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"carsales/internal/amqp"
	applog "carsales/internal/log"
)

const csvHeader = "Car_id,Date,Customer Name,Gender,Annual Income,Dealer_Name,Company,Model,Engine,Transmission,Color,Price ($),Dealer_No ,Body Style,Phone,Dealer_Region\n"

var testRows = []string{
	"C_CND_000001,1/2/2022,Geraldine,Male,13500,Buddy Storbeck's Diesel Service Inc,Ford,Expedition,DOHC,Auto,Black,26000,06457-3834,SUV,8264678,Middletown",
	"C_CND_000002,1/2/2022,Gia,Male,1480000,C & M Motors Inc,Dodge,Durango,Overhead Camshaft,Manual,Black,19000,60504-7114,SUV,6848189,Aurora",
	"C_CND_000003,2/15/2022,Gianna,Female,1035000,Capitol KIA,Cadillac,Eldorado,Overhead Camshaft,Manual,Red,31500,38701-8047,Passenger,7298798,Greenville",
	"C_CND_000004,4/3/2022,Giselle,Male,13500,Chrysler of Tri-Cities,Toyota,Celica,Overhead Camshaft,Manual,Pale White,14000,99301-3882,SUV,6257557,Pasco",
	"C_CND_000005,7/20/2023,Grace,Male,1465000,Chrysler Plymouth,Acura,TL,DOHC,Auto,Red,24500,53546-9427,Hatchback,7081483,Janesville",
}

// writeCSV writes the given rows under the standard header and returns the path.
func writeCSV(t *testing.T, rows ...string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "car_sales.csv")
	body := csvHeader + strings.Join(rows, "\n") + "\n"
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func testLogger() *applog.Logger {
	return applog.New(applog.Config{Output: &bytes.Buffer{}})
}

type fakePublisher struct {
	mu        sync.Mutex
	loaded    []*amqp.DatasetLoadedMessage
	refreshed []*amqp.AggregatesRefreshedMessage
	err       error
}

func (f *fakePublisher) PublishDatasetLoaded(_ context.Context, msg *amqp.DatasetLoadedMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.loaded = append(f.loaded, msg)
	return f.err
}

func (f *fakePublisher) PublishAggregatesRefreshed(_ context.Context, msg *amqp.AggregatesRefreshedMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refreshed = append(f.refreshed, msg)
	return f.err
}

func manyRows(n int) []string {
	rows := make([]string, n)
	for i := range rows {
		base := testRows[i%len(testRows)]
		rows[i] = fmt.Sprintf("C_GEN_%06d", i+1) + base[strings.Index(base, ","):]
	}
	return rows
}
