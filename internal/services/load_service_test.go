package services

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"carsales/internal/storage"
)

func newStore(t *testing.T) *storage.SalesRepository {
	t.Helper()
	repo, err := storage.Open(context.Background(), storage.Options{
		Driver: storage.DriverSQLite,
		DSN:    filepath.Join(t.TempDir(), "car_sales.db"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })
	return repo
}

func TestLoadService_RunInBatches(t *testing.T) {
	store := newStore(t)
	pub := &fakePublisher{}
	svc := NewLoadService(store, pub, testLogger())
	ctx := context.Background()

	report, err := svc.Run(ctx, LoadOptions{CSVPath: writeCSV(t, testRows...), Driver: "sqlite", BatchSize: 2})
	require.NoError(t, err)

	assert.Equal(t, 5, report.Rows)
	assert.Equal(t, 3, report.Batches)
	require.NotNil(t, report.Verification)
	assert.Equal(t, 5, report.Verification.TotalRows)
	assert.Equal(t, "2022-01-02", report.Verification.FirstSale)
	assert.Equal(t, "2023-07-20", report.Verification.LastSale)
	assert.InDelta(t, 115000.0, report.Verification.TotalRevenue, 1e-9)

	n, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 5, n)

	require.Len(t, pub.loaded, 1)
	assert.Equal(t, report.RunID, pub.loaded[0].RunID)
	assert.Equal(t, 5, pub.loaded[0].Rows)
}

func TestLoadService_FailedBatchKeepsEarlierBatches(t *testing.T) {
	store := newStore(t)
	pub := &fakePublisher{}
	svc := NewLoadService(store, pub, testLogger())
	ctx := context.Background()

	rows := append([]string{}, testRows[:3]...)
	rows = append(rows, testRows[0]) // duplicate car id in the second batch

	_, err := svc.Run(ctx, LoadOptions{CSVPath: writeCSV(t, rows...), BatchSize: 2})
	require.Error(t, err)
	assert.True(t, errors.Is(err, storage.ErrBatchInsert))

	n, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n, "first batch stays committed")
	assert.Empty(t, pub.loaded, "failed loads are not announced")
}

func TestLoadService_TruncateAllowsRerun(t *testing.T) {
	store := newStore(t)
	svc := NewLoadService(store, nil, testLogger())
	ctx := context.Background()
	path := writeCSV(t, manyRows(12)...)

	_, err := svc.Run(ctx, LoadOptions{CSVPath: path, BatchSize: 5})
	require.NoError(t, err)

	_, err = svc.Run(ctx, LoadOptions{CSVPath: path, BatchSize: 5})
	require.Error(t, err, "rerun without truncate collides on car ids")

	report, err := svc.Run(ctx, LoadOptions{CSVPath: path, BatchSize: 5, Truncate: true})
	require.NoError(t, err)
	assert.Equal(t, 12, report.Rows)

	n, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 12, n)
}

func TestLoadService_Script(t *testing.T) {
	store := newStore(t)
	svc := NewLoadService(store, nil, testLogger())
	ctx := context.Background()
	csvPath := writeCSV(t, testRows...)

	t.Run("missing script is skipped", func(t *testing.T) {
		report, err := svc.Run(ctx, LoadOptions{
			CSVPath: csvPath, Truncate: true,
			ScriptPath: filepath.Join(t.TempDir(), "absent.sql"),
		})
		require.NoError(t, err)
		assert.Nil(t, report.Script)
	})

	t.Run("failing statements are skipped", func(t *testing.T) {
		script := filepath.Join(t.TempDir(), "car_sales_dml.sql")
		body := "UPDATE car_sales SET color = 'Black' WHERE car_id = 'C_CND_000003';\n" +
			"SELECT * FROM no_such_table;\n" +
			"DELETE FROM car_sales WHERE car_id = 'C_CND_000005';\n"
		require.NoError(t, os.WriteFile(script, []byte(body), 0o644))

		report, err := svc.Run(ctx, LoadOptions{CSVPath: csvPath, Truncate: true, ScriptPath: script})
		require.NoError(t, err)
		require.NotNil(t, report.Script)
		assert.Equal(t, 2, report.Script.Executed)
		assert.Len(t, report.Script.Failed, 1)
		assert.Equal(t, 4, report.Verification.TotalRows)
	})
}

func TestLoadService_PublishFailureIsNotFatal(t *testing.T) {
	pub := &fakePublisher{err: errors.New("broker down")}
	svc := NewLoadService(newStore(t), pub, testLogger())

	_, err := svc.Run(context.Background(), LoadOptions{CSVPath: writeCSV(t, testRows...)})
	require.NoError(t, err)
	assert.Len(t, pub.loaded, 1)
}

func TestLoadService_ReadFailure(t *testing.T) {
	svc := NewLoadService(newStore(t), nil, testLogger())
	_, err := svc.Run(context.Background(), LoadOptions{CSVPath: filepath.Join(t.TempDir(), "missing.csv")})
	require.Error(t, err)
}
