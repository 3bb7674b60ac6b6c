package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/go-sql-driver/mysql"

	"carsales/internal/core"

	_ "modernc.org/sqlite"
)

const (
	DriverSQLite = "sqlite"
	DriverMySQL  = "mysql"
)

var (
	ErrUnknownDriver = errors.New("unknown database driver")
	ErrConnection    = errors.New("database connection failed")
	ErrBatchInsert   = errors.New("batch insert failed")
)

// Options selects the relational store. For sqlite the DSN is a file path.
type Options struct {
	Driver string
	DSN    string
}

// MySQLDSN builds a go-sql-driver DSN from its parts.
func MySQLDSN(host, user, password, dbName string) string {
	cfg := mysql.NewConfig()
	cfg.Net = "tcp"
	cfg.Addr = host
	cfg.User = user
	cfg.Passwd = password
	cfg.DBName = dbName
	return cfg.FormatDSN()
}

// SalesRepository persists sale records in the car_sales table.
type SalesRepository struct {
	db     *sql.DB
	driver string
}

// Open connects to the store, checks the connection and applies migrations.
func Open(ctx context.Context, opts Options) (*SalesRepository, error) {
	switch opts.Driver {
	case DriverSQLite:
		if dir := filepath.Dir(opts.DSN); dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return nil, fmt.Errorf("create db directory: %w", err)
			}
		}
	case DriverMySQL:
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownDriver, opts.Driver)
	}

	db, err := sql.Open(opts.Driver, opts.DSN)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConnection, err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: %v", ErrConnection, err)
	}

	if err := RunMigrations(opts.Driver, opts.DSN); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SalesRepository{db: db, driver: opts.Driver}, nil
}

func (r *SalesRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping checks that the store is reachable.
func (r *SalesRepository) Ping(ctx context.Context) error {
	if err := r.db.PingContext(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrConnection, err)
	}
	return nil
}

// Truncate removes every stored sale.
func (r *SalesRepository) Truncate(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, deleteAllSales); err != nil {
		return fmt.Errorf("truncate car_sales: %w", err)
	}
	return nil
}

// InsertBatch writes sales in one transaction. On failure nothing from
// this batch is kept; earlier batches are unaffected.
func (r *SalesRepository) InsertBatch(ctx context.Context, sales []core.Sale) (err error) {
	if len(sales) == 0 {
		return nil
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin: %v", ErrBatchInsert, err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				slog.WarnContext(ctx, "Rollback failed", "error", rbErr)
			}
		}
	}()

	stmt, err := tx.PrepareContext(ctx, insertSale)
	if err != nil {
		return fmt.Errorf("%w: prepare: %v", ErrBatchInsert, err)
	}
	defer stmt.Close()

	for _, s := range sales {
		if _, err = stmt.ExecContext(ctx,
			s.CarID, s.Date.ISO(), s.CustomerName, s.Gender, s.AnnualIncome, s.Phone,
			s.DealerName, s.DealerNo, s.DealerRegion, s.Company, s.Model, s.BodyStyle,
			s.Engine, s.Transmission, s.Color, s.Price,
		); err != nil {
			return fmt.Errorf("%w: car %s: %v", ErrBatchInsert, s.CarID, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit: %v", ErrBatchInsert, err)
	}
	return nil
}

// Count returns the number of stored sales.
func (r *SalesRepository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, countSales).Scan(&n); err != nil {
		return 0, fmt.Errorf("count sales: %w", err)
	}
	return n, nil
}

// ListSales reads every stored sale ordered by car id.
func (r *SalesRepository) ListSales(ctx context.Context) ([]core.Sale, error) {
	rows, err := r.db.QueryContext(ctx, selectSales)
	if err != nil {
		return nil, fmt.Errorf("list sales: %w", err)
	}
	defer rows.Close()

	var out []core.Sale
	for rows.Next() {
		var (
			s    core.Sale
			date string
		)
		if err := rows.Scan(
			&s.CarID, &date, &s.CustomerName, &s.Gender, &s.AnnualIncome, &s.Phone,
			&s.DealerName, &s.DealerNo, &s.DealerRegion, &s.Company, &s.Model, &s.BodyStyle,
			&s.Engine, &s.Transmission, &s.Color, &s.Price,
		); err != nil {
			return nil, fmt.Errorf("scan sale: %w", err)
		}
		if s.Date, err = core.ParseISODate(date); err != nil {
			return nil, fmt.Errorf("sale %s: %w", s.CarID, err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
