package config

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"carsales/internal/storage"
)

type Config struct {
	// HTTP Server
	Port               string
	RateLimitPerMinute int
	SummaryCacheTTL    time.Duration
	SummaryCacheSize   int
	TrustedProxies     []string

	// Logging
	LogLevel string

	// Dataset
	CSVPath string

	// Database
	DBDriver      string
	SQLiteDBPath  string
	MySQLHost     string
	MySQLUser     string
	MySQLPassword string
	MySQLDatabase string

	// Loader
	LoadBatchSize int
	SQLScriptPath string

	// Aggregator outputs
	BundlePath     string
	ExportDir      string
	ExportBOM      bool
	ExportXLSXPath string

	// AMQP
	AMQPURL            string
	AMQPExchange       string
	AMQPRefreshQueue   string
	AMQPDashboardQueue string

	// Google Sheets
	GoogleSpreadsheetID string

	// Worker
	RefreshOnStartup bool
	MetricsAddr      string

	// Dashboard data source
	DataBackend string
}

var (
	validBackends  = []string{"csv", "bundle"}
	validDrivers   = []string{storage.DriverSQLite, storage.DriverMySQL}
	validLogLevels = []string{"debug", "info", "warn", "error"}
)

func Load() *Config {
	cfg := &Config{
		Port:               getEnv("PORT", "8081"),
		RateLimitPerMinute: getEnvInt("RATE_LIMIT_PER_MINUTE", 120),
		SummaryCacheTTL:    getEnvDuration("SUMMARY_CACHE_TTL", 5*time.Minute),
		SummaryCacheSize:   getEnvInt("SUMMARY_CACHE_SIZE", 256),
		TrustedProxies:     getEnvList("TRUSTED_PROXIES"),

		LogLevel: getEnv("LOG_LEVEL", "info"),

		CSVPath: getEnv("CSV_PATH", "car_sales.csv"),

		DBDriver:      getEnv("DB_DRIVER", storage.DriverSQLite),
		SQLiteDBPath:  getEnv("SQLITE_DB_PATH", "./data/car_sales.db"),
		MySQLHost:     getEnv("MYSQL_HOST", "localhost:3306"),
		MySQLUser:     getEnv("MYSQL_USER", "root"),
		MySQLPassword: getEnv("MYSQL_PASSWORD", ""),
		MySQLDatabase: getEnv("MYSQL_DATABASE", "car_sales_db"),

		LoadBatchSize: getEnvInt("LOAD_BATCH_SIZE", 1000),
		SQLScriptPath: getEnv("SQL_SCRIPT_PATH", "car_sales_dml.sql"),

		BundlePath:     getEnv("BUNDLE_PATH", "./data/aggregates.json.sz"),
		ExportDir:      getEnv("EXPORT_DIR", "./data/aggregates_csv"),
		ExportBOM:      getEnvBool("EXPORT_BOM", false),
		ExportXLSXPath: getEnv("EXPORT_XLSX_PATH", ""),

		AMQPURL:            getEnv("AMQP_URL", ""),
		AMQPExchange:       getEnv("AMQP_EXCHANGE", "carsales"),
		AMQPRefreshQueue:   getEnv("AMQP_REFRESH_QUEUE", "aggregate_refresh"),
		AMQPDashboardQueue: getEnv("AMQP_DASHBOARD_QUEUE", "dashboard_reload"),

		GoogleSpreadsheetID: getEnv("GOOGLE_SPREADSHEET_ID", ""),

		RefreshOnStartup: getEnvBool("REFRESH_ON_STARTUP", false),
		MetricsAddr:      getEnv("METRICS_ADDR", ""),

		DataBackend: getEnv("DATA_BACKEND", "bundle"),
	}

	return cfg
}

// StoreOptions returns the relational store selection.
func (c *Config) StoreOptions() storage.Options {
	if c.DBDriver == storage.DriverMySQL {
		return storage.Options{
			Driver: storage.DriverMySQL,
			DSN:    storage.MySQLDSN(c.MySQLHost, c.MySQLUser, c.MySQLPassword, c.MySQLDatabase),
		}
	}
	return storage.Options{Driver: storage.DriverSQLite, DSN: c.SQLiteDBPath}
}

// AMQPEnabled reports whether events are published and consumed.
func (c *Config) AMQPEnabled() bool {
	return c.AMQPURL != ""
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	// Validate port
	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	if !slices.Contains(validLogLevels, c.LogLevel) {
		errors = append(errors, fmt.Sprintf("invalid log level '%s': must be one of %v", c.LogLevel, validLogLevels))
	}

	if !slices.Contains(validBackends, c.DataBackend) {
		errors = append(errors, fmt.Sprintf("invalid data backend '%s': must be one of %v", c.DataBackend, validBackends))
	}

	if strings.TrimSpace(c.CSVPath) == "" {
		errors = append(errors, "CSV path cannot be empty")
	}
	if strings.TrimSpace(c.BundlePath) == "" {
		errors = append(errors, "bundle path cannot be empty")
	}
	if strings.TrimSpace(c.ExportDir) == "" {
		errors = append(errors, "export directory cannot be empty")
	}

	// Validate database configuration
	switch c.DBDriver {
	case storage.DriverSQLite:
		if c.SQLiteDBPath == "" {
			errors = append(errors, "SQLite database path cannot be empty when using sqlite driver")
		} else {
			dir := filepath.Dir(c.SQLiteDBPath)
			if dir != "." && dir != "" {
				if _, err := os.Stat(dir); os.IsNotExist(err) {
					if err := os.MkdirAll(dir, 0755); err != nil {
						errors = append(errors, fmt.Sprintf("cannot create SQLite database directory '%s': %v", dir, err))
					}
				}
			}
		}
	case storage.DriverMySQL:
		if c.MySQLHost == "" {
			errors = append(errors, "MySQL host cannot be empty when using mysql driver")
		}
		if c.MySQLDatabase == "" {
			errors = append(errors, "MySQL database cannot be empty when using mysql driver")
		}
	default:
		errors = append(errors, fmt.Sprintf("invalid database driver '%s': must be one of %v", c.DBDriver, validDrivers))
	}

	if c.LoadBatchSize < 1 {
		errors = append(errors, fmt.Sprintf("invalid load batch size %d: must be at least 1", c.LoadBatchSize))
	} else if c.LoadBatchSize > 100000 {
		errors = append(errors, fmt.Sprintf("invalid load batch size %d: must be at most 100000", c.LoadBatchSize))
	}

	if c.RateLimitPerMinute < 1 {
		errors = append(errors, fmt.Sprintf("invalid rate limit %d: must be at least 1 request per minute", c.RateLimitPerMinute))
	}
	if c.SummaryCacheTTL < time.Second {
		errors = append(errors, fmt.Sprintf("invalid summary cache TTL %v: must be at least 1 second", c.SummaryCacheTTL))
	}
	if c.SummaryCacheSize < 1 {
		errors = append(errors, fmt.Sprintf("invalid summary cache size %d: must be at least 1", c.SummaryCacheSize))
	}
	for _, cidr := range c.TrustedProxies {
		if _, _, err := net.ParseCIDR(cidr); err != nil {
			errors = append(errors, fmt.Sprintf("invalid trusted proxy '%s': must be a CIDR such as 10.0.0.0/8", cidr))
		}
	}

	// Validate AMQP URL if provided
	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPRefreshQueue == "" {
			errors = append(errors, "AMQP refresh queue name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPDashboardQueue == "" {
			errors = append(errors, "AMQP dashboard queue name cannot be empty when AMQP URL is provided")
		}
	}

	// Return combined errors
	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

// getEnvList splits a comma separated variable, dropping blank items.
func getEnvList(key string) []string {
	var out []string
	for _, item := range strings.Split(os.Getenv(key), ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
