package datasource

import (
	"context"
	"database/sql"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// SQLConfig configures a SQL connection pool, mirroring
// internal/database.PoolConfig.
type SQLConfig struct {
	Driver          string // postgres|mysql|sqlite
	MaxIdleConns    int
	MaxOpenConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	// DatabasePath/Database/InMemory implement the DuckDB target selection
	// precedence: database_path > database > :memory:.
	DatabasePath string
	Database     string
}

// ResolveDuckDBTarget implements the DuckDB file-vs-memory precedence
// rule: database_path wins over database, which wins over an in-memory
// database.
func (c SQLConfig) ResolveDuckDBTarget() string {
	if c.DatabasePath != "" {
		return c.DatabasePath
	}
	if c.Database != "" {
		return c.Database
	}
	return ":memory:"
}

// SQLSource is a DataSource backed by a *gorm.DB, shared with
// internal/database.PoolManager's connection settings so gateway adapters
// and the rest of the application draw from the same pool semantics.
type SQLSource struct {
	driver string
	db     *gorm.DB
	sqlDB  *sql.DB
	logger *zap.Logger
}

// NewSQLSource wraps an already-opened *gorm.DB as a DataSource, applying
// the given pool tuning.
func NewSQLSource(driver string, db *gorm.DB, cfg SQLConfig, logger *zap.Logger) (*SQLSource, error) {
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	if cfg.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}
	if cfg.ConnMaxIdleTime > 0 {
		sqlDB.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)
	}
	return &SQLSource{
		driver: driver,
		db:     db,
		sqlDB:  sqlDB,
		logger: logger.With(zap.String("component", "datasource_sql"), zap.String("driver", driver)),
	}, nil
}

// Kind implements DataSource, reporting "duckdb" for sources opened via
// NewDuckDBSource and "sql" for every other driver.
func (s *SQLSource) Kind() string {
	if s.driver == "duckdb" {
		return "duckdb"
	}
	return "sql"
}

// Driver returns the configured driver name (postgres|mysql|sqlite),
// needed by callers that must pick a bindvar style for named-parameter
// rewriting.
func (s *SQLSource) Driver() string { return s.driver }

// DB returns the underlying *gorm.DB for query building.
func (s *SQLSource) DB() *gorm.DB { return s.db }

// RawDB returns the underlying *sql.DB for drivers that need the native
// bind style directly (e.g. DuckDB positional rewriting).
func (s *SQLSource) RawDB() *sql.DB { return s.sqlDB }

// Ping implements DataSource.
func (s *SQLSource) Ping(ctx context.Context) error {
	return s.sqlDB.PingContext(ctx)
}

// Close implements DataSource.
func (s *SQLSource) Close() error {
	return s.sqlDB.Close()
}
