package datasource

import (
	"database/sql"

	_ "github.com/marcboeker/go-duckdb"
	"go.uber.org/zap"
)

// NewDuckDBSource opens a SQLSource against a DuckDB file or in-memory
// database via the native go-duckdb driver, independent of the gorm pool
// the generic SQL backend shares with the rest of the application. DuckDB
// has no gorm dialector, so this bypasses DB() entirely; callers must use
// RawDB().
func NewDuckDBSource(cfg SQLConfig, logger *zap.Logger) (*SQLSource, error) {
	target := cfg.ResolveDuckDBTarget()
	sqlDB, err := sql.Open("duckdb", target)
	if err != nil {
		return nil, err
	}
	if err := sqlDB.Ping(); err != nil {
		sqlDB.Close()
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
		driver: "duckdb",
		sqlDB:  sqlDB,
		logger: logger.With(zap.String("component", "datasource_duckdb"), zap.String("target", target)),
	}, nil
}
