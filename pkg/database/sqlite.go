package database

import (
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/noah-isme/commerce-metrics-api/pkg/config"
)

// SQLiteDSN renders a read-only modernc.org/sqlite connection string for path.
func SQLiteDSN(path string) string {
	return fmt.Sprintf("file:%s?mode=ro&_pragma=busy_timeout(5000)", path)
}

// NewSQLite opens a read-only SQLite database holding the commerce tables.
func NewSQLite(path string) (*sqlx.DB, error) {
	db, err := sqlx.Open("sqlite", SQLiteDSN(path))
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// Open connects to the SQL data source named by cfg.Data.Source.
func Open(cfg *config.Config) (*sqlx.DB, error) {
	switch cfg.Data.Source {
	case config.DataSourcePostgres:
		return NewPostgres(cfg.Database)
	case config.DataSourceSQLite:
		return NewSQLite(cfg.Data.SQLitePath)
	default:
		return nil, fmt.Errorf("data source %q is not backed by a database", cfg.Data.Source)
	}
}
