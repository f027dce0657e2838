package database

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/noah-isme/commerce-metrics-api/pkg/config"
)

// ApplicationName tags snapshot sessions in pg_stat_activity.
const ApplicationName = "commerce-metrics-api"

const pingTimeout = 10 * time.Second

// PostgresDSN renders the lib/pq connection string for cfg. Sessions are opened read-only and
// tagged with ApplicationName.
func PostgresDSN(cfg config.DatabaseConfig) string {
	params := [][2]string{
		{"host", cfg.Host},
		{"port", strconv.Itoa(cfg.Port)},
		{"user", cfg.User},
		{"password", cfg.Password},
		{"dbname", cfg.Name},
		{"sslmode", cfg.SSLMode},
		{"application_name", ApplicationName},
		{"default_transaction_read_only", "on"},
	}
	if cfg.StatementTimeout > 0 {
		params = append(params, [2]string{"statement_timeout", strconv.FormatInt(cfg.StatementTimeout.Milliseconds(), 10)})
	}

	parts := make([]string, 0, len(params))
	for _, p := range params {
		if p[1] == "" && p[0] != "password" {
			continue
		}
		parts = append(parts, p[0]+"="+quoteDSNValue(p[1]))
	}
	return strings.Join(parts, " ")
}

// quoteDSNValue quotes values lib/pq would otherwise split or misread.
func quoteDSNValue(v string) string {
	if v != "" && !strings.ContainsAny(v, " '\\") {
		return v
	}
	v = strings.ReplaceAll(v, `\`, `\\`)
	v = strings.ReplaceAll(v, `'`, `\'`)
	return "'" + v + "'"
}

// NewPostgres opens the PostgreSQL snapshot source and checks it is reachable.
func NewPostgres(cfg config.DatabaseConfig) (*sqlx.DB, error) {
	db, err := sqlx.Open("postgres", PostgresDSN(cfg))
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	db.SetConnMaxIdleTime(5 * time.Minute)
	db.SetConnMaxLifetime(30 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres %s:%d/%s: %w", cfg.Host, cfg.Port, cfg.Name, err)
	}
	return db, nil
}
