package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// Open connects to Postgres through the pgx database/sql driver and checks
// the connection.
func Open(ctx context.Context, dsn, environment string) (*sql.DB, error) {
	db, err := sql.Open("pgx", prepareDSN(dsn, environment))
	if err != nil {
		return nil, fmt.Errorf("failed to open DB connection: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping DB: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxIdleTime(5 * time.Minute)
	return db, nil
}

// prepareDSN disables SSL for local development and, elsewhere, switches to
// the simple query protocol so transaction poolers such as pgbouncer work.
func prepareDSN(dsn, environment string) string {
	if environment == "development" {
		if !strings.Contains(dsn, "sslmode") {
			dsn = appendParam(dsn, "sslmode=disable")
		}
		return dsn
	}
	if !strings.Contains(dsn, "prefer_simple_protocol") {
		dsn = appendParam(dsn, "prefer_simple_protocol=true")
	}
	return dsn
}

func appendParam(dsn, param string) string {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		if strings.Contains(dsn, "?") {
			return dsn + "&" + param
		}
		return dsn + "?" + param
	}
	return dsn + " " + param
}
