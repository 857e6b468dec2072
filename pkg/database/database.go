// Package database opens the traced Postgres pool shared by the CRM services.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/nhatthm/otelsql"
	semconv "go.opentelemetry.io/otel/semconv/v1.4.0"
)

// Config describes how to reach the CRM database and size its pool.
type Config struct {
	User            string
	Password        string
	Host            string
	Name            string
	MaxIdleConns    int
	MaxOpenConns    int
	ConnMaxLifetime time.Duration
	DisableTLS      bool
}

// URL is the lib/pq connection string. Sessions always run in UTC so stored
// timestamps round-trip unchanged.
func (cfg Config) URL() string {
	q := url.Values{}
	q.Set("sslmode", "require")
	if cfg.DisableTLS {
		q.Set("sslmode", "disable")
	}
	q.Set("timezone", "utc")

	return (&url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(cfg.User, cfg.Password),
		Host:     cfg.Host,
		Path:     cfg.Name,
		RawQuery: q.Encode(),
	}).String()
}

// Open returns a pool whose queries produce spans and whose connection stats
// are exported as otel metrics. No connection is made until first use.
func Open(cfg Config) (*sqlx.DB, error) {
	driver, err := otelsql.Register("postgres",
		otelsql.AllowRoot(),
		otelsql.TraceQueryWithoutArgs(),
		otelsql.TraceRowsClose(),
		otelsql.TraceRowsAffected(),
		otelsql.WithDatabaseName(cfg.Name),
		otelsql.WithSystem(semconv.DBSystemPostgreSQL),
	)
	if err != nil {
		return nil, fmt.Errorf("registering traced driver: %w", err)
	}

	pool, err := sql.Open(driver, cfg.URL())
	if err != nil {
		return nil, fmt.Errorf("opening pool: %w", err)
	}
	pool.SetMaxIdleConns(cfg.MaxIdleConns)
	pool.SetMaxOpenConns(cfg.MaxOpenConns)
	pool.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	if err := otelsql.RecordStats(pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("recording pool stats: %w", err)
	}

	return sqlx.NewDb(pool, "postgres"), nil
}

// StatusCheck waits until the database answers a ping and a trivial query.
// Pings are retried with a growing delay until ctx is done.
func StatusCheck(ctx context.Context, db *sqlx.DB) error {
	for attempt := 1; ; attempt++ {
		err := db.PingContext(ctx)
		if err == nil {
			break
		}

		wait := time.NewTimer(time.Duration(attempt) * 100 * time.Millisecond)
		select {
		case <-ctx.Done():
			wait.Stop()
			return fmt.Errorf("database not ready: %w", err)
		case <-wait.C:
		}
	}

	var ok bool
	if err := db.QueryRowContext(ctx, `SELECT true`).Scan(&ok); err != nil {
		return fmt.Errorf("database round trip: %w", err)
	}
	return nil
}
