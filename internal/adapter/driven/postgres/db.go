// Package postgres is the PostgreSQL implementation of the storage ports,
// selected with OBSIDIAN_WEBHOOK_DB_DRIVER=postgres for deployments that
// already run a relational server instead of the embedded SQLite default.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
)

// DB wraps a single pooled connection set; unlike the SQLite adapter there is
// no reader/writer split because the server handles concurrent writers.
type DB struct {
	Conn *sql.DB
}

// NewDB opens a PostgreSQL connection pool for the given DSN and verifies
// connectivity before returning.
func NewDB(dsn string) (*DB, error) {
	conn, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	conn.SetMaxOpenConns(10)
	conn.SetMaxIdleConns(5)
	conn.SetConnMaxLifetime(30 * time.Minute)

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	return &DB{Conn: conn}, nil
}

// Ping verifies connectivity. Used by the health endpoint.
func (db *DB) Ping(ctx context.Context) error {
	return db.Conn.PingContext(ctx)
}

// Close closes the connection pool.
func (db *DB) Close() error {
	if err := db.Conn.Close(); err != nil {
		return fmt.Errorf("close postgres: %w", err)
	}
	return nil
}
