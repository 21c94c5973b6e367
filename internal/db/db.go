package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/marcboeker/go-duckdb"
)

// ErrNotConnected is returned by every storage operation after Close (or
// before Open). Callers decide whether to reopen; nothing retries implicitly.
var ErrNotConnected = errors.New("database not connected")

// DB wraps the embedded DuckDB handle. The handle is single-caller by
// contract: concurrent use must go through independent handles or an
// external lock.
type DB struct {
	path string
	conn *sql.DB
}

// Open opens (creating if needed) the DuckDB file at path and bootstraps the
// schema. An empty path opens an in-memory database, used by tests.
func Open(path string) (*DB, error) {
	if path != "" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create database dir: %w", err)
		}
	}

	conn, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, fmt.Errorf("open duckdb: %w", err)
	}

	// One caller at a time per handle.
	conn.SetMaxOpenConns(1)
	conn.SetConnMaxIdleTime(30 * time.Second)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}

	d := &DB{path: path, conn: conn}
	if err := d.initSchema(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}

	return d, nil
}

// Close releases the handle. Subsequent operations fail with ErrNotConnected.
func (d *DB) Close() error {
	if d.conn == nil {
		return nil
	}
	err := d.conn.Close()
	d.conn = nil
	return err
}

// Conn returns the live handle, or ErrNotConnected after Close.
func (d *DB) Conn() (*sql.DB, error) {
	if d == nil || d.conn == nil {
		return nil, ErrNotConnected
	}
	return d.conn, nil
}

func (d *DB) Path() string {
	return d.path
}

// Ping reports whether the handle is live and the engine responsive.
func (d *DB) Ping(ctx context.Context) error {
	conn, err := d.Conn()
	if err != nil {
		return err
	}
	return conn.PingContext(ctx)
}

var schema = []string{
	`CREATE SEQUENCE IF NOT EXISTS metals_prices_id_seq`,

	`CREATE TABLE IF NOT EXISTS metals_prices (
		id BIGINT PRIMARY KEY DEFAULT nextval('metals_prices_id_seq'),
		ticker VARCHAR NOT NULL,
		metal_name VARCHAR NOT NULL,
		price DOUBLE NOT NULL,
		currency VARCHAR NOT NULL,
		timestamp TIMESTAMP NOT NULL,
		bid DOUBLE,
		ask DOUBLE,
		volume DOUBLE,
		open_price DOUBLE,
		high DOUBLE,
		low DOUBLE,
		previous_close DOUBLE,
		created_at TIMESTAMP DEFAULT current_timestamp
	)`,

	`CREATE INDEX IF NOT EXISTS idx_metals_prices_timestamp
		ON metals_prices(timestamp)`,

	`CREATE INDEX IF NOT EXISTS idx_metals_prices_metal_timestamp
		ON metals_prices(metal_name, timestamp)`,

	`CREATE TABLE IF NOT EXISTS alerts (
		id VARCHAR PRIMARY KEY,
		metal_name VARCHAR NOT NULL,
		alert_type VARCHAR NOT NULL,
		threshold_value DOUBLE NOT NULL,
		current_value DOUBLE NOT NULL,
		triggered_at TIMESTAMP NOT NULL,
		message VARCHAR NOT NULL,
		is_active BOOLEAN DEFAULT true,
		created_at TIMESTAMP DEFAULT current_timestamp
	)`,

	`CREATE TABLE IF NOT EXISTS daily_summaries (
		date DATE NOT NULL,
		metal_name VARCHAR NOT NULL,
		open_price DOUBLE,
		high_price DOUBLE,
		low_price DOUBLE,
		close_price DOUBLE,
		avg_price DOUBLE,
		total_volume DOUBLE,
		price_change DOUBLE,
		price_change_pct DOUBLE,
		created_at TIMESTAMP DEFAULT current_timestamp,
		PRIMARY KEY (date, metal_name)
	)`,

	`CREATE TABLE IF NOT EXISTS users (
		id VARCHAR PRIMARY KEY,
		username VARCHAR UNIQUE NOT NULL,
		email VARCHAR UNIQUE NOT NULL,
		password_hash VARCHAR NOT NULL,
		salt VARCHAR NOT NULL,
		created_at TIMESTAMP NOT NULL,
		last_login TIMESTAMP,
		is_active BOOLEAN DEFAULT true,
		role VARCHAR DEFAULT 'user'
	)`,

	`CREATE TABLE IF NOT EXISTS user_sessions (
		session_id VARCHAR PRIMARY KEY,
		user_id VARCHAR NOT NULL,
		created_at TIMESTAMP NOT NULL,
		expires_at TIMESTAMP NOT NULL,
		is_active BOOLEAN DEFAULT true
	)`,

	`CREATE INDEX IF NOT EXISTS idx_sessions_user_id
		ON user_sessions(user_id)`,

	`CREATE INDEX IF NOT EXISTS idx_sessions_expires
		ON user_sessions(expires_at)`,
}

func (d *DB) initSchema(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := d.conn.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("schema statement failed: %w", err)
		}
	}
	return nil
}
