package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

// PostgresKV implements KV on a single kv_records table with a JSONB
// value column. Prefix queries use an index-friendly LIKE.
type PostgresKV struct {
	db      *sqlx.DB
	timeout time.Duration
}

const kvSchema = `
CREATE TABLE IF NOT EXISTS kv_records (
    key        TEXT PRIMARY KEY,
    value      JSONB NOT NULL,
    updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS kv_records_key_prefix_idx ON kv_records (key text_pattern_ops);
`

// NewPostgresKV connects to Postgres and ensures the table exists.
func NewPostgresKV(dsn string, timeout time.Duration) (*PostgresKV, error) {
	db, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if _, err := db.ExecContext(ctx, kvSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("ensure kv_records table: %w", err)
	}

	return &PostgresKV{db: db, timeout: timeout}, nil
}

// Close releases the connection pool.
func (p *PostgresKV) Close() error {
	return p.db.Close()
}

// Get returns the stored value for key.
func (p *PostgresKV) Get(ctx context.Context, key string) ([]byte, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	var value []byte
	err := p.db.QueryRowxContext(ctx,
		`SELECT value FROM kv_records WHERE key = $1`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("select kv record %s: %w", key, err)
	}
	return value, true, nil
}

// Set upserts value under key.
func (p *PostgresKV) Set(ctx context.Context, key string, value []byte) error {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	_, err := p.db.ExecContext(ctx, `
		INSERT INTO kv_records (key, value, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = now()`,
		key, value)
	if err != nil {
		return fmt.Errorf("upsert kv record %s: %w", key, err)
	}
	return nil
}

// Query returns all entries under prefix.
func (p *PostgresKV) Query(ctx context.Context, prefix string) (map[string][]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	rows, err := p.db.QueryxContext(ctx,
		`SELECT key, value FROM kv_records WHERE key LIKE $1 || '%'`, prefix)
	if err != nil {
		return nil, fmt.Errorf("query kv records %s: %w", prefix, err)
	}
	defer rows.Close()

	out := make(map[string][]byte)
	for rows.Next() {
		var key string
		var value []byte
		if err := rows.Scan(&key, &value); err != nil {
			return nil, fmt.Errorf("scan kv record: %w", err)
		}
		out[key] = value
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate kv records: %w", err)
	}
	return out, nil
}
