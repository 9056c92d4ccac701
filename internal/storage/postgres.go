package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/lib/pq"

	"github.com/affiliatehq/reporting-service/internal/config"
)

// PostgreSQLStore implements Store using a single key/value table
type PostgreSQLStore struct {
	db    *sql.DB
	table string
}

// NewPostgreSQLStore creates a new PostgreSQL store instance
func NewPostgreSQLStore(cfg config.StorageConfig) (*PostgreSQLStore, error) {
	if cfg.PostgresURI == "" {
		return nil, fmt.Errorf("postgresql storage requires POSTGRES_URI")
	}

	db, err := sql.Open("postgres", cfg.PostgresURI)
	if err != nil {
		return nil, fmt.Errorf("failed to open PostgreSQL connection: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping PostgreSQL: %w", err)
	}

	store := &PostgreSQLStore{db: db, table: cfg.TableName}
	if err := store.ensureTable(); err != nil {
		return nil, fmt.Errorf("failed to ensure table exists: %w", err)
	}

	return store, nil
}

// ensureTable creates the key/value table if it doesn't exist
func (p *PostgreSQLStore) ensureTable() error {
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			key   TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)`, p.table)
	_, err := p.db.Exec(query)
	return err
}

// Get retrieves the value stored under key
func (p *PostgreSQLStore) Get(ctx context.Context, key string) (string, bool, error) {
	query := fmt.Sprintf("SELECT value FROM %s WHERE key = $1", p.table)

	var value string
	err := p.db.QueryRowContext(ctx, query, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to get key %s: %w", key, err)
	}
	return value, true, nil
}

// Put stores value under key
func (p *PostgreSQLStore) Put(ctx context.Context, key string, value string) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (key, value) VALUES ($1, $2)
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value`, p.table)

	if _, err := p.db.ExecContext(ctx, query, key, value); err != nil {
		return fmt.Errorf("failed to put key %s: %w", key, err)
	}
	return nil
}

// Delete removes key from the table
func (p *PostgreSQLStore) Delete(ctx context.Context, key string) error {
	query := fmt.Sprintf("DELETE FROM %s WHERE key = $1", p.table)

	if _, err := p.db.ExecContext(ctx, query, key); err != nil {
		return fmt.Errorf("failed to delete key %s: %w", key, err)
	}
	return nil
}

// Close closes the database connection
func (p *PostgreSQLStore) Close() error {
	return p.db.Close()
}
