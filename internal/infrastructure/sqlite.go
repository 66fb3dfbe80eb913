package infrastructure

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// SQLiteClient owns the embedded database holding the key-value store and the
// dashboard user accounts. Everything conversational lives behind the remote
// backend; this database is strictly device-local state.
type SQLiteClient struct {
	DB *sql.DB
}

func NewSQLiteClient(path string) (*SQLiteClient, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("unable to open sqlite database: %w", err)
	}

	// modernc sqlite is single-writer; serialize access through one conn.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}

	client := &SQLiteClient{DB: db}
	if err := client.Migrate(); err != nil {
		return nil, fmt.Errorf("migration failed: %w", err)
	}
	return client, nil
}

func (c *SQLiteClient) Migrate() error {
	_, err := c.DB.Exec(`
		CREATE TABLE IF NOT EXISTS kv_store (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		);
	`)
	if err != nil {
		return fmt.Errorf("create kv_store table: %w", err)
	}

	_, err = c.DB.Exec(`
		CREATE TABLE IF NOT EXISTS users (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			username TEXT UNIQUE NOT NULL,
			password_hash TEXT NOT NULL,
			role TEXT DEFAULT 'agent',
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		);
	`)
	if err != nil {
		return fmt.Errorf("create users table: %w", err)
	}

	return nil
}

func (c *SQLiteClient) Close() error {
	return c.DB.Close()
}
