package kvstore

import (
	"database/sql"
	"fmt"
)

// SQLite persists keys in the embedded database so guest identity and cached
// conversations survive restarts. The table is created by
// infrastructure.SQLiteClient.Migrate.
type SQLite struct {
	db *sql.DB
}

func NewSQLite(db *sql.DB) *SQLite {
	return &SQLite{db: db}
}

func (s *SQLite) Get(key string) (string, bool) {
	var value string
	err := s.db.QueryRow("SELECT value FROM kv_store WHERE key = ?", key).Scan(&value)
	if err != nil {
		return "", false
	}
	return value, true
}

func (s *SQLite) Set(key, value string) error {
	_, err := s.db.Exec(`
		INSERT INTO kv_store (key, value, updated_at)
		VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT (key) DO UPDATE SET value = excluded.value, updated_at = CURRENT_TIMESTAMP
	`, key, value)
	if err != nil {
		return fmt.Errorf("kvstore set %q: %w", key, err)
	}
	return nil
}

func (s *SQLite) Delete(key string) error {
	_, err := s.db.Exec("DELETE FROM kv_store WHERE key = ?", key)
	if err != nil {
		return fmt.Errorf("kvstore delete %q: %w", key, err)
	}
	return nil
}

func (s *SQLite) DeleteAll(prefix string) error {
	_, err := s.db.Exec("DELETE FROM kv_store WHERE key LIKE ? || '%'", prefix)
	if err != nil {
		return fmt.Errorf("kvstore delete prefix %q: %w", prefix, err)
	}
	return nil
}
