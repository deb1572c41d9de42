package kv

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite" // Registers the sqlite driver
)

const schema = `
-- Single key/value table. One row per logical record ("profiles",
-- "standardsData", ...); values are JSON text owned by the callers.
CREATE TABLE IF NOT EXISTS kv (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL
);
`

// SQLite is a Store backed by a single-file SQLite database.
type SQLite struct {
	conn *sql.DB
}

// Open creates a new database connection and ensures the schema is up to date.
func Open(dsn string) (*SQLite, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return &SQLite{conn: db}, nil
}

// Close closes the database connection.
func (s *SQLite) Close() error {
	return s.conn.Close()
}

// Get retrieves the value stored under key.
func (s *SQLite) Get(key string) (string, bool, error) {
	var value string
	row := s.conn.QueryRow(`SELECT value FROM kv WHERE key = ?`, key)
	if err := row.Scan(&value); err != nil {
		if err == sql.ErrNoRows {
			return "", false, nil
		}
		return "", false, fmt.Errorf("failed to get key %s: %w", key, err)
	}
	return value, true, nil
}

// Set stores value under key, replacing any previous value.
func (s *SQLite) Set(key, value string) error {
	_, err := s.conn.Exec(`
		INSERT INTO kv (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	if err != nil {
		return fmt.Errorf("failed to set key %s: %w", key, err)
	}
	return nil
}

// Delete removes key. Deleting a missing key is not an error.
func (s *SQLite) Delete(key string) error {
	if _, err := s.conn.Exec(`DELETE FROM kv WHERE key = ?`, key); err != nil {
		return fmt.Errorf("failed to delete key %s: %w", key, err)
	}
	return nil
}
