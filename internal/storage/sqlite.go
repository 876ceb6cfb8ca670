package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/starford/markit/internal/checksum"
	"github.com/starford/markit/internal/models"
)

const kvSchemaSQL = `
CREATE TABLE IF NOT EXISTS kv (
	key        TEXT PRIMARY KEY,
	value      BLOB NOT NULL,
	checksum   TEXT NOT NULL DEFAULT '',
	updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`

// SQLite implements Provider on a single key/value table.
type SQLite struct {
	conn *sql.DB
}

// OpenSQLite opens (or creates) the SQLite database and applies the schema.
func OpenSQLite(dsn string) (*SQLite, error) {
	conn, err := sql.Open("sqlite3", dsn+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("storage: open db: %w", err)
	}
	// One writer keeps replacement ordering identical to call ordering.
	conn.SetMaxOpenConns(1)
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("storage: ping: %w", err)
	}
	if _, err := conn.Exec(kvSchemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("storage: apply schema: %w", err)
	}
	return &SQLite{conn: conn}, nil
}

// List returns metadata for every stored key, sorted by key.
func (s *SQLite) List() ([]models.EntryMetadata, error) {
	rows, err := s.conn.Query(`SELECT key, checksum, length(value), updated_at FROM kv ORDER BY key`)
	if err != nil {
		return nil, fmt.Errorf("storage: list: %w", err)
	}
	defer rows.Close()

	var out []models.EntryMetadata
	for rows.Next() {
		var m models.EntryMetadata
		if err := rows.Scan(&m.Key, &m.Checksum, &m.Size, &m.UpdatedAt); err != nil {
			return nil, fmt.Errorf("storage: list: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// Read returns the value stored under key.
func (s *SQLite) Read(key string) ([]byte, error) {
	if err := ValidateKey(key); err != nil {
		return nil, err
	}
	var value []byte
	err := s.conn.QueryRow(`SELECT value FROM kv WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("storage: read %s: %w", key, os.ErrNotExist)
	}
	if err != nil {
		return nil, fmt.Errorf("storage: read %s: %w", key, err)
	}
	return value, nil
}

// Write replaces the value stored under key in a single statement.
func (s *SQLite) Write(key string, value []byte) error {
	if err := ValidateKey(key); err != nil {
		return err
	}
	_, err := s.conn.Exec(`
		INSERT INTO kv (key, value, checksum, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			value      = excluded.value,
			checksum   = excluded.checksum,
			updated_at = excluded.updated_at
	`, key, value, checksum.Sum(value), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("storage: write %s: %w", key, err)
	}
	return nil
}

// Delete removes key.
func (s *SQLite) Delete(key string) error {
	if err := ValidateKey(key); err != nil {
		return err
	}
	res, err := s.conn.Exec(`DELETE FROM kv WHERE key = ?`, key)
	if err != nil {
		return fmt.Errorf("storage: delete %s: %w", key, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("storage: delete %s: %w", key, os.ErrNotExist)
	}
	return nil
}

// Move renames oldKey to newKey within a transaction.
func (s *SQLite) Move(oldKey, newKey string) error {
	if err := ValidateKey(oldKey); err != nil {
		return err
	}
	if err := ValidateKey(newKey); err != nil {
		return err
	}
	tx, err := s.conn.Begin()
	if err != nil {
		return fmt.Errorf("storage: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	if _, err := tx.Exec(`DELETE FROM kv WHERE key = ?`, newKey); err != nil {
		return fmt.Errorf("storage: move: %w", err)
	}
	res, err := tx.Exec(`UPDATE kv SET key = ? WHERE key = ?`, newKey, oldKey)
	if err != nil {
		return fmt.Errorf("storage: move: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("storage: move %s: %w", oldKey, os.ErrNotExist)
	}
	return tx.Commit()
}

// Close closes the underlying database connection.
func (s *SQLite) Close() error {
	return s.conn.Close()
}
