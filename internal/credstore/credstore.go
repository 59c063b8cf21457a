// Package credstore persists credentials issued by the multiplexer so
// a prompt-approved client does not need user approval again on its
// next connection. The cache is an embedded SQLite database keyed by
// endpoint.
package credstore

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// Record is one cached credential grant.
type Record struct {
	ID         string
	Endpoint   string
	Cookie     string
	ClientName string
	UpdatedAt  time.Time
}

// Store is the credential cache. Safe for use from one process; the
// database serializes concurrent writers.
type Store struct {
	db *sql.DB
}

// Open opens or creates the cache database at path, creating parent
// directories as needed.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("creating credential cache dir: %w", err)
	}

	db, err := sql.Open("sqlite", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("opening credential cache: %w", err)
	}
	// Single connection for writes to avoid SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrating credential cache: %w", err)
	}
	return s, nil
}

func (s *Store) migrate() error {
	_, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS credentials (
		id TEXT NOT NULL,
		endpoint TEXT PRIMARY KEY,
		cookie TEXT NOT NULL,
		client_name TEXT NOT NULL,
		updated_at DATETIME NOT NULL
	)`)
	return err
}

// Lookup returns the cached grant for an endpoint, or nil when none is
// cached.
func (s *Store) Lookup(endpoint string) (*Record, error) {
	row := s.db.QueryRow(
		`SELECT id, endpoint, cookie, client_name, updated_at FROM credentials WHERE endpoint = ?`,
		endpoint,
	)

	var r Record
	err := row.Scan(&r.ID, &r.Endpoint, &r.Cookie, &r.ClientName, &r.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading cached credential: %w", err)
	}
	return &r, nil
}

// Save upserts the grant for an endpoint.
func (s *Store) Save(endpoint, cookie, clientName string) error {
	_, err := s.db.Exec(
		`INSERT INTO credentials (id, endpoint, cookie, client_name, updated_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(endpoint) DO UPDATE SET
		   cookie = excluded.cookie,
		   client_name = excluded.client_name,
		   updated_at = excluded.updated_at`,
		uuid.NewString(), endpoint, cookie, clientName, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("saving credential: %w", err)
	}
	return nil
}

// Delete removes the cached grant for an endpoint. Removing a grant
// that does not exist is not an error.
func (s *Store) Delete(endpoint string) error {
	if _, err := s.db.Exec(`DELETE FROM credentials WHERE endpoint = ?`, endpoint); err != nil {
		return fmt.Errorf("deleting credential: %w", err)
	}
	return nil
}

// List returns every cached grant, most recently updated first.
func (s *Store) List() ([]Record, error) {
	rows, err := s.db.Query(
		`SELECT id, endpoint, cookie, client_name, updated_at FROM credentials ORDER BY updated_at DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("listing credentials: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var r Record
		if err := rows.Scan(&r.ID, &r.Endpoint, &r.Cookie, &r.ClientName, &r.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning credential row: %w", err)
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}
