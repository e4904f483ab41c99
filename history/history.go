// Package history remembers the most recent instructions sent to the
// completion API.
package history

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Limit is the number of instructions kept.
const Limit = 5

// ErrEmptyQuery is returned when saving a blank instruction.
var ErrEmptyQuery = errors.New("query cannot be empty")

// Entry is one remembered instruction.
type Entry struct {
	Query   string    `json:"query"`
	SavedAt time.Time `json:"saved_at"`
}

// Store manages instruction history using SQLite.
type Store struct {
	db *sql.DB
}

// NewStore creates a new history store with the given database path.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store, err := newStore(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

func newStore(db *sql.DB) (*Store, error) {
	store := &Store{db: db}
	if err := store.initSchema(); err != nil {
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return store, nil
}

// initSchema creates the history table if it doesn't exist. The
// autoincrement id orders entries even when timestamps collide.
func (s *Store) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS history (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		query TEXT NOT NULL UNIQUE,
		saved_at TEXT NOT NULL
	);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Save records query as the most recent instruction. A query already in the
// history moves to the front; the oldest entries beyond Limit are dropped.
func (s *Store) Save(query string) error {
	query = strings.TrimSpace(query)
	if query == "" {
		return ErrEmptyQuery
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM history WHERE query = ?", query); err != nil {
		return fmt.Errorf("failed to remove previous entry: %w", err)
	}

	savedAt := time.Now().UTC().Format(time.RFC3339Nano)
	if _, err := tx.Exec("INSERT INTO history (query, saved_at) VALUES (?, ?)", query, savedAt); err != nil {
		return fmt.Errorf("failed to insert entry: %w", err)
	}

	_, err = tx.Exec(`
		DELETE FROM history
		WHERE id NOT IN (SELECT id FROM history ORDER BY id DESC LIMIT ?)
	`, Limit)
	if err != nil {
		return fmt.Errorf("failed to trim history: %w", err)
	}

	return tx.Commit()
}

// List returns the remembered instructions, newest first.
func (s *Store) List() ([]Entry, error) {
	rows, err := s.db.Query("SELECT query, saved_at FROM history ORDER BY id DESC")
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		var e Entry
		var savedAt string
		if err := rows.Scan(&e.Query, &savedAt); err != nil {
			return nil, fmt.Errorf("failed to scan entry: %w", err)
		}
		e.SavedAt = parseTime(savedAt)
		entries = append(entries, e)
	}

	return entries, rows.Err()
}

// Queries returns just the instruction text, newest first.
func (s *Store) Queries() ([]string, error) {
	entries, err := s.List()
	if err != nil {
		return nil, err
	}

	queries := make([]string, len(entries))
	for i, e := range entries {
		queries[i] = e.Query
	}
	return queries, nil
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339Nano, s)
	return t
}
