package notes

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

const defaultDBName = "notes.db"

// NoteRecord is a free-text note attached to a phone number. Notes outlive
// call sessions; they are the only cross-session state kept locally.
type NoteRecord struct {
	PhoneNumber string
	Text        string
	UpdatedAt   time.Time
}

// Store persists notes in a local SQLite file under the workspace.
type Store struct {
	db *sql.DB
}

func dbPath(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, ".softphone", defaultDBName)
}

// Open opens the note database, creating the workspace dir and schema when
// missing.
func Open(workspace string) (*Store, error) {
	dir := filepath.Dir(dbPath(workspace))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}

	dsn := fmt.Sprintf("file:%s?cache=shared", dbPath(workspace))
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}

	store := &Store{db: db}
	if err := store.ensureSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

func (s *Store) ensureSchema() error {
	_, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS notes (
		phone_number TEXT PRIMARY KEY,
		body TEXT NOT NULL,
		updated_at TEXT NOT NULL
	)`)
	return err
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Get returns the note for a number; the empty string when none is stored.
func (s *Store) Get(ctx context.Context, phoneNumber string) (string, error) {
	var body string
	err := s.db.QueryRowContext(ctx,
		`SELECT body FROM notes WHERE phone_number=?`, phoneNumber).Scan(&body)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return body, nil
}

// Put creates or replaces the note for a number.
func (s *Store) Put(ctx context.Context, phoneNumber, body string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO notes(phone_number, body, updated_at) VALUES (?,?,?)
		 ON CONFLICT(phone_number) DO UPDATE SET body=excluded.body, updated_at=excluded.updated_at`,
		phoneNumber, body, time.Now().UTC().Format(time.RFC3339))
	return err
}

// List returns all stored notes, most recently updated first.
func (s *Store) List(ctx context.Context) ([]NoteRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT phone_number, body, updated_at FROM notes ORDER BY updated_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []NoteRecord
	for rows.Next() {
		var rec NoteRecord
		var updated string
		if err := rows.Scan(&rec.PhoneNumber, &rec.Text, &updated); err != nil {
			return nil, err
		}
		rec.UpdatedAt, _ = time.Parse(time.RFC3339, updated)
		records = append(records, rec)
	}
	return records, rows.Err()
}
