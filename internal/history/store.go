// Package history persists per-unit build records so failed shader builds
// can be inspected after the fact. Backed by SQLite; use ":memory:" for an
// ephemeral store.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// Record is one completed shader build.
type Record struct {
	ID       string
	Name     string
	Stage    string
	Status   string
	Polls    int
	Duration time.Duration
	Log      string
	Created  time.Time
}

// Store implements build-record persistence using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// Open creates or opens a build history store.
// Use ":memory:" for an in-memory database, or a file path for persistent storage.
func Open(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	store := &Store{db: db}
	if err := store.initialize(); err != nil {
		_ = db.Close() // Best effort cleanup on initialization error
		return nil, fmt.Errorf("initialize schema: %w", err)
	}
	return store, nil
}

func (s *Store) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS builds (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		stage TEXT NOT NULL,
		status TEXT NOT NULL,
		polls INTEGER NOT NULL,
		duration_us INTEGER NOT NULL,
		log TEXT,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_builds_name ON builds(name);
	CREATE INDEX IF NOT EXISTS idx_builds_created_at ON builds(created_at);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Append stores a new build record. A missing ID is assigned a fresh UUID.
func (s *Store) Append(ctx context.Context, rec Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.Created.IsZero() {
		rec.Created = time.Now()
	}

	_, err := s.db.ExecContext(ctx,
		"INSERT INTO builds (id, name, stage, status, polls, duration_us, log, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?)",
		rec.ID, rec.Name, rec.Stage, rec.Status, rec.Polls, rec.Duration.Microseconds(), rec.Log, rec.Created.Unix(),
	)
	if err != nil {
		return fmt.Errorf("insert build record: %w", err)
	}
	return nil
}

// Recent returns the latest records, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, name, stage, status, polls, duration_us, log, created_at FROM builds ORDER BY created_at DESC, id LIMIT ?",
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query builds: %w", err)
	}
	defer rows.Close()

	return scanRecords(rows)
}

// ByName returns every record for a shader name, newest first.
func (s *Store) ByName(ctx context.Context, name string) ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT id, name, stage, status, polls, duration_us, log, created_at FROM builds WHERE name = ? ORDER BY created_at DESC, id",
		name,
	)
	if err != nil {
		return nil, fmt.Errorf("query builds: %w", err)
	}
	defer rows.Close()

	return scanRecords(rows)
}

func scanRecords(rows *sql.Rows) ([]Record, error) {
	var records []Record
	for rows.Next() {
		var rec Record
		var durationUS, createdUnix int64
		if err := rows.Scan(&rec.ID, &rec.Name, &rec.Stage, &rec.Status, &rec.Polls, &durationUS, &rec.Log, &createdUnix); err != nil {
			return nil, fmt.Errorf("scan build record: %w", err)
		}
		rec.Duration = time.Duration(durationUS) * time.Microsecond
		rec.Created = time.Unix(createdUnix, 0)
		records = append(records, rec)
	}
	return records, rows.Err()
}

// Close releases the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}
