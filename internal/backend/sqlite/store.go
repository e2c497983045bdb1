// Package sqlite implements service.Service on a local SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"gtodo/internal/service"
)

const schema = `CREATE TABLE IF NOT EXISTS tasks (
    id TEXT PRIMARY KEY,
    text TEXT NOT NULL,
    is_completed INTEGER NOT NULL DEFAULT 0,
    creation_time INTEGER NOT NULL
)`

// Store is a SQLite-backed task store.
type Store struct {
	db *sql.DB

	// mu keeps creation times strictly increasing within this process.
	mu   sync.Mutex
	last int64
	now  func() time.Time
}

// Open opens (creating if needed) the database at path and migrates it.
// Use ":memory:" for a private in-memory database.
func Open(ctx context.Context, path string) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
			return nil, fmt.Errorf("create database dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// One connection: ":memory:" databases are per-connection, and SQLite
	// serializes writers anyway.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	s := &Store{db: db, now: time.Now}
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the database.
func (s *Store) Close() error { return s.db.Close() }

func (s *Store) migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("migrate tasks table: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, `CREATE INDEX IF NOT EXISTS idx_tasks_completed ON tasks(is_completed)`); err != nil {
		return fmt.Errorf("migrate tasks index: %w", err)
	}
	return nil
}

// List implements service.Service.
func (s *Store) List(ctx context.Context, filter service.Filter) ([]service.Task, error) {
	query := `SELECT id, text, is_completed, creation_time FROM tasks`
	var args []any
	switch filter {
	case service.FilterActive:
		query += ` WHERE is_completed = ?`
		args = append(args, 0)
	case service.FilterCompleted:
		query += ` WHERE is_completed = ?`
		args = append(args, 1)
	}
	query += ` ORDER BY creation_time DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query tasks: %w", err)
	}
	defer rows.Close()

	var out []service.Task
	for rows.Next() {
		var (
			t         service.Task
			completed int
			created   int64
		)
		if err := rows.Scan(&t.ID, &t.Text, &completed, &created); err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		t.IsCompleted = completed != 0
		t.CreationTime = time.Unix(0, created).UTC()
		out = append(out, t)
	}
	return out, rows.Err()
}

// Create implements service.Service.
func (s *Store) Create(ctx context.Context, text string) (service.Task, error) {
	t := service.Task{
		ID:           uuid.NewString(),
		Text:         text,
		CreationTime: time.Unix(0, s.nextTimestamp()).UTC(),
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO tasks (id, text, is_completed, creation_time) VALUES (?, ?, 0, ?)`,
		t.ID, t.Text, t.CreationTime.UnixNano())
	if err != nil {
		return service.Task{}, fmt.Errorf("insert task: %w", err)
	}
	return t, nil
}

// Update implements service.Service.
func (s *Store) Update(ctx context.Context, id string, isCompleted bool) error {
	v := 0
	if isCompleted {
		v = 1
	}
	res, err := s.db.ExecContext(ctx, `UPDATE tasks SET is_completed = ? WHERE id = ?`, v, id)
	if err != nil {
		return fmt.Errorf("update task: %w", err)
	}
	return requireRow(res)
}

// Remove implements service.Service.
func (s *Store) Remove(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM tasks WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	return requireRow(res)
}

// ClearCompleted implements service.Service. A single DELETE statement, so
// the count is either complete or zero.
func (s *Store) ClearCompleted(ctx context.Context) (int, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM tasks WHERE is_completed = 1`)
	if err != nil {
		return 0, fmt.Errorf("clear completed: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("clear completed: %w", err)
	}
	return int(n), nil
}

// requireRow maps "no row touched" to service.ErrNotFound. SQLite reports
// matched rows, so an UPDATE that leaves the value unchanged still counts.
func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return service.ErrNotFound
	}
	return nil
}

func (s *Store) nextTimestamp() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	ts := s.now().UnixNano()
	if ts <= s.last {
		ts = s.last + 1
	}
	s.last = ts
	return ts
}

var _ service.Service = (*Store)(nil)
