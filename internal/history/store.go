package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// FileName is the journal database file inside the application data directory.
const FileName = "supervisor.db"

// Event is one recorded lifecycle transition.
type Event struct {
	ID      int64
	RunID   string
	Service string
	State   string
	PID     int
	Detail  string
	At      time.Time
}

// Store persists lifecycle events in SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// Open creates or opens the journal at path and applies migrations.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("history database path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create history directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// The shell and the status command may open the journal at the same time.
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	} {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, err)
		}
	}

	store := &Store{db: db, path: path}
	if err := store.applyMigrations(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// OpenReadOnly opens an existing journal without creating, migrating, or
// otherwise writing to it. Record and Prune fail on the returned Store.
func OpenReadOnly(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("history database path is empty")
	}
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("stat history database: %w", err)
	}
	uriPath := filepath.ToSlash(path)
	if !strings.HasPrefix(uriPath, "/") {
		uriPath = "/" + uriPath
	}
	dsn := (&url.URL{Scheme: "file", Path: uriPath, RawQuery: "mode=ro"}).String()
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply pragma busy_timeout: %w", err)
	}
	return &Store{db: db, path: path}, nil
}

// Path returns the database file location.
func (s *Store) Path() string { return s.path }

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Record appends an event. A zero At is stamped with the current time.
func (s *Store) Record(ctx context.Context, event Event) error {
	if event.RunID == "" || event.Service == "" || event.State == "" {
		return errors.New("history event requires run id, service, and state")
	}
	at := event.At
	if at.IsZero() {
		at = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO lifecycle_events (run_id, service, state, pid, detail, created_at)
         VALUES (?, ?, ?, ?, ?, ?)`,
		event.RunID, event.Service, event.State, event.PID, event.Detail, at.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("record lifecycle event: %w", err)
	}
	return nil
}

// LatestRunID returns the run that recorded the newest event, or "" when the
// journal is empty.
func (s *Store) LatestRunID(ctx context.Context) (string, error) {
	var runID string
	err := s.db.QueryRowContext(ctx, "SELECT run_id FROM lifecycle_events ORDER BY id DESC LIMIT 1").Scan(&runID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("query latest run: %w", err)
	}
	return runID, nil
}

// RunEvents returns the events of one run in insertion order.
func (s *Store) RunEvents(ctx context.Context, runID string) ([]Event, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, run_id, service, state, pid, detail, created_at
         FROM lifecycle_events WHERE run_id = ? ORDER BY id`, runID)
	if err != nil {
		return nil, fmt.Errorf("query run events: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var (
			event     Event
			createdAt string
		)
		if err := rows.Scan(&event.ID, &event.RunID, &event.Service, &event.State, &event.PID, &event.Detail, &createdAt); err != nil {
			return nil, fmt.Errorf("scan run event: %w", err)
		}
		if parsed, err := time.Parse(time.RFC3339Nano, createdAt); err == nil {
			event.At = parsed
		}
		events = append(events, event)
	}
	return events, rows.Err()
}

// Prune deletes events belonging to all but the newest keepRuns runs.
func (s *Store) Prune(ctx context.Context, keepRuns int) (int64, error) {
	if keepRuns < 1 {
		keepRuns = 1
	}
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM lifecycle_events WHERE run_id NOT IN (
             SELECT run_id FROM lifecycle_events
             GROUP BY run_id ORDER BY MAX(id) DESC LIMIT ?
         )`, keepRuns)
	if err != nil {
		return 0, fmt.Errorf("prune lifecycle events: %w", err)
	}
	return res.RowsAffected()
}
