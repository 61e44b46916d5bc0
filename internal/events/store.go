// Package events persists alerts and incident recordings in SQLite.
package events

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// Alert is one emitted low head count alert
type Alert struct {
	ID          string    `json:"id"`
	OccurredAt  time.Time `json:"occurred_at"`
	PeopleCount int       `json:"people_count"`
	MinPeople   int       `json:"min_people"`
	Message     string    `json:"message"`
}

// Recording is one closed incident recording
type Recording struct {
	ID        string    `json:"id"`
	Path      string    `json:"path"`
	StartedAt time.Time `json:"started_at"`
	StoppedAt time.Time `json:"stopped_at"`
	Frames    uint64    `json:"frames"`
}

// Store is the SQLite event log
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the database at path and migrates it
func Open(path string) (*Store, error) {
	// Pragmas go in the DSN so every pooled connection gets them
	dsn := "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}

	s := &Store{db: db}
	if err := s.MigrateUp(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the database
func (s *Store) Close() error {
	return s.db.Close()
}

// RecordAlert inserts an alert, assigning an ID if empty
func (s *Store) RecordAlert(ctx context.Context, a Alert) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO alerts (id, occurred_at, people_count, min_people, message) VALUES (?, ?, ?, ?, ?)`,
		a.ID, a.OccurredAt.UnixMilli(), a.PeopleCount, a.MinPeople, a.Message)
	if err != nil {
		return fmt.Errorf("failed to insert alert: %w", err)
	}
	return nil
}

// RecordRecording inserts a closed recording, assigning an ID if empty
func (s *Store) RecordRecording(ctx context.Context, r Recording) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO recordings (id, path, started_at, stopped_at, frames) VALUES (?, ?, ?, ?, ?)`,
		r.ID, r.Path, r.StartedAt.UnixMilli(), r.StoppedAt.UnixMilli(), int64(r.Frames))
	if err != nil {
		return fmt.Errorf("failed to insert recording: %w", err)
	}
	return nil
}

// RecentAlerts returns up to limit alerts, newest first
func (s *Store) RecentAlerts(ctx context.Context, limit int) ([]Alert, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, occurred_at, people_count, min_people, message FROM alerts ORDER BY occurred_at DESC LIMIT ?`,
		limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query alerts: %w", err)
	}
	defer rows.Close()

	var alerts []Alert
	for rows.Next() {
		var (
			a  Alert
			ms int64
		)
		if err := rows.Scan(&a.ID, &ms, &a.PeopleCount, &a.MinPeople, &a.Message); err != nil {
			return nil, fmt.Errorf("failed to scan alert: %w", err)
		}
		a.OccurredAt = time.UnixMilli(ms)
		alerts = append(alerts, a)
	}
	return alerts, rows.Err()
}

// RecentRecordings returns up to limit recordings, newest first
func (s *Store) RecentRecordings(ctx context.Context, limit int) ([]Recording, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, path, started_at, stopped_at, frames FROM recordings ORDER BY started_at DESC LIMIT ?`,
		limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query recordings: %w", err)
	}
	defer rows.Close()

	var recs []Recording
	for rows.Next() {
		var (
			r                Recording
			started, stopped int64
			frames           int64
		)
		if err := rows.Scan(&r.ID, &r.Path, &started, &stopped, &frames); err != nil {
			return nil, fmt.Errorf("failed to scan recording: %w", err)
		}
		r.StartedAt = time.UnixMilli(started)
		r.StoppedAt = time.UnixMilli(stopped)
		r.Frames = uint64(frames)
		recs = append(recs, r)
	}
	return recs, rows.Err()
}
