package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/glebarez/go-sqlite"
	"github.com/google/uuid"

	"github.com/rahul/steptable/internal/table"
)

// ErrNotFound is returned for an unknown snapshot id.
var ErrNotFound = errors.New("snapshot not found")

type Store struct {
	DB *sql.DB
}

func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}

	// Create tables if not exist
	queries := []string{
		`CREATE TABLE IF NOT EXISTS snapshots (
			id TEXT PRIMARY KEY,
			page_url TEXT,
			title TEXT,
			records TEXT NOT NULL,
			created_at DATETIME NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS operations (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			action TEXT NOT NULL,
			source TEXT,
			success INTEGER NOT NULL,
			detail TEXT,
			created_at DATETIME NOT NULL
		);`,
	}
	for _, q := range queries {
		if _, err := db.Exec(q); err != nil {
			db.Close()
			return nil, err
		}
	}

	return &Store{DB: db}, nil
}

func (s *Store) Close() error {
	return s.DB.Close()
}

// SaveSnapshot stores records under a new id.
func (s *Store) SaveSnapshot(ctx context.Context, pageURL, title string, records []table.Record) (Snapshot, error) {
	data, err := table.ToJSON(records)
	if err != nil {
		return Snapshot{}, err
	}
	snap := Snapshot{
		ID:        uuid.NewString(),
		PageURL:   pageURL,
		Title:     title,
		CreatedAt: time.Now().UTC().Truncate(time.Second),
		Records:   records,
	}
	query := `INSERT INTO snapshots (id, page_url, title, records, created_at) VALUES (?, ?, ?, ?, ?)`
	if _, err := s.DB.ExecContext(ctx, query, snap.ID, snap.PageURL, snap.Title, string(data), snap.CreatedAt); err != nil {
		return Snapshot{}, fmt.Errorf("save snapshot: %w", err)
	}
	return snap, nil
}

// GetSnapshot loads a snapshot with its records.
func (s *Store) GetSnapshot(ctx context.Context, id string) (Snapshot, error) {
	query := `SELECT id, page_url, title, records, created_at FROM snapshots WHERE id = ?`
	var snap Snapshot
	var data string
	err := s.DB.QueryRowContext(ctx, query, id).Scan(&snap.ID, &snap.PageURL, &snap.Title, &data, &snap.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Snapshot{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return Snapshot{}, err
	}
	if snap.Records, err = table.ParseJSON([]byte(data)); err != nil {
		return Snapshot{}, fmt.Errorf("snapshot %s: %w", id, err)
	}
	return snap, nil
}

// ListSnapshots returns the newest snapshots first, without their records.
func (s *Store) ListSnapshots(ctx context.Context, limit int) ([]Snapshot, error) {
	query := `SELECT id, page_url, title, created_at FROM snapshots ORDER BY created_at DESC, rowid DESC LIMIT ?`
	rows, err := s.DB.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var snaps []Snapshot
	for rows.Next() {
		var snap Snapshot
		if err := rows.Scan(&snap.ID, &snap.PageURL, &snap.Title, &snap.CreatedAt); err != nil {
			return nil, err
		}
		snaps = append(snaps, snap)
	}
	return snaps, rows.Err()
}

func (s *Store) DeleteSnapshot(ctx context.Context, id string) error {
	res, err := s.DB.ExecContext(ctx, `DELETE FROM snapshots WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

// RecordOperation appends op to the operation log.
func (s *Store) RecordOperation(ctx context.Context, op Operation) error {
	if op.CreatedAt.IsZero() {
		op.CreatedAt = time.Now().UTC()
	}
	query := `INSERT INTO operations (action, source, success, detail, created_at) VALUES (?, ?, ?, ?, ?)`
	_, err := s.DB.ExecContext(ctx, query, op.Action, op.Source, op.Success, op.Detail, op.CreatedAt)
	return err
}

// RecentOperations returns up to limit operations, oldest first.
func (s *Store) RecentOperations(ctx context.Context, limit int) ([]Operation, error) {
	query := `SELECT id, action, source, success, detail, created_at FROM operations ORDER BY id DESC LIMIT ?`
	rows, err := s.DB.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ops []Operation
	for rows.Next() {
		var op Operation
		if err := rows.Scan(&op.ID, &op.Action, &op.Source, &op.Success, &op.Detail, &op.CreatedAt); err != nil {
			return nil, err
		}
		ops = append(ops, op)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Reverse to get chronological order
	for i, j := 0, len(ops)-1; i < j; i, j = i+1, j-1 {
		ops[i], ops[j] = ops[j], ops[i]
	}
	return ops, nil
}
