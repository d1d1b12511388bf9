// CLAUDE:SUMMARY SQLite publish ledger: one row per write attempt (accepted, refused, failed) with history by slug.
// Package store provides the SQLite persistence layer for the publish ledger.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hazyhaar/entrypage/dbopen"
)

// Attempt statuses.
const (
	StatusAccepted = "accepted"
	StatusRefused  = "refused"
	StatusFailed   = "failed"
)

// Store is the ledger database handle.
type Store struct {
	DB *sql.DB
}

// Open opens (or creates) the ledger database at path and applies the schema.
func Open(path string, opts ...dbopen.Option) (*Store, error) {
	allOpts := append([]dbopen.Option{
		dbopen.WithMkdirAll(),
		dbopen.WithSchema(Schema),
	}, opts...)

	db, err := dbopen.Open(path, allOpts...)
	if err != nil {
		return nil, err
	}
	return &Store{DB: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.DB.Close()
}

// Attempt is one publish write attempt.
type Attempt struct {
	ID         string   `json:"id"`
	Slug       string   `json:"slug"`
	Status     string   `json:"status"`
	Issues     []string `json:"issues,omitempty"`
	Files      []string `json:"files,omitempty"`
	HTMLSHA256 string   `json:"html_sha256,omitempty"`
	Error      string   `json:"error,omitempty"`
	CreatedAt  int64    `json:"created_at"`
}

// RecordAttempt inserts a. CreatedAt defaults to now in milliseconds.
func (s *Store) RecordAttempt(ctx context.Context, a *Attempt) error {
	if a.CreatedAt == 0 {
		a.CreatedAt = time.Now().UnixMilli()
	}
	issues, _ := json.Marshal(nonNil(a.Issues))
	files, _ := json.Marshal(nonNil(a.Files))

	return dbopen.RunTx(ctx, s.DB, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO publish_attempts
				(id, slug, status, issues, files, html_sha256, error, created_at)
			VALUES (?,?,?,?,?,?,?,?)`,
			a.ID, a.Slug, a.Status, string(issues), string(files), a.HTMLSHA256, a.Error, a.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("store: record attempt %s: %w", a.ID, err)
		}
		return nil
	})
}

// History returns the attempts for slug, newest first. limit <= 0 means 50.
func (s *Store) History(ctx context.Context, slug string, limit int) ([]Attempt, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.DB.QueryContext(ctx, `
		SELECT id, slug, status, issues, files, html_sha256, error, created_at
		FROM publish_attempts
		WHERE slug = ?
		ORDER BY created_at DESC, id DESC
		LIMIT ?`, slug, limit)
	if err != nil {
		return nil, fmt.Errorf("store: history %s: %w", slug, err)
	}
	defer rows.Close()

	var out []Attempt
	for rows.Next() {
		var a Attempt
		var issues, files string
		if err := rows.Scan(&a.ID, &a.Slug, &a.Status, &issues, &files, &a.HTMLSHA256, &a.Error, &a.CreatedAt); err != nil {
			return nil, err
		}
		json.Unmarshal([]byte(issues), &a.Issues)
		json.Unmarshal([]byte(files), &a.Files)
		out = append(out, a)
	}
	return out, rows.Err()
}

// LastAccepted returns the newest accepted attempt for slug, or nil.
func (s *Store) LastAccepted(ctx context.Context, slug string) (*Attempt, error) {
	var a Attempt
	var issues, files string
	err := s.DB.QueryRowContext(ctx, `
		SELECT id, slug, status, issues, files, html_sha256, error, created_at
		FROM publish_attempts
		WHERE slug = ? AND status = ?
		ORDER BY created_at DESC, id DESC
		LIMIT 1`, slug, StatusAccepted).
		Scan(&a.ID, &a.Slug, &a.Status, &issues, &files, &a.HTMLSHA256, &a.Error, &a.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: last accepted %s: %w", slug, err)
	}
	json.Unmarshal([]byte(issues), &a.Issues)
	json.Unmarshal([]byte(files), &a.Files)
	return &a, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
