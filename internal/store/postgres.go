package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Store struct {
	pool *pgxpool.Pool
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	cfg.MaxConns = 10
	cfg.MinConns = 2

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &Store{pool: pool}, nil
}

func (s *Store) Close() { s.pool.Close() }

func (s *Store) Ping(ctx context.Context) error { return s.pool.Ping(ctx) }

// --- Blobs ---

// Object is a stored blob. Body is empty when the key does not exist.
type Object struct {
	Key       string    `json:"key"`
	Body      string    `json:"body"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Put writes body under key, replacing any previous value.
func (s *Store) Put(ctx context.Context, key, body string) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO blobs (key, body, updated_at) VALUES ($1, $2, now())
		 ON CONFLICT (key) DO UPDATE SET body = EXCLUDED.body, updated_at = now()`,
		key, body)
	if err != nil {
		return fmt.Errorf("put %s: %w", key, err)
	}
	return nil
}

// Get reads the blob under key. A missing key is not an error.
func (s *Store) Get(ctx context.Context, key string) (Object, error) {
	obj := Object{Key: key}
	err := s.pool.QueryRow(ctx,
		`SELECT body, updated_at FROM blobs WHERE key = $1`, key,
	).Scan(&obj.Body, &obj.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Object{Key: key}, nil
	}
	if err != nil {
		return Object{}, fmt.Errorf("get %s: %w", key, err)
	}
	return obj, nil
}

// --- Runs ---

type Run struct {
	ID         string    `json:"id"`
	Selected   []string  `json:"selected"`
	Succeeded  []string  `json:"succeeded"`
	Failed     []string  `json:"failed"`
	IndexSize  int       `json:"index_size"`
	Error      string    `json:"error,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

func (s *Store) RecordRun(ctx context.Context, r Run) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO emission_runs (id, selected, succeeded, failed, index_size, error, started_at, finished_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		r.ID, nonNil(r.Selected), nonNil(r.Succeeded), nonNil(r.Failed), r.IndexSize, r.Error, r.StartedAt, r.FinishedAt)
	if err != nil {
		return fmt.Errorf("record run %s: %w", r.ID, err)
	}
	return nil
}

// ListRuns returns the most recent runs, newest first.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, selected, succeeded, failed, index_size, error, started_at, finished_at
		 FROM emission_runs ORDER BY started_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		var r Run
		if err := rows.Scan(&r.ID, &r.Selected, &r.Succeeded, &r.Failed, &r.IndexSize, &r.Error, &r.StartedAt, &r.FinishedAt); err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// CleanupOldRuns deletes run history older than maxAge.
func (s *Store) CleanupOldRuns(ctx context.Context, maxAge time.Duration) (int64, error) {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM emission_runs WHERE started_at < $1`, time.Now().Add(-maxAge))
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
