package store

import "context"

const migrationSQL = `
CREATE TABLE IF NOT EXISTS blobs (
    key TEXT PRIMARY KEY,
    body TEXT NOT NULL,
    updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS emission_runs (
    id UUID PRIMARY KEY,
    selected TEXT[] NOT NULL DEFAULT '{}',
    succeeded TEXT[] NOT NULL DEFAULT '{}',
    failed TEXT[] NOT NULL DEFAULT '{}',
    index_size INT NOT NULL DEFAULT 0,
    error TEXT NOT NULL DEFAULT '',
    started_at TIMESTAMPTZ NOT NULL,
    finished_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_emission_runs_started ON emission_runs (started_at DESC);
`

func (s *Store) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, migrationSQL)
	return err
}
