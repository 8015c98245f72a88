package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DB is the subset of *pgxpool.Pool the store uses.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PGStore implements Store on the synth_runs table.
type PGStore struct {
	db DB
}

func NewPGStore(db DB) *PGStore {
	return &PGStore{db: db}
}

func (s *PGStore) Save(ctx context.Context, rec *Record) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO synth_runs (id, input_digest, manifest_digest, source, routes, nodes, manifest, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, rec.ID.String(), rec.InputDigest, rec.ManifestDigest, rec.Source, rec.Routes, rec.Nodes, []byte(rec.Manifest), rec.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert synth_runs: %w", err)
	}
	return nil
}

// Get returns the most recent run for the input digest.
func (s *PGStore) Get(ctx context.Context, inputDigest string) (*Record, error) {
	var rec Record
	var id string
	var manifest []byte

	err := s.db.QueryRow(ctx, `
		SELECT id, input_digest, manifest_digest, source, routes, nodes, manifest, created_at
		FROM synth_runs
		WHERE input_digest = $1
		ORDER BY created_at DESC
		LIMIT 1
	`, inputDigest).Scan(
		&id,
		&rec.InputDigest,
		&rec.ManifestDigest,
		&rec.Source,
		&rec.Routes,
		&rec.Nodes,
		&manifest,
		&rec.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("query synth_runs: %w", err)
	}

	rec.ID, err = uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("parse run id %q: %w", id, err)
	}
	rec.Manifest = manifest
	return &rec, nil
}
