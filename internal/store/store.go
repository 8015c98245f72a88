// Package store keeps a history of synthesis runs in PostgreSQL with a Redis
// cache in front, keyed by the digest of the input document.
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/af-corp/mlapi/internal/synth"
)

// Record is one stored synthesis run.
type Record struct {
	ID             uuid.UUID       `json:"id"`
	InputDigest    string          `json:"input_digest"`
	ManifestDigest string          `json:"manifest_digest"`
	Source         string          `json:"source"`
	Routes         int             `json:"routes"`
	Nodes          int             `json:"nodes"`
	Manifest       json.RawMessage `json:"manifest"`
	CreatedAt      time.Time       `json:"created_at"`
}

// NewRecord captures a manifest for storage.
func NewRecord(source, inputDigest string, m *synth.Manifest) (*Record, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("encode manifest: %w", err)
	}
	return &Record{
		ID:             uuid.New(),
		InputDigest:    inputDigest,
		ManifestDigest: m.Digest,
		Source:         source,
		Routes:         m.Routes.Len(),
		Nodes:          len(m.Resources),
		Manifest:       data,
		CreatedAt:      time.Now().UTC(),
	}, nil
}

// Store persists synthesis records. Get returns nil, nil when no record
// exists for the digest.
type Store interface {
	Save(ctx context.Context, rec *Record) error
	Get(ctx context.Context, inputDigest string) (*Record, error)
}
