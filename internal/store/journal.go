package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/lib/pq"

	"github.com/matthewcove-stack/intent-normaliser/internal/canonicalize"
	"github.com/matthewcove-stack/intent-normaliser/internal/contracts"
)

// Journal is the append-only artifact store. No update or delete is ever
// issued against intent_artifacts (spec §4.7).
type Journal struct {
	db *sql.DB
}

// NewJournal wraps a *sql.DB.
func NewJournal(db *sql.DB) *Journal {
	return &Journal{db: db}
}

// Append inserts one artifact. It computes artifact_hash as the SHA-256 of
// the canonical JSON of body before the write, then checks it against the
// hash the INSERT ... RETURNING reports (spec §3, §4.7).
func (j *Journal) Append(ctx context.Context, intentID, correlationID string, kind contracts.ArtifactKind, intentType, action *string, status string, idempotencyKey *string, body map[string]any) (contracts.Artifact, error) {
	hash, err := canonicalize.Hash(body)
	if err != nil {
		return contracts.Artifact{}, fmt.Errorf("store: hash artifact: %w", err)
	}
	bodyJSON, err := json.Marshal(body)
	if err != nil {
		return contracts.Artifact{}, fmt.Errorf("store: marshal artifact: %w", err)
	}

	var a contracts.Artifact
	row := j.db.QueryRowContext(ctx, `
		INSERT INTO intent_artifacts (intent_id, correlation_id, kind, intent_type, action, status, idempotency_key, artifact_version, artifact_hash, artifact)
		VALUES ($1, $2, $3, $4, $5, $6, $7, 1, $8, $9)
		RETURNING id, intent_id, correlation_id, kind, intent_type, action, status, idempotency_key, artifact_version, artifact_hash, artifact, received_at`,
		intentID, correlationID, string(kind), intentType, action, status, idempotencyKey, hash, bodyJSON,
	)
	if err := row.Scan(
		&a.ID, &a.IntentID, &a.CorrelationID, &a.Kind, &a.IntentType, &a.Action,
		&a.Status, &a.IdempotencyKey, &a.ArtifactVersion, &a.ArtifactHash, &a.Artifact, &a.ReceivedAt,
	); err != nil {
		return contracts.Artifact{}, fmt.Errorf("store: insert artifact: %w", err)
	}
	if a.ArtifactHash != hash {
		return contracts.Artifact{}, fmt.Errorf("store: artifact hash mismatch after insert")
	}
	return a, nil
}

// LatestByIntentAndStatus returns the most recent artifact for intentID with
// one of the given statuses, ordered by received_at DESC (spec §4.7:
// readers never assume any ordering other than received_at DESC for
// "latest" queries).
func (j *Journal) LatestByIntentAndStatus(ctx context.Context, intentID string, statuses ...string) (contracts.Artifact, error) {
	row := j.db.QueryRowContext(ctx, `
		SELECT id, intent_id, correlation_id, kind, intent_type, action, status, idempotency_key, artifact_version, artifact_hash, artifact, received_at
		FROM intent_artifacts
		WHERE intent_id = $1 AND status = ANY($2)
		ORDER BY received_at DESC LIMIT 1`,
		intentID, pq.Array(statusesArray(statuses)),
	)
	var a contracts.Artifact
	if err := row.Scan(
		&a.ID, &a.IntentID, &a.CorrelationID, &a.Kind, &a.IntentType, &a.Action,
		&a.Status, &a.IdempotencyKey, &a.ArtifactVersion, &a.ArtifactHash, &a.Artifact, &a.ReceivedAt,
	); err != nil {
		if err == sql.ErrNoRows {
			return contracts.Artifact{}, ErrNotFound
		}
		return contracts.Artifact{}, fmt.Errorf("store: latest artifact: %w", err)
	}
	return a, nil
}

func statusesArray(statuses []string) []string {
	if statuses == nil {
		return []string{}
	}
	return statuses
}
