// Package store is the raw database/sql + lib/pq persistence layer: no ORM,
// hand-written SQL, matching the teacher's postgres idempotency store idiom.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	_ "github.com/lib/pq"

	"github.com/matthewcove-stack/intent-normaliser/internal/contracts"
)

// ErrNotFound is returned when a lookup by id finds no row.
var ErrNotFound = errors.New("store: not found")

// Intents is the upsert-by-idempotency-key intent store.
type Intents struct {
	db *sql.DB
}

// NewIntents wraps a *sql.DB.
func NewIntents(db *sql.DB) *Intents {
	return &Intents{db: db}
}

func scanIntent(row interface {
	Scan(dest ...any) error
}) (contracts.Intent, error) {
	var in contracts.Intent
	var actorID sql.NullString
	var canonicalDraft, finalCanonical, responseEnvelope []byte

	err := row.Scan(
		&in.IntentID, &in.IdempotencyKey, &in.CorrelationID, &in.TraceID, &actorID,
		&in.Status, &in.RawPacket, &canonicalDraft, &finalCanonical, &responseEnvelope,
		&in.CreatedAt, &in.UpdatedAt,
	)
	if err != nil {
		return contracts.Intent{}, err
	}
	if actorID.Valid {
		in.ActorID = &actorID.String
	}
	in.CanonicalDraft = canonicalDraft
	in.FinalCanonical = finalCanonical
	in.ResponseEnvelope = responseEnvelope
	return in, nil
}

const intentColumns = `intent_id, idempotency_key, correlation_id, trace_id, actor_id,
	status, raw_packet, canonical_draft, final_canonical, response_envelope,
	created_at, updated_at`

// UpsertByIdempotencyKey inserts a new intent row, or on a unique-key
// conflict, reads back the existing row. Returns (row, created). This
// insert-or-read-back runs inside a single transaction so concurrent first
// writers race only on the INSERT, never observe a half-written row (spec
// §4.3 step 4, §5).
func (s *Intents) UpsertByIdempotencyKey(ctx context.Context, in contracts.Intent) (contracts.Intent, bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return contracts.Intent{}, false, fmt.Errorf("store: begin upsert: %w", err)
	}
	defer tx.Rollback()

	row := tx.QueryRowContext(ctx, `
		INSERT INTO intents (intent_id, idempotency_key, correlation_id, trace_id, actor_id, status, raw_packet)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (idempotency_key) DO NOTHING
		RETURNING `+intentColumns,
		in.IntentID, in.IdempotencyKey, in.CorrelationID, in.TraceID, in.ActorID, in.Status, in.RawPacket,
	)
	inserted, err := scanIntent(row)
	if err == nil {
		if err := tx.Commit(); err != nil {
			return contracts.Intent{}, false, fmt.Errorf("store: commit upsert: %w", err)
		}
		return inserted, true, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return contracts.Intent{}, false, fmt.Errorf("store: insert intent: %w", err)
	}

	existingRow := tx.QueryRowContext(ctx, `
		SELECT `+intentColumns+` FROM intents WHERE idempotency_key = $1`,
		in.IdempotencyKey,
	)
	existing, err := scanIntent(existingRow)
	if err != nil {
		return contracts.Intent{}, false, fmt.Errorf("store: read back intent: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return contracts.Intent{}, false, fmt.Errorf("store: commit upsert read-back: %w", err)
	}
	return existing, false, nil
}

// UpdateParams carries the optional fields Update writes; nil fields are
// left unchanged.
type UpdateParams struct {
	Status           *contracts.IntentStatus
	CanonicalDraft   json.RawMessage
	FinalCanonical   json.RawMessage
	ResponseEnvelope json.RawMessage
}

// Update applies a partial update to an intent row and returns the updated
// row. Returns ErrNotFound if intentID does not exist.
func (s *Intents) Update(ctx context.Context, intentID string, params UpdateParams) (contracts.Intent, error) {
	row := s.db.QueryRowContext(ctx, `
		UPDATE intents SET
			status = COALESCE($2, status),
			canonical_draft = COALESCE($3, canonical_draft),
			final_canonical = COALESCE($4, final_canonical),
			response_envelope = COALESCE($5, response_envelope),
			updated_at = now()
		WHERE intent_id = $1
		RETURNING `+intentColumns,
		intentID, params.Status, nullableJSON(params.CanonicalDraft),
		nullableJSON(params.FinalCanonical), nullableJSON(params.ResponseEnvelope),
	)
	in, err := scanIntent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return contracts.Intent{}, ErrNotFound
	}
	if err != nil {
		return contracts.Intent{}, fmt.Errorf("store: update intent: %w", err)
	}
	return in, nil
}

// Get fetches an intent by id.
func (s *Intents) Get(ctx context.Context, intentID string) (contracts.Intent, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+intentColumns+` FROM intents WHERE intent_id = $1`, intentID)
	in, err := scanIntent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return contracts.Intent{}, ErrNotFound
	}
	if err != nil {
		return contracts.Intent{}, fmt.Errorf("store: get intent: %w", err)
	}
	return in, nil
}

func nullableJSON(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	return []byte(raw)
}
