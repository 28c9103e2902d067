package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/matthewcove-stack/intent-normaliser/internal/contracts"
)

// Clarifications is the insert/answer/expire clarification store.
type Clarifications struct {
	db *sql.DB
}

// NewClarifications wraps a *sql.DB.
func NewClarifications(db *sql.DB) *Clarifications {
	return &Clarifications{db: db}
}

const clarificationColumns = `clarification_id, intent_id, status, question,
	expected_answer_type, candidates, answer, answered_at, actor_id, created_at`

func scanClarification(row interface {
	Scan(dest ...any) error
}) (contracts.Clarification, error) {
	var c contracts.Clarification
	var candidatesJSON []byte
	var answer []byte
	var answeredAt sql.NullTime
	var actorID sql.NullString

	err := row.Scan(
		&c.ClarificationID, &c.IntentID, &c.Status, &c.Question,
		&c.ExpectedAnswerType, &candidatesJSON, &answer, &answeredAt, &actorID, &c.CreatedAt,
	)
	if err != nil {
		return contracts.Clarification{}, err
	}
	if len(candidatesJSON) > 0 {
		_ = jsonUnmarshalCandidates(candidatesJSON, &c.Candidates)
	}
	if len(answer) > 0 {
		c.Answer = answer
	}
	if answeredAt.Valid {
		c.AnsweredAt = &answeredAt.Time
	}
	if actorID.Valid {
		c.ActorID = &actorID.String
	}
	return c, nil
}

// Create inserts a new open clarification row. A partial unique index on
// (intent_id) WHERE status='open' enforces spec §3's "at most one open
// clarification per intent" invariant at the database level.
func (s *Clarifications) Create(ctx context.Context, intentID string, question string, answerType contracts.ExpectedAnswerType, candidates []contracts.Candidate, actorID *string) (contracts.Clarification, error) {
	candidatesJSON, err := jsonMarshalCandidates(candidates)
	if err != nil {
		return contracts.Clarification{}, fmt.Errorf("store: marshal candidates: %w", err)
	}

	row := s.db.QueryRowContext(ctx, `
		INSERT INTO clarifications (intent_id, status, question, expected_answer_type, candidates, actor_id)
		VALUES ($1, 'open', $2, $3, $4, $5)
		RETURNING `+clarificationColumns,
		intentID, question, string(answerType), candidatesJSON, actorID,
	)
	c, err := scanClarification(row)
	if err != nil {
		return contracts.Clarification{}, fmt.Errorf("store: create clarification: %w", err)
	}
	return c, nil
}

// Get fetches a clarification by id.
func (s *Clarifications) Get(ctx context.Context, clarificationID string) (contracts.Clarification, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+clarificationColumns+` FROM clarifications WHERE clarification_id = $1`, clarificationID)
	c, err := scanClarification(row)
	if errors.Is(err, sql.ErrNoRows) {
		return contracts.Clarification{}, ErrNotFound
	}
	if err != nil {
		return contracts.Clarification{}, fmt.Errorf("store: get clarification: %w", err)
	}
	return c, nil
}

// GetOpenForIntent returns the single open clarification for an intent, if
// any.
func (s *Clarifications) GetOpenForIntent(ctx context.Context, intentID string) (contracts.Clarification, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+clarificationColumns+` FROM clarifications
		WHERE intent_id = $1 AND status = 'open'
		ORDER BY created_at DESC LIMIT 1`, intentID)
	c, err := scanClarification(row)
	if errors.Is(err, sql.ErrNoRows) {
		return contracts.Clarification{}, ErrNotFound
	}
	if err != nil {
		return contracts.Clarification{}, fmt.Errorf("store: get open clarification: %w", err)
	}
	return c, nil
}

// ListOpen returns every open clarification, oldest first.
func (s *Clarifications) ListOpen(ctx context.Context) ([]contracts.Clarification, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+clarificationColumns+` FROM clarifications
		WHERE status = 'open' ORDER BY created_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("store: list open clarifications: %w", err)
	}
	defer rows.Close()

	var out []contracts.Clarification
	for rows.Next() {
		c, err := scanClarification(rows)
		if err != nil {
			return nil, fmt.Errorf("store: scan open clarification: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// Answer performs the guarded UPDATE ... WHERE status='open' RETURNING that
// spec §4.4/§5 require: at most one caller wins the transition to answered.
// Returns ErrNotFound if the row was not open (already answered/expired, or
// lost the race).
func (s *Clarifications) Answer(ctx context.Context, clarificationID string, answer []byte) (contracts.Clarification, error) {
	row := s.db.QueryRowContext(ctx, `
		UPDATE clarifications
		SET status = 'answered', answer = $2, answered_at = now()
		WHERE clarification_id = $1 AND status = 'open'
		RETURNING `+clarificationColumns,
		clarificationID, answer,
	)
	c, err := scanClarification(row)
	if errors.Is(err, sql.ErrNoRows) {
		return contracts.Clarification{}, ErrNotFound
	}
	if err != nil {
		return contracts.Clarification{}, fmt.Errorf("store: answer clarification: %w", err)
	}
	return c, nil
}

// Expire flips a still-open clarification to expired.
func (s *Clarifications) Expire(ctx context.Context, clarificationID string) (contracts.Clarification, error) {
	row := s.db.QueryRowContext(ctx, `
		UPDATE clarifications
		SET status = 'expired'
		WHERE clarification_id = $1 AND status = 'open'
		RETURNING `+clarificationColumns,
		clarificationID,
	)
	c, err := scanClarification(row)
	if errors.Is(err, sql.ErrNoRows) {
		return contracts.Clarification{}, ErrNotFound
	}
	if err != nil {
		return contracts.Clarification{}, fmt.Errorf("store: expire clarification: %w", err)
	}
	return c, nil
}

// ExpireOlderThan sweeps every open clarification older than cutoff to
// expired, returning the owning intent ids so the Controller can cascade the
// expiry onto the intents table (spec §5 expiry sweep).
func (s *Clarifications) ExpireOlderThan(ctx context.Context, cutoff time.Time) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		UPDATE clarifications SET status = 'expired'
		WHERE status = 'open' AND created_at < $1
		RETURNING intent_id`, cutoff)
	if err != nil {
		return nil, fmt.Errorf("store: expire sweep: %w", err)
	}
	defer rows.Close()

	var intentIDs []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("store: scan expire sweep: %w", err)
		}
		intentIDs = append(intentIDs, id)
	}
	return intentIDs, rows.Err()
}
