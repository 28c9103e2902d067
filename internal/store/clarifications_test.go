package store

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matthewcove-stack/intent-normaliser/internal/contracts"
)

func clarificationRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"clarification_id", "intent_id", "status", "question", "expected_answer_type",
		"candidates", "answer", "answered_at", "actor_id", "created_at",
	})
}

func TestClarifications_Create(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO clarifications")).
		WithArgs("int_1", "Which project?", "choice", []byte(`[]`), (*string)(nil)).
		WillReturnRows(clarificationRows().AddRow("c1", "int_1", "open", "Which project?", "choice", []byte(`[]`), nil, nil, nil, now))

	s := NewClarifications(db)
	got, err := s.Create(context.Background(), "int_1", "Which project?", contracts.AnswerTypeChoice, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "c1", got.ClarificationID)
	assert.Equal(t, contracts.ClarificationOpen, got.Status)
}

func TestClarifications_Answer_GuardedUpdateSucceeds(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("UPDATE clarifications")).
		WithArgs("c1", []byte(`{"choice_id":"p1"}`)).
		WillReturnRows(clarificationRows().AddRow("c1", "int_1", "answered", "Which project?", "choice", []byte(`[]`), []byte(`{"choice_id":"p1"}`), now, nil, now))

	s := NewClarifications(db)
	got, err := s.Answer(context.Background(), "c1", []byte(`{"choice_id":"p1"}`))
	require.NoError(t, err)
	assert.Equal(t, contracts.ClarificationAnswered, got.Status)
	require.NotNil(t, got.AnsweredAt)
}

func TestClarifications_Answer_RaceLostReturnsNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta("UPDATE clarifications")).
		WithArgs("c1", []byte(`{}`)).
		WillReturnRows(clarificationRows())

	s := NewClarifications(db)
	_, err = s.Answer(context.Background(), "c1", []byte(`{}`))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestClarifications_GetOpenForIntent_NotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta("SELECT")).
		WithArgs("int_1").
		WillReturnRows(clarificationRows())

	s := NewClarifications(db)
	_, err = s.GetOpenForIntent(context.Background(), "int_1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestClarifications_ExpireOlderThan(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	cutoff := time.Now().Add(-72 * time.Hour)
	mock.ExpectQuery(regexp.QuoteMeta("UPDATE clarifications SET status = 'expired'")).
		WithArgs(cutoff).
		WillReturnRows(sqlmock.NewRows([]string{"intent_id"}).AddRow("int_1").AddRow("int_2"))

	s := NewClarifications(db)
	ids, err := s.ExpireOlderThan(context.Background(), cutoff)
	require.NoError(t, err)
	assert.Equal(t, []string{"int_1", "int_2"}, ids)
}
