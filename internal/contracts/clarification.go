package contracts

import (
	"encoding/json"
	"time"
)

// ClarificationStatus enumerates the Clarification lifecycle states (spec §3).
type ClarificationStatus string

const (
	ClarificationOpen     ClarificationStatus = "open"
	ClarificationAnswered ClarificationStatus = "answered"
	ClarificationExpired  ClarificationStatus = "expired"
)

// ExpectedAnswerType constrains what shape an answer to a clarification takes.
type ExpectedAnswerType string

const (
	AnswerTypeChoice    ExpectedAnswerType = "choice"
	AnswerTypeFreeText  ExpectedAnswerType = "free_text"
	AnswerTypeDate      ExpectedAnswerType = "date"
	AnswerTypeDatetime  ExpectedAnswerType = "datetime"
)

// Candidate is one scored option a clarification can offer (e.g. a project).
type Candidate struct {
	ID    string         `json:"id"`
	Label string         `json:"label"`
	Meta  map[string]any `json:"meta,omitempty"`
}

// Clarification is a server-issued question whose answer unblocks
// normalisation. Rounds are append-only: a new question is a new row, never
// an edit of an old one (spec §3, §4.4).
type Clarification struct {
	ClarificationID    string
	IntentID           string
	Status             ClarificationStatus
	Question           string
	ExpectedAnswerType ExpectedAnswerType
	Candidates         []Candidate
	Answer             json.RawMessage
	AnsweredAt         *time.Time
	ActorID            *string
	CreatedAt          time.Time
}

// AnswerRequest is the body of POST /v1/clarifications/{id}/answer.
type AnswerRequest struct {
	ChoiceID   string `json:"choice_id,omitempty"`
	AnswerText string `json:"answer_text,omitempty"`
}

// Empty reports whether neither field of the answer was supplied.
func (a AnswerRequest) Empty() bool {
	return a.ChoiceID == "" && a.AnswerText == ""
}
