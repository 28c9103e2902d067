// Package contracts defines the wire and storage types shared across the
// normalisation service: intents, clarifications, artifacts, the response
// envelope, and the error taxonomy.
package contracts

import (
	"encoding/json"
	"time"
)

// IntentStatus enumerates the Intent lifecycle states (spec §3).
type IntentStatus string

const (
	IntentReceived           IntentStatus = "received"
	IntentNeedsClarification IntentStatus = "needs_clarification"
	IntentReady              IntentStatus = "ready"
	IntentExecuted           IntentStatus = "executed"
	IntentFailed             IntentStatus = "failed"
	IntentExpired            IntentStatus = "expired"
)

// Intent is the persisted record for one caller-supplied packet, keyed by
// idempotency_key. Only the Controller mutates it, and only via the store
// layer's upsert/update operations — never deleted.
type Intent struct {
	IntentID        string
	IdempotencyKey  string
	CorrelationID   string
	TraceID         string
	ActorID         *string
	Status          IntentStatus
	RawPacket       json.RawMessage
	CanonicalDraft  json.RawMessage
	FinalCanonical  json.RawMessage
	ResponseEnvelope json.RawMessage
	CreatedAt       time.Time
	UpdatedAt       time.Time
}
