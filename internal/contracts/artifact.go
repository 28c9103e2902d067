package contracts

import (
	"encoding/json"
	"time"
)

// ArtifactKind distinguishes intent-lifecycle artifacts from action-dispatch
// artifacts in the journal (spec §3).
type ArtifactKind string

const (
	ArtifactIntent ArtifactKind = "intent"
	ArtifactAction ArtifactKind = "action"
)

// Artifact is one append-only journal entry. No update or delete is ever
// performed on this table (spec §4.7); ArtifactHash is the SHA-256 of the
// canonical JSON of Artifact, verified on insert.
type Artifact struct {
	ID             string
	IntentID       string
	CorrelationID  string
	Kind           ArtifactKind
	IntentType     *string
	Action         *string
	Status         string
	IdempotencyKey *string
	ArtifactVersion int
	ArtifactHash   string
	Artifact       json.RawMessage
	ReceivedAt     time.Time
}
