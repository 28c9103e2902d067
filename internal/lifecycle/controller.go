// Package lifecycle wires ingest, replay, and clarification-answer flows
// into transitions on the Intent/Clarification state machines (spec §3,
// §4.3, §4.4). It is the only caller of normalize.Run and executor.Execute.
package lifecycle

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/matthewcove-stack/intent-normaliser/internal/canonicalize"
	"github.com/matthewcove-stack/intent-normaliser/internal/contracts"
	"github.com/matthewcove-stack/intent-normaliser/internal/executor"
	"github.com/matthewcove-stack/intent-normaliser/internal/ids"
	"github.com/matthewcove-stack/intent-normaliser/internal/normalize"
	"github.com/matthewcove-stack/intent-normaliser/internal/resolver"
	"github.com/matthewcove-stack/intent-normaliser/internal/store"
)

// ErrAnswerConflict is returned when a clarification has already been
// answered with a different answer, or has expired, and the caller must map
// it onto a 409.
var ErrAnswerConflict = fmt.Errorf("lifecycle: clarification answer conflict")

// ErrNotFound covers both "no such row" and "actor does not own this row" —
// the two are intentionally indistinguishable to callers (spec §4.4: actor
// scoping fails closed as 404, never 403, to avoid confirming existence).
var ErrNotFound = fmt.Errorf("lifecycle: not found")

// Controller orchestrates the full intent lifecycle against the store,
// normaliser, and executor.
type Controller struct {
	Intents        *store.Intents
	Clarifications *store.Clarifications
	Journal        *store.Journal
	Resolver       resolver.ProjectResolver
	Executor       *executor.Executor
	Config         normalize.Config
	ExecuteActions bool
	ClarifyExpiry  time.Duration
}

// IngestResult is everything the HTTP layer needs to render a response for
// POST /v1/intents: the envelope body plus the identifiers it puts in
// response headers.
type IngestResult struct {
	Envelope      contracts.Envelope
	IntentID      string
	CorrelationID string
	TraceID       string
	RequestID     string
}

// Ingest implements spec §4.3: compute the idempotency key from the raw
// body, persist-first, then either replay a cached outcome or run
// normalisation fresh.
func (c *Controller) Ingest(ctx context.Context, rawBody []byte, actorID string) (IngestResult, *contracts.ErrorBody, error) {
	var payload map[string]any
	if err := json.Unmarshal(rawBody, &payload); err != nil {
		return IngestResult{}, badRequest(contracts.ErrBadJSON, "invalid JSON payload"), nil
	}
	if schemaVersion, ok := payload["schema_version"]; ok {
		if sv, ok := schemaVersion.(string); ok && sv != "" && sv != "v1" {
			return IngestResult{}, badRequest(contracts.ErrUnsupportedSchemaVersion,
				fmt.Sprintf("unsupported schema_version: %s", sv)), nil
		}
	}

	idempotencyKey, err := canonicalize.Hash(json.RawMessage(rawBody))
	if err != nil {
		return IngestResult{}, badRequest(contracts.ErrBadJSON, "could not canonicalise payload"), nil
	}
	requestID := stringField(payload, "request_id")
	if requestID == "" {
		requestID = stringField(payload, "requestId")
	}
	if requestID == "" {
		requestID = ids.NewRequestID()
	}

	intentID := stringField(payload, "intent_id")
	if intentID == "" {
		intentID = ids.NewIntentID()
	}
	correlationID := stringField(payload, "correlation_id")
	if correlationID == "" {
		correlationID = ids.NewCorrelationID()
	}
	traceID := ids.NewTraceID()
	if actorID == "" {
		actorID = stringField(payload, "actor_id")
	}

	packetData := map[string]any{}
	for k, v := range payload {
		packetData[k] = v
	}
	packetData["intent_id"] = intentID
	packetData["correlation_id"] = correlationID
	packetData["trace_id"] = traceID
	packetData["request_id"] = requestID
	if actorID != "" {
		packetData["actor_id"] = actorID
	}

	var actorPtr *string
	if actorID != "" {
		actorPtr = &actorID
	}

	intentRow, created, err := c.Intents.UpsertByIdempotencyKey(ctx, contracts.Intent{
		IntentID:       intentID,
		IdempotencyKey: idempotencyKey,
		CorrelationID:  correlationID,
		TraceID:        traceID,
		ActorID:        actorPtr,
		Status:         contracts.IntentReceived,
		RawPacket:      rawBody,
	})
	if err != nil {
		return IngestResult{}, nil, fmt.Errorf("lifecycle: upsert intent: %w", err)
	}

	intentID = intentRow.IntentID
	correlationID = intentRow.CorrelationID
	if intentRow.TraceID != "" {
		traceID = intentRow.TraceID
	}
	packetData["intent_id"] = intentID
	packetData["correlation_id"] = correlationID
	packetData["trace_id"] = traceID

	if _, err := c.Journal.Append(ctx, intentID, correlationID, contracts.ArtifactIntent,
		stringPtr(stringField(payload, "intent_type")), nil, "received", &idempotencyKey, packetData); err != nil {
		return IngestResult{}, nil, fmt.Errorf("lifecycle: journal received: %w", err)
	}

	base := IngestResult{IntentID: intentID, CorrelationID: correlationID, TraceID: traceID, RequestID: requestID}

	if !created {
		envelope, err := c.replay(ctx, intentRow, actorID, requestID, idempotencyKey, traceID)
		if err != nil {
			return IngestResult{}, nil, err
		}
		base.Envelope = envelope
		return base, nil, nil
	}

	envelope, err := c.runFresh(ctx, intentID, correlationID, actorID, requestID, traceID, idempotencyKey, packetData)
	if err != nil {
		return IngestResult{}, nil, err
	}
	base.Envelope = envelope
	return base, nil, nil
}

// replay handles the not-created branch of Ingest: a cached response
// envelope wins outright; otherwise the intent's current status is
// reconstructed into an envelope (spec §4.3 step 3).
func (c *Controller) replay(ctx context.Context, intentRow contracts.Intent, actorID, requestID, idempotencyKey, traceID string) (contracts.Envelope, error) {
	if len(intentRow.ResponseEnvelope) > 0 {
		var envelope contracts.Envelope
		if err := json.Unmarshal(intentRow.ResponseEnvelope, &envelope); err == nil {
			envelope.AttachReceipt(intentRow.IntentID, traceID, idempotencyKey, false)
			envelope.AttachRequestID(requestID)
			return envelope, nil
		}
	}

	envelope, err := c.envelopeFromStatus(ctx, intentRow, actorID)
	if err != nil {
		return contracts.Envelope{}, err
	}
	envelope.AttachReceipt(intentRow.IntentID, traceID, idempotencyKey, true)
	envelope.AttachRequestID(requestID)

	if err := c.persistAndCacheEnvelope(ctx, intentRow.IntentID, intentRow.CorrelationID, envelope); err != nil {
		return contracts.Envelope{}, err
	}
	return envelope, nil
}

// envelopeFromStatus reconstructs a response envelope purely from the
// current row state, for a duplicate ingest whose first response was never
// cached (e.g. crash between transitions).
func (c *Controller) envelopeFromStatus(ctx context.Context, intentRow contracts.Intent, actorID string) (contracts.Envelope, error) {
	switch intentRow.Status {
	case contracts.IntentExecuted, contracts.IntentFailed:
		if outcome, ok := c.loadOutcomeArtifact(ctx, intentRow.IntentID); ok {
			return outcome, nil
		}
		status := contracts.StatusExecuted
		message := "Intent completed"
		if intentRow.Status == contracts.IntentFailed {
			status = contracts.StatusFailed
			message = "Intent failed"
		}
		return contracts.Envelope{Status: status, IntentID: intentRow.IntentID, CorrelationID: intentRow.CorrelationID, Message: message}, nil

	case contracts.IntentNeedsClarification:
		clar, err := c.Clarifications.GetOpenForIntent(ctx, intentRow.IntentID)
		if err != nil && err != store.ErrNotFound {
			return contracts.Envelope{}, fmt.Errorf("lifecycle: load open clarification: %w", err)
		}
		envelope := contracts.Envelope{Status: contracts.StatusNeedsClarification, IntentID: intentRow.IntentID, CorrelationID: intentRow.CorrelationID}
		if err == nil {
			view := clarificationView(clar)
			envelope.Clarification = &view
		}
		return envelope, nil

	case contracts.IntentReady:
		finalCanonical := map[string]any{}
		_ = json.Unmarshal(intentRow.FinalCanonical, &finalCanonical)
		plan := planFromFinalCanonical(intentRow.IntentID, finalCanonical)
		return contracts.Envelope{Status: contracts.StatusReady, IntentID: intentRow.IntentID, CorrelationID: intentRow.CorrelationID, Plan: plan}, nil

	case contracts.IntentExpired:
		return contracts.Envelope{
			Status: contracts.StatusRejected, IntentID: intentRow.IntentID, CorrelationID: intentRow.CorrelationID,
			ErrorCode: "REJECTED", Message: "Intent rejected",
			Error: &contracts.ErrorDetail{
				Code: "INTENT_FAILED", Message: "Intent rejected",
				Details: map[string]any{"status_code": http.StatusBadRequest},
			},
		}, nil
	}

	return contracts.Envelope{Status: contracts.StatusAccepted, IntentID: intentRow.IntentID, CorrelationID: intentRow.CorrelationID, Message: "Intent accepted"}, nil
}

func (c *Controller) loadOutcomeArtifact(ctx context.Context, intentID string) (contracts.Envelope, bool) {
	for _, status := range []string{"executed", "failed", "rejected"} {
		artifact, err := c.Journal.LatestByIntentAndStatus(ctx, intentID, status)
		if err != nil {
			continue
		}
		var envelope contracts.Envelope
		if json.Unmarshal(artifact.Artifact, &envelope) == nil {
			return envelope, true
		}
	}
	return contracts.Envelope{}, false
}

// runFresh drives normalize.Run for a newly-created intent row and applies
// the resulting transition (spec §4.3 steps 4-6).
func (c *Controller) runFresh(ctx context.Context, intentID, correlationID, actorID, requestID, traceID, idempotencyKey string, packetData map[string]any) (contracts.Envelope, error) {
	result := normalize.Run(ctx, packetData, c.Config, c.Resolver)

	switch result.Status {
	case normalize.StatusNeedsClarification:
		return c.transitionToNeedsClarification(ctx, intentID, correlationID, actorID, requestID, traceID, idempotencyKey, result)
	case normalize.StatusReady:
		return c.transitionToReady(ctx, intentID, correlationID, actorID, requestID, traceID, idempotencyKey, result)
	default:
		return c.transitionToRejected(ctx, intentID, correlationID, requestID, traceID, idempotencyKey, result)
	}
}

func (c *Controller) transitionToNeedsClarification(ctx context.Context, intentID, correlationID, actorID, requestID, traceID, idempotencyKey string, result normalize.Result) (contracts.Envelope, error) {
	question := "Clarification required"
	answerType := contracts.AnswerTypeFreeText
	var candidates []contracts.Candidate
	if result.Clarification != nil {
		question = result.Clarification.Question
		answerType = result.Clarification.ExpectedAnswerType
		candidates = result.Clarification.Candidates
	}

	clar, err := c.Clarifications.Create(ctx, intentID, question, answerType, candidates, stringPtr(actorID))
	if err != nil {
		return contracts.Envelope{}, fmt.Errorf("lifecycle: create clarification: %w", err)
	}

	draftJSON, _ := json.Marshal(result.CanonicalDraft)
	status := contracts.IntentNeedsClarification
	if _, err := c.Intents.Update(ctx, intentID, store.UpdateParams{Status: &status, CanonicalDraft: draftJSON}); err != nil {
		return contracts.Envelope{}, fmt.Errorf("lifecycle: update intent: %w", err)
	}

	view := clarificationView(clar)
	envelope := contracts.Envelope{Status: contracts.StatusNeedsClarification, IntentID: intentID, CorrelationID: correlationID, Clarification: &view}
	envelope.AttachRequestID(requestID)
	envelope.AttachReceipt(intentID, traceID, idempotencyKey, true)

	if err := c.journalAndCache(ctx, intentID, correlationID, "needs_clarification", idempotencyKey, envelope); err != nil {
		return contracts.Envelope{}, err
	}
	return envelope, nil
}

func (c *Controller) transitionToReady(ctx context.Context, intentID, correlationID, actorID, requestID, traceID, idempotencyKey string, result normalize.Result) (contracts.Envelope, error) {
	draftJSON, _ := json.Marshal(result.CanonicalDraft)
	finalJSON, _ := json.Marshal(result.FinalCanonical)
	status := contracts.IntentReady
	if _, err := c.Intents.Update(ctx, intentID, store.UpdateParams{Status: &status, CanonicalDraft: draftJSON, FinalCanonical: finalJSON}); err != nil {
		return contracts.Envelope{}, fmt.Errorf("lifecycle: update intent: %w", err)
	}

	envelope := contracts.Envelope{Status: contracts.StatusReady, IntentID: intentID, CorrelationID: correlationID, Plan: result.Plan}

	if c.ExecuteActions && result.Plan != nil {
		if c.Executor == nil {
			envelope = c.executionNotConfiguredEnvelope(intentID, correlationID, "executor not wired")
		} else {
			outcome, err := c.Executor.Execute(ctx, intentID, correlationID, actorID, requestID, *result.Plan)
			if err != nil {
				envelope = c.executionNotConfiguredEnvelope(intentID, correlationID, err.Error())
			} else if !outcome.AllSucceeded {
				envelope = executionFailedEnvelope(intentID, correlationID, outcome)
			} else {
				envelope.Status = contracts.StatusExecuted
				var notionTaskID string
				for _, r := range outcome.Results {
					if r.NotionTaskID != "" {
						notionTaskID = r.NotionTaskID
						break
					}
				}
				envelope.Details = map[string]any{
					"execution_results": outcome.Results,
					"notion_task_id":    notionTaskID,
				}
			}
			finalStatus := contracts.IntentExecuted
			if envelope.Status != contracts.StatusExecuted {
				finalStatus = contracts.IntentFailed
			}
			if _, err := c.Intents.Update(ctx, intentID, store.UpdateParams{Status: &finalStatus}); err != nil {
				return contracts.Envelope{}, fmt.Errorf("lifecycle: update intent after execution: %w", err)
			}
		}
	}

	envelope.AttachRequestID(requestID)
	envelope.AttachReceipt(intentID, traceID, idempotencyKey, true)

	journalStatus := "ready"
	switch envelope.Status {
	case contracts.StatusExecuted:
		journalStatus = "executed"
	case contracts.StatusFailed:
		journalStatus = "failed"
	}
	if err := c.journalAndCache(ctx, intentID, correlationID, journalStatus, idempotencyKey, envelope); err != nil {
		return contracts.Envelope{}, err
	}
	return envelope, nil
}

func (c *Controller) executionNotConfiguredEnvelope(intentID, correlationID, message string) contracts.Envelope {
	return contracts.Envelope{
		Status: contracts.StatusFailed, IntentID: intentID, CorrelationID: correlationID,
		ErrorCode: contracts.ErrExecutionNotConfigured, Message: message,
		Details: map[string]any{"execution_results": []any{}},
		Error:   &contracts.ErrorDetail{Code: contracts.ErrExecutionNotConfigured, Message: message},
	}
}

func executionFailedEnvelope(intentID, correlationID string, outcome executor.Outcome) contracts.Envelope {
	var failure *executor.ActionResult
	for i := range outcome.Results {
		if !outcome.Results[i].Success {
			failure = &outcome.Results[i]
			break
		}
	}
	message := "One or more actions failed"
	errorCode := contracts.ErrExecutionFailed
	details := map[string]any{}
	if failure != nil {
		if failure.Error != "" {
			message = failure.Error
		}
		if failure.ErrorCode != "" {
			errorCode = failure.ErrorCode
		}
		details = map[string]any{
			"status_code":     failure.StatusCode,
			"endpoint":        failure.Endpoint,
			"request_id":      failure.RequestID,
			"idempotency_key": failure.IdempotencyKey,
		}
	}
	return contracts.Envelope{
		Status: contracts.StatusFailed, IntentID: intentID, CorrelationID: correlationID,
		ErrorCode: contracts.ErrExecutionFailed, Message: message,
		Details: map[string]any{"execution_results": outcome.Results},
		Error:   &contracts.ErrorDetail{Code: errorCode, Message: message, Details: details},
	}
}

func (c *Controller) transitionToRejected(ctx context.Context, intentID, correlationID, requestID, traceID, idempotencyKey string, result normalize.Result) (contracts.Envelope, error) {
	status := contracts.IntentFailed
	if _, err := c.Intents.Update(ctx, intentID, store.UpdateParams{Status: &status}); err != nil {
		return contracts.Envelope{}, fmt.Errorf("lifecycle: update intent: %w", err)
	}

	code := result.ErrorCode
	if code == "" {
		code = "REJECTED"
	}
	message := result.Message
	if message == "" {
		message = "Intent rejected"
	}

	envelope := contracts.Envelope{
		Status: contracts.StatusRejected, IntentID: intentID, CorrelationID: correlationID,
		ErrorCode: code, Message: message, Details: result.Details,
		Error: &contracts.ErrorDetail{Code: code, Message: message},
	}
	envelope.AttachRequestID(requestID)
	envelope.AttachReceipt(intentID, traceID, idempotencyKey, true)

	if err := c.journalAndCache(ctx, intentID, correlationID, "rejected", idempotencyKey, envelope); err != nil {
		return contracts.Envelope{}, err
	}
	return envelope, nil
}

func (c *Controller) journalAndCache(ctx context.Context, intentID, correlationID, status, idempotencyKey string, envelope contracts.Envelope) error {
	envelopeMap := map[string]any{}
	envelopeJSON, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("lifecycle: marshal envelope: %w", err)
	}
	_ = json.Unmarshal(envelopeJSON, &envelopeMap)

	if _, err := c.Journal.Append(ctx, intentID, correlationID, contracts.ArtifactIntent, nil, nil, status, &idempotencyKey, envelopeMap); err != nil {
		return fmt.Errorf("lifecycle: journal envelope: %w", err)
	}
	if _, err := c.Intents.Update(ctx, intentID, store.UpdateParams{ResponseEnvelope: envelopeJSON}); err != nil {
		return fmt.Errorf("lifecycle: cache envelope: %w", err)
	}
	return nil
}

func (c *Controller) persistAndCacheEnvelope(ctx context.Context, intentID, correlationID string, envelope contracts.Envelope) error {
	envelopeMap := map[string]any{}
	envelopeJSON, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("lifecycle: marshal envelope: %w", err)
	}
	_ = json.Unmarshal(envelopeJSON, &envelopeMap)

	if _, err := c.Journal.Append(ctx, intentID, correlationID, contracts.ArtifactIntent, nil, nil, string(envelope.Status), nil, envelopeMap); err != nil {
		return fmt.Errorf("lifecycle: journal replay envelope: %w", err)
	}
	if _, err := c.Intents.Update(ctx, intentID, store.UpdateParams{ResponseEnvelope: envelopeJSON}); err != nil {
		return fmt.Errorf("lifecycle: cache replay envelope: %w", err)
	}
	return nil
}

// SweepExpiredClarifications flips every open clarification older than
// ClarifyExpiry to expired and cascades the expiry onto its owning intent
// (spec §5 expiry sweep). Callers run this before serving the open-
// clarification list so a caller never observes a stale open question past
// its expiry window.
func (c *Controller) SweepExpiredClarifications(ctx context.Context) error {
	if c.ClarifyExpiry <= 0 {
		return nil
	}
	cutoff := time.Now().Add(-c.ClarifyExpiry)
	intentIDs, err := c.Clarifications.ExpireOlderThan(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("lifecycle: sweep expired clarifications: %w", err)
	}
	expired := contracts.IntentExpired
	for _, intentID := range intentIDs {
		if _, err := c.Intents.Update(ctx, intentID, store.UpdateParams{Status: &expired}); err != nil {
			return fmt.Errorf("lifecycle: expire intent %s: %w", intentID, err)
		}
	}
	return nil
}

// GetIntent implements GET /v1/intents/{id}: actor-scoped lookup followed by
// the same status-to-envelope reconstruction replay uses.
func (c *Controller) GetIntent(ctx context.Context, intentID, actorID string) (contracts.Envelope, error) {
	intentRow, err := c.Intents.Get(ctx, intentID)
	if err != nil {
		return contracts.Envelope{}, ErrNotFound
	}
	if actorID != "" && intentRow.ActorID != nil && *intentRow.ActorID != actorID {
		return contracts.Envelope{}, ErrNotFound
	}
	return c.envelopeFromStatus(ctx, intentRow, actorID)
}

// AnswerClarification implements spec §4.4: actor-scoped lookup, an expiry
// check on this clarification, idempotent replay when a repeat answer equals
// the stored one as JSON (key order and whitespace are ignored), and a
// guarded open->answered transition that feeds back into normalize.Run.
func (c *Controller) AnswerClarification(ctx context.Context, clarificationID string, answer contracts.AnswerRequest, actorID string) (contracts.Envelope, error) {
	clar, err := c.Clarifications.Get(ctx, clarificationID)
	if err != nil {
		if err == store.ErrNotFound {
			return contracts.Envelope{}, ErrNotFound
		}
		return contracts.Envelope{}, fmt.Errorf("lifecycle: get clarification: %w", err)
	}
	if actorID != "" && clar.ActorID != nil && *clar.ActorID != actorID {
		return contracts.Envelope{}, ErrNotFound
	}

	if clar.Status == contracts.ClarificationOpen && c.ClarifyExpiry > 0 && time.Since(clar.CreatedAt) > c.ClarifyExpiry {
		if _, err := c.Clarifications.Expire(ctx, clarificationID); err != nil {
			return contracts.Envelope{}, fmt.Errorf("lifecycle: expire clarification: %w", err)
		}
		expired := contracts.IntentExpired
		if _, err := c.Intents.Update(ctx, clar.IntentID, store.UpdateParams{Status: &expired}); err != nil {
			return contracts.Envelope{}, fmt.Errorf("lifecycle: expire intent: %w", err)
		}
		return contracts.Envelope{}, ErrAnswerConflict
	}

	if clar.Status != contracts.ClarificationOpen {
		if clar.Status == contracts.ClarificationAnswered {
			answerJSON, _ := json.Marshal(answer)
			if string(clar.Answer) == string(answerJSON) || bytesEqualAsJSON(clar.Answer, answerJSON) {
				intentRow, err := c.Intents.Get(ctx, clar.IntentID)
				if err != nil {
					return contracts.Envelope{}, ErrNotFound
				}
				return c.envelopeFromStatus(ctx, intentRow, actorID)
			}
		}
		return contracts.Envelope{}, ErrAnswerConflict
	}

	answerJSON, err := json.Marshal(answer)
	if err != nil {
		return contracts.Envelope{}, fmt.Errorf("lifecycle: marshal answer: %w", err)
	}
	answered, err := c.Clarifications.Answer(ctx, clarificationID, answerJSON)
	if err != nil {
		if err == store.ErrNotFound {
			return contracts.Envelope{}, ErrAnswerConflict
		}
		return contracts.Envelope{}, fmt.Errorf("lifecycle: answer clarification: %w", err)
	}

	intentRow, err := c.Intents.Get(ctx, answered.IntentID)
	if err != nil {
		return contracts.Envelope{}, ErrNotFound
	}

	if _, err := c.Journal.Append(ctx, intentRow.IntentID, intentRow.CorrelationID, contracts.ArtifactIntent, nil, nil, "clarification_answered", nil, map[string]any{
		"clarification_id": clarificationID,
		"intent_id":        intentRow.IntentID,
		"answer":           answer,
	}); err != nil {
		return contracts.Envelope{}, fmt.Errorf("lifecycle: journal clarification answer: %w", err)
	}

	draft := map[string]any{}
	_ = json.Unmarshal(intentRow.CanonicalDraft, &draft)
	updatedPacket := normalize.ApplyClarificationAnswer(draft, answer)
	updatedPacket["intent_id"] = intentRow.IntentID
	updatedPacket["correlation_id"] = intentRow.CorrelationID

	result := normalize.Run(ctx, updatedPacket, c.Config, c.Resolver)

	requestID := ids.NewRequestID()
	actor := ""
	if intentRow.ActorID != nil {
		actor = *intentRow.ActorID
	}

	switch result.Status {
	case normalize.StatusNeedsClarification:
		return c.transitionToNeedsClarification(ctx, intentRow.IntentID, intentRow.CorrelationID, actor, requestID, "", "", result)
	case normalize.StatusReady:
		return c.transitionToReady(ctx, intentRow.IntentID, intentRow.CorrelationID, actor, requestID, "", "", result)
	default:
		return c.transitionToRejected(ctx, intentRow.IntentID, intentRow.CorrelationID, requestID, "", "", result)
	}
}

func bytesEqualAsJSON(a, b []byte) bool {
	var av, bv any
	if json.Unmarshal(a, &av) != nil || json.Unmarshal(b, &bv) != nil {
		return false
	}
	aj, _ := json.Marshal(av)
	bj, _ := json.Marshal(bv)
	return string(aj) == string(bj)
}

func clarificationView(clar contracts.Clarification) contracts.ClarificationView {
	var answer any
	if len(clar.Answer) > 0 {
		_ = json.Unmarshal(clar.Answer, &answer)
	}
	var answeredAt *string
	if clar.AnsweredAt != nil {
		s := clar.AnsweredAt.Format(time.RFC3339)
		answeredAt = &s
	}
	return contracts.ClarificationView{
		ClarificationID:    clar.ClarificationID,
		IntentID:           clar.IntentID,
		Question:           clar.Question,
		ExpectedAnswerType: string(clar.ExpectedAnswerType),
		Candidates:         clar.Candidates,
		Status:             string(clar.Status),
		Answer:             answer,
		AnsweredAt:         answeredAt,
	}
}

func planFromFinalCanonical(intentID string, finalCanonical map[string]any) *contracts.Plan {
	intentType, _ := finalCanonical["intent_type"].(string)
	fields, _ := finalCanonical["fields"].(map[string]any)
	if intentType == "" || fields == nil {
		return nil
	}
	return normalize.BuildPlanFromCanonical(intentType, fields)
}

func badRequest(code, message string) *contracts.ErrorBody {
	return &contracts.ErrorBody{Error: contracts.ErrorDetail{Code: code, Message: message}}
}

func stringField(m map[string]any, key string) string {
	if v, ok := m[key].(string); ok {
		return v
	}
	return ""
}

func stringPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
