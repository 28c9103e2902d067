package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/matthewcove-stack/intent-normaliser/internal/audit"
	"github.com/matthewcove-stack/intent-normaliser/internal/auth"
	"github.com/matthewcove-stack/intent-normaliser/internal/contracts"
	"github.com/matthewcove-stack/intent-normaliser/internal/lifecycle"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.DBPing != nil {
		if err := s.DBPing(); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"version":          s.Version,
		"git_sha":          s.GitSHA,
		"artifact_version": s.ArtifactVer,
	})
}

func (s *Server) handleIngestIntent(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeErrorBody(w, http.StatusBadRequest, contracts.ErrBadJSON, "could not read request body")
		return
	}

	actorID := r.Header.Get("X-Actor-Id")
	if actorID == "" {
		actorID = auth.GetActorID(r.Context())
	}

	result, errBody, err := s.Controller.Ingest(r.Context(), body, actorID)
	if errBody != nil {
		writeErrorBody(w, http.StatusBadRequest, errBody.Error.Code, errBody.Error.Message)
		return
	}
	if err != nil {
		s.record(r, audit.EventSystem, "ingest_failed", "", map[string]any{"error": err.Error()})
		writeErrorBody(w, http.StatusServiceUnavailable, contracts.ErrDBUnavailable, "database unavailable")
		return
	}

	w.Header().Set("X-Intent-Id", result.IntentID)
	w.Header().Set("X-Correlation-Id", result.CorrelationID)
	w.Header().Set("X-Request-Id", result.RequestID)
	w.Header().Set("X-Trace-Id", result.TraceID)

	s.record(r, audit.EventIngest, string(result.Envelope.Status), result.IntentID, map[string]any{
		"correlation_id": result.CorrelationID,
	})

	writeJSON(w, statusCodeForEnvelope(result.Envelope), result.Envelope)
}

func (s *Server) handleGetIntent(w http.ResponseWriter, r *http.Request) {
	intentID := r.PathValue("id")
	actorID := r.Header.Get("X-Actor-Id")

	envelope, err := s.Controller.GetIntent(r.Context(), intentID, actorID)
	if err != nil {
		if errors.Is(err, lifecycle.ErrNotFound) {
			writeErrorBody(w, http.StatusNotFound, "NOT_FOUND", "intent not found")
			return
		}
		writeErrorBody(w, http.StatusServiceUnavailable, contracts.ErrDBUnavailable, "database unavailable")
		return
	}
	writeJSON(w, http.StatusOK, envelope)
}

func (s *Server) handleIngestAction(w http.ResponseWriter, r *http.Request) {
	var packet struct {
		IntentID      string         `json:"intent_id"`
		CorrelationID string         `json:"correlation_id"`
		Action        string         `json:"action"`
		Payload       map[string]any `json:"payload"`
	}
	if err := json.NewDecoder(r.Body).Decode(&packet); err != nil {
		writeErrorBody(w, http.StatusBadRequest, contracts.ErrBadJSON, "invalid JSON payload")
		return
	}
	if packet.Action == "" {
		writeJSON(w, http.StatusBadRequest, contracts.Envelope{
			Status:    contracts.StatusRejected,
			IntentID:  packet.IntentID,
			ErrorCode: contracts.ErrValidation,
			Message:   "Missing action",
			Error:     &contracts.ErrorDetail{Code: contracts.ErrValidation, Message: "Missing action"},
		})
		return
	}

	if s.Journal != nil {
		action := packet.Action
		if _, err := s.Journal.Append(r.Context(), packet.IntentID, packet.CorrelationID, contracts.ArtifactAction,
			nil, &action, "received", nil, map[string]any{
				"intent_id":      packet.IntentID,
				"correlation_id": packet.CorrelationID,
				"action":         packet.Action,
				"payload":        packet.Payload,
			}); err != nil {
			writeErrorBody(w, http.StatusServiceUnavailable, contracts.ErrDBUnavailable, "database unavailable")
			return
		}
	}

	writeJSON(w, http.StatusAccepted, contracts.Envelope{
		Status:        contracts.StatusAccepted,
		IntentID:      packet.IntentID,
		CorrelationID: packet.CorrelationID,
		Message:       "direct action dispatch is journalled but not executed; submit intents via /v1/intents instead",
	})
}

func (s *Server) handleListClarifications(w http.ResponseWriter, r *http.Request) {
	statusFilter := r.URL.Query().Get("status")
	if statusFilter == "" {
		statusFilter = "open"
	}
	if statusFilter != "open" {
		writeErrorBody(w, http.StatusBadRequest, contracts.ErrValidation, "unsupported status filter")
		return
	}

	if err := s.Controller.SweepExpiredClarifications(r.Context()); err != nil {
		writeErrorBody(w, http.StatusServiceUnavailable, contracts.ErrDBUnavailable, "database unavailable")
		return
	}

	clars, err := s.Clarifications.ListOpen(r.Context())
	if err != nil {
		writeErrorBody(w, http.StatusServiceUnavailable, contracts.ErrDBUnavailable, "database unavailable")
		return
	}

	actorID := r.Header.Get("X-Actor-Id")
	views := make([]contracts.ClarificationView, 0, len(clars))
	for _, c := range clars {
		if actorID != "" && c.ActorID != nil && *c.ActorID != actorID {
			continue
		}
		views = append(views, lifecycleClarificationView(c))
	}
	writeJSON(w, http.StatusOK, views)
}

func (s *Server) handleAnswerClarification(w http.ResponseWriter, r *http.Request) {
	clarificationID := r.PathValue("id")

	var answer contracts.AnswerRequest
	if err := json.NewDecoder(r.Body).Decode(&answer); err != nil {
		writeErrorBody(w, http.StatusBadRequest, contracts.ErrBadJSON, "invalid JSON payload")
		return
	}
	if answer.Empty() {
		writeErrorBody(w, http.StatusBadRequest, contracts.ErrValidation, "answer payload required")
		return
	}

	actorID := r.Header.Get("X-Actor-Id")
	envelope, err := s.Controller.AnswerClarification(r.Context(), clarificationID, answer, actorID)
	if err != nil {
		switch {
		case errors.Is(err, lifecycle.ErrNotFound):
			writeErrorBody(w, http.StatusNotFound, "NOT_FOUND", "clarification not found")
		case errors.Is(err, lifecycle.ErrAnswerConflict):
			writeErrorBody(w, http.StatusConflict, "CONFLICT", "clarification already answered or expired")
		default:
			writeErrorBody(w, http.StatusServiceUnavailable, contracts.ErrDBUnavailable, "database unavailable")
		}
		return
	}

	s.record(r, audit.EventClarification, string(envelope.Status), envelope.IntentID, map[string]any{
		"clarification_id": clarificationID,
	})

	writeJSON(w, statusCodeForEnvelope(envelope), envelope)
}

func (s *Server) record(r *http.Request, eventType audit.EventType, action, resource string, metadata map[string]any) {
	if s.Audit == nil {
		return
	}
	_ = s.Audit.Record(r.Context(), eventType, action, resource, metadata)
}

func statusCodeForEnvelope(e contracts.Envelope) int {
	switch e.Status {
	case contracts.StatusRejected:
		return http.StatusBadRequest
	case contracts.StatusFailed:
		return http.StatusBadGateway
	default:
		return http.StatusOK
	}
}

func writeJSON(w http.ResponseWriter, statusCode int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(body)
}

func writeErrorBody(w http.ResponseWriter, statusCode int, code, message string) {
	writeJSON(w, statusCode, contracts.ErrorBody{Error: contracts.ErrorDetail{
		Code: code, Message: message,
		Details: map[string]any{"status_code": statusCode},
	}})
}

func lifecycleClarificationView(c contracts.Clarification) contracts.ClarificationView {
	var answer any
	if len(c.Answer) > 0 {
		_ = json.Unmarshal(c.Answer, &answer)
	}
	return contracts.ClarificationView{
		ClarificationID:    c.ClarificationID,
		IntentID:           c.IntentID,
		Question:           c.Question,
		ExpectedAnswerType: string(c.ExpectedAnswerType),
		Candidates:         c.Candidates,
		Status:             string(c.Status),
		Answer:             answer,
	}
}
