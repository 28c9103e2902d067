// Package executor dispatches a Ready intent's plan to the downstream Notion
// gateway over HTTP, one action at a time, and journals every attempt (spec
// §4.6). There is no retry and no circuit breaker here: a single bad response
// fails that action and the caller decides what to do with a partial result.
package executor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/matthewcove-stack/intent-normaliser/internal/contracts"
	"github.com/matthewcove-stack/intent-normaliser/internal/ids"
	"github.com/matthewcove-stack/intent-normaliser/internal/store"
)

const defaultTimeout = 10 * time.Second

// Config points the executor at the gateway and names its per-action paths.
type Config struct {
	BaseURL            string
	BearerToken        string
	TasksCreatePath    string
	TasksUpdatePath    string
	ListAddItemPath    string
	NotesCapturePath   string
	Timeout            time.Duration
}

func (c Config) configured() bool {
	return c.BaseURL != "" && c.BearerToken != ""
}

func (c Config) pathFor(action string) (string, error) {
	switch action {
	case contracts.ActionTasksCreate:
		return c.TasksCreatePath, nil
	case contracts.ActionTasksUpdate:
		return c.TasksUpdatePath, nil
	case contracts.ActionListAddItem:
		return c.ListAddItemPath, nil
	case contracts.ActionNoteCapture:
		return c.NotesCapturePath, nil
	default:
		return "", fmt.Errorf("executor: unsupported action %q", action)
	}
}

// Executor posts each plan action to the gateway and journals the outcome.
type Executor struct {
	cfg     Config
	client  *http.Client
	journal *store.Journal
}

// New builds an Executor. journal may be nil in tests that only exercise
// dispatch, but production wiring always supplies one so every action
// attempt is recorded.
func New(cfg Config, journal *store.Journal) *Executor {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = defaultTimeout
	}
	return &Executor{
		cfg:     cfg,
		client:  &http.Client{Timeout: timeout},
		journal: journal,
	}
}

// ActionResult is one action's dispatch outcome.
type ActionResult struct {
	Action         string
	Endpoint       string
	RequestID      string
	IdempotencyKey string
	StatusCode     int
	Success        bool
	ResponseBody   string
	ResponseJSON   map[string]any
	ErrorCode      string
	Error          string
	NotionTaskID   string
}

// Outcome is the aggregate result of executing every action in a plan.
type Outcome struct {
	AllSucceeded bool
	Results      []ActionResult
}

// ErrNotConfigured is returned when the gateway base URL or bearer token is
// unset; callers surface contracts.ErrExecutionNotConfigured for this.
var ErrNotConfigured = fmt.Errorf("executor: gateway execution not configured")

// Execute dispatches every action in plan in order, journaling each attempt
// under intentID regardless of success, and returns once all actions have
// been attempted.
func (e *Executor) Execute(ctx context.Context, intentID, correlationID, actorID, requestID string, plan contracts.Plan) (Outcome, error) {
	if !e.cfg.configured() {
		return Outcome{}, ErrNotConfigured
	}

	baseURL := strings.TrimRight(e.cfg.BaseURL, "/")
	results := make([]ActionResult, 0, len(plan.Actions))

	for _, action := range plan.Actions {
		result, artifactBody := e.dispatch(ctx, baseURL, actorID, requestID, action)
		results = append(results, result)

		if e.journal != nil {
			status := "executed"
			if !result.Success {
				status = "failed"
			}
			actionName := action.Action
			idemKey := result.IdempotencyKey
			if _, err := e.journal.Append(ctx, intentID, correlationID, contracts.ArtifactAction, nil, &actionName, status, &idemKey, artifactBody); err != nil {
				return Outcome{}, fmt.Errorf("executor: journal action: %w", err)
			}
		}
	}

	allSucceeded := true
	for _, r := range results {
		if !r.Success {
			allSucceeded = false
			break
		}
	}

	return Outcome{AllSucceeded: allSucceeded, Results: results}, nil
}

// dispatch builds the gateway request for one action, performs it, and
// classifies the response. It never returns an error: failures are carried
// in ActionResult.Error so the caller can still journal and continue with
// the rest of the plan.
func (e *Executor) dispatch(ctx context.Context, baseURL, actorID, requestID string, action contracts.Action) (ActionResult, map[string]any) {
	result := ActionResult{Action: action.Action}

	endpoint, envelope, err := e.buildRequest(actorID, requestID, action)
	if err != nil {
		result.Error = err.Error()
		return result, artifactBody(envelope, nil, 0, "", "", result.Error, false)
	}
	result.Endpoint = endpoint
	if rid, ok := envelope["request_id"].(string); ok {
		result.RequestID = rid
	}
	if idk, ok := envelope["idempotency_key"].(string); ok {
		result.IdempotencyKey = idk
	}

	payload, err := json.Marshal(envelope)
	if err != nil {
		result.Error = err.Error()
		return result, artifactBody(envelope, nil, 0, "", "", result.Error, false)
	}

	url := baseURL + endpoint
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		result.Error = err.Error()
		return result, artifactBody(envelope, nil, 0, "", "", result.Error, false)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+e.cfg.BearerToken)

	resp, err := e.client.Do(httpReq)
	if err != nil {
		result.Error = err.Error()
		return result, artifactBody(envelope, nil, 0, "", "", result.Error, false)
	}
	defer resp.Body.Close()

	result.StatusCode = resp.StatusCode
	bodyBytes, _ := io.ReadAll(resp.Body)
	result.ResponseBody = string(bodyBytes)

	var respJSON map[string]any
	if json.Unmarshal(bodyBytes, &respJSON) == nil {
		result.ResponseJSON = respJSON
	}

	success := resp.StatusCode >= 200 && resp.StatusCode < 300
	if result.ResponseJSON != nil {
		if errPayload, ok := result.ResponseJSON["error"].(map[string]any); ok && len(errPayload) > 0 {
			if code, ok := errPayload["code"].(string); ok {
				result.ErrorCode = code
			} else if typ, ok := errPayload["type"].(string); ok {
				result.ErrorCode = typ
			}
			if msg, ok := errPayload["message"].(string); ok {
				result.Error = msg
			}
			success = false
		}
		if data, ok := result.ResponseJSON["data"].(map[string]any); ok {
			result.NotionTaskID = firstString(data, "notion_page_id", "notion_task_id", "page_id")
		}
		if status, ok := result.ResponseJSON["status"].(string); ok && status == "error" {
			success = false
		}
	}
	result.Success = success

	return result, artifactBody(envelope, result.ResponseJSON, result.StatusCode, result.ResponseBody, result.ErrorCode, result.Error, result.Success)
}

// buildRequest maps one action onto its gateway endpoint and request
// envelope (spec §4.6 table of action -> endpoint).
func (e *Executor) buildRequest(actorID, requestID string, action contracts.Action) (string, map[string]any, error) {
	endpoint, err := e.cfg.pathFor(action.Action)
	if err != nil {
		return "", nil, err
	}

	var gatewayPayload any
	switch action.Action {
	case contracts.ActionTasksCreate:
		gatewayPayload = map[string]any{"task": action.Payload}
	case contracts.ActionTasksUpdate:
		if action.Payload["notion_page_id"] == nil || action.Payload["notion_page_id"] == "" {
			return "", nil, fmt.Errorf("executor: missing notion_page_id for update")
		}
		gatewayPayload = action.Payload
	case contracts.ActionListAddItem:
		gatewayPayload = map[string]any{"list_item": action.Payload}
	case contracts.ActionNoteCapture:
		gatewayPayload = map[string]any{"note": action.Payload}
	}

	actor := actorID
	if actor == "" {
		actor = "intent_normaliser"
	}
	request := requestID
	if request == "" {
		request = ids.NewRequestID()
	}

	envelope := map[string]any{
		"request_id":      request,
		"idempotency_key": action.IdempotencyKey,
		"actor":           actor,
		"payload":         gatewayPayload,
	}
	return endpoint, envelope, nil
}

func firstString(m map[string]any, keys ...string) string {
	for _, k := range keys {
		if v, ok := m[k].(string); ok && v != "" {
			return v
		}
	}
	return ""
}

func artifactBody(request map[string]any, responseJSON map[string]any, statusCode int, responseBody, errorCode, errMsg string, success bool) map[string]any {
	var statusCodeVal any
	if statusCode != 0 {
		statusCodeVal = statusCode
	}
	return map[string]any{
		"request": request,
		"response": map[string]any{
			"status_code": statusCodeVal,
			"body":        responseBody,
			"json":        responseJSON,
			"error":       nullableString(errMsg),
			"error_code":  nullableString(errorCode),
		},
		"success": success,
	}
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
