// Package normalize implements the pure packet-to-plan normalisation
// algorithm: field validation, relative-date resolution, and project
// disambiguation against confidence thresholds.
package normalize

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/matthewcove-stack/intent-normaliser/internal/canonicalize"
	"github.com/matthewcove-stack/intent-normaliser/internal/contracts"
	"github.com/matthewcove-stack/intent-normaliser/internal/resolver"
)

// Status is the tag of a normalisation Result.
type Status string

const (
	StatusReady               Status = "ready"
	StatusNeedsClarification  Status = "needs_clarification"
	StatusRejected            Status = "rejected"
)

// ClarificationPayload is the question/candidates pair the Controller turns
// into a Clarification row.
type ClarificationPayload struct {
	Question           string
	ExpectedAnswerType contracts.ExpectedAnswerType
	Candidates         []contracts.Candidate
}

// Result is the tagged union normalize.Run returns.
type Result struct {
	Status         Status
	CanonicalDraft map[string]any
	FinalCanonical map[string]any
	Plan           *contracts.Plan
	Clarification  *ClarificationPayload
	ErrorCode      string
	Message        string
	Details        map[string]any
}

// Config carries the policy knobs spec §4.2 names.
type Config struct {
	UserTimezone               string
	MinConfidenceToWrite       float64
	MaxInferredFields          int
	ProjectResolutionThreshold float64
	ProjectResolutionMargin    float64
}

var weekdayIndex = map[string]int{
	"monday": 0, "tuesday": 1, "wednesday": 2, "thursday": 3,
	"friday": 4, "saturday": 5, "sunday": 6,
}

// Run evaluates the ordered checks of spec §4.2 against packet, calling
// resolver only when a string project selector needs disambiguation.
func Run(ctx context.Context, packet map[string]any, cfg Config, res resolver.ProjectResolver) Result {
	confidence, hasConfidence := asFloat(packet["confidence"])
	if hasConfidence && confidence < cfg.MinConfidenceToWrite {
		return rejected(contracts.ErrPolicyLowConfidence, "confidence below the write threshold", map[string]any{
			"confidence": confidence,
			"threshold":  cfg.MinConfidenceToWrite,
		})
	}

	intentType, _ := packet["intent_type"].(string)
	fields, _ := packet["fields"].(map[string]any)
	if fields == nil {
		fields = map[string]any{}
	}

	if intentType == "" {
		return needsClarification(
			map[string]any{
				"intent_type": nil,
				"fields":      fields,
				"pending":     map[string]any{"field": "intent_type"},
			},
			&ClarificationPayload{
				Question:           "What is the intent type?",
				ExpectedAnswerType: contracts.AnswerTypeFreeText,
			},
		)
	}

	switch intentType {
	case contracts.IntentTypeCreateTask, contracts.IntentTypeUpdateTask,
		contracts.IntentTypeAddListItem, contracts.IntentTypeCaptureNote:
	default:
		return rejected(contracts.ErrUnsupportedIntentType,
			fmt.Sprintf("unsupported intent_type: %s", intentType), nil)
	}

	canonicalFields := map[string]any{}
	inferences := []map[string]any{}

	switch intentType {
	case contracts.IntentTypeCreateTask:
		title, _ := fields["title"].(string)
		if title == "" {
			return rejected(contracts.ErrValidation, "missing required field: title",
				map[string]any{"field": "title"})
		}
		canonicalFields["title"] = title

		if clarify := resolveProject(ctx, intentType, fields, canonicalFields, cfg, res); clarify != nil {
			return *clarify
		}

		if clarify := resolveDueField(intentType, fields, canonicalFields, cfg, &inferences); clarify != nil {
			return *clarify
		}

	case contracts.IntentTypeUpdateTask:
		taskID := firstNonEmptyString(fields["task_id"], fields["notion_page_id"])
		if taskID == "" {
			return rejected(contracts.ErrPolicyMissingTaskID, "missing required field: task_id", nil)
		}
		canonicalFields["task_id"] = taskID

		patch := map[string]any{}
		if status, ok := fields["status"].(string); ok && status != "" {
			patch["status"] = status
		}
		if priority, ok := fields["priority"].(string); ok && priority != "" {
			patch["priority"] = priority
		}
		if due, ok := fields["due"]; ok && due != nil {
			patchFields := map[string]any{"due": due}
			if clarify := resolveDueField(intentType, patchFields, patch, cfg, &inferences); clarify != nil {
				return *clarify
			}
		}
		if len(patch) == 0 {
			return rejected(contracts.ErrValidation, "update_task requires at least one updatable field", nil)
		}
		canonicalFields["patch"] = patch

	case contracts.IntentTypeAddListItem:
		item, _ := fields["item"].(string)
		if item == "" {
			return rejected(contracts.ErrValidation, "missing required field: item",
				map[string]any{"field": "item"})
		}
		canonicalFields["item"] = item
		if listID, ok := fields["list_id"].(string); ok && listID != "" {
			canonicalFields["list_id"] = listID
		}

	case contracts.IntentTypeCaptureNote:
		note, _ := fields["note"].(string)
		if note == "" {
			return rejected(contracts.ErrValidation, "missing required field: note",
				map[string]any{"field": "note"})
		}
		canonicalFields["note"] = note
		if projectVal, ok := fields["project"]; ok {
			canonicalFields["project"] = projectVal
		}
	}

	if len(inferences) > cfg.MaxInferredFields {
		return rejected(contracts.ErrPolicyTooManyInferences,
			"too many inferred fields for a single packet",
			map[string]any{"inferred": len(inferences), "max": cfg.MaxInferredFields})
	}

	finalCanonical := map[string]any{
		"intent_type": intentType,
		"fields":      canonicalFields,
	}
	if len(inferences) > 0 {
		finalCanonical["resolution"] = map[string]any{"inferences": inferences}
	}

	return Result{
		Status:         StatusReady,
		CanonicalDraft: finalCanonical,
		FinalCanonical: finalCanonical,
		Plan:           buildPlan(intentType, canonicalFields),
	}
}

// resolveProject applies spec §4.2 step 5 (create_task only). It mutates
// canonicalFields in place and returns a non-nil clarification Result when
// resolution could not complete.
func resolveProject(ctx context.Context, intentType string, fields, canonicalFields map[string]any, cfg Config, res resolver.ProjectResolver) *Result {
	if projectID, ok := fields["project_id"]; ok {
		canonicalFields["project_id"] = projectID
		return nil
	}

	projectVal, hasProject := fields["project"]
	if !hasProject {
		return nil
	}
	if resolved, _ := fields["project_resolved"].(bool); resolved {
		canonicalFields["project"] = projectVal
		return nil
	}

	selector, ok := projectVal.(string)
	if !ok {
		canonicalFields["project"] = projectVal
		return nil
	}

	var candidates []resolver.Candidate
	if res != nil {
		candidates, _ = res.Resolve(ctx, selector)
	}
	best := resolver.SelectHighConfidence(candidates, cfg.ProjectResolutionThreshold, cfg.ProjectResolutionMargin)
	if best != nil {
		canonicalFields["project_id"] = best.ID
		canonicalFields["project"] = best.Label
		return nil
	}

	wireCandidates := make([]contracts.Candidate, 0, len(candidates))
	for _, c := range candidates {
		wireCandidates = append(wireCandidates, contracts.Candidate{ID: c.ID, Label: c.Label})
	}

	answerType := contracts.AnswerTypeFreeText
	question := fmt.Sprintf("Provide the project id for '%s'.", selector)
	if len(wireCandidates) > 0 {
		answerType = contracts.AnswerTypeChoice
		question = fmt.Sprintf("Which project matches '%s'?", selector)
	}

	draftFields := map[string]any{}
	for k, v := range canonicalFields {
		draftFields[k] = v
	}
	draftFields["project"] = map[string]any{"selector": selector, "project_id": nil}

	result := needsClarification(
		map[string]any{
			"intent_type": intentType,
			"fields":      draftFields,
			"pending":     map[string]any{"field": "project", "selector": selector},
		},
		&ClarificationPayload{
			Question:           question,
			ExpectedAnswerType: answerType,
			Candidates:         wireCandidates,
		},
	)
	return &result
}

// resolveDueField applies spec §4.2 step 6 to fields["due"], writing the
// resolved value into out["due"] and appending to *inferences when the
// value was relative. Returns a non-nil clarification Result on failure.
func resolveDueField(intentType string, fields, out map[string]any, cfg Config, inferences *[]map[string]any) *Result {
	dueVal, hasDue := fields["due"]
	if !hasDue || dueVal == nil {
		return nil
	}

	dueStr, ok := dueVal.(string)
	if !ok {
		out["due"] = dueVal
		return nil
	}

	if isRelativeDueLabel(dueStr) {
		resolved, ok := resolveRelativeDue(dueStr, cfg.UserTimezone)
		if !ok {
			result := needsClarificationDue(intentType, out, dueStr)
			return &result
		}
		out["due"] = resolved
		*inferences = append(*inferences, map[string]any{"field": "due", "selector": dueStr, "resolved": resolved})
		return nil
	}

	if isISO8601(dueStr) {
		out["due"] = dueStr
		return nil
	}

	result := needsClarificationDue(intentType, out, dueStr)
	return &result
}

func needsClarificationDue(intentType string, canonicalFields map[string]any, selector string) Result {
	draftFields := map[string]any{}
	for k, v := range canonicalFields {
		draftFields[k] = v
	}
	draftFields["due"] = map[string]any{"selector": selector}

	return needsClarification(
		map[string]any{
			"intent_type": intentType,
			"fields":      draftFields,
			"pending":     map[string]any{"field": "due", "selector": selector},
		},
		&ClarificationPayload{
			Question:           "What is the due date?",
			ExpectedAnswerType: contracts.AnswerTypeDate,
		},
	)
}

func isRelativeDueLabel(value string) bool {
	_, _, ok := relativeDueLabel(value)
	return ok
}

// relativeDueLabel classifies a trimmed, lowercased due-date selector.
func relativeDueLabel(value string) (kind string, weekday string, ok bool) {
	lowered := strings.ToLower(strings.TrimSpace(value))
	switch {
	case lowered == "today":
		return "today", "", true
	case lowered == "tomorrow":
		return "tomorrow", "", true
	case lowered == "next week" || lowered == "next week monday":
		return "next_week", "", true
	case strings.HasPrefix(lowered, "next "):
		wd := strings.TrimPrefix(lowered, "next ")
		if _, ok := weekdayIndex[wd]; ok {
			return "next_weekday", wd, true
		}
	default:
		if _, ok := weekdayIndex[lowered]; ok {
			return "bare_weekday", lowered, true
		}
	}
	return "", "", false
}

// resolveRelativeDue turns a recognised relative label into an ISO-8601
// date string, anchored to the current date in userTimezone.
func resolveRelativeDue(value, userTimezone string) (string, bool) {
	kind, weekday, ok := relativeDueLabel(value)
	if !ok {
		return "", false
	}

	loc, err := time.LoadLocation(userTimezone)
	if err != nil {
		return "", false
	}
	now := time.Now().In(loc)
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, loc)

	switch kind {
	case "today":
		return today.Format("2006-01-02"), true
	case "tomorrow":
		return today.AddDate(0, 0, 1).Format("2006-01-02"), true
	case "next_week":
		return today.AddDate(0, 0, daysAheadToWeekday(0, today)).Format("2006-01-02"), true
	case "next_weekday", "bare_weekday":
		target := weekdayIndex[weekday]
		return today.AddDate(0, 0, daysAheadToWeekday(target, today)).Format("2006-01-02"), true
	}
	return "", false
}

// daysAheadToWeekday returns the number of days to add to today to reach
// the strictly next occurrence of target (Monday=0 .. Sunday=6), skipping a
// full week when today already is that weekday.
func daysAheadToWeekday(target int, today time.Time) int {
	current := (int(today.Weekday()) + 6) % 7 // remap Sunday=0..Saturday=6 to Monday=0..Sunday=6
	days := (target - current + 7) % 7
	if days == 0 {
		days = 7
	}
	return days
}

var isoLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

func isISO8601(value string) bool {
	for _, layout := range isoLayouts {
		if _, err := time.Parse(layout, value); err == nil {
			return true
		}
	}
	return false
}

// BuildPlanFromCanonical rebuilds the plan for an already-ready intent from
// its persisted final_canonical, without re-running any of the validation
// or resolution steps in Run. Used on replay, where the intent already
// carries its canonical form.
func BuildPlanFromCanonical(intentType string, canonicalFields map[string]any) *contracts.Plan {
	return buildPlan(intentType, canonicalFields)
}

// buildPlan maps a ready intent's canonical fields onto spec §4.3's plan
// construction table.
func buildPlan(intentType string, canonicalFields map[string]any) *contracts.Plan {
	var action string
	payload := canonicalFields

	switch intentType {
	case contracts.IntentTypeUpdateTask:
		action = contracts.ActionTasksUpdate
		patch, _ := canonicalFields["patch"].(map[string]any)
		payload = map[string]any{
			"notion_page_id": canonicalFields["task_id"],
			"patch":          patch,
		}
	case contracts.IntentTypeAddListItem:
		action = contracts.ActionListAddItem
	case contracts.IntentTypeCaptureNote:
		action = contracts.ActionNoteCapture
	default:
		action = contracts.ActionTasksCreate
	}

	key, _ := canonicalize.Hash(map[string]any{"action": action, "payload": payload})
	return &contracts.Plan{
		Actions: []contracts.Action{
			{
				Kind:           "action",
				Action:         action,
				Payload:        payload,
				IdempotencyKey: "action:" + key,
			},
		},
	}
}

func needsClarification(draft map[string]any, payload *ClarificationPayload) Result {
	return Result{
		Status:         StatusNeedsClarification,
		CanonicalDraft: draft,
		Clarification:  payload,
	}
}

func rejected(code, message string, details map[string]any) Result {
	return Result{
		Status:    StatusRejected,
		ErrorCode: code,
		Message:   message,
		Details:   details,
	}
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case nil:
		return 0, false
	default:
		return 0, false
	}
}

func firstNonEmptyString(values ...any) string {
	for _, v := range values {
		if s, ok := v.(string); ok && s != "" {
			return s
		}
	}
	return ""
}
