package normalize

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matthewcove-stack/intent-normaliser/internal/contracts"
	"github.com/matthewcove-stack/intent-normaliser/internal/resolver"
)

func defaultConfig() Config {
	return Config{
		UserTimezone:               "UTC",
		MinConfidenceToWrite:       0.75,
		MaxInferredFields:          2,
		ProjectResolutionThreshold: 0.90,
		ProjectResolutionMargin:    0.10,
	}
}

type fakeResolver struct {
	candidates []resolver.Candidate
}

func (f fakeResolver) Resolve(ctx context.Context, selector string) ([]resolver.Candidate, error) {
	return f.candidates, nil
}

func TestRun_RejectsLowConfidence(t *testing.T) {
	packet := map[string]any{"intent_type": "create_task", "confidence": 0.5,
		"fields": map[string]any{"title": "Write report"}}
	got := Run(context.Background(), packet, defaultConfig(), resolver.Stub{})
	require.Equal(t, StatusRejected, got.Status)
	assert.Equal(t, contracts.ErrPolicyLowConfidence, got.ErrorCode)
}

func TestRun_NeedsClarificationWhenIntentTypeMissing(t *testing.T) {
	packet := map[string]any{"fields": map[string]any{"title": "x"}}
	got := Run(context.Background(), packet, defaultConfig(), resolver.Stub{})
	require.Equal(t, StatusNeedsClarification, got.Status)
	assert.Equal(t, "intent_type", got.CanonicalDraft["pending"].(map[string]any)["field"])
}

func TestRun_RejectsUnsupportedIntentType(t *testing.T) {
	packet := map[string]any{"intent_type": "delete_everything", "fields": map[string]any{}}
	got := Run(context.Background(), packet, defaultConfig(), resolver.Stub{})
	require.Equal(t, StatusRejected, got.Status)
	assert.Equal(t, contracts.ErrUnsupportedIntentType, got.ErrorCode)
}

func TestRun_CreateTask_RejectsMissingTitle(t *testing.T) {
	packet := map[string]any{"intent_type": "create_task", "fields": map[string]any{}}
	got := Run(context.Background(), packet, defaultConfig(), resolver.Stub{})
	require.Equal(t, StatusRejected, got.Status)
	assert.Equal(t, contracts.ErrValidation, got.ErrorCode)
	assert.Equal(t, "title", got.Details["field"])
}

func TestRun_CreateTask_ReadyWithoutProjectOrDue(t *testing.T) {
	packet := map[string]any{"intent_type": "create_task", "fields": map[string]any{"title": "Write report"}}
	got := Run(context.Background(), packet, defaultConfig(), resolver.Stub{})
	require.Equal(t, StatusReady, got.Status)
	require.NotNil(t, got.Plan)
	assert.Equal(t, contracts.ActionTasksCreate, got.Plan.Actions[0].Action)
	assert.Equal(t, "Write report", got.FinalCanonical["fields"].(map[string]any)["title"])
}

func TestRun_CreateTask_ProjectIDPassesThrough(t *testing.T) {
	packet := map[string]any{"intent_type": "create_task", "fields": map[string]any{
		"title": "Write report", "project_id": "proj-123",
	}}
	got := Run(context.Background(), packet, defaultConfig(), resolver.Stub{})
	require.Equal(t, StatusReady, got.Status)
	assert.Equal(t, "proj-123", got.FinalCanonical["fields"].(map[string]any)["project_id"])
}

func TestRun_CreateTask_ProjectHighConfidenceResolves(t *testing.T) {
	res := fakeResolver{candidates: []resolver.Candidate{
		{ID: "p1", Label: "Atlas", Score: 0.97},
		{ID: "p2", Label: "Zephyr", Score: 0.40},
	}}
	packet := map[string]any{"intent_type": "create_task", "fields": map[string]any{
		"title": "Write report", "project": "atlas",
	}}
	got := Run(context.Background(), packet, defaultConfig(), res)
	require.Equal(t, StatusReady, got.Status)
	assert.Equal(t, "p1", got.FinalCanonical["fields"].(map[string]any)["project_id"])
}

func TestRun_CreateTask_ProjectAmbiguousNeedsClarificationWithChoices(t *testing.T) {
	res := fakeResolver{candidates: []resolver.Candidate{
		{ID: "p1", Label: "Atlas", Score: 0.80},
		{ID: "p2", Label: "Zephyr", Score: 0.78},
	}}
	packet := map[string]any{"intent_type": "create_task", "fields": map[string]any{
		"title": "Write report", "project": "at",
	}}
	got := Run(context.Background(), packet, defaultConfig(), res)
	require.Equal(t, StatusNeedsClarification, got.Status)
	require.NotNil(t, got.Clarification)
	assert.Equal(t, contracts.AnswerTypeChoice, got.Clarification.ExpectedAnswerType)
	assert.Len(t, got.Clarification.Candidates, 2)
}

func TestRun_CreateTask_ProjectNoMatchesAsksFreeText(t *testing.T) {
	packet := map[string]any{"intent_type": "create_task", "fields": map[string]any{
		"title": "Write report", "project": "nonexistent",
	}}
	got := Run(context.Background(), packet, defaultConfig(), resolver.Stub{})
	require.Equal(t, StatusNeedsClarification, got.Status)
	assert.Equal(t, contracts.AnswerTypeFreeText, got.Clarification.ExpectedAnswerType)
}

func TestRun_CreateTask_DueToday(t *testing.T) {
	packet := map[string]any{"intent_type": "create_task", "fields": map[string]any{
		"title": "x", "due": "today",
	}}
	got := Run(context.Background(), packet, defaultConfig(), resolver.Stub{})
	require.Equal(t, StatusReady, got.Status)
	expected := time.Now().UTC().Format("2006-01-02")
	assert.Equal(t, expected, got.FinalCanonical["fields"].(map[string]any)["due"])
}

func TestRun_CreateTask_DueBareWeekdaySkipsAWeekWhenTodayMatches(t *testing.T) {
	now := time.Now().UTC()
	todayName := []string{"monday", "tuesday", "wednesday", "thursday", "friday", "saturday", "sunday"}[(int(now.Weekday())+6)%7]

	packet := map[string]any{"intent_type": "create_task", "fields": map[string]any{
		"title": "x", "due": todayName,
	}}
	got := Run(context.Background(), packet, defaultConfig(), resolver.Stub{})
	require.Equal(t, StatusReady, got.Status)
	resolved := got.FinalCanonical["fields"].(map[string]any)["due"].(string)
	parsed, err := time.Parse("2006-01-02", resolved)
	require.NoError(t, err)
	assert.Equal(t, 7, int(parsed.Sub(time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)).Hours()/24))
}

func TestRun_CreateTask_DueISOPassesThrough(t *testing.T) {
	packet := map[string]any{"intent_type": "create_task", "fields": map[string]any{
		"title": "x", "due": "2026-08-15",
	}}
	got := Run(context.Background(), packet, defaultConfig(), resolver.Stub{})
	require.Equal(t, StatusReady, got.Status)
	assert.Equal(t, "2026-08-15", got.FinalCanonical["fields"].(map[string]any)["due"])
}

func TestRun_CreateTask_DueUnresolvableAsksClarification(t *testing.T) {
	packet := map[string]any{"intent_type": "create_task", "fields": map[string]any{
		"title": "x", "due": "whenever, I guess",
	}}
	got := Run(context.Background(), packet, defaultConfig(), resolver.Stub{})
	require.Equal(t, StatusNeedsClarification, got.Status)
	assert.Equal(t, contracts.AnswerTypeDate, got.Clarification.ExpectedAnswerType)
	assert.Equal(t, "due", got.CanonicalDraft["pending"].(map[string]any)["field"])
}

func TestRun_UpdateTask_RejectsMissingTaskID(t *testing.T) {
	packet := map[string]any{"intent_type": "update_task", "fields": map[string]any{"status": "done"}}
	got := Run(context.Background(), packet, defaultConfig(), resolver.Stub{})
	require.Equal(t, StatusRejected, got.Status)
	assert.Equal(t, contracts.ErrPolicyMissingTaskID, got.ErrorCode)
}

func TestRun_UpdateTask_RejectsEmptyPatch(t *testing.T) {
	packet := map[string]any{"intent_type": "update_task", "fields": map[string]any{"task_id": "t1"}}
	got := Run(context.Background(), packet, defaultConfig(), resolver.Stub{})
	require.Equal(t, StatusRejected, got.Status)
	assert.Equal(t, contracts.ErrValidation, got.ErrorCode)
}

func TestRun_UpdateTask_ReadyBuildsNotionPageIDPlan(t *testing.T) {
	packet := map[string]any{"intent_type": "update_task", "fields": map[string]any{
		"task_id": "t1", "status": "done",
	}}
	got := Run(context.Background(), packet, defaultConfig(), resolver.Stub{})
	require.Equal(t, StatusReady, got.Status)
	require.NotNil(t, got.Plan)
	assert.Equal(t, contracts.ActionTasksUpdate, got.Plan.Actions[0].Action)
	assert.Equal(t, "t1", got.Plan.Actions[0].Payload["notion_page_id"])
}

func TestRun_AddListItem_RejectsMissingItem(t *testing.T) {
	packet := map[string]any{"intent_type": "add_list_item", "fields": map[string]any{}}
	got := Run(context.Background(), packet, defaultConfig(), resolver.Stub{})
	require.Equal(t, StatusRejected, got.Status)
}

func TestRun_AddListItem_Ready(t *testing.T) {
	packet := map[string]any{"intent_type": "add_list_item", "fields": map[string]any{
		"item": "milk", "list_id": "groceries",
	}}
	got := Run(context.Background(), packet, defaultConfig(), resolver.Stub{})
	require.Equal(t, StatusReady, got.Status)
	assert.Equal(t, contracts.ActionListAddItem, got.Plan.Actions[0].Action)
}

func TestRun_CaptureNote_RejectsMissingNote(t *testing.T) {
	packet := map[string]any{"intent_type": "capture_note", "fields": map[string]any{}}
	got := Run(context.Background(), packet, defaultConfig(), resolver.Stub{})
	require.Equal(t, StatusRejected, got.Status)
}

func TestRun_CaptureNote_Ready(t *testing.T) {
	packet := map[string]any{"intent_type": "capture_note", "fields": map[string]any{"note": "remember to call"}}
	got := Run(context.Background(), packet, defaultConfig(), resolver.Stub{})
	require.Equal(t, StatusReady, got.Status)
	assert.Equal(t, contracts.ActionNoteCapture, got.Plan.Actions[0].Action)
}

func TestRun_TooManyInferencesRejects(t *testing.T) {
	cfg := defaultConfig()
	cfg.MaxInferredFields = 0
	packet := map[string]any{"intent_type": "create_task", "fields": map[string]any{
		"title": "x", "due": "tomorrow",
	}}
	got := Run(context.Background(), packet, cfg, resolver.Stub{})
	require.Equal(t, StatusRejected, got.Status)
	assert.Equal(t, contracts.ErrPolicyTooManyInferences, got.ErrorCode)
}

func TestApplyClarificationAnswer_IntentType(t *testing.T) {
	draft := map[string]any{"fields": map[string]any{}, "pending": map[string]any{"field": "intent_type"}}
	out := ApplyClarificationAnswer(draft, contracts.AnswerRequest{AnswerText: "create_task"})
	assert.Equal(t, "create_task", out["intent_type"])
	assert.NotContains(t, out, "pending")
}

func TestApplyClarificationAnswer_ProjectByChoiceDropsProjectID(t *testing.T) {
	draft := map[string]any{
		"fields":  map[string]any{"project_id": "stale", "project": map[string]any{"selector": "at"}},
		"pending": map[string]any{"field": "project", "selector": "at"},
	}
	out := ApplyClarificationAnswer(draft, contracts.AnswerRequest{ChoiceID: "p1"})
	fields := out["fields"].(map[string]any)
	assert.Equal(t, "p1", fields["project"])
	assert.Equal(t, true, fields["project_resolved"])
	assert.NotContains(t, fields, "project_id")
}

func TestApplyClarificationAnswer_Due(t *testing.T) {
	draft := map[string]any{"fields": map[string]any{}, "pending": map[string]any{"field": "due"}}
	out := ApplyClarificationAnswer(draft, contracts.AnswerRequest{AnswerText: "2026-09-01"})
	assert.Equal(t, "2026-09-01", out["fields"].(map[string]any)["due"])
}
