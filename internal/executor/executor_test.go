package executor

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matthewcove-stack/intent-normaliser/internal/contracts"
)

func testConfig(baseURL string) Config {
	return Config{
		BaseURL:          baseURL,
		BearerToken:      "secret-token",
		TasksCreatePath:  "/gateway/tasks/create",
		TasksUpdatePath:  "/gateway/tasks/update",
		ListAddItemPath:  "/gateway/list/add-item",
		NotesCapturePath: "/gateway/notes/capture",
	}
}

func TestExecute_NotConfiguredReturnsErrNotConfigured(t *testing.T) {
	e := New(Config{}, nil)
	_, err := e.Execute(context.Background(), "int_1", "cor_1", "actor_1", "req_1", contracts.Plan{})
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestExecute_SuccessfulActionExtractsNotionTaskID(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "intent_normaliser", body["actor"])
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"status": "ok",
			"data":   map[string]any{"notion_page_id": "page_123"},
		})
	}))
	defer srv.Close()

	e := New(testConfig(srv.URL), nil)
	plan := contracts.Plan{Actions: []contracts.Action{
		{Kind: "create_task", Action: contracts.ActionTasksCreate, Payload: map[string]any{"title": "Buy milk"}, IdempotencyKey: "action:abc"},
	}}

	out, err := e.Execute(context.Background(), "int_1", "cor_1", "", "", plan)
	require.NoError(t, err)
	assert.True(t, out.AllSucceeded)
	require.Len(t, out.Results, 1)
	assert.True(t, out.Results[0].Success)
	assert.Equal(t, "page_123", out.Results[0].NotionTaskID)
	assert.Equal(t, "Bearer secret-token", gotAuth)
}

func TestExecute_ErrorBodyMarksActionFailed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]any{"code": "RATE_LIMITED", "message": "too many requests"},
		})
	}))
	defer srv.Close()

	e := New(testConfig(srv.URL), nil)
	plan := contracts.Plan{Actions: []contracts.Action{
		{Kind: "create_task", Action: contracts.ActionTasksCreate, Payload: map[string]any{"title": "x"}, IdempotencyKey: "action:def"},
	}}

	out, err := e.Execute(context.Background(), "int_1", "cor_1", "actor_1", "req_1", plan)
	require.NoError(t, err)
	assert.False(t, out.AllSucceeded)
	assert.False(t, out.Results[0].Success)
	assert.Equal(t, "RATE_LIMITED", out.Results[0].ErrorCode)
}

func TestExecute_NonJSONStatusErrorMarksFailed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(map[string]any{"status": "error"})
	}))
	defer srv.Close()

	e := New(testConfig(srv.URL), nil)
	plan := contracts.Plan{Actions: []contracts.Action{
		{Kind: "capture_note", Action: contracts.ActionNoteCapture, Payload: map[string]any{"note": "hi"}, IdempotencyKey: "action:ghi"},
	}}

	out, err := e.Execute(context.Background(), "int_1", "cor_1", "actor_1", "req_1", plan)
	require.NoError(t, err)
	assert.False(t, out.Results[0].Success)
}

func TestExecute_UpdateTaskMissingNotionPageIDFailsWithoutHTTPCall(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	e := New(testConfig(srv.URL), nil)
	plan := contracts.Plan{Actions: []contracts.Action{
		{Kind: "update_task", Action: contracts.ActionTasksUpdate, Payload: map[string]any{"patch": map[string]any{"status": "done"}}, IdempotencyKey: "action:jkl"},
	}}

	out, err := e.Execute(context.Background(), "int_1", "cor_1", "actor_1", "req_1", plan)
	require.NoError(t, err)
	assert.False(t, out.Results[0].Success)
	assert.NotEmpty(t, out.Results[0].Error)
	assert.False(t, called)
}

func TestExecute_5xxIsFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("boom"))
	}))
	defer srv.Close()

	e := New(testConfig(srv.URL), nil)
	plan := contracts.Plan{Actions: []contracts.Action{
		{Kind: "add_list_item", Action: contracts.ActionListAddItem, Payload: map[string]any{"item": "eggs"}, IdempotencyKey: "action:mno"},
	}}

	out, err := e.Execute(context.Background(), "int_1", "cor_1", "actor_1", "req_1", plan)
	require.NoError(t, err)
	assert.False(t, out.Results[0].Success)
	assert.Equal(t, http.StatusInternalServerError, out.Results[0].StatusCode)
}
