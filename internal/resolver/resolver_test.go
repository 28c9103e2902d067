package resolver

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSelectHighConfidence_PicksClearWinner(t *testing.T) {
	cands := []Candidate{
		{ID: "p1", Label: "Atlas", Score: 0.95},
		{ID: "p2", Label: "Zephyr", Score: 0.40},
	}
	got := SelectHighConfidence(cands, 0.90, 0.10)
	require.NotNil(t, got)
	assert.Equal(t, "p1", got.ID)
}

func TestSelectHighConfidence_RejectsBelowThreshold(t *testing.T) {
	cands := []Candidate{{ID: "p1", Score: 0.80}}
	assert.Nil(t, SelectHighConfidence(cands, 0.90, 0.10))
}

func TestSelectHighConfidence_RejectsInsufficientMargin(t *testing.T) {
	cands := []Candidate{
		{ID: "p1", Score: 0.95},
		{ID: "p2", Score: 0.90},
	}
	assert.Nil(t, SelectHighConfidence(cands, 0.90, 0.10))
}

func TestSelectHighConfidence_EmptyReturnsNil(t *testing.T) {
	assert.Nil(t, SelectHighConfidence(nil, 0.90, 0.10))
}

func TestStub_AlwaysEmpty(t *testing.T) {
	cands, err := Stub{}.Resolve(context.Background(), "anything")
	require.NoError(t, err)
	assert.Empty(t, cands)
}

func TestHTTP_ParsesResultsField(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		_ = json.NewEncoder(w).Encode(map[string]any{
			"results": []map[string]any{
				{"id": "p1", "label": "Atlas", "score": 0.97},
			},
		})
	}))
	defer srv.Close()

	h := NewHTTP(srv.URL, "tok", "", time.Second)
	cands, err := h.Resolve(context.Background(), "atlas")
	require.NoError(t, err)
	require.Len(t, cands, 1)
	assert.Equal(t, "p1", cands[0].ID)
	assert.Equal(t, 0.97, cands[0].Score)
}

func TestHTTP_FallsBackToConfidenceField(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"candidates": []map[string]any{
				{"id": "p2", "label": "Zephyr", "confidence": 0.5},
			},
		})
	}))
	defer srv.Close()

	h := NewHTTP(srv.URL, "", "", time.Second)
	cands, err := h.Resolve(context.Background(), "zephyr")
	require.NoError(t, err)
	require.Len(t, cands, 1)
	assert.Equal(t, 0.5, cands[0].Score)
}

func TestHTTP_NonOKStatusYieldsNoCandidatesNoError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	h := NewHTTP(srv.URL, "", "", time.Second)
	cands, err := h.Resolve(context.Background(), "atlas")
	require.NoError(t, err)
	assert.Empty(t, cands)
}

func TestHTTP_UnreachableYieldsNoCandidatesNoError(t *testing.T) {
	h := NewHTTP("http://127.0.0.1:1", "", "", 50*time.Millisecond)
	cands, err := h.Resolve(context.Background(), "atlas")
	require.NoError(t, err)
	assert.Empty(t, cands)
}
