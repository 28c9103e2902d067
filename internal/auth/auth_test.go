package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestBearerMiddleware_RejectsMissingHeader(t *testing.T) {
	h := NewBearerMiddleware("secret")(okHandler())
	req := httptest.NewRequest(http.MethodPost, "/v1/intents", nil)
	rec := httptest.NewRecorder()

	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestBearerMiddleware_RejectsWrongToken(t *testing.T) {
	h := NewBearerMiddleware("secret")(okHandler())
	req := httptest.NewRequest(http.MethodPost, "/v1/intents", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	rec := httptest.NewRecorder()

	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestBearerMiddleware_AllowsValidTokenAndSetsActorID(t *testing.T) {
	var gotActor string
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotActor = GetActorID(r.Context())
		w.WriteHeader(http.StatusOK)
	})
	h := NewBearerMiddleware("secret")(next)

	req := httptest.NewRequest(http.MethodPost, "/v1/intents", nil)
	req.Header.Set("Authorization", "Bearer secret")
	req.Header.Set("X-Actor-Id", "actor-1")
	rec := httptest.NewRecorder()

	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "actor-1", gotActor)
}

func TestBearerMiddleware_AllowsPublicPathsWithoutToken(t *testing.T) {
	h := NewBearerMiddleware("secret")(okHandler())
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()

	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestBearerMiddleware_FailsClosedWhenTokenEmpty(t *testing.T) {
	h := NewBearerMiddleware("")(okHandler())
	req := httptest.NewRequest(http.MethodPost, "/v1/intents", nil)
	req.Header.Set("Authorization", "Bearer anything")
	rec := httptest.NewRecorder()

	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequestIDMiddleware_GeneratesWhenAbsent(t *testing.T) {
	var seen string
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r.Context())
	})
	h := RequestIDMiddleware(next)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.NotEmpty(t, seen)
	assert.Equal(t, seen, rec.Header().Get("X-Request-Id"))
}

func TestRequestIDMiddleware_ReusesClientSupplied(t *testing.T) {
	var seen string
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r.Context())
	})
	h := RequestIDMiddleware(next)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Request-Id", "client-supplied")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, "client-supplied", seen)
}

func TestCORSMiddleware_EchoesAllowedOrigin(t *testing.T) {
	h := CORSMiddleware([]string{"https://app.example.com"})(okHandler())
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "https://app.example.com")
	rec := httptest.NewRecorder()

	h.ServeHTTP(rec, req)

	assert.Equal(t, "https://app.example.com", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORSMiddleware_OmitsDisallowedOrigin(t *testing.T) {
	h := CORSMiddleware([]string{"https://app.example.com"})(okHandler())
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	rec := httptest.NewRecorder()

	h.ServeHTTP(rec, req)

	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORSMiddleware_HandlesPreflight(t *testing.T) {
	h := CORSMiddleware(nil)(okHandler())
	req := httptest.NewRequest(http.MethodOptions, "/v1/intents", nil)
	rec := httptest.NewRecorder()

	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestRateLimiter_BlocksBurstOverflow(t *testing.T) {
	rl := NewRateLimiter(1, 1)
	h := rl.Middleware(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.RemoteAddr = "203.0.113.5:1234"

	rec1 := httptest.NewRecorder()
	h.ServeHTTP(rec1, req)
	assert.Equal(t, http.StatusOK, rec1.Code)

	rec2 := httptest.NewRecorder()
	h.ServeHTTP(rec2, req)
	assert.Equal(t, http.StatusTooManyRequests, rec2.Code)
	assert.NotEmpty(t, rec2.Header().Get("Retry-After"))
}
