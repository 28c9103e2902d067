// Package api wires the HTTP surface: a net/http ServeMux, the shared
// middleware chain, and one handler per endpoint spec §6 names.
package api

import (
	"net/http"

	"github.com/matthewcove-stack/intent-normaliser/internal/audit"
	"github.com/matthewcove-stack/intent-normaliser/internal/auth"
	"github.com/matthewcove-stack/intent-normaliser/internal/lifecycle"
	"github.com/matthewcove-stack/intent-normaliser/internal/store"
)

// Server bundles the dependencies every handler needs.
type Server struct {
	Controller     *lifecycle.Controller
	Clarifications *store.Clarifications
	Journal        *store.Journal
	Audit          audit.Logger
	Version        string
	GitSHA         string
	ArtifactVer    int
	DBPing         func() error
}

// Options configures the middleware chain wrapping the mux.
type Options struct {
	BearerToken string
	CORSOrigins []string
	RateRPS     int
	RateBurst   int
}

// NewHandler builds the full HTTP handler: routes wrapped in request-id,
// CORS, rate-limit, and bearer-auth middleware, applied in that order so a
// request is tagged and CORS-resolved before it can be rejected for auth.
func NewHandler(s *Server, opts Options) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /version", s.handleVersion)
	mux.HandleFunc("POST /v1/intents", s.handleIngestIntent)
	mux.HandleFunc("GET /v1/intents/{id}", s.handleGetIntent)
	mux.HandleFunc("POST /v1/actions", s.handleIngestAction)
	mux.HandleFunc("GET /v1/clarifications", s.handleListClarifications)
	mux.HandleFunc("POST /v1/clarifications/{id}/answer", s.handleAnswerClarification)

	limiter := auth.NewRateLimiter(opts.RateRPS, opts.RateBurst)

	var handler http.Handler = mux
	handler = auth.NewBearerMiddleware(opts.BearerToken)(handler)
	handler = limiter.Middleware(handler)
	handler = auth.CORSMiddleware(opts.CORSOrigins)(handler)
	handler = auth.RequestIDMiddleware(handler)
	return handler
}
