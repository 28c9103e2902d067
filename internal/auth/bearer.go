package auth

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/matthewcove-stack/intent-normaliser/internal/contracts"
)

// publicPaths never require a bearer token.
var publicPaths = map[string]bool{
	"/health":  true,
	"/version": true,
}

func isPublicPath(path string) bool {
	return publicPaths[path]
}

// NewBearerMiddleware returns auth middleware that compares the
// Authorization header against a single static token. token must be
// non-empty; a deployment without INTENT_SERVICE_TOKEN cannot start (see
// internal/config), so the fail-closed branch here only guards against a
// caller clearing it after startup.
func NewBearerMiddleware(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if isPublicPath(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}

			if token == "" {
				writeUnauthorized(w, "authentication not configured")
				return
			}

			header := r.Header.Get("Authorization")
			if header == "" {
				writeUnauthorized(w, "missing Authorization header")
				return
			}

			parts := strings.SplitN(header, " ", 2)
			if len(parts) != 2 || parts[0] != "Bearer" || parts[1] != token {
				writeUnauthorized(w, "invalid bearer token")
				return
			}

			ctx := r.Context()
			if actorID := r.Header.Get("X-Actor-Id"); actorID != "" {
				ctx = WithActorID(ctx, actorID)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func writeUnauthorized(w http.ResponseWriter, detail string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(contracts.ErrorBody{
		Error: contracts.ErrorDetail{
			Code:    "UNAUTHORIZED",
			Message: detail,
		},
	})
}
