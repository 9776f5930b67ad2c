// ABOUTME: Bearer-token auth middleware for the REST control surface, grounded on the teacher's
// ABOUTME: spec/server/auth.go pattern. An empty token disables auth entirely (local-only default).
package server

import (
	"net/http"
	"strings"
)

// RequireAuth builds middleware that rejects requests missing a matching
// "Authorization: Bearer <token>" header. If token is empty, auth is
// disabled (the loopback-bind check in Config is the only protection, which
// matches the teacher's own local-first posture).
func RequireAuth(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if token == "" {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
			if got == "" || got != token {
				writeError(w, http.StatusUnauthorized, "unauthorized")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
