package api

import (
	"context"
	"net/http"
	"strings"
)

type contextKey string

const principalKey contextKey = "principal"

// WithPrincipal identifies the caller. Verification of the credential is the
// gateway's job; this service only needs a stable principal identifier to
// scope sessions and forward to the course-creation API.
func WithPrincipal(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		principal := r.Header.Get("X-User-ID")
		if principal == "" {
			if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
				principal = strings.TrimPrefix(auth, "Bearer ")
			}
		}

		if principal == "" {
			respondError(w, http.StatusUnauthorized, "unauthenticated", "missing principal")
			return
		}

		ctx := context.WithValue(r.Context(), principalKey, principal)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Principal returns the caller identity set by WithPrincipal
func Principal(ctx context.Context) string {
	principal, _ := ctx.Value(principalKey).(string)
	return principal
}
