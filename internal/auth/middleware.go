// middleware.go - HTTP middleware for auth enforcement.
// Provides Bearer token extraction and claims context injection.
package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"
)

// contextKey is an unexported type to avoid context key collisions.
type contextKey string

const claimsKey contextKey = "auth_claims"

// RequireAuth validates the Bearer JWT in the Authorization header and
// injects the parsed claims into the request context. On failure it
// responds with 401 JSON.
func (v *Verifier) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenStr := extractBearerToken(r)
		if tokenStr == "" {
			writeError(w, http.StatusUnauthorized, "missing_token", "Authorization header required")
			return
		}

		claims, err := v.ValidateAccessToken(tokenStr)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "invalid_token", "Invalid or expired token")
			return
		}

		next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), claims)))
	})
}

// RequireAdmin is RequireAuth plus the administrative role.
func (v *Verifier) RequireAdmin(next http.Handler) http.Handler {
	return v.RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if c := ClaimsFromContext(r.Context()); c == nil || !c.IsAdmin() {
			writeError(w, http.StatusForbidden, "forbidden", "Admin access required")
			return
		}
		next.ServeHTTP(w, r)
	}))
}

// ValidateJWT extracts and validates the Bearer JWT from a request without
// writing a response. Used by endpoints that accept more than one credential.
func (v *Verifier) ValidateJWT(r *http.Request) (*Claims, error) {
	tokenStr := extractBearerToken(r)
	if tokenStr == "" {
		return nil, errors.New("missing bearer token")
	}
	return v.ValidateAccessToken(tokenStr)
}

// WithClaims returns a context carrying claims.
func WithClaims(ctx context.Context, c *Claims) context.Context {
	return context.WithValue(ctx, claimsKey, c)
}

// ClaimsFromContext extracts JWT claims from the request context.
// Returns nil if RequireAuth middleware was not applied.
func ClaimsFromContext(ctx context.Context) *Claims {
	if c, ok := ctx.Value(claimsKey).(*Claims); ok {
		return c
	}
	return nil
}

// extractBearerToken pulls the token from "Authorization: Bearer <token>".
// Returns empty string if header is missing or malformed.
func extractBearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if h == "" {
		return ""
	}
	parts := strings.SplitN(h, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
