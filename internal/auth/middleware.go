package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

type contextKey string

const claimsKey contextKey = "claims"

// Middleware gates HTTP handlers behind token verification. A nil
// verifier disables authentication entirely; every request passes with
// no claims attached.
type Middleware struct {
	verifier *Verifier
}

// NewMiddleware wraps a verifier. Pass nil to run the API open.
func NewMiddleware(verifier *Verifier) *Middleware {
	return &Middleware{verifier: verifier}
}

// Enabled reports whether requests are actually checked.
func (m *Middleware) Enabled() bool {
	return m.verifier != nil
}

// RequireAuth verifies the bearer token and stores claims in the
// request context. The health endpoint is always open.
func (m *Middleware) RequireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if m.verifier == nil || r.URL.Path == "/api/v1/health" {
			next(w, r)
			return
		}

		token, err := bearerToken(r)
		if err != nil {
			writeAuthError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required")
			return
		}

		claims, err := m.verifier.VerifyToken(token)
		if err != nil {
			writeAuthError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Invalid token")
			return
		}

		ctx := context.WithValue(r.Context(), claimsKey, claims)
		next(w, r.WithContext(ctx))
	}
}

// RequireScope rejects requests whose claims lack any of the given
// scopes. It is a no-op when authentication is disabled.
func (m *Middleware) RequireScope(scopes ...string) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			if m.verifier == nil {
				next(w, r)
				return
			}

			claims := ClaimsFromRequest(r)
			if claims == nil {
				writeAuthError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required")
				return
			}
			if !hasScopes(claims, scopes) {
				writeAuthError(w, http.StatusForbidden, "FORBIDDEN", "Insufficient permissions")
				return
			}
			next(w, r)
		}
	}
}

// ClaimsFromRequest returns the claims RequireAuth stored, or nil.
func ClaimsFromRequest(r *http.Request) *Claims {
	claims, ok := r.Context().Value(claimsKey).(*Claims)
	if !ok {
		return nil
	}
	return claims
}

func bearerToken(r *http.Request) (string, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", fmt.Errorf("missing Authorization header")
	}
	if !strings.HasPrefix(header, "Bearer ") {
		return "", fmt.Errorf("invalid Authorization header format")
	}
	token := strings.TrimPrefix(header, "Bearer ")
	if token == "" {
		return "", fmt.Errorf("empty token")
	}
	return token, nil
}

func hasScopes(claims *Claims, required []string) bool {
	for _, want := range required {
		found := false
		for _, have := range claims.Scopes {
			if have == want {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// writeAuthError emits the API error envelope without importing the
// api package.
func writeAuthError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"result":        "error",
		"code":          code,
		"message":       message,
		"correlationId": fmt.Sprintf("%d", time.Now().UnixNano()),
	})
}
