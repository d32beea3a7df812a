// Package auth gates privileged routes behind the hosted identity
// provider. Identity resolution happens for every request; only paths under
// the privileged prefix are rejected when no identity resolved.
package auth

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/clerk/clerk-sdk-go/v2"
	clerkhttp "github.com/clerk/clerk-sdk-go/v2/http"
	"go.uber.org/zap"
)

// WithClerk returns the provider middleware that verifies the Authorization
// header and attaches resolved session claims to the request context. It
// does not reject anything itself; the prefix gate does.
func WithClerk(secretKey string) func(http.Handler) http.Handler {
	clerk.SetKey(secretKey)
	return clerkhttp.WithHeaderAuthorization()
}

// RequirePrefix rejects requests under prefix that carry no resolved
// identity. Everything else passes through unchanged.
func RequirePrefix(prefix string, logger *zap.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !strings.HasPrefix(r.URL.Path, prefix) {
				next.ServeHTTP(w, r)
				return
			}
			claims, ok := clerk.SessionClaimsFromContext(r.Context())
			if !ok || claims == nil {
				logger.Info("unauthenticated request to privileged path",
					zap.String("path", r.URL.Path),
				)
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				_ = json.NewEncoder(w).Encode(map[string]any{
					"success": false,
					"error":   "unauthorized: user not signed in",
				})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
