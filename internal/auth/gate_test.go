package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/clerk/clerk-sdk-go/v2"
	"github.com/stretchr/testify/require"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestRequirePrefixPassesNonPrivilegedPaths(t *testing.T) {
	t.Parallel()

	gate := RequirePrefix("/api/admin", nil)
	req := httptest.NewRequest(http.MethodGet, "/api/applications", nil)
	rec := httptest.NewRecorder()

	gate(okHandler()).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
}

func TestRequirePrefixRejectsUnauthenticatedPrivilegedPath(t *testing.T) {
	t.Parallel()

	gate := RequirePrefix("/api/admin", nil)
	req := httptest.NewRequest(http.MethodGet, "/api/admin/applications", nil)
	rec := httptest.NewRecorder()

	gate(okHandler()).ServeHTTP(rec, req)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Contains(t, rec.Body.String(), "not signed in")
}

func TestRequirePrefixPassesAuthenticatedPrivilegedPath(t *testing.T) {
	t.Parallel()

	gate := RequirePrefix("/api/admin", nil)
	req := httptest.NewRequest(http.MethodGet, "/api/admin/applications", nil)
	claims := &clerk.SessionClaims{}
	claims.Subject = "user_123"
	req = req.WithContext(clerk.ContextWithSessionClaims(req.Context(), claims))
	rec := httptest.NewRecorder()

	gate(okHandler()).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
}
