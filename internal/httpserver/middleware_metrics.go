package httpserver

import (
	"net/http"

	apperrors "github.com/hearthforge/backend/internal/errors"
)

// adminMetricsAuth implements spec.md's admin_key_guard: it protects an
// internal-only endpoint with a fixed API key. If no key is configured the
// endpoint is reachable without authentication (intended for local/dev
// deployments only); otherwise the request must carry an exact
// "Authorization: Bearer {key}" header.
func adminMetricsAuth(apiKey string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if apiKey == "" {
				next.ServeHTTP(w, r)
				return
			}
			if r.Header.Get("Authorization") != "Bearer "+apiKey {
				apperrors.Write(w, apperrors.New(apperrors.CodeAuthentication, "invalid or missing admin API key"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
