package httpserver

import (
	"net/http"

	"github.com/hearthforge/backend/internal/auth"
)

// callerID returns the resolved identity's user id, or 0 if the request
// carried no (or an optional) authentication — several v3 routes are
// readable by anonymous callers but return more for an authenticated one.
func callerID(r *http.Request) int64 {
	id, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		return 0
	}
	return id.UserID
}

// optionalIdentity resolves an Authorization bearer into the request
// context when present and valid, but never rejects the request when it is
// absent or invalid: several v3 GET routes return richer results to an
// authenticated caller (e.g. a draft project visible to its team) while
// staying reachable anonymously.
func optionalIdentity(authn *auth.Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if id, err := authn.ResolveIdentity(r.Context(), r, 0); err == nil {
				r = r.WithContext(auth.WithIdentity(r.Context(), id))
			}
			next.ServeHTTP(w, r)
		})
	}
}
