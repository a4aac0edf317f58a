package auth

import (
	"context"
	"net/http"
	"strings"
	"time"

	apperrors "github.com/hearthforge/backend/internal/errors"
	"github.com/hearthforge/backend/internal/storage"
)

// Identity is what a resolved Authorization header/session cookie yields:
// the acting user plus the scope set available to this specific request.
type Identity struct {
	UserID int64
	Scopes storage.Scope
	PATID  *int64 // set only when the bearer was a PAT, for last-used tracking
}

// Has reports whether the identity carries every scope in required.
func (i Identity) Has(required storage.Scope) bool {
	return i.Scopes.Has(required)
}

type identityContextKey struct{}

// WithIdentity attaches a resolved Identity to ctx.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityContextKey{}, id)
}

// IdentityFromContext extracts the Identity a prior middleware resolved.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityContextKey{}).(Identity)
	return id, ok
}

// sessionScopes is every scope except none — sessions are not limited by
// the PAT scope bitset, per spec.md §4.I.
const sessionScopes = ^storage.Scope(0)

// ResolveIdentity implements spec.md's get_user_from_headers: extract a
// bearer from Authorization (or a session cookie), resolve it to either a
// Session or a PAT, and require every scope in requiredScopes be present.
func (a *Authenticator) ResolveIdentity(ctx context.Context, r *http.Request, requiredScopes storage.Scope) (Identity, error) {
	token := bearerFromRequest(r)
	if token == "" {
		return Identity{}, apperrors.New(apperrors.CodeAuthentication, "missing authorization")
	}

	var id Identity
	if strings.HasPrefix(token, PATPrefix) {
		pat, err := a.store.GetPATByHash(ctx, HashToken(token))
		if err != nil {
			return Identity{}, apperrors.New(apperrors.CodeAuthentication, "invalid token")
		}
		if pat.ExpiresAt != nil && time.Now().After(*pat.ExpiresAt) {
			return Identity{}, apperrors.New(apperrors.CodeAuthentication, "token expired")
		}
		_ = a.store.TouchPATLastUsed(ctx, pat.ID, time.Now())
		id = Identity{UserID: pat.UserID, Scopes: pat.Scopes, PATID: &pat.ID}
	} else {
		sess, err := a.store.GetSession(ctx, token)
		if err != nil {
			return Identity{}, apperrors.New(apperrors.CodeAuthentication, "invalid session")
		}
		if time.Now().After(sess.ExpiresAt) {
			return Identity{}, apperrors.New(apperrors.CodeAuthentication, "session expired")
		}
		id = Identity{UserID: sess.UserID, Scopes: sessionScopes}
	}

	if !id.Has(requiredScopes) {
		return Identity{}, apperrors.New(apperrors.CodeAuthentication, "insufficient scope")
	}
	return id, nil
}

func bearerFromRequest(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		return strings.TrimPrefix(strings.TrimPrefix(h, "Bearer "), "bearer ")
	}
	if c, err := r.Cookie("session"); err == nil {
		return c.Value
	}
	return ""
}

// RequireScopes returns an http middleware that resolves the caller's
// Identity and rejects the request with 401 if requiredScopes are absent.
func (a *Authenticator) RequireScopes(requiredScopes storage.Scope) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, err := a.ResolveIdentity(r.Context(), r, requiredScopes)
			if err != nil {
				var appErr *apperrors.Error
				if !apperrors.As(err, &appErr) {
					appErr = apperrors.New(apperrors.CodeAuthentication, err.Error())
				}
				apperrors.Write(w, appErr)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
		})
	}
}
