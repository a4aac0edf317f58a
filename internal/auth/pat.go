package auth

import (
	"context"
	"time"

	apperrors "github.com/hearthforge/backend/internal/errors"
	"github.com/hearthforge/backend/internal/storage"
)

// IssuerAuthority is the full scope set a session may grant a PAT; sessions
// themselves implicitly carry SESSION_ACCESS plus every other scope, but
// SESSION_ACCESS itself can never be delegated to a PAT (spec.md §3
// invariant on the PAT entity).
const IssuerAuthority = ^storage.Scope(0) &^ storage.ScopeSessionAccess

// CreatePAT implements PAT issuance, enforcing that the requested scopes
// are a subset of what the issuing session/PAT is itself allowed to grant.
func (a *Authenticator) CreatePAT(ctx context.Context, userID int64, name string, requested storage.Scope, issuerScopes storage.Scope, expiresAt *time.Time) (string, *storage.PAT, error) {
	if !requested.Grants(issuerScopes &^ storage.ScopeSessionAccess) {
		return "", nil, apperrors.New(apperrors.CodeAuthentication, "cannot grant scopes beyond issuer authority")
	}
	if requested.Has(storage.ScopeSessionAccess) {
		return "", nil, apperrors.New(apperrors.CodeInvalidInput, "SESSION_ACCESS cannot be granted to a PAT")
	}

	token, hash, err := NewPAT()
	if err != nil {
		return "", nil, err
	}
	p := &storage.PAT{
		UserID: userID, Name: name, TokenHash: hash, Scopes: requested, ExpiresAt: expiresAt,
	}
	if err := a.store.CreatePAT(ctx, p); err != nil {
		return "", nil, apperrors.Wrap(apperrors.CodeDatabase, "create pat", err)
	}
	return token, p, nil
}

// RevokePAT deletes a PAT the caller owns.
func (a *Authenticator) RevokePAT(ctx context.Context, id, userID int64) error {
	if err := a.store.RevokePAT(ctx, id, userID); err != nil {
		if err == storage.ErrNotFound {
			return apperrors.New(apperrors.CodeNotFound, "pat not found")
		}
		return apperrors.Wrap(apperrors.CodeDatabase, "revoke pat", err)
	}
	return nil
}

// ListPATs lists the caller's PATs.
func (a *Authenticator) ListPATs(ctx context.Context, userID int64) ([]*storage.PAT, error) {
	pats, err := a.store.ListPATs(ctx, userID)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeDatabase, "list pats", err)
	}
	return pats, nil
}
