package auth

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/hearthforge/backend/internal/auth/oauthprovider"
	apperrors "github.com/hearthforge/backend/internal/errors"
	"github.com/hearthforge/backend/internal/storage"
)

// OAuthInitResult carries what the HTTP handler needs to redirect the
// caller to the provider's consent screen.
type OAuthInitResult struct {
	RedirectURL string
}

// allowedRedirect reports whether target's host is the canonical site or
// ends in one of the configured allowed callback suffixes.
func (a *Authenticator) allowedRedirect(target string, canonical string, suffixes []string) bool {
	u, err := url.Parse(target)
	if err != nil || u.Host == "" {
		return false
	}
	canonicalURL, err := url.Parse(canonical)
	if err == nil && u.Host == canonicalURL.Host {
		return true
	}
	for _, suffix := range suffixes {
		if strings.HasSuffix(u.Host, suffix) {
			return true
		}
	}
	return false
}

// OAuthInit implements spec.md's oauth_init. existingUserID is set when the
// caller is already authenticated and wants to link a provider (link-mode).
func (a *Authenticator) OAuthInit(ctx context.Context, registry *oauthprovider.Registry, providerName, returnURL string, existingUserID *int64, canonicalSiteURL string, allowedSuffixes []string) (*OAuthInitResult, error) {
	if !a.allowedRedirect(returnURL, canonicalSiteURL, allowedSuffixes) {
		return nil, apperrors.New(apperrors.CodeInvalidInput, "url host is not an allowed callback destination")
	}
	provider := registry.Get(providerName)
	if provider == nil {
		return nil, apperrors.New(apperrors.CodeInvalidInput, "unknown or disabled oauth provider")
	}

	token, err := NewFlowToken()
	if err != nil {
		return nil, err
	}
	f := &storage.FlowToken{
		Token: token, Kind: storage.FlowOAuth, UserID: existingUserID, Provider: providerName, URL: returnURL,
		ExpiresAt: time.Now().Add(a.cfg.OAuthFlowTTL.Duration),
	}
	if err := a.store.CreateFlowToken(ctx, f); err != nil {
		return nil, apperrors.Wrap(apperrors.CodeDatabase, "create oauth flow token", err)
	}

	return &OAuthInitResult{RedirectURL: provider.AuthCodeURL(token)}, nil
}

// OAuthCallbackResult carries the outcome of oauth_callback back to the
// HTTP handler, which encodes it into the final redirect.
type OAuthCallbackResult struct {
	RedirectURL string
	SessionToken string
	NewAccount   bool
	TwoFARequired bool
}

// OAuthCallback implements spec.md's oauth_callback.
func (a *Authenticator) OAuthCallback(ctx context.Context, registry *oauthprovider.Registry, state, code string) (*OAuthCallbackResult, error) {
	f, err := a.store.ConsumeFlowToken(ctx, state, time.Now())
	if err != nil || f.Kind != storage.FlowOAuth {
		return nil, apperrors.New(apperrors.CodeAuthentication, "invalid or expired oauth flow")
	}

	provider := registry.Get(f.Provider)
	if provider == nil {
		return nil, apperrors.New(apperrors.CodeInvalidInput, "unknown or disabled oauth provider")
	}
	temp, err := provider.Exchange(ctx, code)
	if err != nil {
		return nil, err
	}

	if f.UserID != nil {
		return a.oauthLinkMode(ctx, *f.UserID, f.Provider, temp, f.URL)
	}
	return a.oauthLoginMode(ctx, f.Provider, temp, f.URL)
}

func (a *Authenticator) oauthLinkMode(ctx context.Context, userID int64, provider string, temp oauthprovider.TempUser, returnURL string) (*OAuthCallbackResult, error) {
	if existing, err := a.store.GetProviderLink(ctx, provider, temp.ProviderUserID); err == nil && existing.UserID != userID {
		return nil, apperrors.New(apperrors.CodeInvalidInput, "this account is already linked to another user")
	}

	link := &storage.ProviderLink{UserID: userID, Provider: provider, ProviderUserID: temp.ProviderUserID}
	if provider == "paypal" {
		link.PayPalCountry = &temp.Country
		link.PayPalEmail = &temp.Email
	}
	if err := a.store.CreateProviderLink(ctx, link); err != nil {
		return nil, apperrors.Wrap(apperrors.CodeDatabase, "create provider link", err)
	}

	if provider != "paypal" {
		if u, err := a.store.GetUserByID(ctx, userID); err == nil && u.Email != nil {
			_ = a.mailer.Send(ctx, *u.Email, "New login method linked", fmt.Sprintf("%s was just linked to your account.", provider))
		}
	}

	return &OAuthCallbackResult{RedirectURL: returnURL}, nil
}

func (a *Authenticator) oauthLoginMode(ctx context.Context, provider string, temp oauthprovider.TempUser, returnURL string) (*OAuthCallbackResult, error) {
	link, err := a.store.GetProviderLink(ctx, provider, temp.ProviderUserID)
	if err == nil {
		u, uerr := a.store.GetUserByID(ctx, link.UserID)
		if uerr != nil {
			return nil, apperrors.Wrap(apperrors.CodeDatabase, "load linked user", uerr)
		}
		if u.TOTPSecret != nil {
			flowToken, ferr := a.mintLogin2FAFlow(ctx, u.ID)
			if ferr != nil {
				return nil, ferr
			}
			return &OAuthCallbackResult{RedirectURL: returnURL + "?error=2fa_required&flow=" + flowToken, TwoFARequired: true}, nil
		}
		token, serr := a.issueSession(ctx, u.ID)
		if serr != nil {
			return nil, serr
		}
		return &OAuthCallbackResult{RedirectURL: returnURL + "?code=" + token, SessionToken: token}, nil
	}

	u, newAccount, err := a.autoCreateFromOAuth(ctx, provider, temp)
	if err != nil {
		return nil, err
	}
	token, err := a.issueSession(ctx, u.ID)
	if err != nil {
		return nil, err
	}
	redirect := returnURL + "?code=" + token
	if newAccount {
		redirect += "&new_account=true"
	}
	return &OAuthCallbackResult{RedirectURL: redirect, SessionToken: token, NewAccount: newAccount}, nil
}

func (a *Authenticator) autoCreateFromOAuth(ctx context.Context, provider string, temp oauthprovider.TempUser) (*storage.User, bool, error) {
	username := sanitizeUsername(temp.Username)
	if username == "" {
		username = "user"
	}
	candidate := username
	for suffix := 0; ; suffix++ {
		if suffix > 0 {
			candidate = username + strconv.Itoa(suffix)
		}
		if _, err := a.store.GetUserByUsername(ctx, candidate); err != nil {
			break
		}
	}

	u := &storage.User{
		Username:            candidate,
		Role:                storage.RoleDeveloper,
		EmailVerified:       true,
		AllowFriendRequests: true,
	}
	if temp.Email != "" {
		u.Email = &temp.Email
	}
	if temp.AvatarURL != "" {
		u.RawAvatarURL = &temp.AvatarURL
		// The avatar is not copied to the CDN; the hosted URL is set to
		// the provider's raw URL, so raw and hosted match.
		u.AvatarURL = &temp.AvatarURL
	}

	if err := a.store.CreateUser(ctx, u); err != nil {
		return nil, false, apperrors.Wrap(apperrors.CodeDatabase, "auto-create oauth user", err)
	}
	if err := a.store.CreateProviderLink(ctx, &storage.ProviderLink{UserID: u.ID, Provider: provider, ProviderUserID: temp.ProviderUserID}); err != nil {
		return nil, false, apperrors.Wrap(apperrors.CodeDatabase, "link auto-created user", err)
	}
	return u, true, nil
}

func sanitizeUsername(raw string) string {
	var sb strings.Builder
	for _, r := range raw {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '-':
			sb.WriteRune(r)
		}
	}
	s := sb.String()
	if len(s) > 39 {
		s = s[:39]
	}
	return s
}
