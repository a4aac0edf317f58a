package httpserver

import (
	"net/http"
	"time"

	"github.com/hearthforge/backend/internal/auth"
	apperrors "github.com/hearthforge/backend/internal/errors"
	"github.com/hearthforge/backend/internal/storage"
	"github.com/hearthforge/backend/pkg/responders"
)

type authCreateRequest struct {
	Username            string `json:"username"`
	Password            string `json:"password"`
	Email               string `json:"email"`
	Challenge           string `json:"challenge"`
	SubscribeNewsletter bool   `json:"subscribe_newsletter"`
}

func (h *handlers) authCreate(w http.ResponseWriter, r *http.Request) {
	var req authCreateRequest
	if err := decodeJSON(r.Body, &req); err != nil {
		writeError(w, apperrors.Wrap(apperrors.CodeInvalidInput, "invalid request body", err))
		return
	}
	user, session, err := h.authn.CreateAccount(r.Context(), req.Username, req.Password, req.Email, req.Challenge, req.SubscribeNewsletter)
	if err != nil {
		writeError(w, err)
		return
	}
	responders.JSON(w, http.StatusOK, map[string]any{"user": user, "session": session})
}

type authLoginRequest struct {
	UsernameOrEmail string `json:"username_or_email"`
	Password        string `json:"password"`
	Challenge       string `json:"challenge"`
}

func (h *handlers) authLogin(w http.ResponseWriter, r *http.Request) {
	var req authLoginRequest
	if err := decodeJSON(r.Body, &req); err != nil {
		writeError(w, apperrors.Wrap(apperrors.CodeInvalidInput, "invalid request body", err))
		return
	}
	result, err := h.authn.LoginPassword(r.Context(), req.UsernameOrEmail, req.Password, req.Challenge)
	if err != nil {
		writeError(w, err)
		return
	}
	responders.JSON(w, http.StatusOK, result)
}

type authLogin2FARequest struct {
	FlowToken string `json:"flow_token"`
	Code      string `json:"code"`
}

func (h *handlers) authLogin2FA(w http.ResponseWriter, r *http.Request) {
	var req authLogin2FARequest
	if err := decodeJSON(r.Body, &req); err != nil {
		writeError(w, apperrors.Wrap(apperrors.CodeInvalidInput, "invalid request body", err))
		return
	}
	session, err := h.authn.Login2FA(r.Context(), req.FlowToken, req.Code)
	if err != nil {
		writeError(w, err)
		return
	}
	responders.JSON(w, http.StatusOK, map[string]any{"session": session})
}

func (h *handlers) oauthInit(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var existingUserID *int64
	if id, ok := auth.IdentityFromContext(r.Context()); ok {
		existingUserID = &id.UserID
	}
	result, err := h.authn.OAuthInit(
		r.Context(), h.oauth, q.Get("provider"), q.Get("return_url"), existingUserID,
		h.cfg.Auth.CanonicalSiteURL, h.cfg.Auth.AllowedRedirectSuffixes,
	)
	if err != nil {
		writeError(w, err)
		return
	}
	http.Redirect(w, r, result.RedirectURL, http.StatusFound)
}

func (h *handlers) oauthCallback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	result, err := h.authn.OAuthCallback(r.Context(), h.oauth, q.Get("state"), q.Get("code"))
	if err != nil {
		writeError(w, err)
		return
	}
	if result.SessionToken != "" {
		http.SetCookie(w, &http.Cookie{
			Name: "session", Value: result.SessionToken, Path: "/", HttpOnly: true, Secure: true,
			SameSite: http.SameSiteLaxMode, Expires: time.Now().Add(h.cfg.Auth.SessionTTL.Duration),
		})
	}
	http.Redirect(w, r, result.RedirectURL, http.StatusFound)
}

type createPATRequest struct {
	Name          string   `json:"name"`
	Scopes        []string `json:"scopes"`
	ExpiresInDays int      `json:"expires_in_days"`
}

// createPAT implements spec.md's /_internal/pat route: mint a personal
// access token scoped to no more than the issuing identity's own scopes.
// Scopes are named ("PROJECT_READ", not a raw bitmask) per
// storage.ParseScopeNames.
func (h *handlers) createPAT(w http.ResponseWriter, r *http.Request) {
	id, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, apperrors.New(apperrors.CodeAuthentication, "missing identity"))
		return
	}
	var req createPATRequest
	if err := decodeJSON(r.Body, &req); err != nil {
		writeError(w, apperrors.Wrap(apperrors.CodeInvalidInput, "invalid request body", err))
		return
	}
	scopes, err := storage.ParseScopeNames(req.Scopes)
	if err != nil {
		writeError(w, apperrors.Wrap(apperrors.CodeInvalidInput, "invalid scope name", err))
		return
	}
	var expiresAt *time.Time
	if req.ExpiresInDays > 0 {
		t := time.Now().AddDate(0, 0, req.ExpiresInDays)
		expiresAt = &t
	}
	token, pat, err := h.authn.CreatePAT(r.Context(), id.UserID, req.Name, scopes, id.Scopes, expiresAt)
	if err != nil {
		writeError(w, err)
		return
	}
	responders.JSON(w, http.StatusOK, map[string]any{"token": token, "pat": pat})
}
