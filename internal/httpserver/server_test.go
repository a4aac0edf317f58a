package httpserver

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/hearthforge/backend/internal/auth"
	"github.com/hearthforge/backend/internal/captcha"
	"github.com/hearthforge/backend/internal/config"
	"github.com/hearthforge/backend/internal/email"
	"github.com/hearthforge/backend/internal/filehost"
	"github.com/hearthforge/backend/internal/projects"
	"github.com/hearthforge/backend/internal/storage"
)

// newTestRouter wires a real chi.Router against ConfigureRouter the same way
// New does, but with in-memory/inert dependencies so the route table and its
// scope-gating middleware can be exercised without a database or object
// store. Every handler reachable here is backed by a real service, not a
// mock, so a test hitting a route that reaches its handler runs the actual
// domain logic underneath.
func newTestRouter(t *testing.T) (chi.Router, *auth.Authenticator, storage.Store) {
	t.Helper()
	store := storage.NewMemoryStore()
	authn := auth.NewAuthenticator(store, config.AuthConfig{
		SessionTTL:        config.Duration{Duration: 14 * 24 * time.Hour},
		OAuthFlowTTL:      config.Duration{Duration: 30 * time.Minute},
		TwoFactorFlowTTL:  config.Duration{Duration: 30 * time.Minute},
		ForgotPasswordTTL: config.Duration{Duration: 24 * time.Hour},
		ConfirmEmailTTL:   config.Duration{Duration: 24 * time.Hour},
		MinPasswordScore:  2,
		Argon2Time:        1,
		Argon2MemoryKiB:   8 * 1024,
		Argon2Parallelism: 2,
		TOTPIssuer:        "HearthForge",
		TOTPReplayTTL:     config.Duration{Duration: 60 * time.Second},
		BackupCodeCount:   6,
	}, email.NewNoopMailer(zerolog.Nop()), captcha.NoopVerifier{})

	files, err := filehost.New(config.FileHostConfig{Enabled: false}, zerolog.Nop())
	require.NoError(t, err)
	projectsSvc := projects.New(store, files)

	cfg := &config.Config{
		Server: config.ServerConfig{
			AdminMetricsAPIKey: "admin-secret",
		},
		RateLimit: config.RateLimitConfig{Enabled: false},
	}

	h := &handlers{
		cfg:      cfg,
		authn:    authn,
		projects: projectsSvc,
		logger:   zerolog.Nop(),
	}

	router := chi.NewRouter()
	ConfigureRouter(router, h)
	return router, authn, store
}

func do(router chi.Router, method, path, token string, body string) *httptest.ResponseRecorder {
	var r *http.Request
	if body != "" {
		r = httptest.NewRequest(method, path, strings.NewReader(body))
		r.Header.Set("Content-Type", "application/json")
	} else {
		r = httptest.NewRequest(method, path, nil)
	}
	if token != "" {
		r.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, r)
	return rec
}

func TestHealthRouteServesWithoutAuth(t *testing.T) {
	router, _, _ := newTestRouter(t)
	rec := do(router, http.MethodGet, "/health", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"status":"ok"`)
}

func TestMetricsRouteRequiresAdminKey(t *testing.T) {
	router, _, _ := newTestRouter(t)

	rec := do(router, http.MethodGet, "/metrics", "", "")
	require.Equal(t, http.StatusUnauthorized, rec.Code, "missing admin key must be rejected")

	rec = do(router, http.MethodGet, "/metrics", "wrong-key", "")
	require.Equal(t, http.StatusUnauthorized, rec.Code, "wrong admin key must be rejected")

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	req.Header.Set("Authorization", "Bearer admin-secret")
	rec2 := httptest.NewRecorder()
	router.ServeHTTP(rec2, req)
	require.Equal(t, http.StatusOK, rec2.Code, "correct admin key must reach promhttp.Handler")
}

func TestCreateProjectRequiresProjectCreateScope(t *testing.T) {
	router, authn, store := newTestRouter(t)
	ctx := context.Background()

	user := &storage.User{Username: "builder", Email: "builder@example.com"}
	require.NoError(t, store.CreateUser(ctx, user))

	rec := do(router, http.MethodPost, "/v3/project", "", `{"slug":"no-auth","name":"No Auth"}`)
	require.Equal(t, http.StatusUnauthorized, rec.Code, "unauthenticated create must be rejected before reaching the handler")

	readOnlyToken, _, err := authn.CreatePAT(ctx, user.ID, "read-only", storage.ScopeProjectRead, auth.IssuerAuthority, nil)
	require.NoError(t, err)
	rec = do(router, http.MethodPost, "/v3/project", readOnlyToken, `{"slug":"wrong-scope","name":"Wrong Scope"}`)
	require.Equal(t, http.StatusUnauthorized, rec.Code, "a PAT without PROJECT_CREATE must be rejected")

	createToken, _, err := authn.CreatePAT(ctx, user.ID, "creator", storage.ScopeProjectCreate, auth.IssuerAuthority, nil)
	require.NoError(t, err)
	rec = do(router, http.MethodPost, "/v3/project", createToken, `{"slug":"widget","name":"Widget"}`)
	require.Equal(t, http.StatusOK, rec.Code, "a PAT carrying PROJECT_CREATE must reach the handler and succeed")

	var created storage.Project
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	require.Equal(t, "widget", created.Slug)
}

func TestGetDraftProjectIsVisibleOnlyToItsTeam(t *testing.T) {
	router, authn, store := newTestRouter(t)
	ctx := context.Background()

	owner := &storage.User{Username: "owner", Email: "owner@example.com"}
	require.NoError(t, store.CreateUser(ctx, owner))
	stranger := &storage.User{Username: "stranger", Email: "stranger@example.com"}
	require.NoError(t, store.CreateUser(ctx, stranger))

	createToken, _, err := authn.CreatePAT(ctx, owner.ID, "creator", storage.ScopeProjectCreate, auth.IssuerAuthority, nil)
	require.NoError(t, err)
	rec := do(router, http.MethodPost, "/v3/project", createToken, `{"slug":"secret-draft","name":"Secret Draft"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	// Anonymous read of a draft project must 404, not leak existence.
	rec = do(router, http.MethodGet, "/v3/project/secret-draft", "", "")
	require.Equal(t, http.StatusNotFound, rec.Code)

	strangerToken, _, err := authn.CreatePAT(ctx, stranger.ID, "reader", storage.ScopeProjectRead, auth.IssuerAuthority, nil)
	require.NoError(t, err)
	rec = do(router, http.MethodGet, "/v3/project/secret-draft", strangerToken, "")
	require.Equal(t, http.StatusNotFound, rec.Code, "a non-team member must not see an unpublished draft")

	rec = do(router, http.MethodGet, "/v3/project/secret-draft", createToken, "")
	require.Equal(t, http.StatusOK, rec.Code, "the owning team must see its own draft")
}

func TestCountDownloadRouteRequiresAdminKey(t *testing.T) {
	router, _, _ := newTestRouter(t)
	rec := do(router, http.MethodPatch, "/_count-download?version_id=1&filename=a.jar", "", "")
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}
