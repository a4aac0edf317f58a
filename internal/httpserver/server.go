package httpserver

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/hearthforge/backend/internal/analytics"
	"github.com/hearthforge/backend/internal/auth"
	"github.com/hearthforge/backend/internal/auth/oauthprovider"
	"github.com/hearthforge/backend/internal/collections"
	"github.com/hearthforge/backend/internal/config"
	"github.com/hearthforge/backend/internal/idempotency"
	"github.com/hearthforge/backend/internal/logger"
	"github.com/hearthforge/backend/internal/metrics"
	"github.com/hearthforge/backend/internal/payouts"
	"github.com/hearthforge/backend/internal/projects"
	"github.com/hearthforge/backend/internal/ratelimit"
	"github.com/hearthforge/backend/internal/storage"
	"github.com/hearthforge/backend/internal/stripe"
	"github.com/hearthforge/backend/internal/versions"
	"github.com/hearthforge/backend/pkg/responders"
)

var serverStartTime = time.Now()

// Server wires handlers, middleware, and dependencies.
type Server struct {
	handlers
	httpServer *http.Server
}

type handlers struct {
	cfg             *config.Config
	authn           *auth.Authenticator
	oauth           *oauthprovider.Registry
	projects        *projects.Service
	versions        *versions.Service
	collections     *collections.Service
	payoutCatalog   *payouts.Catalog
	stripe          *stripe.Client
	analytics       analytics.Recorder
	metrics         *metrics.Metrics
	logger          zerolog.Logger
}

// New builds the HTTP server with a configured chi router over the given
// domain services.
func New(
	cfg *config.Config,
	authn *auth.Authenticator,
	oauthRegistry *oauthprovider.Registry,
	projectsSvc *projects.Service,
	versionsSvc *versions.Service,
	collectionsSvc *collections.Service,
	payoutCatalog *payouts.Catalog,
	stripeClient *stripe.Client,
	analyticsRecorder analytics.Recorder,
	appMetrics *metrics.Metrics,
	appLogger zerolog.Logger,
) *Server {
	router := chi.NewRouter()

	if analyticsRecorder == nil {
		analyticsRecorder = analytics.NoopRecorder{Log: appLogger}
	}

	s := &Server{
		handlers: handlers{
			cfg:           cfg,
			authn:         authn,
			oauth:         oauthRegistry,
			projects:      projectsSvc,
			versions:      versionsSvc,
			collections:   collectionsSvc,
			payoutCatalog: payoutCatalog,
			stripe:        stripeClient,
			analytics:     analyticsRecorder,
			metrics:       appMetrics,
			logger:        appLogger,
		},
		httpServer: &http.Server{
			Addr:         cfg.Server.Address,
			ReadTimeout:  cfg.Server.ReadTimeout.Duration,
			WriteTimeout: cfg.Server.WriteTimeout.Duration,
			IdleTimeout:  cfg.Server.IdleTimeout.Duration,
			Handler:      router,
		},
	}

	ConfigureRouter(router, &s.handlers)

	return s
}

// ConfigureRouter attaches the HearthForge v3 API routes to an existing
// router.
func ConfigureRouter(router chi.Router, h *handlers) {
	if router == nil {
		return
	}

	cfg := h.cfg

	if len(cfg.Server.CORSAllowedOrigins) > 0 {
		router.Use(cors.New(cors.Options{
			AllowedOrigins:   cfg.Server.CORSAllowedOrigins,
			AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"*"},
			ExposedHeaders:   []string{"Location"},
			AllowCredentials: false,
			MaxAge:           300,
		}).Handler)
	}

	router.Use(securityHeadersMiddleware)
	router.Use(logger.Middleware(h.logger))
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Recoverer)

	limiter := ratelimit.NewLimiter(ratelimit.Config{
		Enabled:               cfg.RateLimit.Enabled,
		RequestsPerMinute:     cfg.RateLimit.RequestsPerMinute,
		Burst:                 cfg.RateLimit.Burst,
		CloudflareIntegration: cfg.RateLimit.CloudflareIntegration,
		BypassHeaderKey:       cfg.RateLimit.BypassHeaderKey,
		Metrics:               h.metrics,
	})
	router.Use(limiter.Middleware)

	prefix := cfg.Server.RoutePrefix

	router.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(5 * time.Second))
		r.Get(prefix+"/health", h.health)
		r.With(adminMetricsAuth(cfg.Server.AdminMetricsAPIKey)).Handle(prefix+"/metrics", promhttp.Handler())
	})

	optional := optionalIdentity(h.authn)
	dedupe := idempotency.Middleware(idempotency.NewMemoryStore(), 24*time.Hour)

	router.Route(prefix+"/auth", func(r chi.Router) {
		r.Post("/create", h.authCreate)
		r.Post("/login", h.authLogin)
		r.Post("/login/2fa", h.authLogin2FA)
		r.With(optional).Get("/init", h.oauthInit)
		r.Get("/callback", h.oauthCallback)
	})

	router.Route(prefix+"/_internal", func(r chi.Router) {
		r.With(h.authn.RequireScopes(storage.ScopePATCreate)).Post("/pat", h.createPAT)
	})

	router.Route(prefix+"/v3/project", func(r chi.Router) {
		r.With(h.authn.RequireScopes(storage.ScopeProjectCreate), dedupe).Post("/", h.createProject)
		r.With(optional).Get("/{idOrSlug}", h.getProject)
		r.With(h.authn.RequireScopes(storage.ScopeProjectWrite)).Patch("/{idOrSlug}", h.editProject)
		r.With(h.authn.RequireScopes(storage.ScopeProjectDelete)).Delete("/{idOrSlug}", h.deleteProject)
		r.With(h.authn.RequireScopes(storage.ScopeProjectWrite)).Post("/{idOrSlug}/icon", h.setProjectIcon)
		r.With(h.authn.RequireScopes(storage.ScopeProjectWrite)).Delete("/{idOrSlug}/icon", h.deleteProjectIcon)
		r.With(h.authn.RequireScopes(storage.ScopeProjectWrite)).Post("/{idOrSlug}/gallery", h.addGalleryImage)
		r.With(h.authn.RequireScopes(storage.ScopeProjectWrite)).Delete("/{idOrSlug}/gallery", h.removeGalleryImage)
		r.With(h.authn.RequireScopes(storage.ScopeUserWrite)).Post("/{idOrSlug}/follow", h.followProject)
		r.With(h.authn.RequireScopes(storage.ScopeUserWrite)).Delete("/{idOrSlug}/follow", h.unfollowProject)
		r.With(h.authn.RequireScopes(storage.ScopeProjectWrite)).Post("/{idOrSlug}/schedule", h.scheduleProject)
		r.With(optional).Get("/{idOrSlug}/version", h.listVersions)
	})
	router.With(h.authn.RequireScopes(storage.ScopeProjectWrite)).Patch(prefix+"/v3/projects", h.bulkEditProjects)

	router.Route(prefix+"/v3/version", func(r chi.Router) {
		r.With(h.authn.RequireScopes(storage.ScopeVersionCreate), dedupe).Post("/", h.createVersion)
		r.With(optional).Get("/{id}", h.getVersion)
		r.With(h.authn.RequireScopes(storage.ScopeVersionDelete)).Delete("/{id}", h.deleteVersion)
		r.Get("/{id}/download/{filename}", h.downloadVersionFile)
	})
	router.Get(prefix+"/v3/version_file/{hash}", h.getVersionFileByHash)
	router.With(adminMetricsAuth(cfg.Server.AdminMetricsAPIKey)).Patch(prefix+"/_count-download", h.countDownload)

	router.Route(prefix+"/v3/collection", func(r chi.Router) {
		r.With(h.authn.RequireScopes(storage.ScopeCollectionCreate)).Post("/", h.createCollection)
		r.With(h.authn.RequireScopes(storage.ScopeCollectionRead)).Get("/", h.listMyCollections)
		r.With(optional).Get("/{id}", h.getCollection)
		r.With(h.authn.RequireScopes(storage.ScopeCollectionWrite)).Patch("/{id}", h.editCollection)
		r.With(h.authn.RequireScopes(storage.ScopeCollectionDelete)).Delete("/{id}", h.deleteCollection)
		r.With(h.authn.RequireScopes(storage.ScopeCollectionWrite)).Post("/{id}/icon", h.setCollectionIcon)
		r.With(h.authn.RequireScopes(storage.ScopeCollectionWrite)).Delete("/{id}/icon", h.deleteCollectionIcon)
	})

	router.With(h.authn.RequireScopes(storage.ScopePayoutsRead)).Get(prefix+"/v3/payout/methods", h.listPayoutMethods)

	router.Post(prefix+"/_stripe-webhook", h.stripeWebhook)

	// v2 legacy shim (spec.md §4.H): every route here rewrites its request
	// into the v3 shape, delegates to the same service the v3 route above
	// uses, and rewrites the response back. See internal/apishim.
	router.Route(prefix+"/v2/project", func(r chi.Router) {
		r.With(h.authn.RequireScopes(storage.ScopeProjectCreate), dedupe).Post("/", h.createProjectV2)
		r.With(optional).Get("/{idOrSlug}", h.getProjectV2)
	})
	router.Route(prefix+"/v2/version", func(r chi.Router) {
		r.With(h.authn.RequireScopes(storage.ScopeVersionCreate), dedupe).Post("/", h.createVersionV2)
		r.With(optional).Get("/{id}", h.getVersionV2)
	})
	router.Route(prefix+"/v2/tag", func(r chi.Router) {
		r.Get("/donation_platform", h.donationPlatformsV2)
		r.Get("/loader", h.loadersV2)
	})

	router.Get(prefix+"/maven/modrinth/{id}/maven-metadata.xml", h.mavenMetadataFeed)

	router.Route(prefix+"/analytics", func(r chi.Router) {
		r.With(optional).Post("/view", h.recordView)
		r.With(optional).Post("/playtime", h.recordPlaytime)
	})
}

// ListenAndServe starts the HTTP server.
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (h *handlers) health(w http.ResponseWriter, r *http.Request) {
	responders.JSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"uptime": time.Since(serverStartTime).String(),
	})
}

// listPayoutMethods surfaces the payout rails currently withdrawable to,
// per internal/payouts.Catalog's cached Tremendous gift-card/PayPal/bank
// listing. The batch job itself (cmd/payouts) runs as a scheduled process,
// not a request-driven route, so this is the only payout surface exposed
// over HTTP.
func (h *handlers) listPayoutMethods(w http.ResponseWriter, r *http.Request) {
	methods, err := h.payoutCatalog.Methods(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	responders.JSON(w, http.StatusOK, methods)
}
