// Command api runs the HearthForge HTTP API: authentication, project,
// version, collection, and payout-method routes over a single Postgres
// store.
package main

import (
	"context"
	"database/sql"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/rs/zerolog/log"

	"github.com/hearthforge/backend/internal/analytics"
	"github.com/hearthforge/backend/internal/auth"
	"github.com/hearthforge/backend/internal/auth/oauthprovider"
	"github.com/hearthforge/backend/internal/captcha"
	"github.com/hearthforge/backend/internal/circuitbreaker"
	"github.com/hearthforge/backend/internal/clickhouse"
	"github.com/hearthforge/backend/internal/collections"
	"github.com/hearthforge/backend/internal/config"
	"github.com/hearthforge/backend/internal/dbpool"
	"github.com/hearthforge/backend/internal/email"
	"github.com/hearthforge/backend/internal/filehost"
	"github.com/hearthforge/backend/internal/httpserver"
	"github.com/hearthforge/backend/internal/lifecycle"
	"github.com/hearthforge/backend/internal/logger"
	"github.com/hearthforge/backend/internal/metrics"
	"github.com/hearthforge/backend/internal/monitoring"
	"github.com/hearthforge/backend/internal/payouts"
	"github.com/hearthforge/backend/internal/payouts/railclient"
	"github.com/hearthforge/backend/internal/projects"
	"github.com/hearthforge/backend/internal/storage"
	"github.com/hearthforge/backend/internal/stripe"
	"github.com/hearthforge/backend/internal/versions"
)

func main() {
	configPath := flag.String("config", os.Getenv("HEARTHFORGE_CONFIG"), "path to config YAML")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("api.config_load_failed")
	}

	appLogger := logger.New(logger.Config{
		Level:       cfg.Logging.Level,
		Format:      cfg.Logging.Format,
		Service:     "hearthforge-api",
		Environment: cfg.Logging.Environment,
	})

	lc := lifecycle.NewManager()
	defer func() {
		if err := lc.Close(); err != nil {
			appLogger.Error().Err(err).Msg("api.shutdown_cleanup_failed")
		}
	}()

	db, err := sql.Open("postgres", cfg.Database.URL)
	if err != nil {
		appLogger.Fatal().Err(err).Msg("api.db_open_failed")
	}
	db.SetMaxOpenConns(cfg.Database.Pool.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.Pool.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.Database.Pool.ConnMaxLifetime.Duration)
	lc.Register("database", db)

	pool, err := dbpool.NewSharedPool(cfg.Database.URL, cfg.Database.Pool)
	if err != nil {
		appLogger.Fatal().Err(err).Msg("api.pool_open_failed")
	}
	lc.Register("db_pool", pool)

	store := storage.NewPostgresStore(db)

	var mailer email.Mailer
	if cfg.Mail.SMTPHost != "" {
		mailer = email.NewSMTPMailer(cfg.Mail, appLogger)
	} else {
		mailer = email.NewNoopMailer(appLogger)
	}

	var verifier captcha.Verifier
	if cfg.Auth.HCaptchaSecret != "" {
		verifier = captcha.NewHCaptchaVerifier(cfg.Auth.HCaptchaSecret, cfg.Auth.HCaptchaSiteVerifyURL)
	} else {
		verifier = captcha.NoopVerifier{}
	}

	authn := auth.NewAuthenticator(store, cfg.Auth, mailer, verifier)
	oauthRegistry := oauthprovider.BuildRegistry(cfg.OAuth, cfg.Auth.OAuthCallbackBaseURL)

	files, err := filehost.New(cfg.FileHost, appLogger)
	if err != nil {
		appLogger.Fatal().Err(err).Msg("api.filehost_init_failed")
	}

	var analyticsRecorder analytics.Recorder = analytics.NoopRecorder{Log: appLogger}
	var downloadRecorder versions.DownloadRecorder
	if cfg.ClickHouse.Enabled {
		events, err := clickhouse.New(cfg.ClickHouse, appLogger)
		if err != nil {
			appLogger.Fatal().Err(err).Msg("api.clickhouse_open_failed")
		}
		lc.Register("clickhouse", events)
		if err := events.CreateSchema(context.Background()); err != nil {
			appLogger.Fatal().Err(err).Msg("api.clickhouse_schema_failed")
		}
		analyticsRecorder = events
		downloadRecorder = events
	}

	projectsSvc := projects.New(store, files)
	versionsSvc := versions.New(store, files, projectsSvc, downloadRecorder, nil)
	collectionsSvc := collections.New(store, files)

	appMetrics := metrics.New(nil)

	breaker := circuitbreaker.NewManagerFromConfig(cfg.CircuitBreaker)
	tremendous := railclient.NewTremendousClient(cfg.Payouts.Tremendous, breaker, appMetrics)
	payoutCatalog := payouts.NewCatalog(tremendous, cfg.Payouts.CatalogCacheTTL.Duration)

	stripeClient := stripe.New(cfg.Stripe, store)

	srv := httpserver.New(cfg, authn, oauthRegistry, projectsSvc, versionsSvc, collectionsSvc, payoutCatalog, stripeClient, analyticsRecorder, appMetrics, appLogger)

	bgCtx, cancelBG := context.WithCancel(context.Background())
	if monitor, err := monitoring.NewBalanceMonitor(cfg, store); err != nil {
		appLogger.Warn().Err(err).Msg("api.balance_monitor_disabled")
	} else {
		monitor.Start(bgCtx)
		lc.RegisterFunc("balance_monitor", func() error { monitor.Stop(); return nil })
	}

	go func() {
		appLogger.Info().Str("addr", cfg.Server.Address).Msg("api.listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLogger.Fatal().Err(err).Msg("api.listen_failed")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	appLogger.Info().Msg("api.shutting_down")
	cancelBG()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		appLogger.Error().Err(err).Msg("api.shutdown_failed")
	}
}
