// Command payouts runs the nightly ad-revenue payout split and balance
// snapshot jobs (spec.md §4.F, §4.G) as a one-shot scheduled process,
// intended to be invoked by cron/Kubernetes CronJob rather than served as
// an HTTP route.
package main

import (
	"context"
	"database/sql"
	"flag"
	"os"
	"time"

	_ "github.com/lib/pq"
	"github.com/rs/zerolog/log"

	"github.com/hearthforge/backend/internal/circuitbreaker"
	"github.com/hearthforge/backend/internal/clickhouse"
	"github.com/hearthforge/backend/internal/config"
	"github.com/hearthforge/backend/internal/logger"
	"github.com/hearthforge/backend/internal/metrics"
	"github.com/hearthforge/backend/internal/money"
	"github.com/hearthforge/backend/internal/payouts"
	"github.com/hearthforge/backend/internal/payouts/railclient"
	"github.com/hearthforge/backend/internal/storage"
)

func main() {
	configPath := flag.String("config", os.Getenv("HEARTHFORGE_CONFIG"), "path to config YAML")
	job := flag.String("job", "batch", "which job to run: batch or balance")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("payouts.config_load_failed")
	}

	appLogger := logger.New(logger.Config{
		Level: cfg.Logging.Level, Format: cfg.Logging.Format,
		Service: "hearthforge-payouts", Environment: cfg.Logging.Environment,
	})
	ctx := appLogger.WithContext(context.Background())

	db, err := sql.Open("postgres", cfg.Database.URL)
	if err != nil {
		appLogger.Fatal().Err(err).Msg("payouts.db_open_failed")
	}
	defer db.Close()
	db.SetMaxOpenConns(cfg.Database.Pool.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.Pool.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.Database.Pool.ConnMaxLifetime.Duration)

	store := storage.NewPostgresStore(db)
	breaker := circuitbreaker.NewManagerFromConfig(cfg.CircuitBreaker)
	appMetrics := metrics.New(nil)

	now := time.Now().UTC()

	switch *job {
	case "batch":
		runBatch(ctx, store, breaker, appMetrics, cfg, now)
	case "balance":
		runBalance(ctx, store, breaker, appMetrics, cfg, now)
	default:
		appLogger.Fatal().Str("job", *job).Msg("payouts.unknown_job")
	}
}

func runBatch(ctx context.Context, store storage.Store, breaker *circuitbreaker.Manager, appMetrics *metrics.Metrics, cfg *config.Config, now time.Time) {
	start := time.Now()
	fees, err := money.NewFeeModel(cfg.Payouts.CleanIOFeePerImpression, cfg.Payouts.GAMFeePerImpression, cfg.Payouts.PlatformCut)
	if err != nil {
		log.Fatal().Err(err).Msg("payouts.fee_model_invalid")
	}
	aditude := railclient.NewAditudeClient(cfg.Payouts.Aditude, breaker)
	if !cfg.ClickHouse.Enabled {
		log.Fatal().Msg("payouts.clickhouse_disabled: clickhouse.enabled must be true to run the batch job")
	}
	analyticsStore, err := clickhouse.New(cfg.ClickHouse, log.Logger)
	if err != nil {
		log.Fatal().Err(err).Msg("payouts.clickhouse_open_failed")
	}
	defer analyticsStore.Close()
	batchJob := payouts.NewBatchJob(store, analyticsStore, aditude, fees, cfg.Payouts.PayoutAvailabilityDays)
	if err := batchJob.Run(ctx, now); err != nil {
		appMetrics.ObservePayoutBatch("failed", time.Since(start))
		log.Fatal().Err(err).Msg("payouts.batch_run_failed")
	}
	appMetrics.ObservePayoutBatch("success", time.Since(start))
	log.Ctx(ctx).Info().Msg("payouts.batch_run_complete")
}

func runBalance(ctx context.Context, store storage.Store, breaker *circuitbreaker.Manager, appMetrics *metrics.Metrics, cfg *config.Config, now time.Time) {
	paypal := railclient.NewPayPalClient(cfg.Payouts.PayPal, breaker, appMetrics)
	brex := railclient.NewBrexClient(cfg.Payouts.Brex, breaker)
	tremendous := railclient.NewTremendousClient(cfg.Payouts.Tremendous, breaker, appMetrics)
	reporter := payouts.NewBalanceReporter(store, paypal, brex, tremendous,
		cfg.Payouts.PayPal.NVPUser, cfg.Payouts.PayPal.NVPPassword, cfg.Payouts.PayPal.NVPSignature)
	if err := reporter.Run(ctx, now); err != nil {
		log.Fatal().Err(err).Msg("payouts.balance_run_failed")
	}
	log.Ctx(ctx).Info().Msg("payouts.balance_run_complete")
}
