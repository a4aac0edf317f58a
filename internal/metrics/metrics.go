package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the HearthForge API and its
// background payout worker.
type Metrics struct {
	// Version/upload metrics
	VersionUploadsTotal   *prometheus.CounterVec
	VersionUploadBytes    *prometheus.CounterVec
	VersionUploadDuration *prometheus.HistogramVec

	// Download metrics
	DownloadsTotal *prometheus.CounterVec

	// Payout rail-call metrics (Tremendous/PayPal/Brex/Aditude)
	RailCallsTotal   *prometheus.CounterVec
	RailCallDuration *prometheus.HistogramVec
	RailErrorsTotal  *prometheus.CounterVec

	// Payout batch metrics
	PayoutBatchesTotal *prometheus.CounterVec
	PayoutAmountTotal  *prometheus.CounterVec
	PayoutDuration     *prometheus.HistogramVec

	// Webhook metrics (Stripe customer-sync webhook)
	WebhooksTotal   *prometheus.CounterVec
	WebhookDuration *prometheus.HistogramVec

	// Rate limiting metrics
	RateLimitHitsTotal *prometheus.CounterVec

	// Database metrics
	DBQueryDuration     *prometheus.HistogramVec
	DBConnectionsActive prometheus.Gauge
}

// New creates and registers all Prometheus metrics.
func New(registry prometheus.Registerer) *Metrics {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}

	factory := promauto.With(registry)

	return &Metrics{
		VersionUploadsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hearthforge_version_uploads_total",
				Help: "Total number of version upload attempts",
			},
			[]string{"version_type", "status"},
		),
		VersionUploadBytes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hearthforge_version_upload_bytes_total",
				Help: "Total bytes accepted across all version file uploads",
			},
			[]string{"version_type"},
		),
		VersionUploadDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "hearthforge_version_upload_duration_seconds",
				Help:    "Time taken to process a version upload (supports p50, p95, p99 percentiles)",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60},
			},
			[]string{"version_type"},
		),

		DownloadsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hearthforge_downloads_total",
				Help: "Total number of counted version file downloads",
			},
			[]string{"project_type"},
		),

		RailCallsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hearthforge_payout_rail_calls_total",
				Help: "Total number of calls to a payout rail's API",
			},
			[]string{"method", "rail"},
		),
		RailCallDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "hearthforge_payout_rail_call_duration_seconds",
				Help:    "Duration of payout rail API calls (supports p50, p95, p99 percentiles)",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"method", "rail"},
		),
		RailErrorsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hearthforge_payout_rail_errors_total",
				Help: "Total number of payout rail API errors",
			},
			[]string{"method", "rail", "error_type"},
		),

		PayoutBatchesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hearthforge_payout_batches_total",
				Help: "Total number of payout batch runs, by outcome",
			},
			[]string{"status"},
		),
		PayoutAmountTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hearthforge_payout_amount_cents_total",
				Help: "Total payout amount disbursed, in USD cents",
			},
			[]string{"rail"},
		),
		PayoutDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "hearthforge_payout_batch_duration_seconds",
				Help:    "Time taken to run a full payout batch",
				Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600},
			},
			[]string{"status"},
		),

		WebhooksTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hearthforge_webhooks_total",
				Help: "Total number of inbound webhook deliveries handled",
			},
			[]string{"event_type", "status"},
		),
		WebhookDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "hearthforge_webhook_duration_seconds",
				Help:    "Time taken to process an inbound webhook",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5},
			},
			[]string{"event_type"},
		),

		RateLimitHitsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hearthforge_rate_limit_hits_total",
				Help: "Total number of rate limit hits",
			},
			[]string{"limit_type", "identifier"},
		),

		DBQueryDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "hearthforge_db_query_duration_seconds",
				Help:    "Database query duration (supports p50, p95, p99 percentiles)",
				Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.5, 1, 2},
			},
			[]string{"operation", "backend"},
		),
		DBConnectionsActive: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "hearthforge_db_connections_active",
				Help: "Number of active database connections",
			},
		),
	}
}

// ObserveVersionUpload records a version upload attempt and its outcome.
func (m *Metrics) ObserveVersionUpload(versionType, status string, duration time.Duration, bytes int64) {
	m.VersionUploadsTotal.WithLabelValues(versionType, status).Inc()
	if status == "success" {
		m.VersionUploadBytes.WithLabelValues(versionType).Add(float64(bytes))
	}
	m.VersionUploadDuration.WithLabelValues(versionType).Observe(duration.Seconds())
}

// ObserveDownload records one counted version file download.
func (m *Metrics) ObserveDownload(projectType string) {
	m.DownloadsTotal.WithLabelValues(projectType).Inc()
}

// ObserveRailCall records a call to a payout rail's API.
func (m *Metrics) ObserveRailCall(method, rail string, duration time.Duration, err error) {
	m.RailCallsTotal.WithLabelValues(method, rail).Inc()
	m.RailCallDuration.WithLabelValues(method, rail).Observe(duration.Seconds())

	if err != nil {
		errorType := "unknown"
		if errStr := err.Error(); errStr != "" {
			switch {
			case contains(errStr, "timeout"):
				errorType = "timeout"
			case contains(errStr, "rate limit"):
				errorType = "rate_limit"
			case contains(errStr, "connection"):
				errorType = "connection"
			case contains(errStr, "not found"):
				errorType = "not_found"
			default:
				errorType = "other"
			}
		}
		m.RailErrorsTotal.WithLabelValues(method, rail, errorType).Inc()
	}
}

// ObservePayoutBatch records a completed payout batch run.
func (m *Metrics) ObservePayoutBatch(status string, duration time.Duration) {
	m.PayoutBatchesTotal.WithLabelValues(status).Inc()
	m.PayoutDuration.WithLabelValues(status).Observe(duration.Seconds())
}

// ObservePayoutAmount adds to the total amount disbursed over a given rail.
func (m *Metrics) ObservePayoutAmount(rail string, amountCents int64) {
	m.PayoutAmountTotal.WithLabelValues(rail).Add(float64(amountCents))
}

// ObserveWebhook records inbound webhook handling.
func (m *Metrics) ObserveWebhook(eventType, status string, duration time.Duration) {
	m.WebhooksTotal.WithLabelValues(eventType, status).Inc()
	m.WebhookDuration.WithLabelValues(eventType).Observe(duration.Seconds())
}

// ObserveRateLimit records a rate limit hit.
func (m *Metrics) ObserveRateLimit(limitType, identifier string) {
	m.RateLimitHitsTotal.WithLabelValues(limitType, identifier).Inc()
}

// ObserveDBQuery records a database query.
func (m *Metrics) ObserveDBQuery(operation, backend string, duration time.Duration) {
	m.DBQueryDuration.WithLabelValues(operation, backend).Observe(duration.Seconds())
}

func contains(s, substr string) bool {
	return len(s) >= len(substr) && s[:len(substr)] == substr ||
		len(s) > len(substr) && contains(s[1:], substr)
}
