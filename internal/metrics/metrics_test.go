package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetricsInitialization(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := New(registry)

	if m == nil {
		t.Fatal("metrics collector should not be nil")
	}
	if m.VersionUploadsTotal == nil {
		t.Error("VersionUploadsTotal should be initialized")
	}
	if m.DownloadsTotal == nil {
		t.Error("DownloadsTotal should be initialized")
	}
	if m.RailCallsTotal == nil {
		t.Error("RailCallsTotal should be initialized")
	}
	if m.PayoutBatchesTotal == nil {
		t.Error("PayoutBatchesTotal should be initialized")
	}
	if m.WebhooksTotal == nil {
		t.Error("WebhooksTotal should be initialized")
	}
}

func TestObserveVersionUpload(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := New(registry)

	m.ObserveVersionUpload("release", "success", 2*time.Second, 4096)

	count := promtest.ToFloat64(m.VersionUploadsTotal.WithLabelValues("release", "success"))
	if count != 1 {
		t.Errorf("expected 1 version upload, got %.0f", count)
	}

	bytes := promtest.ToFloat64(m.VersionUploadBytes.WithLabelValues("release"))
	if bytes != 4096 {
		t.Errorf("expected 4096 bytes recorded, got %.0f", bytes)
	}
}

func TestObserveDownload(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := New(registry)

	m.ObserveDownload("mod")
	m.ObserveDownload("mod")

	count := promtest.ToFloat64(m.DownloadsTotal.WithLabelValues("mod"))
	if count != 2 {
		t.Errorf("expected 2 downloads, got %.0f", count)
	}
}

func TestObserveRailCall(t *testing.T) {
	tests := []struct {
		name       string
		method     string
		rail       string
		duration   time.Duration
		err        error
		wantCalls  float64
		wantErrors float64
	}{
		{
			name:      "successful rail call",
			method:    "list_products",
			rail:      "tremendous",
			duration:  100 * time.Millisecond,
			err:       nil,
			wantCalls: 1,
		},
		{
			name:       "failed rail call with connection error",
			method:     "balance",
			rail:       "tremendous",
			duration:   100 * time.Millisecond,
			err:        &testError{msg: "connection reset"},
			wantCalls:  1,
			wantErrors: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			registry := prometheus.NewRegistry()
			m := New(registry)

			m.ObserveRailCall(tt.method, tt.rail, tt.duration, tt.err)

			calls := promtest.ToFloat64(m.RailCallsTotal.WithLabelValues(tt.method, tt.rail))
			if calls != tt.wantCalls {
				t.Errorf("expected %.0f rail calls, got %.0f", tt.wantCalls, calls)
			}

			if tt.err != nil {
				errors := promtest.ToFloat64(m.RailErrorsTotal.WithLabelValues(tt.method, tt.rail, "connection"))
				if errors != tt.wantErrors {
					t.Errorf("expected %.0f rail errors, got %.0f", tt.wantErrors, errors)
				}
			}
		})
	}
}

func TestObservePayoutBatch(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := New(registry)

	m.ObservePayoutBatch("success", 45*time.Second)
	m.ObservePayoutAmount("tremendous", 5000)

	count := promtest.ToFloat64(m.PayoutBatchesTotal.WithLabelValues("success"))
	if count != 1 {
		t.Errorf("expected 1 payout batch, got %.0f", count)
	}

	amount := promtest.ToFloat64(m.PayoutAmountTotal.WithLabelValues("tremendous"))
	if amount != 5000 {
		t.Errorf("expected payout amount 5000 cents, got %.0f", amount)
	}
}

func TestObserveWebhook(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := New(registry)

	m.ObserveWebhook("customer.updated", "success", 500*time.Millisecond)

	webhooks := promtest.ToFloat64(m.WebhooksTotal.WithLabelValues("customer.updated", "success"))
	if webhooks != 1 {
		t.Errorf("expected 1 webhook delivery, got %.0f", webhooks)
	}
}

func TestObserveRateLimit(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := New(registry)

	m.ObserveRateLimit("per_ip", "1.2.3.4")

	hits := promtest.ToFloat64(m.RateLimitHitsTotal.WithLabelValues("per_ip", "1.2.3.4"))
	if hits != 1 {
		t.Errorf("expected 1 rate limit hit, got %.0f", hits)
	}
}

func TestObserveDBQuery(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := New(registry)

	m.ObserveDBQuery("SELECT", "postgres", 50*time.Millisecond)

	if m.DBQueryDuration == nil {
		t.Error("DBQueryDuration should be initialized")
	}
}

type testError struct {
	msg string
}

func (e *testError) Error() string {
	return e.msg
}
