package monitoring

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hearthforge/backend/internal/config"
	"github.com/hearthforge/backend/internal/storage"
)

func newTestMonitor(t *testing.T, alertURL, threshold string) (*BalanceMonitor, *storage.MemoryStore) {
	t.Helper()
	store := storage.NewMemoryStore()
	cfg := &config.Config{
		Monitoring: config.MonitoringConfig{
			LowBalanceAlertURL:  alertURL,
			LowBalanceThreshold: threshold,
			CheckInterval:       config.Duration{Duration: time.Minute},
			Timeout:             config.Duration{Duration: 5 * time.Second},
		},
	}
	m, err := NewBalanceMonitor(cfg, store)
	if err != nil {
		t.Fatalf("NewBalanceMonitor: %v", err)
	}
	return m, store
}

func TestCheckBalancesAlertsBelowThreshold(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		var payload map[string]any
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Errorf("decoding alert body: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	monitor, store := newTestMonitor(t, srv.URL, "100.00")
	if err := store.RecordBalanceSnapshot(context.Background(), &storage.PayoutsBalance{
		AccountType: storage.AccountPayPal, Pending: false, RecordedDate: time.Unix(0, 0).UTC(), Amount: "42.50",
	}); err != nil {
		t.Fatalf("RecordBalanceSnapshot: %v", err)
	}

	monitor.checkBalances(context.Background())

	if got := atomic.LoadInt32(&hits); got != 1 {
		t.Fatalf("got %d webhook calls, want 1", got)
	}

	// A second check within 24h must not re-alert the same rail.
	monitor.checkBalances(context.Background())
	if got := atomic.LoadInt32(&hits); got != 1 {
		t.Fatalf("got %d webhook calls after repeat check, want 1 (dedup)", got)
	}
}

func TestCheckBalancesSkipsHealthyRails(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
	}))
	defer srv.Close()

	monitor, store := newTestMonitor(t, srv.URL, "100.00")
	if err := store.RecordBalanceSnapshot(context.Background(), &storage.PayoutsBalance{
		AccountType: storage.AccountBrex, Pending: false, RecordedDate: time.Unix(0, 0).UTC(), Amount: "500.00",
	}); err != nil {
		t.Fatalf("RecordBalanceSnapshot: %v", err)
	}

	monitor.checkBalances(context.Background())

	if got := atomic.LoadInt32(&hits); got != 0 {
		t.Fatalf("got %d webhook calls for a healthy rail, want 0", got)
	}
}

func TestCheckBalancesSkipsRailsWithNoSnapshot(t *testing.T) {
	monitor, _ := newTestMonitor(t, "http://example.invalid", "100.00")
	// No RecordBalanceSnapshot calls: every rail is ErrNotFound. Must not panic.
	monitor.checkBalances(context.Background())
}

func TestNewBalanceMonitorRejectsInvalidThreshold(t *testing.T) {
	store := storage.NewMemoryStore()
	cfg := &config.Config{Monitoring: config.MonitoringConfig{LowBalanceThreshold: "not-a-number"}}
	if _, err := NewBalanceMonitor(cfg, store); err == nil {
		t.Fatal("expected an error for an unparseable threshold")
	}
}
