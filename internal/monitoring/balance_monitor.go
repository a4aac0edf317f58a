package monitoring

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/hearthforge/backend/internal/config"
	"github.com/hearthforge/backend/internal/httputil"
	"github.com/hearthforge/backend/internal/money"
	"github.com/hearthforge/backend/internal/storage"
)

// rails is the fixed set of payout rails a BalanceMonitor samples, mirroring
// internal/payouts.BalanceReporter's own sampling set.
var rails = []storage.AccountType{storage.AccountPayPal, storage.AccountBrex, storage.AccountTremendous}

// BalanceMonitor periodically reads the most recent payout-rail balance
// snapshots (as recorded by internal/payouts.BalanceReporter) and sends a
// webhook alert when a rail's available balance drops below the configured
// threshold. It never samples the rails itself; that is the reporter's job,
// run separately by cmd/payouts.
type BalanceMonitor struct {
	cfg        *config.Config
	store      storage.Store
	httpClient *http.Client
	threshold  money.Amount

	mu          sync.Mutex
	alertedKeys map[storage.AccountType]time.Time

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// BalanceAlert is the payload rendered into an alert webhook body.
type BalanceAlert struct {
	AccountType string    `json:"account_type"`
	Balance     string    `json:"balance"`
	Threshold   string    `json:"threshold"`
	Timestamp   time.Time `json:"timestamp"`
}

// NewBalanceMonitor builds a BalanceMonitor reading snapshots from store.
func NewBalanceMonitor(cfg *config.Config, store storage.Store) (*BalanceMonitor, error) {
	threshold, err := money.Parse(cfg.Monitoring.LowBalanceThreshold)
	if err != nil {
		return nil, fmt.Errorf("parsing low_balance_threshold: %w", err)
	}
	return &BalanceMonitor{
		cfg:         cfg,
		store:       store,
		httpClient:  httputil.NewClient(cfg.Monitoring.Timeout.Duration),
		threshold:   threshold,
		alertedKeys: make(map[storage.AccountType]time.Time),
		stopCh:      make(chan struct{}),
	}, nil
}

// Start begins the balance monitoring loop.
func (m *BalanceMonitor) Start(ctx context.Context) {
	if m.cfg.Monitoring.LowBalanceAlertURL == "" {
		log.Info().Msg("balance_monitor.disabled_no_url")
		return
	}

	log.Info().
		Dur("check_interval", m.cfg.Monitoring.CheckInterval.Duration).
		Str("threshold_usd", m.threshold.String()).
		Msg("balance_monitor.started")

	m.wg.Add(1)
	go m.monitorLoop(ctx)
}

// Stop gracefully stops the balance monitoring loop.
func (m *BalanceMonitor) Stop() {
	close(m.stopCh)
	m.wg.Wait()
	log.Info().Msg("balance_monitor.stopped")
}

func (m *BalanceMonitor) monitorLoop(ctx context.Context) {
	defer m.wg.Done()

	ticker := time.NewTicker(m.cfg.Monitoring.CheckInterval.Duration)
	defer ticker.Stop()

	m.checkBalances(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-m.stopCh:
			return
		case <-ticker.C:
			m.checkBalances(ctx)
		}
	}
}

// checkBalances reads each rail's latest non-pending snapshot and alerts
// when it has fallen below threshold.
func (m *BalanceMonitor) checkBalances(ctx context.Context) {
	for _, rail := range rails {
		snapshot, err := m.store.LatestBalanceSnapshot(ctx, rail, false)
		if errors.Is(err, storage.ErrNotFound) {
			continue
		}
		if err != nil {
			log.Error().Err(err).Str("rail", string(rail)).Msg("balance_monitor.fetch_error")
			continue
		}
		balance, err := money.Parse(snapshot.Amount)
		if err != nil {
			log.Error().Err(err).Str("rail", string(rail)).Msg("balance_monitor.parse_error")
			continue
		}

		log.Debug().Str("rail", string(rail)).Str("balance_usd", balance.String()).Msg("balance_monitor.balance_checked")

		if balance.LessThan(m.threshold) {
			if m.shouldAlert(rail) {
				m.sendAlert(ctx, rail, balance)
			}
		} else {
			m.clearAlert(rail)
		}
	}
}

// shouldAlert returns true if we should send an alert for this rail. We
// only alert once per 24 hours to avoid spam.
func (m *BalanceMonitor) shouldAlert(rail storage.AccountType) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	lastAlert, exists := m.alertedKeys[rail]
	if !exists {
		return true
	}
	return time.Since(lastAlert) > 24*time.Hour
}

func (m *BalanceMonitor) clearAlert(rail storage.AccountType) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.alertedKeys, rail)
}

// sendAlert sends a webhook notification about a low balance.
func (m *BalanceMonitor) sendAlert(ctx context.Context, rail storage.AccountType, balance money.Amount) {
	body, err := json.Marshal(map[string]any{
		"content": fmt.Sprintf(
			"⚠️ **Low Payout Balance**\n\nRail: `%s`\nBalance: **$%s**\nThreshold: $%s",
			rail, balance.String(), m.threshold.String(),
		),
	})
	if err != nil {
		log.Error().Err(err).Str("rail", string(rail)).Msg("balance_monitor.marshal_error")
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.cfg.Monitoring.LowBalanceAlertURL, bytes.NewReader(body))
	if err != nil {
		log.Error().Err(err).Str("rail", string(rail)).Msg("balance_monitor.request_error")
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := m.httpClient.Do(req)
	if err != nil {
		log.Error().Err(err).Str("rail", string(rail)).Msg("balance_monitor.send_error")
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		log.Info().Str("rail", string(rail)).Str("balance_usd", balance.String()).Int("status_code", resp.StatusCode).Msg("balance_monitor.alert_sent")
		m.mu.Lock()
		m.alertedKeys[rail] = time.Now()
		m.mu.Unlock()
	} else {
		log.Warn().Str("rail", string(rail)).Int("status_code", resp.StatusCode).Msg("balance_monitor.alert_failed")
	}
}
