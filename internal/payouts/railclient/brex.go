package railclient

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/hearthforge/backend/internal/circuitbreaker"
	"github.com/hearthforge/backend/internal/config"
	apperrors "github.com/hearthforge/backend/internal/errors"
	"github.com/hearthforge/backend/internal/httputil"
)

// BrexClient reports cash-account balances for the balance reporter
// (spec.md §4.D, §4.G).
type BrexClient struct {
	cfg     config.BrexRailConfig
	http    *http.Client
	breaker *circuitbreaker.Manager
}

func NewBrexClient(cfg config.BrexRailConfig, breaker *circuitbreaker.Manager) *BrexClient {
	return &BrexClient{cfg: cfg, http: httputil.NewClient(30 * time.Second), breaker: breaker}
}

type brexCashAccount struct {
	AvailableBalance struct {
		Amount int64 `json:"amount"` // cents
	} `json:"available_balance"`
	CurrentBalance struct {
		Amount int64 `json:"amount"` // cents
	} `json:"current_balance"`
}

// Balances sums available and pending (current - available) balance across
// every Brex cash account, in cents, per spec.md §4.D.
func (c *BrexClient) Balances(ctx context.Context) (availableCents, pendingCents int64, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.APIBaseURL+"/accounts/cash", nil)
	if err != nil {
		return 0, 0, apperrors.Wrap(apperrors.CodePayments, "build brex request", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	result, err := c.breaker.Execute(circuitbreaker.ServiceBrex, func() (interface{}, error) {
		resp, err := c.http.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()
		raw, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode >= 300 {
			return nil, apperrors.New(apperrors.CodePayments, "brex request failed: "+string(raw))
		}
		var parsed struct {
			Items []brexCashAccount `json:"items"`
		}
		if err := json.Unmarshal(raw, &parsed); err != nil {
			return nil, err
		}
		return parsed.Items, nil
	})
	if err != nil {
		return 0, 0, err
	}

	for _, account := range result.([]brexCashAccount) {
		availableCents += account.AvailableBalance.Amount
		pendingCents += account.CurrentBalance.Amount - account.AvailableBalance.Amount
	}
	return availableCents, pendingCents, nil
}
