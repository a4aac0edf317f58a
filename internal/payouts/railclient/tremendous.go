package railclient

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/hearthforge/backend/internal/circuitbreaker"
	"github.com/hearthforge/backend/internal/config"
	apperrors "github.com/hearthforge/backend/internal/errors"
	"github.com/hearthforge/backend/internal/httputil"
	"github.com/hearthforge/backend/internal/metrics"
)

// TremendousClient is a bearer-token client for the Tremendous payout/reward
// catalog API (spec.md §4.D).
type TremendousClient struct {
	cfg     config.TremendousRailConfig
	http    *http.Client
	breaker *circuitbreaker.Manager
	metrics *metrics.Metrics
}

func NewTremendousClient(cfg config.TremendousRailConfig, breaker *circuitbreaker.Manager, appMetrics *metrics.Metrics) *TremendousClient {
	return &TremendousClient{cfg: cfg, http: httputil.NewClient(30 * time.Second), breaker: breaker, metrics: appMetrics}
}

type tremendousErrorBody struct {
	Errors struct {
		Message string `json:"message"`
	} `json:"errors"`
}

// Request performs an authenticated Tremendous API call, deserializing the
// response into out if non-nil.
func (c *TremendousClient) Request(ctx context.Context, method, path string, body interface{}, out interface{}) (err error) {
	start := time.Now()
	defer func() {
		if c.metrics != nil {
			c.metrics.ObserveRailCall(path, "tremendous", time.Since(start), err)
		}
	}()

	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return apperrors.Wrap(apperrors.CodePayments, "encode tremendous request body", err)
		}
		reader = strings.NewReader(string(encoded))
	}

	req, err := http.NewRequestWithContext(ctx, method, c.cfg.APIBaseURL+path, reader)
	if err != nil {
		return apperrors.Wrap(apperrors.CodePayments, "build tremendous request", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	result, err := c.breaker.Execute(circuitbreaker.ServiceTremendous, func() (interface{}, error) {
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
			var errBody tremendousErrorBody
			if jerr := json.Unmarshal(raw, &errBody); jerr == nil && errBody.Errors.Message != "" {
				return nil, apperrors.New(apperrors.CodePayments, errBody.Errors.Message)
			}
			return nil, apperrors.New(apperrors.CodePayments, "tremendous request failed: "+string(raw))
		}
		return raw, nil
	})
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(result.([]byte), out)
}

// TremendousProduct is one catalog entry from GET /products.
type TremendousProduct struct {
	ID         string                 `json:"id"`
	Name       string                 `json:"name"`
	Category   string                 `json:"category"`
	Currencies []string               `json:"currency_codes"`
	Skus       []TremendousProductSKU `json:"skus"`
}

// TremendousProductSKU is one denomination of a Tremendous product.
type TremendousProductSKU struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// ListProducts fetches the full Tremendous product catalog (spec.md §4.E
// step 1).
func (c *TremendousClient) ListProducts(ctx context.Context) ([]TremendousProduct, error) {
	var parsed struct {
		Products []TremendousProduct `json:"products"`
	}
	if err := c.Request(ctx, http.MethodGet, "/products", nil, &parsed); err != nil {
		return nil, err
	}
	return parsed.Products, nil
}

// FundingSourceBalance is one Tremendous funding source's balance snapshot.
type FundingSourceBalance struct {
	ID               string `json:"id"`
	AvailableBalance string `json:"available_cents"`
}

// Balance fetches the Tremendous funding-source balance used by the
// balance reporter (spec.md §4.G).
func (c *TremendousClient) Balance(ctx context.Context) ([]FundingSourceBalance, error) {
	var parsed struct {
		FundingSources []FundingSourceBalance `json:"funding_sources"`
	}
	if err := c.Request(ctx, http.MethodGet, "/funding_sources", nil, &parsed); err != nil {
		return nil, err
	}
	return parsed.FundingSources, nil
}
