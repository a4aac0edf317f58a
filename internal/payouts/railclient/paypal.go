// Package railclient implements HTTP clients for the external payout rails
// (PayPal, Tremendous, Brex) and the Aditude analytics API, each wrapped in
// the circuit breaker manager so an outage on one rail cannot starve the
// others (spec.md §4.D, §4.G).
package railclient

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/hearthforge/backend/internal/circuitbreaker"
	"github.com/hearthforge/backend/internal/config"
	apperrors "github.com/hearthforge/backend/internal/errors"
	"github.com/hearthforge/backend/internal/httputil"
	"github.com/hearthforge/backend/internal/metrics"
)

// credentials is the PayPal OAuth2 client-credentials token cache entry.
type credentials struct {
	token     string
	tokenType string
	expiresAt time.Time
}

func (c credentials) valid(now time.Time) bool {
	return c.token != "" && now.Before(c.expiresAt)
}

// PayPalClient holds a single-flight-refreshed client-credentials token,
// per spec.md §4.D: readers clone a valid token under a read lock; the
// first caller to observe an expired/absent token takes the write lock and
// refreshes, every other caller waiting on that same lock rather than
// firing a duplicate refresh.
type PayPalClient struct {
	cfg     config.PayPalRailConfig
	http    *http.Client
	breaker *circuitbreaker.Manager
	metrics *metrics.Metrics

	mu    sync.RWMutex
	creds credentials
}

// NewPayPalClient wires a PayPalClient from its rail configuration.
func NewPayPalClient(cfg config.PayPalRailConfig, breaker *circuitbreaker.Manager, appMetrics *metrics.Metrics) *PayPalClient {
	return &PayPalClient{cfg: cfg, http: httputil.NewClient(30 * time.Second), breaker: breaker, metrics: appMetrics}
}

func (c *PayPalClient) token(ctx context.Context) (credentials, error) {
	now := time.Now()
	c.mu.RLock()
	if c.creds.valid(now) {
		cp := c.creds
		c.mu.RUnlock()
		return cp, nil
	}
	c.mu.RUnlock()

	c.mu.Lock()
	defer c.mu.Unlock()
	// Re-check: another goroutine may have refreshed while we waited for
	// the write lock.
	now = time.Now()
	if c.creds.valid(now) {
		return c.creds, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.APIBaseURL+"/v1/oauth2/token",
		strings.NewReader(url.Values{"grant_type": {"client_credentials"}}.Encode()))
	if err != nil {
		return credentials{}, apperrors.Wrap(apperrors.CodePayments, "build paypal token request", err)
	}
	req.SetBasicAuth(c.cfg.ClientID, c.cfg.ClientSecret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	result, err := c.breaker.Execute(circuitbreaker.ServicePayPal, func() (interface{}, error) {
		resp, err := c.http.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode >= 300 {
			return nil, fmt.Errorf("paypal token refresh: status %d: %s", resp.StatusCode, string(body))
		}
		var parsed struct {
			AccessToken string `json:"access_token"`
			TokenType   string `json:"token_type"`
			ExpiresIn   int64  `json:"expires_in"`
		}
		if err := json.Unmarshal(body, &parsed); err != nil {
			return nil, err
		}
		return parsed, nil
	})
	if err != nil {
		return credentials{}, apperrors.Wrap(apperrors.CodePayments, "refresh paypal token", err)
	}
	parsed := result.(struct {
		AccessToken string `json:"access_token"`
		TokenType   string `json:"token_type"`
		ExpiresIn   int64  `json:"expires_in"`
	})

	c.creds = credentials{
		token:     parsed.AccessToken,
		tokenType: parsed.TokenType,
		expiresAt: now.Add(time.Duration(parsed.ExpiresIn) * time.Second),
	}
	return c.creds, nil
}

// payPalErrorShapeA is the {name, message} error body PayPal's REST API uses.
type payPalErrorShapeA struct {
	Name    string `json:"name"`
	Message string `json:"message"`
}

// payPalErrorShapeB is the {error, error_description} OAuth-style error body.
type payPalErrorShapeB struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

// Request performs an authenticated PayPal API call, implementing
// make_paypal_request from spec.md §4.D. body may be nil (GET), a
// json.Marshal-able value, or a raw string (passed through as-is). The
// response is deserialized into out if non-nil.
func (c *PayPalClient) Request(ctx context.Context, method, path string, body interface{}, noAPIPrefix bool, out interface{}) (err error) {
	start := time.Now()
	defer func() {
		if c.metrics != nil {
			c.metrics.ObserveRailCall(path, "paypal", time.Since(start), err)
		}
	}()

	creds, err := c.token(ctx)
	if err != nil {
		return err
	}

	target := path
	if !noAPIPrefix {
		target = c.cfg.APIBaseURL + path
	}

	var reader io.Reader
	switch v := body.(type) {
	case nil:
	case string:
		reader = strings.NewReader(v)
	default:
		encoded, err := json.Marshal(v)
		if err != nil {
			return apperrors.Wrap(apperrors.CodePayments, "encode paypal request body", err)
		}
		reader = strings.NewReader(string(encoded))
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return apperrors.Wrap(apperrors.CodePayments, "build paypal request", err)
	}
	req.Header.Set("Authorization", creds.tokenType+" "+creds.token)
	req.Header.Set("Content-Type", "application/json")

	result, err := c.breaker.Execute(circuitbreaker.ServicePayPal, func() (interface{}, error) {
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
			return nil, payPalAPIError(raw)
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

// payPalAPIError surfaces a non-2xx PayPal response as a Payments error,
// rewriting INSUFFICIENT_FUNDS to the user-facing copy per spec.md §4.D.
func payPalAPIError(raw []byte) error {
	var a payPalErrorShapeA
	if err := json.Unmarshal(raw, &a); err == nil && a.Name != "" {
		if a.Name == "INSUFFICIENT_FUNDS" {
			return apperrors.New(apperrors.CodePayments, "this payout method is currently transferring funds, please try again later")
		}
		return apperrors.New(apperrors.CodePayments, a.Message)
	}
	var b payPalErrorShapeB
	if err := json.Unmarshal(raw, &b); err == nil && b.Error != "" {
		return apperrors.New(apperrors.CodePayments, b.ErrorDescription)
	}
	return apperrors.New(apperrors.CodePayments, "paypal request failed: "+string(raw))
}

// nvpEndpoint is PayPal's legacy NVP API endpoint. It is not configurable
// via PayPalRailConfig since it is a fixed PayPal URL unrelated to the REST
// api_base_url; tests override it to point at a local fixture server.
var nvpEndpoint = "https://api-3t.paypal.com/nvp"

// NVPBalance implements the PayPal NVP GetBalance call from spec.md §4.D.
// Pending is always zero for this rail; NVP exposes only the available
// balance.
func (c *PayPalClient) NVPBalance(ctx context.Context, user, password, signature string) (string, error) {
	form := url.Values{
		"METHOD":             {"GetBalance"},
		"VERSION":            {"204"},
		"USER":               {user},
		"PWD":                {password},
		"SIGNATURE":          {signature},
		"RETURNALLCURRENCIES": {"1"},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, nvpEndpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return "", apperrors.Wrap(apperrors.CodePayments, "build nvp balance request", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	result, err := c.breaker.Execute(circuitbreaker.ServicePayPal, func() (interface{}, error) {
		resp, err := c.http.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()
		raw, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, err
		}
		return string(raw), nil
	})
	if err != nil {
		return "", apperrors.Wrap(apperrors.CodePayments, "nvp balance request", err)
	}

	values, err := url.ParseQuery(result.(string))
	if err != nil {
		return "", apperrors.Wrap(apperrors.CodePayments, "parse nvp balance response", err)
	}
	return values.Get("L_AMT0"), nil
}
