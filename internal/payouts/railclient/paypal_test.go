package railclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hearthforge/backend/internal/circuitbreaker"
	"github.com/hearthforge/backend/internal/config"
)

func noopBreaker() *circuitbreaker.Manager {
	return circuitbreaker.NewManager(circuitbreaker.Config{Enabled: false})
}

func TestPayPalClientTokenIsCachedAcrossRequests(t *testing.T) {
	var refreshes int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&refreshes, 1)
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"access_token": "tok-1", "token_type": "Bearer", "expires_in": 3600,
		})
	}))
	defer srv.Close()

	client := NewPayPalClient(config.PayPalRailConfig{APIBaseURL: srv.URL, ClientID: "id", ClientSecret: "secret"}, noopBreaker(), nil)

	c1, err := client.token(context.Background())
	require.NoError(t, err)
	require.Equal(t, "tok-1", c1.token)

	c2, err := client.token(context.Background())
	require.NoError(t, err)
	require.Equal(t, c1, c2)
	require.EqualValues(t, 1, atomic.LoadInt32(&refreshes), "second call must reuse the cached token, not refresh again")
}

func TestPayPalAPIErrorRewritesInsufficientFunds(t *testing.T) {
	raw, err := json.Marshal(payPalErrorShapeA{Name: "INSUFFICIENT_FUNDS", Message: "not enough balance"})
	require.NoError(t, err)

	apiErr := payPalAPIError(raw)
	require.ErrorContains(t, apiErr, "currently transferring funds")
}

func TestPayPalAPIErrorFallsBackToOAuthShape(t *testing.T) {
	raw, err := json.Marshal(payPalErrorShapeB{Error: "invalid_client", ErrorDescription: "bad credentials"})
	require.NoError(t, err)

	apiErr := payPalAPIError(raw)
	require.ErrorContains(t, apiErr, "bad credentials")
}

func TestNVPBalanceParsesAmount(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ACK=Success&L_AMT0=123.45&L_CURRENCYCODE0=USD"))
	}))
	defer srv.Close()

	original := nvpEndpoint
	nvpEndpoint = srv.URL
	defer func() { nvpEndpoint = original }()

	client := NewPayPalClient(config.PayPalRailConfig{}, noopBreaker(), nil)

	amount, err := client.NVPBalance(context.Background(), "user", "pass", "sig")
	require.NoError(t, err)
	require.Equal(t, "123.45", amount)
}
