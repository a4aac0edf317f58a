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
)

// AditudeClient fetches ad-revenue analytics for the nightly payout batch
// job (spec.md §4.F step 6).
type AditudeClient struct {
	cfg     config.AditudeConfig
	http    *http.Client
	breaker *circuitbreaker.Manager
}

func NewAditudeClient(cfg config.AditudeConfig, breaker *circuitbreaker.Manager) *AditudeClient {
	return &AditudeClient{cfg: cfg, http: httputil.NewClient(30 * time.Second), breaker: breaker}
}

type aditudeMetricsRequest struct {
	Metrics  []string `json:"metrics"`
	Range    string   `json:"range"`
	Interval string   `json:"interval"`
}

// YesterdayMetrics is the total impressions/revenue Aditude reported for
// the previous UTC day.
type YesterdayMetrics struct {
	Impressions int64
	Revenue     string // decimal string; see internal/money
}

// FetchYesterday performs make_aditude_request for the fixed
// {METRIC_IMPRESSIONS, METRIC_REVENUE} pair over range=Yesterday.
func (c *AditudeClient) FetchYesterday(ctx context.Context) (YesterdayMetrics, error) {
	payload := aditudeMetricsRequest{
		Metrics:  []string{"METRIC_IMPRESSIONS", "METRIC_REVENUE"},
		Range:    "Yesterday",
		Interval: "1d",
	}
	encoded, err := json.Marshal(payload)
	if err != nil {
		return YesterdayMetrics{}, apperrors.Wrap(apperrors.CodeAnalytics, "encode aditude request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.APIBaseURL+"/v1/reporting/metrics", strings.NewReader(string(encoded)))
	if err != nil {
		return YesterdayMetrics{}, apperrors.Wrap(apperrors.CodeAnalytics, "build aditude request", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	result, err := c.breaker.Execute(circuitbreaker.ServiceAditude, func() (interface{}, error) {
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
			return nil, apperrors.New(apperrors.CodeAnalytics, "aditude request failed: "+string(raw))
		}
		var parsed struct {
			Data []struct {
				Impressions int64  `json:"METRIC_IMPRESSIONS"`
				Revenue     string `json:"METRIC_REVENUE"`
			} `json:"data"`
		}
		if err := json.Unmarshal(raw, &parsed); err != nil {
			return nil, err
		}
		return parsed.Data, nil
	})
	if err != nil {
		return YesterdayMetrics{}, err
	}

	rows := result.([]struct {
		Impressions int64  `json:"METRIC_IMPRESSIONS"`
		Revenue     string `json:"METRIC_REVENUE"`
	})
	var totalImpressions int64
	totalRevenue := "0"
	if len(rows) > 0 {
		totalImpressions = rows[0].Impressions
		totalRevenue = rows[0].Revenue
	}
	return YesterdayMetrics{Impressions: totalImpressions, Revenue: totalRevenue}, nil
}
