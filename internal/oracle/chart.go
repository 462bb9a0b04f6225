package oracle

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/solwatch/buyops/worker"
)

// ChartClient fetches the candle series the evaluator judges. The chart API
// itself is an external collaborator; this is just the transport.
type ChartClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewChartClient reads CHART_API_URL from the environment.
func NewChartClient() *ChartClient {
	return &ChartClient{
		baseURL:    os.Getenv("CHART_API_URL"),
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
}

// Candles fetches bars for a mint. With no chart API configured it returns an
// empty series; the evaluator then classifies the regime as flat.
func (c *ChartClient) Candles(ctx context.Context, mint string, opts worker.MarketDataOptions) ([]Candle, error) {
	if c.baseURL == "" {
		log.Debug().Str("mint", mint).Msg("CHART_API_URL not set - evaluating without candles")
		return nil, nil
	}

	limit := opts.CandleLimit
	if limit <= 0 {
		limit = 60
	}
	interval := opts.Interval
	if interval == "" {
		interval = "1m"
	}

	q := url.Values{}
	q.Set("mint", mint)
	q.Set("interval", interval)
	q.Set("limit", strconv.Itoa(limit))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/candles?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("chart fetch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("chart api status %d: %s", resp.StatusCode, string(body))
	}

	var candles []Candle
	if err := json.NewDecoder(resp.Body).Decode(&candles); err != nil {
		return nil, fmt.Errorf("decode candles: %w", err)
	}
	return candles, nil
}

// Close releases idle transport connections.
func (c *ChartClient) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}
