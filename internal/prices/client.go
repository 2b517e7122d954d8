// Package prices fetches historical token prices.
package prices

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/web3-frozen/unlock-emissions/internal/metrics"
)

const defaultPricesAPI = "https://coins.llama.fi"

// Lookup resolves the USD price of a token at a unix timestamp. ok is false
// when no price could be obtained for any reason.
type Lookup interface {
	HistoricalPrice(ctx context.Context, token string, ts int64) (price float64, ok bool)
}

type historicalResponse struct {
	Coins map[string]struct {
		Price      float64 `json:"price"`
		Symbol     string  `json:"symbol"`
		Timestamp  int64   `json:"timestamp"`
		Confidence float64 `json:"confidence"`
	} `json:"coins"`
}

// Client queries the coins.llama.fi historical price endpoint.
type Client struct {
	client  *http.Client
	baseURL string
	logger  *slog.Logger
}

type Option func(*Client)

func WithBaseURL(u string) Option { return func(c *Client) { c.baseURL = u } }

func WithHTTPClient(hc *http.Client) Option { return func(c *Client) { c.client = hc } }

func WithLogger(l *slog.Logger) Option { return func(c *Client) { c.logger = l } }

func NewClient(opts ...Option) *Client {
	c := &Client{
		client:  &http.Client{Timeout: 20 * time.Second},
		baseURL: defaultPricesAPI,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// HistoricalPrice never returns an error; network and decode failures are
// logged and reported as a missing price.
func (c *Client) HistoricalPrice(ctx context.Context, token string, ts int64) (float64, bool) {
	price, err := c.fetch(ctx, token, ts)
	if err != nil {
		metrics.PriceLookupsTotal.WithLabelValues("error").Inc()
		c.logger.Warn("historical price lookup failed", "token", token, "timestamp", ts, "error", err)
		return 0, false
	}
	if price <= 0 {
		metrics.PriceLookupsTotal.WithLabelValues("missing").Inc()
		return 0, false
	}
	metrics.PriceLookupsTotal.WithLabelValues("ok").Inc()
	return price, true
}

func (c *Client) fetch(ctx context.Context, token string, ts int64) (float64, error) {
	u := fmt.Sprintf("%s/prices/historical/%d/%s/", c.baseURL, ts, url.PathEscape(token))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return 0, err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("prices API: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("prices API status: %d", resp.StatusCode)
	}

	var body historicalResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return 0, fmt.Errorf("decode prices: %w", err)
	}
	return body.Coins[token].Price, nil
}
