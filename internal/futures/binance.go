package futures

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/web3-frozen/unlock-emissions/internal/emission"
)

const binanceFuturesAPI = "https://fapi.binance.com"

type binanceOpenInterest struct {
	Symbol       string `json:"symbol"`
	OpenInterest string `json:"openInterest"`
}

type binancePremiumIndex struct {
	Symbol          string `json:"symbol"`
	MarkPrice       string `json:"markPrice"`
	LastFundingRate string `json:"lastFundingRate"`
}

// Binance reads USDⓈ-M perpetual data from the Binance futures REST API.
type Binance struct {
	client  *http.Client
	baseURL string
}

func NewBinance() *Binance {
	return &Binance{
		client:  &http.Client{Timeout: 10 * time.Second},
		baseURL: binanceFuturesAPI,
	}
}

func (b *Binance) Name() string { return "binance" }

// Lookup pairs symbol with USDT. Open interest is converted to USD at the
// mark price.
func (b *Binance) Lookup(ctx context.Context, symbol string) (*emission.Futures, error) {
	pair := strings.ToUpper(symbol) + "USDT"

	var oi binanceOpenInterest
	if err := b.get(ctx, "/fapi/v1/openInterest", pair, &oi); err != nil {
		return nil, err
	}
	var pi binancePremiumIndex
	if err := b.get(ctx, "/fapi/v1/premiumIndex", pair, &pi); err != nil {
		return nil, err
	}

	contracts, err := strconv.ParseFloat(oi.OpenInterest, 64)
	if err != nil {
		return nil, fmt.Errorf("parse binance open interest: %w", err)
	}
	mark, err := strconv.ParseFloat(pi.MarkPrice, 64)
	if err != nil {
		return nil, fmt.Errorf("parse binance mark price: %w", err)
	}
	funding, err := strconv.ParseFloat(pi.LastFundingRate, 64)
	if err != nil {
		return nil, fmt.Errorf("parse binance funding rate: %w", err)
	}

	return &emission.Futures{
		Symbol:       pair,
		OpenInterest: contracts * mark,
		FundingRate:  funding,
		Source:       b.Name(),
		FetchedAt:    time.Now(),
	}, nil
}

func (b *Binance) get(ctx context.Context, path, pair string, out any) error {
	url := fmt.Sprintf("%s%s?symbol=%s", b.baseURL, path, pair)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := b.client.Do(req)
	if err != nil {
		return fmt.Errorf("binance futures API: %w", err)
	}
	defer resp.Body.Close()

	// Binance answers 400 with code -1121 for unlisted symbols.
	if resp.StatusCode == http.StatusBadRequest {
		return fmt.Errorf("%w: %s", ErrNoMarket, pair)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("binance futures API status: %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode binance %s: %w", path, err)
	}
	return nil
}
