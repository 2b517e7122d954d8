package futures

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/chromedp/chromedp"

	"github.com/web3-frozen/unlock-emissions/internal/emission"
)

const coinglassURL = "https://www.coinglass.com/currencies/"

// CoinGlass scrapes aggregated open interest and funding from the CoinGlass
// currency page via headless Chrome. It covers tokens that only trade on
// smaller venues.
type CoinGlass struct {
	logger  *slog.Logger
	timeout time.Duration
}

func NewCoinGlass(logger *slog.Logger) *CoinGlass {
	return &CoinGlass{logger: logger, timeout: 45 * time.Second}
}

func (c *CoinGlass) Name() string { return "coinglass" }

type coinglassScrape struct {
	OpenInterest float64 `json:"openInterest"`
	FundingRate  float64 `json:"fundingRate"`
	Found        bool    `json:"found"`
}

func (c *CoinGlass) Lookup(ctx context.Context, symbol string) (*emission.Futures, error) {
	sym := strings.ToUpper(symbol)

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-crash-reporter", true),
		chromedp.Flag("crash-dumps-dir", "/tmp"),
	)

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, opts...)
	defer allocCancel()

	browserCtx, cancel := chromedp.NewContext(allocCtx)
	defer cancel()

	browserCtx, cancel = context.WithTimeout(browserCtx, c.timeout)
	defer cancel()

	var resultJSON string
	if err := chromedp.Run(browserCtx,
		chromedp.Navigate(coinglassURL+sym),
		chromedp.WaitVisible(`body`, chromedp.ByQuery),
		chromedp.Sleep(3*time.Second),
		chromedp.Evaluate(extractFuturesJS, &resultJSON),
	); err != nil {
		return nil, fmt.Errorf("chromedp %s: %w", sym, err)
	}

	f, err := parseScrape(sym, resultJSON)
	if err != nil {
		return nil, err
	}
	c.logger.Info("scraped futures data", "symbol", sym, "open_interest", f.OpenInterest)
	return f, nil
}

func parseScrape(symbol, raw string) (*emission.Futures, error) {
	var s coinglassScrape
	if err := json.Unmarshal([]byte(raw), &s); err != nil {
		return nil, fmt.Errorf("parse coinglass %s: %w", symbol, err)
	}
	if !s.Found || s.OpenInterest <= 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoMarket, symbol)
	}
	return &emission.Futures{
		Symbol:       symbol,
		OpenInterest: s.OpenInterest,
		FundingRate:  s.FundingRate,
		Source:       "coinglass",
		FetchedAt:    time.Now(),
	}, nil
}

// extractFuturesJS reads the summary cards of the rendered currency page.
const extractFuturesJS = `
(() => {
	const parseNum = s => {
		s = (s || '').replace(/[$,%\s]/g, '');
		let mult = 1;
		if (/B$/i.test(s)) { mult = 1e9; s = s.slice(0, -1); }
		else if (/M$/i.test(s)) { mult = 1e6; s = s.slice(0, -1); }
		else if (/K$/i.test(s)) { mult = 1e3; s = s.slice(0, -1); }
		const n = parseFloat(s);
		return isNaN(n) ? 0 : n * mult;
	};
	const valueAfter = label => {
		const nodes = Array.from(document.querySelectorAll('div, span'));
		const node = nodes.find(n => (n.textContent || '').trim() === label);
		if (!node || !node.nextElementSibling) return null;
		return node.nextElementSibling.textContent;
	};
	const oi = valueAfter('Open Interest');
	const funding = valueAfter('Funding Rate');
	return JSON.stringify({
		found: oi !== null,
		openInterest: parseNum(oi),
		fundingRate: parseNum(funding) / 100,
	});
})()
`
