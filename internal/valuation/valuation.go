// Package valuation prices realised incentive unlocks in USD.
package valuation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/web3-frozen/unlock-emissions/internal/emission"
	"github.com/web3-frozen/unlock-emissions/internal/prices"
)

// IncentiveCategories select which documented series are valued.
var IncentiveCategories = []string{"farming", "airdrop"}

var errNoToken = errors.New("artifact has no token")

// Engine computes the USD value of tokens unlocked by incentive programmes.
type Engine struct {
	prices     prices.Lookup
	logger     *slog.Logger
	now        func() time.Time
	categories []string
}

type Option func(*Engine)

// WithClock overrides the wall clock used to exclude future unlocks.
func WithClock(now func() time.Time) Option { return func(e *Engine) { e.now = now } }

// WithCategories overrides the incentive categories.
func WithCategories(cats ...string) Option { return func(e *Engine) { e.categories = cats } }

func NewEngine(lookup prices.Lookup, logger *slog.Logger, opts ...Option) *Engine {
	e := &Engine{
		prices:     lookup,
		logger:     logger,
		now:        time.Now,
		categories: IncentiveCategories,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Compute returns [timestamp, usd] pairs in ascending timestamp order. It
// never fails: any error yields an empty series.
func (e *Engine) Compute(ctx context.Context, a *emission.Artifact) (out []emission.UnlockUSD) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Warn("unlock valuation panicked", "panic", fmt.Sprint(r))
			out = []emission.UnlockUSD{}
		}
	}()

	chart, err := e.compute(ctx, a)
	if err != nil {
		e.logger.Warn("unlock valuation skipped", "error", err)
		return []emission.UnlockUSD{}
	}
	return chart
}

func (e *Engine) compute(ctx context.Context, a *emission.Artifact) ([]emission.UnlockUSD, error) {
	if a == nil {
		return nil, errors.New("nil artifact")
	}

	var labels []string
	for _, cat := range e.categories {
		labels = append(labels, a.Categories[cat]...)
	}

	now := e.now().Unix()
	unlocks := make(map[int64]decimal.Decimal)
	for _, section := range a.DocumentedData.Data {
		if !slices.Contains(labels, section.Label) {
			continue
		}
		for _, p := range section.Data {
			if p.Timestamp >= now {
				continue
			}
			unlocks[p.Timestamp] = unlocks[p.Timestamp].Add(decimal.NewFromFloat(p.Unlocked))
		}
	}
	if len(unlocks) == 0 {
		return []emission.UnlockUSD{}, nil
	}

	token := a.Metadata.Token
	if token == "" {
		return nil, errNoToken
	}

	timestamps := make([]int64, 0, len(unlocks))
	for ts := range unlocks {
		timestamps = append(timestamps, ts)
	}
	slices.Sort(timestamps)

	priceAt := e.fetchPrices(ctx, token, timestamps)

	chart := make([]emission.UnlockUSD, 0, len(timestamps))
	prev := decimal.Zero
	for _, ts := range timestamps {
		cumulative := unlocks[ts]
		usd := 0.0
		if price, ok := priceAt[ts]; ok {
			usd = cumulative.Sub(prev).Mul(decimal.NewFromFloat(price)).InexactFloat64()
		}
		chart = append(chart, emission.UnlockUSD{Timestamp: strconv.FormatInt(ts, 10), USD: usd})
		prev = cumulative
	}
	return chart, nil
}

// fetchPrices looks up every timestamp concurrently and waits for all of
// them. Timestamps without a price are absent from the result.
func (e *Engine) fetchPrices(ctx context.Context, token string, timestamps []int64) map[int64]float64 {
	var (
		mu      sync.Mutex
		g       errgroup.Group
		results = make(map[int64]float64, len(timestamps))
	)
	for _, ts := range timestamps {
		g.Go(func() error {
			price, ok := e.prices.HistoricalPrice(ctx, token, ts)
			if !ok {
				return nil
			}
			mu.Lock()
			results[ts] = price
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return results
}
