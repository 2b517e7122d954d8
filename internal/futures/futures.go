// Package futures looks up perpetual futures market data for a token symbol.
package futures

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/web3-frozen/unlock-emissions/internal/emission"
)

// ErrNoMarket is returned when a source lists no futures market for a symbol.
var ErrNoMarket = errors.New("no futures market")

// Source is a single futures data provider.
type Source interface {
	Name() string
	Lookup(ctx context.Context, symbol string) (*emission.Futures, error)
}

// Chain queries sources in order and returns the first result.
type Chain struct {
	sources []Source
	logger  *slog.Logger
}

func NewChain(logger *slog.Logger, sources ...Source) *Chain {
	return &Chain{sources: sources, logger: logger}
}

// Lookup returns nil and the last error when every source fails.
func (c *Chain) Lookup(ctx context.Context, symbol string) (*emission.Futures, error) {
	if symbol == "" {
		return nil, ErrNoMarket
	}
	err := fmt.Errorf("%w for %s", ErrNoMarket, symbol)
	for _, src := range c.sources {
		f, lerr := src.Lookup(ctx, symbol)
		if lerr == nil && f != nil {
			return f, nil
		}
		if lerr != nil {
			err = fmt.Errorf("%s: %w", src.Name(), lerr)
			c.logger.Debug("futures source failed", "source", src.Name(), "symbol", symbol, "error", lerr)
		}
	}
	return nil, err
}
