package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/web3-frozen/unlock-emissions/internal/emission"
	"github.com/web3-frozen/unlock-emissions/internal/futures"
	"github.com/web3-frozen/unlock-emissions/internal/identity"
)

// aggregate resolves the protocol identity and assembles the artifact
// without its valuation.
func (p *Processor) aggregate(ctx context.Context, protocolName string, realTime, documented []emission.ChartSection, raw *emission.RawSectionData) (*emission.Artifact, identity.Resolution, error) {
	res, err := p.Resolver.Resolve(protocolName, raw.Metadata)
	if err != nil {
		return nil, identity.Resolution{}, err
	}
	if res.Match == nil && res.SecondaryID == "" {
		p.Logger.Warn("no registry identity, keying by adapter name", "adapter", protocolName)
	}

	realTimeAlloc := p.Shaper.Categorize(realTime, raw.Categories)
	documentedAlloc := p.Shaper.Categorize(documented, raw.Categories)

	token := raw.Metadata.Token
	a := &emission.Artifact{
		Metadata:   raw.Metadata,
		Name:       res.Identity.Name,
		GeckoID:    res.Identity.GeckoID,
		Categories: raw.Categories,
		Futures:    p.lookupFutures(ctx, protocolName, res.Identity.Symbol),
	}

	if len(documented) > 0 {
		docData, err := p.Shaper.ServerData(documented, token)
		if err != nil {
			return nil, res, fmt.Errorf("documented server data: %w", err)
		}
		rtData, err := p.Shaper.ServerData(realTime, token)
		if err != nil {
			return nil, res, fmt.Errorf("realtime server data: %w", err)
		}
		a.DocumentedData = emission.ChartData{Data: docData, TokenAllocation: documentedAlloc}
		a.RealTimeData = &emission.ChartData{Data: rtData, TokenAllocation: realTimeAlloc}
	} else {
		rtData, err := p.Shaper.ServerData(realTime, token)
		if err != nil {
			return nil, res, fmt.Errorf("realtime server data: %w", err)
		}
		a.DocumentedData = emission.ChartData{Data: rtData, TokenAllocation: realTimeAlloc}
	}

	return a, res, nil
}

// lookupFutures returns nil when there is no symbol or the lookup fails.
func (p *Processor) lookupFutures(ctx context.Context, protocolName, symbol string) *emission.Futures {
	if symbol == "" || p.Futures == nil {
		return nil
	}
	f, err := p.Futures.Lookup(ctx, symbol)
	if errors.Is(err, futures.ErrNoMarket) {
		p.Logger.Debug("no futures market", "adapter", protocolName, "symbol", symbol)
		return nil
	}
	if err != nil {
		p.Logger.Warn("futures lookup failed", "adapter", protocolName, "symbol", symbol, "error", err)
		return nil
	}
	return f
}
