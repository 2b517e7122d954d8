// Package pipeline turns adapter output into persisted emission artifacts
// and runs batches of adapters.
package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/web3-frozen/unlock-emissions/internal/adapters"
	"github.com/web3-frozen/unlock-emissions/internal/emission"
	"github.com/web3-frozen/unlock-emissions/internal/identity"
	"github.com/web3-frozen/unlock-emissions/internal/slug"
	"github.com/web3-frozen/unlock-emissions/internal/store"
)

const artifactPrefix = "emissions/"

// Shaper builds chart series from raw adapter output.
type Shaper interface {
	Shape(protocolName string, raw *emission.RawSectionData, replaces []string) (realTime, documented []emission.ChartSection, err error)
	ServerData(sections []emission.ChartSection, token string) ([]emission.ChartSection, error)
	Categorize(sections []emission.ChartSection, categories map[string][]string) emission.TokenAllocation
}

// FuturesLookup finds futures-market data for a trading symbol.
type FuturesLookup interface {
	Lookup(ctx context.Context, symbol string) (*emission.Futures, error)
}

// Valuer prices an artifact's incentive unlocks. It must not fail.
type Valuer interface {
	Compute(ctx context.Context, a *emission.Artifact) []emission.UnlockUSD
}

// BlobStore persists artifacts and the protocol index.
type BlobStore interface {
	Put(ctx context.Context, key, body string) error
	Get(ctx context.Context, key string) (store.Object, error)
}

type ProcessorDeps struct {
	Resolver *identity.Resolver
	Shaper   Shaper
	Futures  FuturesLookup // optional
	Valuer   Valuer
	Store    BlobStore
	Logger   *slog.Logger
}

// Processor runs one protocol definition through shaping, identity
// resolution, valuation and persistence.
type Processor struct {
	ProcessorDeps
}

func NewProcessor(deps ProcessorDeps) *Processor {
	return &Processor{ProcessorDeps: deps}
}

// Process stores the artifact for def and returns its slug.
func (p *Processor) Process(ctx context.Context, def adapters.Definition, protocolName string) (string, error) {
	if def.Load == nil {
		return "", ErrNullSections
	}
	raw, err := def.Load(ctx)
	if err != nil {
		return "", fmt.Errorf("load raw sections: %w", err)
	}
	if raw == nil || raw.RawSections == nil {
		return "", ErrNullSections
	}

	realTime, documented, err := p.Shaper.Shape(protocolName, raw, def.Replaces)
	if err != nil {
		return "", fmt.Errorf("shape chart data: %w", err)
	}
	if realTime == nil {
		return "", ErrNullChartData
	}

	artifact, res, err := p.aggregate(ctx, protocolName, realTime, documented, raw)
	if err != nil {
		return "", err
	}

	artifact.UnlockUSDChart = p.Valuer.Compute(ctx, artifact)

	id := slug.Key(res.CanonicalKey)
	body, err := json.Marshal(artifact)
	if err != nil {
		return "", fmt.Errorf("encode artifact %s: %w", id, err)
	}
	if err := p.Store.Put(ctx, artifactPrefix+id, string(body)); err != nil {
		return "", fmt.Errorf("store artifact: %w", err)
	}

	p.Logger.Info("stored emissions", "adapter", protocolName, "slug", id, "name", artifact.Name)
	return id, nil
}
