package valuation

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/web3-frozen/unlock-emissions/internal/emission"
)

type mapLookup struct {
	mu     sync.Mutex
	prices map[int64]float64
	calls  []int64
}

func (m *mapLookup) HistoricalPrice(_ context.Context, _ string, ts int64) (float64, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, ts)
	p, ok := m.prices[ts]
	return p, ok
}

func testArtifact() *emission.Artifact {
	return &emission.Artifact{
		Name:     "proto",
		Metadata: emission.Metadata{Token: "coingecko:proto"},
		Categories: map[string][]string{
			"farming":  {"LM"},
			"airdrop":  {"Drop"},
			"insiders": {"Team"},
		},
		DocumentedData: emission.ChartData{
			Data: []emission.ChartSection{
				{Label: "LM", Data: []emission.ChartPoint{
					{Timestamp: 100, Unlocked: 10},
					{Timestamp: 200, Unlocked: 30},
					{Timestamp: 300, Unlocked: 60},
					{Timestamp: 5000, Unlocked: 1000},
				}},
				{Label: "Drop", Data: []emission.ChartPoint{
					{Timestamp: 200, Unlocked: 5},
					{Timestamp: 300, Unlocked: 5},
				}},
				{Label: "Team", Data: []emission.ChartPoint{
					{Timestamp: 100, Unlocked: 999},
				}},
			},
		},
	}
}

func fixedClock() time.Time { return time.Unix(1000, 0) }

func TestComputeDeltas(t *testing.T) {
	lookup := &mapLookup{prices: map[int64]float64{100: 2, 200: 1, 300: 0.5}}
	e := NewEngine(lookup, slog.Default(), WithClock(fixedClock))

	got := e.Compute(context.Background(), testArtifact())

	// cumulative: 100→10, 200→35, 300→65 (Team excluded, 5000 is in the future)
	want := []emission.UnlockUSD{
		{Timestamp: "100", USD: 20},
		{Timestamp: "200", USD: 25},
		{Timestamp: "300", USD: 15},
	}
	if len(got) != len(want) {
		t.Fatalf("len = %d, want %d: %+v", len(got), len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("chart[%d] = %+v, want %+v", i, got[i], want[i])
		}
	}
	if len(lookup.calls) != 3 {
		t.Errorf("price lookups = %d, want one per distinct past timestamp (3)", len(lookup.calls))
	}
}

func TestComputeMissingPricesAreZero(t *testing.T) {
	lookup := &mapLookup{prices: map[int64]float64{300: 2}}
	e := NewEngine(lookup, slog.Default(), WithClock(fixedClock))

	got := e.Compute(context.Background(), testArtifact())
	if len(got) != 3 {
		t.Fatalf("len = %d, want 3", len(got))
	}
	if got[0].USD != 0 || got[1].USD != 0 {
		t.Errorf("missing prices should value to 0: %+v", got)
	}
	// delta at 300 is still measured against 200's cumulative amount
	if got[2].USD != 60 {
		t.Errorf("chart[2].USD = %v, want 60", got[2].USD)
	}
}

func TestComputeNoToken(t *testing.T) {
	a := testArtifact()
	a.Metadata.Token = ""
	e := NewEngine(&mapLookup{}, slog.Default(), WithClock(fixedClock))

	got := e.Compute(context.Background(), a)
	if got == nil || len(got) != 0 {
		t.Errorf("Compute without token = %#v, want empty non-nil slice", got)
	}
}

func TestComputeNoIncentiveSeries(t *testing.T) {
	a := testArtifact()
	a.Categories = map[string][]string{"insiders": {"Team"}}
	lookup := &mapLookup{}
	e := NewEngine(lookup, slog.Default(), WithClock(fixedClock))

	if got := e.Compute(context.Background(), a); len(got) != 0 {
		t.Errorf("Compute = %+v, want empty", got)
	}
	if len(lookup.calls) != 0 {
		t.Error("no prices should be fetched without incentive series")
	}
}

type noPriceLookup struct{}

func (noPriceLookup) HistoricalPrice(context.Context, string, int64) (float64, bool) {
	return 0, false
}

func TestComputeNilArtifact(t *testing.T) {
	e := NewEngine(noPriceLookup{}, slog.Default())
	if got := e.Compute(context.Background(), nil); len(got) != 0 {
		t.Errorf("Compute(nil) = %+v, want empty", got)
	}
}

func TestWithCategories(t *testing.T) {
	lookup := &mapLookup{prices: map[int64]float64{100: 1}}
	e := NewEngine(lookup, slog.Default(), WithClock(fixedClock), WithCategories("insiders"))

	got := e.Compute(context.Background(), testArtifact())
	if len(got) != 1 || got[0].USD != 999 {
		t.Errorf("Compute = %+v, want [[100 999]]", got)
	}
}
