package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/web3-frozen/unlock-emissions/internal/adapters"
	"github.com/web3-frozen/unlock-emissions/internal/charts"
	"github.com/web3-frozen/unlock-emissions/internal/emission"
	"github.com/web3-frozen/unlock-emissions/internal/futures"
	"github.com/web3-frozen/unlock-emissions/internal/identity"
	"github.com/web3-frozen/unlock-emissions/internal/store"
)

// memStore is an in-memory BlobStore.
type memStore struct {
	mu      sync.Mutex
	blobs   map[string]string
	puts    []string
	failGet error
}

func newMemStore() *memStore { return &memStore{blobs: map[string]string{}} }

func (m *memStore) Put(_ context.Context, key, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.blobs[key] = body
	m.puts = append(m.puts, key)
	return nil
}

func (m *memStore) Get(_ context.Context, key string) (store.Object, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failGet != nil {
		return store.Object{}, m.failGet
	}
	return store.Object{Key: key, Body: m.blobs[key]}, nil
}

func (m *memStore) body(key string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.blobs[key]
	return b, ok
}

type fixedValuer struct{ chart []emission.UnlockUSD }

func (f fixedValuer) Compute(context.Context, *emission.Artifact) []emission.UnlockUSD {
	return f.chart
}

type stubFutures struct{}

func (stubFutures) Lookup(_ context.Context, symbol string) (*emission.Futures, error) {
	if symbol == "ONE" {
		return &emission.Futures{Symbol: "ONEUSDT", OpenInterest: 1e6, Source: "stub", FetchedAt: time.Unix(0, 0)}, nil
	}
	return nil, futures.ErrNoMarket
}

func testResolver() *identity.Resolver {
	reg := identity.NewRegistry(
		[]identity.Protocol{
			{ID: "p1", Name: "Proto One", GeckoID: "proto-one", Symbol: "ONE"},
			{ID: "p2", Name: "Proto Two", GeckoID: "proto-two", ParentProtocol: "parent#grp"},
		},
		[]identity.ParentProtocol{
			{ID: "parent#grp", Name: "Group X", GeckoID: "group-x"},
		},
	)
	return identity.NewResolver(reg, identity.DefaultGuarded)
}

func newTestProcessor(s BlobStore, v Valuer) *Processor {
	return NewProcessor(ProcessorDeps{
		Resolver: testResolver(),
		Shaper:   charts.NewShaper(),
		Futures:  stubFutures{},
		Valuer:   v,
		Store:    s,
		Logger:   slog.Default(),
	})
}

func rawData(meta emission.Metadata) *emission.RawSectionData {
	return &emission.RawSectionData{
		Metadata:   meta,
		Categories: map[string][]string{"farming": {"LM"}, "insiders": {"Team"}},
		RawSections: []emission.RawSection{
			{Label: "LM", Points: []emission.Point{{Timestamp: 100, Unlocked: 10}, {Timestamp: 200, Unlocked: 20}}},
			{Label: "Team", Points: []emission.Point{{Timestamp: 150, Unlocked: 5}}},
		},
	}
}

func decodeArtifact(t *testing.T, s *memStore, key string) map[string]json.RawMessage {
	t.Helper()
	body, ok := s.body(key)
	if !ok {
		t.Fatalf("no artifact stored under %s", key)
	}
	var a map[string]json.RawMessage
	if err := json.Unmarshal([]byte(body), &a); err != nil {
		t.Fatalf("decode artifact: %v", err)
	}
	return a
}

func TestProcessExplicitID(t *testing.T) {
	s := newMemStore()
	p := newTestProcessor(s, fixedValuer{})

	id, err := p.Process(context.Background(), adapters.Static(rawData(emission.Metadata{
		Token:       "coingecko:proto-one",
		ProtocolIDs: []string{"p1"},
	})), "x")
	if err != nil {
		t.Fatalf("Process error: %v", err)
	}
	if id != "p1" {
		t.Errorf("slug = %q, want p1", id)
	}

	a := decodeArtifact(t, s, "emissions/p1")
	var name string
	_ = json.Unmarshal(a["name"], &name)
	if name != "p1" {
		t.Errorf("name = %q, want p1", name)
	}
	if _, ok := a["realTimeData"]; ok {
		t.Error("realTimeData should be absent without a documented schedule")
	}
	if string(a["unlockUsdChart"]) != "[]" {
		t.Errorf("unlockUsdChart = %s, want []", a["unlockUsdChart"])
	}
	if _, ok := a["futures"]; !ok {
		t.Error("futures should be attached for a match with a symbol")
	}
}

func TestProcessParentConsolidation(t *testing.T) {
	s := newMemStore()
	p := newTestProcessor(s, fixedValuer{})

	id, err := p.Process(context.Background(), adapters.Static(rawData(emission.Metadata{
		ProtocolIDs: []string{"p2"},
	})), "y")
	if err != nil {
		t.Fatalf("Process error: %v", err)
	}
	if id != "grp" {
		t.Errorf("slug = %q, want grp", id)
	}

	a := decodeArtifact(t, s, "emissions/grp")
	var name string
	_ = json.Unmarshal(a["name"], &name)
	if name != "Group X" {
		t.Errorf("name = %q, want Group X", name)
	}
	if _, ok := a["futures"]; ok {
		t.Error("futures should be absent without a symbol")
	}
}

func TestProcessGuardedWithoutMetadata(t *testing.T) {
	s := newMemStore()
	p := newTestProcessor(s, fixedValuer{})

	_, err := p.Process(context.Background(), adapters.Static(rawData(emission.Metadata{Token: "0xabc"})), "daomaker")
	if !errors.Is(err, identity.ErrMissingMetadata) {
		t.Fatalf("err = %v, want ErrMissingMetadata", err)
	}
	if len(s.puts) != 0 {
		t.Errorf("puts = %v, want none", s.puts)
	}
}

func TestProcessNullSections(t *testing.T) {
	s := newMemStore()
	p := newTestProcessor(s, fixedValuer{})

	tests := []struct {
		name string
		def  adapters.Definition
	}{
		{"nil data", adapters.Static(nil)},
		{"nil sections", adapters.Static(&emission.RawSectionData{})},
		{"nil loader", adapters.Definition{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := p.Process(context.Background(), tt.def, "x"); !errors.Is(err, ErrNullSections) {
				t.Errorf("err = %v, want ErrNullSections", err)
			}
		})
	}
}

func TestProcessDocumented(t *testing.T) {
	s := newMemStore()
	p := newTestProcessor(s, fixedValuer{chart: []emission.UnlockUSD{{Timestamp: "100", USD: 5}}})

	raw := rawData(emission.Metadata{Token: "coingecko:unlisted"})
	raw.Documented = []emission.RawSection{
		{Label: "LM", Points: []emission.Point{{Timestamp: 100, Unlocked: 50}}},
	}
	id, err := p.Process(context.Background(), adapters.Static(raw, "LM"), "z")
	if err != nil {
		t.Fatalf("Process error: %v", err)
	}
	if id != "unlisted" {
		t.Errorf("slug = %q, want gecko id fallback", id)
	}

	a := decodeArtifact(t, s, "emissions/unlisted")
	if _, ok := a["realTimeData"]; !ok {
		t.Error("realTimeData should be present with a documented schedule")
	}
	if string(a["unlockUsdChart"]) != `[["100",5]]` {
		t.Errorf("unlockUsdChart = %s", a["unlockUsdChart"])
	}
}

func TestProcessLoadError(t *testing.T) {
	p := newTestProcessor(newMemStore(), fixedValuer{})
	def := adapters.Definition{Load: func(context.Context) (*emission.RawSectionData, error) {
		return nil, errors.New("upstream down")
	}}
	if _, err := p.Process(context.Background(), def, "x"); err == nil {
		t.Error("expected error")
	}
}

// emptyShaper produces no chart data for any input.
type emptyShaper struct{ *charts.Shaper }

func (emptyShaper) Shape(string, *emission.RawSectionData, []string) (realTime, documented []emission.ChartSection, err error) {
	return nil, nil, nil
}

func TestProcessNullChartData(t *testing.T) {
	s := newMemStore()
	p := NewProcessor(ProcessorDeps{
		Resolver: testResolver(),
		Shaper:   emptyShaper{charts.NewShaper()},
		Valuer:   fixedValuer{},
		Store:    s,
		Logger:   slog.Default(),
	})

	_, err := p.Process(context.Background(), adapters.Static(rawData(emission.Metadata{ProtocolIDs: []string{"p1"}})), "x")
	if !errors.Is(err, ErrNullChartData) {
		t.Fatalf("err = %v, want ErrNullChartData", err)
	}
	if len(s.puts) != 0 {
		t.Errorf("puts = %v, want none", s.puts)
	}
}
