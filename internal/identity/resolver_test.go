package identity

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/web3-frozen/unlock-emissions/internal/emission"
)

func testRegistry() *Registry {
	return NewRegistry(
		[]Protocol{
			{ID: "p1", Name: "Proto One", GeckoID: "proto-one", Symbol: "ONE"},
			{ID: "p2", Name: "Proto Two", GeckoID: "proto-two", ParentProtocol: "parent#grp"},
			{ID: "p3", Name: "Proto Three", GeckoID: "shared-gecko"},
			{ID: "p4", Name: "Orphan", ParentProtocol: "parent#missing"},
		},
		[]ParentProtocol{
			{ID: "parent#grp", Name: "Group X", GeckoID: "group-x"},
			{ID: "parent#shared", Name: "Shared Parent", GeckoID: "shared-gecko"},
		},
	)
}

func TestResolve(t *testing.T) {
	r := NewResolver(testRegistry(), DefaultGuarded)

	tests := []struct {
		name     string
		adapter  string
		meta     emission.Metadata
		wantKey  string
		wantName string
		wantGeck string
	}{
		{
			name:     "explicit id without parent",
			adapter:  "x",
			meta:     emission.Metadata{ProtocolIDs: []string{"p1"}},
			wantKey:  "p1",
			wantName: "p1",
			wantGeck: "proto-one",
		},
		{
			name:     "explicit id with parent uses parent name",
			adapter:  "y",
			meta:     emission.Metadata{ProtocolIDs: []string{"p2"}},
			wantKey:  "parent#grp",
			wantName: "Group X",
			wantGeck: "proto-two",
		},
		{
			name:     "gecko id matches parent before flat entry",
			adapter:  "z",
			meta:     emission.Metadata{Token: "coingecko:shared-gecko"},
			wantKey:  "parent#shared",
			wantName: "Shared Parent",
			wantGeck: "shared-gecko",
		},
		{
			name:     "gecko id matches flat entry",
			adapter:  "z",
			meta:     emission.Metadata{Token: "coingecko:proto-one"},
			wantKey:  "p1",
			wantName: "p1",
			wantGeck: "proto-one",
		},
		{
			name:     "unknown gecko id becomes the key",
			adapter:  "z",
			meta:     emission.Metadata{Token: "coingecko:unlisted"},
			wantKey:  "unlisted",
			wantName: "unlisted",
		},
		{
			name:     "empty explicit id falls through to gecko id",
			adapter:  "z",
			meta:     emission.Metadata{ProtocolIDs: []string{""}, Token: "coingecko:group-x"},
			wantKey:  "parent#grp",
			wantName: "Group X",
			wantGeck: "group-x",
		},
		{
			name:     "unknown explicit id with gecko token keeps gecko key",
			adapter:  "z",
			meta:     emission.Metadata{ProtocolIDs: []string{"nope"}, Token: "coingecko:proto-one"},
			wantKey:  "proto-one",
			wantName: "proto-one",
		},
		{
			name:     "nothing known falls back to adapter name",
			adapter:  "my-adapter",
			meta:     emission.Metadata{Token: "ethereum:0xabc"},
			wantKey:  "my-adapter",
			wantName: "my-adapter",
		},
		{
			name:     "unknown parent id keeps key as name",
			adapter:  "w",
			meta:     emission.Metadata{ProtocolIDs: []string{"p4"}},
			wantKey:  "parent#missing",
			wantName: "parent#missing",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := r.Resolve(tt.adapter, tt.meta)
			if err != nil {
				t.Fatalf("Resolve error: %v", err)
			}
			if res.CanonicalKey != tt.wantKey {
				t.Errorf("CanonicalKey = %q, want %q", res.CanonicalKey, tt.wantKey)
			}
			if res.Identity.Name != tt.wantName {
				t.Errorf("Name = %q, want %q", res.Identity.Name, tt.wantName)
			}
			if res.Identity.GeckoID != tt.wantGeck {
				t.Errorf("GeckoID = %q, want %q", res.Identity.GeckoID, tt.wantGeck)
			}
		})
	}
}

func TestResolveSymbolOnlyFromFlatMatch(t *testing.T) {
	r := NewResolver(testRegistry(), nil)
	res, err := r.Resolve("x", emission.Metadata{ProtocolIDs: []string{"p1"}})
	if err != nil {
		t.Fatal(err)
	}
	if res.Identity.Symbol != "ONE" {
		t.Errorf("Symbol = %q, want ONE", res.Identity.Symbol)
	}
	res, err = r.Resolve("x", emission.Metadata{Token: "coingecko:group-x"})
	if err != nil {
		t.Fatal(err)
	}
	if res.Identity.Symbol != "" {
		t.Errorf("parent match Symbol = %q, want empty", res.Identity.Symbol)
	}
}

func TestResolveGuardedAdapter(t *testing.T) {
	r := NewResolver(testRegistry(), []string{"daomaker"})

	_, err := r.Resolve("daomaker", emission.Metadata{Token: "ethereum:0xdead"})
	if !errors.Is(err, ErrMissingMetadata) {
		t.Fatalf("err = %v, want ErrMissingMetadata", err)
	}

	// A secondary identifier alone is enough for guarded adapters.
	res, err := r.Resolve("daomaker", emission.Metadata{Token: "coingecko:unlisted"})
	if err != nil {
		t.Fatalf("gecko-only guarded resolve: %v", err)
	}
	if res.CanonicalKey != "unlisted" {
		t.Errorf("CanonicalKey = %q, want unlisted", res.CanonicalKey)
	}

	// Unguarded adapters degrade to their own name.
	res, err = r.Resolve("other", emission.Metadata{Token: "ethereum:0xdead"})
	if err != nil {
		t.Fatalf("unguarded resolve: %v", err)
	}
	if res.CanonicalKey != "other" {
		t.Errorf("CanonicalKey = %q, want other", res.CanonicalKey)
	}
}

func TestGeckoID(t *testing.T) {
	tests := []struct {
		token string
		want  string
	}{
		{"coingecko:uniswap", "uniswap"},
		{"ethereum:0x1f9840a85d5af5bf1d1762f925bdaddc4201f984", ""},
		{"", ""},
		{"coingecko:", ""},
	}
	for _, tt := range tests {
		if got := GeckoID(tt.token); got != tt.want {
			t.Errorf("GeckoID(%q) = %q, want %q", tt.token, got, tt.want)
		}
	}
}

func TestLoadRegistry(t *testing.T) {
	dir := t.TempDir()
	protocols := filepath.Join(dir, "protocols.yaml")
	parents := filepath.Join(dir, "parents.yaml")
	if err := os.WriteFile(protocols, []byte(`
- id: "1"
  name: Uniswap V3
  gecko_id: uniswap
  symbol: UNI
  parentProtocol: parent#uniswap
`), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(parents, []byte(`
- id: parent#uniswap
  name: Uniswap
  gecko_id: uniswap
`), 0o644); err != nil {
		t.Fatal(err)
	}

	reg, err := LoadRegistry(protocols, parents)
	if err != nil {
		t.Fatalf("LoadRegistry: %v", err)
	}
	if reg.Len() != 1 {
		t.Fatalf("Len = %d, want 1", reg.Len())
	}

	res, err := NewResolver(reg, nil).Resolve("uniswap", emission.Metadata{ProtocolIDs: []string{"1"}})
	if err != nil {
		t.Fatal(err)
	}
	if res.Identity.Name != "Uniswap" || res.CanonicalKey != "parent#uniswap" {
		t.Errorf("resolution = %+v", res)
	}

	if _, err := LoadRegistry(filepath.Join(dir, "missing.yaml"), parents); err == nil {
		t.Error("expected error for missing protocols file")
	}
}
