package adapters

import (
	"context"

	"github.com/web3-frozen/unlock-emissions/internal/emission"
)

// Definition produces the raw emission schedule of a single protocol.
type Definition struct {
	// Replaces lists realtime section labels superseded by the documented
	// schedule.
	Replaces []string
	Load     func(ctx context.Context) (*emission.RawSectionData, error)
}

// Loader resolves an adapter to its protocol definitions. Adapters that
// wrap a single protocol return one definition; factory adapters may return
// many.
type Loader func(ctx context.Context) ([]Definition, error)

// Entry is a named adapter in the registry.
type Entry struct {
	Name string
	Load Loader
}

// Registry is the ordered, static list of adapters. Batch runs address
// adapters by their index in this list.
type Registry []Entry

// Value wraps already-known definitions.
func Value(defs ...Definition) Loader {
	return func(context.Context) ([]Definition, error) {
		return defs, nil
	}
}

// Factory wraps a function that builds definitions on demand.
func Factory(fn func(ctx context.Context) ([]Definition, error)) Loader {
	return Loader(fn)
}

// Static returns a definition that always yields data.
func Static(data *emission.RawSectionData, replaces ...string) Definition {
	return Definition{
		Replaces: replaces,
		Load: func(context.Context) (*emission.RawSectionData, error) {
			return data, nil
		},
	}
}

// Select returns the entries whose index is listed, in registry order.
// Unknown indexes are ignored.
func (r Registry) Select(indexes []int) []Entry {
	want := make(map[int]bool, len(indexes))
	for _, i := range indexes {
		want[i] = true
	}
	selected := make([]Entry, 0, len(indexes))
	for i, e := range r {
		if want[i] {
			selected = append(selected, e)
		}
	}
	return selected
}

// Names returns the adapter names in registry order.
func (r Registry) Names() []string {
	names := make([]string, len(r))
	for i, e := range r {
		names[i] = e.Name
	}
	return names
}
