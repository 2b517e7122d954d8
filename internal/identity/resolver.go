package identity

import (
	"errors"
	"fmt"
	"strings"

	"github.com/web3-frozen/unlock-emissions/internal/emission"
)

// geckoPrefix marks a CoinGecko id embedded in a token string,
// e.g. "coingecko:uniswap".
const geckoPrefix = "coingecko:"

// ErrMissingMetadata is returned for guarded adapters whose output cannot be
// matched to any registry identity.
var ErrMissingMetadata = errors.New("missing protocol metadata")

// DefaultGuarded lists factory adapters that must always resolve to a
// registry identity.
var DefaultGuarded = []string{"daomaker"}

// Identity is the resolved, reported identity of a protocol.
type Identity struct {
	ID             string
	Name           string
	GeckoID        string
	Symbol         string
	ParentProtocol string
}

// Resolution is the outcome of resolving one adapter output.
type Resolution struct {
	Identity     Identity
	CanonicalKey string
	// Match is the registry entry found, nil when resolution fell back.
	Match       *Protocol
	SecondaryID string
}

// Resolver maps raw adapter metadata to canonical protocol identities.
type Resolver struct {
	reg     *Registry
	guarded map[string]bool
}

func NewResolver(reg *Registry, guarded []string) *Resolver {
	g := make(map[string]bool, len(guarded))
	for _, name := range guarded {
		g[name] = true
	}
	if reg == nil {
		reg = NewRegistry(nil, nil)
	}
	return &Resolver{reg: reg, guarded: g}
}

// Resolve determines the canonical key and display name for a protocol.
func (r *Resolver) Resolve(protocolName string, meta emission.Metadata) (Resolution, error) {
	explicitID := meta.ProtocolID()
	geckoID := GeckoID(meta.Token)

	var match *Protocol
	if explicitID != "" {
		if p, ok := r.reg.protocol(explicitID); ok {
			match = &p
		}
	} else {
		match = r.findByGecko(geckoID)
	}

	if r.guarded[protocolName] && match == nil && geckoID == "" {
		return Resolution{}, fmt.Errorf("%w: no metadata for raw token %q", ErrMissingMetadata, meta.Token)
	}

	key := protocolName
	switch {
	case match != nil && match.ParentProtocol != "":
		key = match.ParentProtocol
	case match != nil && match.ID != "":
		key = match.ID
	case geckoID != "":
		key = geckoID
	}

	id := Identity{ID: key, Name: key}
	if match != nil {
		id.GeckoID = match.GeckoID
		id.Symbol = match.Symbol
		id.ParentProtocol = match.ParentProtocol
		if match.ParentProtocol != "" {
			if parent, ok := r.reg.parent(match.ParentProtocol); ok && parent.Name != "" {
				id.Name = parent.Name
			}
		}
	}

	return Resolution{
		Identity:     id,
		CanonicalKey: key,
		Match:        match,
		SecondaryID:  geckoID,
	}, nil
}

// findByGecko prefers a parent-protocol match over a flat registry match.
func (r *Resolver) findByGecko(geckoID string) *Protocol {
	if geckoID == "" {
		return nil
	}
	if parent, ok := r.reg.parentByGecko(geckoID); ok {
		return &Protocol{
			ID:             parent.ID,
			Name:           parent.Name,
			GeckoID:        parent.GeckoID,
			ParentProtocol: parent.ID,
		}
	}
	if p, ok := r.reg.protocolByGecko(geckoID); ok {
		return &p
	}
	return nil
}

// GeckoID extracts the CoinGecko id from a token string, or "" when the
// token carries none.
func GeckoID(token string) string {
	i := strings.Index(token, geckoPrefix)
	if i < 0 {
		return ""
	}
	return token[i+len(geckoPrefix):]
}
