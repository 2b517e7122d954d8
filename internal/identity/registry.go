package identity

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Protocol is an entry in the flat protocol registry.
type Protocol struct {
	ID             string `yaml:"id" json:"id"`
	Name           string `yaml:"name" json:"name"`
	GeckoID        string `yaml:"gecko_id" json:"gecko_id"`
	Symbol         string `yaml:"symbol" json:"symbol"`
	ParentProtocol string `yaml:"parentProtocol" json:"parentProtocol"`
}

// ParentProtocol groups several registry entries under one reported identity.
type ParentProtocol struct {
	ID      string `yaml:"id" json:"id"`
	Name    string `yaml:"name" json:"name"`
	GeckoID string `yaml:"gecko_id" json:"gecko_id"`
}

// Registry is the read-only reference data used for identity resolution.
// It must not be mutated after NewRegistry returns.
type Registry struct {
	protocols []Protocol
	parents   []ParentProtocol

	byID           map[string]*Protocol
	byGecko        map[string]*Protocol
	parentByID     map[string]*ParentProtocol
	parentsByGecko map[string]*ParentProtocol
}

// NewRegistry indexes the given tables. When ids or gecko ids repeat, the
// first entry wins.
func NewRegistry(protocols []Protocol, parents []ParentProtocol) *Registry {
	r := &Registry{
		protocols:      append([]Protocol(nil), protocols...),
		parents:        append([]ParentProtocol(nil), parents...),
		byID:           make(map[string]*Protocol, len(protocols)),
		byGecko:        make(map[string]*Protocol, len(protocols)),
		parentByID:     make(map[string]*ParentProtocol, len(parents)),
		parentsByGecko: make(map[string]*ParentProtocol, len(parents)),
	}
	for i := range r.protocols {
		p := &r.protocols[i]
		if _, ok := r.byID[p.ID]; !ok {
			r.byID[p.ID] = p
		}
		if p.GeckoID == "" {
			continue
		}
		if _, ok := r.byGecko[p.GeckoID]; !ok {
			r.byGecko[p.GeckoID] = p
		}
	}
	for i := range r.parents {
		p := &r.parents[i]
		if _, ok := r.parentByID[p.ID]; !ok {
			r.parentByID[p.ID] = p
		}
		if p.GeckoID == "" {
			continue
		}
		if _, ok := r.parentsByGecko[p.GeckoID]; !ok {
			r.parentsByGecko[p.GeckoID] = p
		}
	}
	return r
}

// LoadRegistry reads the protocol and parent-protocol tables from YAML files.
func LoadRegistry(protocolsPath, parentsPath string) (*Registry, error) {
	var protocols []Protocol
	if err := readYAML(protocolsPath, &protocols); err != nil {
		return nil, fmt.Errorf("load protocols: %w", err)
	}
	var parents []ParentProtocol
	if err := readYAML(parentsPath, &parents); err != nil {
		return nil, fmt.Errorf("load parent protocols: %w", err)
	}
	return NewRegistry(protocols, parents), nil
}

func readYAML(path string, out any) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(b, out)
}

// Len returns the number of flat registry entries.
func (r *Registry) Len() int { return len(r.protocols) }

func (r *Registry) protocol(id string) (Protocol, bool) {
	p, ok := r.byID[id]
	if !ok {
		return Protocol{}, false
	}
	return *p, true
}

func (r *Registry) protocolByGecko(geckoID string) (Protocol, bool) {
	p, ok := r.byGecko[geckoID]
	if !ok {
		return Protocol{}, false
	}
	return *p, true
}

func (r *Registry) parent(id string) (ParentProtocol, bool) {
	p, ok := r.parentByID[id]
	if !ok {
		return ParentProtocol{}, false
	}
	return *p, true
}

func (r *Registry) parentByGecko(geckoID string) (ParentProtocol, bool) {
	p, ok := r.parentsByGecko[geckoID]
	if !ok {
		return ParentProtocol{}, false
	}
	return *p, true
}
