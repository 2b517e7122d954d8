package adapters

import (
	"fmt"
	"net/http"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/web3-frozen/unlock-emissions/internal/emission"
)

// Adapter kinds supported by the manifest.
const (
	KindManual   = "manual"
	KindHTTP     = "http"
	KindHTTPList = "http-list"
)

// Manifest is the YAML file listing every adapter. Entry order is the
// registry index.
type Manifest struct {
	Adapters []ManifestEntry `yaml:"adapters"`
}

type ManifestEntry struct {
	Name     string          `yaml:"name"`
	Kind     string          `yaml:"kind"`
	URL      string          `yaml:"url"`
	Protocol *ManualProtocol `yaml:"protocol"`
}

// ManualProtocol is a schedule declared inline in the manifest.
type ManualProtocol struct {
	Metadata   emission.Metadata   `yaml:"metadata"`
	Categories map[string][]string `yaml:"categories"`
	Sections   []ScheduleSpec      `yaml:"sections"`
	Documented []ScheduleSpec      `yaml:"documented"`
	Replaces   []string            `yaml:"replaces"`
}

// LoadManifest reads a manifest file and builds the adapter registry.
func LoadManifest(path string, client *http.Client) (Registry, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	var m Manifest
	if err := yaml.Unmarshal(b, &m); err != nil {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}
	return m.Registry(client)
}

// Registry validates every entry and builds their loaders.
func (m Manifest) Registry(client *http.Client) (Registry, error) {
	reg := make(Registry, 0, len(m.Adapters))
	seen := make(map[string]bool, len(m.Adapters))
	for i, e := range m.Adapters {
		if e.Name == "" {
			return nil, fmt.Errorf("adapter %d: name is required", i)
		}
		if seen[e.Name] {
			return nil, fmt.Errorf("adapter %q: duplicate name", e.Name)
		}
		seen[e.Name] = true

		loader, err := e.loader(client)
		if err != nil {
			return nil, fmt.Errorf("adapter %q: %w", e.Name, err)
		}
		reg = append(reg, Entry{Name: e.Name, Load: loader})
	}
	return reg, nil
}

func (e ManifestEntry) loader(client *http.Client) (Loader, error) {
	switch e.Kind {
	case KindManual:
		if e.Protocol == nil {
			return nil, fmt.Errorf("manual adapter needs a protocol block")
		}
		data, err := e.Protocol.build()
		if err != nil {
			return nil, err
		}
		return Value(Static(data, e.Protocol.Replaces...)), nil
	case KindHTTP:
		if e.URL == "" {
			return nil, fmt.Errorf("http adapter needs a url")
		}
		return NewHTTPSource(client, e.URL).Loader(), nil
	case KindHTTPList:
		if e.URL == "" {
			return nil, fmt.Errorf("http-list adapter needs a url")
		}
		return NewHTTPList(client, e.URL).Loader(), nil
	default:
		return nil, fmt.Errorf("unknown adapter kind %q", e.Kind)
	}
}

func (p *ManualProtocol) build() (*emission.RawSectionData, error) {
	sections, err := buildSections(p.Sections)
	if err != nil {
		return nil, err
	}
	if sections == nil {
		sections = []emission.RawSection{}
	}
	documented, err := buildSections(p.Documented)
	if err != nil {
		return nil, err
	}
	return &emission.RawSectionData{
		Metadata:    p.Metadata,
		Categories:  p.Categories,
		RawSections: sections,
		Documented:  documented,
	}, nil
}
