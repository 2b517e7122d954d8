package adapters

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/web3-frozen/unlock-emissions/internal/emission"
)

// document is the wire format served by remote schedule endpoints.
type document struct {
	emission.RawSectionData
	Replaces []string `json:"replaces"`
}

// HTTPSource loads a single protocol schedule from a JSON endpoint.
type HTTPSource struct {
	client *http.Client
	url    string
}

func NewHTTPSource(client *http.Client, url string) *HTTPSource {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &HTTPSource{client: client, url: url}
}

// Loader fetches the document when the adapter is resolved. Replaces is
// only known after the fetch.
func (s *HTTPSource) Loader() Loader {
	return func(ctx context.Context) ([]Definition, error) {
		var doc document
		if err := getJSON(ctx, s.client, s.url, &doc); err != nil {
			return nil, err
		}
		return []Definition{Static(&doc.RawSectionData, doc.Replaces...)}, nil
	}
}

// HTTPList loads several protocol schedules from one JSON array endpoint,
// acting as a factory adapter.
type HTTPList struct {
	client *http.Client
	url    string
}

func NewHTTPList(client *http.Client, url string) *HTTPList {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &HTTPList{client: client, url: url}
}

func (l *HTTPList) Loader() Loader {
	return func(ctx context.Context) ([]Definition, error) {
		var docs []document
		if err := getJSON(ctx, l.client, l.url, &docs); err != nil {
			return nil, err
		}
		defs := make([]Definition, len(docs))
		for i := range docs {
			defs[i] = Static(&docs[i].RawSectionData, docs[i].Replaces...)
		}
		return defs, nil
	}
}

func getJSON(ctx context.Context, client *http.Client, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("fetch %s: status %d", url, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s: %w", url, err)
	}
	return nil
}
