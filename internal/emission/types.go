package emission

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// Metadata describes the token a schedule belongs to.
type Metadata struct {
	Token       string   `json:"token" yaml:"token"`
	ProtocolIDs []string `json:"protocolIds" yaml:"protocolIds"`
	Sources     []string `json:"sources,omitempty" yaml:"sources"`
	Notes       []string `json:"notes,omitempty" yaml:"notes"`
	Chain       string   `json:"chain,omitempty" yaml:"chain"`
}

// ProtocolID returns the first explicit protocol id, or "" if none is set.
func (m Metadata) ProtocolID() string {
	if len(m.ProtocolIDs) == 0 {
		return ""
	}
	return m.ProtocolIDs[0]
}

// Point is the cumulative amount unlocked at a unix timestamp (seconds).
type Point struct {
	Timestamp int64   `json:"timestamp"`
	Unlocked  float64 `json:"unlocked"`
}

// RawSection is one labelled schedule produced by an adapter.
type RawSection struct {
	Label  string  `json:"label"`
	Points []Point `json:"points"`
}

// RawSectionData is everything an adapter definition yields.
type RawSectionData struct {
	Metadata    Metadata            `json:"metadata"`
	Categories  map[string][]string `json:"categories"`
	RawSections []RawSection        `json:"rawSections"`
	Documented  []RawSection        `json:"documented,omitempty"`
}

// ChartPoint is a shaped series entry. RawEmission is the amount newly
// unlocked since the previous point.
type ChartPoint struct {
	Timestamp   int64   `json:"timestamp"`
	Unlocked    float64 `json:"unlocked"`
	RawEmission float64 `json:"rawEmission"`
}

// ChartSection is a named unlock time series.
type ChartSection struct {
	Label string       `json:"label"`
	Data  []ChartPoint `json:"data"`
}

// TokenAllocation is the percentage share of each category, now and at the
// end of the schedule.
type TokenAllocation struct {
	Current  map[string]float64 `json:"current"`
	Final    map[string]float64 `json:"final"`
	Progress map[string]float64 `json:"progress"`
}

// ChartData is one shaped chart variant with its allocation breakdown.
type ChartData struct {
	Data            []ChartSection  `json:"data"`
	TokenAllocation TokenAllocation `json:"tokenAllocation"`
}

// Futures is the futures-market snapshot attached to an artifact.
type Futures struct {
	Symbol       string    `json:"symbol"`
	OpenInterest float64   `json:"openInterest"`
	FundingRate  float64   `json:"fundingRate"`
	Source       string    `json:"source"`
	FetchedAt    time.Time `json:"fetchedAt"`
}

// Artifact is the persisted per-protocol document.
type Artifact struct {
	RealTimeData   *ChartData          `json:"realTimeData,omitempty"`
	DocumentedData ChartData           `json:"documentedData"`
	Metadata       Metadata            `json:"metadata"`
	Name           string              `json:"name"`
	GeckoID        string              `json:"gecko_id,omitempty"`
	Futures        *Futures            `json:"futures,omitempty"`
	Categories     map[string][]string `json:"categories"`
	UnlockUSDChart []UnlockUSD         `json:"unlockUsdChart"`
}

// MarshalJSON keeps unlockUsdChart an array even when no valuation exists.
func (a Artifact) MarshalJSON() ([]byte, error) {
	type plain Artifact
	p := plain(a)
	if p.UnlockUSDChart == nil {
		p.UnlockUSDChart = []UnlockUSD{}
	}
	return json.Marshal(p)
}

// UnlockUSD is the USD value of tokens unlocked at a timestamp. It encodes as
// the pair ["<timestamp>", <usd>].
type UnlockUSD struct {
	Timestamp string
	USD       float64
}

func (u UnlockUSD) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]any{u.Timestamp, u.USD})
}

func (u *UnlockUSD) UnmarshalJSON(b []byte) error {
	var pair []json.RawMessage
	if err := json.Unmarshal(b, &pair); err != nil {
		return err
	}
	if len(pair) != 2 {
		return fmt.Errorf("unlock usd entry: want 2 elements, got %d", len(pair))
	}
	var ts string
	if err := json.Unmarshal(pair[0], &ts); err != nil {
		var n int64
		if err := json.Unmarshal(pair[0], &n); err != nil {
			return fmt.Errorf("unlock usd timestamp: %w", err)
		}
		ts = strconv.FormatInt(n, 10)
	}
	var usd float64
	if err := json.Unmarshal(pair[1], &usd); err != nil {
		return fmt.Errorf("unlock usd value: %w", err)
	}
	u.Timestamp, u.USD = ts, usd
	return nil
}
