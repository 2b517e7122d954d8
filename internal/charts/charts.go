// Package charts turns raw adapter schedules into the chart series stored in
// emission artifacts.
package charts

import (
	"math"
	"slices"
	"sort"
	"time"

	"github.com/web3-frozen/unlock-emissions/internal/emission"
)

// Shaper implements chart shaping, category breakdowns and server-data
// alignment.
type Shaper struct {
	now func() time.Time
}

func NewShaper() *Shaper {
	return &Shaper{now: time.Now}
}

// Shape builds the realtime and documented chart sections for a protocol.
// Documented sections replace the realtime sections named in replaces; when
// the adapter has no documented schedule, documented is empty.
func (s *Shaper) Shape(_ string, raw *emission.RawSectionData, replaces []string) (realTime, documented []emission.ChartSection, err error) {
	if raw == nil || raw.RawSections == nil {
		return nil, nil, nil
	}

	realTime = make([]emission.ChartSection, 0, len(raw.RawSections))
	for _, sec := range raw.RawSections {
		realTime = append(realTime, shapeSection(sec))
	}

	if len(raw.Documented) == 0 {
		return realTime, []emission.ChartSection{}, nil
	}

	documented = make([]emission.ChartSection, 0, len(realTime)+len(raw.Documented))
	for _, sec := range realTime {
		if slices.Contains(replaces, sec.Label) {
			continue
		}
		documented = append(documented, sec)
	}
	for _, sec := range raw.Documented {
		documented = append(documented, shapeSection(sec))
	}
	return realTime, documented, nil
}

func shapeSection(sec emission.RawSection) emission.ChartSection {
	points := slices.Clone(sec.Points)
	sort.SliceStable(points, func(i, j int) bool { return points[i].Timestamp < points[j].Timestamp })

	data := make([]emission.ChartPoint, 0, len(points))
	var prev float64
	for _, p := range points {
		if n := len(data); n > 0 && data[n-1].Timestamp == p.Timestamp {
			data[n-1].RawEmission += p.Unlocked - prev
			data[n-1].Unlocked = p.Unlocked
			prev = p.Unlocked
			continue
		}
		data = append(data, emission.ChartPoint{
			Timestamp:   p.Timestamp,
			Unlocked:    p.Unlocked,
			RawEmission: p.Unlocked - prev,
		})
		prev = p.Unlocked
	}
	return emission.ChartSection{Label: sec.Label, Data: data}
}

// ServerData aligns every section onto the union of all timestamps,
// carrying the cumulative unlocked amount forward. Sections without data
// are dropped.
func (s *Shaper) ServerData(sections []emission.ChartSection, _ string) ([]emission.ChartSection, error) {
	var timeline []int64
	for _, sec := range sections {
		for _, p := range sec.Data {
			timeline = append(timeline, p.Timestamp)
		}
	}
	slices.Sort(timeline)
	timeline = slices.Compact(timeline)

	out := make([]emission.ChartSection, 0, len(sections))
	for _, sec := range sections {
		if len(sec.Data) == 0 {
			continue
		}
		aligned := make([]emission.ChartPoint, len(timeline))
		var (
			j    int
			curr float64
		)
		for i, ts := range timeline {
			for j < len(sec.Data) && sec.Data[j].Timestamp <= ts {
				curr = sec.Data[j].Unlocked
				j++
			}
			aligned[i] = emission.ChartPoint{Timestamp: ts, Unlocked: curr}
			if i == 0 {
				aligned[i].RawEmission = curr
			} else {
				aligned[i].RawEmission = curr - aligned[i-1].Unlocked
			}
		}
		out = append(out, emission.ChartSection{Label: sec.Label, Data: aligned})
	}
	return out, nil
}

// Categorize computes each category's share of the unlocked supply now and
// at the end of the schedule, in percent.
func (s *Shaper) Categorize(sections []emission.ChartSection, categories map[string][]string) emission.TokenAllocation {
	now := s.now().Unix()
	current := make(map[string]float64, len(categories))
	final := make(map[string]float64, len(categories))

	for category, labels := range categories {
		for _, sec := range sections {
			if !slices.Contains(labels, sec.Label) || len(sec.Data) == 0 {
				continue
			}
			final[category] += sec.Data[len(sec.Data)-1].Unlocked
			current[category] += unlockedAt(sec.Data, now)
		}
	}

	alloc := emission.TokenAllocation{
		Current:  percentages(current),
		Final:    percentages(final),
		Progress: make(map[string]float64, len(final)),
	}
	for category, f := range final {
		if f > 0 {
			alloc.Progress[category] = round2(current[category] / f * 100)
		}
	}
	return alloc
}

func unlockedAt(data []emission.ChartPoint, ts int64) float64 {
	i := sort.Search(len(data), func(i int) bool { return data[i].Timestamp > ts })
	if i == 0 {
		return 0
	}
	return data[i-1].Unlocked
}

func percentages(amounts map[string]float64) map[string]float64 {
	var total float64
	for _, v := range amounts {
		total += v
	}
	out := make(map[string]float64, len(amounts))
	if total <= 0 {
		return out
	}
	for k, v := range amounts {
		out[k] = round2(v / total * 100)
	}
	return out
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
