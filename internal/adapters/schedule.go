package adapters

import (
	"fmt"

	"github.com/web3-frozen/unlock-emissions/internal/emission"
)

const secondsPerDay = 86400

// Cliff unlocks amount at once at start.
func Cliff(label string, start int64, amount float64) emission.RawSection {
	return emission.RawSection{
		Label:  label,
		Points: []emission.Point{{Timestamp: start, Unlocked: amount}},
	}
}

// Linear vests amount evenly between start and end with daily points.
func Linear(label string, start, end int64, amount float64) emission.RawSection {
	if end <= start {
		return Cliff(label, start, amount)
	}
	span := float64(end - start)
	var points []emission.Point
	for ts := start; ts < end; ts += secondsPerDay {
		points = append(points, emission.Point{
			Timestamp: ts,
			Unlocked:  amount * float64(ts-start) / span,
		})
	}
	points = append(points, emission.Point{Timestamp: end, Unlocked: amount})
	return emission.RawSection{Label: label, Points: points}
}

// Step unlocks amount in equal tranches, the first at start and the last
// one interval before end.
func Step(label string, start, end int64, amount float64, steps int) emission.RawSection {
	if steps <= 1 || end <= start {
		return Cliff(label, start, amount)
	}
	interval := (end - start) / int64(steps)
	per := amount / float64(steps)
	points := make([]emission.Point, steps)
	for i := range points {
		points[i] = emission.Point{
			Timestamp: start + int64(i)*interval,
			Unlocked:  per * float64(i+1),
		}
	}
	return emission.RawSection{Label: label, Points: points}
}

// ScheduleSpec declares one section of a manual adapter.
type ScheduleSpec struct {
	Label  string  `yaml:"label"`
	Type   string  `yaml:"type"`
	Start  int64   `yaml:"start"`
	End    int64   `yaml:"end"`
	Amount float64 `yaml:"amount"`
	Steps  int     `yaml:"steps"`
}

// Build turns the declaration into a raw section.
func (s ScheduleSpec) Build() (emission.RawSection, error) {
	switch s.Type {
	case "cliff":
		return Cliff(s.Label, s.Start, s.Amount), nil
	case "linear":
		return Linear(s.Label, s.Start, s.End, s.Amount), nil
	case "step":
		return Step(s.Label, s.Start, s.End, s.Amount, s.Steps), nil
	default:
		return emission.RawSection{}, fmt.Errorf("section %q: unknown schedule type %q", s.Label, s.Type)
	}
}

func buildSections(specs []ScheduleSpec) ([]emission.RawSection, error) {
	if specs == nil {
		return nil, nil
	}
	sections := make([]emission.RawSection, 0, len(specs))
	for _, s := range specs {
		sec, err := s.Build()
		if err != nil {
			return nil, err
		}
		sections = append(sections, sec)
	}
	return sections, nil
}
