// Package scale computes the padded value range for displaying a window of readings.
package scale

import (
	"math"

	"github.com/celskeggs/sensorwatch/model"
)

const (
	DefaultFloor    = 0.5
	DefaultFraction = 0.1
)

// Scaler pads the [min, max] of a snapshot by max(Floor, (max-min)*Fraction) on each side. Floor must be
// positive so that the result never has zero height.
type Scaler struct {
	Floor    float64
	Fraction float64
}

var Default = Scaler{
	Floor:    DefaultFloor,
	Fraction: DefaultFraction,
}

// Range applies the default scaler.
func Range(snapshot []model.Reading) model.ViewRange {
	return Default.Range(snapshot)
}

// Empty is the range shown before any reading has arrived.
func (s Scaler) Empty() model.ViewRange {
	return model.ViewRange{
		Low:  -s.Floor,
		High: s.Floor,
	}
}

func (s Scaler) Range(snapshot []model.Reading) model.ViewRange {
	switch len(snapshot) {
	case 0:
		return s.Empty()
	case 1:
		v := snapshot[0].Value
		return model.ViewRange{
			Low:  v - s.Floor,
			High: v + s.Floor,
		}
	}
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, r := range snapshot {
		lo = math.Min(lo, r.Value)
		hi = math.Max(hi, r.Value)
	}
	margin := math.Max(s.Floor, (hi-lo)*s.Fraction)
	return model.ViewRange{
		Low:  lo - margin,
		High: hi + margin,
	}
}
