package model

import (
	"fmt"
	"math"
	"time"
)

const NanosecondsPerSecond = int64(time.Second / time.Nanosecond)

// Timestamp is the wire form of an instant: whole seconds since the Unix epoch plus a non-negative nanosecond
// remainder.
type Timestamp struct {
	Seconds int64 `json:"seconds"`
	Nanos   int32 `json:"nanos"`
}

func TimestampOf(t time.Time) Timestamp {
	ns := t.UnixNano()
	secs, rem := ns/NanosecondsPerSecond, ns%NanosecondsPerSecond
	if rem < 0 {
		secs -= 1
		rem += NanosecondsPerSecond
	}
	return Timestamp{
		Seconds: secs,
		Nanos:   int32(rem),
	}
}

func (ts Timestamp) Valid() bool {
	return ts.Nanos >= 0 && int64(ts.Nanos) < NanosecondsPerSecond
}

func (ts Timestamp) Time() time.Time {
	return time.Unix(ts.Seconds, int64(ts.Nanos)).UTC()
}

func (ts Timestamp) String() string {
	return fmt.Sprintf("[%ds+%09dns]", ts.Seconds, ts.Nanos)
}

// Reading is one timestamped scalar sample. Readings are passed by value and never mutated after the source
// produces them.
type Reading struct {
	Value     float64
	Timestamp time.Time
}

func (r Reading) Finite() bool {
	return !math.IsNaN(r.Value) && !math.IsInf(r.Value, 0)
}

func (r Reading) String() string {
	return fmt.Sprintf("%.2f @ %s", r.Value, r.Timestamp.Format(time.ANSIC))
}

// ViewRange is the padded [Low, High] value interval used to scale the displayed axis.
type ViewRange struct {
	Low  float64
	High float64
}

func (v ViewRange) Width() float64 {
	return v.High - v.Low
}

func (v ViewRange) Contains(value float64) bool {
	return value >= v.Low && value <= v.High
}

func (v ViewRange) String() string {
	return fmt.Sprintf("[%g, %g]", v.Low, v.High)
}
