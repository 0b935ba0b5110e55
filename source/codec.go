package source

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"

	"github.com/celskeggs/sensorwatch/model"
)

// ErrEndMarker is returned by Decode for the zero-length payload that marks the end of a stream.
var ErrEndMarker = errors.New("end-of-stream marker")

type wireReading struct {
	Value     *float64         `json:"value"`
	Timestamp *model.Timestamp `json:"timestamp"`
}

func Encode(r model.Reading) ([]byte, error) {
	if !r.Finite() {
		return nil, fmt.Errorf("cannot encode non-finite value %v", r.Value)
	}
	ts := model.TimestampOf(r.Timestamp)
	return json.Marshal(wireReading{
		Value:     &r.Value,
		Timestamp: &ts,
	})
}

// EndMarker is the payload published to close a stream.
func EndMarker() []byte {
	return []byte{}
}

func Decode(payload []byte) (model.Reading, error) {
	if len(payload) == 0 {
		return model.Reading{}, ErrEndMarker
	}
	var w wireReading
	if err := json.Unmarshal(payload, &w); err != nil {
		return model.Reading{}, fmt.Errorf("invalid reading payload: %w", err)
	}
	if w.Value == nil {
		return model.Reading{}, errors.New("reading payload has no value")
	}
	if math.IsNaN(*w.Value) || math.IsInf(*w.Value, 0) {
		return model.Reading{}, fmt.Errorf("reading payload has non-finite value %v", *w.Value)
	}
	if w.Timestamp == nil {
		return model.Reading{}, errors.New("reading payload has no timestamp")
	}
	if !w.Timestamp.Valid() {
		return model.Reading{}, fmt.Errorf("reading payload has invalid timestamp %v", *w.Timestamp)
	}
	return model.Reading{
		Value:     *w.Value,
		Timestamp: w.Timestamp.Time(),
	}, nil
}
