// Package source provides streams of readings from a remote sensor service.
package source

import (
	"context"

	"github.com/celskeggs/sensorwatch/model"
)

// Source opens a stream of readings. Each call to Open starts a new, independent stream.
type Source interface {
	Open(ctx context.Context) (Stream, error)
}

// Stream yields readings in the order the remote side produced them.
//
// Recv blocks until the next reading is available. It returns io.EOF once the remote side has closed the stream
// normally, and any other error if the transport failed. Close releases the connection and makes any pending or
// future Recv return; it may be called from a goroutine other than the one blocked in Recv.
type Stream interface {
	Recv() (model.Reading, error)
	Close() error
}
