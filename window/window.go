// Package window keeps the most recent readings of a stream in a fixed-capacity FIFO.
package window

import (
	"github.com/celskeggs/sensorwatch/model"
	"github.com/gammazero/deque"
)

const DefaultCapacity = 60

// Buffer holds at most Cap() readings in arrival order. It is not safe for concurrent use; the render loop is its
// only reader and writer.
type Buffer struct {
	capacity int
	readings deque.Deque[model.Reading]
}

func New(capacity int) *Buffer {
	if capacity < 1 {
		panic("window capacity must be at least one")
	}
	return &Buffer{
		capacity: capacity,
	}
}

// Append adds r at the tail, evicting the single oldest reading if the buffer would otherwise exceed capacity.
func (b *Buffer) Append(r model.Reading) {
	b.readings.PushBack(r)
	if b.readings.Len() > b.capacity {
		b.readings.PopFront()
	}
	if b.readings.Len() > b.capacity {
		panic("window capacity invariant violated")
	}
}

// Snapshot returns a copy of the buffered readings, oldest first.
func (b *Buffer) Snapshot() []model.Reading {
	out := make([]model.Reading, b.readings.Len())
	for i := range out {
		out[i] = b.readings.At(i)
	}
	return out
}

func (b *Buffer) Latest() (model.Reading, bool) {
	if b.readings.Len() == 0 {
		return model.Reading{}, false
	}
	return b.readings.Back(), true
}

func (b *Buffer) Len() int {
	return b.readings.Len()
}

func (b *Buffer) Cap() int {
	return b.capacity
}

func (b *Buffer) Clear() {
	b.readings.Clear()
}
