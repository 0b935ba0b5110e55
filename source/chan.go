package source

import (
	"context"
	"errors"
	"io"
	"sync"

	"github.com/celskeggs/sensorwatch/model"
)

var ErrStreamClosed = errors.New("stream closed")

// Item is one element fed into a ChanSource: either a reading, or a terminal error (io.EOF for a normal end).
type Item struct {
	Reading model.Reading
	Err     error
}

// ChanSource serves a single stream from a Go channel. Closing the channel ends the stream normally. It is used
// to drive the render loop from in-process producers and tests.
type ChanSource struct {
	Items   <-chan Item
	OpenErr error

	mu     sync.Mutex
	opened bool
}

func NewChanSource(items <-chan Item) *ChanSource {
	return &ChanSource{
		Items: items,
	}
}

func (s *ChanSource) Open(ctx context.Context) (Stream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.OpenErr != nil {
		return nil, s.OpenErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.opened {
		return nil, errors.New("channel source can only be opened once")
	}
	s.opened = true
	return &chanStream{
		items:  s.Items,
		closed: make(chan struct{}),
	}, nil
}

type chanStream struct {
	items     <-chan Item
	closed    chan struct{}
	closeOnce sync.Once
}

func (c *chanStream) Recv() (model.Reading, error) {
	select {
	case <-c.closed:
		return model.Reading{}, ErrStreamClosed
	default:
	}
	select {
	case item, ok := <-c.items:
		if !ok {
			return model.Reading{}, io.EOF
		}
		if item.Err != nil {
			return model.Reading{}, item.Err
		}
		return item.Reading, nil
	case <-c.closed:
		return model.Reading{}, ErrStreamClosed
	}
}

func (c *chanStream) Close() error {
	c.closeOnce.Do(func() {
		close(c.closed)
	})
	return nil
}
