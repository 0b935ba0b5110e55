// Package monitor runs the render loop that moves readings from a stream onto a rendering surface.
//
// The stream is consumed by a producer goroutine that may block on the network for as long as it likes; it hands
// each reading over a bounded channel. The render loop itself only ever polls that channel, once per tick, so the
// refresh cadence never waits on network I/O.
package monitor

import (
	"context"
	"errors"
	"io"
	"log"
	"sync"
	"time"

	"github.com/celskeggs/sensorwatch/model"
	"github.com/celskeggs/sensorwatch/scale"
	"github.com/celskeggs/sensorwatch/source"
	"github.com/celskeggs/sensorwatch/window"
	"github.com/hashicorp/go-multierror"
)

const (
	DefaultTickInterval = 100 * time.Millisecond
	DefaultQueueSize    = 256
)

// Surface draws a window of readings, oldest first, with its value axis scaled to rng. Render is called from the
// render loop's goroutine and must not retain points past the call unless it copies them.
type Surface interface {
	Render(points []model.Reading, rng model.ViewRange) error
}

type SurfaceFunc func(points []model.Reading, rng model.ViewRange) error

func (f SurfaceFunc) Render(points []model.Reading, rng model.ViewRange) error {
	return f(points, rng)
}

type Options struct {
	// Capacity of the sliding window; defaults to window.DefaultCapacity.
	Capacity int
	// TickInterval is the render cadence; defaults to DefaultTickInterval.
	TickInterval time.Duration
	// QueueSize bounds the handoff channel between producer and render loop. A full channel blocks the producer,
	// never the render loop.
	QueueSize int
	// MaxDrainPerTick caps how many queued readings one tick consumes; zero drains everything queued.
	MaxDrainPerTick int
	// Scaler defaults to scale.Default.
	Scaler *scale.Scaler
	// OnTransition, if set, is called synchronously on every state change.
	OnTransition func(from, to State)
}

// Loop is a single run of the monitor. It is not reusable: once stopped, a new Loop must be created to reconnect.
type Loop struct {
	source  source.Source
	surface Surface
	opts    Options

	mu    sync.Mutex
	state State
	ran   bool
}

func New(src source.Source, surface Surface, opts Options) *Loop {
	if opts.Capacity <= 0 {
		opts.Capacity = window.DefaultCapacity
	}
	if opts.TickInterval <= 0 {
		opts.TickInterval = DefaultTickInterval
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = DefaultQueueSize
	}
	if opts.Scaler == nil {
		s := scale.Default
		opts.Scaler = &s
	}
	return &Loop{
		source:  src,
		surface: surface,
		opts:    opts,
		state:   Connecting,
	}
}

func (l *Loop) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

func (l *Loop) transition(to State) {
	l.mu.Lock()
	from := l.state
	if !canTransition(from, to) {
		l.mu.Unlock()
		panic("invalid render loop transition from " + from.String() + " to " + to.String())
	}
	l.state = to
	l.mu.Unlock()

	log.Printf("Render loop: %v -> %v", from, to)
	if l.opts.OnTransition != nil {
		l.opts.OnTransition(from, to)
	}
}

// producer blocks on the stream and forwards every reading to queue, in order, until the stream ends.
type producer struct {
	stream source.Stream
	queue  chan model.Reading
	stop   chan struct{}
	done   chan struct{}

	// only valid once done is closed
	err      error
	received int
}

func (p *producer) run() {
	defer close(p.done)
	for {
		r, err := p.stream.Recv()
		if err != nil {
			p.err = err
			return
		}
		select {
		case p.queue <- r:
			p.received++
		case <-p.stop:
			p.err = source.ErrStreamClosed
			return
		}
	}
}

func (p *producer) finished() bool {
	select {
	case <-p.done:
		return true
	default:
		return false
	}
}

// Run connects, streams until end-of-stream, failure, or cancellation of ctx, and releases everything it acquired
// before returning. End-of-stream and cancellation return nil.
func (l *Loop) Run(ctx context.Context) error {
	l.mu.Lock()
	if l.ran {
		l.mu.Unlock()
		return ErrAlreadyRun
	}
	l.ran = true
	l.mu.Unlock()

	log.Printf("Render loop: connecting...")
	stream, err := l.source.Open(ctx)
	if err != nil {
		cerr := &ConnectionError{Err: err}
		l.transition(Error)
		log.Printf("Render loop: %v", cerr)
		l.transition(Stopped)
		return cerr
	}
	l.transition(Streaming)

	buffer := window.New(l.opts.Capacity)
	p := &producer{
		stream: stream,
		queue:  make(chan model.Reading, l.opts.QueueSize),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
	go p.run()

	ticker := time.NewTicker(l.opts.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Printf("Render loop: shutdown requested")
			return l.shutdown(nil, p)
		case <-ticker.C:
			ended, err := l.tick(buffer, p)
			if err != nil {
				return l.shutdown(err, p)
			}
			if ended {
				if errors.Is(p.err, io.EOF) {
					log.Printf("Render loop: stream ended after %d readings", p.received)
					return l.shutdown(nil, p)
				}
				return l.shutdown(&StreamReadError{Err: p.err, Received: p.received}, p)
			}
		}
	}
}

// tick drains the handoff queue into the window and renders once if anything arrived. It reports whether the
// producer has exited and every reading it produced has been consumed.
func (l *Loop) tick(buffer *window.Buffer, p *producer) (ended bool, err error) {
	// checked before draining, so that a finished producer cannot have readings still in flight
	producerDone := p.finished()

	appended := 0
drain:
	for l.opts.MaxDrainPerTick <= 0 || appended < l.opts.MaxDrainPerTick {
		select {
		case r := <-p.queue:
			buffer.Append(r)
			appended++
		default:
			break drain
		}
	}

	if appended > 0 {
		snapshot := buffer.Snapshot()
		if err := l.surface.Render(snapshot, l.opts.Scaler.Range(snapshot)); err != nil {
			return false, &RenderError{Err: err}
		}
	}
	return producerDone && len(p.queue) == 0, nil
}

// shutdown moves to Draining (cause == nil) or Error, stops the producer, closes the stream, and stops.
func (l *Loop) shutdown(cause error, p *producer) error {
	if cause == nil {
		l.transition(Draining)
	} else {
		l.transition(Error)
		log.Printf("Render loop: %v", cause)
	}

	close(p.stop)
	closeErr := p.stream.Close()
	<-p.done
	if closeErr != nil {
		log.Printf("Render loop: error while closing stream: %v", closeErr)
	}

	l.transition(Stopped)
	return combineErrors(cause, closeErr)
}

func combineErrors(errors ...error) (err error) {
	for _, e := range errors {
		switch {
		case e == nil:
			// ignore
		case err == nil:
			err = e
		default:
			err = multierror.Append(err, e)
		}
	}
	return err
}
