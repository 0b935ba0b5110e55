package monitor

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/celskeggs/sensorwatch/model"
	"github.com/celskeggs/sensorwatch/source"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testTick = 2 * time.Millisecond

type render struct {
	points []model.Reading
	rng    model.ViewRange
	state  State
}

type recordingSurface struct {
	mu      sync.Mutex
	loop    *Loop
	renders []render
	fail    error
}

func (s *recordingSurface) Render(points []model.Reading, rng model.ViewRange) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	state := Connecting
	if s.loop != nil {
		state = s.loop.State()
	}
	s.renders = append(s.renders, render{
		points: append([]model.Reading(nil), points...),
		rng:    rng,
		state:  state,
	})
	return s.fail
}

func (s *recordingSurface) all() []render {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]render(nil), s.renders...)
}

func (s *recordingSurface) last(t *testing.T) render {
	all := s.all()
	require.NotEmpty(t, all, "expected at least one render")
	return all[len(all)-1]
}

type transitions struct {
	mu    sync.Mutex
	steps [][2]State
}

func (tr *transitions) record(from, to State) {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	tr.steps = append(tr.steps, [2]State{from, to})
}

func (tr *transitions) get() [][2]State {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	return append([][2]State(nil), tr.steps...)
}

func feed(values ...float64) chan source.Item {
	items := make(chan source.Item, len(values))
	base := time.Unix(1700000000, 0)
	for i, v := range values {
		items <- source.Item{Reading: model.Reading{Value: v, Timestamp: base.Add(time.Duration(i) * time.Second)}}
	}
	return items
}

func newLoop(src source.Source, surface *recordingSurface, tr *transitions, opts Options) *Loop {
	if opts.TickInterval == 0 {
		opts.TickInterval = testTick
	}
	if tr != nil {
		opts.OnTransition = tr.record
	}
	l := New(src, surface, opts)
	surface.loop = l
	return l
}

func pointValues(points []model.Reading) []float64 {
	out := make([]float64, len(points))
	for i, p := range points {
		out[i] = p.Value
	}
	return out
}

func runWithTimeout(t *testing.T, ctx context.Context, l *Loop) error {
	result := make(chan error, 1)
	go func() {
		result <- l.Run(ctx)
	}()
	select {
	case err := <-result:
		return err
	case <-time.After(5 * time.Second):
		t.Fatal("render loop did not stop")
		return nil
	}
}

func TestScenarioEvictsOldest(t *testing.T) {
	items := feed(10, 11, 12, 13)
	close(items)
	surface := &recordingSurface{}
	l := newLoop(source.NewChanSource(items), surface, nil, Options{Capacity: 3})

	require.NoError(t, runWithTimeout(t, context.Background(), l))
	assert.Equal(t, []float64{11, 12, 13}, pointValues(surface.last(t).points))
	assert.Equal(t, Stopped, l.State())
}

func TestScenarioSingleReading(t *testing.T) {
	items := feed(25.0)
	close(items)
	surface := &recordingSurface{}
	l := newLoop(source.NewChanSource(items), surface, nil, Options{Capacity: 60})

	require.NoError(t, runWithTimeout(t, context.Background(), l))
	rng := surface.last(t).rng
	assert.InDelta(t, 24.5, rng.Low, 1e-9)
	assert.InDelta(t, 25.5, rng.High, 1e-9)
}

func TestScenarioProportionalRange(t *testing.T) {
	items := feed(10, 20)
	close(items)
	surface := &recordingSurface{}
	l := newLoop(source.NewChanSource(items), surface, nil, Options{})

	require.NoError(t, runWithTimeout(t, context.Background(), l))
	rng := surface.last(t).rng
	assert.InDelta(t, 9.0, rng.Low, 1e-9)
	assert.InDelta(t, 21.0, rng.High, 1e-9)
}

func TestEndOfStreamDrainsAndStops(t *testing.T) {
	items := make(chan source.Item)
	surface := &recordingSurface{}
	tr := &transitions{}
	l := newLoop(source.NewChanSource(items), surface, tr, Options{})

	result := make(chan error, 1)
	go func() {
		result <- l.Run(context.Background())
	}()
	base := time.Unix(1700000000, 0)
	for i := 0; i < 5; i++ {
		items <- source.Item{Reading: model.Reading{Value: float64(i), Timestamp: base.Add(time.Duration(i) * time.Second)}}
	}
	close(items)

	select {
	case err := <-result:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("render loop did not stop")
	}

	assert.Equal(t, [][2]State{
		{Connecting, Streaming},
		{Streaming, Draining},
		{Draining, Stopped},
	}, tr.get())
	assert.Equal(t, []float64{0, 1, 2, 3, 4}, pointValues(surface.last(t).points))

	rendered := len(surface.all())
	for _, r := range surface.all() {
		assert.Equal(t, Streaming, r.state)
	}
	time.Sleep(10 * testTick)
	assert.Equal(t, rendered, len(surface.all()), "no renders after stopping")
}

func TestOrderPreserved(t *testing.T) {
	for _, maxDrain := range []int{0, 1, 3} {
		items := make(chan source.Item)
		surface := &recordingSurface{}
		l := newLoop(source.NewChanSource(items), surface, nil, Options{
			Capacity:        20,
			QueueSize:       8,
			MaxDrainPerTick: maxDrain,
		})

		go func() {
			r := rand.New(rand.NewSource(int64(maxDrain)))
			base := time.Unix(1700000000, 0)
			for i := 0; i < 300; i++ {
				items <- source.Item{Reading: model.Reading{
					Value:     r.Float64(),
					Timestamp: base.Add(time.Duration(i) * time.Millisecond),
				}}
				if r.Intn(10) == 0 {
					time.Sleep(time.Millisecond)
				}
			}
			close(items)
		}()

		require.NoError(t, runWithTimeout(t, context.Background(), l))
		renders := surface.all()
		require.NotEmpty(t, renders)
		for _, rd := range renders {
			for i := 1; i < len(rd.points); i++ {
				require.True(t, rd.points[i].Timestamp.After(rd.points[i-1].Timestamp),
					"timestamps out of order with maxDrain=%d", maxDrain)
			}
		}
		final := surface.last(t).points
		require.Len(t, final, 20)
		assert.Equal(t, time.Unix(1700000000, 0).Add(299*time.Millisecond), final[19].Timestamp)
	}
}

func TestCappedDrainConsumesEverything(t *testing.T) {
	values := make([]float64, 50)
	for i := range values {
		values[i] = float64(i)
	}
	items := feed(values...)
	close(items)
	surface := &recordingSurface{}
	l := newLoop(source.NewChanSource(items), surface, nil, Options{Capacity: 100, MaxDrainPerTick: 4})

	require.NoError(t, runWithTimeout(t, context.Background(), l))
	assert.Equal(t, values, pointValues(surface.last(t).points))
	renders := surface.all()
	previous := 0
	for _, rd := range renders {
		assert.LessOrEqual(t, len(rd.points)-previous, 4)
		previous = len(rd.points)
	}
	assert.GreaterOrEqual(t, len(renders), 50/4)
}

func TestConnectionError(t *testing.T) {
	refused := errors.New("connection refused")
	src := &source.ChanSource{OpenErr: refused}
	surface := &recordingSurface{}
	tr := &transitions{}
	l := newLoop(src, surface, tr, Options{})

	err := runWithTimeout(t, context.Background(), l)
	var cerr *ConnectionError
	require.True(t, errors.As(err, &cerr))
	assert.ErrorIs(t, err, refused)
	assert.Equal(t, [][2]State{
		{Connecting, Error},
		{Error, Stopped},
	}, tr.get())
	assert.Empty(t, surface.all())
}

func TestStreamReadError(t *testing.T) {
	lost := errors.New("connection reset")
	items := make(chan source.Item, 4)
	for i, v := range []float64{1, 2, 3} {
		items <- source.Item{Reading: model.Reading{Value: v, Timestamp: time.Unix(int64(i), 0)}}
	}
	items <- source.Item{Err: lost}
	surface := &recordingSurface{}
	tr := &transitions{}
	l := newLoop(source.NewChanSource(items), surface, tr, Options{})

	err := runWithTimeout(t, context.Background(), l)
	var serr *StreamReadError
	require.True(t, errors.As(err, &serr))
	assert.ErrorIs(t, err, lost)
	assert.Equal(t, 3, serr.Received)
	assert.Equal(t, []float64{1, 2, 3}, pointValues(surface.last(t).points))
	assert.Equal(t, [][2]State{
		{Connecting, Streaming},
		{Streaming, Error},
		{Error, Stopped},
	}, tr.get())
}

func TestCancellation(t *testing.T) {
	items := make(chan source.Item, 2)
	items <- source.Item{Reading: model.Reading{Value: 1, Timestamp: time.Unix(1, 0)}}
	surface := &recordingSurface{}
	tr := &transitions{}
	l := newLoop(source.NewChanSource(items), surface, tr, Options{})

	ctx, cancel := context.WithCancel(context.Background())
	result := make(chan error, 1)
	go func() {
		result <- l.Run(ctx)
	}()
	require.Eventually(t, func() bool {
		return len(surface.all()) > 0
	}, 5*time.Second, testTick)
	cancel()

	select {
	case err := <-result:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("render loop did not stop after cancellation")
	}
	assert.Equal(t, [][2]State{
		{Connecting, Streaming},
		{Streaming, Draining},
		{Draining, Stopped},
	}, tr.get())
}

func TestIdleTicksDoNotRender(t *testing.T) {
	items := make(chan source.Item)
	surface := &recordingSurface{}
	l := newLoop(source.NewChanSource(items), surface, nil, Options{})

	ctx, cancel := context.WithTimeout(context.Background(), 20*testTick)
	defer cancel()
	require.NoError(t, runWithTimeout(t, ctx, l))
	assert.Empty(t, surface.all())
}

func TestRenderError(t *testing.T) {
	broken := errors.New("surface gone")
	items := feed(1, 2)
	surface := &recordingSurface{fail: broken}
	l := newLoop(source.NewChanSource(items), surface, nil, Options{})

	err := runWithTimeout(t, context.Background(), l)
	var rerr *RenderError
	require.True(t, errors.As(err, &rerr))
	assert.ErrorIs(t, err, broken)
	assert.Equal(t, Stopped, l.State())
}

func TestRunOnlyOnce(t *testing.T) {
	items := feed()
	close(items)
	l := newLoop(source.NewChanSource(items), &recordingSurface{}, nil, Options{})
	require.NoError(t, runWithTimeout(t, context.Background(), l))
	assert.ErrorIs(t, l.Run(context.Background()), ErrAlreadyRun)
}

func TestSurfaceFunc(t *testing.T) {
	var got model.ViewRange
	s := SurfaceFunc(func(points []model.Reading, rng model.ViewRange) error {
		got = rng
		return nil
	})
	require.NoError(t, s.Render(nil, model.ViewRange{Low: 1, High: 2}))
	assert.Equal(t, model.ViewRange{Low: 1, High: 2}, got)
}
