// Package gioview shows the live chart in a desktop window.
package gioview

import (
	"errors"
	"fmt"
	"image"
	"image/png"
	"log"
	"os"
	"path"
	"sync"
	"time"

	"gioui.org/app"
	"gioui.org/io/key"
	"gioui.org/io/system"
	"gioui.org/layout"
	"gioui.org/op"
	"gioui.org/op/clip"
	"gioui.org/op/paint"
	"gioui.org/unit"
	"github.com/celskeggs/sensorwatch/model"
	"github.com/celskeggs/sensorwatch/plotview"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"
)

var ErrWindowClosed = errors.New("window closed")

// Window implements the render loop's surface. Images are generated on the caller's goroutine and handed to the
// UI goroutine, which only ever paints the most recent one.
type Window struct {
	Title     string
	DPI       int
	ExportDir string
	Style     plotview.Style

	ready  chan image.Image
	closed chan struct{}

	mu    sync.Mutex
	win   *app.Window
	plot  *plot.Plot
	size  image.Point
	busy  bool
	image image.Image
}

func New(title string, exportDir string) *Window {
	return &Window{
		Title:     title,
		DPI:       128,
		ExportDir: exportDir,
		Style:     plotview.DefaultStyle(),
		ready:     make(chan image.Image, 1),
		closed:    make(chan struct{}),
		size:      image.Point{X: 1024, Y: 768},
	}
}

func (w *Window) genImage(p *plot.Plot, size image.Point) image.Image {
	wAdjusted := vg.Points(float64(size.X) * vg.Inch.Points() / float64(w.DPI))
	hAdjusted := vg.Points(float64(size.Y) * vg.Inch.Points() / float64(w.DPI))
	c := vgimg.NewWith(vgimg.UseWH(wAdjusted, hAdjusted), vgimg.UseDPI(w.DPI))
	p.Draw(draw.New(c))
	return c.Image()
}

// offer replaces any image the UI goroutine has not yet picked up.
func (w *Window) offer(img image.Image) {
	select {
	case <-w.ready:
	default:
	}
	select {
	case w.ready <- img:
	default:
	}
	w.mu.Lock()
	win := w.win
	w.mu.Unlock()
	if win != nil {
		win.Invalidate()
	}
}

func (w *Window) Render(points []model.Reading, rng model.ViewRange) error {
	select {
	case <-w.closed:
		return ErrWindowClosed
	default:
	}
	p, err := plotview.Build(points, rng, w.Style)
	if err != nil {
		return err
	}
	w.mu.Lock()
	w.plot = p
	size := w.size
	w.mu.Unlock()

	w.offer(w.genImage(p, size))
	return nil
}

// resized regenerates the current plot at a new size in the background.
func (w *Window) resized(size image.Point) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if size == w.size || w.busy || w.plot == nil {
		return
	}
	w.size = size
	w.busy = true
	p := w.plot
	go func() {
		img := w.genImage(p, size)
		w.mu.Lock()
		w.busy = false
		w.mu.Unlock()
		w.offer(img)
	}()
}

func (w *Window) layout(gtx layout.Context) layout.Dimensions {
	defer op.Save(gtx.Ops).Load()

	size := gtx.Constraints.Max
	w.resized(size)
	if w.image != nil {
		clip.Rect{Max: size}.Add(gtx.Ops)
		paint.NewImageOp(w.image).Add(gtx.Ops)
		paint.PaintOp{}.Add(gtx.Ops)
	}
	return layout.Dimensions{Size: size}
}

func (w *Window) Export() error {
	if w.ExportDir == "" || w.image == nil {
		return nil
	}
	filepath := path.Join(w.ExportDir, fmt.Sprintf("monitor-%s.png", time.Now().Format("20060102-150405")))
	f, err := os.Create(filepath)
	if err != nil {
		return err
	}
	if err := png.Encode(f, w.image); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	log.Printf("Image exported to %s", filepath)
	return nil
}

// Run opens the window and processes its events until the user closes it, at which point onClose is called.
// Main must be running on the main goroutine for the window to appear.
func (w *Window) Run(onClose func()) {
	win := app.NewWindow(
		app.Title(w.Title),
		app.Size(
			unit.Px(1024),
			unit.Px(768),
		),
	)
	w.mu.Lock()
	w.win = win
	w.mu.Unlock()

	defer func() {
		close(w.closed)
		if onClose != nil {
			onClose()
		}
	}()

	for {
		select {
		case img := <-w.ready:
			w.image = img
			win.Invalidate()
		case e := <-win.Events():
			switch e := e.(type) {
			case system.FrameEvent:
				ops := new(op.Ops)
				gtx := layout.NewContext(ops, e)
				layout.UniformInset(unit.Dp(30)).Layout(gtx, w.layout)
				e.Frame(ops)

			case key.Event:
				switch e.Name {
				case "Q", key.NameEscape:
					win.Close()
				case "E":
					if e.State == key.Press {
						if err := w.Export(); err != nil {
							log.Printf("Export failed: %v", err)
						}
					}
				}

			case system.DestroyEvent:
				if e.Err != nil {
					log.Printf("Window error: %v", e.Err)
				}
				return
			}
		}
	}
}

// Close asks the window to close; Run returns once it has.
func (w *Window) Close() {
	w.mu.Lock()
	win := w.win
	w.mu.Unlock()
	if win != nil {
		win.Close()
	}
}

// Main hands the main goroutine to the windowing system. It never returns.
func Main() {
	app.Main()
}
