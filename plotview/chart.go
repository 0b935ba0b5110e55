// Package plotview draws windows of readings as gonum plots.
package plotview

import (
	"image/color"

	"github.com/celskeggs/sensorwatch/model"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
)

type Style struct {
	Title      string
	XLabel     string
	YLabel     string
	TimeFormat string
	Line       draw.LineStyle
}

func DefaultStyle() Style {
	line := plotter.DefaultLineStyle
	line.Width = vg.Points(2)
	line.Color = color.RGBA{B: 255, A: 255}
	return Style{
		Title:      "Live temperature",
		XLabel:     "Time",
		YLabel:     "Temperature (C)",
		TimeFormat: "15:04:05",
		Line:       line,
	}
}

type readingXYs []model.Reading

func (r readingXYs) Len() int {
	return len(r)
}

func (r readingXYs) XY(i int) (x, y float64) {
	return float64(r[i].Timestamp.UnixNano()) / 1e9, r[i].Value
}

// Build lays out points as a single line against wall-clock time, with the value axis fixed to rng.
func Build(points []model.Reading, rng model.ViewRange, style Style) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = style.Title
	p.X.Label.Text = style.XLabel
	p.Y.Label.Text = style.YLabel
	p.X.Tick.Marker = plot.TimeTicks{Format: style.TimeFormat}
	p.Add(plotter.NewGrid())

	if len(points) > 0 {
		line, err := plotter.NewLine(readingXYs(points))
		if err != nil {
			return nil, err
		}
		line.LineStyle = style.Line
		p.Add(line)
	}

	// must come after Add, which widens the axes to the data
	p.Y.Min = rng.Low
	p.Y.Max = rng.High
	return p, nil
}
