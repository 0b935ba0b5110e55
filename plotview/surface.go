package plotview

import (
	"fmt"

	"github.com/celskeggs/sensorwatch/model"
	"gonum.org/v1/plot/vg"
)

const (
	DefaultWidth  = 8 * vg.Inch
	DefaultHeight = 6 * vg.Inch
)

var supportedFormats = map[string]bool{
	"png":  true,
	"jpg":  true,
	"jpeg": true,
	"svg":  true,
	"pdf":  true,
	"eps":  true,
	"tif":  true,
	"tiff": true,
}

// FileSurface re-renders the chart into an image file on every update.
type FileSurface struct {
	Path   string
	Width  vg.Length
	Height vg.Length
	Style  Style

	format string
}

func NewFileSurface(path string) (*FileSurface, error) {
	format := FormatOf(path)
	if !supportedFormats[format] {
		return nil, fmt.Errorf("unsupported image format %q for %s", format, path)
	}
	return &FileSurface{
		Path:   path,
		Width:  DefaultWidth,
		Height: DefaultHeight,
		Style:  DefaultStyle(),
		format: format,
	}, nil
}

func (f *FileSurface) Render(points []model.Reading, rng model.ViewRange) error {
	p, err := Build(points, rng, f.Style)
	if err != nil {
		return err
	}
	return SavePlot(p, f.Width, f.Height, f.Path, f.format)
}
