// Package render draws geogrid heatmaps with gonum/plot.
package render

import (
	"fmt"
	"math"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/kass/go-geogrid/pkg/geogrid"
	"github.com/kass/go-geogrid/pkg/models"
)

const paletteSize = 64

// Options controls heatmap output.
type Options struct {
	Title  string
	Width  vg.Length
	Height vg.Length
}

// GridXYZ adapts a grid to plotter.GridXYZ. Columns run along longitude
// and rows along latitude; unset tiles report the grid's default value.
type GridXYZ struct {
	g       *geogrid.Grid
	size    models.GridSize
	origin  models.Location
	latSize float64
	lonSize float64
}

// NewGridXYZ wraps g.
func NewGridXYZ(g *geogrid.Grid) *GridXYZ {
	latSize, lonSize := g.TileSize()
	return &GridXYZ{
		g:       g,
		size:    g.GridSize(),
		origin:  g.Rect().BottomLeft,
		latSize: latSize,
		lonSize: lonSize,
	}
}

func (x *GridXYZ) Dims() (c, r int) { return x.size.Cols, x.size.Rows }
func (x *GridXYZ) X(c int) float64  { return x.origin.Lon + (float64(c)+0.5)*x.lonSize }
func (x *GridXYZ) Y(r int) float64  { return x.origin.Lat + (float64(r)+0.5)*x.latSize }

func (x *GridXYZ) Z(c, r int) float64 {
	return x.g.Get(x.g.AnchorOf(models.TileIndex{Row: r, Col: c}))
}

// Heatmap renders g to path. The image format follows the file extension
// (png, svg, pdf, ...).
func Heatmap(g *geogrid.Grid, path string, opts Options) error {
	if size := g.GridSize(); size.Cols < 2 || size.Rows < 2 {
		return fmt.Errorf("heatmap needs at least 2x2 tiles, got %dx%d", size.Cols, size.Rows)
	}
	if opts.Width == 0 {
		opts.Width = 6 * vg.Inch
	}
	if opts.Height == 0 {
		opts.Height = 6 * vg.Inch
	}

	data := NewGridXYZ(g)
	hm := plotter.NewHeatMap(data, palette.Heat(paletteSize, 1))
	if hm.Min == hm.Max || math.IsInf(hm.Max-hm.Min, 0) {
		// A flat grid would divide by a zero range when picking colours.
		hm.Max = hm.Min + 1
	}

	p := plot.New()
	p.Title.Text = opts.Title
	p.X.Label.Text = "Longitude"
	p.Y.Label.Text = "Latitude"
	p.Add(hm)

	if err := p.Save(opts.Width, opts.Height, path); err != nil {
		return fmt.Errorf("save heatmap: %w", err)
	}
	return nil
}
