package geogrid

import (
	"fmt"

	"github.com/kass/go-geogrid/pkg/models"
)

// Raster is a width x height grid of multi-channel samples, such as a
// decoded heatmap image. Row 0 is the top row.
type Raster interface {
	Width() int
	Height() int
	// Sample returns the channel values of the pixel at (x, y). Only the
	// first channel is used when loading a grid.
	Sample(x, y int) []float64
}

// WithDivisor sets the value the first channel is divided by when loading a
// raster. It defaults to 255.
func WithDivisor(d float64) Option {
	return func(o *options) { o.divisor = d }
}

// WithTransform sets a function applied to every sample after division.
func WithTransform(f func(float64) float64) Option {
	return func(o *options) {
		if f != nil {
			o.transform = f
		}
	}
}

// FromRaster creates a grid over rect with one tile per raster pixel. Image
// rows grow downward while latitude grows upward, so raster row
// height-(y+1) is stored in grid row y.
func FromRaster(rect models.BoundingBox, r Raster, opts ...Option) (*Grid, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if o.divisor == 0 {
		return nil, fmt.Errorf("%w: divisor must be non-zero", ErrConfiguration)
	}

	width, height := r.Width(), r.Height()
	g, err := newGrid(rect, models.GridSize{Cols: width, Rows: height}, o.def)
	if err != nil {
		return nil, err
	}

	for x := 0; x < width; x++ {
		for y := 0; y < height; y++ {
			mapY := height - (y + 1)
			sample := r.Sample(x, mapY)
			if len(sample) == 0 {
				return nil, fmt.Errorf("%w: pixel (%d, %d) has no channels", ErrSourceRead, x, mapY)
			}
			g.SetFromGrid(models.TileIndex{Row: y, Col: x}, o.transform(sample[0]/o.divisor))
		}
	}
	return g, nil
}
