package geogrid

import (
	"fmt"
	"math"
	"sync"

	"github.com/kass/go-geogrid/pkg/models"
)

const dimensions = 2

// Grid is a sparse geographic grid. It is safe for concurrent use: mutators
// take an exclusive lock and readers share a read lock.
type Grid struct {
	mu sync.RWMutex

	rect     models.BoundingBox
	size     models.GridSize
	tileSize [dimensions]float64
	def      float64

	values map[models.Location]float64
	// order holds tile keys in first-insertion order.
	order []models.Location
}

// Option configures grid construction and raster loading.
type Option func(*options)

type options struct {
	def       float64
	divisor   float64
	transform func(float64) float64
}

func defaultOptions() options {
	return options{
		divisor:   255,
		transform: func(v float64) float64 { return v },
	}
}

// WithDefault sets the value that represents an empty tile. It defaults to 0.
func WithDefault(v float64) Option {
	return func(o *options) { o.def = v }
}

// New creates an empty grid covering rect, cut into size columns and rows.
// The corners of rect may be given in any order.
func New(rect models.BoundingBox, size models.GridSize, opts ...Option) (*Grid, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return newGrid(rect, size, o.def)
}

func newGrid(rect models.BoundingBox, size models.GridSize, def float64) (*Grid, error) {
	if size.Cols <= 0 || size.Rows <= 0 {
		return nil, fmt.Errorf("%w: gridsize must be positive, got %dx%d", ErrConfiguration, size.Cols, size.Rows)
	}

	corners := []models.Location{rect.BottomLeft, rect.TopRight}
	for _, c := range corners {
		for d := 0; d < dimensions; d++ {
			if v := c.Axis(d); math.IsNaN(v) || math.IsInf(v, 0) {
				return nil, fmt.Errorf("%w: rectangle corner %s is not finite", ErrConfiguration, c)
			}
		}
	}

	g := &Grid{
		rect:   models.NewBoundingBox(rect.BottomLeft, rect.TopRight),
		size:   size,
		def:    def,
		values: make(map[models.Location]float64),
	}
	for d := 0; d < dimensions; d++ {
		extent := math.Abs(rect.BottomLeft.Axis(d) - rect.TopRight.Axis(d))
		if extent == 0 {
			return nil, fmt.Errorf("%w: rectangle %s has zero extent on axis %d", ErrConfiguration, rect, d)
		}
		g.tileSize[d] = extent / float64(size.Axis(d))
	}
	return g, nil
}

// Rect returns the normalised rectangle covered by the grid.
func (g *Grid) Rect() models.BoundingBox { return g.rect }

// GridSize returns the grid resolution as (columns, rows).
func (g *Grid) GridSize() models.GridSize { return g.size }

// TileSize returns the width of one tile along latitude and longitude.
func (g *Grid) TileSize() (lat, lon float64) { return g.tileSize[0], g.tileSize[1] }

// Default returns the value reported for unset tiles.
func (g *Grid) Default() float64 { return g.def }

// Len returns the number of populated tiles.
func (g *Grid) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.order)
}

// TileOf returns the anchor of the tile containing coord. The coordinate is
// snapped down to a tile boundary that is phase-aligned with the rectangle's
// origin.
func (g *Grid) TileOf(coord models.Location) models.Location {
	var tile [dimensions]float64
	for d := 0; d < dimensions; d++ {
		c, ts := coord.Axis(d), g.tileSize[d]
		tile[d] = c - floorMod(c, ts) + floorMod(g.rect.BottomLeft.Axis(d), ts)
	}
	return models.Location{Lat: tile[0], Lon: tile[1]}
}

// floorMod is the modulo whose result takes the sign of the divisor.
func floorMod(a, b float64) float64 {
	m := math.Mod(a, b)
	if m != 0 && (m < 0) != (b < 0) {
		m += b
	}
	return m
}

// Set stores value in the tile containing coord. Writing the default value
// does nothing, and in particular does not clear a populated tile.
func (g *Grid) Set(coord models.Location, value float64) {
	if value == g.def {
		return
	}
	key := g.TileOf(coord)

	g.mu.Lock()
	defer g.mu.Unlock()
	g.put(key, value)
}

// put stores value under an already quantized key. Callers hold the write lock.
func (g *Grid) put(key models.Location, value float64) {
	if _, ok := g.values[key]; !ok {
		g.order = append(g.order, key)
	}
	g.values[key] = value
}

// Get returns the value of the tile containing coord, or the default value
// when that tile is unset.
func (g *Grid) Get(coord models.Location) float64 {
	key := g.TileOf(coord)

	g.mu.RLock()
	defer g.mu.RUnlock()
	if v, ok := g.values[key]; ok {
		return v
	}
	return g.def
}

// AnchorOf converts a (row, column) index into the coordinate of that
// tile's anchor.
func (g *Grid) AnchorOf(idx models.TileIndex) models.Location {
	return models.Location{
		Lat: float64(idx.Row)*g.tileSize[0] + g.rect.BottomLeft.Lat,
		Lon: float64(idx.Col)*g.tileSize[1] + g.rect.BottomLeft.Lon,
	}
}

// SetFromGrid sets the tile at a (row, column) index instead of a
// coordinate. It follows the same default-value rule as Set.
func (g *Grid) SetFromGrid(idx models.TileIndex, value float64) {
	g.Set(g.AnchorOf(idx), value)
}

// Clone returns a structural copy of the grid. The copy shares no storage
// with the receiver.
func (g *Grid) Clone() *Grid {
	g.mu.RLock()
	defer g.mu.RUnlock()

	c := &Grid{
		rect:     g.rect,
		size:     g.size,
		tileSize: g.tileSize,
		def:      g.def,
		values:   make(map[models.Location]float64, len(g.values)),
		order:    make([]models.Location, len(g.order)),
	}
	copy(c.order, g.order)
	for k, v := range g.values {
		c.values[k] = v
	}
	return c
}

// Restore builds a grid whose tiles are placed at their recorded anchors
// without re-quantization. Tiles holding the default value are skipped.
// It is used to reload grids that were exported with All.
func Restore(rect models.BoundingBox, size models.GridSize, tiles []models.Tile, opts ...Option) (*Grid, error) {
	g, err := New(rect, size, opts...)
	if err != nil {
		return nil, err
	}
	for _, t := range tiles {
		if t.Value == g.def {
			continue
		}
		g.put(t.Anchor, t.Value)
	}
	return g, nil
}

// snapshot copies the populated tiles in insertion order.
func (g *Grid) snapshot() []models.Tile {
	g.mu.RLock()
	defer g.mu.RUnlock()

	tiles := make([]models.Tile, len(g.order))
	for i, k := range g.order {
		tiles[i] = models.Tile{Anchor: k, Value: g.values[k]}
	}
	return tiles
}
