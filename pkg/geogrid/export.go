package geogrid

import (
	"iter"

	"github.com/kass/go-geogrid/pkg/models"
)

// All yields every populated tile anchor and its value in insertion order.
// The tiles are copied when iteration starts, so the grid may be modified
// while iterating.
func (g *Grid) All() iter.Seq2[models.Location, float64] {
	return func(yield func(models.Location, float64) bool) {
		for _, t := range g.snapshot() {
			if !yield(t.Anchor, t.Value) {
				return
			}
		}
	}
}

// Keys yields the anchors of the populated tiles.
func (g *Grid) Keys() iter.Seq[models.Location] {
	return func(yield func(models.Location) bool) {
		for _, t := range g.snapshot() {
			if !yield(t.Anchor) {
				return
			}
		}
	}
}

// Tiles returns a copy of the populated tiles in insertion order.
func (g *Grid) Tiles() []models.Tile {
	return g.snapshot()
}

// IterAsGrid yields the (row, column) index and value of every populated
// tile.
//
// Indexes are computed by truncating (anchor - origin) / tileSize, so an
// anchor that floating-point snapping left just below a tile boundary maps
// to the previous index.
func (g *Grid) IterAsGrid() iter.Seq2[models.TileIndex, float64] {
	return func(yield func(models.TileIndex, float64) bool) {
		for _, t := range g.snapshot() {
			if !yield(g.IndexOf(t.Anchor), t.Value) {
				return
			}
		}
	}
}

// IndexOf returns the (row, column) index for a tile anchor.
func (g *Grid) IndexOf(anchor models.Location) models.TileIndex {
	return models.TileIndex{
		Row: int((anchor.Lat - g.rect.BottomLeft.Lat) / g.tileSize[0]),
		Col: int((anchor.Lon - g.rect.BottomLeft.Lon) / g.tileSize[1]),
	}
}

// Values yields the value of every populated tile in insertion order.
func (g *Grid) Values() iter.Seq[float64] {
	return func(yield func(float64) bool) {
		for _, t := range g.snapshot() {
			if !yield(t.Value) {
				return
			}
		}
	}
}

// ValuesAt yields Get(c) for each coordinate in coords, in order. Passing
// another grid's Keys samples both grids at the same tiles.
func (g *Grid) ValuesAt(coords iter.Seq[models.Location]) iter.Seq[float64] {
	return func(yield func(float64) bool) {
		for c := range coords {
			if !yield(g.Get(c)) {
				return
			}
		}
	}
}
