package models

import "fmt"

// Location represents a geographic location with latitude and longitude
type Location struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Axis returns the coordinate on axis d: 0 is latitude, 1 is longitude.
func (l Location) Axis(d int) float64 {
	if d == 0 {
		return l.Lat
	}
	return l.Lon
}

func (l Location) String() string {
	return fmt.Sprintf("(%g, %g)", l.Lat, l.Lon)
}

// BoundingBox represents a rectangular area defined by two corners
type BoundingBox struct {
	BottomLeft Location `json:"bottom_left"`
	TopRight   Location `json:"top_right"`
}

// NewBoundingBox builds a box from two opposite corners given in any order.
// The result always holds the minimum lat/lon in BottomLeft and the maximum
// in TopRight.
func NewBoundingBox(a, b Location) BoundingBox {
	return BoundingBox{
		BottomLeft: Location{Lat: min(a.Lat, b.Lat), Lon: min(a.Lon, b.Lon)},
		TopRight:   Location{Lat: max(a.Lat, b.Lat), Lon: max(a.Lon, b.Lon)},
	}
}

// Contains reports whether loc lies inside the box, edges included.
func (b BoundingBox) Contains(loc Location) bool {
	return loc.Lat >= b.BottomLeft.Lat && loc.Lat <= b.TopRight.Lat &&
		loc.Lon >= b.BottomLeft.Lon && loc.Lon <= b.TopRight.Lon
}

func (b BoundingBox) String() string {
	return fmt.Sprintf("[%s, %s]", b.BottomLeft, b.TopRight)
}

// GridSize is a grid resolution stored as (columns, rows). The axis order is
// the reverse of Location's (lat, lon).
type GridSize struct {
	Cols int `json:"cols"`
	Rows int `json:"rows"`
}

// Axis returns the grid dimension matched to Location axis d: rows for
// latitude, columns for longitude.
func (s GridSize) Axis(d int) int {
	if d == 0 {
		return s.Rows
	}
	return s.Cols
}

// TileIndex addresses a tile by (row, column) within a grid.
type TileIndex struct {
	Row int `json:"row"`
	Col int `json:"col"`
}

// Tile is a populated grid cell keyed by its lower-corner anchor.
type Tile struct {
	Anchor Location `json:"anchor"`
	Value  float64  `json:"value"`
}
