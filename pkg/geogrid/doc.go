// Package geogrid implements a sparse geographic grid: a two-dimensional
// histogram over an axis-aligned latitude/longitude rectangle.
//
// The rectangle is cut into GridSize.Rows bins along latitude and
// GridSize.Cols bins along longitude. Every coordinate lookup is snapped to
// the anchor (lower corner) of the tile that contains it, and only tiles
// whose value differs from the grid's default are stored.
//
// Writing the default value is a no-op rather than a delete: once a tile
// holds a non-default value it keeps it until another non-default write
// replaces it.
//
// Grids sharing the same rectangle can be combined element-wise with Add,
// Sub, Mul, Div and Pow. The result is a new grid seeded from the receiver;
// only tiles populated in both operands change, and tiles populated only in
// the argument are not introduced.
package geogrid
