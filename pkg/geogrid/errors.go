package geogrid

import "errors"

var (
	// ErrConfiguration is returned when a grid cannot be built from the given
	// rectangle, resolution or loading options.
	ErrConfiguration = errors.New("invalid grid configuration")

	// ErrIncompatibleGrid is returned when two grids with different
	// rectangles are combined.
	ErrIncompatibleGrid = errors.New("incompatible rectangles")

	// ErrSourceRead is returned when a raster source cannot be opened,
	// decoded or sampled.
	ErrSourceRead = errors.New("failed to read raster source")
)
