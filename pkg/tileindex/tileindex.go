// Package tileindex provides an R-Tree over the populated tiles of a
// geogrid.Grid for bounding-box and nearest-tile queries.
package tileindex

import (
	"fmt"
	"math"
	"sync"

	"github.com/dhconnelly/rtreego"
	"github.com/kass/go-geogrid/pkg/geogrid"
	"github.com/kass/go-geogrid/pkg/models"
)

const (
	minChildren = 25
	maxChildren = 50
	dimensions  = 2
	earthRadius = 6371.0 // km
)

// spatialTile wraps a tile to implement rtreego.Spatial
type spatialTile struct {
	models.Tile
	rect *rtreego.Rect
}

func (st *spatialTile) Bounds() *rtreego.Rect {
	return st.rect
}

// Index is a thread-safe R-Tree of grid tiles. It reflects the grid at the
// time of the last Build or Rebuild.
type Index struct {
	mu      sync.RWMutex
	tree    *rtreego.Rtree
	latSize float64
	lonSize float64
	count   int
}

// Build indexes every populated tile of g.
func Build(g *geogrid.Grid) (*Index, error) {
	idx := &Index{}
	if err := idx.Rebuild(g); err != nil {
		return nil, err
	}
	return idx, nil
}

// Rebuild replaces the indexed tiles with the current contents of g.
func (idx *Index) Rebuild(g *geogrid.Grid) error {
	latSize, lonSize := g.TileSize()
	tree := rtreego.NewTree(dimensions, minChildren, maxChildren)

	count := 0
	for anchor, value := range g.All() {
		rect, err := rtreego.NewRect(rtreego.Point{anchor.Lat, anchor.Lon}, []float64{latSize, lonSize})
		if err != nil {
			return fmt.Errorf("failed to index tile %s: %w", anchor, err)
		}
		tree.Insert(&spatialTile{models.Tile{Anchor: anchor, Value: value}, rect})
		count++
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.tree = tree
	idx.latSize, idx.lonSize = latSize, lonSize
	idx.count = count
	return nil
}

// Len returns the number of indexed tiles
func (idx *Index) Len() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.count
}

// QueryBox returns the tiles whose extent overlaps the given bounding box
func (idx *Index) QueryBox(box models.BoundingBox) ([]models.Tile, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	box = models.NewBoundingBox(box.BottomLeft, box.TopRight)
	bounds, err := rtreego.NewRect(
		rtreego.Point{box.BottomLeft.Lat, box.BottomLeft.Lon},
		[]float64{box.TopRight.Lat - box.BottomLeft.Lat, box.TopRight.Lon - box.BottomLeft.Lon},
	)
	if err != nil {
		return nil, fmt.Errorf("invalid bounding box: %w", err)
	}

	results := idx.tree.SearchIntersect(bounds)
	tiles := make([]models.Tile, 0, len(results))
	for _, result := range results {
		item, ok := result.(*spatialTile)
		if !ok {
			continue
		}
		// Strict overlap check on the tile extent
		a := item.Anchor
		if a.Lat <= box.TopRight.Lat && a.Lat+idx.latSize >= box.BottomLeft.Lat &&
			a.Lon <= box.TopRight.Lon && a.Lon+idx.lonSize >= box.BottomLeft.Lon {
			tiles = append(tiles, item.Tile)
		}
	}
	return tiles, nil
}

// Nearest returns up to k tiles closest to loc, nearest first
func (idx *Index) Nearest(loc models.Location, k int) []models.Tile {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	if k <= 0 {
		return nil
	}
	results := idx.tree.NearestNeighbors(k, rtreego.Point{loc.Lat, loc.Lon})

	tiles := make([]models.Tile, 0, len(results))
	for _, result := range results {
		if item, ok := result.(*spatialTile); ok {
			tiles = append(tiles, item.Tile)
		}
	}
	return tiles
}

// QueryRadius returns the tiles whose centre lies within radiusKm of
// center along the great circle.
func (idx *Index) QueryRadius(center models.Location, radiusKm float64) ([]models.Tile, error) {
	if radiusKm <= 0 || math.IsNaN(radiusKm) {
		return nil, fmt.Errorf("radius must be positive, got %g", radiusKm)
	}

	// Candidate box in degrees, widened for the tile extent. Longitude
	// degrees shrink towards the poles.
	deg := (radiusKm / earthRadius) * (180 / math.Pi)
	latDeg := deg + idx.latSize
	lonDeg := idx.lonSize + 360
	if c := math.Cos(center.Lat * math.Pi / 180); c > 1e-9 {
		lonDeg = min(deg/c+idx.lonSize, 360)
	}
	candidates, err := idx.QueryBox(models.BoundingBox{
		BottomLeft: models.Location{Lat: center.Lat - latDeg, Lon: center.Lon - lonDeg},
		TopRight:   models.Location{Lat: center.Lat + latDeg, Lon: center.Lon + lonDeg},
	})
	if err != nil {
		return nil, err
	}

	idx.mu.RLock()
	latSize, lonSize := idx.latSize, idx.lonSize
	idx.mu.RUnlock()

	tiles := candidates[:0]
	for _, t := range candidates {
		c := models.Location{Lat: t.Anchor.Lat + latSize/2, Lon: t.Anchor.Lon + lonSize/2}
		if Distance(center, c) <= radiusKm {
			tiles = append(tiles, t)
		}
	}
	return tiles, nil
}

// Distance calculates the Haversine distance between two points in kilometers
func Distance(a, b models.Location) float64 {
	lat1Rad := a.Lat * math.Pi / 180.0
	lat2Rad := b.Lat * math.Pi / 180.0
	dLat := lat2Rad - lat1Rad
	dLon := (b.Lon - a.Lon) * math.Pi / 180.0

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1Rad)*math.Cos(lat2Rad)*
			math.Sin(dLon/2)*math.Sin(dLon/2)

	return 2 * earthRadius * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}
