package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/kass/go-geogrid/pkg/geogrid"
	"github.com/kass/go-geogrid/pkg/models"
)

// GridSpec describes an empty grid in YAML:
//
//	rect: [[40.0, -75.0], [42.0, -73.0]]
//	gridsize: [200, 100]
//	default: 0
type GridSpec struct {
	Rect     [][]float64 `yaml:"rect"`
	GridSize []int       `yaml:"gridsize"`
	Default  float64     `yaml:"default"`
}

// LoadGridSpec reads and checks a grid spec file.
func LoadGridSpec(path string) (*GridSpec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read grid spec: %w", err)
	}

	var spec GridSpec
	if err := yaml.Unmarshal(data, &spec); err != nil {
		return nil, fmt.Errorf("failed to parse grid spec %s: %w", path, err)
	}
	if len(spec.Rect) != 2 || len(spec.Rect[0]) != 2 || len(spec.Rect[1]) != 2 {
		return nil, fmt.Errorf("%w: rect must be two [lat, lon] pairs", geogrid.ErrConfiguration)
	}
	if len(spec.GridSize) != 2 {
		return nil, fmt.Errorf("%w: gridsize must be [cols, rows]", geogrid.ErrConfiguration)
	}
	return &spec, nil
}

func (s *GridSpec) Box() models.BoundingBox {
	return models.NewBoundingBox(
		models.Location{Lat: s.Rect[0][0], Lon: s.Rect[0][1]},
		models.Location{Lat: s.Rect[1][0], Lon: s.Rect[1][1]},
	)
}

func (s *GridSpec) Size() models.GridSize {
	return models.GridSize{Cols: s.GridSize[0], Rows: s.GridSize[1]}
}

// NewGrid creates an empty grid with the described rectangle, size and default.
func (s *GridSpec) NewGrid() (*geogrid.Grid, error) {
	return geogrid.New(s.Box(), s.Size(), geogrid.WithDefault(s.Default))
}
