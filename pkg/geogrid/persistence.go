package geogrid

import (
	"encoding/gob"
	"fmt"
	"io"
	"os"

	"github.com/kass/go-geogrid/pkg/models"
)

// GridData represents the serializable form of a grid
type GridData struct {
	Rect    models.BoundingBox `json:"rect"`
	Size    models.GridSize    `json:"gridsize"`
	Default float64            `json:"default"`
	Tiles   []models.Tile      `json:"tiles"`
}

// Data returns the serializable form of the grid.
func (g *Grid) Data() GridData {
	return GridData{
		Rect:    g.rect,
		Size:    g.size,
		Default: g.def,
		Tiles:   g.snapshot(),
	}
}

// FromData rebuilds a grid from its serializable form.
func FromData(data GridData) (*Grid, error) {
	return Restore(data.Rect, data.Size, data.Tiles, WithDefault(data.Default))
}

// Encode writes the grid to w using gob encoding
func (g *Grid) Encode(w io.Writer) error {
	if err := gob.NewEncoder(w).Encode(g.Data()); err != nil {
		return fmt.Errorf("failed to encode grid: %w", err)
	}
	return nil
}

// Decode reads a grid written by Encode
func Decode(r io.Reader) (*Grid, error) {
	var data GridData
	if err := gob.NewDecoder(r).Decode(&data); err != nil {
		return nil, fmt.Errorf("failed to decode grid: %w", err)
	}
	return FromData(data)
}

// SaveToFile saves the grid to a binary file
func (g *Grid) SaveToFile(filename string) error {
	file, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer file.Close()

	if err := g.Encode(file); err != nil {
		return err
	}
	return file.Close()
}

// LoadFromFile loads a grid from a binary file
func LoadFromFile(filename string) (*Grid, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	return Decode(file)
}
