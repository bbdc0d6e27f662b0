package main

import (
	"fmt"
	"log"
	"math"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/kass/go-geogrid/pkg/geogrid"
	"github.com/kass/go-geogrid/pkg/models"
	"github.com/kass/go-geogrid/pkg/tileindex"
)

// Usage: demo [grid.gob]. Without an argument a synthetic grid is shown.
func main() {
	path := ""
	if len(os.Args) > 1 {
		path = os.Args[1]
	}

	p := tea.NewProgram(initialModel(path), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		log.Fatalf("demo failed: %v", err)
	}
}

type gridLoadedMsg struct {
	source   string
	grid     *geogrid.Grid
	index    *tileindex.Index
	duration time.Duration
}

type errMsg struct{ err error }

func loadGrid(path string) tea.Cmd {
	return func() tea.Msg {
		start := time.Now()

		var (
			g   *geogrid.Grid
			err error
		)
		source := path
		if path == "" {
			source = "synthetic"
			g, err = syntheticGrid()
		} else {
			g, err = geogrid.LoadFromFile(path)
		}
		if err != nil {
			return errMsg{err}
		}

		idx, err := tileindex.Build(g)
		if err != nil {
			return errMsg{fmt.Errorf("failed to index grid: %w", err)}
		}
		return gridLoadedMsg{source: source, grid: g, index: idx, duration: time.Since(start)}
	}
}

// syntheticGrid places two smooth peaks over the US north-east. Values
// below 0.05 are left unset.
func syntheticGrid() (*geogrid.Grid, error) {
	rect := models.NewBoundingBox(
		models.Location{Lat: 38, Lon: -80},
		models.Location{Lat: 46, Lon: -68},
	)
	size := models.GridSize{Cols: 60, Rows: 20}
	g, err := geogrid.New(rect, size)
	if err != nil {
		return nil, err
	}

	peaks := []struct {
		center models.Location
		radius float64
	}{
		{models.Location{Lat: 40.7, Lon: -74.0}, 1.5},
		{models.Location{Lat: 42.4, Lon: -71.1}, 2.5},
	}
	for row := 0; row < size.Rows; row++ {
		for col := 0; col < size.Cols; col++ {
			idx := models.TileIndex{Row: row, Col: col}
			a := g.AnchorOf(idx)
			var v float64
			for _, p := range peaks {
				d2 := (a.Lat-p.center.Lat)*(a.Lat-p.center.Lat) + (a.Lon-p.center.Lon)*(a.Lon-p.center.Lon)
				v += math.Exp(-d2 / (p.radius * p.radius))
			}
			if v >= 0.05 {
				g.SetFromGrid(idx, v)
			}
		}
	}
	return g, nil
}
