package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kass/go-geogrid/internal/config"
	"github.com/kass/go-geogrid/internal/logging"
	"github.com/kass/go-geogrid/pkg/geogrid"
	"github.com/kass/go-geogrid/pkg/models"
)

var (
	cfg     *config.Config
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "geogrid",
	Short: "Sparse geographic grids: build, combine and inspect",
	Long: `Build sparse lat/lon grids from raster images, combine them tile by tile,
and export, fit, query, render or store the result.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: setup,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output")
	rootCmd.AddCommand(newCmd, loadCmd, combineCmd, exportCmd, fitCmd, queryCmd, renderCmd, storeCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func setup(cmd *cobra.Command, args []string) error {
	var err error
	cfg, err = config.Load()
	if err != nil {
		return err
	}

	level := cfg.Log.Level
	if verbose {
		level = "debug"
	}
	logging.Setup(level, cfg.Log.Format)
	slog.Debug("configuration loaded", "store_driver", cfg.Store.Driver, "divisor", cfg.Raster.Divisor)
	return nil
}

// parseFloats splits a comma separated list of exactly n numbers.
func parseFloats(s string, n int) ([]float64, error) {
	parts := strings.Split(s, ",")
	if len(parts) != n {
		return nil, fmt.Errorf("expected %d comma separated numbers, got %q", n, s)
	}
	out := make([]float64, n)
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid number %q: %w", p, err)
		}
		out[i] = v
	}
	return out, nil
}

// parseBox reads "lat,lon,lat,lon" as two opposite corners.
func parseBox(s string) (models.BoundingBox, error) {
	v, err := parseFloats(s, 4)
	if err != nil {
		return models.BoundingBox{}, err
	}
	return models.NewBoundingBox(
		models.Location{Lat: v[0], Lon: v[1]},
		models.Location{Lat: v[2], Lon: v[3]},
	), nil
}

func parseLocation(s string) (models.Location, error) {
	v, err := parseFloats(s, 2)
	if err != nil {
		return models.Location{}, err
	}
	return models.Location{Lat: v[0], Lon: v[1]}, nil
}

func loadGrid(path string) (*geogrid.Grid, error) {
	g, err := geogrid.LoadFromFile(path)
	if err != nil {
		return nil, err
	}
	slog.Debug("grid loaded", "path", path, "tiles", g.Len(), "rect", g.Rect().String())
	return g, nil
}

func saveGrid(cmd *cobra.Command, g *geogrid.Grid, path string) error {
	if err := g.SaveToFile(path); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Saved %d tiles to %s\n", g.Len(), path)
	return nil
}
