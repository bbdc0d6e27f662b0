package main

import (
	"encoding/csv"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"time"

	"github.com/spf13/cobra"
	"gonum.org/v1/plot/vg"

	"github.com/kass/go-geogrid/internal/config"
	"github.com/kass/go-geogrid/internal/fit"
	"github.com/kass/go-geogrid/pkg/geogrid"
	"github.com/kass/go-geogrid/pkg/models"
	"github.com/kass/go-geogrid/pkg/render"
	"github.com/kass/go-geogrid/pkg/tileindex"
)

var transforms = map[string]func(float64) float64{
	"none":  func(v float64) float64 { return v },
	"log":   math.Log,
	"log1p": math.Log1p,
	"sqrt":  math.Sqrt,
}

var newCmd = &cobra.Command{
	Use:   "new <spec.yaml>",
	Short: "Create an empty grid from a YAML spec",
	Args:  cobra.ExactArgs(1),
	RunE:  runNew,
}

var loadCmd = &cobra.Command{
	Use:   "load <image>",
	Short: "Build a grid from a raster image",
	Long: `Read the first channel of every pixel, divide it by the divisor, apply the
transform and store it at the matching tile. The image's pixel dimensions
become the grid resolution.`,
	Args: cobra.ExactArgs(1),
	RunE: runLoad,
}

var combineCmd = &cobra.Command{
	Use:   "combine <add|sub|mul|div|pow> <a.gob> <b.gob>",
	Short: "Combine two grids tile by tile",
	Long: `Apply the operator on every tile populated in both grids. Tiles only in the
first grid are kept; tiles only in the second are ignored.`,
	Args: cobra.ExactArgs(3),
	RunE: runCombine,
}

var exportCmd = &cobra.Command{
	Use:   "export <grid.gob>",
	Short: "Write populated tiles as CSV",
	Args:  cobra.ExactArgs(1),
	RunE:  runExport,
}

var fitCmd = &cobra.Command{
	Use:   "fit <x.gob> <y.gob>",
	Short: "Fit y against x over the tiles populated in y",
	Args:  cobra.ExactArgs(2),
	RunE:  runFit,
}

var queryCmd = &cobra.Command{
	Use:   "query <grid.gob>",
	Short: "Find populated tiles in a box or near a point",
	Args:  cobra.ExactArgs(1),
	RunE:  runQuery,
}

var renderCmd = &cobra.Command{
	Use:   "render <grid.gob>",
	Short: "Render a grid as a heatmap image",
	Args:  cobra.ExactArgs(1),
	RunE:  runRender,
}

var (
	newOut       string
	loadOut      string
	combineOut   string
	renderOut    string
	rectFlag     string
	specFile     string
	divisor      float64
	defaultValue float64
	transform    string
	exportFormat string
	fitMethod    string
	boxFlag      string
	nearFlag     string
	numNeighbors int
	radiusKm     float64
	title        string
)

func init() {
	newCmd.Flags().StringVarP(&newOut, "out", "o", "grid.gob", "Output grid file")

	loadCmd.Flags().StringVarP(&loadOut, "out", "o", "grid.gob", "Output grid file")
	loadCmd.Flags().StringVarP(&rectFlag, "rect", "r", "", "Covered rectangle as lat,lon,lat,lon")
	loadCmd.Flags().StringVarP(&specFile, "spec", "s", "", "Take the rectangle from a grid spec file")
	loadCmd.Flags().Float64Var(&divisor, "divisor", 0, "Pixel divisor (default from config)")
	loadCmd.Flags().Float64Var(&defaultValue, "default", 0, "Default tile value (default from config)")
	loadCmd.Flags().StringVarP(&transform, "transform", "t", "none", "Value transform: none, log, log1p or sqrt")

	combineCmd.Flags().StringVarP(&combineOut, "out", "o", "combined.gob", "Output grid file")

	exportCmd.Flags().StringVarP(&exportFormat, "format", "F", "grid", "Columns: grid (row,col,value), tiles (lat,lon,value) or values")

	fitCmd.Flags().StringVarP(&fitMethod, "method", "m", "linear", "Fit method: linear or theilsen")

	queryCmd.Flags().StringVarP(&boxFlag, "box", "b", "", "Bounding box as lat,lon,lat,lon")
	queryCmd.Flags().StringVar(&nearFlag, "near", "", "Point as lat,lon")
	queryCmd.Flags().IntVarP(&numNeighbors, "neighbors", "n", 5, "Number of nearest tiles")
	queryCmd.Flags().Float64Var(&radiusKm, "radius", 0, "With --near, return every tile within this many km instead")
	queryCmd.MarkFlagsMutuallyExclusive("box", "near")
	queryCmd.MarkFlagsOneRequired("box", "near")

	renderCmd.Flags().StringVarP(&renderOut, "out", "o", "heatmap.png", "Output image (png, svg, pdf)")
	renderCmd.Flags().StringVar(&title, "title", "", "Plot title")
}

func runNew(cmd *cobra.Command, args []string) error {
	spec, err := config.LoadGridSpec(args[0])
	if err != nil {
		return err
	}
	g, err := spec.NewGrid()
	if err != nil {
		return err
	}
	return saveGrid(cmd, g, newOut)
}

func runLoad(cmd *cobra.Command, args []string) error {
	var rect models.BoundingBox
	switch {
	case specFile != "":
		spec, err := config.LoadGridSpec(specFile)
		if err != nil {
			return err
		}
		rect = spec.Box()
	case rectFlag != "":
		var err error
		if rect, err = parseBox(rectFlag); err != nil {
			return err
		}
	default:
		return fmt.Errorf("one of --rect or --spec is required")
	}

	fn, ok := transforms[transform]
	if !ok {
		return fmt.Errorf("unknown transform %q", transform)
	}
	d := cfg.Raster.Divisor
	if cmd.Flags().Changed("divisor") {
		d = divisor
	}
	def := cfg.Grid.Default
	if cmd.Flags().Changed("default") {
		def = defaultValue
	}

	start := time.Now()
	g, err := geogrid.FromImageFile(rect, args[0],
		geogrid.WithDivisor(d),
		geogrid.WithDefault(def),
		geogrid.WithTransform(fn),
	)
	if err != nil {
		return err
	}
	size := g.GridSize()
	slog.Info("raster loaded", "image", args[0], "cols", size.Cols, "rows", size.Rows,
		"tiles", g.Len(), "elapsed", time.Since(start))

	return saveGrid(cmd, g, loadOut)
}

func runCombine(cmd *cobra.Command, args []string) error {
	op, err := geogrid.ParseOp(args[0])
	if err != nil {
		return err
	}
	a, err := loadGrid(args[1])
	if err != nil {
		return err
	}
	b, err := loadGrid(args[2])
	if err != nil {
		return err
	}

	result, err := a.Combine(op, b)
	if err != nil {
		return err
	}
	return saveGrid(cmd, result, combineOut)
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func runExport(cmd *cobra.Command, args []string) error {
	g, err := loadGrid(args[0])
	if err != nil {
		return err
	}

	w := csv.NewWriter(cmd.OutOrStdout())
	switch exportFormat {
	case "grid":
		w.Write([]string{"row", "col", "value"})
		for idx, v := range g.IterAsGrid() {
			w.Write([]string{strconv.Itoa(idx.Row), strconv.Itoa(idx.Col), formatFloat(v)})
		}
	case "tiles":
		w.Write([]string{"lat", "lon", "value"})
		for anchor, v := range g.All() {
			w.Write([]string{formatFloat(anchor.Lat), formatFloat(anchor.Lon), formatFloat(v)})
		}
	case "values":
		w.Write([]string{"value"})
		for v := range g.Values() {
			w.Write([]string{formatFloat(v)})
		}
	default:
		return fmt.Errorf("unknown export format %q", exportFormat)
	}
	w.Flush()
	return w.Error()
}

func runFit(cmd *cobra.Command, args []string) error {
	x, err := loadGrid(args[0])
	if err != nil {
		return err
	}
	y, err := loadGrid(args[1])
	if err != nil {
		return err
	}

	xs, ys, err := fit.Pairs(x, y)
	if err != nil {
		return err
	}

	var line fit.Line
	switch fitMethod {
	case "linear":
		line, err = fit.Linear(xs, ys)
	case "theilsen":
		line, err = fit.TheilSen(xs, ys)
	default:
		return fmt.Errorf("unknown fit method %q", fitMethod)
	}
	if err != nil {
		return fmt.Errorf("fit failed: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "n=%d slope=%g intercept=%g r2=%g\n",
		len(xs), line.Slope, line.Intercept, line.RSquared)
	return nil
}

func runQuery(cmd *cobra.Command, args []string) error {
	g, err := loadGrid(args[0])
	if err != nil {
		return err
	}

	start := time.Now()
	idx, err := tileindex.Build(g)
	if err != nil {
		return err
	}
	slog.Debug("tile index built", "tiles", idx.Len(), "elapsed", time.Since(start))

	var tiles []models.Tile
	if boxFlag != "" {
		box, err := parseBox(boxFlag)
		if err != nil {
			return err
		}
		if tiles, err = idx.QueryBox(box); err != nil {
			return err
		}
	} else {
		loc, err := parseLocation(nearFlag)
		if err != nil {
			return err
		}
		if radiusKm > 0 {
			if tiles, err = idx.QueryRadius(loc, radiusKm); err != nil {
				return err
			}
		} else {
			tiles = idx.Nearest(loc, numNeighbors)
		}
	}

	out := cmd.OutOrStdout()
	for _, t := range tiles {
		fmt.Fprintf(out, "%s\t%g\n", t.Anchor, t.Value)
	}
	fmt.Fprintf(out, "Found %d tiles\n", len(tiles))
	return nil
}

func runRender(cmd *cobra.Command, args []string) error {
	g, err := loadGrid(args[0])
	if err != nil {
		return err
	}

	opts := render.Options{
		Title:  title,
		Width:  vg.Length(cfg.Render.Width) * vg.Inch,
		Height: vg.Length(cfg.Render.Height) * vg.Inch,
	}
	if err := render.Heatmap(g, renderOut, opts); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Rendered %s\n", renderOut)
	return nil
}
