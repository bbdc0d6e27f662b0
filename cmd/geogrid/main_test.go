package main

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kass/go-geogrid/pkg/geogrid"
	"github.com/kass/go-geogrid/pkg/models"
)

// execute runs the CLI with flags reset to their defaults.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()

	var reset func(c *cobra.Command)
	reset = func(c *cobra.Command) {
		c.Flags().VisitAll(func(f *pflag.Flag) {
			f.Value.Set(f.DefValue)
			f.Changed = false
		})
		for _, sub := range c.Commands() {
			reset(sub)
		}
	}
	reset(rootCmd)

	var buf bytes.Buffer
	rootCmd.SetOut(&buf)
	rootCmd.SetErr(&buf)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return buf.String(), err
}

// workspace switches to an empty directory holding a 2x2 test image.
func workspace(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv("GEOGRID_STORE_DSN", filepath.Join(dir, "geogrid.db"))
	t.Setenv("GEOGRID_LOG_LEVEL", "error")

	img := image.NewNRGBA(image.Rect(0, 0, 2, 2))
	for i, v := range []uint8{0, 255, 128, 64} {
		img.Set(i%2, i/2, color.NRGBA{R: v, A: 255})
	}
	f, err := os.Create(filepath.Join(dir, "in.png"))
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, img))
	require.NoError(t, f.Close())
	return dir
}

func TestParseBox(t *testing.T) {
	box, err := parseBox("42, -73,40,-75")
	require.NoError(t, err)
	assert.Equal(t, models.BoundingBox{
		BottomLeft: models.Location{Lat: 40, Lon: -75},
		TopRight:   models.Location{Lat: 42, Lon: -73},
	}, box)

	_, err = parseBox("1,2,3")
	assert.Error(t, err)
	_, err = parseBox("1,2,3,north")
	assert.Error(t, err)
}

func TestParseLocation(t *testing.T) {
	loc, err := parseLocation("37.5,-122.25")
	require.NoError(t, err)
	assert.Equal(t, models.Location{Lat: 37.5, Lon: -122.25}, loc)

	_, err = parseLocation("37.5")
	assert.Error(t, err)
}

func TestLoadAndExport(t *testing.T) {
	workspace(t)

	out, err := execute(t, "load", "in.png", "--rect", "0,0,2,2", "--divisor", "1", "-o", "a.gob")
	require.NoError(t, err)
	assert.Contains(t, out, "Saved 3 tiles to a.gob")

	out, err = execute(t, "export", "a.gob")
	require.NoError(t, err)
	assert.Equal(t, "row,col,value\n0,0,128\n0,1,64\n1,1,255\n", out)

	out, err = execute(t, "export", "a.gob", "--format", "tiles")
	require.NoError(t, err)
	assert.Equal(t, "lat,lon,value\n0,0,128\n0,1,64\n1,1,255\n", out)

	out, err = execute(t, "export", "a.gob", "-F", "values")
	require.NoError(t, err)
	assert.Equal(t, "value\n128\n64\n255\n", out)

	_, err = execute(t, "export", "a.gob", "-F", "xml")
	assert.Error(t, err)
}

func TestLoadRequiresRect(t *testing.T) {
	workspace(t)

	_, err := execute(t, "load", "in.png")
	assert.Error(t, err)

	_, err = execute(t, "load", "in.png", "--rect", "0,0,2,2", "--transform", "cube")
	assert.Error(t, err)
}

func TestNewFromSpec(t *testing.T) {
	dir := workspace(t)
	spec := "rect: [[0, 0], [2, 2]]\ngridsize: [2, 2]\ndefault: -1\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "grid.yaml"), []byte(spec), 0o644))

	_, err := execute(t, "new", "grid.yaml", "-o", "empty.gob")
	require.NoError(t, err)

	g, err := geogrid.LoadFromFile(filepath.Join(dir, "empty.gob"))
	require.NoError(t, err)
	assert.Equal(t, 0, g.Len())
	assert.Equal(t, -1.0, g.Default())

	_, err = execute(t, "load", "in.png", "--spec", "grid.yaml", "--divisor", "1", "-o", "a.gob")
	require.NoError(t, err)
}

func TestCombineAndFit(t *testing.T) {
	dir := workspace(t)

	_, err := execute(t, "load", "in.png", "-r", "0,0,2,2", "--divisor", "1", "-o", "a.gob")
	require.NoError(t, err)
	_, err = execute(t, "load", "in.png", "-r", "0,0,2,2", "--divisor", "1", "-o", "b.gob")
	require.NoError(t, err)

	_, err = execute(t, "combine", "add", "a.gob", "b.gob", "-o", "sum.gob")
	require.NoError(t, err)

	sum, err := geogrid.LoadFromFile(filepath.Join(dir, "sum.gob"))
	require.NoError(t, err)
	assert.Equal(t, 510.0, sum.Get(models.Location{Lat: 1.5, Lon: 1.5}))

	_, err = execute(t, "combine", "mod", "a.gob", "b.gob")
	assert.Error(t, err)

	out, err := execute(t, "fit", "a.gob", "sum.gob")
	require.NoError(t, err)
	assert.Equal(t, "n=3 slope=2 intercept=0 r2=1\n", out)

	out, err = execute(t, "fit", "a.gob", "sum.gob", "-m", "theilsen")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "n=3 slope=2 "), out)
}

func TestQuery(t *testing.T) {
	workspace(t)

	_, err := execute(t, "load", "in.png", "-r", "0,0,2,2", "--divisor", "1", "-o", "a.gob")
	require.NoError(t, err)

	out, err := execute(t, "query", "a.gob", "--box", "1.2,1.2,1.8,1.8")
	require.NoError(t, err)
	assert.Contains(t, out, "255")
	assert.Contains(t, out, "Found 1 tiles")

	out, err = execute(t, "query", "a.gob", "--near", "0.1,0.1", "-n", "2")
	require.NoError(t, err)
	assert.Contains(t, out, "Found 2 tiles")

	_, err = execute(t, "query", "a.gob")
	assert.Error(t, err)
}

func TestStoreRoundTrip(t *testing.T) {
	dir := workspace(t)

	_, err := execute(t, "load", "in.png", "-r", "0,0,2,2", "--divisor", "1", "-o", "a.gob")
	require.NoError(t, err)

	out, err := execute(t, "store", "save", "a.gob", "--name", "elevation")
	require.NoError(t, err)
	assert.Contains(t, out, "(3 tiles)")

	out, err = execute(t, "store", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "elevation")

	_, err = execute(t, "store", "load", "--name", "elevation", "-o", "copy.gob")
	require.NoError(t, err)

	g, err := geogrid.LoadFromFile(filepath.Join(dir, "copy.gob"))
	require.NoError(t, err)
	assert.Equal(t, 3, g.Len())
	assert.Equal(t, 64.0, g.Get(models.Location{Lat: 0.5, Lon: 1.5}))

	_, err = execute(t, "store", "load", "--id", "not-a-uuid")
	assert.Error(t, err)
}

func TestRender(t *testing.T) {
	dir := workspace(t)

	_, err := execute(t, "load", "in.png", "-r", "0,0,2,2", "--divisor", "1", "-o", "a.gob")
	require.NoError(t, err)

	_, err = execute(t, "render", "a.gob", "-o", "heat.png", "--title", "test")
	require.NoError(t, err)

	info, err := os.Stat(filepath.Join(dir, "heat.png"))
	require.NoError(t, err)
	assert.Positive(t, info.Size())
}

func TestBench(t *testing.T) {
	workspace(t)

	_, err := execute(t, "load", "in.png", "-r", "0,0,2,2", "--divisor", "1", "-o", "a.gob")
	require.NoError(t, err)

	for _, kind := range []string{"get", "box", "nearest"} {
		t.Run(kind, func(t *testing.T) {
			out, err := execute(t, "bench", "a.gob", "-t", kind, "-q", "200", "-w", "4")
			require.NoError(t, err)
			assert.Contains(t, out, "Total Queries: 200")
		})
	}

	_, err = execute(t, "bench", "a.gob", "-t", "radius")
	assert.Error(t, err)
}

func TestRunBenchmarkCountsResults(t *testing.T) {
	result := runBenchmark("fixed", 50, 3, func(r *rand.Rand) (int, error) { return 2, nil })

	assert.Equal(t, 50, result.TotalQueries)
	assert.Equal(t, int64(100), result.TotalResults)
	assert.Equal(t, 2.0, result.AvgResults)
	assert.LessOrEqual(t, result.MinDuration, result.MaxDuration)
}

func TestQueryRadius(t *testing.T) {
	workspace(t)

	_, err := execute(t, "load", "in.png", "-r", "0,0,2,2", "--divisor", "1", "-o", "a.gob")
	require.NoError(t, err)

	// Neighbouring tile centres are 111 km apart or more.
	out, err := execute(t, "query", "a.gob", "--near", "1.5,1.5", "--radius", "50")
	require.NoError(t, err)
	assert.Contains(t, out, "Found 1 tiles")

	out, err = execute(t, "query", "a.gob", "--near", "1.5,1.5", "--radius", "200")
	require.NoError(t, err)
	assert.Contains(t, out, "Found 3 tiles")
}
