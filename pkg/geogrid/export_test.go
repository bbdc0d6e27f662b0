package geogrid

import (
	"bytes"
	"path/filepath"
	"slices"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/kass/go-geogrid/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIterAsGridRoundTrip(t *testing.T) {
	g := newTestGrid(t, box(-10, 20, 10, 60), 8, 4)
	indexes := []models.TileIndex{
		{Row: 0, Col: 0},
		{Row: 3, Col: 7},
		{Row: 2, Col: 5},
		{Row: 1, Col: 1},
	}
	for i, idx := range indexes {
		g.SetFromGrid(idx, float64(i+1))
	}

	var got []gridEntry
	for idx, v := range g.IterAsGrid() {
		got = append(got, gridEntry{idx, v})
	}

	want := make([]gridEntry, len(indexes))
	for i, idx := range indexes {
		want[i] = gridEntry{idx, float64(i + 1)}
	}
	assert.Equal(t, want, got)
}

func TestIterAsGridIsRestartable(t *testing.T) {
	g := newTestGrid(t, box(0, 0, 10, 10), 2, 2)
	g.Set(loc(1, 1), 1)
	g.Set(loc(6, 6), 2)

	seq := g.IterAsGrid()
	first, second := 0, 0
	for range seq {
		first++
	}
	for range seq {
		second++
	}
	assert.Equal(t, 2, first)
	assert.Equal(t, 2, second)
}

func TestValues(t *testing.T) {
	g := newTestGrid(t, box(0, 0, 10, 10), 2, 2)
	g.Set(loc(6, 6), 2)
	g.Set(loc(1, 1), 1)
	g.Set(loc(6, 1), 3)
	g.Set(loc(7, 7), 4) // overwrite keeps the original position

	assert.Equal(t, []float64{4, 1, 3}, slices.Collect(g.Values()))
	assert.Equal(t, []models.Location{loc(5, 5), loc(0, 0), loc(5, 0)}, slices.Collect(g.Keys()))
}

func TestValuesAtPairsTwoGrids(t *testing.T) {
	x := newTestGrid(t, box(0, 0, 10, 10), 2, 2)
	y := newTestGrid(t, box(0, 0, 10, 10), 2, 2)
	x.Set(loc(1, 1), 10)
	x.Set(loc(6, 6), 20)
	y.Set(loc(6, 6), 2)
	y.Set(loc(1, 6), 3)

	ys := slices.Collect(y.Values())
	xs := slices.Collect(x.ValuesAt(y.Keys()))

	assert.Equal(t, []float64{2, 3}, ys)
	assert.Equal(t, []float64{20, 0}, xs, "unset tiles sample as the default")
}

func TestValuesAtStopsEarly(t *testing.T) {
	g := newTestGrid(t, box(0, 0, 10, 10), 2, 2)
	g.Set(loc(1, 1), 5)

	coords := slices.Values([]models.Location{loc(1, 1), loc(6, 6), loc(2, 2)})
	var got []float64
	for v := range g.ValuesAt(coords) {
		got = append(got, v)
		if len(got) == 2 {
			break
		}
	}
	assert.Equal(t, []float64{5, 0}, got)
}

func TestAllAllowsMutationWhileIterating(t *testing.T) {
	g := newTestGrid(t, box(0, 0, 10, 10), 2, 2)
	g.Set(loc(1, 1), 1)

	for anchor, v := range g.All() {
		g.Set(anchor, v*2)
		g.Set(loc(6, 6), 9)
	}
	assert.Equal(t, 2.0, g.Get(loc(1, 1)))
	assert.Equal(t, 2, g.Len())
}

func TestEncodeDecode(t *testing.T) {
	g := newTestGrid(t, box(40.5, -74.25, 41.5, -73.25), 4, 4, WithDefault(-1))
	g.Set(loc(41.4, -73.3), 3)
	g.Set(loc(40.6, -74.2), 0)
	g.Set(loc(41.0, -73.8), 1.5)

	var buf bytes.Buffer
	require.NoError(t, g.Encode(&buf))

	decoded, err := Decode(&buf)
	require.NoError(t, err)

	assert.Equal(t, g.Rect(), decoded.Rect())
	assert.Equal(t, g.GridSize(), decoded.GridSize())
	assert.Equal(t, g.Default(), decoded.Default())
	if diff := cmp.Diff(g.Tiles(), decoded.Tiles()); diff != "" {
		t.Errorf("decoded tiles mismatch (-want +got):\n%s", diff)
	}
}

func TestSaveAndLoadFile(t *testing.T) {
	g := newTestGrid(t, box(0, 0, 10, 10), 2, 2)
	g.Set(loc(1, 1), 1)
	g.Set(loc(6, 6), 2)

	path := filepath.Join(t.TempDir(), "grid.gob")
	require.NoError(t, g.SaveToFile(path))

	loaded, err := LoadFromFile(path)
	require.NoError(t, err)
	if diff := cmp.Diff(g.Data(), loaded.Data()); diff != "" {
		t.Errorf("loaded grid mismatch (-want +got):\n%s", diff)
	}

	_, err = LoadFromFile(filepath.Join(t.TempDir(), "missing.gob"))
	assert.Error(t, err)
}

func TestDecodeInvalidData(t *testing.T) {
	_, err := Decode(bytes.NewReader([]byte("garbage")))
	assert.Error(t, err)
}
