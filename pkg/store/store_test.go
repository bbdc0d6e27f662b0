package store

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kass/go-geogrid/pkg/geogrid"
	"github.com/kass/go-geogrid/pkg/models"
)

func openSQLite(t *testing.T) *Store {
	t.Helper()
	ctx := context.Background()

	s, err := Open(ctx, "sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	require.NoError(t, s.InitSchema(ctx))
	return s
}

// fixedClock returns a clock that advances one second per call.
func fixedClock() func() time.Time {
	ts := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	return func() time.Time {
		ts = ts.Add(time.Second)
		return ts
	}
}

func testGrid(t *testing.T, def float64) *geogrid.Grid {
	t.Helper()
	rect := models.BoundingBox{
		BottomLeft: models.Location{Lat: 40, Lon: -75},
		TopRight:   models.Location{Lat: 42, Lon: -73},
	}
	g, err := geogrid.New(rect, models.GridSize{Cols: 4, Rows: 4}, geogrid.WithDefault(def))
	require.NoError(t, err)

	g.Set(models.Location{Lat: 41.7, Lon: -73.2}, 3)
	g.Set(models.Location{Lat: 40.1, Lon: -74.9}, 1.25)
	g.Set(models.Location{Lat: 40.8, Lon: -74.1}, 2)
	return g
}

func TestParseDialect(t *testing.T) {
	d, err := ParseDialect("postgres")
	require.NoError(t, err)
	assert.Equal(t, Postgres, d)

	d, err = ParseDialect("sqlite")
	require.NoError(t, err)
	assert.Equal(t, SQLite, d)

	_, err = ParseDialect("mysql")
	assert.Error(t, err)
}

func TestRebind(t *testing.T) {
	query := `SELECT lat FROM grid_tiles WHERE snapshot_id = ? AND seq > ?`

	pg := New(nil, Postgres)
	assert.Equal(t, `SELECT lat FROM grid_tiles WHERE snapshot_id = $1 AND seq > $2`, pg.rebind(query))

	lite := New(nil, SQLite)
	assert.Equal(t, query, lite.rebind(query))
}

func TestInsertTileQuery(t *testing.T) {
	pg := New(nil, Postgres)
	assert.Contains(t, pg.insertTileQuery(), "ST_MakeEnvelope($6, $7, $8, $9, 4326)")

	lite := New(nil, SQLite)
	assert.NotContains(t, lite.insertTileQuery(), "ST_MakeEnvelope")
}

func TestInitSchemaIsIdempotent(t *testing.T) {
	s := openSQLite(t)
	assert.NoError(t, s.InitSchema(context.Background()))

	version, dirty, err := s.SchemaVersion()
	require.NoError(t, err)
	assert.Equal(t, uint(1), version)
	assert.False(t, dirty)
}

func TestMigrateDown(t *testing.T) {
	ctx := context.Background()
	s := openSQLite(t)

	require.NoError(t, s.MigrateDown())
	version, _, err := s.SchemaVersion()
	require.NoError(t, err)
	assert.Equal(t, uint(0), version)

	_, err = s.SaveGrid(ctx, "gone", testGrid(t, 0))
	assert.Error(t, err)

	require.NoError(t, s.InitSchema(ctx))
	_, err = s.SaveGrid(ctx, "back", testGrid(t, 0))
	assert.NoError(t, err)
}

func TestInitSchemaCancelled(t *testing.T) {
	s := openSQLite(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, s.InitSchema(ctx), context.Canceled)
}

func TestSaveAndLoadGrid(t *testing.T) {
	ctx := context.Background()
	s := openSQLite(t)
	g := testGrid(t, -1)

	id, err := s.SaveGrid(ctx, "rainfall", g)
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, id)

	loaded, err := s.LoadGrid(ctx, id)
	require.NoError(t, err)

	if diff := cmp.Diff(g.Data(), loaded.Data()); diff != "" {
		t.Errorf("loaded grid mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, 3.0, loaded.Get(models.Location{Lat: 41.6, Lon: -73.4}))
	assert.Equal(t, -1.0, loaded.Get(models.Location{Lat: 41.6, Lon: -74.9}))
}

func TestLoadGridNotFound(t *testing.T) {
	s := openSQLite(t)

	_, err := s.LoadGrid(context.Background(), uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)

	_, _, err = s.LatestGrid(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLatestGrid(t *testing.T) {
	ctx := context.Background()
	s := openSQLite(t)
	s.now = fixedClock()

	older := testGrid(t, 0)
	newer := testGrid(t, 0)
	newer.Set(models.Location{Lat: 41.1, Lon: -74.6}, 9)

	_, err := s.SaveGrid(ctx, "rainfall", older)
	require.NoError(t, err)
	newerID, err := s.SaveGrid(ctx, "rainfall", newer)
	require.NoError(t, err)
	_, err = s.SaveGrid(ctx, "temperature", older)
	require.NoError(t, err)

	id, g, err := s.LatestGrid(ctx, "rainfall")
	require.NoError(t, err)
	assert.Equal(t, newerID, id)
	assert.Equal(t, 4, g.Len())

	snapshots, err := s.ListSnapshots(ctx)
	require.NoError(t, err)
	require.Len(t, snapshots, 3)
	assert.Equal(t, "temperature", snapshots[0].Name)
	assert.Equal(t, newerID, snapshots[1].ID)
	assert.Equal(t, 4, snapshots[1].TileCount)
	assert.True(t, snapshots[1].CreatedAt.After(snapshots[2].CreatedAt))
}

func TestQueryTiles(t *testing.T) {
	ctx := context.Background()
	s := openSQLite(t)

	id, err := s.SaveGrid(ctx, "rainfall", testGrid(t, 0))
	require.NoError(t, err)

	tiles, err := s.QueryTiles(ctx, id, models.BoundingBox{
		BottomLeft: models.Location{Lat: 41.9, Lon: -73.6},
		TopRight:   models.Location{Lat: 40.4, Lon: -74.6},
	})
	require.NoError(t, err)

	want := []models.Tile{
		{Anchor: models.Location{Lat: 40.5, Lon: -74.5}, Value: 2},
	}
	assert.Equal(t, want, tiles)
}

func TestPostgresRoundTrip(t *testing.T) {
	dsn := os.Getenv("GEOGRID_TEST_PG_DSN")
	if dsn == "" {
		t.Skip("GEOGRID_TEST_PG_DSN not set")
	}
	ctx := context.Background()

	s, err := Open(ctx, "postgres", dsn)
	require.NoError(t, err)
	defer s.Close()
	require.NoError(t, s.InitSchema(ctx))

	g := testGrid(t, 0)
	id, err := s.SaveGrid(ctx, "integration", g)
	require.NoError(t, err)

	loaded, err := s.LoadGrid(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, g.Tiles(), loaded.Tiles())

	tiles, err := s.QueryTiles(ctx, id, g.Rect())
	require.NoError(t, err)
	assert.Len(t, tiles, 3)
}
