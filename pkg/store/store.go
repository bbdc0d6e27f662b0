// Package store persists geogrid snapshots in a SQL database. PostgreSQL
// (with PostGIS tile envelopes) and SQLite are supported.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/kass/go-geogrid/pkg/geogrid"
	"github.com/kass/go-geogrid/pkg/models"
)

// Dialect selects the SQL flavour used by a Store.
type Dialect int

const (
	SQLite Dialect = iota
	Postgres
)

// ParseDialect maps a database/sql driver name to a Dialect.
func ParseDialect(driver string) (Dialect, error) {
	switch driver {
	case "sqlite":
		return SQLite, nil
	case "postgres":
		return Postgres, nil
	}
	return 0, fmt.Errorf("unsupported store driver %q", driver)
}

func (d Dialect) driverName() string {
	if d == Postgres {
		return "postgres"
	}
	return "sqlite"
}

// ErrNotFound is returned when a snapshot does not exist.
var ErrNotFound = errors.New("grid snapshot not found")

// Snapshot describes a stored grid.
type Snapshot struct {
	ID        uuid.UUID
	Name      string
	CreatedAt time.Time
	TileCount int
}

// Store reads and writes grid snapshots.
type Store struct {
	db      *sql.DB
	dialect Dialect
	now     func() time.Time
}

// Open connects to the database identified by driver ("sqlite" or
// "postgres") and dsn.
func Open(ctx context.Context, driver, dsn string) (*Store, error) {
	dialect, err := ParseDialect(driver)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(dialect.driverName(), dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if dialect == Postgres {
		db.SetMaxOpenConns(25)
		db.SetMaxIdleConns(25)
		db.SetConnMaxLifetime(5 * time.Minute)
	} else {
		// Each SQLite connection to :memory: is a separate database.
		db.SetMaxOpenConns(1)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return New(db, dialect), nil
}

// New wraps an existing connection pool.
func New(db *sql.DB, dialect Dialect) *Store {
	return &Store{db: db, dialect: dialect, now: time.Now}
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// rebind rewrites ? placeholders as $n for PostgreSQL.
func (s *Store) rebind(query string) string {
	if s.dialect != Postgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (s *Store) insertTileQuery() string {
	if s.dialect == Postgres {
		return s.rebind(`INSERT INTO grid_tiles (snapshot_id, seq, lat, lon, value, extent)
			VALUES (?, ?, ?, ?, ?, ST_MakeEnvelope(?, ?, ?, ?, 4326))`)
	}
	return `INSERT INTO grid_tiles (snapshot_id, seq, lat, lon, value) VALUES (?, ?, ?, ?, ?)`
}

// SaveGrid stores g as a new snapshot under name and returns its ID
func (s *Store) SaveGrid(ctx context.Context, name string, g *geogrid.Grid) (uuid.UUID, error) {
	id := uuid.New()
	rect, size := g.Rect(), g.GridSize()
	latSize, lonSize := g.TileSize()
	tiles := g.Tiles()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, s.rebind(`INSERT INTO grid_snapshots
		(id, name, created_unix_nanos, min_lat, min_lon, max_lat, max_lon, grid_cols, grid_rows, default_value)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		id.String(), name, s.now().UnixNano(),
		rect.BottomLeft.Lat, rect.BottomLeft.Lon, rect.TopRight.Lat, rect.TopRight.Lon,
		size.Cols, size.Rows, g.Default())
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to insert snapshot: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, s.insertTileQuery())
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for i, tile := range tiles {
		args := []any{id.String(), i, tile.Anchor.Lat, tile.Anchor.Lon, tile.Value}
		if s.dialect == Postgres {
			args = append(args, tile.Anchor.Lon, tile.Anchor.Lat, tile.Anchor.Lon+lonSize, tile.Anchor.Lat+latSize)
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return uuid.Nil, fmt.Errorf("failed to insert tile %s: %w", tile.Anchor, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return uuid.Nil, fmt.Errorf("failed to commit snapshot: %w", err)
	}

	slog.Debug("saved grid snapshot", "id", id, "name", name, "tiles", len(tiles))
	return id, nil
}

// LoadGrid rebuilds the grid stored under id
func (s *Store) LoadGrid(ctx context.Context, id uuid.UUID) (*geogrid.Grid, error) {
	var (
		rect models.BoundingBox
		size models.GridSize
		def  float64
	)
	err := s.db.QueryRowContext(ctx, s.rebind(`SELECT min_lat, min_lon, max_lat, max_lon, grid_cols, grid_rows, default_value
		FROM grid_snapshots WHERE id = ?`), id.String()).
		Scan(&rect.BottomLeft.Lat, &rect.BottomLeft.Lon, &rect.TopRight.Lat, &rect.TopRight.Lon,
			&size.Cols, &size.Rows, &def)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load snapshot %s: %w", id, err)
	}

	tiles, err := s.queryTiles(ctx, `SELECT lat, lon, value FROM grid_tiles WHERE snapshot_id = ? ORDER BY seq`, id.String())
	if err != nil {
		return nil, err
	}
	return geogrid.Restore(rect, size, tiles, geogrid.WithDefault(def))
}

// LatestGrid returns the most recent snapshot saved under name
func (s *Store) LatestGrid(ctx context.Context, name string) (uuid.UUID, *geogrid.Grid, error) {
	var raw string
	err := s.db.QueryRowContext(ctx, s.rebind(`SELECT id FROM grid_snapshots
		WHERE name = ? ORDER BY created_unix_nanos DESC LIMIT 1`), name).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return uuid.Nil, nil, fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	if err != nil {
		return uuid.Nil, nil, fmt.Errorf("failed to find snapshot %q: %w", name, err)
	}

	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, nil, fmt.Errorf("invalid snapshot id %q: %w", raw, err)
	}
	g, err := s.LoadGrid(ctx, id)
	if err != nil {
		return uuid.Nil, nil, err
	}
	return id, g, nil
}

// ListSnapshots returns the stored snapshots, newest first
func (s *Store) ListSnapshots(ctx context.Context) ([]Snapshot, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT s.id, s.name, s.created_unix_nanos,
		(SELECT COUNT(*) FROM grid_tiles t WHERE t.snapshot_id = s.id)
		FROM grid_snapshots s ORDER BY s.created_unix_nanos DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}
	defer rows.Close()

	var snapshots []Snapshot
	for rows.Next() {
		var (
			raw   string
			nanos int64
			snap  Snapshot
		)
		if err := rows.Scan(&raw, &snap.Name, &nanos, &snap.TileCount); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		if snap.ID, err = uuid.Parse(raw); err != nil {
			return nil, fmt.Errorf("invalid snapshot id %q: %w", raw, err)
		}
		snap.CreatedAt = time.Unix(0, nanos)
		snapshots = append(snapshots, snap)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return snapshots, nil
}

// QueryTiles returns the stored tiles of snapshot id whose anchor lies
// inside box
func (s *Store) QueryTiles(ctx context.Context, id uuid.UUID, box models.BoundingBox) ([]models.Tile, error) {
	box = models.NewBoundingBox(box.BottomLeft, box.TopRight)
	if s.dialect == Postgres {
		return s.queryTiles(ctx, `SELECT lat, lon, value FROM grid_tiles
			WHERE snapshot_id = ? AND ST_Intersects(ST_SetSRID(ST_MakePoint(lon, lat), 4326), ST_MakeEnvelope(?, ?, ?, ?, 4326))
			ORDER BY seq`,
			id.String(), box.BottomLeft.Lon, box.BottomLeft.Lat, box.TopRight.Lon, box.TopRight.Lat)
	}
	return s.queryTiles(ctx, `SELECT lat, lon, value FROM grid_tiles
		WHERE snapshot_id = ? AND lat BETWEEN ? AND ? AND lon BETWEEN ? AND ?
		ORDER BY seq`,
		id.String(), box.BottomLeft.Lat, box.TopRight.Lat, box.BottomLeft.Lon, box.TopRight.Lon)
}

func (s *Store) queryTiles(ctx context.Context, query string, args ...any) ([]models.Tile, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}
	defer rows.Close()

	var tiles []models.Tile
	for rows.Next() {
		var tile models.Tile
		if err := rows.Scan(&tile.Anchor.Lat, &tile.Anchor.Lon, &tile.Value); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		tiles = append(tiles, tile)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return tiles, nil
}
