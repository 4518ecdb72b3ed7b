package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/Faultbox/terrain-projector/internal/logger"
	"github.com/Faultbox/terrain-projector/pkg/formats"
	"github.com/Faultbox/terrain-projector/pkg/heightmap"
	"github.com/Faultbox/terrain-projector/pkg/math"
)

// ErrNoGenerations is returned when a SQLite store has no committed heightmap yet.
var ErrNoGenerations = errors.New("no heightmap generations stored")

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS generations (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    created_at INTEGER NOT NULL,      -- UnixNano
    width INTEGER NOT NULL,
    height INTEGER NOT NULL,
    origin_x REAL NOT NULL,
    origin_y REAL NOT NULL,
    origin_z REAL NOT NULL,
    size_x REAL NOT NULL,
    size_z REAL NOT NULL,
    baseline INTEGER NOT NULL DEFAULT 0,
    samples BLOB NOT NULL             -- R16 little-endian, row-major
);

CREATE INDEX IF NOT EXISTS idx_generations_baseline ON generations(baseline) WHERE baseline = 1;
`

// Generation describes one stored heightmap commit.
type Generation struct {
	ID        int64
	CreatedAt time.Time
	Width     int
	Height    int
	Baseline  bool
}

// SQLite appends every commit as a new generation row. Load returns the newest.
type SQLite struct {
	db  *sql.DB
	log *zap.Logger
}

// OpenSQLite opens or creates a generation store at path.
func OpenSQLite(path string) (*SQLite, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
	}

	dsn := path +
		"?_pragma=journal_mode(WAL)" +
		"&_pragma=synchronous(NORMAL)" +
		"&_pragma=busy_timeout(5000)"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &SQLite{db: db, log: logger.Named("storage")}, nil
}

// Close closes the database.
func (s *SQLite) Close() error {
	return s.db.Close()
}

// Load returns the newest generation.
func (s *SQLite) Load() (*heightmap.Heightmap, error) {
	return s.loadWhere("ORDER BY id DESC LIMIT 1")
}

// LoadBaseline returns the newest baked generation.
func (s *SQLite) LoadBaseline() (*heightmap.Heightmap, error) {
	return s.loadWhere("WHERE baseline = 1 ORDER BY id DESC LIMIT 1")
}

// LoadGeneration returns the generation with the given id.
func (s *SQLite) LoadGeneration(id int64) (*heightmap.Heightmap, error) {
	return s.loadWhere("WHERE id = ?", id)
}

func (s *SQLite) loadWhere(clause string, args ...any) (*heightmap.Heightmap, error) {
	var (
		w, h   int
		o      math.Vec3
		sz     math.Vec2
		packed []byte
	)
	err := s.db.QueryRow(
		"SELECT width, height, origin_x, origin_y, origin_z, size_x, size_z, samples FROM generations "+clause,
		args...,
	).Scan(&w, &h, &o.X, &o.Y, &o.Z, &sz.X, &sz.Y, &packed)
	if err == sql.ErrNoRows {
		return nil, ErrNoGenerations
	}
	if err != nil {
		return nil, fmt.Errorf("loading generation: %w", err)
	}

	samples, err := formats.DecodeR16(packed, w, h)
	if err != nil {
		return nil, fmt.Errorf("decoding generation: %w", err)
	}
	hm := &heightmap.Heightmap{
		Width:   w,
		Height:  h,
		Samples: samples,
		Extent:  heightmap.Extent{Origin: o, Size: sz},
	}
	if err := hm.Validate(); err != nil {
		return nil, err
	}
	return hm, nil
}

// Commit appends h as a new generation. Once a generation exists, later
// commits must keep its resolution.
func (s *SQLite) Commit(h *heightmap.Heightmap) error {
	if h == nil {
		return fmt.Errorf("%w: nil heightmap", heightmap.ErrResourceMismatch)
	}
	w, hh := h.Width, h.Height
	var prevW, prevH int
	err := s.db.QueryRow("SELECT width, height FROM generations ORDER BY id DESC LIMIT 1").Scan(&prevW, &prevH)
	switch {
	case err == nil:
		w, hh = prevW, prevH
	case err != sql.ErrNoRows:
		return fmt.Errorf("reading latest generation: %w", err)
	}
	if err := checkCommit(h, w, hh); err != nil {
		return err
	}

	o, sz := h.Extent.Origin, h.Extent.Size
	res, err := s.db.Exec(`
		INSERT INTO generations (created_at, width, height, origin_x, origin_y, origin_z, size_x, size_z, samples)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		time.Now().UnixNano(), h.Width, h.Height, o.X, o.Y, o.Z, sz.X, sz.Y, formats.EncodeR16(h.Samples))
	if err != nil {
		return fmt.Errorf("inserting generation: %w", err)
	}
	id, _ := res.LastInsertId()
	s.log.Debug("generation committed", zap.Int64("id", id), zap.Int("width", h.Width), zap.Int("height", h.Height))
	return nil
}

// MarkBaseline flags the newest generation as baked.
func (s *SQLite) MarkBaseline() error {
	res, err := s.db.Exec("UPDATE generations SET baseline = 1 WHERE id = (SELECT MAX(id) FROM generations)")
	if err != nil {
		return fmt.Errorf("marking baseline: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNoGenerations
	}
	return nil
}

// History returns up to limit generations, newest first. A limit <= 0 returns all.
func (s *SQLite) History(limit int) ([]Generation, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.Query(
		"SELECT id, created_at, width, height, baseline FROM generations ORDER BY id DESC LIMIT ?", limit)
	if err != nil {
		return nil, fmt.Errorf("querying history: %w", err)
	}
	defer rows.Close()

	var out []Generation
	for rows.Next() {
		var (
			g        Generation
			created  int64
			baseline int
		)
		if err := rows.Scan(&g.ID, &created, &g.Width, &g.Height, &baseline); err != nil {
			return nil, fmt.Errorf("scanning history: %w", err)
		}
		g.CreatedAt = time.Unix(0, created)
		g.Baseline = baseline != 0
		out = append(out, g)
	}
	return out, rows.Err()
}

// Prune deletes all but the newest keep generations, always keeping the newest baseline.
func (s *SQLite) Prune(keep int) (int64, error) {
	res, err := s.db.Exec(`
		DELETE FROM generations
		WHERE id NOT IN (SELECT id FROM generations ORDER BY id DESC LIMIT ?)
		  AND id <> COALESCE((SELECT MAX(id) FROM generations WHERE baseline = 1), -1)`, keep)
	if err != nil {
		return 0, fmt.Errorf("pruning generations: %w", err)
	}
	return res.RowsAffected()
}

// BaselineSQLite is a SQLite store whose Load returns the newest baked
// generation, so recompositions start from the last bake instead of the
// last commit.
type BaselineSQLite struct {
	*SQLite
}

// Load returns the newest baseline, or the newest generation if nothing was baked yet.
func (b BaselineSQLite) Load() (*heightmap.Heightmap, error) {
	h, err := b.LoadBaseline()
	if errors.Is(err, ErrNoGenerations) {
		return b.SQLite.Load()
	}
	return h, err
}
