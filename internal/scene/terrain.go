package scene

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"

	"github.com/Faultbox/terrain-projector/internal/config"
	"github.com/Faultbox/terrain-projector/internal/logger"
	"github.com/Faultbox/terrain-projector/internal/storage"
	"github.com/Faultbox/terrain-projector/pkg/heightmap"
	"github.com/Faultbox/terrain-projector/pkg/math"
)

// SQLitePrefix marks a terrain heightmap kept in a SQLite generation store.
const SQLitePrefix = "sqlite:"

// Flat returns the flat heightmap the terrain section describes.
func (t Terrain) Flat() (*heightmap.Heightmap, error) {
	ext := heightmap.Extent{
		Origin: math.Vec3{X: t.Origin[0], Y: t.Origin[1], Z: t.Origin[2]},
		Size:   math.Vec2{X: t.Size[0], Y: t.Size[1]},
	}
	if t.Width <= 0 || t.Height <= 0 {
		return nil, fmt.Errorf("%w: terrain resolution %dx%d", heightmap.ErrResourceMismatch, t.Width, t.Height)
	}
	h := heightmap.New(t.Width, t.Height, ext, math.Clamp01(t.Fill))
	if err := h.Validate(); err != nil {
		return nil, err
	}
	return h, nil
}

// OpenTerrain opens the storage holding the scene's terrain. A terrain without
// a heightmap entry uses the configured default backend. Missing files and
// empty databases are seeded with the flat terrain. Callers close the storage
// when it implements io.Closer.
func (s *Scene) OpenTerrain(def config.StorageConfig) (storage.TerrainStorage, error) {
	ref := s.Doc.Terrain.Heightmap
	if ref == "" {
		switch def.Backend {
		case config.BackendFile:
			ref = def.Path
		case config.BackendSQLite:
			ref = SQLitePrefix + def.Path
		default:
			h, err := s.Doc.Terrain.Flat()
			if err != nil {
				return nil, err
			}
			return storage.NewMemory(h)
		}
	} else if path, ok := strings.CutPrefix(ref, SQLitePrefix); ok {
		ref = SQLitePrefix + s.Resolve(path)
	} else {
		ref = s.Resolve(ref)
	}

	if path, ok := strings.CutPrefix(ref, SQLitePrefix); ok {
		return s.openSQLite(path)
	}
	return s.openFile(ref)
}

func (s *Scene) openFile(path string) (storage.TerrainStorage, error) {
	if _, err := os.Stat(storage.MetaPath(path)); err == nil {
		return storage.OpenFile(path)
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}

	h, err := s.Doc.Terrain.Flat()
	if err != nil {
		return nil, fmt.Errorf("creating terrain %s: %w", path, err)
	}
	logger.Info("creating flat terrain", zap.String("path", path), zap.Int("width", h.Width), zap.Int("height", h.Height))
	return storage.CreateFile(path, h)
}

func (s *Scene) openSQLite(path string) (storage.TerrainStorage, error) {
	db, err := storage.OpenSQLite(path)
	if err != nil {
		return nil, err
	}
	_, err = db.Load()
	if err == nil {
		return db, nil
	}
	if !errors.Is(err, storage.ErrNoGenerations) {
		db.Close()
		return nil, err
	}

	h, err := s.Doc.Terrain.Flat()
	if err == nil {
		err = db.Commit(h)
	}
	if err == nil {
		err = db.MarkBaseline()
	}
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("seeding terrain %s: %w", path, err)
	}
	logger.Info("seeded terrain database", zap.String("path", path), zap.Int("width", h.Width), zap.Int("height", h.Height))
	return db, nil
}
