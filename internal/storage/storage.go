// Package storage persists terrain heightmaps between recompositions.
package storage

import (
	"fmt"

	"github.com/Faultbox/terrain-projector/pkg/heightmap"
)

// TerrainStorage is the authoritative home of a terrain heightmap.
type TerrainStorage interface {
	// Load returns the current heightmap.
	Load() (*heightmap.Heightmap, error)
	// Commit replaces the current heightmap. The resolution must not change.
	Commit(h *heightmap.Heightmap) error
}

// Baseliner is implemented by storages that record which commit was baked.
type Baseliner interface {
	MarkBaseline() error
}

// checkCommit validates h against the stored resolution.
func checkCommit(h *heightmap.Heightmap, width, height int) error {
	if h == nil {
		return fmt.Errorf("%w: nil heightmap", heightmap.ErrResourceMismatch)
	}
	if err := h.Validate(); err != nil {
		return err
	}
	if h.Width != width || h.Height != height {
		return fmt.Errorf("%w: commit %dx%d into %dx%d terrain",
			heightmap.ErrResourceMismatch, h.Width, h.Height, width, height)
	}
	return nil
}
