package storage

import (
	"github.com/Faultbox/terrain-projector/pkg/heightmap"
)

// Memory keeps the heightmap in process.
type Memory struct {
	current  *heightmap.Heightmap
	commits  int
	baseline int
}

// NewMemory creates a memory storage holding a copy of h.
func NewMemory(h *heightmap.Heightmap) (*Memory, error) {
	if err := h.Validate(); err != nil {
		return nil, err
	}
	return &Memory{current: h.Clone()}, nil
}

// Load returns a copy of the stored heightmap.
func (m *Memory) Load() (*heightmap.Heightmap, error) {
	return m.current.Clone(), nil
}

// Commit stores a copy of h.
func (m *Memory) Commit(h *heightmap.Heightmap) error {
	if err := checkCommit(h, m.current.Width, m.current.Height); err != nil {
		return err
	}
	m.current = h.Clone()
	m.commits++
	return nil
}

// MarkBaseline records the latest commit as baked.
func (m *Memory) MarkBaseline() error {
	m.baseline = m.commits
	return nil
}

// Commits returns how many commits have been made.
func (m *Memory) Commits() int {
	return m.commits
}

// Baseline returns the commit count at the last bake.
func (m *Memory) Baseline() int {
	return m.baseline
}
