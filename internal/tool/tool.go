// Package tool drives height projection for one terrain: it owns the baked
// baseline and the projector list, recomposes when projectors change, and
// commits results to terrain storage.
package tool

import (
	"errors"
	"fmt"
	"sync"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/Faultbox/terrain-projector/internal/composite"
	"github.com/Faultbox/terrain-projector/internal/logger"
	"github.com/Faultbox/terrain-projector/internal/projector"
	"github.com/Faultbox/terrain-projector/internal/storage"
	"github.com/Faultbox/terrain-projector/pkg/heightmap"
)

// ErrUninitialized is returned when the tool has no terrain to work on.
var ErrUninitialized = errors.New("height tool not initialized")

// Tool is the height projection editor for one terrain.
// All methods are safe for concurrent use; they are serialized so that
// no edit interleaves with a recomposition.
type Tool struct {
	mu sync.Mutex

	engine   *composite.Engine
	model    *projector.Model
	storage  storage.TerrainStorage
	baseline *heightmap.Heightmap // Source of every recomposition, replaced by Bake
	current  *heightmap.Heightmap // Last committed result
	last     *composite.Result
	synced   bool // current is the newest commit in storage
	bakes    int

	log *zap.Logger
}

// New creates an uninitialized tool.
func New(engine *composite.Engine) *Tool {
	return &Tool{
		engine: engine,
		model:  projector.NewModel(),
		log:    logger.Named("tool"),
	}
}

// Initialize binds the tool to a terrain and takes its current heightmap as the baseline.
// Existing projectors are kept; call Recompute to apply them.
func (t *Tool) Initialize(s storage.TerrainStorage) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.storage = nil
	t.baseline = nil
	t.current = nil
	t.synced = false

	if s == nil {
		return ErrUninitialized
	}
	h, err := s.Load()
	if err != nil {
		return fmt.Errorf("loading terrain: %w", err)
	}
	if err := h.Validate(); err != nil {
		return err
	}

	t.storage = s
	t.baseline = h
	t.current = h.Clone()
	t.log.Info("terrain bound",
		zap.Int("width", h.Width),
		zap.Int("height", h.Height),
		zap.Float32("size_x", h.Extent.Size.X),
		zap.Float32("size_z", h.Extent.Size.Y))
	return nil
}

// Initialized reports whether a terrain is bound.
func (t *Tool) Initialized() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.storage != nil
}

// Recompute composes every projector over the baseline and commits the result.
func (t *Tool) Recompute() (*composite.Result, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.recompose("explicit")
}

// recompose must be called with mu held.
func (t *Tool) recompose(reason string) (*composite.Result, error) {
	if t.storage == nil {
		return nil, ErrUninitialized
	}

	res, err := t.engine.Compose(t.baseline, t.model.Snapshot())
	if err != nil {
		t.log.Error("recomposition failed", zap.String("reason", reason), zap.Error(err))
		return nil, err
	}
	if err := t.storage.Commit(res.Heightmap); err != nil {
		t.log.Error("commit failed", zap.String("reason", reason), zap.Error(err))
		return nil, fmt.Errorf("committing heightmap: %w", err)
	}

	t.current = res.Heightmap
	t.last = res
	t.synced = true
	t.model.MarkClean()

	for _, w := range multierr.Errors(res.Warnings) {
		t.log.Debug("projector skipped", zap.Error(w))
	}
	t.log.Debug("recomposed",
		zap.String("reason", reason),
		zap.Int("projectors", res.Stats.Applied),
		zap.Int("skipped", res.Stats.Skipped),
		zap.Int("texels", res.Stats.TexelsWritten))
	return res, nil
}

// recomposeIfBound recomposes after an edit. Edits made before Initialize only
// change the list.
func (t *Tool) recomposeIfBound(reason string) error {
	if t.storage == nil {
		return nil
	}
	_, err := t.recompose(reason)
	return err
}

// AddProjector appends a projector and recomposes.
func (t *Tool) AddProjector(p projector.Projector) (projector.ID, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	id := t.model.Add(p)
	return id, t.recomposeIfBound("add")
}

// RemoveProjector deletes a projector and recomposes.
func (t *Tool) RemoveProjector(id projector.ID) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.model.Remove(id); err != nil {
		return err
	}
	return t.recomposeIfBound("remove")
}

// MoveProjector changes a projector's position in the list and recomposes.
func (t *Tool) MoveProjector(id projector.ID, to int) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.model.Move(id, to); err != nil {
		return err
	}
	return t.recomposeIfBound("reorder")
}

// UpdateProjector replaces a projector's parameters and recomposes.
func (t *Tool) UpdateProjector(p projector.Projector) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.model.Update(p); err != nil {
		return err
	}
	return t.recomposeIfBound("property")
}

// NotifyTransformChanged records a projector's new transform and recomposes
// if it differs from the last composed one. It reports whether a recomposition ran.
func (t *Tool) NotifyTransformChanged(id projector.ID, tr projector.Transform) (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.storage == nil {
		return false, ErrUninitialized
	}
	moved, err := t.model.SetTransform(id, tr)
	if err != nil || !moved {
		return false, err
	}
	if _, err := t.recompose("transform"); err != nil {
		return false, err
	}
	return true, nil
}

// SetTransform records a projector's transform without recomposing.
// Hosts that poll call Poll afterwards.
func (t *Tool) SetTransform(id projector.ID, tr projector.Transform) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	_, err := t.model.SetTransform(id, tr)
	return err
}

// Poll recomposes once if any projector moved since the last composition.
// It reports whether a recomposition ran.
func (t *Tool) Poll() (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.storage == nil {
		return false, ErrUninitialized
	}
	id, moved := t.model.FirstMoved()
	if !moved {
		return false, nil
	}
	t.log.Debug("projector moved", zap.Uint64("id", uint64(id)))
	if _, err := t.recompose("poll"); err != nil {
		return false, err
	}
	return true, nil
}

// Bake makes the current terrain the new baseline and discards all projectors.
func (t *Tool) Bake() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.storage == nil {
		return ErrUninitialized
	}
	// The store may hold newer commits than the loaded baseline.
	if !t.synced {
		if err := t.storage.Commit(t.current); err != nil {
			return fmt.Errorf("committing heightmap: %w", err)
		}
		t.synced = true
	}
	if b, ok := t.storage.(storage.Baseliner); ok {
		if err := b.MarkBaseline(); err != nil {
			return fmt.Errorf("marking baseline: %w", err)
		}
	}

	discarded := t.model.Len()
	t.baseline = t.current.Clone()
	t.model.Clear()
	t.bakes++
	t.log.Info("baked", zap.Int("discarded_projectors", discarded), zap.Int("bakes", t.bakes))
	return nil
}

// Projectors returns the projector list in composition order.
func (t *Tool) Projectors() []projector.Projector {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.model.Snapshot()
}

// Projector returns one projector by ID.
func (t *Tool) Projector(id projector.ID) (projector.Projector, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.model.Get(id)
}

// Current returns a copy of the last committed heightmap.
func (t *Tool) Current() (*heightmap.Heightmap, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.current == nil {
		return nil, ErrUninitialized
	}
	return t.current.Clone(), nil
}

// Baseline returns a copy of the heightmap every recomposition starts from.
func (t *Tool) Baseline() (*heightmap.Heightmap, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.baseline == nil {
		return nil, ErrUninitialized
	}
	return t.baseline.Clone(), nil
}

// LastResult returns the most recent successful composition, or nil.
func (t *Tool) LastResult() *composite.Result {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.last
}
