package tool

import (
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"github.com/Faultbox/terrain-projector/internal/composite"
	"github.com/Faultbox/terrain-projector/internal/projector"
	"github.com/Faultbox/terrain-projector/internal/storage"
	"github.com/Faultbox/terrain-projector/pkg/brush"
	"github.com/Faultbox/terrain-projector/pkg/heightmap"
	"github.com/Faultbox/terrain-projector/pkg/math"
)

func flatTerrain(fill float32) *heightmap.Heightmap {
	return heightmap.New(16, 16, heightmap.Extent{Size: math.Vec2{X: 16, Y: 16}}, fill)
}

func newBoundTool(t *testing.T, fill float32) (*Tool, *storage.Memory) {
	t.Helper()
	mem, err := storage.NewMemory(flatTerrain(fill))
	if err != nil {
		t.Fatalf("NewMemory failed: %v", err)
	}
	tl := New(composite.New(composite.Options{}))
	if err := tl.Initialize(mem); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	return tl, mem
}

// raise is a projector that lifts a 4×4 world-unit square to 1.
func raise(x, z float32) projector.Projector {
	p := projector.Default()
	p.Transform.Position = math.Vec3{X: x, Y: 10, Z: z}
	p.Scale = math.Vec2{X: 4, Y: 4}
	p.Brush = brush.Solid(1)
	p.Strength = 1
	return p
}

func sample(t *testing.T, tl *Tool, x, y int) float32 {
	t.Helper()
	h, err := tl.Current()
	if err != nil {
		t.Fatalf("Current failed: %v", err)
	}
	return h.At(x, y)
}

type failingStorage struct {
	storage.TerrainStorage
	fail bool
}

func (f *failingStorage) Commit(h *heightmap.Heightmap) error {
	if f.fail {
		return errors.New("disk full")
	}
	return f.TerrainStorage.Commit(h)
}

func TestUninitialized(t *testing.T) {
	tl := New(composite.New(composite.Options{}))

	if _, err := tl.Recompute(); !errors.Is(err, ErrUninitialized) {
		t.Errorf("Recompute: expected ErrUninitialized, got %v", err)
	}
	if _, err := tl.Poll(); !errors.Is(err, ErrUninitialized) {
		t.Errorf("Poll: expected ErrUninitialized, got %v", err)
	}
	if err := tl.Bake(); !errors.Is(err, ErrUninitialized) {
		t.Errorf("Bake: expected ErrUninitialized, got %v", err)
	}
	if _, err := tl.NotifyTransformChanged(1, projector.Transform{}); !errors.Is(err, ErrUninitialized) {
		t.Errorf("NotifyTransformChanged: expected ErrUninitialized, got %v", err)
	}
	if _, err := tl.Current(); !errors.Is(err, ErrUninitialized) {
		t.Errorf("Current: expected ErrUninitialized, got %v", err)
	}

	// The list can be edited before a terrain is bound.
	if _, err := tl.AddProjector(raise(8, 8)); err != nil {
		t.Errorf("AddProjector before Initialize: %v", err)
	}
	if tl.Initialized() {
		t.Error("tool should not report initialized")
	}
}

func TestInitializeThenRecompute(t *testing.T) {
	tl := New(composite.New(composite.Options{}))
	if _, err := tl.AddProjector(raise(8, 8)); err != nil {
		t.Fatalf("AddProjector failed: %v", err)
	}
	mem, _ := storage.NewMemory(flatTerrain(0))
	if err := tl.Initialize(mem); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	if mem.Commits() != 0 {
		t.Error("Initialize must not commit")
	}

	res, err := tl.Recompute()
	if err != nil {
		t.Fatalf("Recompute failed: %v", err)
	}
	if res.Stats.TexelsWritten != 16 {
		t.Errorf("expected 16 texels written, got %d", res.Stats.TexelsWritten)
	}
	stored, _ := mem.Load()
	if stored.At(8, 8) != 1 || stored.At(0, 0) != 0 {
		t.Error("committed heightmap does not contain the projection")
	}
	if tl.LastResult() != res {
		t.Error("LastResult should return the latest composition")
	}
}

func TestInitializeFailure(t *testing.T) {
	tl, _ := newBoundTool(t, 0)
	bad := &heightmap.Heightmap{Width: 2, Height: 2, Extent: heightmap.Extent{Size: math.Vec2{X: 1, Y: 1}}}
	if err := tl.Initialize(rawStorage{bad}); err == nil {
		t.Fatal("expected Initialize to fail")
	}
	if _, err := tl.Recompute(); !errors.Is(err, ErrUninitialized) {
		t.Errorf("expected ErrUninitialized after failed Initialize, got %v", err)
	}
}

func TestInitializeNil(t *testing.T) {
	tl, _ := newBoundTool(t, 0)
	if err := tl.Initialize(nil); !errors.Is(err, ErrUninitialized) {
		t.Errorf("expected ErrUninitialized, got %v", err)
	}
	if tl.Initialized() {
		t.Error("tool should be unbound after Initialize(nil)")
	}
}

// rawStorage hands out a heightmap without validating it.
type rawStorage struct{ h *heightmap.Heightmap }

func (r rawStorage) Load() (*heightmap.Heightmap, error) { return r.h, nil }

func (r rawStorage) Commit(*heightmap.Heightmap) error { return nil }

func TestNotifyTransformChanged(t *testing.T) {
	tl, mem := newBoundTool(t, 0)
	id, err := tl.AddProjector(raise(4, 4))
	if err != nil {
		t.Fatalf("AddProjector failed: %v", err)
	}
	commits := mem.Commits()

	moved, err := tl.NotifyTransformChanged(id, projector.Transform{Position: math.Vec3{X: 12, Y: 10, Z: 12}})
	if err != nil || !moved {
		t.Fatalf("NotifyTransformChanged() = %v, %v; want true, nil", moved, err)
	}
	if sample(t, tl, 4, 4) != 0 || sample(t, tl, 12, 12) != 1 {
		t.Error("projection did not follow the new transform")
	}
	if mem.Commits() != commits+1 {
		t.Errorf("expected one commit, got %d", mem.Commits()-commits)
	}

	moved, err = tl.NotifyTransformChanged(id, projector.Transform{Position: math.Vec3{X: 12, Y: 10, Z: 12}})
	if err != nil || moved {
		t.Errorf("repeating the same transform: got %v, %v; want false, nil", moved, err)
	}

	if _, err := tl.NotifyTransformChanged(999, projector.Transform{}); !errors.Is(err, projector.ErrUnknownProjector) {
		t.Errorf("expected ErrUnknownProjector, got %v", err)
	}
}

func TestPoll(t *testing.T) {
	tl, mem := newBoundTool(t, 0)
	a, _ := tl.AddProjector(raise(4, 4))
	b, _ := tl.AddProjector(raise(12, 4))

	if ran, _ := tl.Poll(); ran {
		t.Error("Poll with no changes should not recompose")
	}

	_ = tl.SetTransform(a, projector.Transform{Position: math.Vec3{X: 4, Z: 12}})
	_ = tl.SetTransform(b, projector.Transform{Position: math.Vec3{X: 12, Z: 12}, Yaw: 45})
	commits := mem.Commits()

	ran, err := tl.Poll()
	if err != nil || !ran {
		t.Fatalf("Poll() = %v, %v; want true, nil", ran, err)
	}
	if mem.Commits() != commits+1 {
		t.Errorf("expected exactly one recomposition, got %d", mem.Commits()-commits)
	}
	if sample(t, tl, 4, 12) != 1 || sample(t, tl, 12, 12) != 1 {
		t.Error("both moved projectors must be applied in the single pass")
	}

	if ran, _ := tl.Poll(); ran {
		t.Error("second Poll should find nothing to do")
	}
}

func TestEditsRecompose(t *testing.T) {
	tl, _ := newBoundTool(t, 0.5)
	up, _ := tl.AddProjector(raise(8, 8))

	down := raise(8, 8)
	down.Mode = projector.BlendMin
	down.Brush = brush.Solid(0)
	downID, _ := tl.AddProjector(down)
	if got := sample(t, tl, 8, 8); got != 0 {
		t.Errorf("raise then lower = %v, want 0", got)
	}

	if err := tl.MoveProjector(downID, 0); err != nil {
		t.Fatalf("MoveProjector failed: %v", err)
	}
	if got := sample(t, tl, 8, 8); got != 1 {
		t.Errorf("lower then raise = %v, want 1", got)
	}

	p, _ := tl.Projector(up)
	p.Strength = 0.25
	p.Mode = projector.BlendOverlay
	if err := tl.UpdateProjector(p); err != nil {
		t.Fatalf("UpdateProjector failed: %v", err)
	}
	if got := sample(t, tl, 8, 8); got != 0.25 {
		t.Errorf("lower then overlay 0.25 = %v, want 0.25", got)
	}

	if err := tl.RemoveProjector(downID); err != nil {
		t.Fatalf("RemoveProjector failed: %v", err)
	}
	if got := sample(t, tl, 8, 8); got != 0.75 {
		t.Errorf("overlay on 0.5 = %v, want 0.75", got)
	}
	if err := tl.RemoveProjector(downID); !errors.Is(err, projector.ErrUnknownProjector) {
		t.Errorf("expected ErrUnknownProjector, got %v", err)
	}
}

func TestBake(t *testing.T) {
	tl, mem := newBoundTool(t, 0)
	if _, err := tl.AddProjector(raise(8, 8)); err != nil {
		t.Fatalf("AddProjector failed: %v", err)
	}
	before, _ := tl.Current()

	if err := tl.Bake(); err != nil {
		t.Fatalf("Bake failed: %v", err)
	}
	if len(tl.Projectors()) != 0 {
		t.Error("Bake must clear the projector list")
	}
	base, _ := tl.Baseline()
	if !base.Equal(before) {
		t.Error("baseline should be the composited terrain")
	}
	if mem.Baseline() != mem.Commits() {
		t.Error("storage was not told about the bake")
	}

	// Later projectors build on the baked terrain.
	lower := raise(8, 8)
	lower.Mode = projector.BlendMin
	lower.Brush = brush.Solid(0)
	lower.Scale = math.Vec2{X: 2, Y: 2}
	if _, err := tl.AddProjector(lower); err != nil {
		t.Fatalf("AddProjector failed: %v", err)
	}
	if sample(t, tl, 7, 7) != 0 || sample(t, tl, 6, 6) != 1 {
		t.Error("projection after bake should start from the baked terrain")
	}
}

func TestBakeIdempotent(t *testing.T) {
	tl, _ := newBoundTool(t, 0.2)
	if _, err := tl.AddProjector(raise(5, 9)); err != nil {
		t.Fatalf("AddProjector failed: %v", err)
	}

	if err := tl.Bake(); err != nil {
		t.Fatalf("first Bake failed: %v", err)
	}
	first, _ := tl.Baseline()
	if err := tl.Bake(); err != nil {
		t.Fatalf("second Bake failed: %v", err)
	}
	second, _ := tl.Baseline()
	if !second.Equal(first) {
		t.Error("second bake changed the baseline")
	}

	res, err := tl.Recompute()
	if err != nil {
		t.Fatalf("Recompute failed: %v", err)
	}
	if !res.Heightmap.Equal(first) {
		t.Error("recomposing an empty list after bake should reproduce the baseline")
	}
}

func TestBakeMarksLoadedTerrain(t *testing.T) {
	s, err := storage.OpenSQLite(filepath.Join(t.TempDir(), "terrain.db"))
	if err != nil {
		t.Fatalf("OpenSQLite failed: %v", err)
	}
	defer s.Close()

	// A baked generation followed by an unbaked one from another session.
	if err := s.Commit(flatTerrain(0.2)); err != nil {
		t.Fatalf("Commit failed: %v", err)
	}
	if err := s.MarkBaseline(); err != nil {
		t.Fatalf("MarkBaseline failed: %v", err)
	}
	if err := s.Commit(flatTerrain(0.9)); err != nil {
		t.Fatalf("Commit failed: %v", err)
	}

	tl := New(composite.New(composite.Options{}))
	if err := tl.Initialize(storage.BaselineSQLite{SQLite: s}); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	if err := tl.Bake(); err != nil {
		t.Fatalf("Bake failed: %v", err)
	}

	want, _ := tl.Baseline()
	got, err := s.LoadBaseline()
	if err != nil {
		t.Fatalf("LoadBaseline failed: %v", err)
	}
	if !got.Equal(want) {
		t.Errorf("stored baseline sample = %v, want %v", got.At(0, 0), want.At(0, 0))
	}
}

func TestCommitFailureKeepsState(t *testing.T) {
	mem, _ := storage.NewMemory(flatTerrain(0))
	fs := &failingStorage{TerrainStorage: mem}
	tl := New(composite.New(composite.Options{}))
	if err := tl.Initialize(fs); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	id, _ := tl.AddProjector(raise(4, 4))

	fs.fail = true
	if _, err := tl.NotifyTransformChanged(id, projector.Transform{Position: math.Vec3{X: 12, Z: 12}}); err == nil {
		t.Fatal("expected commit failure")
	}
	if sample(t, tl, 4, 4) != 1 || sample(t, tl, 12, 12) != 0 {
		t.Error("failed commit must leave the current terrain unchanged")
	}

	// The move is still pending and is picked up once storage recovers.
	fs.fail = false
	ran, err := tl.Poll()
	if err != nil || !ran {
		t.Fatalf("Poll() = %v, %v; want true, nil", ran, err)
	}
	if sample(t, tl, 12, 12) != 1 {
		t.Error("pending move was not applied")
	}
}

func TestResourceMismatchAbortsPass(t *testing.T) {
	tl, mem := newBoundTool(t, 0)
	p := raise(8, 8)
	p.Brush = &brush.Brush{Name: "torn", Width: 8, Height: 8, Pix: make([]float32, 10)}

	if _, err := tl.AddProjector(p); !errors.Is(err, heightmap.ErrResourceMismatch) {
		t.Errorf("expected ErrResourceMismatch, got %v", err)
	}
	if mem.Commits() != 0 {
		t.Error("mismatched brush must not commit")
	}
}

func TestInvalidProjectorDoesNotAbort(t *testing.T) {
	tl, _ := newBoundTool(t, 0)
	broken := raise(4, 4)
	broken.Brush = nil
	if _, err := tl.AddProjector(broken); err != nil {
		t.Fatalf("AddProjector with missing brush: %v", err)
	}
	if _, err := tl.AddProjector(raise(12, 12)); err != nil {
		t.Fatalf("AddProjector failed: %v", err)
	}
	if sample(t, tl, 12, 12) != 1 {
		t.Error("valid projector was not applied")
	}
	if tl.LastResult().Stats.Skipped != 1 {
		t.Errorf("expected 1 skipped projector, got %d", tl.LastResult().Stats.Skipped)
	}
}

func TestConcurrentEdits(t *testing.T) {
	tl, _ := newBoundTool(t, 0)
	id, _ := tl.AddProjector(raise(8, 8))

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 10; j++ {
				pos := math.Vec3{X: float32(i + j%4), Z: float32(j)}
				if _, err := tl.NotifyTransformChanged(id, projector.Transform{Position: pos}); err != nil {
					t.Errorf("NotifyTransformChanged failed: %v", err)
					return
				}
				if _, err := tl.Poll(); err != nil {
					t.Errorf("Poll failed: %v", err)
					return
				}
			}
		}(i)
	}
	wg.Wait()

	// Whatever order the edits landed in, the terrain matches the final transform.
	final, _ := tl.Projector(id)
	want, err := composite.New(composite.Options{}).Compose(flatTerrain(0), []projector.Projector{final})
	if err != nil {
		t.Fatalf("Compose failed: %v", err)
	}
	got, _ := tl.Current()
	if !got.Equal(want.Heightmap) {
		t.Error("terrain does not match the final projector state")
	}
}
