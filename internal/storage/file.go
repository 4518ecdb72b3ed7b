package storage

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/Faultbox/terrain-projector/pkg/formats"
	"github.com/Faultbox/terrain-projector/pkg/heightmap"
	"github.com/Faultbox/terrain-projector/pkg/math"
)

// fileMeta is the YAML sidecar stored next to an R16 heightmap.
type fileMeta struct {
	Format string     `yaml:"format"`
	Width  int        `yaml:"width"`
	Height int        `yaml:"height"`
	Origin [3]float32 `yaml:"origin"`
	Size   [2]float32 `yaml:"size"`
}

const r16Format = "r16le"

// MetaPath returns the sidecar path for an R16 heightmap file.
func MetaPath(path string) string {
	return path + ".yaml"
}

// File stores a heightmap as a raw R16 file plus a YAML sidecar.
// Samples are quantized to 16 bits on every commit.
type File struct {
	path string
	meta fileMeta
}

// OpenFile opens an existing R16 heightmap and its sidecar.
func OpenFile(path string) (*File, error) {
	meta, err := readMeta(MetaPath(path))
	if err != nil {
		return nil, err
	}
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("opening heightmap: %w", err)
	}
	return &File{path: path, meta: meta}, nil
}

// CreateFile writes h to path, replacing any existing file.
func CreateFile(path string, h *heightmap.Heightmap) (*File, error) {
	if err := h.Validate(); err != nil {
		return nil, err
	}
	f := &File{path: path, meta: metaFor(h)}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("creating heightmap dir: %w", err)
	}
	if err := f.write(h); err != nil {
		return nil, err
	}
	return f, nil
}

// ExportFile writes h to path without keeping a handle.
func ExportFile(path string, h *heightmap.Heightmap) error {
	_, err := CreateFile(path, h)
	return err
}

// Path returns the R16 file path.
func (f *File) Path() string {
	return f.path
}

// Load reads the heightmap from disk.
func (f *File) Load() (*heightmap.Heightmap, error) {
	samples, w, h, err := formats.ReadR16File(f.path, f.meta.Width, f.meta.Height)
	if err != nil {
		return nil, err
	}
	hm := &heightmap.Heightmap{
		Width:   w,
		Height:  h,
		Samples: samples,
		Extent: heightmap.Extent{
			Origin: math.Vec3{X: f.meta.Origin[0], Y: f.meta.Origin[1], Z: f.meta.Origin[2]},
			Size:   math.Vec2{X: f.meta.Size[0], Y: f.meta.Size[1]},
		},
	}
	if err := hm.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", f.path, err)
	}
	return hm, nil
}

// Commit overwrites the file with h.
func (f *File) Commit(h *heightmap.Heightmap) error {
	if err := checkCommit(h, f.meta.Width, f.meta.Height); err != nil {
		return err
	}
	f.meta = metaFor(h)
	return f.write(h)
}

// write replaces the R16 data and sidecar through temp files so readers never
// see a half-written heightmap.
func (f *File) write(h *heightmap.Heightmap) error {
	metaData, err := yaml.Marshal(f.meta)
	if err != nil {
		return fmt.Errorf("encoding sidecar: %w", err)
	}
	if err := writeAtomic(f.path, formats.EncodeR16(h.Samples)); err != nil {
		return fmt.Errorf("writing heightmap: %w", err)
	}
	if err := writeAtomic(MetaPath(f.path), metaData); err != nil {
		return fmt.Errorf("writing sidecar: %w", err)
	}
	return nil
}

func metaFor(h *heightmap.Heightmap) fileMeta {
	o, s := h.Extent.Origin, h.Extent.Size
	return fileMeta{
		Format: r16Format,
		Width:  h.Width,
		Height: h.Height,
		Origin: [3]float32{o.X, o.Y, o.Z},
		Size:   [2]float32{s.X, s.Y},
	}
}

func readMeta(path string) (fileMeta, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return fileMeta{}, fmt.Errorf("reading sidecar: %w", err)
	}
	var meta fileMeta
	if err := yaml.Unmarshal(data, &meta); err != nil {
		return fileMeta{}, fmt.Errorf("parsing sidecar %s: %w", path, err)
	}
	if meta.Format != "" && meta.Format != r16Format {
		return fileMeta{}, fmt.Errorf("%w: sidecar format %q", heightmap.ErrResourceMismatch, meta.Format)
	}
	return meta, nil
}

func writeAtomic(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
