// Package scene reads and writes YAML scene documents: a terrain plus the
// ordered projector list composed over it.
package scene

import (
	"errors"
	"fmt"
	"image/color"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"

	"github.com/Faultbox/terrain-projector/internal/projector"
	"github.com/Faultbox/terrain-projector/pkg/brush"
	"github.com/Faultbox/terrain-projector/pkg/math"
)

// SolidPrefix marks a brush entry as a constant value instead of an image path,
// e.g. "solid:0.5".
const SolidPrefix = "solid:"

// Document is the on-disk scene layout.
type Document struct {
	Terrain    Terrain     `yaml:"terrain"`
	Projectors []Projector `yaml:"projectors,omitempty"`
}

// Terrain locates the heightmap and describes a flat one to create when it is missing.
type Terrain struct {
	Heightmap string     `yaml:"heightmap,omitempty"` // R16 file or sqlite:<path>
	Width     int        `yaml:"width,omitempty"`
	Height    int        `yaml:"height,omitempty"`
	Origin    [3]float32 `yaml:"origin"`
	Size      [2]float32 `yaml:"size"`
	Fill      float32    `yaml:"fill,omitempty"`
}

// Projector is one projector entry. Omitted scale and strength take the
// projector defaults.
type Projector struct {
	Name       string              `yaml:"name,omitempty"`
	Position   [3]float32          `yaml:"position"`
	Yaw        float32             `yaml:"yaw,omitempty"`
	Scale      *[2]float32         `yaml:"scale,omitempty"`
	Brush      string              `yaml:"brush"`
	Mode       projector.BlendMode `yaml:"mode"`
	Strength   *float32            `yaml:"strength,omitempty"`
	Offset     float32             `yaml:"offset,omitempty"`
	GizmoColor string              `yaml:"gizmo_color,omitempty"`
}

// Scene is a parsed document together with the directory its relative paths resolve against.
type Scene struct {
	Path string
	Doc  Document
}

// Load reads a scene file.
func Load(path string) (*Scene, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening scene: %w", err)
	}
	defer f.Close()

	doc, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("scene %s: %w", path, err)
	}
	return &Scene{Path: path, Doc: *doc}, nil
}

// Parse decodes a scene document. Unknown keys are errors.
func Parse(r io.Reader) (*Document, error) {
	var doc Document
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("empty scene document")
		}
		return nil, err
	}
	return &doc, nil
}

// Save writes the scene document to s.Path.
func (s *Scene) Save() error {
	data, err := yaml.Marshal(&s.Doc)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(s.Path), 0755); err != nil {
		return err
	}
	return os.WriteFile(s.Path, data, 0644)
}

// Resolve makes a scene-relative path usable from the working directory.
func (s *Scene) Resolve(path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(filepath.Dir(s.Path), path)
}

// Projectors builds the projector list in document order. Brush images are
// loaded through cache; an entry whose brush cannot be loaded keeps a nil
// brush so the compositor skips it with a warning. Brush failures are
// returned together, after the full list.
func (s *Scene) Projectors(cache *brush.Cache) ([]projector.Projector, error) {
	out := make([]projector.Projector, 0, len(s.Doc.Projectors))
	var brushErrs error
	for i, e := range s.Doc.Projectors {
		p, err := e.build()
		if err != nil {
			return nil, fmt.Errorf("projector %d (%s): %w", i, e.Name, err)
		}
		b, err := s.loadBrush(cache, e.Brush)
		if err != nil {
			brushErrs = multierr.Append(brushErrs, fmt.Errorf("projector %d (%s): %w", i, e.Name, err))
		}
		p.Brush = b
		out = append(out, p)
	}
	return out, brushErrs
}

func (s *Scene) loadBrush(cache *brush.Cache, ref string) (*brush.Brush, error) {
	if ref == "" {
		return nil, errors.New("no brush")
	}
	if v, ok := strings.CutPrefix(ref, SolidPrefix); ok {
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 32)
		if err != nil {
			return nil, fmt.Errorf("solid brush %q: %w", ref, err)
		}
		return brush.Solid(math.Clamp01(float32(f))), nil
	}
	return cache.Get(s.Resolve(ref))
}

func (e Projector) build() (projector.Projector, error) {
	p := projector.Default()
	p.Name = e.Name
	p.Transform = projector.Transform{
		Position: math.Vec3{X: e.Position[0], Y: e.Position[1], Z: e.Position[2]},
		Yaw:      e.Yaw,
	}
	if e.Scale != nil {
		p.Scale = math.Vec2{X: e.Scale[0], Y: e.Scale[1]}
	}
	p.Mode = e.Mode
	if e.Strength != nil {
		p.Strength = *e.Strength
	}
	p.Offset = e.Offset
	if e.GizmoColor != "" {
		c, err := ParseColor(e.GizmoColor)
		if err != nil {
			return p, err
		}
		p.GizmoColor = c
	}
	return p, nil
}

// Entry converts a projector back to a document entry. brushRef is written as is.
func Entry(p projector.Projector, brushRef string) Projector {
	scale := [2]float32{p.Scale.X, p.Scale.Y}
	strength := p.Strength
	pos := p.Transform.Position
	return Projector{
		Name:       p.Name,
		Position:   [3]float32{pos.X, pos.Y, pos.Z},
		Yaw:        p.Transform.Yaw,
		Scale:      &scale,
		Brush:      brushRef,
		Mode:       p.Mode,
		Strength:   &strength,
		Offset:     p.Offset,
		GizmoColor: FormatColor(p.GizmoColor),
	}
}

// ParseColor parses "#rrggbb" or "#rrggbbaa".
func ParseColor(s string) (color.RGBA, error) {
	hex := strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(hex) != 6 && len(hex) != 8 {
		return color.RGBA{}, fmt.Errorf("invalid color %q", s)
	}
	n, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return color.RGBA{}, fmt.Errorf("invalid color %q: %w", s, err)
	}
	if len(hex) == 6 {
		n = n<<8 | 0xff
	}
	return color.RGBA{R: uint8(n >> 24), G: uint8(n >> 16), B: uint8(n >> 8), A: uint8(n)}, nil
}

// FormatColor formats c as "#rrggbb", adding alpha only when it is not opaque.
func FormatColor(c color.RGBA) string {
	if c.A == 0xff {
		return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
	}
	return fmt.Sprintf("#%02x%02x%02x%02x", c.R, c.G, c.B, c.A)
}
