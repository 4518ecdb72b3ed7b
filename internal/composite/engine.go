// Package composite projects brushes onto a heightmap and blends them in order.
package composite

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/Faultbox/terrain-projector/internal/logger"
	"github.com/Faultbox/terrain-projector/internal/projector"
	"github.com/Faultbox/terrain-projector/pkg/brush"
	"github.com/Faultbox/terrain-projector/pkg/formats"
	"github.com/Faultbox/terrain-projector/pkg/heightmap"
	"github.com/Faultbox/terrain-projector/pkg/math"
)

// ErrInvalidProjector marks a projector that was skipped for the current pass.
var ErrInvalidProjector = errors.New("invalid projector")

// Precision selects the numeric format of the working buffer.
type Precision uint8

const (
	// PrecisionFloat32 keeps full float32 samples between projectors.
	PrecisionFloat32 Precision = iota
	// PrecisionR16 snaps samples to 16-bit steps after every write, like a
	// chain of blits into an R16 render target.
	PrecisionR16
)

// String returns the config name of the precision.
func (p Precision) String() string {
	switch p {
	case PrecisionFloat32:
		return "float32"
	case PrecisionR16:
		return "r16"
	default:
		return fmt.Sprintf("Precision(%d)", p)
	}
}

// ParsePrecision parses a precision name. An empty name selects float32.
func ParsePrecision(s string) (Precision, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "float32", "float":
		return PrecisionFloat32, nil
	case "r16", "16bit":
		return PrecisionR16, nil
	default:
		return 0, fmt.Errorf("unknown precision %q", s)
	}
}

// Options configure an Engine.
type Options struct {
	Filter    brush.Filter
	Precision Precision
}

// Stats describes one composition pass.
type Stats struct {
	Applied       int // Projectors that were evaluated
	Skipped       int // Projectors rejected as invalid
	Offscreen     int // Evaluated projectors that touched no texel
	TexelsWritten int
	Duration      time.Duration
}

// Result is the output of one composition pass.
type Result struct {
	Heightmap *heightmap.Heightmap
	Stats     Stats
	// Warnings lists skipped projectors, combined with multierr. Nil when none were skipped.
	Warnings error
}

// Engine composites projectors onto heightmaps. It holds no state between passes.
type Engine struct {
	opts Options
}

// New creates an engine.
func New(opts Options) *Engine {
	return &Engine{opts: opts}
}

// Options returns the engine configuration.
func (e *Engine) Options() Options {
	return e.opts
}

// Compose applies projectors in order to a copy of src and returns the copy.
// src is never modified. A resource mismatch fails the whole pass; invalid
// projectors are skipped and reported in Result.Warnings.
func (e *Engine) Compose(src *heightmap.Heightmap, projectors []projector.Projector) (*Result, error) {
	start := time.Now()
	log := logger.Named("composite")

	if src == nil {
		return nil, fmt.Errorf("%w: no source heightmap", heightmap.ErrResourceMismatch)
	}
	if err := src.Validate(); err != nil {
		return nil, err
	}
	for i := range projectors {
		if b := projectors[i].Brush; b != nil {
			if err := b.Validate(); err != nil {
				return nil, fmt.Errorf("projector %d: %w", projectors[i].ID, err)
			}
		}
	}

	working := src.Clone()
	if e.opts.Precision == PrecisionR16 {
		for i, v := range working.Samples {
			working.Samples[i] = formats.Quantize16(v)
		}
	}

	res := &Result{Heightmap: working}
	for i := range projectors {
		p := &projectors[i]
		if problem := p.Problem(); problem != "" {
			res.Stats.Skipped++
			res.Warnings = multierr.Append(res.Warnings,
				fmt.Errorf("%w: %d (%s): %s", ErrInvalidProjector, p.ID, p.Name, problem))
			log.Warn("skipping projector", zap.Uint64("id", uint64(p.ID)), zap.String("name", p.Name), zap.String("reason", problem))
			continue
		}

		n := e.Apply(working, working.Extent, p)
		res.Stats.Applied++
		res.Stats.TexelsWritten += n
		if n == 0 {
			res.Stats.Offscreen++
		}
		log.Debug("projector applied",
			zap.Uint64("id", uint64(p.ID)),
			zap.Stringer("mode", p.Mode),
			zap.Int("texels", n))
	}

	res.Stats.Duration = time.Since(start)
	log.Debug("composition finished",
		zap.Int("applied", res.Stats.Applied),
		zap.Int("skipped", res.Stats.Skipped),
		zap.Int("texels", res.Stats.TexelsWritten),
		zap.Duration("took", res.Stats.Duration))
	return res, nil
}

// Apply projects one projector onto dst, which covers the world extent ext,
// and returns the number of texels written. Invalid projectors write nothing.
func (e *Engine) Apply(dst heightmap.Buffer, ext heightmap.Extent, p *projector.Projector) int {
	if p.Problem() != "" {
		return 0
	}
	w, h := dst.Size()
	r := texelRange(ext, w, h, p)
	if r.Empty() {
		return 0
	}

	fp := newFootprint(ext, p)
	written := 0
	for y := r.MinY; y < r.MaxY; y++ {
		for x := r.MinX; x < r.MaxX; x++ {
			u, v := heightmap.TexelUV(x, y, w, h)
			bu, bv, inside := fp.brushUV(u, v)
			if !inside {
				continue
			}
			sample := p.Brush.Sample(bu, bv, e.opts.Filter)
			out := math.Clamp01(Blend(p.Mode, dst.At(x, y), sample, p.Strength, p.Offset))
			if e.opts.Precision == PrecisionR16 {
				out = formats.Quantize16(out)
			}
			dst.Set(x, y, out)
			written++
		}
	}
	return written
}
