// Package preview renders heightmaps as grayscale PNG images with projector
// footprints outlined in their gizmo colors.
package preview

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	stdmath "math"
	"os"
	"path/filepath"
	"time"

	xdraw "golang.org/x/image/draw"

	"github.com/Faultbox/terrain-projector/internal/projector"
	"github.com/Faultbox/terrain-projector/pkg/heightmap"
	"github.com/Faultbox/terrain-projector/pkg/math"
)

// Options control rendering.
type Options struct {
	Scale    int  // Output pixels per texel, values below 1 mean 1
	Outlines bool // Draw projector footprints
}

// Render draws h with +Z pointing up and outlines each projector's footprint.
func Render(h *heightmap.Heightmap, projectors []projector.Projector, opts Options) *image.RGBA {
	scale := max(opts.Scale, 1)

	gray := image.NewGray(image.Rect(0, 0, h.Width, h.Height))
	for y := 0; y < h.Height; y++ {
		row := h.Height - 1 - y // Flip so the last row (max Z) is at the top
		for x := 0; x < h.Width; x++ {
			gray.Pix[row*gray.Stride+x] = toGray(h.At(x, y))
		}
	}

	img := image.NewRGBA(image.Rect(0, 0, h.Width*scale, h.Height*scale))
	xdraw.NearestNeighbor.Scale(img, img.Bounds(), gray, gray.Bounds(), xdraw.Src, nil)

	if opts.Outlines {
		for i := range projectors {
			drawFootprint(img, h.Extent, &projectors[i])
		}
	}
	return img
}

func toGray(v float32) uint8 {
	return uint8(math.Clamp01(v)*255 + 0.5)
}

// drawFootprint outlines the rotated footprint rectangle.
func drawFootprint(img *image.RGBA, ext heightmap.Extent, p *projector.Projector) {
	if !p.Scale.Positive() {
		return
	}
	w := float64(img.Bounds().Dx())
	h := float64(img.Bounds().Dy())
	toPixel := func(c math.Vec2) (float64, float64) {
		u := float64((c.X - ext.Origin.X) / ext.Size.X)
		v := float64((c.Y - ext.Origin.Z) / ext.Size.Y)
		return u * w, (1 - v) * h
	}

	corners := p.Corners()
	for i := range corners {
		x0, y0 := toPixel(corners[i])
		x1, y1 := toPixel(corners[(i+1)%len(corners)])
		drawLine(img, x0, y0, x1, y1, p.GizmoColor)
	}
}

// drawLine draws the part of a segment that lies inside img.
func drawLine(img *image.RGBA, x0, y0, x1, y1 float64, c color.RGBA) {
	b := img.Bounds()
	x0, y0, x1, y1, ok := clipLine(x0, y0, x1, y1, float64(b.Min.X), float64(b.Min.Y), float64(b.Max.X), float64(b.Max.Y))
	if !ok {
		return
	}
	steps := int(stdmath.Ceil(max(stdmath.Abs(x1-x0), stdmath.Abs(y1-y0))))
	if steps == 0 {
		img.SetRGBA(int(stdmath.Floor(x0)), int(stdmath.Floor(y0)), c)
		return
	}
	for i := 0; i <= steps; i++ {
		t := float64(i) / float64(steps)
		img.SetRGBA(int(stdmath.Floor(x0+(x1-x0)*t)), int(stdmath.Floor(y0+(y1-y0)*t)), c)
	}
}

// clipLine clips a segment to [minX,maxX]×[minY,maxY] (Liang-Barsky).
func clipLine(x0, y0, x1, y1, minX, minY, maxX, maxY float64) (float64, float64, float64, float64, bool) {
	dx, dy := x1-x0, y1-y0
	t0, t1 := 0.0, 1.0
	edges := [4][2]float64{
		{-dx, x0 - minX},
		{dx, maxX - x0},
		{-dy, y0 - minY},
		{dy, maxY - y0},
	}
	for _, e := range edges {
		p, q := e[0], e[1]
		if p == 0 {
			if q < 0 {
				return 0, 0, 0, 0, false
			}
			continue
		}
		r := q / p
		if p < 0 {
			if r > t1 {
				return 0, 0, 0, 0, false
			}
			t0 = max(t0, r)
		} else {
			if r < t0 {
				return 0, 0, 0, 0, false
			}
			t1 = min(t1, r)
		}
	}
	if stdmath.IsNaN(t0) || stdmath.IsNaN(t1) {
		return 0, 0, 0, 0, false
	}
	return x0 + dx*t0, y0 + dy*t0, x0 + dx*t1, y0 + dy*t1, true
}

// Write encodes img as PNG at path, creating parent directories.
func Write(path string, img image.Image) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("creating output dir: %w", err)
		}
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating file: %w", err)
	}
	defer file.Close()

	if err := png.Encode(file, img); err != nil {
		return fmt.Errorf("encoding PNG: %w", err)
	}
	return file.Close()
}

// TimestampedName returns dir/prefix_<timestamp>.png.
func TimestampedName(dir, prefix string) string {
	timestamp := time.Now().Format("2006-01-02_15-04-05")
	return filepath.Join(dir, fmt.Sprintf("%s_%s.png", prefix, timestamp))
}
