package brush

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"  // GIF decoder registration
	_ "image/jpeg" // JPEG decoder registration
	_ "image/png"  // PNG decoder registration
	"io"
	"os"
	"path/filepath"
	"strings"

	_ "golang.org/x/image/bmp"  // BMP decoder registration
	_ "golang.org/x/image/tiff" // TIFF decoder registration

	"github.com/Faultbox/terrain-projector/pkg/formats"
)

// FromImage converts any image to a brush using 16-bit luminance.
// Alpha is ignored; transparent texels keep their gray value.
func FromImage(name string, img image.Image) *Brush {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	pix := make([]float32, w*h)

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			c := img.At(bounds.Min.X+x, bounds.Min.Y+y)
			g := color.Gray16Model.Convert(c).(color.Gray16)
			pix[y*w+x] = float32(g.Y) / 0xffff
		}
	}

	return &Brush{Name: name, Width: w, Height: h, Pix: pix}
}

// Decode reads a brush from an encoded image.
// Supported formats: PNG, JPEG, GIF, BMP, TIFF.
func Decode(name string, r io.Reader) (*Brush, error) {
	img, format, err := image.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("decoding brush %q: %w", name, err)
	}
	b := FromImage(name, img)
	if err := b.Validate(); err != nil {
		return nil, fmt.Errorf("%s brush: %w", format, err)
	}
	return b, nil
}

// Load reads a brush image from disk. TGA files are recognized by extension.
func Load(path string) (*Brush, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("reading brush: %w", err)
	}

	name := filepath.Base(path)
	if strings.EqualFold(filepath.Ext(path), ".tga") {
		img, err := formats.DecodeTGA(data)
		if err != nil {
			return nil, fmt.Errorf("decoding brush %q: %w", name, err)
		}
		return FromImage(name, img), nil
	}
	return Decode(name, bytes.NewReader(data))
}

// Cache loads each brush path once.
type Cache struct {
	brushes map[string]*Brush
}

// NewCache creates an empty brush cache.
func NewCache() *Cache {
	return &Cache{brushes: make(map[string]*Brush)}
}

// Get returns the brush for path, loading it on first use.
func (c *Cache) Get(path string) (*Brush, error) {
	key := filepath.Clean(path)
	if b, ok := c.brushes[key]; ok {
		return b, nil
	}
	b, err := Load(key)
	if err != nil {
		return nil, err
	}
	c.brushes[key] = b
	return b, nil
}
