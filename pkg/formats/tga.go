package formats

import (
	"errors"
	"fmt"
	"image"
	"image/color"
)

// TGA image types.
const (
	TGATypeTrueColor    = 2  // Uncompressed true-color
	TGATypeGray         = 3  // Uncompressed grayscale
	TGATypeTrueColorRLE = 10 // RLE compressed true-color
	TGATypeGrayRLE      = 11 // RLE compressed grayscale
)

// ErrTruncatedTGA is returned when pixel data ends early.
var ErrTruncatedTGA = errors.New("truncated TGA data")

// DecodeTGA decodes a TGA image.
// Grayscale images (types 3 and 11, 8 bpp) decode to *image.Gray, true-color
// images (types 2 and 10, 24/32 bpp) to *image.RGBA.
func DecodeTGA(data []byte) (image.Image, error) {
	if len(data) < 18 {
		return nil, fmt.Errorf("%w: header", ErrTruncatedTGA)
	}

	idLength := int(data[0])
	colorMapType := data[1]
	imageType := data[2]
	width := int(data[12]) | int(data[13])<<8
	height := int(data[14]) | int(data[15])<<8
	bpp := int(data[16])
	descriptor := data[17]

	if colorMapType != 0 {
		return nil, fmt.Errorf("color-mapped TGA not supported")
	}
	gray := imageType == TGATypeGray || imageType == TGATypeGrayRLE
	switch {
	case gray && bpp != 8:
		return nil, fmt.Errorf("unsupported grayscale TGA bit depth %d", bpp)
	case !gray && imageType != TGATypeTrueColor && imageType != TGATypeTrueColorRLE:
		return nil, fmt.Errorf("unsupported TGA type %d", imageType)
	case !gray && bpp != 24 && bpp != 32:
		return nil, fmt.Errorf("unsupported TGA bit depth %d", bpp)
	}
	if width == 0 || height == 0 {
		return nil, fmt.Errorf("invalid TGA dimensions: %dx%d", width, height)
	}

	offset := 18 + idLength
	if offset > len(data) {
		return nil, fmt.Errorf("%w: image ID", ErrTruncatedTGA)
	}

	d := tgaDecoder{
		width:       width,
		height:      height,
		bytesPP:     bpp / 8,
		topToBottom: descriptor&0x20 != 0,
	}
	if gray {
		img := image.NewGray(image.Rect(0, 0, width, height))
		d.put = func(x, y int, px []byte) { img.SetGray(x, y, color.Gray{Y: px[0]}) }
		d.out = img
	} else {
		img := image.NewRGBA(image.Rect(0, 0, width, height))
		d.put = func(x, y int, px []byte) {
			a := uint8(255)
			if len(px) == 4 {
				a = px[3]
			}
			img.SetRGBA(x, y, color.RGBA{R: px[2], G: px[1], B: px[0], A: a})
		}
		d.out = img
	}

	pixels := data[offset:]
	var err error
	if imageType == TGATypeTrueColorRLE || imageType == TGATypeGrayRLE {
		err = d.decodeRLE(pixels)
	} else {
		err = d.decodeRaw(pixels)
	}
	if err != nil {
		return nil, err
	}
	return d.out, nil
}

type tgaDecoder struct {
	width, height int
	bytesPP       int
	topToBottom   bool
	put           func(x, y int, px []byte)
	out           image.Image
}

// store writes pixel number idx, honoring the TGA bottom-up row order.
func (d *tgaDecoder) store(idx int, px []byte) {
	x := idx % d.width
	y := idx / d.width
	if !d.topToBottom {
		y = d.height - 1 - y
	}
	d.put(x, y, px)
}

func (d *tgaDecoder) decodeRaw(pixels []byte) error {
	count := d.width * d.height
	if len(pixels) < count*d.bytesPP {
		return fmt.Errorf("%w: pixel data", ErrTruncatedTGA)
	}
	for i := 0; i < count; i++ {
		d.store(i, pixels[i*d.bytesPP:(i+1)*d.bytesPP])
	}
	return nil
}

func (d *tgaDecoder) decodeRLE(pixels []byte) error {
	count := d.width * d.height
	idx, pos := 0, 0
	for idx < count {
		if pos >= len(pixels) {
			return fmt.Errorf("%w: RLE packet %d", ErrTruncatedTGA, idx)
		}
		packet := pixels[pos]
		pos++
		n := int(packet&0x7F) + 1

		if packet&0x80 != 0 {
			if pos+d.bytesPP > len(pixels) {
				return fmt.Errorf("%w: RLE run", ErrTruncatedTGA)
			}
			px := pixels[pos : pos+d.bytesPP]
			pos += d.bytesPP
			for i := 0; i < n && idx < count; i++ {
				d.store(idx, px)
				idx++
			}
			continue
		}

		for i := 0; i < n && idx < count; i++ {
			if pos+d.bytesPP > len(pixels) {
				return fmt.Errorf("%w: raw packet", ErrTruncatedTGA)
			}
			d.store(idx, pixels[pos:pos+d.bytesPP])
			pos += d.bytesPP
			idx++
		}
	}
	return nil
}
