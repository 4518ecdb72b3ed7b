package formats

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"os"
)

// R16 format errors.
var (
	ErrTruncatedR16   = errors.New("truncated R16 data")
	ErrInvalidR16Size = errors.New("invalid R16 dimensions")
)

// R16MaxValue is the largest 16-bit sample; it maps to a normalized height of 1.
const R16MaxValue = math.MaxUint16

// Quantize16 snaps a normalized height to the nearest 16-bit step.
// Values outside [0, 1] are clamped first.
func Quantize16(v float32) float32 {
	return float32(ToR16(v)) / R16MaxValue
}

// ToR16 converts a normalized height to a 16-bit sample.
func ToR16(v float32) uint16 {
	if !(v > 0) {
		return 0
	}
	if v >= 1 {
		return R16MaxValue
	}
	return uint16(math.Round(float64(v) * R16MaxValue))
}

// FromR16 converts a 16-bit sample to a normalized height.
func FromR16(s uint16) float32 {
	return float32(s) / R16MaxValue
}

// EncodeR16 encodes normalized samples as little-endian 16-bit values, row-major.
func EncodeR16(samples []float32) []byte {
	out := make([]byte, len(samples)*2)
	for i, v := range samples {
		binary.LittleEndian.PutUint16(out[i*2:], ToR16(v))
	}
	return out
}

// DecodeR16 decodes a width×height R16 buffer into normalized samples.
func DecodeR16(data []byte, width, height int) ([]float32, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: %dx%d", ErrInvalidR16Size, width, height)
	}
	want := width * height * 2
	if len(data) < want {
		return nil, fmt.Errorf("%w: have %d bytes, want %d", ErrTruncatedR16, len(data), want)
	}
	samples := make([]float32, width*height)
	for i := range samples {
		samples[i] = FromR16(binary.LittleEndian.Uint16(data[i*2:]))
	}
	return samples, nil
}

// InferSquareR16 returns the side length of a square R16 buffer of n bytes.
func InferSquareR16(n int) (int, error) {
	if n <= 0 || n%2 != 0 {
		return 0, fmt.Errorf("%w: %d bytes", ErrInvalidR16Size, n)
	}
	count := n / 2
	side := int(math.Sqrt(float64(count)))
	for side*side < count {
		side++
	}
	if side*side != count {
		return 0, fmt.Errorf("%w: %d samples is not a square", ErrInvalidR16Size, count)
	}
	return side, nil
}

// ReadR16File reads a width×height R16 file from disk.
// If width and height are both zero the file is assumed square.
func ReadR16File(path string, width, height int) ([]float32, int, int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, 0, 0, fmt.Errorf("reading R16 file: %w", err)
	}
	if width == 0 && height == 0 {
		side, err := InferSquareR16(len(data))
		if err != nil {
			return nil, 0, 0, err
		}
		width, height = side, side
	}
	samples, err := DecodeR16(data, width, height)
	if err != nil {
		return nil, 0, 0, err
	}
	return samples, width, height, nil
}
