package formats

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestR16RoundTrip(t *testing.T) {
	samples := []float32{0, 0.25, 0.5, 1, FromR16(12345), 1}
	data := EncodeR16(samples)
	if len(data) != 12 {
		t.Fatalf("expected 12 bytes, got %d", len(data))
	}

	got, err := DecodeR16(data, 3, 2)
	if err != nil {
		t.Fatalf("DecodeR16 failed: %v", err)
	}
	for i, want := range samples {
		if got[i] != Quantize16(want) {
			t.Errorf("sample %d: got %v, want %v", i, got[i], Quantize16(want))
		}
	}
	if got[4] != samples[4] {
		t.Errorf("exact 16-bit value changed: got %v, want %v", got[4], samples[4])
	}
}

func TestToR16Clamps(t *testing.T) {
	tests := []struct {
		in   float32
		want uint16
	}{
		{-1, 0},
		{0, 0},
		{1, 65535},
		{2.5, 65535},
		{0.5, 32768},
	}
	for _, tt := range tests {
		if got := ToR16(tt.in); got != tt.want {
			t.Errorf("ToR16(%v) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestDecodeR16Truncated(t *testing.T) {
	_, err := DecodeR16(make([]byte, 7), 2, 2)
	if !errors.Is(err, ErrTruncatedR16) {
		t.Errorf("expected ErrTruncatedR16, got %v", err)
	}
	_, err = DecodeR16(nil, 0, 2)
	if !errors.Is(err, ErrInvalidR16Size) {
		t.Errorf("expected ErrInvalidR16Size, got %v", err)
	}
}

func TestInferSquareR16(t *testing.T) {
	side, err := InferSquareR16(513 * 513 * 2)
	if err != nil {
		t.Fatalf("InferSquareR16 failed: %v", err)
	}
	if side != 513 {
		t.Errorf("expected side 513, got %d", side)
	}
	if _, err := InferSquareR16(6 * 2); !errors.Is(err, ErrInvalidR16Size) {
		t.Errorf("expected ErrInvalidR16Size for non-square, got %v", err)
	}
}

func TestR16File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "terrain.r16")
	samples := []float32{0, 1, 1, 0}
	if err := os.WriteFile(path, EncodeR16(samples), 0644); err != nil {
		t.Fatalf("failed to write R16: %v", err)
	}
	got, w, h, err := ReadR16File(path, 0, 0)
	if err != nil {
		t.Fatalf("ReadR16File failed: %v", err)
	}
	if w != 2 || h != 2 {
		t.Errorf("expected 2x2, got %dx%d", w, h)
	}
	for i := range samples {
		if got[i] != samples[i] {
			t.Errorf("sample %d: got %v, want %v", i, got[i], samples[i])
		}
	}
}
