package composite

import (
	"math"
	"testing"

	"github.com/Faultbox/terrain-projector/internal/projector"
)

func near(a, b float32) bool {
	return math.Abs(float64(a-b)) < 1e-6
}

func TestContribution(t *testing.T) {
	if got := Contribution(0.8, 0.5, 0.1); !near(got, 0.5) {
		t.Errorf("Contribution(0.8, 0.5, 0.1) = %v, want 0.5", got)
	}
}

func TestBlendModes(t *testing.T) {
	const (
		base     = 0.3
		brush    = 0.8
		strength = 0.5
		offset   = 0.1
	)
	tests := []struct {
		mode projector.BlendMode
		want float32
	}{
		{projector.BlendMax, 0.5},
		{projector.BlendMin, 0.3},
		{projector.BlendOverlay, 0.8},
		{projector.BlendBlend, 0.46},
	}
	for _, tt := range tests {
		t.Run(tt.mode.String(), func(t *testing.T) {
			got := Blend(tt.mode, base, brush, strength, offset)
			if !near(got, tt.want) {
				t.Errorf("Blend(%v) = %v, want %v", tt.mode, got, tt.want)
			}
		})
	}
}

func TestBlendWeightFollowsBrush(t *testing.T) {
	// A zero brush sample leaves the base untouched in blend mode, whatever the offset.
	if got := Blend(projector.BlendBlend, 0.7, 0, 1, 0.9); got != 0.7 {
		t.Errorf("Blend with zero brush = %v, want 0.7", got)
	}
	// A full brush sample replaces the base with the contribution.
	if got := Blend(projector.BlendBlend, 0.7, 1, 0.25, 0); got != 0.25 {
		t.Errorf("Blend with full brush = %v, want 0.25", got)
	}
}

func TestBlendOverlayUnclamped(t *testing.T) {
	if got := Blend(projector.BlendOverlay, 0.9, 1, 1, 0.5); !near(got, 2.4) {
		t.Errorf("Blend overlay = %v, want 2.4 before clamping", got)
	}
}

func TestBlendUnknownModeKeepsBase(t *testing.T) {
	if got := Blend(projector.BlendMode(77), 0.4, 1, 1, 1); got != 0.4 {
		t.Errorf("Blend unknown mode = %v, want 0.4", got)
	}
}
