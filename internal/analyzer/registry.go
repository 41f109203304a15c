package analyzer

import (
	"fmt"

	"github.com/ivlev/vectorscope/internal/colorspace"
)

// NewDetector creates a detector based on the specified variant
func NewDetector(variant string, m *colorspace.Matrix) (Detector, error) {
	switch variant {
	case "gamut", "":
		return NewGamutDetector(m), nil
	case "clip":
		return NewClipDetector(), nil
	default:
		return nil, fmt.Errorf("unknown detector variant: %s", variant)
	}
}
