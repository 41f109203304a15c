package analyzer

import (
	"image"
	"math"

	"github.com/ivlev/vectorscope/internal/colorspace"
)

// Composite signal limits, in units of peak white.
const (
	CompositeMin = -1.0 / 3
	CompositeMax = 4.0 / 3
)

// GamutDetector flags pixels whose chroma lies beyond the graticule's outer ring or
// whose composite excursion Y ± |C| leaves [CompositeMin, CompositeMax].
type GamutDetector struct {
	Matrix *colorspace.Matrix
	Step   int // sample every Step-th pixel in both directions
}

// NewGamutDetector creates a gamut detector for m (BT.601 when nil)
func NewGamutDetector(m *colorspace.Matrix) *GamutDetector {
	if m == nil {
		m = colorspace.MustNew(colorspace.BT601)
	}
	return &GamutDetector{Matrix: m, Step: 1}
}

func (d *GamutDetector) Detect(img image.Image) (Report, error) {
	t := tally{Report: Report{Variant: "gamut"}}
	step := max(1, d.Step)
	b := img.Bounds()

	for y := b.Min.Y; y < b.Max.Y; y += step {
		for x := b.Min.X; x < b.Max.X; x += step {
			r, g, bl := rgb(img, x, y)
			luma := d.Matrix.Luma(r, g, bl)
			u, v := d.Matrix.Chroma(r, g, bl)
			c := math.Hypot(u, v)
			t.add(x, y, c > 1 || luma+c > CompositeMax || luma-c < CompositeMin)
		}
	}
	return t.done(), nil
}

// ClipDetector flags pixels with any channel at the code-value floor or ceiling.
type ClipDetector struct {
	Step int
}

// NewClipDetector creates a clip detector sampling every pixel
func NewClipDetector() *ClipDetector {
	return &ClipDetector{Step: 1}
}

func (d *ClipDetector) Detect(img image.Image) (Report, error) {
	t := tally{Report: Report{Variant: "clip"}}
	step := max(1, d.Step)
	b := img.Bounds()

	for y := b.Min.Y; y < b.Max.Y; y += step {
		for x := b.Min.X; x < b.Max.X; x += step {
			r, g, bl, _ := img.At(x, y).RGBA()
			clipped := false
			for _, c := range [3]uint32{r >> 8, g >> 8, bl >> 8} {
				if c == 0 || c == 0xff {
					clipped = true
				}
			}
			t.add(x, y, clipped)
		}
	}
	return t.done(), nil
}
