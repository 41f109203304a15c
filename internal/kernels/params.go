// Package kernels holds the scope compute kernels. Each kernel is a WGSL entry point
// (compiled at startup) with a matching dispatcher implementation that reads the same
// Params block.
package kernels

import (
	"image"
	"math"

	"github.com/ivlev/vectorscope/internal/calibration"
	"github.com/ivlev/vectorscope/internal/colorspace"
)

// RadiusRatio is the full-scale vector radius relative to the viewport's shorter side.
const RadiusRatio = 0.45

// DefaultSaturationHits is the hit count at which a scope pixel reaches full tint.
const DefaultSaturationHits = 64

// Params mirrors the WGSL uniform block shared by all kernels. Every member is 16-byte
// aligned so the Go and WGSL layouts agree.
type Params struct {
	Viewport     [4]uint32  // x, y, width, height
	ImageSize    [4]uint32  // storage width, height, input width, input height
	Scope        [4]float32 // radius, box half-size, skin saturation, saturation hits
	SkinDir      [4]float32
	ChromaU      [4]float32
	ChromaV      [4]float32
	Targets      [calibration.NumTargets][4]float32
	TargetColors [calibration.NumTargets][4]float32
	InputLayout  [4]uint32 // input row stride in pixels
}

// Uniforms is the per-pass input from which Params are built.
type Uniforms struct {
	Viewport       image.Rectangle
	Scope          calibration.ScopeConfig
	Matrix         *colorspace.Matrix
	SaturationHits int
}

// FullScaleRadius returns the vector radius, in pixels, for a w×h viewport.
func FullScaleRadius(w, h int) float64 {
	return RadiusRatio * float64(min(w, h))
}

// Center returns the pixel holding the vectorscope origin of a w×h viewport.
func Center(w, h int) image.Point {
	return image.Pt(w/2, h/2)
}

// TargetPoint returns the pixel a colour at c (scope units) is plotted at, relative to the
// viewport origin.
func TargetPoint(w, h int, c calibration.CartesianTarget) image.Point {
	r := float32(FullScaleRadius(w, h))
	ctr := Center(w, h)
	return image.Pt(ctr.X+roundf(float32(c.X)*r), ctr.Y+roundf(float32(c.Y)*r))
}

// ParadeRow returns the row, relative to the viewport origin, of level (0..1) in a
// parade of height h.
func ParadeRow(h int, level float32) int {
	margin := floorf(float32(h) * 0.05)
	plotH := float32(h) - 2*margin
	return int(floorf(margin + (1-level)*(plotH-1) + 0.5))
}

// ParadeLaneX returns the first column of lane k (0 = R, 1 = G, 2 = B) in a parade of
// width w.
func ParadeLaneX(w, k int) int {
	return int(float32(k) * float32(w) / 3)
}

// BuildParams packs u for a storage image of imageSize and an input of inputSize.
func BuildParams(u Uniforms, imageSize, inputSize image.Point) Params {
	vp := u.Viewport
	w, h := vp.Dx(), vp.Dy()
	sat := u.SaturationHits
	if sat <= 0 {
		sat = DefaultSaturationHits
	}

	boxHalf := float32(u.Scope.BoxSizeRatio) * float32(w) * 0.5
	if boxHalf < 1 {
		boxHalf = 1
	}

	p := Params{
		Viewport:  [4]uint32{uint32(vp.Min.X), uint32(vp.Min.Y), uint32(w), uint32(h)},
		ImageSize: [4]uint32{uint32(imageSize.X), uint32(imageSize.Y), uint32(inputSize.X), uint32(inputSize.Y)},
		Scope:     [4]float32{float32(FullScaleRadius(w, h)), boxHalf, float32(u.Scope.SkinSaturation), float32(sat)},
	}

	dir := u.Scope.SkinDirection()
	p.SkinDir = [4]float32{float32(dir.X), float32(dir.Y), 0, 0}

	if u.Matrix != nil {
		c := u.Matrix.Coefficients()
		p.ChromaU = [4]float32{c[3], c[4], c[5], 0}
		p.ChromaV = [4]float32{c[6], c[7], c[8], 0}
	}

	for i, t := range u.Scope.Targets {
		p.Targets[i] = [4]float32{float32(t.X), float32(t.Y), 0, 0}
		r, g, b := calibration.BarColor(calibration.Target(i), 0.55)
		p.TargetColors[i] = [4]float32{float32(r) + 0.1, float32(g) + 0.1, float32(b) + 0.1, 1}
	}
	return p
}

type rgba [4]float32

func packRGBA(c rgba) uint32 {
	var out uint32
	for i, v := range c {
		if v < 0 {
			v = 0
		} else if v > 1 {
			v = 1
		}
		out |= uint32(v*255+0.5) << (8 * i)
	}
	return out
}

func unpackRGBA(p uint32) rgba {
	return rgba{float32(p & 0xff), float32(p >> 8 & 0xff), float32(p >> 16 & 0xff), float32(p >> 24)}
}

func floorf(v float32) float32 { return float32(math.Floor(float64(v))) }

func roundf(v float32) int { return int(floorf(v + 0.5)) }

func absf(v float32) float32 {
	if v < 0 {
		return -v
	}
	return v
}

func sqrtf(v float32) float32 { return float32(math.Sqrt(float64(v))) }
