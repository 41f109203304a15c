package kernels

import (
	"image"

	"github.com/ivlev/vectorscope/internal/gpu"
)

var (
	vectorBackground = rgba{0.03, 0.03, 0.04, 1}
	graticuleBright  = rgba{0.45, 0.45, 0.45, 1}
	graticuleDim     = rgba{0.2, 0.2, 0.22, 1}
	iqAxis           = rgba{0.16, 0.26, 0.3, 1}
	skinTone         = rgba{0.8, 0.55, 0.4, 1}
	phosphor         = rgba{0.55, 1.0, 0.65, 0}

	paradeBackground = rgba{0.05, 0.05, 0.06, 1}
	paradeMajor      = rgba{0.4, 0.4, 0.42, 1}
	paradeMinor      = rgba{0.18, 0.18, 0.2, 1}
	laneSeparator    = rgba{0.12, 0.12, 0.14, 1}
	laneTints        = [3]rgba{{1, 0.25, 0.25, 0}, {0.25, 1, 0.25, 0}, {0.3, 0.45, 1, 0}}
)

const (
	lineHalf      = 0.75
	skinDotRadius = 3

	// sin/cos of the Q (33°) and I (123°) axes.
	sinQ, cosQ = 0.544639, 0.838671
)

type clearVector struct {
	img *gpu.StorageImage
	p   Params
}

func newClearVector(img *gpu.StorageImage, p Params) *clearVector {
	return &clearVector{img: img, p: p}
}

func (k *clearVector) Label() string { return EntryClearVector }

func (k *clearVector) Grid() image.Point {
	return image.Pt(int(k.p.Viewport[2]), int(k.p.Viewport[3]))
}

func (k *clearVector) Run(tile image.Rectangle) {
	w, h := int(k.p.Viewport[2]), int(k.p.Viewport[3])
	tint := packRGBA(phosphor)
	for y := tile.Min.Y; y < tile.Max.Y; y++ {
		for x := tile.Min.X; x < tile.Max.X; x++ {
			c := k.shade(float32(x-w/2), float32(y-h/2))
			i := k.index(x, y)
			k.img.Base[i] = packRGBA(c)
			k.img.Tint[i] = tint
			k.img.ClearHits(i)
		}
	}
}

func (k *clearVector) index(x, y int) int {
	return (int(k.p.Viewport[1])+y)*int(k.p.ImageSize[0]) + int(k.p.Viewport[0]) + x
}

// shade returns the graticule colour at offset (dx, dy) from the centre pixel.
func (k *clearVector) shade(dx, dy float32) rgba {
	d := sqrtf(dx*dx + dy*dy)
	radius := k.p.Scope[0]
	dir := k.p.SkinDir

	c := vectorBackground
	if d <= radius+lineHalf {
		for ring := 1; ring <= 4; ring++ {
			if absf(d-radius*0.2*float32(ring)) < lineHalf {
				c = graticuleDim
			}
		}
		if absf(dx) < lineHalf || absf(dy) < lineHalf {
			c = graticuleDim
		}
		if absf(dx*sinQ+dy*cosQ) < lineHalf || absf(dx*cosQ-dy*sinQ) < lineHalf {
			c = iqAxis
		}
		if absf(d-radius) < lineHalf {
			c = graticuleBright
		}
		along := dx*dir[0] + dy*dir[1]
		across := absf(dx*dir[1] - dy*dir[0])
		if across < lineHalf && along >= 0 && along <= radius {
			c = skinTone
		}
	}

	halfBox := k.p.Scope[1]
	for t, target := range k.p.Targets {
		px, py := target[0]*radius, target[1]*radius
		if absf(dx-px) <= halfBox && absf(dy-py) <= halfBox {
			c = k.p.TargetColors[t]
		}
	}

	sx := dx - dir[0]*k.p.Scope[2]*radius
	sy := dy - dir[1]*k.p.Scope[2]*radius
	if sx*sx+sy*sy <= skinDotRadius*skinDotRadius {
		c = skinTone
	}
	return c
}

type clearParade struct {
	img   *gpu.StorageImage
	p     Params
	laneW float32
	rows  map[int]rgba
}

func newClearParade(img *gpu.StorageImage, p Params) *clearParade {
	h := int(p.Viewport[3])
	rows := make(map[int]rgba, 5)
	for _, lvl := range []float32{0.25, 0.75} {
		rows[ParadeRow(h, lvl)] = paradeMinor
	}
	for _, lvl := range []float32{0, 0.5, 1} {
		rows[ParadeRow(h, lvl)] = paradeMajor
	}
	return &clearParade{img: img, p: p, laneW: float32(p.Viewport[2]) / 3, rows: rows}
}

func (k *clearParade) Label() string { return EntryClearParade }

func (k *clearParade) Grid() image.Point {
	return image.Pt(int(k.p.Viewport[2]), int(k.p.Viewport[3]))
}

func (k *clearParade) Run(tile image.Rectangle) {
	stride := int(k.p.ImageSize[0])
	for y := tile.Min.Y; y < tile.Max.Y; y++ {
		row := (int(k.p.Viewport[1])+y)*stride + int(k.p.Viewport[0])
		rowColor, ruled := k.rows[y]
		for x := tile.Min.X; x < tile.Max.X; x++ {
			lane := min(2, int(float32(x)/k.laneW))

			c := paradeBackground
			if ruled {
				c = rowColor
			}
			if lane > 0 && x == int(float32(lane)*k.laneW) {
				c = laneSeparator
			}

			i := row + x
			k.img.Base[i] = packRGBA(c)
			k.img.Tint[i] = packRGBA(laneTints[lane])
			k.img.ClearHits(i)
		}
	}
}
