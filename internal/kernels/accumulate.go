package kernels

import (
	"image"

	"github.com/ivlev/vectorscope/internal/gpu"
)

// vectorAccumulate runs one invocation per input pixel and scatters it by chroma.
type vectorAccumulate struct {
	img *gpu.StorageImage
	in  *gpu.InputImage
	p   Params
}

func (k *vectorAccumulate) Label() string { return EntryVectorAccumulate }

func (k *vectorAccumulate) Grid() image.Point { return image.Pt(k.in.Width, k.in.Height) }

func (k *vectorAccumulate) Run(tile image.Rectangle) {
	w, h := int(k.p.Viewport[2]), int(k.p.Viewport[3])
	x0, y0 := int(k.p.Viewport[0]), int(k.p.Viewport[1])
	radius := k.p.Scope[0]
	cu, cv := k.p.ChromaU, k.p.ChromaV

	for y := tile.Min.Y; y < tile.Max.Y; y++ {
		for x := tile.Min.X; x < tile.Max.X; x++ {
			r8, g8, b8 := k.in.RGB(x, y)
			r, g, b := float32(r8)/255, float32(g8)/255, float32(b8)/255
			u := cu[0]*r + cu[1]*g + cu[2]*b
			v := cv[0]*r + cv[1]*g + cv[2]*b

			px := clampInt(w/2+roundf(u*radius), 0, w-1)
			py := clampInt(h/2+roundf(-v*radius), 0, h-1)
			k.img.AddHit(x0+px, y0+py)
		}
	}
}

// paradeAccumulate runs one invocation per input pixel and plots each channel in its lane.
type paradeAccumulate struct {
	img *gpu.StorageImage
	in  *gpu.InputImage
	p   Params
}

func (k *paradeAccumulate) Label() string { return EntryParadeAccumulate }

func (k *paradeAccumulate) Grid() image.Point { return image.Pt(k.in.Width, k.in.Height) }

func (k *paradeAccumulate) Run(tile image.Rectangle) {
	w, h := int(k.p.Viewport[2]), int(k.p.Viewport[3])
	x0, y0 := int(k.p.Viewport[0]), int(k.p.Viewport[1])
	laneW := float32(w) / 3
	inW := float32(k.in.Width)

	var lo, hi [3]int
	for lane := 0; lane < 3; lane++ {
		lo[lane] = int(float32(lane) * laneW)
		hi[lane] = min(max(lo[lane], int(float32(lane+1)*laneW)-1), w-1)
	}

	for y := tile.Min.Y; y < tile.Max.Y; y++ {
		for x := tile.Min.X; x < tile.Max.X; x++ {
			r, g, b := k.in.RGB(x, y)
			levels := [3]uint8{r, g, b}
			for lane, lvl := range levels {
				px := int(float32(lane)*laneW + (float32(x)+0.5)*laneW/inW)
				px = clampInt(px, lo[lane], hi[lane])
				py := min(ParadeRow(h, float32(lvl)/255), h-1)
				k.img.AddHit(x0+px, y0+py)
			}
		}
	}
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
