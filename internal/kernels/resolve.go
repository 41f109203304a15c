package kernels

import (
	"image"
	"math"
	"sync/atomic"

	"github.com/ivlev/vectorscope/internal/gpu"
)

// Gain returns the tint weight of a pixel hit n times: min(1, log2(1+n)/log2(1+s)).
// It is monotonic non-decreasing in n and reaches 1 at s hits.
func Gain(n uint32, s int) float32 {
	if s <= 0 {
		s = DefaultSaturationHits
	}
	if n == 0 {
		return 0
	}
	g := math.Log2(1+float64(n)) / math.Log2(1+float64(s))
	if g > 1 {
		return 1
	}
	return float32(g)
}

type resolve struct {
	img  *gpu.StorageImage
	dst  *image.RGBA
	gain []float32 // gain for n < len(gain); 1 beyond
}

func newResolve(img *gpu.StorageImage, dst *image.RGBA, saturationHits int) *resolve {
	if saturationHits <= 0 {
		saturationHits = DefaultSaturationHits
	}
	gain := make([]float32, saturationHits+1)
	for n := range gain {
		gain[n] = Gain(uint32(n), saturationHits)
	}
	return &resolve{img: img, dst: dst, gain: gain}
}

func (k *resolve) Label() string { return EntryResolve }

func (k *resolve) Grid() image.Point {
	return image.Pt(min(k.img.Width, k.dst.Rect.Dx()), min(k.img.Height, k.dst.Rect.Dy()))
}

func (k *resolve) Run(tile image.Rectangle) {
	for y := tile.Min.Y; y < tile.Max.Y; y++ {
		src := y * k.img.Width
		dst := y * k.dst.Stride
		for x := tile.Min.X; x < tile.Max.X; x++ {
			i := src + x
			n := atomic.LoadUint32(&k.img.Hits[i])
			g := float32(1)
			if int(n) < len(k.gain) {
				g = k.gain[n]
			}

			base, tint := unpackRGBA(k.img.Base[i]), unpackRGBA(k.img.Tint[i])
			o := k.dst.Pix[dst+x*4 : dst+x*4+4 : dst+x*4+4]
			for c := 0; c < 3; c++ {
				v := base[c] + tint[c]*g + 0.5
				if v > 255 {
					v = 255
				}
				o[c] = uint8(v)
			}
			o[3] = 0xff
		}
	}
}
