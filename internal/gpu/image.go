package gpu

import (
	"fmt"
	"image"
	"sync/atomic"
)

// bytesPerTexel covers the base, tint and hits planes.
const bytesPerTexel = 12

// StorageImage is the analysis image: a read/write surface the kernels scatter into.
//
// Each pixel has three 32-bit planes. Base and Tint hold packed RGBA (R in the low byte)
// and are written only by clear kernels. Hits is an atomic counter plane: clear kernels
// store zero, accumulate kernels increment it, the resolve kernel reads it.
type StorageImage struct {
	Width, Height int

	Base []uint32
	Tint []uint32
	Hits []uint32

	dev       *Device
	size      uint64
	destroyed atomic.Bool
}

// NewStorageImage allocates a w×h storage image against the device budget. It returns
// an error wrapping ErrOutOfMemory when the budget or the host cannot hold it.
func (d *Device) NewStorageImage(w, h int) (*StorageImage, error) {
	if w <= 0 || h <= 0 {
		return nil, fmt.Errorf("%w: %dx%d", ErrInvalidSize, w, h)
	}
	size := uint64(w) * uint64(h) * bytesPerTexel
	if err := d.reserve(size); err != nil {
		return nil, err
	}

	n := w * h
	img := &StorageImage{
		Width:  w,
		Height: h,
		Base:   make([]uint32, n),
		Tint:   make([]uint32, n),
		Hits:   make([]uint32, n),
		dev:    d,
		size:   size,
	}
	Logger().Debug("gpu: storage image allocated", "width", w, "height", h, "bytes", size)
	return img, nil
}

// Bounds returns the image rectangle anchored at the origin.
func (img *StorageImage) Bounds() image.Rectangle {
	return image.Rect(0, 0, img.Width, img.Height)
}

// Size returns the image dimensions as a point.
func (img *StorageImage) Size() image.Point {
	return image.Pt(img.Width, img.Height)
}

// Index returns the plane offset of (x, y).
func (img *StorageImage) Index(x, y int) int {
	return y*img.Width + x
}

// AddHit atomically increments the counter at (x, y).
func (img *StorageImage) AddHit(x, y int) {
	atomic.AddUint32(&img.Hits[y*img.Width+x], 1)
}

// HitsAt atomically loads the counter at (x, y).
func (img *StorageImage) HitsAt(x, y int) uint32 {
	return atomic.LoadUint32(&img.Hits[y*img.Width+x])
}

// ClearHits atomically stores zero at plane offset i.
func (img *StorageImage) ClearHits(i int) {
	atomic.StoreUint32(&img.Hits[i], 0)
}

// Destroyed reports whether Destroy was called.
func (img *StorageImage) Destroyed() bool { return img.destroyed.Load() }

// Destroy releases the planes and returns their bytes to the device budget. The caller
// guarantees no dispatch still references the image. Destroy is idempotent.
func (img *StorageImage) Destroy() {
	if img == nil || !img.destroyed.CompareAndSwap(false, true) {
		return
	}
	img.Base, img.Tint, img.Hits = nil, nil, nil
	img.dev.release(img.size)
	Logger().Debug("gpu: storage image destroyed", "width", img.Width, "height", img.Height)
}

// InputImage is a frame bound for reading by accumulate kernels. Pixels are packed
// B, G, R, A bytes. It is valid for one draw; Release returns pooled storage.
type InputImage struct {
	Width, Height int
	Stride        int
	Pix           []byte

	release  func()
	released atomic.Bool
}

// NewInputImage wraps BGRA8 bytes. release may be nil for borrowed memory.
func NewInputImage(pix []byte, w, h, stride int, release func()) (*InputImage, error) {
	if w <= 0 || h <= 0 {
		return nil, fmt.Errorf("%w: %dx%d", ErrInvalidSize, w, h)
	}
	if stride < w*4 || len(pix) < (h-1)*stride+w*4 {
		return nil, fmt.Errorf("%w: %d bytes with stride %d for %dx%d", ErrInvalidSize, len(pix), stride, w, h)
	}
	return &InputImage{Width: w, Height: h, Stride: stride, Pix: pix, release: release}, nil
}

// RGB returns the 8-bit channels at (x, y).
func (in *InputImage) RGB(x, y int) (r, g, b uint8) {
	i := y*in.Stride + x*4
	p := in.Pix[i : i+3 : i+3]
	return p[2], p[1], p[0]
}

// Release hands the backing storage back to its pool. It is idempotent.
func (in *InputImage) Release() {
	if in == nil || !in.released.CompareAndSwap(false, true) {
		return
	}
	if in.release != nil {
		in.release()
	}
}
