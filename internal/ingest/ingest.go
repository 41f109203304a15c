package ingest

import (
	"image"
	"image/color"
	"math"

	xdraw "golang.org/x/image/draw"

	"github.com/ivlev/vectorscope/internal/gpu"
)

// DefaultMaxInputPixels bounds the bound input image; larger frames are downscaled.
const DefaultMaxInputPixels = 1920 * 1080

// Ingester turns frames into input images. BGRA8 frames within the pixel limit are bound
// without copying; everything else takes exactly one conversion copy into a pooled
// buffer.
type Ingester struct {
	MaxInputPixels int
	buffers        *gpu.BufferPool
}

func NewIngester(buffers *gpu.BufferPool, maxInputPixels int) *Ingester {
	if buffers == nil {
		buffers = gpu.NewBufferPool()
	}
	if maxInputPixels <= 0 {
		maxInputPixels = DefaultMaxInputPixels
	}
	return &Ingester{MaxInputPixels: maxInputPixels, buffers: buffers}
}

// Ingest binds f. The returned image is valid for one draw and must be released.
func (ing *Ingester) Ingest(f *Frame) (*gpu.InputImage, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}

	w, h := ing.targetSize(f.Width, f.Height)
	stride := f.RowStride()

	if f.Format == BGRA8 && stride%4 == 0 && w == f.Width && h == f.Height {
		return gpu.NewInputImage(f.Pix, f.Width, f.Height, stride, nil)
	}

	buf := ing.buffers.Get(w * h * 4)
	release := func() { ing.buffers.Put(buf) }

	if w == f.Width && h == f.Height {
		convert(buf, f, stride)
	} else {
		dst := &image.RGBA{Pix: buf, Stride: w * 4, Rect: image.Rect(0, 0, w, h)}
		src := view(f, stride)
		xdraw.ApproxBiLinear.Scale(dst, dst.Rect, src, src.Bounds(), xdraw.Src, nil)
		swapRB(buf)
	}

	in, err := gpu.NewInputImage(buf, w, h, w*4, release)
	if err != nil {
		release()
		return nil, err
	}
	return in, nil
}

// targetSize keeps the aspect ratio while fitting under MaxInputPixels.
func (ing *Ingester) targetSize(w, h int) (int, int) {
	if w*h <= ing.MaxInputPixels {
		return w, h
	}
	s := math.Sqrt(float64(ing.MaxInputPixels) / float64(w*h))
	return max(1, int(float64(w)*s)), max(1, int(float64(h)*s))
}

// convert writes f as tightly packed BGRA8 into dst.
func convert(dst []byte, f *Frame, stride int) {
	w, h := f.Width, f.Height
	for y := 0; y < h; y++ {
		row := f.Pix[y*stride:]
		out := dst[y*w*4 : (y+1)*w*4]
		switch f.Format {
		case BGRA8:
			copy(out, row[:w*4])
		case RGBA8:
			for x := 0; x < w; x++ {
				s, d := row[x*4:x*4+4:x*4+4], out[x*4:x*4+4:x*4+4]
				d[0], d[1], d[2], d[3] = s[2], s[1], s[0], s[3]
			}
		case RGB24:
			for x := 0; x < w; x++ {
				s, d := row[x*3:x*3+3:x*3+3], out[x*4:x*4+4:x*4+4]
				d[0], d[1], d[2], d[3] = s[2], s[1], s[0], 0xff
			}
		case Gray8:
			for x := 0; x < w; x++ {
				v, d := row[x], out[x*4:x*4+4:x*4+4]
				d[0], d[1], d[2], d[3] = v, v, v, 0xff
			}
		}
	}
}

func swapRB(pix []byte) {
	for i := 0; i+3 < len(pix); i += 4 {
		pix[i], pix[i+2] = pix[i+2], pix[i]
	}
}

// Image exposes the frame as an image.Image without copying.
func (f *Frame) Image() (image.Image, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return view(f, f.RowStride()), nil
}

// view exposes the frame as an image.Image without copying.
func view(f *Frame, stride int) image.Image {
	r := image.Rect(0, 0, f.Width, f.Height)
	switch f.Format {
	case RGBA8:
		return &image.RGBA{Pix: f.Pix, Stride: stride, Rect: r}
	case Gray8:
		return &image.Gray{Pix: f.Pix, Stride: stride, Rect: r}
	case RGB24:
		return &packedImage{pix: f.Pix, stride: stride, rect: r, bpp: 3, ri: 0, bi: 2}
	default:
		return &packedImage{pix: f.Pix, stride: stride, rect: r, bpp: 4, ri: 2, bi: 0}
	}
}

// packedImage reads opaque 8-bit RGB pixels with the given red and blue byte offsets.
type packedImage struct {
	pix    []byte
	stride int
	rect   image.Rectangle
	bpp    int
	ri, bi int
}

func (p *packedImage) ColorModel() color.Model { return color.RGBAModel }
func (p *packedImage) Bounds() image.Rectangle { return p.rect }
func (p *packedImage) At(x, y int) color.Color {
	i := y*p.stride + x*p.bpp
	return color.RGBA{R: p.pix[i+p.ri], G: p.pix[i+1], B: p.pix[i+p.bi], A: 0xff}
}
