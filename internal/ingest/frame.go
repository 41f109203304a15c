// Package ingest binds captured frames as input images for the accumulate kernels.
package ingest

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrEmptyFrame        = errors.New("ingest: empty frame")
	ErrUnsupportedFormat = errors.New("ingest: unsupported pixel format")
	ErrShortBuffer       = errors.New("ingest: pixel buffer too short")
)

// PixelFormat is the memory layout of Frame.Pix.
type PixelFormat int

const (
	// BGRA8 is the kernel-native format: bytes B, G, R, A per pixel.
	BGRA8 PixelFormat = iota
	RGBA8
	RGB24
	Gray8
)

func (f PixelFormat) String() string {
	switch f {
	case BGRA8:
		return "bgra"
	case RGBA8:
		return "rgba"
	case RGB24:
		return "rgb24"
	case Gray8:
		return "gray"
	default:
		return fmt.Sprintf("PixelFormat(%d)", int(f))
	}
}

// BytesPerPixel returns the pixel size, or 0 for an unknown format.
func (f PixelFormat) BytesPerPixel() int {
	switch f {
	case BGRA8, RGBA8:
		return 4
	case RGB24:
		return 3
	case Gray8:
		return 1
	default:
		return 0
	}
}

// ParsePixelFormat accepts the names returned by String, plus the ffmpeg spellings.
func ParsePixelFormat(name string) (PixelFormat, error) {
	switch strings.ToLower(name) {
	case "bgra", "bgra8", "32bgra":
		return BGRA8, nil
	case "rgba", "rgba8":
		return RGBA8, nil
	case "rgb24", "rgb":
		return RGB24, nil
	case "gray", "gray8", "y8":
		return Gray8, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnsupportedFormat, name)
	}
}

// Frame is one captured picture. Producers must not modify Pix after submitting the
// frame; the scheduler may read it for several redraws.
type Frame struct {
	Pix       []byte
	Width     int
	Height    int
	Stride    int // bytes per row; zero means tightly packed
	Format    PixelFormat
	Timestamp time.Time
	Seq       uint64
}

// RowStride returns Stride, or the tight stride when Stride is zero.
func (f *Frame) RowStride() int {
	if f.Stride != 0 {
		return f.Stride
	}
	return f.Width * f.Format.BytesPerPixel()
}

// Validate checks the frame can be read in full.
func (f *Frame) Validate() error {
	if f == nil || f.Pix == nil || f.Width <= 0 || f.Height <= 0 {
		return ErrEmptyFrame
	}
	bpp := f.Format.BytesPerPixel()
	if bpp == 0 {
		return fmt.Errorf("%w: %v", ErrUnsupportedFormat, f.Format)
	}
	stride := f.RowStride()
	if stride < f.Width*bpp {
		return fmt.Errorf("%w: stride %d below row size %d", ErrShortBuffer, stride, f.Width*bpp)
	}
	if need := (f.Height-1)*stride + f.Width*bpp; len(f.Pix) < need {
		return fmt.Errorf("%w: have %d bytes, need %d for %dx%d %v", ErrShortBuffer, len(f.Pix), need, f.Width, f.Height, f.Format)
	}
	return nil
}
