// Package source produces frames for the scope: live capture through ffmpeg, still
// images, PDF pages and generated colour bars.
package source

import (
	"context"
	"fmt"
	"image"
	"time"

	xdraw "golang.org/x/image/draw"

	"github.com/ivlev/vectorscope/internal/ingest"
)

// Source pushes frames to out until the input ends or ctx is cancelled. Frames sent on
// out are never modified afterwards.
type Source interface {
	Run(ctx context.Context, out chan<- *ingest.Frame) error
	Close() error
}

// Options tunes sources. Fields a source does not use are ignored.
type Options struct {
	Width, Height int     // capture or generated frame size
	FPS           float64 // frame rate for sources that pace themselves
	Loop          bool    // restart finite inputs at the end
	DPI           int     // PDF render resolution
	Device        string  // capture device; empty means the platform default
}

const (
	DefaultFPS = 30
	DefaultDPI = 72
)

func (o Options) withDefaults() Options {
	if o.Width <= 0 {
		o.Width = 1280
	}
	if o.Height <= 0 {
		o.Height = 720
	}
	if o.FPS <= 0 {
		o.FPS = DefaultFPS
	}
	if o.DPI <= 0 {
		o.DPI = DefaultDPI
	}
	return o
}

// New creates a source by kind: bars, image, pdf or ffmpeg.
func New(kind, path string, opts Options) (Source, error) {
	switch kind {
	case "bars", "":
		return NewBarsSource(opts), nil
	case "image":
		return NewImageSource(path, opts)
	case "pdf":
		return NewPDFSource(path, opts)
	case "ffmpeg", "capture":
		return NewFFmpegSource(path, opts), nil
	default:
		return nil, fmt.Errorf("unknown source kind: %s", kind)
	}
}

func send(ctx context.Context, out chan<- *ingest.Frame, f *ingest.Frame) error {
	select {
	case out <- f:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// play sends n frames at fps, restarting when loop is set. frame must return a new
// *ingest.Frame on every call; its pixels may be shared.
func play(ctx context.Context, out chan<- *ingest.Frame, fps float64, loop bool, n int, frame func(i int) (*ingest.Frame, error)) error {
	ticker := time.NewTicker(time.Duration(float64(time.Second) / fps))
	defer ticker.Stop()

	var seq uint64
	for {
		for i := 0; i < n; i++ {
			f, err := frame(i)
			if err != nil {
				return err
			}
			seq++
			f.Seq = seq
			f.Timestamp = time.Now()
			if err := send(ctx, out, f); err != nil {
				return err
			}

			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-ticker.C:
			}
		}
		if !loop {
			return nil
		}
	}
}

// frameFromImage wraps img as an RGBA8 frame, copying only when img is not already a
// tightly anchored *image.RGBA.
func frameFromImage(img image.Image) *ingest.Frame {
	b := img.Bounds()
	rgba, ok := img.(*image.RGBA)
	if !ok || rgba.Rect.Min != (image.Point{}) {
		rgba = image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
		xdraw.Draw(rgba, rgba.Rect, img, b.Min, xdraw.Src)
	}
	return &ingest.Frame{
		Pix:    rgba.Pix,
		Width:  b.Dx(),
		Height: b.Dy(),
		Stride: rgba.Stride,
		Format: ingest.RGBA8,
	}
}

func clone(f *ingest.Frame) *ingest.Frame {
	cp := *f
	return &cp
}
