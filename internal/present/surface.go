// Package present provides the surfaces scope images are presented to.
package present

import (
	"errors"
	"image"
	"image/png"
	"os"
	"sync"
)

var ErrNothingPresented = errors.New("present: nothing presented yet")

// MemorySurface keeps a copy of the last presented image.
type MemorySurface struct {
	mu     sync.Mutex
	w, h   int
	last   *image.RGBA
	frames uint64
}

func NewMemorySurface(w, h int) *MemorySurface {
	return &MemorySurface{w: w, h: h}
}

func (s *MemorySurface) Size() (int, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w, s.h
}

// Resize changes the size reported to the scheduler.
func (s *MemorySurface) Resize(w, h int) {
	s.mu.Lock()
	s.w, s.h = w, h
	s.mu.Unlock()
}

func (s *MemorySurface) Present(img *image.RGBA) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.last == nil || s.last.Rect != img.Rect {
		s.last = image.NewRGBA(img.Rect)
	}
	copy(s.last.Pix, img.Pix)
	s.frames++
	return nil
}

// Last returns a copy of the last presented image, or nil.
func (s *MemorySurface) Last() *image.RGBA {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.last == nil {
		return nil
	}
	cp := image.NewRGBA(s.last.Rect)
	copy(cp.Pix, s.last.Pix)
	return cp
}

// Frames returns how many images were presented.
func (s *MemorySurface) Frames() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.frames
}

// PNGSurface is a MemorySurface that can write its last image to a PNG file.
type PNGSurface struct {
	*MemorySurface
}

func NewPNGSurface(w, h int) *PNGSurface {
	return &PNGSurface{MemorySurface: NewMemorySurface(w, h)}
}

// Snapshot writes the last presented image to path.
func (s *PNGSurface) Snapshot(path string) error {
	img := s.Last()
	if img == nil {
		return ErrNothingPresented
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// Surface is the scope presentation contract; it matches scope.Surface.
type Surface interface {
	Size() (w, h int)
	Present(img *image.RGBA) error
}

// Tee presents every image to all surfaces and reports the size of the first.
type Tee []Surface

func (t Tee) Size() (int, int) {
	if len(t) == 0 {
		return 0, 0
	}
	return t[0].Size()
}

// Resize forwards to every surface that can be resized.
func (t Tee) Resize(w, h int) {
	for _, s := range t {
		if r, ok := s.(interface{ Resize(w, h int) }); ok {
			r.Resize(w, h)
		}
	}
}

func (t Tee) Present(img *image.RGBA) error {
	var errs []error
	for _, s := range t {
		if err := s.Present(img); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
