// Package overlay draws the text and tick layer presented on top of the scope image:
// target labels, the skin-tone label, ring ticks and parade level labels.
package overlay

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"math"
	"sync"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	"golang.org/x/image/vector"

	"github.com/ivlev/vectorscope/internal/calibration"
	"github.com/ivlev/vectorscope/internal/kernels"
)

// LabelOffset is how far, in pixels, labels sit outward from the point they name.
const LabelOffset = 20

var (
	labelColor = color.RGBA{200, 200, 200, 220}
	tickColor  = color.RGBA{110, 110, 110, 200}
)

// Layer selects what an overlay panel annotates.
type Layer int

const (
	VectorLayer Layer = iota
	ParadeLayer
)

// Panel is one annotated region of the presented image.
type Panel struct {
	Layer    Layer
	Viewport image.Rectangle
}

// Renderer rasterises overlays and caches them per layout. Only layouts of the current
// surface size are kept. Safe for concurrent use.
type Renderer struct {
	cfg  calibration.ScopeConfig
	face font.Face

	mu    sync.Mutex
	size  image.Point
	cache map[string]*image.RGBA
}

func NewRenderer(cfg calibration.ScopeConfig) *Renderer {
	return &Renderer{cfg: cfg, face: basicfont.Face7x13, cache: make(map[string]*image.RGBA)}
}

// Overlay returns the transparent overlay for an image of size holding panels. The
// result is shared and must not be modified.
func (r *Renderer) Overlay(size image.Point, panels []Panel) *image.RGBA {
	key := fmt.Sprint(size, panels)

	r.mu.Lock()
	defer r.mu.Unlock()
	if size != r.size {
		clear(r.cache)
		r.size = size
	}
	if img, ok := r.cache[key]; ok {
		return img
	}

	img := image.NewRGBA(image.Rectangle{Max: size})
	for _, p := range panels {
		switch p.Layer {
		case VectorLayer:
			r.drawVector(img, p.Viewport)
		case ParadeLayer:
			r.drawParade(img, p.Viewport)
		}
	}
	r.cache[key] = img
	return img
}

// Draw composites the overlay for panels onto dst.
func (r *Renderer) Draw(dst *image.RGBA, panels []Panel) {
	ov := r.Overlay(dst.Rect.Size(), panels)
	draw.Draw(dst, dst.Rect, ov, image.Point{}, draw.Over)
}

// CacheLen reports how many layouts are cached.
func (r *Renderer) CacheLen() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.cache)
}

func (r *Renderer) drawVector(img *image.RGBA, vp image.Rectangle) {
	w, h := vp.Dx(), vp.Dy()
	radius := float32(kernels.FullScaleRadius(w, h))
	ctr := kernels.Center(w, h)
	cx := float32(vp.Min.X+ctr.X) + 0.5
	cy := float32(vp.Min.Y+ctr.Y) + 0.5

	z := vector.NewRasterizer(img.Rect.Dx(), img.Rect.Dy())
	for deg := 0; deg < 360; deg += 2 {
		length := float32(4)
		if deg%10 == 0 {
			length = 8
		}
		rad := float64(deg) * math.Pi / 180
		dx, dy := float32(math.Cos(rad)), -float32(math.Sin(rad))
		line(z, cx+dx*(radius-length), cy+dy*(radius-length), cx+dx*radius, cy+dy*radius, 1)
	}
	z.Draw(img, img.Rect, image.NewUniform(tickColor), image.Point{})

	for i := 0; i < calibration.NumTargets; i++ {
		t := calibration.Target(i)
		tp := kernels.TargetPoint(w, h, r.cfg.Target(t))
		p := image.Pt(vp.Min.X+tp.X, vp.Min.Y+tp.Y)
		r.label(img, t.Label(), outward(p, image.Pt(vp.Min.X+ctr.X, vp.Min.Y+ctr.Y), LabelOffset))
	}

	dir := r.cfg.SkinDirection()
	reach := float64(radius) + LabelOffset
	skin := image.Pt(int(float64(cx)+dir.X*reach), int(float64(cy)+dir.Y*reach))
	r.label(img, calibration.SkinLabel, skin)
}

func (r *Renderer) drawParade(img *image.RGBA, vp image.Rectangle) {
	w, h := vp.Dx(), vp.Dy()
	for _, lvl := range []int{0, 25, 50, 75, 100} {
		y := vp.Min.Y + kernels.ParadeRow(h, float32(lvl)/100)
		r.text(img, fmt.Sprint(lvl), image.Pt(vp.Min.X+3, y-2))
	}
	for lane, name := range []string{"R", "G", "B"} {
		x := vp.Min.X + kernels.ParadeLaneX(w, lane) + kernels.ParadeLaneX(w, 1)/2
		r.label(img, name, image.Pt(x, vp.Max.Y-r.face.Metrics().Height.Ceil()/2))
	}
}

// label draws s centred on p.
func (r *Renderer) label(img *image.RGBA, s string, p image.Point) {
	m := r.face.Metrics()
	width := font.MeasureString(r.face, s).Ceil()
	baseline := p.Y + (m.Ascent.Ceil()-m.Descent.Ceil())/2
	r.text(img, s, image.Pt(p.X-width/2, baseline))
}

// text draws s with its baseline starting at p.
func (r *Renderer) text(img *image.RGBA, s string, p image.Point) {
	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(labelColor),
		Face: r.face,
		Dot:  fixed.Point26_6{X: fixed.I(p.X), Y: fixed.I(p.Y)},
	}
	d.DrawString(s)
}

// outward moves p away from origin by dist pixels.
func outward(p, origin image.Point, dist float64) image.Point {
	dx, dy := float64(p.X-origin.X), float64(p.Y-origin.Y)
	n := math.Hypot(dx, dy)
	if n == 0 {
		return image.Pt(p.X, p.Y-int(dist))
	}
	return image.Pt(p.X+int(math.Round(dx/n*dist)), p.Y+int(math.Round(dy/n*dist)))
}

// line adds a stroked segment of the given width to z as a closed quad.
func line(z *vector.Rasterizer, x0, y0, x1, y1, width float32) {
	dx, dy := x1-x0, y1-y0
	n := float32(math.Hypot(float64(dx), float64(dy)))
	if n == 0 {
		return
	}
	nx, ny := -dy/n*width/2, dx/n*width/2
	z.MoveTo(x0+nx, y0+ny)
	z.LineTo(x1+nx, y1+ny)
	z.LineTo(x1-nx, y1-ny)
	z.LineTo(x0-nx, y0-ny)
	z.ClosePath()
}
