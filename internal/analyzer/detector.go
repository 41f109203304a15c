package analyzer

import "image"

// Report summarises one analysed frame.
type Report struct {
	Variant  string
	Sampled  int             // pixels examined
	Flagged  int             // pixels that failed the check
	Fraction float64         // Flagged / Sampled
	Bounds   image.Rectangle // bounding box of flagged pixels
}

// Exceeds reports whether more than limit of the sampled pixels were flagged.
func (r Report) Exceeds(limit float64) bool {
	return r.Sampled > 0 && r.Fraction > limit
}

// Detector is the interface for frame analysis strategies
type Detector interface {
	Detect(img image.Image) (Report, error)
}

// tally accumulates flagged pixels into a Report.
type tally struct {
	Report
}

func (t *tally) add(x, y int, flagged bool) {
	t.Sampled++
	if !flagged {
		return
	}
	t.Flagged++
	p := image.Rect(x, y, x+1, y+1)
	if t.Bounds.Empty() {
		t.Bounds = p
	} else {
		t.Bounds = t.Bounds.Union(p)
	}
}

func (t *tally) done() Report {
	if t.Sampled > 0 {
		t.Fraction = float64(t.Flagged) / float64(t.Sampled)
	}
	return t.Report
}

// rgb returns the 8-bit-scaled channels of img at (x, y) as 0..1 values.
func rgb(img image.Image, x, y int) (r, g, b float64) {
	cr, cg, cb, _ := img.At(x, y).RGBA()
	return float64(cr) / 0xffff, float64(cg) / 0xffff, float64(cb) / 0xffff
}
