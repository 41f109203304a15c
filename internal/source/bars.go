package source

import (
	"context"

	"github.com/ivlev/vectorscope/internal/calibration"
	"github.com/ivlev/vectorscope/internal/ingest"
)

// BarsLevel is the amplitude of the generated colour bars.
const BarsLevel = 0.75

// barOrder is the left-to-right order of the coloured bars after the white bar.
var barOrder = [calibration.NumTargets]calibration.Target{
	calibration.Yellow,
	calibration.Cyan,
	calibration.Green,
	calibration.Magenta,
	calibration.Red,
	calibration.Blue,
}

// BarsSource repeats a frame of 75% colour bars. Each bar lands on its graticule target.
type BarsSource struct {
	opts  Options
	frame *ingest.Frame
}

func NewBarsSource(opts Options) *BarsSource {
	opts = opts.withDefaults()
	return &BarsSource{opts: opts, frame: Bars(opts.Width, opts.Height, BarsLevel)}
}

func (s *BarsSource) Run(ctx context.Context, out chan<- *ingest.Frame) error {
	return play(ctx, out, s.opts.FPS, true, 1, func(int) (*ingest.Frame, error) {
		return clone(s.frame), nil
	})
}

func (s *BarsSource) Close() error { return nil }

// Bars returns a w×h BGRA8 frame of seven vertical bars (white then the six colours of
// barOrder) at the given level.
func Bars(w, h int, level float64) *ingest.Frame {
	var colors [calibration.NumTargets + 1][3]uint8
	colors[0] = [3]uint8{to8(level), to8(level), to8(level)}
	for i, t := range barOrder {
		r, g, b := calibration.BarColor(t, level)
		colors[i+1] = [3]uint8{to8(r), to8(g), to8(b)}
	}

	pix := make([]byte, w*h*4)
	for x := 0; x < w; x++ {
		c := colors[x*len(colors)/w]
		for y := 0; y < h; y++ {
			i := (y*w + x) * 4
			pix[i], pix[i+1], pix[i+2], pix[i+3] = c[2], c[1], c[0], 0xff
		}
	}
	return &ingest.Frame{Pix: pix, Width: w, Height: h, Format: ingest.BGRA8}
}

func to8(v float64) uint8 {
	return uint8(v*255 + 0.5)
}
