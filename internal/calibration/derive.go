package calibration

import (
	"fmt"
	"math"

	"github.com/ivlev/vectorscope/internal/colorspace"
)

// barColors are the primary/secondary bars in R, MG, B, CY, G, YL order at 100%.
var barColors = [NumTargets][3]float64{
	{1, 0, 0},
	{1, 0, 1},
	{0, 0, 1},
	{0, 1, 1},
	{0, 1, 0},
	{1, 1, 0},
}

// BarColor returns the RGB of the colour bar for t at the given amplitude.
func BarColor(t Target, level float64) (r, g, b float64) {
	c := barColors[t]
	return c[0] * level, c[1] * level, c[2] * level
}

// DeriveTargets computes the polar target of each colour bar at the given amplitude
// (0.75 for standard bars) through m. Angle is atan2(V, U), the scope's convention.
func DeriveTargets(m *colorspace.Matrix, level float64) (TargetSet, error) {
	if level <= 0 || level > 1 {
		return TargetSet{}, fmt.Errorf("%w: bar level %v outside (0, 1]", ErrInvalidTarget, level)
	}
	var out [NumTargets]PolarTarget
	for i := range barColors {
		u, v := m.Chroma(BarColor(Target(i), level))
		out[i] = PolarTarget{
			Magnitude:    math.Hypot(u, v),
			AngleDegrees: NormalizeAngle(math.Atan2(v, u) * 180 / math.Pi),
		}
	}
	return TargetSet{R: out[0], MG: out[1], B: out[2], CY: out[3], G: out[4], YL: out[5]}, nil
}
