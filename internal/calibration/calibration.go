// Package calibration turns the polar colour-bar and skin-tone targets into the fixed
// configuration block read by the scope kernels.
package calibration

import (
	"errors"
	"fmt"
	"math"
)

var ErrInvalidTarget = errors.New("calibration: invalid target")

// Target identifies one of the six standard colour-bar hues.
type Target int

const (
	Red Target = iota
	Magenta
	Blue
	Cyan
	Green
	Yellow

	NumTargets = 6
)

var labels = [NumTargets]string{"R", "MG", "B", "CY", "G", "YL"}

// SkinLabel is drawn next to the skin-tone indicator.
const SkinLabel = "SKIN"

// Label returns the short graticule label for t.
func (t Target) Label() string {
	if t < 0 || int(t) >= NumTargets {
		return fmt.Sprintf("Target(%d)", int(t))
	}
	return labels[t]
}

// PolarTarget is a calibration point as a saturation fraction of full scale and an angle
// counter-clockwise from the positive horizontal axis (0 = right, 90 = up).
type PolarTarget struct {
	Magnitude    float64 `yaml:"magnitude"`
	AngleDegrees float64 `yaml:"angle"`
}

// CartesianTarget is a point in scope space. Y grows downward, matching the image
// coordinate space of the analysis image.
type CartesianTarget struct {
	X, Y float64
}

// ToCartesian converts p to scope space: (m·cos θ, −m·sin θ).
func (p PolarTarget) ToCartesian() CartesianTarget {
	rad := p.AngleDegrees * math.Pi / 180
	return CartesianTarget{
		X: p.Magnitude * math.Cos(rad),
		Y: -p.Magnitude * math.Sin(rad),
	}
}

// Polar is the inverse of ToCartesian with the angle in [0, 360).
func (c CartesianTarget) Polar() PolarTarget {
	return PolarTarget{
		Magnitude:    math.Hypot(c.X, c.Y),
		AngleDegrees: NormalizeAngle(math.Atan2(-c.Y, c.X) * 180 / math.Pi),
	}
}

// NormalizeAngle maps deg into [0, 360).
func NormalizeAngle(deg float64) float64 {
	a := math.Mod(deg, 360)
	if a < 0 {
		a += 360
	}
	return a
}

// TargetSet holds the polar position of every colour-bar hue.
type TargetSet struct {
	R  PolarTarget `yaml:"r"`
	MG PolarTarget `yaml:"mg"`
	B  PolarTarget `yaml:"b"`
	CY PolarTarget `yaml:"cy"`
	G  PolarTarget `yaml:"g"`
	YL PolarTarget `yaml:"yl"`
}

// At returns the target for t in R, MG, B, CY, G, YL order.
func (s TargetSet) At(t Target) PolarTarget {
	return s.list()[t]
}

func (s TargetSet) list() [NumTargets]PolarTarget {
	return [NumTargets]PolarTarget{s.R, s.MG, s.B, s.CY, s.G, s.YL}
}

// SkinTone describes the skin-tone reference indicator.
type SkinTone struct {
	AngleDegrees float64 `yaml:"angle"`
	Saturation   float64 `yaml:"saturation"`
}

// Calibration is the startup input from which ScopeConfig is built.
type Calibration struct {
	Version      string    `yaml:"version"`
	Standard     string    `yaml:"standard"`
	Targets      TargetSet `yaml:"targets"`
	Skin         SkinTone  `yaml:"skin"`
	BoxSizeRatio float64   `yaml:"boxSizeRatio"`
}

// Default returns the Rec.601 75% colour-bar calibration.
func Default() Calibration {
	return Calibration{
		Version:  "1.0",
		Standard: "bt601",
		Targets: TargetSet{
			R:  PolarTarget{Magnitude: 0.474, AngleDegrees: 103.5},
			MG: PolarTarget{Magnitude: 0.443, AngleDegrees: 60.7},
			B:  PolarTarget{Magnitude: 0.336, AngleDegrees: 347.1},
			CY: PolarTarget{Magnitude: 0.474, AngleDegrees: 283.5},
			G:  PolarTarget{Magnitude: 0.443, AngleDegrees: 240.7},
			YL: PolarTarget{Magnitude: 0.336, AngleDegrees: 167.1},
		},
		Skin:         SkinTone{AngleDegrees: 123, Saturation: 0.25},
		BoxSizeRatio: 0.015,
	}
}

// ScopeConfig is the read-only uniform block consumed by the kernels. It is a value type:
// changing calibration means building a new ScopeConfig and swapping it whole.
type ScopeConfig struct {
	Targets        [NumTargets]CartesianTarget
	SkinAngle      float64 // degrees, [0, 360)
	SkinSaturation float64
	BoxSizeRatio   float64
}

// Target returns the scope-space position of t.
func (c ScopeConfig) Target(t Target) CartesianTarget { return c.Targets[t] }

// SkinDirection is the unit vector of the skin-tone line in scope space.
func (c ScopeConfig) SkinDirection() CartesianTarget {
	return PolarTarget{Magnitude: 1, AngleDegrees: c.SkinAngle}.ToCartesian()
}

// Build validates cal and converts it into a ScopeConfig. Out-of-range values are
// rejected, never clamped.
func Build(cal Calibration) (ScopeConfig, error) {
	var cfg ScopeConfig
	for i, p := range cal.Targets.list() {
		t := Target(i)
		if err := checkUnit(p.Magnitude); err != nil {
			return ScopeConfig{}, fmt.Errorf("%w: %s magnitude %v: %v", ErrInvalidTarget, t.Label(), p.Magnitude, err)
		}
		if !finite(p.AngleDegrees) {
			return ScopeConfig{}, fmt.Errorf("%w: %s angle %v is not finite", ErrInvalidTarget, t.Label(), p.AngleDegrees)
		}
		p.AngleDegrees = NormalizeAngle(p.AngleDegrees)
		cfg.Targets[i] = p.ToCartesian()
	}

	if err := checkUnit(cal.Skin.Saturation); err != nil {
		return ScopeConfig{}, fmt.Errorf("%w: skin saturation %v: %v", ErrInvalidTarget, cal.Skin.Saturation, err)
	}
	if !finite(cal.Skin.AngleDegrees) {
		return ScopeConfig{}, fmt.Errorf("%w: skin angle %v is not finite", ErrInvalidTarget, cal.Skin.AngleDegrees)
	}
	if !finite(cal.BoxSizeRatio) || cal.BoxSizeRatio <= 0 || cal.BoxSizeRatio > 0.5 {
		return ScopeConfig{}, fmt.Errorf("%w: box size ratio %v outside (0, 0.5]", ErrInvalidTarget, cal.BoxSizeRatio)
	}

	cfg.SkinAngle = NormalizeAngle(cal.Skin.AngleDegrees)
	cfg.SkinSaturation = cal.Skin.Saturation
	cfg.BoxSizeRatio = cal.BoxSizeRatio
	return cfg, nil
}

// MustBuild is Build for calibrations known to be valid, such as Default.
func MustBuild(cal Calibration) ScopeConfig {
	cfg, err := Build(cal)
	if err != nil {
		panic(err)
	}
	return cfg
}

func checkUnit(v float64) error {
	if !finite(v) {
		return errors.New("not finite")
	}
	if v < 0 || v > 1 {
		return errors.New("outside [0, 1]")
	}
	return nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
