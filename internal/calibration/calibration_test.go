package calibration

import (
	"math"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ivlev/vectorscope/internal/colorspace"
)

func TestToCartesianQuadrants(t *testing.T) {
	tests := []struct {
		name  string
		in    PolarTarget
		wantX float64
		wantY float64
	}{
		{"right", PolarTarget{1, 0}, 1, 0},
		{"up", PolarTarget{1, 90}, 0, -1},
		{"left", PolarTarget{0.5, 180}, -0.5, 0},
		{"down", PolarTarget{0.25, 270}, 0, 0.25},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := tt.in.ToCartesian()
			assert.InDelta(t, tt.wantX, c.X, 1e-12)
			assert.InDelta(t, tt.wantY, c.Y, 1e-12)
		})
	}
}

func TestPolarRoundTrip(t *testing.T) {
	for m := 0.0; m <= 1.0; m += 0.125 {
		for a := 0.0; a < 360; a += 7.5 {
			c := PolarTarget{Magnitude: m, AngleDegrees: a}.ToCartesian()
			p := c.Polar()
			assert.InDelta(t, m, p.Magnitude, 1e-9)
			if m == 0 {
				continue
			}
			d := math.Abs(p.AngleDegrees - a)
			if d > 180 {
				d = 360 - d
			}
			assert.Less(t, d, 1e-9, "angle %.1f mag %.3f", a, m)
		}
	}
}

func TestBuildDefault(t *testing.T) {
	cfg, err := Build(Default())
	require.NoError(t, err)

	red := cfg.Target(Red)
	assert.Less(t, red.X, 0.0, "red sits left of centre")
	assert.Less(t, red.Y, 0.0, "red sits above centre")
	assert.InDelta(t, 0.474, math.Hypot(red.X, red.Y), 1e-9)

	// Complementary hues are diametrically opposite.
	cy := cfg.Target(Cyan)
	assert.InDelta(t, -red.X, cy.X, 1e-9)
	assert.InDelta(t, -red.Y, cy.Y, 1e-9)

	assert.InDelta(t, 123.0, cfg.SkinAngle, 1e-12)
	assert.InDelta(t, 0.015, cfg.BoxSizeRatio, 1e-12)
}

func TestBuildNormalizesAngles(t *testing.T) {
	cal := Default()
	cal.Targets.R.AngleDegrees = 103.5 + 720
	cal.Skin.AngleDegrees = -237

	cfg, err := Build(cal)
	require.NoError(t, err)

	want := MustBuild(Default())
	assert.InDelta(t, want.Target(Red).X, cfg.Target(Red).X, 1e-9)
	assert.InDelta(t, want.Target(Red).Y, cfg.Target(Red).Y, 1e-9)
	assert.InDelta(t, 123.0, cfg.SkinAngle, 1e-9)
}

func TestBuildRejectsInvalid(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Calibration)
	}{
		{"magnitude above one", func(c *Calibration) { c.Targets.G.Magnitude = 1.2 }},
		{"negative magnitude", func(c *Calibration) { c.Targets.B.Magnitude = -0.1 }},
		{"nan magnitude", func(c *Calibration) { c.Targets.YL.Magnitude = math.NaN() }},
		{"infinite angle", func(c *Calibration) { c.Targets.MG.AngleDegrees = math.Inf(1) }},
		{"skin saturation", func(c *Calibration) { c.Skin.Saturation = 2 }},
		{"skin angle nan", func(c *Calibration) { c.Skin.AngleDegrees = math.NaN() }},
		{"zero box", func(c *Calibration) { c.BoxSizeRatio = 0 }},
		{"huge box", func(c *Calibration) { c.BoxSizeRatio = 0.75 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cal := Default()
			tt.mutate(&cal)
			_, err := Build(cal)
			require.ErrorIs(t, err, ErrInvalidTarget)
		})
	}
}

func TestDerivedTargetsMatchDefaults(t *testing.T) {
	derived, err := DeriveTargets(colorspace.MustNew(colorspace.BT601), 0.75)
	require.NoError(t, err)

	def := Default().Targets
	for i := 0; i < NumTargets; i++ {
		tg := Target(i)
		got, want := derived.At(tg), def.At(tg)
		assert.InDelta(t, want.Magnitude, got.Magnitude, 0.003, tg.Label())

		d := math.Abs(got.AngleDegrees - want.AngleDegrees)
		if d > 180 {
			d = 360 - d
		}
		assert.Less(t, d, 0.6, "%s angle %.2f vs %.2f", tg.Label(), got.AngleDegrees, want.AngleDegrees)
	}

	_, err = DeriveTargets(colorspace.MustNew(colorspace.BT601), 0)
	assert.ErrorIs(t, err, ErrInvalidTarget)
}

func TestFileRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "calibration.yaml")

	cal := Default()
	cal.Standard = "bt709"
	cal.Targets.R.Magnitude = 0.5
	cal.Skin.AngleDegrees = 120
	require.NoError(t, WriteFile(cal, path))

	got, err := ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, cal, got)

	loaded, cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cal, loaded)
	assert.InDelta(t, 120.0, cfg.SkinAngle, 1e-12)
}

func TestLoadWithoutPathUsesDefault(t *testing.T) {
	cal, cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cal)
	assert.Equal(t, MustBuild(Default()), cfg)
}

func TestLabels(t *testing.T) {
	assert.Equal(t, "R", Red.Label())
	assert.Equal(t, "YL", Yellow.Label())
	assert.Equal(t, "Target(9)", Target(9).Label())
}
