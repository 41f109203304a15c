package colorspace

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChromaOfNeutralsIsZero(t *testing.T) {
	for _, std := range []Standard{BT601, BT709} {
		m := MustNew(std)
		for _, level := range []float64{0, 0.25, 0.5, 1} {
			u, v := m.Chroma(level, level, level)
			assert.InDelta(t, 0, u, 1e-12, "%s u at %.2f", std, level)
			assert.InDelta(t, 0, v, 1e-12, "%s v at %.2f", std, level)
			assert.InDelta(t, level, m.Luma(level, level, level), 1e-12)
		}
	}
}

func TestBT601RedMatchesReferenceCoefficients(t *testing.T) {
	m := MustNew(BT601)
	u, v := m.Chroma(1, 0, 0)
	assert.InDelta(t, -0.299/UScale, u, 1e-9)
	assert.InDelta(t, 0.701/VScale, v, 1e-9)

	c := m.Coefficients()
	assert.InDelta(t, 0.299, c[0], 1e-6)
	assert.InDelta(t, 0.886/UScale, c[5], 1e-6)
}

func TestInverseRoundTrip(t *testing.T) {
	m := MustNew(BT709)
	r, g, b := 0.2, 0.6, 0.9
	y := m.Luma(r, g, b)
	u, v := m.Chroma(r, g, b)
	r2, g2, b2 := m.ToRGB(y, u, v)
	assert.InDelta(t, r, r2, 1e-9)
	assert.InDelta(t, g, g2, 1e-9)
	assert.InDelta(t, b, b2, 1e-9)
}

func TestParseStandard(t *testing.T) {
	tests := []struct {
		in      string
		want    Standard
		wantErr bool
	}{
		{"", BT601, false},
		{"BT601", BT601, false},
		{"709", BT709, false},
		{"rec709", BT709, false},
		{"pal", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseStandard(tt.in)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrUnknownStandard)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
