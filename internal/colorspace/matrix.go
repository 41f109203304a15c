// Package colorspace converts RGB samples into the luma/chroma plane plotted by the scope.
package colorspace

import (
	"errors"
	"fmt"
	"strings"

	"gonum.org/v1/gonum/mat"
)

// Full-scale saturation divisors for the colour-difference signals:
// U = (B-Y)/2.03, V = (R-Y)/1.14.
const (
	UScale = 2.03
	VScale = 1.14
)

var ErrUnknownStandard = errors.New("colorspace: unknown standard")

// Standard selects the luma coefficients.
type Standard int

const (
	BT601 Standard = iota
	BT709
)

func (s Standard) String() string {
	switch s {
	case BT601:
		return "bt601"
	case BT709:
		return "bt709"
	default:
		return fmt.Sprintf("Standard(%d)", int(s))
	}
}

// weights returns Kr and Kb for the standard.
func (s Standard) weights() (kr, kb float64) {
	if s == BT709 {
		return 0.2126, 0.0722
	}
	return 0.299, 0.114
}

// ParseStandard accepts "bt601"/"601"/"" and "bt709"/"709".
func ParseStandard(name string) (Standard, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "bt601", "601", "rec601":
		return BT601, nil
	case "bt709", "709", "rec709":
		return BT709, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownStandard, name)
	}
}

// Matrix holds the forward RGB -> YUV transform and its inverse.
type Matrix struct {
	std  Standard
	fwd  *mat.Dense
	inv  *mat.Dense
	coef [9]float32
}

// New builds the transform for std. Rows are Y, U, V.
func New(std Standard) (*Matrix, error) {
	if std != BT601 && std != BT709 {
		return nil, fmt.Errorf("%w: %d", ErrUnknownStandard, int(std))
	}
	kr, kb := std.weights()
	kg := 1 - kr - kb

	fwd := mat.NewDense(3, 3, []float64{
		kr, kg, kb,
		-kr / UScale, -kg / UScale, (1 - kb) / UScale,
		(1 - kr) / VScale, -kg / VScale, -kb / VScale,
	})

	var inv mat.Dense
	if err := inv.Inverse(fwd); err != nil {
		return nil, fmt.Errorf("colorspace: invert %s matrix: %w", std, err)
	}

	m := &Matrix{std: std, fwd: fwd, inv: &inv}
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			m.coef[i*3+j] = float32(fwd.At(i, j))
		}
	}
	return m, nil
}

// MustNew is New for the built-in standards, which always invert.
func MustNew(std Standard) *Matrix {
	m, err := New(std)
	if err != nil {
		panic(err)
	}
	return m
}

func (m *Matrix) Standard() Standard { return m.std }

// Coefficients returns the forward matrix in row-major float32 order, the layout the
// kernels consume.
func (m *Matrix) Coefficients() [9]float32 { return m.coef }

// Luma returns Y for normalised r, g, b.
func (m *Matrix) Luma(r, g, b float64) float64 {
	return m.fwd.At(0, 0)*r + m.fwd.At(0, 1)*g + m.fwd.At(0, 2)*b
}

// Chroma returns the colour-difference pair (U, V) for normalised r, g, b.
func (m *Matrix) Chroma(r, g, b float64) (u, v float64) {
	u = m.fwd.At(1, 0)*r + m.fwd.At(1, 1)*g + m.fwd.At(1, 2)*b
	v = m.fwd.At(2, 0)*r + m.fwd.At(2, 1)*g + m.fwd.At(2, 2)*b
	return u, v
}

// ToRGB maps (Y, U, V) back to normalised RGB without clamping.
func (m *Matrix) ToRGB(y, u, v float64) (r, g, b float64) {
	in := mat.NewVecDense(3, []float64{y, u, v})
	var out mat.VecDense
	out.MulVec(m.inv, in)
	return out.AtVec(0), out.AtVec(1), out.AtVec(2)
}
