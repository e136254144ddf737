package profile

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// SavitzkyGolay smooths y by fitting a polynomial of the given order to
// every window of samples and evaluating it at the window center. The
// first and last half windows are evaluated on the polynomial fitted to
// the first and last full window.
//
// The window is clipped to the largest odd length not exceeding len(y).
// When that leaves no more samples than coefficients, y is returned
// unchanged.
func SavitzkyGolay(y []float64, window, order int) ([]float64, error) {
	if order < 0 {
		return nil, fmt.Errorf("polynomial order must be non-negative, got %d", order)
	}
	out := make([]float64, len(y))
	copy(out, y)

	window = min(window, len(y))
	if window%2 == 0 {
		window--
	}
	if window <= order {
		return out, nil
	}

	fit, err := fitMatrix(window, order)
	if err != nil {
		return nil, err
	}
	half := window / 2

	// Interior: the constant coefficient is the fitted value at the center.
	center := fit.RawRowView(0)
	for i := half; i < len(y)-half; i++ {
		var s float64
		for j, c := range center {
			s += c * y[i-half+j]
		}
		out[i] = s
	}

	head := mat.NewVecDense(window, append([]float64(nil), y[:window]...))
	tail := mat.NewVecDense(window, append([]float64(nil), y[len(y)-window:]...))
	var headCoef, tailCoef mat.VecDense
	headCoef.MulVec(fit, head)
	tailCoef.MulVec(fit, tail)

	for i := 0; i < half; i++ {
		out[i] = evalPoly(&headCoef, float64(i-half)/float64(half))
		j := len(y) - half + i
		out[j] = evalPoly(&tailCoef, float64(i+1)/float64(half))
	}
	return out, nil
}

// fitMatrix returns the least squares operator that maps a window of
// samples to polynomial coefficients in the scaled position u = x/half,
// u in [-1, 1].
func fitMatrix(window, order int) (*mat.Dense, error) {
	half := window / 2
	vander := mat.NewDense(window, order+1, nil)
	for r := 0; r < window; r++ {
		u := float64(r-half) / float64(half)
		p := 1.0
		for c := 0; c <= order; c++ {
			vander.Set(r, c, p)
			p *= u
		}
	}

	ones := make([]float64, window)
	for i := range ones {
		ones[i] = 1
	}
	var fit mat.Dense
	if err := fit.Solve(vander, mat.NewDiagDense(window, ones)); err != nil {
		return nil, fmt.Errorf("savitzky-golay fit: %w", err)
	}
	return &fit, nil
}

func evalPoly(coef *mat.VecDense, u float64) float64 {
	var v float64
	for k := coef.Len() - 1; k >= 0; k-- {
		v = v*u + coef.AtVec(k)
	}
	return v
}

// Gradient returns the first derivative of y using central differences in
// the interior and one-sided differences at the ends.
func Gradient(y []float64) []float64 {
	n := len(y)
	g := make([]float64, n)
	if n < 2 {
		return g
	}
	g[0] = y[1] - y[0]
	g[n-1] = y[n-1] - y[n-2]
	for i := 1; i < n-1; i++ {
		g[i] = (y[i+1] - y[i-1]) / 2
	}
	return g
}

func absAll(v []float64) []float64 {
	out := make([]float64, len(v))
	for i, x := range v {
		out[i] = math.Abs(x)
	}
	return out
}
