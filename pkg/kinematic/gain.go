package kinematic

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// Gain computes the filter gain as the elementwise ratio
//
//	K[i][j] = P[i][j] / (P[i][j] + R[i][j])
//
// where P is the predicted covariance and R the measurement noise.
//
// This is not the textbook Kalman gain P·Hᵀ·(H·P·Hᵀ + R)⁻¹. The two agree
// only when P and R are diagonal; correlated (off-diagonal) terms are
// weighted differently, and with the default model the covariance grows
// without bound over a few hundred steps. Estimates produced by existing
// callers depend on the elementwise form.
//
// Indeterminate entries (0/0) become 0. Entries that overflow to ±Inf are
// clamped to ±math.MaxFloat64.
func Gain(predictedCovariance, noise mat.Matrix) *mat.Dense {
	r, c := predictedCovariance.Dims()

	var denom mat.Dense
	denom.Add(predictedCovariance, noise)

	k := mat.NewDense(r, c, nil)
	k.DivElem(predictedCovariance, &denom)
	k.Apply(func(_, _ int, v float64) float64 {
		switch {
		case math.IsNaN(v):
			return 0
		case math.IsInf(v, 1):
			return math.MaxFloat64
		case math.IsInf(v, -1):
			return -math.MaxFloat64
		}
		return v
	}, k)
	return k
}
