package kinematic

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"gonum.org/v1/gonum/mat"
)

func TestTransitionMatrix(t *testing.T) {
	want := mat.NewDense(StateDim, StateDim, []float64{
		1, 0.5, 0, 0, 0, 0,
		0, 1, 0, 0, 0, 0,
		0, 0, 1, 0.5, 0, 0,
		0, 0, 0, 1, 0, 0,
		0, 0, 0, 0, 1, 0.5,
		0, 0, 0, 0, 0, 1,
	})

	got := TransitionMatrix(0.5)
	assert.True(t, mat.Equal(want, got), "A(0.5) =\n%v", mat.Formatted(got))
}

func TestControlMatrix(t *testing.T) {
	want := mat.NewDense(StateDim, ControlDim, []float64{
		2, 0, 0,
		2, 0, 0,
		0, 2, 0,
		0, 2, 0,
		0, 0, 2,
		0, 0, 2,
	})

	got := ControlMatrix(2)
	assert.True(t, mat.Equal(want, got), "B(2) =\n%v", mat.Formatted(got))

	// ½·dt² position term for a fractional step.
	assert.InDelta(t, 0.005, ControlMatrix(0.1).At(0, 0), tol)
	assert.InDelta(t, 0.1, ControlMatrix(0.1).At(1, 0), tol)
}

func TestIdentityMatrix(t *testing.T) {
	i := IdentityMatrix()
	r, c := i.Dims()
	assert.Equal(t, StateDim, r)
	assert.Equal(t, StateDim, c)
	assert.Equal(t, float64(StateDim), mat.Trace(i))
	assert.Equal(t, float64(StateDim), mat.Sum(i))
}

func TestSelectionMatrix(t *testing.T) {
	tests := []struct {
		name     string
		observed []int
		wantDiag []float64
	}{
		{"none", nil, []float64{0, 0, 0, 0, 0, 0}},
		{"positions", []int{0, 2, 4}, []float64{1, 0, 1, 0, 1, 0}},
		{"all", []int{0, 1, 2, 3, 4, 5}, []float64{1, 1, 1, 1, 1, 1}},
		{"repeated", []int{1, 1}, []float64{0, 1, 0, 0, 0, 0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := SelectionMatrix(tt.observed...)
			diag := make([]float64, StateDim)
			for k := range diag {
				diag[k] = c.At(k, k)
			}
			assert.Equal(t, tt.wantDiag, diag)
			assert.Equal(t, mat.Trace(c), mat.Sum(c), "selection matrix must be diagonal")
		})
	}

	assert.True(t, mat.Equal(IdentityMatrix(), SelectionMatrix(0, 1, 2, 3, 4, 5)))
}

func TestSelectionMatrix_OutOfRangePanics(t *testing.T) {
	for _, observed := range [][]int{{-1}, {StateDim}, {0, 2, 99}} {
		assert.PanicsWithValue(t, mat.ErrIndexOutOfRange, func() {
			SelectionMatrix(observed...)
		}, "observed %v", observed)
	}
}

func TestAxis(t *testing.T) {
	tests := []struct {
		axis     Axis
		name     string
		position int
		velocity int
	}{
		{AxisX, "x", 0, 1},
		{AxisY, "y", 2, 3},
		{AxisZ, "z", 4, 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.name, tt.axis.String())
			assert.Equal(t, tt.position, tt.axis.PositionIndex())
			assert.Equal(t, tt.velocity, tt.axis.VelocityIndex())
		})
	}

	assert.Equal(t, "unknown", Axis(7).String())
}
