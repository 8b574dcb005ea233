package kinematic

import "gonum.org/v1/gonum/mat"

// TransitionMatrix returns the 6×6 state-transition matrix A for an interval
// of dt. Each axis gets its own block
//
//	[1 dt]
//	[0  1]
//
// so position advances by velocity·dt and axes never couple.
func TransitionMatrix(dt float64) *mat.Dense {
	a := mat.NewDense(StateDim, StateDim, nil)
	for _, axis := range Axes {
		p, v := axis.PositionIndex(), axis.VelocityIndex()
		a.Set(p, p, 1)
		a.Set(p, v, dt)
		a.Set(v, v, 1)
	}
	return a
}

// ControlMatrix returns the 6×3 matrix B mapping an acceleration vector into
// a position displacement (½·dt²) and a velocity change (dt) on the same axis.
func ControlMatrix(dt float64) *mat.Dense {
	b := mat.NewDense(StateDim, ControlDim, nil)
	half := 0.5 * dt * dt
	for _, axis := range Axes {
		b.Set(axis.PositionIndex(), int(axis), half)
		b.Set(axis.VelocityIndex(), int(axis), dt)
	}
	return b
}

// IdentityMatrix returns a fresh 6×6 identity.
func IdentityMatrix() *mat.Dense {
	i := mat.NewDense(StateDim, StateDim, nil)
	for k := 0; k < StateDim; k++ {
		i.Set(k, k, 1)
	}
	return i
}

// SelectionMatrix returns a 6×6 observation matrix that passes through the
// listed state components and zeroes the rest. With every index listed it
// equals IdentityMatrix. It panics with mat.ErrIndexOutOfRange if an index
// is outside [0, StateDim).
func SelectionMatrix(observed ...int) *mat.Dense {
	c := mat.NewDense(StateDim, StateDim, nil)
	for _, k := range observed {
		if k < 0 || k >= StateDim {
			panic(mat.ErrIndexOutOfRange)
		}
		c.Set(k, k, 1)
	}
	return c
}
