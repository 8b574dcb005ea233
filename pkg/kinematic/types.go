// Package kinematic implements a discrete-time linear Kalman filter that
// estimates the 3-D position and velocity of a single moving object.
//
// Each step fuses a constant-acceleration motion model with a direct
// position/velocity measurement. The state layout is fixed:
//
//	[x, ẋ, y, ẏ, z, ż]
//
// The gain is computed elementwise rather than with the textbook matrix
// inverse. See Gain for the exact formula.
package kinematic

import (
	"errors"

	"gonum.org/v1/gonum/mat"
)

const (
	// StateDim is the length of the state and measurement vectors.
	StateDim = 6

	// ControlDim is the length of the acceleration (control) vector.
	ControlDim = 3
)

// Errors returned by the filter. Callers should test with errors.Is; the
// returned errors wrap these with details about the offending input.
var (
	// ErrInvalidDimension is returned when a vector or matrix has the wrong shape.
	ErrInvalidDimension = errors.New("kinematic: invalid dimension")

	// ErrInvalidTimeStep is returned when dt is not a finite positive number.
	ErrInvalidTimeStep = errors.New("kinematic: invalid time step")

	// ErrInvalidInput is returned when an input contains NaN or Inf.
	ErrInvalidInput = errors.New("kinematic: invalid input")

	// ErrDiverged is returned when a step overflows to NaN or Inf. The
	// previous belief is kept; callers usually Reset.
	ErrDiverged = errors.New("kinematic: estimate diverged")
)

// Axis identifies one of the three orthogonal axes.
type Axis int

const (
	// AxisX is the first axis; its components occupy state indices 0 and 1.
	AxisX Axis = iota
	// AxisY occupies state indices 2 and 3.
	AxisY
	// AxisZ occupies state indices 4 and 5.
	AxisZ
)

// Axes lists every axis in state order.
var Axes = [...]Axis{AxisX, AxisY, AxisZ}

// String returns a string representation of the axis.
func (a Axis) String() string {
	switch a {
	case AxisX:
		return "x"
	case AxisY:
		return "y"
	case AxisZ:
		return "z"
	default:
		return "unknown"
	}
}

// PositionIndex returns the state index holding the position on this axis.
func (a Axis) PositionIndex() int {
	return 2 * int(a)
}

// VelocityIndex returns the state index holding the velocity on this axis.
func (a Axis) VelocityIndex() int {
	return 2*int(a) + 1
}

// NewStateVector builds a state (or measurement) vector in filter order.
func NewStateVector(x, vx, y, vy, z, vz float64) *mat.VecDense {
	return mat.NewVecDense(StateDim, []float64{x, vx, y, vy, z, vz})
}

// NewAcceleration builds a control vector.
func NewAcceleration(ax, ay, az float64) *mat.VecDense {
	return mat.NewVecDense(ControlDim, []float64{ax, ay, az})
}
