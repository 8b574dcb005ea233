package kinematic

import (
	"fmt"
	"math"

	"github.com/pion/logging"
	"gonum.org/v1/gonum/mat"
)

// FilterConfig holds tunable parameters for the kinematic Kalman filter.
// The zero value is usable: nil matrices fall back to identity and a nil
// LoggerFactory falls back to logging.NewDefaultLoggerFactory().
type FilterConfig struct {
	// ObservationMatrix (C) maps a measurement into state space.
	// Must be 6×6. Default: identity (every component observed).
	// Use SelectionMatrix for partial observability.
	ObservationMatrix mat.Matrix

	// MeasurementNoise (R) is the per-entry measurement noise used by Gain.
	// Must be 6×6. Default: identity.
	MeasurementNoise mat.Matrix

	// LoggerFactory creates the "kinematic" scoped logger. Gain and
	// corrected state are logged at Trace level on every step.
	LoggerFactory logging.LoggerFactory

	// OnEstimate, if set, is called after every successful step with all
	// intermediate values. The hook receives its own copy of the Step and
	// may modify it. When the filter is owned by a Tracker the hook runs
	// after the Tracker lock is released.
	OnEstimate func(Step)
}

// DefaultFilterConfig returns the default configuration: full-state
// observation and unit measurement noise.
func DefaultFilterConfig() FilterConfig {
	return FilterConfig{
		ObservationMatrix: IdentityMatrix(),
		MeasurementNoise:  IdentityMatrix(),
	}
}

// Step holds every intermediate value of one predict/correct cycle.
type Step struct {
	Dt                  float64
	PredictedState      *mat.VecDense
	PredictedCovariance *mat.Dense
	Observation         *mat.VecDense
	Gain                *mat.Dense
	CorrectedState      *mat.VecDense
	CorrectedCovariance *mat.Dense
}

// KinematicKalmanFilter tracks position and velocity on three axes.
//
// The filter owns its belief (state + covariance) exclusively; it changes
// only through Estimate, EstimateStep and Reset. It is not safe for
// concurrent use. Wrap it in a Tracker when more than one goroutine
// feeds measurements.
type KinematicKalmanFilter struct {
	observation *mat.Dense // C
	noise       *mat.Dense // R
	identity    *mat.Dense // I
	onEstimate  func(Step)
	log         logging.LeveledLogger

	state      *mat.VecDense
	covariance *mat.Dense
}

// NewKinematicKalmanFilter creates a filter from a prior belief.
// Inputs are copied. It returns ErrInvalidDimension when the state is not
// length 6 or a matrix is not 6×6, and ErrInvalidInput when any value is
// NaN or Inf.
func NewKinematicKalmanFilter(initialState mat.Vector, initialCovariance mat.Matrix, config FilterConfig) (*KinematicKalmanFilter, error) {
	observation := config.ObservationMatrix
	if observation == nil {
		observation = IdentityMatrix()
	}
	noise := config.MeasurementNoise
	if noise == nil {
		noise = IdentityMatrix()
	}
	if err := checkMatrix("observation matrix", observation, StateDim, StateDim); err != nil {
		return nil, err
	}
	if err := checkMatrix("measurement noise", noise, StateDim, StateDim); err != nil {
		return nil, err
	}
	if err := checkBelief(initialState, initialCovariance); err != nil {
		return nil, err
	}

	loggerFactory := config.LoggerFactory
	if loggerFactory == nil {
		loggerFactory = logging.NewDefaultLoggerFactory()
	}

	return &KinematicKalmanFilter{
		observation: mat.DenseCopyOf(observation),
		noise:       mat.DenseCopyOf(noise),
		identity:    IdentityMatrix(),
		onEstimate:  config.OnEstimate,
		log:         loggerFactory.NewLogger("kinematic"),
		state:       mat.VecDenseCopyOf(initialState),
		covariance:  mat.DenseCopyOf(initialCovariance),
	}, nil
}

// Estimate runs one predict/correct cycle and returns the corrected state.
//
// measurement is a 6-vector in state layout, acceleration a 3-vector applied
// over dt seconds. On success the filter's belief is replaced; on error it
// is left untouched. ErrDiverged reports a step whose result overflowed.
func (k *KinematicKalmanFilter) Estimate(measurement, acceleration mat.Vector, dt float64) (*mat.VecDense, error) {
	step, err := k.EstimateStep(measurement, acceleration, dt)
	if err != nil {
		return nil, err
	}
	return mat.VecDenseCopyOf(step.CorrectedState), nil
}

// EstimateStep is Estimate but returns every intermediate value.
func (k *KinematicKalmanFilter) EstimateStep(measurement, acceleration mat.Vector, dt float64) (Step, error) {
	if err := checkVector("measurement", measurement, StateDim); err != nil {
		k.log.Debugf("rejected step: %v", err)
		return Step{}, err
	}
	predicted, predictedCov, err := k.Predict(acceleration, dt)
	if err != nil {
		k.log.Debugf("rejected step: %v", err)
		return Step{}, err
	}

	// z = C·measurement
	observation := mat.NewVecDense(StateDim, nil)
	observation.MulVec(k.observation, measurement)

	gain := Gain(predictedCov, k.noise)

	// x⁺ = x⁻ + K·(z − x⁻)
	innovation := mat.NewVecDense(StateDim, nil)
	innovation.SubVec(observation, predicted)
	corrected := mat.NewVecDense(StateDim, nil)
	corrected.MulVec(gain, innovation)
	corrected.AddVec(predicted, corrected)

	// P⁺ = (I − K)·P⁻
	var retain mat.Dense
	retain.Sub(k.identity, gain)
	correctedCov := mat.NewDense(StateDim, StateDim, nil)
	correctedCov.Mul(&retain, predictedCov)

	k.log.Tracef("gain (dt=%g):\n%v", dt, mat.Formatted(gain, mat.Squeeze()))
	k.log.Tracef("corrected state: %v", mat.Formatted(corrected.T(), mat.Squeeze()))

	if checkVector("corrected state", corrected, StateDim) != nil ||
		checkMatrix("corrected covariance", correctedCov, StateDim, StateDim) != nil {
		k.log.Warnf("step diverged (dt=%g), keeping previous belief", dt)
		return Step{}, fmt.Errorf("%w: dt = %v", ErrDiverged, dt)
	}

	k.state = corrected
	k.covariance = correctedCov

	step := Step{
		Dt:                  dt,
		PredictedState:      predicted,
		PredictedCovariance: predictedCov,
		Observation:         observation,
		Gain:                gain,
		CorrectedState:      mat.VecDenseCopyOf(corrected),
		CorrectedCovariance: mat.DenseCopyOf(correctedCov),
	}
	if k.onEstimate != nil {
		k.onEstimate(step.clone())
	}
	return step, nil
}

// clone returns a deep copy of s.
func (s Step) clone() Step {
	return Step{
		Dt:                  s.Dt,
		PredictedState:      mat.VecDenseCopyOf(s.PredictedState),
		PredictedCovariance: mat.DenseCopyOf(s.PredictedCovariance),
		Observation:         mat.VecDenseCopyOf(s.Observation),
		Gain:                mat.DenseCopyOf(s.Gain),
		CorrectedState:      mat.VecDenseCopyOf(s.CorrectedState),
		CorrectedCovariance: mat.DenseCopyOf(s.CorrectedCovariance),
	}
}

// Predict projects the current belief dt seconds forward under the given
// acceleration without modifying the filter:
//
//	x⁻ = A·x + B·u
//	P⁻ = A·P·Aᵀ
func (k *KinematicKalmanFilter) Predict(acceleration mat.Vector, dt float64) (*mat.VecDense, *mat.Dense, error) {
	if err := checkTimeStep(dt); err != nil {
		return nil, nil, err
	}
	if err := checkVector("acceleration", acceleration, ControlDim); err != nil {
		return nil, nil, err
	}

	a := TransitionMatrix(dt)
	b := ControlMatrix(dt)

	state := mat.NewVecDense(StateDim, nil)
	state.MulVec(a, k.state)
	var control mat.VecDense
	control.MulVec(b, acceleration)
	state.AddVec(state, &control)

	covariance := mat.NewDense(StateDim, StateDim, nil)
	covariance.Product(a, k.covariance, a.T())

	return state, covariance, nil
}

// State returns a copy of the last corrected state (or the initial state
// before the first step).
func (k *KinematicKalmanFilter) State() *mat.VecDense {
	return mat.VecDenseCopyOf(k.state)
}

// Covariance returns a copy of the last corrected covariance.
func (k *KinematicKalmanFilter) Covariance() *mat.Dense {
	return mat.DenseCopyOf(k.covariance)
}

// Reset replaces the belief with a new prior, for example after a long
// gap in measurements. The configuration is kept.
func (k *KinematicKalmanFilter) Reset(state mat.Vector, covariance mat.Matrix) error {
	if err := checkBelief(state, covariance); err != nil {
		return err
	}
	k.state = mat.VecDenseCopyOf(state)
	k.covariance = mat.DenseCopyOf(covariance)
	return nil
}

func checkBelief(state mat.Vector, covariance mat.Matrix) error {
	if err := checkVector("state", state, StateDim); err != nil {
		return err
	}
	return checkMatrix("covariance", covariance, StateDim, StateDim)
}

func checkVector(name string, v mat.Vector, n int) error {
	if v == nil {
		return fmt.Errorf("%w: %s is nil", ErrInvalidDimension, name)
	}
	if v.Len() != n {
		return fmt.Errorf("%w: %s has length %d, want %d", ErrInvalidDimension, name, v.Len(), n)
	}
	for i := 0; i < n; i++ {
		if x := v.AtVec(i); math.IsNaN(x) || math.IsInf(x, 0) {
			return fmt.Errorf("%w: %s[%d] = %v", ErrInvalidInput, name, i, x)
		}
	}
	return nil
}

func checkMatrix(name string, m mat.Matrix, rows, cols int) error {
	if m == nil {
		return fmt.Errorf("%w: %s is nil", ErrInvalidDimension, name)
	}
	if r, c := m.Dims(); r != rows || c != cols {
		return fmt.Errorf("%w: %s is %dx%d, want %dx%d", ErrInvalidDimension, name, r, c, rows, cols)
	}
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			if x := m.At(i, j); math.IsNaN(x) || math.IsInf(x, 0) {
				return fmt.Errorf("%w: %s[%d][%d] = %v", ErrInvalidInput, name, i, j, x)
			}
		}
	}
	return nil
}

func checkTimeStep(dt float64) error {
	if math.IsNaN(dt) || math.IsInf(dt, 0) || dt <= 0 {
		return fmt.Errorf("%w: dt = %v, must be positive", ErrInvalidTimeStep, dt)
	}
	return nil
}
