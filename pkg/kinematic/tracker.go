package kinematic

import (
	"fmt"
	"sync"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/thesyncim/kinematic/pkg/kinematic/internal"
)

// TrackerConfig holds configuration for a Tracker.
type TrackerConfig struct {
	// Filter configures the underlying KinematicKalmanFilter.
	Filter FilterConfig

	// MaxTimeStep rejects updates that arrive longer than this after the
	// previous one. Callers typically Reset the tracker after such a gap.
	// Zero disables the check.
	MaxTimeStep time.Duration
}

// DefaultTrackerConfig returns the default tracker configuration.
func DefaultTrackerConfig() TrackerConfig {
	return TrackerConfig{
		Filter:      DefaultFilterConfig(),
		MaxTimeStep: 0, // unlimited
	}
}

// Tracker serializes access to a KinematicKalmanFilter and derives each
// step's dt from a clock. It is safe for concurrent use; at most one step
// is in flight at a time.
//
// The OnEstimate hook from TrackerConfig.Filter runs after the Tracker lock
// is released, so it may call State, Covariance or Updates.
type Tracker struct {
	mu          sync.Mutex
	filter      *KinematicKalmanFilter
	clock       internal.Clock
	maxTimeStep time.Duration
	onEstimate  func(Step)
	last        time.Time
	updates     int
}

// NewTracker creates a Tracker from a prior belief.
// If clock is nil, a MonotonicClock is used. The first Update measures dt
// from the moment NewTracker returns.
func NewTracker(initialState mat.Vector, initialCovariance mat.Matrix, config TrackerConfig, clock internal.Clock) (*Tracker, error) {
	if clock == nil {
		clock = internal.MonotonicClock{}
	}

	// The hook is invoked by the Tracker outside its lock, not by the filter.
	filterConfig := config.Filter
	filterConfig.OnEstimate = nil
	filter, err := NewKinematicKalmanFilter(initialState, initialCovariance, filterConfig)
	if err != nil {
		return nil, err
	}
	return &Tracker{
		filter:      filter,
		clock:       clock,
		maxTimeStep: config.MaxTimeStep,
		onEstimate:  config.Filter.OnEstimate,
		last:        clock.Now(),
	}, nil
}

// Update runs one filter step using the time elapsed since the previous
// successful update as dt. A non-positive or over-long interval returns
// ErrInvalidTimeStep and leaves both the belief and the time anchor alone.
func (t *Tracker) Update(measurement, acceleration mat.Vector) (*mat.VecDense, error) {
	t.mu.Lock()
	now := t.clock.Now()
	elapsed := now.Sub(t.last)
	if t.maxTimeStep > 0 && elapsed > t.maxTimeStep {
		t.mu.Unlock()
		return nil, fmt.Errorf("%w: %v since last update exceeds %v", ErrInvalidTimeStep, elapsed, t.maxTimeStep)
	}
	step, err := t.stepLocked(measurement, acceleration, elapsed.Seconds(), now)
	t.mu.Unlock()

	return t.finish(step, err)
}

// UpdateDt runs one filter step with an explicit dt in seconds. The clock
// anchor is moved to now so a later Update measures from this step.
func (t *Tracker) UpdateDt(measurement, acceleration mat.Vector, dt float64) (*mat.VecDense, error) {
	t.mu.Lock()
	step, err := t.stepLocked(measurement, acceleration, dt, t.clock.Now())
	t.mu.Unlock()

	return t.finish(step, err)
}

// stepLocked runs the filter and advances the anchor. Callers hold t.mu.
func (t *Tracker) stepLocked(measurement, acceleration mat.Vector, dt float64, now time.Time) (Step, error) {
	step, err := t.filter.EstimateStep(measurement, acceleration, dt)
	if err != nil {
		return Step{}, err
	}
	t.last = now
	t.updates++
	return step, nil
}

// finish invokes the hook without holding t.mu and returns the caller's state.
func (t *Tracker) finish(step Step, err error) (*mat.VecDense, error) {
	if err != nil {
		return nil, err
	}
	state := mat.VecDenseCopyOf(step.CorrectedState)
	if t.onEstimate != nil {
		t.onEstimate(step)
	}
	return state, nil
}

// Reset replaces the belief and restarts the dt measurement from now.
func (t *Tracker) Reset(state mat.Vector, covariance mat.Matrix) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.filter.Reset(state, covariance); err != nil {
		return err
	}
	t.last = t.clock.Now()
	return nil
}

// State returns a copy of the current state estimate.
func (t *Tracker) State() *mat.VecDense {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.filter.State()
}

// Covariance returns a copy of the current covariance.
func (t *Tracker) Covariance() *mat.Dense {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.filter.Covariance()
}

// Updates returns the number of successful steps since construction.
func (t *Tracker) Updates() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.updates
}
