package kinematic

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/thesyncim/kinematic/pkg/kinematic/internal"
	"github.com/thesyncim/kinematic/pkg/kinematic/testutil"
)

func newTestTracker(t *testing.T, config TrackerConfig, clock internal.Clock) *Tracker {
	t.Helper()
	tr, err := NewTracker(NewStateVector(0, 1, 0, 0, 0, 0), IdentityMatrix(), config, clock)
	require.NoError(t, err)
	return tr
}

func TestTracker_DtFromClock(t *testing.T) {
	clock := internal.NewMockClock(time.Time{})
	tr := newTestTracker(t, DefaultTrackerConfig(), clock)
	kf := newTestFilter(t, NewStateVector(0, 1, 0, 0, 0, 0), IdentityMatrix())

	meas := NewStateVector(0, 1, 0, 0, 0, 0)
	for i := 0; i < 3; i++ {
		clock.Advance(250 * time.Millisecond)
		got, err := tr.Update(meas, zeroAcceleration())
		require.NoError(t, err)

		want, err := kf.Estimate(meas, zeroAcceleration(), 0.25)
		require.NoError(t, err)
		assert.True(t, mat.EqualApprox(want, got, tol), "step %d", i)
	}
	assert.Equal(t, 3, tr.Updates())
}

func TestTracker_ZeroElapsedRejected(t *testing.T) {
	clock := internal.NewMockClock(time.Time{})
	tr := newTestTracker(t, DefaultTrackerConfig(), clock)
	before := tr.State()

	_, err := tr.Update(NewStateVector(5, 5, 5, 5, 5, 5), zeroAcceleration())
	require.ErrorIs(t, err, ErrInvalidTimeStep)
	assert.Equal(t, 0, tr.Updates())
	assert.True(t, mat.Equal(before, tr.State()))

	// The anchor did not move, so dt for the next update covers the whole gap.
	clock.Advance(time.Second)
	_, err = tr.Update(NewStateVector(0, 1, 0, 0, 0, 0), zeroAcceleration())
	require.NoError(t, err)
	assert.InDelta(t, 1.0/3.0, tr.State().AtVec(0), tol)
}

func TestTracker_MaxTimeStep(t *testing.T) {
	clock := internal.NewMockClock(time.Time{})
	config := DefaultTrackerConfig()
	config.MaxTimeStep = 500 * time.Millisecond
	tr := newTestTracker(t, config, clock)

	clock.Advance(2 * time.Second)
	_, err := tr.Update(NewStateVector(0, 1, 0, 0, 0, 0), zeroAcceleration())
	require.ErrorIs(t, err, ErrInvalidTimeStep)

	// Reset re-anchors the clock so tracking can resume.
	require.NoError(t, tr.Reset(NewStateVector(2, 1, 0, 0, 0, 0), IdentityMatrix()))
	clock.Advance(100 * time.Millisecond)
	_, err = tr.Update(NewStateVector(2.1, 1, 0, 0, 0, 0), zeroAcceleration())
	require.NoError(t, err)
	assert.Equal(t, 1, tr.Updates())
}

func TestTracker_UpdateDtMovesAnchor(t *testing.T) {
	clock := internal.NewMockClock(time.Time{})
	tr := newTestTracker(t, DefaultTrackerConfig(), clock)

	clock.Advance(time.Second)
	_, err := tr.UpdateDt(NewStateVector(0, 1, 0, 0, 0, 0), zeroAcceleration(), 1)
	require.NoError(t, err)

	// No time has passed since UpdateDt, so clock-driven Update fails.
	_, err = tr.Update(NewStateVector(0, 1, 0, 0, 0, 0), zeroAcceleration())
	require.ErrorIs(t, err, ErrInvalidTimeStep)
	assert.Equal(t, 1, tr.Updates())
}

func TestTracker_NilClock(t *testing.T) {
	tr := newTestTracker(t, DefaultTrackerConfig(), nil)

	_, err := tr.UpdateDt(NewStateVector(0, 1, 0, 0, 0, 0), zeroAcceleration(), 0.01)
	require.NoError(t, err)

	r, c := tr.Covariance().Dims()
	assert.Equal(t, StateDim, r)
	assert.Equal(t, StateDim, c)
}

func TestTracker_InvalidPrior(t *testing.T) {
	_, err := NewTracker(mat.NewVecDense(2, nil), IdentityMatrix(), DefaultTrackerConfig(), nil)
	require.ErrorIs(t, err, ErrInvalidDimension)
}

func TestTracker_ConcurrentUpdates(t *testing.T) {
	tr := newTestTracker(t, DefaultTrackerConfig(), nil)

	const workers = 8
	const perWorker = 10

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				// Stationary measurement keeps the belief bounded.
				_, err := tr.UpdateDt(NewStateVector(0, 0, 0, 0, 0, 0), zeroAcceleration(), 0.01)
				assert.NoError(t, err)
				_ = tr.State()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, workers*perWorker, tr.Updates())
}

func TestTracker_FollowsTrace(t *testing.T) {
	// Exact measurements of an object at rest: every estimate stays put.
	clock := internal.NewMockClock(time.Time{})
	origin := [3]float64{1, -2, 3}
	prior := NewStateVector(origin[0], 0, origin[1], 0, origin[2], 0)
	tr, err := NewTracker(prior, IdentityMatrix(), DefaultTrackerConfig(), clock)
	require.NoError(t, err)

	for _, s := range testutil.StationaryTrace(clock, origin, 20, 50*time.Millisecond) {
		est, err := tr.UpdateDt(mat.NewVecDense(StateDim, s.Measurement[:]), mat.NewVecDense(ControlDim, s.Acceleration[:]), s.Dt)
		require.NoError(t, err)
		assert.True(t, mat.Equal(prior, est), "estimate at %v drifted: %v", s.At, est.RawVector().Data)
	}
	assert.Equal(t, 20, tr.Updates())
}

func TestTracker_OnEstimateMayReadTracker(t *testing.T) {
	var tr *Tracker
	var seenUpdates []int
	var seenState []*mat.VecDense

	config := DefaultTrackerConfig()
	config.Filter.OnEstimate = func(Step) {
		seenUpdates = append(seenUpdates, tr.Updates())
		seenState = append(seenState, tr.State())
		_ = tr.Covariance()
	}
	clock := internal.NewMockClock(time.Time{})
	tr = newTestTracker(t, config, clock)

	done := make(chan error, 1)
	go func() {
		_, err := tr.UpdateDt(NewStateVector(0, 1, 0, 0, 0, 0), zeroAcceleration(), 1)
		if err == nil {
			clock.Advance(time.Second)
			_, err = tr.Update(NewStateVector(1, 1, 0, 0, 0, 0), zeroAcceleration())
		}
		done <- err
	}()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("update did not return while the hook read the tracker")
	}

	assert.Equal(t, []int{1, 2}, seenUpdates, "hook should observe the committed step")
	require.Len(t, seenState, 2)
	assert.InDelta(t, 1.0/3.0, seenState[0].AtVec(0), tol)
}

func TestTracker_OnEstimateNotCalledOnError(t *testing.T) {
	calls := 0
	config := DefaultTrackerConfig()
	config.Filter.OnEstimate = func(Step) { calls++ }
	tr := newTestTracker(t, config, internal.NewMockClock(time.Time{}))

	_, err := tr.Update(NewStateVector(0, 1, 0, 0, 0, 0), zeroAcceleration())
	require.ErrorIs(t, err, ErrInvalidTimeStep)
	assert.Equal(t, 0, calls)
}
