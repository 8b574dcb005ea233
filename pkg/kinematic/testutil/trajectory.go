// Package testutil provides synthetic trajectories and noisy sensors for
// exercising the kinematic filter in tests and the soak runner.
package testutil

import (
	"math/rand/v2"
	"time"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/thesyncim/kinematic/pkg/kinematic/internal"
)

// Trajectory is a constant-acceleration path in three dimensions.
type Trajectory struct {
	Origin       [3]float64 // position at t=0
	Velocity     [3]float64 // velocity at t=0
	Acceleration [3]float64
}

// StateAt returns the true state [x, ẋ, y, ẏ, z, ż] at t seconds.
func (tr Trajectory) StateAt(t float64) [6]float64 {
	var s [6]float64
	for axis := 0; axis < 3; axis++ {
		a := tr.Acceleration[axis]
		v0 := tr.Velocity[axis]
		s[2*axis] = tr.Origin[axis] + v0*t + 0.5*a*t*t
		s[2*axis+1] = v0 + a*t
	}
	return s
}

// Sensor adds zero-mean Gaussian noise to true states.
type Sensor struct {
	position distuv.Normal
	velocity distuv.Normal
}

// NewSensor returns a Sensor with the given position and velocity standard
// deviations. The seed makes the noise sequence reproducible.
func NewSensor(positionSigma, velocitySigma float64, seed uint64) *Sensor {
	src := rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)
	return &Sensor{
		position: distuv.Normal{Mu: 0, Sigma: positionSigma, Src: src},
		velocity: distuv.Normal{Mu: 0, Sigma: velocitySigma, Src: src},
	}
}

// Measure returns a noisy copy of truth. A nil Sensor returns truth as is.
func (s *Sensor) Measure(truth [6]float64) [6]float64 {
	if s == nil {
		return truth
	}
	m := truth
	for axis := 0; axis < 3; axis++ {
		m[2*axis] += s.position.Rand()
		m[2*axis+1] += s.velocity.Rand()
	}
	return m
}

// Sample is one synthetic filter input with its ground truth.
type Sample struct {
	At           time.Time
	Dt           float64 // seconds since the previous sample
	Truth        [6]float64
	Measurement  [6]float64
	Acceleration [3]float64
}

// Trace generates count samples spaced interval apart, advancing clock
// before each sample. The first sample is one interval after t=0.
//
// Parameters:
//   - clock: MockClock for deterministic time control
//   - sensor: noise source, nil for exact measurements
//   - count: number of samples
//   - interval: spacing between samples
func (tr Trajectory) Trace(clock *internal.MockClock, sensor *Sensor, count int, interval time.Duration) []Sample {
	samples := make([]Sample, count)
	dt := interval.Seconds()
	for i := 0; i < count; i++ {
		clock.Advance(interval)
		truth := tr.StateAt(float64(i+1) * dt)
		samples[i] = Sample{
			At:           clock.Now(),
			Dt:           dt,
			Truth:        truth,
			Measurement:  sensor.Measure(truth),
			Acceleration: tr.Acceleration,
		}
	}
	return samples
}

// StationaryTrace generates samples for an object at rest at origin.
func StationaryTrace(clock *internal.MockClock, origin [3]float64, count int, interval time.Duration) []Sample {
	return Trajectory{Origin: origin}.Trace(clock, nil, count, interval)
}

// ConstantVelocityTrace generates exact samples for uniform motion from the origin.
func ConstantVelocityTrace(clock *internal.MockClock, velocity [3]float64, count int, interval time.Duration) []Sample {
	return Trajectory{Velocity: velocity}.Trace(clock, nil, count, interval)
}
