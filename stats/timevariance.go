package stats

import "github.com/sarchlab/procsim/sim"

// TimeVariance tracks a level that holds between changes, such as a queue
// length, and weighs every level by how long it lasted in virtual time.
type TimeVariance struct {
	clock sim.TimeTeller

	levels  Variance
	started bool
	start   sim.VTimeInSec
	since   sim.VTimeInSec
	current float64

	area   float64
	areaSq float64
}

// NewTimeVariance creates a TimeVariance that reads the time from clock.
func NewTimeVariance(clock sim.TimeTeller) *TimeVariance {
	return &TimeVariance{clock: clock}
}

// Set changes the level at the current time.
func (v *TimeVariance) Set(x float64) {
	now := v.clock.CurrentTime()

	if !v.started {
		v.started = true
		v.start = now
	} else {
		v.accumulate(now)
	}

	v.since = now
	v.current = x
	v.levels.Add(x)
}

func (v *TimeVariance) accumulate(now sim.VTimeInSec) {
	dt := float64(now - v.since)
	v.area += v.current * dt
	v.areaSq += v.current * v.current * dt
}

// Current returns the latest level.
func (v *TimeVariance) Current() float64 {
	return v.current
}

// Levels returns the statistics of the levels, each counted once regardless
// of how long it lasted.
func (v *TimeVariance) Levels() Variance {
	return v.levels
}

func (v *TimeVariance) integrals() (area, areaSq, span float64) {
	now := v.clock.CurrentTime()
	dt := float64(now - v.since)

	return v.area + v.current*dt,
		v.areaSq + v.current*v.current*dt,
		float64(now - v.start)
}

// TimeAverage returns the time-weighted mean of the level from the first Set
// up to the current time. If no time has passed, it returns the current
// level.
func (v *TimeVariance) TimeAverage() float64 {
	area, _, span := v.integrals()
	if span <= 0 {
		return v.current
	}

	return area / span
}

// TimeVariance returns the time-weighted variance of the level.
func (v *TimeVariance) TimeVariance() float64 {
	area, areaSq, span := v.integrals()
	if span <= 0 {
		return 0
	}

	avg := area / span
	variance := areaSq/span - avg*avg

	if variance < 0 {
		return 0
	}

	return variance
}

// Reset forgets all levels. The next Set starts a new observation period.
func (v *TimeVariance) Reset() {
	*v = TimeVariance{clock: v.clock}
}
