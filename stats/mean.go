// Package stats collects summary statistics of simulation observations.
package stats

// Mean accumulates the count, sum, and extremes of a series of samples. The
// zero value is ready to use.
type Mean struct {
	n        int64
	sum      float64
	min, max float64
}

// Add records a sample.
func (m *Mean) Add(x float64) {
	if m.n == 0 || x < m.min {
		m.min = x
	}

	if m.n == 0 || x > m.max {
		m.max = x
	}

	m.n++
	m.sum += x
}

// NumberOfSamples returns how many samples were added.
func (m *Mean) NumberOfSamples() int64 {
	return m.n
}

// Sum returns the total of all samples.
func (m *Mean) Sum() float64 {
	return m.sum
}

// Min returns the smallest sample, or 0 if there is none.
func (m *Mean) Min() float64 {
	return m.min
}

// Max returns the largest sample, or 0 if there is none.
func (m *Mean) Max() float64 {
	return m.max
}

// Mean returns the arithmetic mean of the samples, or 0 if there is none.
func (m *Mean) Mean() float64 {
	if m.n == 0 {
		return 0
	}

	return m.sum / float64(m.n)
}

// Reset forgets all samples.
func (m *Mean) Reset() {
	*m = Mean{}
}
