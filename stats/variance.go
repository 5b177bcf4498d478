package stats

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat/distuv"
)

// Variance extends Mean with the sample variance. The zero value is ready to
// use.
type Variance struct {
	mean Mean
	sqr  float64
}

// Add records a sample.
func (v *Variance) Add(x float64) {
	v.mean.Add(x)
	v.sqr += x * x
}

// NumberOfSamples returns how many samples were added.
func (v *Variance) NumberOfSamples() int64 { return v.mean.NumberOfSamples() }

// Sum returns the total of all samples.
func (v *Variance) Sum() float64 { return v.mean.Sum() }

// Min returns the smallest sample.
func (v *Variance) Min() float64 { return v.mean.Min() }

// Max returns the largest sample.
func (v *Variance) Max() float64 { return v.mean.Max() }

// Mean returns the arithmetic mean of the samples.
func (v *Variance) Mean() float64 { return v.mean.Mean() }

// Variance returns the unbiased sample variance, or 0 with fewer than two
// samples.
func (v *Variance) Variance() float64 {
	n := float64(v.mean.NumberOfSamples())
	if n < 2 {
		return 0
	}

	sum := v.mean.Sum()

	return math.Max(0, (v.sqr-sum*sum/n)/(n-1))
}

// StdDev returns the sample standard deviation.
func (v *Variance) StdDev() float64 {
	return math.Sqrt(v.Variance())
}

// Confidence returns the half-width of the confidence interval of the mean
// at the given level, such as 0.95. It uses the Student's t distribution.
func (v *Variance) Confidence(level float64) (float64, error) {
	if level <= 0 || level >= 1 {
		return 0, fmt.Errorf("%w: confidence level %g", ErrInvalidParameter, level)
	}

	n := v.mean.NumberOfSamples()
	if n < 2 {
		return 0, fmt.Errorf("%w: %d samples", ErrNoSamples, n)
	}

	t := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: float64(n - 1)}

	return t.Quantile((1+level)/2) * v.StdDev() / math.Sqrt(float64(n)), nil
}

// Reset forgets all samples.
func (v *Variance) Reset() {
	*v = Variance{}
}
