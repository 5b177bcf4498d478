package stats

import (
	"fmt"

	"gonum.org/v1/gonum/stat"
)

// Quantile is a PrecisionHistogram that reports the value below which a
// given share of the samples lie.
type Quantile struct {
	PrecisionHistogram

	q float64
}

// NewQuantile creates a Quantile for the share q, which must be in (0, 1].
func NewQuantile(q float64) (*Quantile, error) {
	if !(q > 0 && q <= 1) {
		return nil, fmt.Errorf("%w: quantile %g", ErrInvalidParameter, q)
	}

	return &Quantile{q: q}, nil
}

// Probability returns the share the quantile was created for.
func (h *Quantile) Probability() float64 {
	return h.q
}

// Value returns the smallest bucket name that covers at least the share q of
// the samples.
func (h *Quantile) Value() (float64, error) {
	if len(h.buckets) == 0 {
		return 0, fmt.Errorf("%w: empty quantile", ErrNoSamples)
	}

	names := make([]float64, len(h.buckets))
	sizes := make([]float64, len(h.buckets))

	for i, b := range h.buckets {
		names[i] = b.Name
		sizes[i] = float64(b.Size)
	}

	return stat.Quantile(h.q, stat.Empirical, names, sizes), nil
}

// Reset forgets all samples and keeps the share.
func (h *Quantile) Reset() {
	h.PrecisionHistogram.Reset()
}
