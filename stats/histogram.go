package stats

import (
	"cmp"
	"fmt"
	"slices"
)

// A Bucket counts the samples that fell on one value.
type Bucket struct {
	Name float64
	Size int64
}

// PrecisionHistogram keeps one bucket per distinct sample value, ordered by
// value. The zero value is ready to use.
type PrecisionHistogram struct {
	samples Variance
	buckets []Bucket
}

func (h *PrecisionHistogram) find(name float64) (int, bool) {
	return slices.BinarySearchFunc(h.buckets, name,
		func(b Bucket, name float64) int { return cmp.Compare(b.Name, name) })
}

// Add records a sample.
func (h *PrecisionHistogram) Add(x float64) {
	h.samples.Add(x)
	h.addToBucket(x, 1)
}

func (h *PrecisionHistogram) addToBucket(name float64, n int64) {
	i, found := h.find(name)
	if found {
		h.buckets[i].Size += n
		return
	}

	h.buckets = slices.Insert(h.buckets, i, Bucket{Name: name, Size: n})
}

// Samples returns the statistics of all added samples.
func (h *PrecisionHistogram) Samples() Variance {
	return h.samples
}

// NumberOfBuckets returns how many buckets the histogram has.
func (h *PrecisionHistogram) NumberOfBuckets() int {
	return len(h.buckets)
}

// Buckets returns a copy of the buckets in ascending order of name.
func (h *PrecisionHistogram) Buckets() []Bucket {
	return slices.Clone(h.buckets)
}

// SizeByIndex returns the size of the i-th bucket.
func (h *PrecisionHistogram) SizeByIndex(i int) (int64, error) {
	if i < 0 || i >= len(h.buckets) {
		return 0, fmt.Errorf("%w: index %d", ErrBucketNotFound, i)
	}

	return h.buckets[i].Size, nil
}

// SizeByName returns the size of the bucket of a value.
func (h *PrecisionHistogram) SizeByName(name float64) (int64, error) {
	i, found := h.find(name)
	if !found {
		return 0, fmt.Errorf("%w: name %g", ErrBucketNotFound, name)
	}

	return h.buckets[i].Size, nil
}

// Reset removes all buckets.
func (h *PrecisionHistogram) Reset() {
	*h = PrecisionHistogram{}
}

// MergePolicy decides how a bounded Histogram folds two neighbouring buckets
// into one.
type MergePolicy int

// Merge policies.
const (
	// MergeAccumulate keeps the upper name and adds the sizes.
	MergeAccumulate MergePolicy = iota
	// MergeMean names the result by the size-weighted mean of the names and
	// adds the sizes.
	MergeMean
	// MergeMax keeps the upper bucket.
	MergeMax
	// MergeMin keeps the lower bucket.
	MergeMin
)

func (p MergePolicy) merge(a, b Bucket) Bucket {
	switch p {
	case MergeMean:
		size := a.Size + b.Size
		name := (a.Name*float64(a.Size) + b.Name*float64(b.Size)) / float64(size)

		return Bucket{Name: name, Size: size}
	case MergeMax:
		return b
	case MergeMin:
		return a
	default:
		return Bucket{Name: b.Name, Size: a.Size + b.Size}
	}
}

// Histogram is a PrecisionHistogram with a bounded number of buckets. When a
// new value arrives at a full histogram, neighbouring buckets are merged in
// pairs.
type Histogram struct {
	PrecisionHistogram

	maxSize int
	policy  MergePolicy
}

// NewHistogram creates a histogram that holds at most maxSize buckets.
func NewHistogram(maxSize int, policy MergePolicy) (*Histogram, error) {
	if maxSize < 2 {
		return nil, fmt.Errorf("%w: histogram size %d", ErrInvalidParameter, maxSize)
	}

	if policy < MergeAccumulate || policy > MergeMin {
		return nil, fmt.Errorf("%w: merge policy %d", ErrInvalidParameter, policy)
	}

	return &Histogram{maxSize: maxSize, policy: policy}, nil
}

// Add records a sample.
func (h *Histogram) Add(x float64) {
	if _, found := h.find(x); !found && len(h.buckets) >= h.maxSize {
		h.mergeBuckets()
	}

	h.PrecisionHistogram.Add(x)
}

func (h *Histogram) mergeBuckets() {
	merged := h.buckets[:0]

	for i := 0; i < len(h.buckets); i += 2 {
		if i+1 == len(h.buckets) {
			merged = append(merged, h.buckets[i])
			break
		}

		merged = append(merged, h.policy.merge(h.buckets[i], h.buckets[i+1]))
	}

	clear(h.buckets[len(merged):])
	h.buckets = merged
}

// Reset removes all buckets and keeps the size limit and merge policy.
func (h *Histogram) Reset() {
	h.PrecisionHistogram.Reset()
}

// SimpleHistogram splits a closed range into buckets of equal width. Buckets
// are named by their lower bound and exist even when empty.
type SimpleHistogram struct {
	PrecisionHistogram

	lo, hi float64
	width  float64
	n      int
}

// NewSimpleHistogram creates n buckets that cover [lo, hi].
func NewSimpleHistogram(lo, hi float64, n int) (*SimpleHistogram, error) {
	if n <= 0 || !(lo < hi) {
		return nil, fmt.Errorf("%w: range [%g, %g] with %d buckets",
			ErrInvalidParameter, lo, hi, n)
	}

	h := &SimpleHistogram{lo: lo, hi: hi, width: (hi - lo) / float64(n), n: n}
	h.Reset()

	return h, nil
}

// Width returns the width of each bucket.
func (h *SimpleHistogram) Width() float64 {
	return h.width
}

func (h *SimpleHistogram) bucketOf(x float64) (int, error) {
	if x < h.lo || x > h.hi {
		return 0, fmt.Errorf("%w: %g not in [%g, %g]", ErrOutOfRange, x, h.lo, h.hi)
	}

	return min(int((x-h.lo)/h.width), h.n-1), nil
}

// Add records a sample in the bucket that covers it.
func (h *SimpleHistogram) Add(x float64) error {
	i, err := h.bucketOf(x)
	if err != nil {
		return err
	}

	h.samples.Add(x)
	h.buckets[i].Size++

	return nil
}

// SizeByName returns the size of the bucket that covers a value.
func (h *SimpleHistogram) SizeByName(x float64) (int64, error) {
	i, err := h.bucketOf(x)
	if err != nil {
		return 0, err
	}

	return h.buckets[i].Size, nil
}

// Reset empties every bucket.
func (h *SimpleHistogram) Reset() {
	h.PrecisionHistogram.Reset()

	h.buckets = make([]Bucket, h.n)
	for i := range h.buckets {
		h.buckets[i].Name = h.lo + float64(i)*h.width
	}
}
