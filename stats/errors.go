package stats

import "errors"

var (
	// ErrNoSamples is returned when a statistic needs more samples than were
	// collected.
	ErrNoSamples = errors.New("stats: not enough samples")

	// ErrBucketNotFound is returned when a histogram has no bucket for the
	// requested index or name.
	ErrBucketNotFound = errors.New("stats: bucket not found")

	// ErrOutOfRange is returned when a value lies outside the range of a
	// fixed-width histogram.
	ErrOutOfRange = errors.New("stats: value out of range")

	// ErrInvalidParameter is returned when a collector is created with
	// unusable parameters.
	ErrInvalidParameter = errors.New("stats: invalid parameter")
)
