package monitoring

import (
	"sync"
	"time"
)

// A ProgressBar tracks how many of a known number of items a model has
// completed, for example the jobs a machine shop must process.
type ProgressBar struct {
	sync.Mutex
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	StartTime  time.Time `json:"start_time"`
	Total      uint64    `json:"total"`
	Finished   uint64    `json:"finished"`
	InProgress uint64    `json:"in_progress"`
}

// IncrementInProgress adds to the number of items being worked on.
func (b *ProgressBar) IncrementInProgress(amount uint64) {
	b.Lock()
	defer b.Unlock()

	b.InProgress += amount
}

// IncrementFinished adds to the number of completed items.
func (b *ProgressBar) IncrementFinished(amount uint64) {
	b.Lock()
	defer b.Unlock()

	b.Finished += amount
}

// MoveInProgressToFinished marks items that were in progress as completed.
func (b *ProgressBar) MoveInProgressToFinished(amount uint64) {
	b.Lock()
	defer b.Unlock()

	if amount > b.InProgress {
		amount = b.InProgress
	}

	b.InProgress -= amount
	b.Finished += amount
}

// Fraction returns the completed share of the total, between 0 and 1.
func (b *ProgressBar) Fraction() float64 {
	b.Lock()
	defer b.Unlock()

	if b.Total == 0 {
		return 1
	}

	f := float64(b.Finished) / float64(b.Total)
	if f > 1 {
		f = 1
	}

	return f
}
