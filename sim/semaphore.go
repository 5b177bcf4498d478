package sim

import (
	"fmt"

	"github.com/sirupsen/logrus"
)

// Outcome is the result of a semaphore operation.
type Outcome int

// Semaphore outcomes.
const (
	OutcomeDone Outcome = iota
	OutcomeNotDone
	OutcomeWouldBlock
)

func (o Outcome) String() string {
	switch o {
	case OutcomeDone:
		return "Done"
	case OutcomeNotDone:
		return "NotDone"
	case OutcomeWouldBlock:
		return "WouldBlock"
	default:
		return fmt.Sprintf("Outcome(%d)", int(o))
	}
}

// A Semaphore guards a number of identical resources. Entities that find no
// resource available wait in arrival order. A released resource goes straight
// to the oldest waiter.
type Semaphore struct {
	kernel *Kernel

	capacity      int64
	available     int64
	numberWaiting int64
	waitList      *TriggerQueue
}

// NewSemaphore creates a semaphore that guards the given number of resources.
func NewSemaphore(k *Kernel, resources int64) *Semaphore {
	return &Semaphore{
		kernel:    k,
		capacity:  resources,
		available: resources,
		waitList:  NewTriggerQueue(k),
	}
}

// Capacity returns the number of resources the semaphore was created with.
func (s *Semaphore) Capacity() int64 {
	return s.capacity
}

// Available returns the number of free resources.
func (s *Semaphore) Available() int64 {
	s.kernel.mu.Lock()
	defer s.kernel.mu.Unlock()

	return s.available
}

// NumberWaiting returns the number of entities blocked on the semaphore.
func (s *Semaphore) NumberWaiting() int64 {
	s.kernel.mu.Lock()
	defer s.kernel.mu.Unlock()

	return s.numberWaiting
}

// Get acquires a resource for the entity, blocking it until one is released
// if none is available. A non-nil error comes with OutcomeNotDone.
func (s *Semaphore) Get(e *Entity) (Outcome, error) {
	k := s.kernel
	k.mu.Lock()

	if s.available > 0 {
		s.available--
		k.mu.Unlock()

		return OutcomeDone, nil
	}

	if err := s.waitList.insertLocked(e); err != nil {
		k.mu.Unlock()
		return OutcomeNotDone, err
	}

	s.numberWaiting++
	k.mu.Unlock()

	err := e.Cancel()

	k.mu.Lock()
	defer k.mu.Unlock()

	triggered := e.syncState.triggered
	e.syncState.triggered = false

	if triggered && err == nil {
		return OutcomeDone, nil
	}

	if s.waitList.removeLocked(e) {
		s.numberWaiting--
	}

	if triggered {
		// The resource was handed over but the entity is unwinding.
		s.available++
	}

	if err == nil {
		err = fmt.Errorf("%w: %s woke up without a resource",
			ErrInterrupted, e.name)
	}

	return OutcomeNotDone, err
}

// TryGet acquires a resource only if that does not block the entity.
func (s *Semaphore) TryGet(e *Entity) (Outcome, error) {
	if s.Available() == 0 {
		return OutcomeWouldBlock, nil
	}

	return s.Get(e)
}

// Release frees a resource. If entities are waiting, the oldest one gets the
// resource and is scheduled at the current time.
func (s *Semaphore) Release() Outcome {
	k := s.kernel
	k.mu.Lock()

	if s.numberWaiting == 0 {
		s.available++
		k.mu.Unlock()

		return OutcomeDone
	}

	s.numberWaiting--
	k.mu.Unlock()

	if err := s.waitList.TriggerFirst(true); err != nil {
		logrus.WithError(err).Warn("sim: semaphore failed to wake a waiter")
	}

	return OutcomeDone
}

// Close reports entities left waiting on the semaphore.
func (s *Semaphore) Close() {
	if n := s.NumberWaiting(); n != 0 {
		logrus.WithField("waiting", n).
			Warn("sim: semaphore closed with entities waiting")
	}
}
