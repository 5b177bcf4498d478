package sim

import (
	"container/list"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
)

// A TriggerQueue holds entities that wait for a trigger, in arrival order. An
// entity can wait in one trigger queue at a time.
type TriggerQueue struct {
	kernel *Kernel
	l      *list.List
}

// NewTriggerQueue creates an empty trigger queue.
func NewTriggerQueue(k *Kernel) *TriggerQueue {
	return &TriggerQueue{
		kernel: k,
		l:      list.New(),
	}
}

// Len returns the number of entities in the queue.
func (q *TriggerQueue) Len() int {
	q.kernel.mu.Lock()
	defer q.kernel.mu.Unlock()

	return q.l.Len()
}

// Insert appends an entity to the queue.
func (q *TriggerQueue) Insert(e *Entity) error {
	q.kernel.mu.Lock()
	defer q.kernel.mu.Unlock()

	return q.insertLocked(e)
}

func (q *TriggerQueue) insertLocked(e *Entity) error {
	if e.syncState.waiting || e.syncState.parkedIn != nil {
		return fmt.Errorf("%w: %s is already waiting", ErrInvalidOperation,
			e.name)
	}

	q.l.PushBack(e)
	e.syncState.parkedIn = q

	return nil
}

// Remove takes an entity out of the queue without waking it up. It reports
// whether the entity was in the queue.
func (q *TriggerQueue) Remove(e *Entity) bool {
	q.kernel.mu.Lock()
	defer q.kernel.mu.Unlock()

	return q.removeLocked(e)
}

func (q *TriggerQueue) removeLocked(e *Entity) bool {
	for elem := q.l.Front(); elem != nil; elem = elem.Next() {
		if elem.Value.(*Entity) == e {
			q.l.Remove(elem)
			e.syncState.parkedIn = nil

			return true
		}
	}

	return false
}

// TriggerFirst wakes up the oldest entity at the current time. With
// setTrigger set, the entity observes the wake-up as a trigger.
func (q *TriggerQueue) TriggerFirst(setTrigger bool) error {
	k := q.kernel
	k.mu.Lock()

	front := q.l.Front()
	if front == nil {
		k.mu.Unlock()
		return fmt.Errorf("%w: trigger queue", ErrEmpty)
	}

	e := q.l.Remove(front).(*Entity)
	e.syncState.parkedIn = nil

	if setTrigger {
		e.triggerLocked()
	}

	now := k.now
	k.mu.Unlock()

	return e.ReactivateAt(now, false)
}

// TriggerAll triggers as many entities as the queue holds when it is called.
// Entities that join the queue meanwhile stay in it.
func (q *TriggerQueue) TriggerAll() error {
	n := q.Len()
	if n == 0 {
		return fmt.Errorf("%w: trigger queue", ErrEmpty)
	}

	for i := 0; i < n; i++ {
		err := q.TriggerFirst(true)
		if errors.Is(err, ErrEmpty) {
			return nil
		}

		if err != nil {
			return err
		}
	}

	return nil
}

// Close releases the entities still waiting in the queue.
func (q *TriggerQueue) Close() {
	n := q.Len()
	if n == 0 {
		return
	}

	logrus.WithField("waiting", n).
		Warn("sim: trigger queue closed with entities waiting")

	if err := q.TriggerAll(); err != nil {
		logrus.WithError(err).Warn("sim: failed to release trigger queue")
	}
}
