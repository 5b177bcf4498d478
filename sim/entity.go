package sim

import (
	"fmt"
)

// An EntityFunc is the body of an entity.
type EntityFunc func(e *Entity) error

type entitySync struct {
	self *Entity

	waiting     bool
	interrupted bool
	triggered   bool

	// At most one entity can wait for another one. A second WaitFor on the
	// same controller replaces the first registration.
	waitedOnBy *Entity
	parkedIn   *TriggerQueue
}

// An Entity is a process that can be interrupted, triggered and waited for.
type Entity struct {
	*Process
}

// NewEntity creates an entity and registers it with the kernel.
func NewEntity(k *Kernel, name string, body EntityFunc) *Entity {
	e := &Entity{}
	e.Process = newProcess(k, name, func(*Process) error {
		return body(e)
	})
	e.syncState = &entitySync{self: e}

	k.register(e.Process)

	return e
}

// Waiting tells if the entity is blocked in TimedWait, WaitFor or
// WaitForTrigger.
func (e *Entity) Waiting() bool {
	e.kernel.mu.Lock()
	defer e.kernel.mu.Unlock()

	return e.syncState.waiting
}

// Interrupted tells if the entity has been interrupted and has not observed
// it yet.
func (e *Entity) Interrupted() bool {
	e.kernel.mu.Lock()
	defer e.kernel.mu.Unlock()

	return e.syncState.interrupted
}

// Triggered tells if the entity has been triggered and has not observed it
// yet.
func (e *Entity) Triggered() bool {
	e.kernel.mu.Lock()
	defer e.kernel.mu.Unlock()

	return e.syncState.triggered
}

// Interrupt wakes up a waiting entity at the current time. With immediate
// set, the caller gives up control so that the target runs first.
func (e *Entity) Interrupt(target *Entity, immediate bool) error {
	k := e.kernel
	k.mu.Lock()

	if target.terminated || !target.syncState.waiting {
		k.mu.Unlock()
		return fmt.Errorf("%w: %s is not waiting", ErrInvalidOperation,
			target.name)
	}

	target.syncState.interrupted = true
	k.unscheduleLocked(target.Process)
	err := target.activateAtLocked(k.now, true)
	now := k.now
	k.mu.Unlock()

	if err != nil {
		return err
	}

	if immediate {
		return e.ReactivateAt(now, false)
	}

	return nil
}

// TimedWait holds the entity for the given time. It returns ErrInterrupted
// if another entity interrupts the wait.
func (e *Entity) TimedWait(d VTimeInSec) error {
	k := e.kernel

	k.mu.Lock()
	e.syncState.waiting = true
	k.mu.Unlock()

	err := e.Hold(d)

	k.mu.Lock()
	e.syncState.waiting = false
	interrupted := e.syncState.interrupted
	e.syncState.interrupted = false
	k.mu.Unlock()

	if err != nil {
		return err
	}

	if interrupted {
		return ErrInterrupted
	}

	return nil
}

// WaitFor blocks the entity until the controller terminates. With reactivate
// set, the controller is moved to the current time first. WaitFor returns
// ErrInterrupted if the entity wakes up before the controller is gone.
func (e *Entity) WaitFor(controller *Entity, reactivate bool) error {
	if controller == e {
		return fmt.Errorf("%w: %s cannot wait for itself",
			ErrInvalidOperation, e.name)
	}

	k := e.kernel
	k.mu.Lock()

	if controller.terminated {
		k.mu.Unlock()
		return nil
	}

	controller.syncState.waitedOnBy = e

	if reactivate {
		k.unscheduleLocked(controller.Process)

		err := controller.activateAtLocked(k.now, true)
		if err != nil {
			controller.syncState.waitedOnBy = nil
			k.mu.Unlock()

			return err
		}
	}

	e.syncState.waiting = true
	k.mu.Unlock()

	err := e.Cancel()

	k.mu.Lock()
	e.syncState.waiting = false
	e.syncState.interrupted = false

	if controller.syncState.waitedOnBy == e {
		controller.syncState.waitedOnBy = nil
	}

	done := controller.terminated
	k.mu.Unlock()

	if err != nil {
		return err
	}

	if !done {
		return ErrInterrupted
	}

	return nil
}

// Trigger marks the entity as triggered. It does not schedule the entity.
func (e *Entity) Trigger() {
	e.kernel.mu.Lock()
	defer e.kernel.mu.Unlock()

	e.triggerLocked()
}

func (e *Entity) triggerLocked() {
	e.syncState.triggered = true
	e.syncState.waiting = false
}

// WaitForTrigger parks the entity in the queue until it is triggered. It
// returns ErrInterrupted if the entity wakes up for another reason.
func (e *Entity) WaitForTrigger(q *TriggerQueue) error {
	k := e.kernel
	k.mu.Lock()

	if err := q.insertLocked(e); err != nil {
		k.mu.Unlock()
		return err
	}

	e.syncState.interrupted = false
	e.syncState.waiting = true
	k.mu.Unlock()

	err := e.Cancel()

	k.mu.Lock()
	e.syncState.waiting = false
	e.syncState.interrupted = false
	triggered := e.syncState.triggered
	e.syncState.triggered = false

	if !triggered {
		q.removeLocked(e)
	}

	k.mu.Unlock()

	if err != nil {
		return err
	}

	if !triggered {
		return ErrInterrupted
	}

	return nil
}

// WaitForSemaphore acquires the semaphore on behalf of the entity.
func (e *Entity) WaitForSemaphore(s *Semaphore) (Outcome, error) {
	return s.Get(e)
}

// detachEntityLocked wakes up the entity waiting for this one and drops it
// from the trigger queue it is parked in.
func (p *Process) detachEntityLocked() {
	if p.syncState == nil {
		return
	}

	k := p.kernel

	if q := p.syncState.parkedIn; q != nil {
		q.removeLocked(p.syncState.self)
	}

	w := p.syncState.waitedOnBy
	if w == nil {
		return
	}

	p.syncState.waitedOnBy = nil

	if w.terminated {
		return
	}

	k.unscheduleLocked(w.Process)
	_ = w.activateAtLocked(k.now, true)
}
