package sim

import (
	"errors"
	"fmt"
	"runtime"

	"github.com/sirupsen/logrus"
)

// A ProcessFunc is the body of a process. The process terminates when the
// function returns.
type ProcessFunc func(p *Process) error

// State is the lifecycle state of a process.
type State int

// Lifecycle states of a process.
const (
	StateIdle State = iota
	StateScheduled
	StateRunning
	StateTerminated
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StateScheduled:
		return "Scheduled"
	case StateRunning:
		return "Running"
	case StateTerminated:
		return "Terminated"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// A Process is a unit of simulated activity. Its body runs on a dedicated
// goroutine that only executes while the kernel has given the process
// control.
type Process struct {
	kernel *Kernel
	id     string
	name   string
	body   ProcessFunc

	wakeup     VTimeInSec
	terminated bool
	passivated bool
	started    bool

	wake chan struct{}

	// Set for processes wrapped by an Entity.
	syncState *entitySync
}

// NewProcess creates a process and registers it with the kernel. The process
// stays idle until it is activated.
func NewProcess(k *Kernel, name string, body ProcessFunc) *Process {
	p := newProcess(k, name, body)
	k.register(p)

	return p
}

func newProcess(k *Kernel, name string, body ProcessFunc) *Process {
	return &Process{
		kernel:     k,
		id:         k.idGen.Generate(),
		name:       name,
		body:       body,
		wakeup:     Never,
		passivated: true,
		wake:       make(chan struct{}, 1),
	}
}

// ID returns the ID of the process.
func (p *Process) ID() string {
	return p.id
}

// Name returns the name of the process.
func (p *Process) Name() string {
	return p.name
}

// Kernel returns the kernel that runs the process.
func (p *Process) Kernel() *Kernel {
	return p.kernel
}

// Time returns the current virtual time.
func (p *Process) Time() VTimeInSec {
	return p.kernel.CurrentTime()
}

// WakeupTime returns the time the process is scheduled for, or Never.
func (p *Process) WakeupTime() VTimeInSec {
	p.kernel.mu.Lock()
	defer p.kernel.mu.Unlock()

	return p.wakeup
}

// Idle tells if the process has no pending activation.
func (p *Process) Idle() bool {
	p.kernel.mu.Lock()
	defer p.kernel.mu.Unlock()

	return p.idleLocked()
}

func (p *Process) idleLocked() bool {
	return p.wakeup < p.kernel.now
}

// Passivated tells if the process is neither scheduled nor running.
func (p *Process) Passivated() bool {
	p.kernel.mu.Lock()
	defer p.kernel.mu.Unlock()

	return p.passivated
}

// Terminated tells if the process has terminated.
func (p *Process) Terminated() bool {
	p.kernel.mu.Lock()
	defer p.kernel.mu.Unlock()

	return p.terminated
}

// State returns the lifecycle state of the process.
func (p *Process) State() State {
	k := p.kernel
	k.mu.Lock()
	defer k.mu.Unlock()

	switch {
	case p.terminated:
		return StateTerminated
	case k.activeLocked() == p:
		return StateRunning
	case k.queue.Contains(p):
		return StateScheduled
	default:
		return StateIdle
	}
}

// IsEntity tells if the process can be interrupted, triggered and waited for.
func (p *Process) IsEntity() bool {
	return p.syncState != nil
}

func (p *Process) deactivateLocked() {
	p.passivated = true
	p.wakeup = Never
}

// NextEvent returns the process scheduled to run after this one, or nil if
// there is none.
func (p *Process) NextEvent() (*Process, error) {
	k := p.kernel
	k.mu.Lock()
	defer k.mu.Unlock()

	if p.idleLocked() {
		return nil, fmt.Errorf("%w: %s is not scheduled",
			ErrInvalidOperation, p.name)
	}

	return k.queue.NextAfter(p)
}

// SetWakeupTime moves the pending activation of a scheduled or running
// process.
func (p *Process) SetWakeupTime(t VTimeInSec) error {
	k := p.kernel
	k.mu.Lock()
	defer k.mu.Unlock()

	if p.idleLocked() {
		return fmt.Errorf("%w: %s is idle", ErrInvalidOperation, p.name)
	}

	if t < k.now {
		return fmt.Errorf("%w: %.10f is earlier than %.10f",
			ErrInvalidTime, t, k.now)
	}

	if k.queue.Contains(p) {
		_ = k.queue.Remove(p)
		p.wakeup = t
		k.queue.Insert(p, false)

		return nil
	}

	p.wakeup = t

	return nil
}

// Activate schedules an idle process to run at the current time, ahead of
// the processes already scheduled for it.
func (p *Process) Activate() error {
	p.kernel.mu.Lock()
	defer p.kernel.mu.Unlock()

	return p.activateAtLocked(p.kernel.now, true)
}

// ActivateAt schedules an idle process to run at the given time.
func (p *Process) ActivateAt(t VTimeInSec, prior bool) error {
	p.kernel.mu.Lock()
	defer p.kernel.mu.Unlock()

	return p.activateAtLocked(t, prior)
}

// ActivateDelay schedules an idle process to run after the given delay.
func (p *Process) ActivateDelay(d VTimeInSec, prior bool) error {
	p.kernel.mu.Lock()
	defer p.kernel.mu.Unlock()

	return p.activateDelayLocked(d, prior)
}

// ActivateBefore schedules an idle process to run right before mark.
func (p *Process) ActivateBefore(mark *Process) error {
	p.kernel.mu.Lock()
	defer p.kernel.mu.Unlock()

	return p.activateBeforeLocked(mark)
}

// ActivateAfter schedules an idle process to run right after mark.
func (p *Process) ActivateAfter(mark *Process) error {
	p.kernel.mu.Lock()
	defer p.kernel.mu.Unlock()

	return p.activateAfterLocked(mark)
}

// canActivateLocked reports whether an activation applies. Activating a
// terminated or busy process is a no-op.
func (p *Process) canActivateLocked() bool {
	return !p.terminated && p.idleLocked()
}

func (p *Process) activateAtLocked(t VTimeInSec, prior bool) error {
	if !p.canActivateLocked() {
		return nil
	}

	if t < p.kernel.now {
		return fmt.Errorf("%w: %.10f is earlier than %.10f",
			ErrInvalidTime, t, p.kernel.now)
	}

	p.passivated = false
	p.wakeup = t
	p.kernel.queue.Insert(p, prior)

	return nil
}

func (p *Process) activateDelayLocked(d VTimeInSec, prior bool) error {
	if !p.canActivateLocked() {
		return nil
	}

	if d < 0 {
		return fmt.Errorf("%w: negative delay %.10f", ErrInvalidTime, d)
	}

	return p.activateAtLocked(p.kernel.now+d, prior)
}

func (p *Process) activateBeforeLocked(mark *Process) error {
	if !p.canActivateLocked() {
		return nil
	}

	if !p.kernel.queue.InsertBefore(p, mark) {
		return fmt.Errorf("%w: %s", ErrNotFound, mark.name)
	}

	p.passivated = false

	return nil
}

func (p *Process) activateAfterLocked(mark *Process) error {
	if mark == p {
		return fmt.Errorf("%w: %s cannot be activated after itself",
			ErrInvalidOperation, p.name)
	}

	if !p.canActivateLocked() {
		return nil
	}

	if !p.kernel.queue.InsertAfter(p, mark) {
		return fmt.Errorf("%w: %s", ErrNotFound, mark.name)
	}

	p.passivated = false

	return nil
}

// Reactivate moves the process to the current time, ahead of the processes
// already scheduled for it. A process reactivating itself gives up control.
func (p *Process) Reactivate() error {
	return p.reactivate(nil, func() error {
		return p.activateAtLocked(p.kernel.now, true)
	})
}

// ReactivateAt moves the process to the given time.
func (p *Process) ReactivateAt(t VTimeInSec, prior bool) error {
	return p.reactivate(func() error {
		if t < p.kernel.now {
			return fmt.Errorf("%w: %.10f is earlier than %.10f",
				ErrInvalidTime, t, p.kernel.now)
		}

		return nil
	}, func() error {
		return p.activateAtLocked(t, prior)
	})
}

// ReactivateDelay moves the process to the current time plus the delay.
func (p *Process) ReactivateDelay(d VTimeInSec, prior bool) error {
	return p.reactivate(func() error {
		if d < 0 {
			return fmt.Errorf("%w: negative delay %.10f", ErrInvalidTime, d)
		}

		return nil
	}, func() error {
		return p.activateDelayLocked(d, prior)
	})
}

// ReactivateBefore moves the process right before mark.
func (p *Process) ReactivateBefore(mark *Process) error {
	return p.reactivate(nil, func() error {
		return p.activateBeforeLocked(mark)
	})
}

// ReactivateAfter moves the process right after mark.
func (p *Process) ReactivateAfter(mark *Process) error {
	return p.reactivate(nil, func() error {
		return p.activateAfterLocked(mark)
	})
}

// reactivate runs check before the process loses its current schedule, so
// that a rejected reactivation leaves the process untouched.
func (p *Process) reactivate(check, activate func() error) error {
	k := p.kernel
	k.mu.Lock()

	if check != nil && !p.terminated {
		if err := check(); err != nil {
			k.mu.Unlock()
			return err
		}
	}

	if !p.idleLocked() {
		k.unscheduleLocked(p)
	}

	err := activate()
	self := k.activeLocked() == p
	k.mu.Unlock()

	if err != nil {
		return err
	}

	if self {
		return p.suspend()
	}

	return nil
}

// Hold lets the given amount of virtual time pass for the running process.
func (p *Process) Hold(d VTimeInSec) error {
	k := p.kernel
	k.mu.Lock()

	if k.hostActive || (k.current != nil && k.current != p) {
		k.mu.Unlock()
		return fmt.Errorf("%w: hold applied to inactive process %s",
			ErrInvalidOperation, p.name)
	}

	if d < 0 {
		k.mu.Unlock()
		return fmt.Errorf("%w: negative delay %.10f", ErrInvalidTime, d)
	}

	k.unscheduleLocked(p)
	err := p.activateDelayLocked(d, false)
	k.mu.Unlock()

	if err != nil {
		return err
	}

	return p.suspend()
}

// Cancel removes the process from future execution without terminating it.
// The running process parks itself until another process activates it.
// Cancelling an idle process does nothing.
func (p *Process) Cancel() error {
	k := p.kernel
	k.mu.Lock()

	if k.activeLocked() == p {
		p.deactivateLocked()
		k.mu.Unlock()

		return p.suspend()
	}

	if !p.idleLocked() {
		k.unscheduleLocked(p)
	}

	k.mu.Unlock()

	return nil
}

// Passivate makes the running process cancel itself.
func (p *Process) Passivate() error {
	k := p.kernel
	k.mu.Lock()
	shouldCancel := !p.passivated && k.activeLocked() == p
	k.mu.Unlock()

	if shouldCancel {
		return p.Cancel()
	}

	return nil
}

// Terminate ends the process for good. A process that terminates itself gives
// control to the next process and never returns from this call.
func (p *Process) Terminate() {
	if p.terminate() {
		p.parkForever()
	}
}

// terminate reports whether the caller handed control over and must not run
// any further.
func (p *Process) terminate() bool {
	k := p.kernel
	k.mu.Lock()

	if p.terminated {
		k.mu.Unlock()
		return false
	}

	p.detachEntityLocked()

	self := k.activeLocked() == p
	k.unscheduleLocked(p)
	p.terminated = true
	k.deregisterLocked(p)

	k.InvokeHook(HookCtx{
		Domain: k,
		Pos:    HookPosProcessTerminate,
		Item:   p,
		Detail: k.now,
	})
	k.mu.Unlock()

	if !self {
		return false
	}

	k.handOff(p)

	return true
}

// ResumeMain gives control back to the host goroutine blocked in
// Kernel.Await and parks the running process.
func (p *Process) ResumeMain() error {
	k := p.kernel
	k.mu.Lock()

	if k.activeLocked() != p {
		k.mu.Unlock()
		return fmt.Errorf("%w: %s is not running", ErrInvalidOperation, p.name)
	}

	if k.resetting {
		k.unscheduleLocked(p)
		k.ackResetLocked()
	} else {
		k.signalHostLocked()
	}

	k.mu.Unlock()

	p.park()

	return p.checkRestart()
}

// suspend hands control to the next process and blocks until the process is
// resumed.
func (p *Process) suspend() error {
	k := p.kernel
	k.waitIfPaused()
	k.mu.Lock()

	if k.resetting {
		k.unscheduleLocked(p)
		k.ackResetLocked()
		k.mu.Unlock()

		p.park()

		return p.checkRestart()
	}

	mustPark, err := k.schedule(p)

	switch {
	case err == nil:
	case errors.Is(err, ErrEmpty):
		mustPark = true
	case errors.Is(err, ErrInvalidWakeup):
		k.failLocked(err)
		mustPark = true
	default:
		k.mu.Unlock()
		return fmt.Errorf("sim: %s cannot suspend: %w", p.name, err)
	}

	k.mu.Unlock()

	if mustPark {
		p.park()
	}

	return p.checkRestart()
}

func (p *Process) checkRestart() error {
	if p.kernel.IsReset() {
		return ErrRestart
	}

	return nil
}

func (p *Process) park() {
	select {
	case <-p.wake:
	case <-p.kernel.closed:
		runtime.Goexit()
	}
}

func (p *Process) parkForever() {
	<-p.kernel.closed
	runtime.Goexit()
}

func (p *Process) run() {
	err := p.body(p)
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"process": p.name,
			"time":    p.Time(),
		}).WithError(err).Warn("sim: process returned an error")
	}

	p.terminate()
}
