package sim

import "errors"

var (
	// ErrNotStarted is returned when a process tries to hand over control
	// before the simulation is started.
	ErrNotStarted = errors.New("sim: simulation not started")

	// ErrInvalidTime is returned when an activation targets the past or uses
	// a negative delay.
	ErrInvalidTime = errors.New("sim: invalid time")

	// ErrInvalidWakeup reports a process with a negative wakeup time reaching
	// the scheduler. It aborts the run.
	ErrInvalidWakeup = errors.New("sim: invalid process wakeup time")

	// ErrNotFound is returned when a queue operation references a process
	// that is not queued.
	ErrNotFound = errors.New("sim: process not scheduled")

	// ErrInvalidOperation is returned when an operation does not apply to the
	// current state of the process.
	ErrInvalidOperation = errors.New("sim: invalid operation")

	// ErrRestart is returned from every suspension point that wakes up while
	// the simulation is being reset. The process must restore its local state
	// and call Cancel.
	ErrRestart = errors.New("sim: simulation restarting")

	// ErrInterrupted is returned from waits that end for a reason other than
	// their natural completion.
	ErrInterrupted = errors.New("sim: interrupted")

	// ErrEmpty is returned when popping from an empty queue.
	ErrEmpty = errors.New("sim: queue empty")
)
