package sim

// VTimeInSec defines the time in the simulated space in the unit of second
type VTimeInSec float64

// Never is the wakeup time of a process that has no pending activation.
const Never VTimeInSec = -1

// TimeTeller can be used to get the current time.
type TimeTeller interface {
	CurrentTime() VTimeInSec
}
