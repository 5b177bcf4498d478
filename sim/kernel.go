package sim

import (
	"errors"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"
)

// A Kernel runs a process-oriented discrete event simulation.
//
// Every process runs on its own goroutine, but the kernel only lets one of
// them execute at a time. A process hands control over by suspending itself;
// the kernel then pops the earliest process from the event queue, moves the
// clock to its wakeup time and resumes it. The goroutine that created the
// kernel (the host) joins the same protocol through Await.
type Kernel struct {
	HookableBase

	mu         sync.Mutex
	queue      *EventQueue
	now        VTimeInSec
	running    bool
	resetting  bool
	current    *Process
	hostActive bool
	fatal      error

	processes []*Process
	procIndex map[string]*Process
	idGen     IDGenerator

	hostWake  chan struct{}
	resetAck  chan struct{}
	closed    chan struct{}
	closeOnce sync.Once

	isPaused     bool
	isPausedLock sync.Mutex
	pauseLock    sync.Mutex
}

// Builder can build kernels.
type Builder struct {
	idGen IDGenerator
	hooks []Hook
}

// MakeBuilder returns a Builder with sequential process IDs.
func MakeBuilder() Builder {
	return Builder{}
}

// WithParallelIDGenerator makes the kernel name processes with xid IDs.
func (b Builder) WithParallelIDGenerator() Builder {
	b.idGen = NewParallelIDGenerator()
	return b
}

// WithIDGenerator sets the generator used for process IDs.
func (b Builder) WithIDGenerator(g IDGenerator) Builder {
	b.idGen = g
	return b
}

// WithHook registers a hook with the kernel to build.
func (b Builder) WithHook(h Hook) Builder {
	b.hooks = append(b.hooks, h)
	return b
}

// Build creates the kernel.
func (b Builder) Build() *Kernel {
	k := &Kernel{
		queue:      NewEventQueue(),
		hostActive: true,
		procIndex:  make(map[string]*Process),
		idGen:      b.idGen,
		hostWake:   make(chan struct{}, 1),
		resetAck:   make(chan struct{}, 1),
		closed:     make(chan struct{}),
	}

	if k.idGen == nil {
		k.idGen = NewSequentialIDGenerator()
	}

	for _, h := range b.hooks {
		k.AcceptHook(h)
	}

	return k
}

// NewKernel creates a kernel with the default configuration.
func NewKernel() *Kernel {
	return MakeBuilder().Build()
}

// AcceptHook registers a hook.
func (k *Kernel) AcceptHook(hook Hook) {
	k.mu.Lock()
	defer k.mu.Unlock()

	k.HookableBase.AcceptHook(hook)
}

// Start lets processes hand control over to each other, either from the
// beginning or from where the simulation was stopped.
func (k *Kernel) Start() {
	k.mu.Lock()
	defer k.mu.Unlock()

	k.running = true
}

// Stop prevents further hand-offs. Suspension points return ErrNotStarted
// until Start is called again.
func (k *Kernel) Stop() {
	k.mu.Lock()
	defer k.mu.Unlock()

	k.running = false
}

// IsStarted tells if the simulation is running.
func (k *Kernel) IsStarted() bool {
	k.mu.Lock()
	defer k.mu.Unlock()

	return k.running
}

// IsReset tells if a reset is in progress.
func (k *Kernel) IsReset() bool {
	k.mu.Lock()
	defer k.mu.Unlock()

	return k.resetting
}

// CurrentTime returns the virtual time.
func (k *Kernel) CurrentTime() VTimeInSec {
	k.mu.Lock()
	defer k.mu.Unlock()

	return k.now
}

// Current returns the process that most recently got control, or nil before
// the first hand-off.
func (k *Kernel) Current() *Process {
	k.mu.Lock()
	defer k.mu.Unlock()

	return k.current
}

// Processes returns every live process in creation order.
func (k *Kernel) Processes() []*Process {
	k.mu.Lock()
	defer k.mu.Unlock()

	procs := make([]*Process, len(k.processes))
	copy(procs, k.processes)

	return procs
}

// ProcessByID returns the live process with the given ID, or nil.
func (k *Kernel) ProcessByID(id string) *Process {
	k.mu.Lock()
	defer k.mu.Unlock()

	return k.procIndex[id]
}

// Queue returns the scheduled processes in the order they will run.
func (k *Kernel) Queue() []*Process {
	k.mu.Lock()
	defer k.mu.Unlock()

	return k.queue.Processes()
}

func (k *Kernel) register(p *Process) {
	k.mu.Lock()
	defer k.mu.Unlock()

	if _, found := k.procIndex[p.id]; found {
		panic(fmt.Sprintf("sim: process id %s already registered", p.id))
	}

	k.processes = append(k.processes, p)
	k.procIndex[p.id] = p
}

func (k *Kernel) deregisterLocked(p *Process) {
	if _, found := k.procIndex[p.id]; !found {
		return
	}

	delete(k.procIndex, p.id)

	for i, q := range k.processes {
		if q == p {
			k.processes = append(k.processes[:i], k.processes[i+1:]...)
			break
		}
	}
}

// activeLocked returns the process that holds control, or nil if the host
// does.
func (k *Kernel) activeLocked() *Process {
	if k.hostActive {
		return nil
	}

	return k.current
}

// advanceLocked pops the earliest process, moves the clock to its wakeup
// time and makes it current.
func (k *Kernel) advanceLocked() (*Process, error) {
	next, err := k.queue.PopEarliest()
	if err != nil {
		return nil, err
	}

	if next.wakeup < 0 {
		return nil, fmt.Errorf("%w: %s @ %.10f",
			ErrInvalidWakeup, next.name, next.wakeup)
	}

	k.now = next.wakeup
	k.current = next

	k.InvokeHook(HookCtx{
		Domain: k,
		Pos:    HookPosProcessResume,
		Item:   next,
		Detail: k.now,
	})

	return next, nil
}

// schedule picks the next process to run and gives it control. It reports
// whether the caller has to park. An empty queue means that the simulation
// has ended; the host is woken up and ErrEmpty is returned.
func (k *Kernel) schedule(caller *Process) (bool, error) {
	if !k.running {
		return false, ErrNotStarted
	}

	next, err := k.advanceLocked()
	if errors.Is(err, ErrEmpty) {
		logrus.WithField("time", k.now).Debug("sim: simulation queue empty")

		k.InvokeHook(HookCtx{
			Domain: k,
			Pos:    HookPosSimulationEnd,
			Detail: k.now,
		})
		k.signalHostLocked()

		return false, err
	}

	if err != nil {
		return false, err
	}

	if next == caller {
		return false, nil
	}

	k.resumeLocked(next)

	return true, nil
}

// unscheduleLocked removes the process from the queue, if it is there, and
// marks it idle.
func (k *Kernel) unscheduleLocked(p *Process) {
	if k.queue.Contains(p) {
		_ = k.queue.Remove(p)
	}

	p.deactivateLocked()
}

// resumeLocked unblocks the goroutine of the process, starting it on first
// use.
func (k *Kernel) resumeLocked(p *Process) {
	if p.terminated {
		return
	}

	if !p.started {
		p.started = true
		go p.run()

		return
	}

	select {
	case p.wake <- struct{}{}:
	default:
		logrus.WithField("process", p.name).
			Warn("sim: process resumed while a resume is pending")
	}
}

func (k *Kernel) signalHostLocked() {
	k.hostActive = true

	select {
	case k.hostWake <- struct{}{}:
	default:
	}
}

func (k *Kernel) ackResetLocked() {
	select {
	case k.resetAck <- struct{}{}:
	default:
	}
}

func (k *Kernel) failLocked(err error) {
	logrus.WithError(err).Error("sim: aborting simulation")

	k.fatal = err
	k.running = false
	k.signalHostLocked()
}

// handOff gives control away on behalf of a process that leaves the
// simulation for good.
func (k *Kernel) handOff(p *Process) {
	k.waitIfPaused()

	k.mu.Lock()
	defer k.mu.Unlock()

	if k.resetting {
		k.ackResetLocked()
		return
	}

	_, err := k.schedule(p)

	switch {
	case err == nil, errors.Is(err, ErrEmpty):
	case errors.Is(err, ErrNotStarted):
		logrus.WithField("process", p.name).
			Debug("sim: simulation stopped, returning control to host")
		k.signalHostLocked()
	default:
		k.failLocked(err)
	}
}

// Await gives control to the root process and blocks the calling goroutine
// until a process calls ResumeMain, the event queue runs dry, the simulation
// aborts or the kernel shuts down. It returns the error that aborted the
// simulation, if any.
func (k *Kernel) Await(root *Process) error {
	k.mu.Lock()

	if !k.hostActive {
		k.mu.Unlock()
		return fmt.Errorf("%w: control is already handed to %s",
			ErrInvalidOperation, k.current.name)
	}

	if root.terminated {
		k.mu.Unlock()
		return fmt.Errorf("%w: root process %s is terminated",
			ErrInvalidOperation, root.name)
	}

	select {
	case <-k.hostWake:
	default:
	}

	k.unscheduleLocked(root)
	root.passivated = false
	root.wakeup = k.now
	k.current = root
	k.hostActive = false

	k.InvokeHook(HookCtx{
		Domain: k,
		Pos:    HookPosProcessResume,
		Item:   root,
		Detail: k.now,
	})
	k.resumeLocked(root)
	k.mu.Unlock()

	select {
	case <-k.hostWake:
	case <-k.closed:
	}

	k.mu.Lock()
	defer k.mu.Unlock()

	return k.fatal
}

// Reset rewinds the simulation. It empties the event queue and resumes every
// suspended process one after another. Each of them sees ErrRestart from the
// suspension point it was parked in and is expected to clean up and call
// Cancel. Reset returns after every process is idle again and the clock is
// back to zero.
//
// Reset can be called by the host or by the running process. In the latter
// case the caller stays the current process.
func (k *Kernel) Reset() error {
	k.mu.Lock()

	if k.resetting {
		k.mu.Unlock()
		return fmt.Errorf("%w: reset already in progress", ErrInvalidOperation)
	}

	k.resetting = true
	hostDriven := k.hostActive
	driver := k.activeLocked()

	if k.current != nil {
		k.unscheduleLocked(k.current)
	}

	for {
		p, err := k.queue.PopEarliest()
		if err != nil {
			break
		}

		p.deactivateLocked()
	}

	procs := make([]*Process, len(k.processes))
	copy(procs, k.processes)
	k.mu.Unlock()

	logrus.WithField("processes", len(procs)).Debug("sim: resetting simulation")

	for _, p := range procs {
		if !k.resetOne(p, driver) {
			break
		}
	}

	k.mu.Lock()
	defer k.mu.Unlock()

	k.now = 0
	k.resetting = false

	if hostDriven {
		k.current = nil
		k.hostActive = true
	} else {
		k.current = driver
		k.hostActive = false
	}

	k.InvokeHook(HookCtx{Domain: k, Pos: HookPosReset})

	return nil
}

// resetOne lets a parked process observe the reset and waits until it parks
// again. It returns false if the kernel shuts down meanwhile.
func (k *Kernel) resetOne(p, driver *Process) bool {
	k.mu.Lock()

	if p == driver || !p.started || p.terminated {
		k.mu.Unlock()
		return true
	}

	k.current = p
	k.hostActive = false
	k.resumeLocked(p)
	k.mu.Unlock()

	select {
	case <-k.resetAck:
		return true
	case <-k.closed:
		return false
	}
}

// Shutdown unwinds the goroutines of all parked processes. The kernel cannot
// be used afterwards.
func (k *Kernel) Shutdown() {
	k.closeOnce.Do(func() {
		close(k.closed)
	})
}

// Pause prevents processes from handing control over until Continue is
// called. It must not be called from a process.
func (k *Kernel) Pause() {
	k.isPausedLock.Lock()
	defer k.isPausedLock.Unlock()

	if k.isPaused {
		return
	}

	k.pauseLock.Lock()
	k.isPaused = true
}

// Continue lets processes hand control over again.
func (k *Kernel) Continue() {
	k.isPausedLock.Lock()
	defer k.isPausedLock.Unlock()

	if !k.isPaused {
		return
	}

	k.pauseLock.Unlock()
	k.isPaused = false
}

func (k *Kernel) waitIfPaused() {
	k.pauseLock.Lock()
	//nolint:staticcheck
	k.pauseLock.Unlock()
}
