package tracing

import (
	"sync"

	"github.com/sarchlab/procsim/sim"
)

// StepCountTracer counts how many times the processes of each name got
// control.
type StepCountTracer struct {
	lock          sync.Mutex
	names         []string
	stepCount     map[string]uint64
	processCount  map[string]uint64
	seenProcesses map[string]bool
}

// NewStepCountTracer creates a new StepCountTracer
func NewStepCountTracer() *StepCountTracer {
	return &StepCountTracer{
		stepCount:     make(map[string]uint64),
		processCount:  make(map[string]uint64),
		seenProcesses: make(map[string]bool),
	}
}

// Names returns the process names seen, in the order they first ran.
func (t *StepCountTracer) Names() []string {
	t.lock.Lock()
	defer t.lock.Unlock()

	names := make([]string, len(t.names))
	copy(names, t.names)

	return names
}

// StepCount returns the number of resumes of processes with the name.
func (t *StepCountTracer) StepCount(name string) uint64 {
	t.lock.Lock()
	defer t.lock.Unlock()

	return t.stepCount[name]
}

// ProcessCount returns the number of distinct processes with the name that
// ran.
func (t *StepCountTracer) ProcessCount(name string) uint64 {
	t.lock.Lock()
	defer t.lock.Unlock()

	return t.processCount[name]
}

// Func counts process resumes.
func (t *StepCountTracer) Func(ctx sim.HookCtx) {
	if ctx.Pos != sim.HookPosProcessResume {
		return
	}

	p := ctx.Item.(*sim.Process)

	t.lock.Lock()
	defer t.lock.Unlock()

	name := p.Name()
	if _, ok := t.stepCount[name]; !ok {
		t.names = append(t.names, name)
	}

	t.stepCount[name]++

	if !t.seenProcesses[p.ID()] {
		t.seenProcesses[p.ID()] = true
		t.processCount[name]++
	}
}
