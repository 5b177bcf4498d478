// Package tracing observes a kernel through its hooks.
package tracing

import (
	"sync"

	"github.com/sarchlab/procsim/datarecording"
	"github.com/sarchlab/procsim/sim"
)

// An Activation is a row of the activation table. Event is one of resume,
// terminate and reset.
type Activation struct {
	Time        float64
	ProcessID   string
	ProcessName string
	Event       string
}

// A ProcessLifetime is a row of the process_lifetime table.
type ProcessLifetime struct {
	ProcessID   string
	ProcessName string
	StartTime   float64
	EndTime     float64
	Activations int
}

// ActivationTracer is a kernel hook that stores every process activation and
// termination into a DataRecorder. It also stores one lifetime row per
// process when the process terminates.
type ActivationTracer struct {
	mu      sync.Mutex
	backend datarecording.DataRecorder

	startTime, endTime sim.VTimeInSec

	inflight map[string]*ProcessLifetime
}

// Tables written by the ActivationTracer.
const (
	ActivationTable = "activation"
	LifetimeTable   = "process_lifetime"
)

// NewActivationTracer creates the tracer and its tables in the backend.
func NewActivationTracer(backend datarecording.DataRecorder) *ActivationTracer {
	t := &ActivationTracer{
		backend:  backend,
		endTime:  -1,
		inflight: make(map[string]*ProcessLifetime),
	}

	backend.CreateTable(ActivationTable, Activation{})
	backend.CreateTable(LifetimeTable, ProcessLifetime{})

	return t
}

// SetTimeRange limits the recorded activations to the given window. A
// negative end leaves the window open.
func (t *ActivationTracer) SetTimeRange(start, end sim.VTimeInSec) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.startTime = start
	t.endTime = end
}

func (t *ActivationTracer) inRange(now sim.VTimeInSec) bool {
	if now < t.startTime {
		return false
	}

	return t.endTime < 0 || now <= t.endTime
}

// Func records the hook context.
func (t *ActivationTracer) Func(ctx sim.HookCtx) {
	t.mu.Lock()
	defer t.mu.Unlock()

	now, _ := ctx.Detail.(sim.VTimeInSec)

	switch ctx.Pos {
	case sim.HookPosProcessResume:
		t.resume(ctx.Item.(*sim.Process), now)
	case sim.HookPosProcessTerminate:
		t.terminate(ctx.Item.(*sim.Process), now)
	case sim.HookPosReset:
		t.backend.InsertData(ActivationTable, Activation{
			Event: "reset",
		})
	}
}

func (t *ActivationTracer) resume(p *sim.Process, now sim.VTimeInSec) {
	life, found := t.inflight[p.ID()]
	if !found {
		life = &ProcessLifetime{
			ProcessID:   p.ID(),
			ProcessName: p.Name(),
			StartTime:   float64(now),
		}
		t.inflight[p.ID()] = life
	}

	life.Activations++

	if t.inRange(now) {
		t.backend.InsertData(ActivationTable, Activation{
			Time:        float64(now),
			ProcessID:   p.ID(),
			ProcessName: p.Name(),
			Event:       "resume",
		})
	}
}

func (t *ActivationTracer) terminate(p *sim.Process, now sim.VTimeInSec) {
	if t.inRange(now) {
		t.backend.InsertData(ActivationTable, Activation{
			Time:        float64(now),
			ProcessID:   p.ID(),
			ProcessName: p.Name(),
			Event:       "terminate",
		})
	}

	life, found := t.inflight[p.ID()]
	if !found {
		return
	}

	delete(t.inflight, p.ID())

	life.EndTime = float64(now)
	t.backend.InsertData(LifetimeTable, *life)
}

// Terminate stores the lifetimes of the processes that are still alive,
// ending them at the given time, and flushes the backend.
func (t *ActivationTracer) Terminate(now sim.VTimeInSec) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for id, life := range t.inflight {
		life.EndTime = float64(now)
		t.backend.InsertData(LifetimeTable, *life)
		delete(t.inflight, id)
	}

	t.backend.Flush()
}
