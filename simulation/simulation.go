// Package simulation wires a kernel together with the services that observe
// it: activation recording, step counting and the web monitor.
package simulation

import (
	"github.com/sarchlab/procsim/datarecording"
	"github.com/sarchlab/procsim/monitoring"
	"github.com/sarchlab/procsim/sim"
	"github.com/sarchlab/procsim/tracing"
)

// A Simulation provides the services required to run a model.
type Simulation struct {
	id     string
	kernel *sim.Kernel

	dataRecorder     datarecording.DataRecorder
	activationTracer *tracing.ActivationTracer
	steps            *tracing.StepCountTracer
	monitor          *monitoring.Monitor
	monitorURL       string
}

// ID returns the ID of the simulation.
func (s *Simulation) ID() string {
	return s.id
}

// GetKernel returns the kernel that runs the simulation.
func (s *Simulation) GetKernel() *sim.Kernel {
	return s.kernel
}

// GetDataRecorder returns the data recorder used in the simulation. It is nil
// if activations are not recorded.
func (s *Simulation) GetDataRecorder() datarecording.DataRecorder {
	return s.dataRecorder
}

// GetMonitor returns the monitor used in the simulation. It is nil if
// monitoring is disabled.
func (s *Simulation) GetMonitor() *monitoring.Monitor {
	return s.monitor
}

// MonitorURL returns the address of the monitoring page, or an empty string.
func (s *Simulation) MonitorURL() string {
	return s.monitorURL
}

// GetStepCounter returns the tracer that counts how often each process got
// control.
func (s *Simulation) GetStepCounter() *tracing.StepCountTracer {
	return s.steps
}

// GetProcessByName returns the first live process with the given name, or
// nil.
func (s *Simulation) GetProcessByName(name string) *sim.Process {
	for _, p := range s.kernel.Processes() {
		if p.Name() == name {
			return p
		}
	}

	return nil
}

// AddExecInfo attaches a property to the execution record, if the recorder
// keeps one.
func (s *Simulation) AddExecInfo(property, value string) {
	if r, ok := s.dataRecorder.(datarecording.ExecInfoRecorder); ok {
		r.AddExecInfo(property, value)
	}
}

// Terminate writes out the pending records and releases the kernel. The
// simulation cannot be used afterwards.
func (s *Simulation) Terminate() error {
	var err error

	if s.activationTracer != nil {
		s.activationTracer.Terminate(s.kernel.CurrentTime())
	}

	if s.dataRecorder != nil {
		err = s.dataRecorder.Close()
	}

	s.kernel.Shutdown()

	return err
}
