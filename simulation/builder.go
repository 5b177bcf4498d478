package simulation

import (
	"github.com/rs/xid"
	"github.com/sarchlab/procsim/datarecording"
	"github.com/sarchlab/procsim/monitoring"
	"github.com/sarchlab/procsim/sim"
	"github.com/sarchlab/procsim/tracing"
)

// Builder can be used to build a simulation.
type Builder struct {
	parallelIDs    bool
	monitorOn      bool
	monitorPort    int
	openBrowser    bool
	outputFileName string
	recorder       datarecording.DataRecorder
	traceStart     sim.VTimeInSec
	traceEnd       sim.VTimeInSec
}

// MakeBuilder creates a new builder.
func MakeBuilder() Builder {
	return Builder{
		parallelIDs: false,
		monitorOn:   true,
		traceEnd:    -1,
	}
}

// WithParallelIDs makes the kernel use globally unique process IDs.
func (b Builder) WithParallelIDs() Builder {
	b.parallelIDs = true
	return b
}

// WithoutMonitoring sets the simulation to not use monitoring.
func (b Builder) WithoutMonitoring() Builder {
	b.monitorOn = false
	return b
}

// WithMonitorPort sets the port number for the monitoring server.
func (b Builder) WithMonitorPort(port int) Builder {
	b.monitorPort = port
	return b
}

// WithBrowser opens the monitoring page once the server is up.
func (b Builder) WithBrowser() Builder {
	b.openBrowser = true
	return b
}

// WithOutputFileName records process activations into a new SQLite file.
func (b Builder) WithOutputFileName(filename string) Builder {
	b.outputFileName = filename
	return b
}

// WithRecorder records process activations into the given recorder. It
// takes precedence over WithOutputFileName.
func (b Builder) WithRecorder(r datarecording.DataRecorder) Builder {
	b.recorder = r
	return b
}

// WithTraceTimeRange limits activation recording to a window of virtual
// time. A negative end leaves the window open.
func (b Builder) WithTraceTimeRange(start, end sim.VTimeInSec) Builder {
	b.traceStart = start
	b.traceEnd = end

	return b
}

func (b Builder) parametersMustBeValid() {
	if !b.monitorOn && b.monitorPort != 0 {
		panic("monitor port cannot be set when monitoring is disabled")
	}

	if !b.monitorOn && b.openBrowser {
		panic("browser cannot be opened when monitoring is disabled")
	}
}

// Build builds the simulation.
func (b Builder) Build() *Simulation {
	b.parametersMustBeValid()

	s := &Simulation{
		id: xid.New().String(),
	}

	kb := sim.MakeBuilder()
	if b.parallelIDs {
		kb = kb.WithParallelIDGenerator()
	}

	s.kernel = kb.Build()

	s.steps = tracing.NewStepCountTracer()
	s.kernel.AcceptHook(s.steps)

	s.dataRecorder = b.recorder
	if s.dataRecorder == nil && b.outputFileName != "" {
		s.dataRecorder = datarecording.New(b.outputFileName)
	}

	if s.dataRecorder != nil {
		s.activationTracer = tracing.NewActivationTracer(s.dataRecorder)
		s.activationTracer.SetTimeRange(b.traceStart, b.traceEnd)
		s.kernel.AcceptHook(s.activationTracer)
	}

	if b.monitorOn {
		s.monitor = monitoring.NewMonitor().WithBrowser(b.openBrowser)
		if b.monitorPort > 0 {
			s.monitor.WithPortNumber(b.monitorPort)
		}

		s.monitor.RegisterKernel(s.kernel)
		s.monitorURL = s.monitor.StartServer()
	}

	return s
}
