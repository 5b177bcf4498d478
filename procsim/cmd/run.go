package cmd

import (
	"fmt"
	"io"
	"strconv"

	"github.com/sarchlab/procsim/examples/interrupt"
	"github.com/sarchlab/procsim/examples/machineshop"
	"github.com/sarchlab/procsim/examples/randstream"
	"github.com/sarchlab/procsim/monitoring"
	"github.com/sarchlab/procsim/sim"
	"github.com/sarchlab/procsim/simulation"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	configPath  string
	breaks      bool
	jobs        int64
	signals     int64
	seed        int64
	parallelIDs bool

	monitor     bool
	monitorPort int64
	openBrowser bool

	trace          bool
	traceStart     float64
	traceEnd       float64
	recorderKind   string
	recorderTarget string
)

var runCmd = &cobra.Command{
	Use:       "run machineshop|interrupt",
	Short:     "Run an example model and print its statistics.",
	Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	ValidArgs: []string{"machineshop", "interrupt"},
	RunE:      runModel,
}

func init() {
	rootCmd.AddCommand(runCmd)

	f := runCmd.Flags()
	f.StringVar(&configPath, "config", envString("CONFIG", ""),
		"YAML file with model parameters")
	f.BoolVar(&breaks, "breaks", envBool("BREAKS", false),
		"Let the machine of the machine shop break down")
	f.Int64Var(&jobs, "jobs", envInt("JOBS", 1000),
		"Number of jobs the machine shop processes")
	f.Int64Var(&signals, "signals", envInt("SIGNALS", 2),
		"Number of signalled jobs after which the interrupt model stops")
	f.Int64Var(&seed, "seed", envInt("SEED", 1),
		"Seed of the random variates")
	f.BoolVar(&parallelIDs, "parallel-ids", envBool("PARALLEL_IDS", false),
		"Use globally unique process IDs instead of sequential ones")

	f.BoolVar(&monitor, "monitor", envBool("MONITOR", false),
		"Serve a monitoring page while the model runs")
	f.Int64Var(&monitorPort, "monitor-port", envInt("MONITOR_PORT", 0),
		"Port of the monitoring page, random if unset")
	f.BoolVar(&openBrowser, "open-browser", envBool("OPEN_BROWSER", false),
		"Open the monitoring page in a browser")

	f.BoolVar(&trace, "trace", envBool("TRACE", false),
		"Record process activations")
	f.Float64Var(&traceStart, "trace-start", 0,
		"Virtual time from which activations are recorded")
	f.Float64Var(&traceEnd, "trace-end", -1,
		"Virtual time until which activations are recorded, negative for no limit")
	f.StringVar(&recorderKind, "recorder", envString("RECORDER", ""),
		"Trace backend: sqlite, mysql, clickhouse or mongodb")
	f.StringVar(&recorderTarget, "recorder-target", envString("RECORDER_TARGET", ""),
		"SQLite file name, MySQL DSN, ClickHouse address or MongoDB URI")
}

// isSet tells if a flag was given on the command line or through its
// environment variable. Those take precedence over the config file.
func isSet(cmd *cobra.Command, flag, env string) bool {
	if cmd.Flags().Changed(flag) {
		return true
	}

	_, ok := lookupEnv(env)

	return ok
}

func applyOverrides(cmd *cobra.Command, cfg *runConfig) {
	if isSet(cmd, "seed", "SEED") {
		cfg.Seed = seed
	}

	if isSet(cmd, "breaks", "BREAKS") {
		cfg.MachineShop.Breaks = breaks
	}

	if isSet(cmd, "jobs", "JOBS") {
		cfg.MachineShop.Jobs = jobs
	}

	if isSet(cmd, "signals", "SIGNALS") {
		cfg.Interrupt.Signals = signals
	}

	if isSet(cmd, "recorder", "RECORDER") {
		cfg.Recorder.Backend = recorderKind
	}

	if isSet(cmd, "recorder-target", "RECORDER_TARGET") {
		cfg.Recorder.Target = recorderTarget
	}
}

func runModel(cmd *cobra.Command, args []string) error {
	model := args[0]

	cfg, err := loadRunConfig(configPath)
	if err != nil {
		return err
	}

	applyOverrides(cmd, &cfg)

	b := simulation.MakeBuilder().WithoutMonitoring()
	if monitor {
		b = simulation.MakeBuilder().WithMonitorPort(int(monitorPort))
		if openBrowser {
			b = b.WithBrowser()
		}
	}

	if parallelIDs {
		b = b.WithParallelIDs()
	}

	if trace {
		rec, err := openRecorder(cfg.Recorder)
		if err != nil {
			return err
		}

		b = b.WithRecorder(rec).WithTraceTimeRange(
			sim.VTimeInSec(traceStart), sim.VTimeInSec(traceEnd))
	}

	s := b.Build()
	k := s.GetKernel()

	s.AddExecInfo("Model", model)
	s.AddExecInfo("Seed", strconv.FormatInt(cfg.Seed, 10))

	logrus.WithFields(logrus.Fields{
		"model": model,
		"seed":  cfg.Seed,
	}).Info("Starting simulation")

	stream := randstream.New(cfg.Seed)
	out := cmd.OutOrStdout()

	switch model {
	case "machineshop":
		err = runMachineShop(k, cfg.MachineShop, stream, s.GetMonitor(), out)
	case "interrupt":
		err = runInterrupt(k, cfg.Interrupt, stream, out)
	default:
		err = fmt.Errorf("unknown model %q", model)
	}

	if termErr := s.Terminate(); termErr != nil && err == nil {
		err = termErr
	}

	steps := s.GetStepCounter()
	for _, name := range steps.Names() {
		logrus.WithFields(logrus.Fields{
			"process":   name,
			"instances": steps.ProcessCount(name),
			"steps":     steps.StepCount(name),
		}).Debug("Process activity")
	}

	if err == nil {
		logrus.Info("Simulation complete.")
	}

	return err
}

func runMachineShop(
	k *sim.Kernel,
	cfg machineshop.Config,
	stream randstream.Stream,
	mon *monitoring.Monitor,
	out io.Writer,
) error {
	b := machineshop.MakeBuilder().
		WithKernel(k).
		WithConfig(cfg).
		WithStream(stream)

	if mon != nil {
		bar := mon.CreateProgressBar("Jobs", uint64(cfg.Jobs))
		defer mon.CompleteProgressBar(bar)

		b = b.WithJobObserver(func(machineshop.Job) {
			bar.IncrementFinished(1)
		})
	}

	shop, err := b.Build()
	if err != nil {
		return err
	}

	stats, err := shop.Run()
	if err != nil {
		return err
	}

	stats.Report(out)

	return nil
}

func runInterrupt(
	k *sim.Kernel,
	cfg interrupt.Config,
	stream randstream.Stream,
	out io.Writer,
) error {
	m, err := interrupt.MakeBuilder().
		WithKernel(k).
		WithConfig(cfg).
		WithStream(stream).
		Build()
	if err != nil {
		return err
	}

	stats, err := m.Run()
	if err != nil {
		return err
	}

	stats.Report(out)

	return nil
}
