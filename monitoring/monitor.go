// Package monitoring turns a running simulation into a web server that can
// pause it and show its processes.
package monitoring

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"runtime/pprof"
	"strconv"
	"sync"
	"time"

	"github.com/google/pprof/profile"
	"github.com/gorilla/mux"
	"github.com/pkg/browser"
	"github.com/sarchlab/procsim/monitoring/web"
	"github.com/sarchlab/procsim/sim"
	"github.com/shirou/gopsutil/process"
	"github.com/syifan/goseth"
)

// Monitor can turn a simulation into a server and allows external monitoring
// controlling of the simulation.
type Monitor struct {
	kernel      *sim.Kernel
	portNumber  int
	openBrowser bool
	idGenerator sim.IDGenerator

	progressBarsLock sync.Mutex
	progressBars     []*ProgressBar
}

// NewMonitor creates a new Monitor
func NewMonitor() *Monitor {
	return &Monitor{
		idGenerator: sim.NewParallelIDGenerator(),
	}
}

// WithPortNumber sets the port number of the monitor.
func (m *Monitor) WithPortNumber(portNumber int) *Monitor {
	if portNumber < 1000 {
		fmt.Fprintf(os.Stderr,
			"Port number %d is assigned to the monitoring server, "+
				"which is not allowed. Using a random port instead.\n", portNumber)
		portNumber = 0
	}

	m.portNumber = portNumber

	return m
}

// WithBrowser makes StartServer open the monitoring page in a browser.
func (m *Monitor) WithBrowser(open bool) *Monitor {
	m.openBrowser = open
	return m
}

// RegisterKernel registers the kernel that runs the simulation.
func (m *Monitor) RegisterKernel(k *sim.Kernel) {
	m.kernel = k
}

// CreateProgressBar creates a new progress bar.
func (m *Monitor) CreateProgressBar(name string, total uint64) *ProgressBar {
	bar := &ProgressBar{
		ID:        m.idGenerator.Generate(),
		Name:      name,
		StartTime: time.Now(),
		Total:     total,
	}

	m.progressBarsLock.Lock()
	defer m.progressBarsLock.Unlock()

	m.progressBars = append(m.progressBars, bar)

	return bar
}

// CompleteProgressBar removes a bar to be shown on the webpage.
func (m *Monitor) CompleteProgressBar(pb *ProgressBar) {
	m.progressBarsLock.Lock()
	defer m.progressBarsLock.Unlock()

	newBars := make([]*ProgressBar, 0, len(m.progressBars))
	for _, b := range m.progressBars {
		if b != pb {
			newBars = append(newBars, b)
		}
	}

	m.progressBars = newBars
}

func (m *Monitor) router() *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/api/pause", m.pauseKernel)
	r.HandleFunc("/api/continue", m.continueKernel)
	r.HandleFunc("/api/now", m.now)
	r.HandleFunc("/api/processes", m.listProcesses)
	r.HandleFunc("/api/process/{id}", m.processDetails)
	r.HandleFunc("/api/queue", m.listQueue)
	r.HandleFunc("/api/progress", m.listProgressBars)
	r.HandleFunc("/api/resource", m.listResources)
	r.HandleFunc("/api/profile", m.collectProfile)
	r.PathPrefix("/").Handler(http.FileServer(web.GetAssets()))

	return r
}

// StartServer starts the monitor as a web server and returns the address of
// the monitoring page.
func (m *Monitor) StartServer() string {
	actualPort := ":0"
	if m.portNumber > 1000 {
		actualPort = ":" + strconv.Itoa(m.portNumber)
	}

	listener, err := net.Listen("tcp", actualPort)
	dieOnErr(err)

	url := fmt.Sprintf("http://localhost:%d",
		listener.Addr().(*net.TCPAddr).Port)

	fmt.Fprintf(os.Stderr, "Monitoring simulation with %s\n", url)

	go func() {
		err := http.Serve(listener, m.router())
		dieOnErr(err)
	}()

	if m.openBrowser {
		if err := browser.OpenURL(url); err != nil {
			fmt.Fprintf(os.Stderr, "Cannot open browser: %s\n", err)
		}
	}

	return url
}

func (m *Monitor) pauseKernel(w http.ResponseWriter, _ *http.Request) {
	m.kernel.Pause()
	_, err := w.Write(nil)
	dieOnErr(err)
}

func (m *Monitor) continueKernel(w http.ResponseWriter, _ *http.Request) {
	m.kernel.Continue()
	_, err := w.Write(nil)
	dieOnErr(err)
}

func (m *Monitor) now(w http.ResponseWriter, _ *http.Request) {
	now := m.kernel.CurrentTime()
	fmt.Fprintf(w, "{\"now\":%.10f}", float64(now))
}

type processRsp struct {
	ID         string  `json:"id"`
	Name       string  `json:"name"`
	State      string  `json:"state"`
	WakeupTime float64 `json:"wakeup_time"`
	Passivated bool    `json:"passivated"`
	Entity     bool    `json:"entity"`
}

func newProcessRsp(p *sim.Process) processRsp {
	return processRsp{
		ID:         p.ID(),
		Name:       p.Name(),
		State:      p.State().String(),
		WakeupTime: float64(p.WakeupTime()),
		Passivated: p.Passivated(),
		Entity:     p.IsEntity(),
	}
}

func writeProcesses(w http.ResponseWriter, processes []*sim.Process) {
	rsp := make([]processRsp, 0, len(processes))
	for _, p := range processes {
		rsp = append(rsp, newProcessRsp(p))
	}

	bytes, err := json.Marshal(rsp)
	dieOnErr(err)

	_, err = w.Write(bytes)
	dieOnErr(err)
}

func (m *Monitor) listProcesses(w http.ResponseWriter, _ *http.Request) {
	writeProcesses(w, m.kernel.Processes())
}

func (m *Monitor) listQueue(w http.ResponseWriter, _ *http.Request) {
	writeProcesses(w, m.kernel.Queue())
}

func (m *Monitor) processDetails(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	p := m.kernel.ProcessByID(id)
	if p == nil {
		w.WriteHeader(http.StatusNotFound)
		_, err := w.Write([]byte("Process not found"))
		dieOnErr(err)

		return
	}

	rsp := newProcessRsp(p)

	serializer := goseth.NewSerializer()
	serializer.SetRoot(&rsp)
	serializer.SetMaxDepth(1)
	err := serializer.Serialize(w)

	dieOnErr(err)
}

func (m *Monitor) listProgressBars(w http.ResponseWriter, _ *http.Request) {
	m.progressBarsLock.Lock()
	bytes, err := json.Marshal(m.progressBars)
	m.progressBarsLock.Unlock()

	dieOnErr(err)

	_, err = w.Write(bytes)
	dieOnErr(err)
}

type resourceRsp struct {
	CPUPercent float64 `json:"cpu_percent"`
	MemorySize uint64  `json:"memory_size"`
}

func (m *Monitor) listResources(w http.ResponseWriter, _ *http.Request) {
	pid := os.Getpid()
	process, err := process.NewProcess(int32(pid))
	dieOnErr(err)

	cpuPercent, err := process.CPUPercent()
	dieOnErr(err)

	memorySize, err := process.MemoryInfo()
	dieOnErr(err)

	rsp := resourceRsp{
		CPUPercent: cpuPercent,
		MemorySize: memorySize.RSS,
	}

	bytes, err := json.Marshal(rsp)
	dieOnErr(err)

	_, err = w.Write(bytes)
	dieOnErr(err)
}

func (m *Monitor) collectProfile(w http.ResponseWriter, _ *http.Request) {
	buf := bytes.NewBuffer(nil)

	err := pprof.StartCPUProfile(buf)
	dieOnErr(err)

	time.Sleep(time.Second)

	pprof.StopCPUProfile()

	prof, err := profile.ParseData(buf.Bytes())
	dieOnErr(err)

	bytes, err := json.Marshal(prof)
	dieOnErr(err)

	_, err = w.Write(bytes)
	dieOnErr(err)
}

func dieOnErr(err error) {
	if err != nil {
		log.Panic(err)
	}
}
