package simulation

import (
	"net/http"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/sarchlab/procsim/sim"
	"go.uber.org/mock/gomock"
)

var _ = Describe("Simulation", func() {
	var (
		mockCtrl *gomock.Controller
		recorder *MockDataRecorder
	)

	BeforeEach(func() {
		mockCtrl = gomock.NewController(GinkgoT())
		recorder = NewMockDataRecorder(mockCtrl)
	})

	AfterEach(func() {
		mockCtrl.Finish()
	})

	It("should run without recording", func() {
		s := MakeBuilder().WithoutMonitoring().Build()

		root := sim.NewProcess(s.GetKernel(), "root", func(p *sim.Process) error {
			return p.Hold(3)
		})

		s.GetKernel().Start()
		Expect(s.GetKernel().Await(root)).To(Succeed())

		Expect(s.ID()).NotTo(BeEmpty())
		Expect(s.GetDataRecorder()).To(BeNil())
		Expect(s.GetMonitor()).To(BeNil())
		Expect(s.GetStepCounter().StepCount("root")).To(Equal(uint64(2)))
		Expect(s.Terminate()).To(Succeed())
	})

	It("should find processes by name", func() {
		s := MakeBuilder().WithoutMonitoring().Build()
		defer s.Terminate()

		p := sim.NewProcess(s.GetKernel(), "arrivals", nil)

		Expect(s.GetProcessByName("arrivals")).To(BeIdenticalTo(p))
		Expect(s.GetProcessByName("machine")).To(BeNil())
	})

	It("should record activations into the given recorder", func() {
		recorder.EXPECT().CreateTable(gomock.Any(), gomock.Any()).Times(2)
		recorder.EXPECT().InsertData(gomock.Any(), gomock.Any()).AnyTimes()
		recorder.EXPECT().Flush().AnyTimes()
		recorder.EXPECT().Close().Return(nil)

		s := MakeBuilder().
			WithoutMonitoring().
			WithRecorder(recorder).
			Build()

		root := sim.NewProcess(s.GetKernel(), "root", func(p *sim.Process) error {
			return p.Hold(1)
		})

		s.GetKernel().Start()
		Expect(s.GetKernel().Await(root)).To(Succeed())

		Expect(s.GetDataRecorder()).To(BeIdenticalTo(recorder))
		Expect(s.Terminate()).To(Succeed())
	})

	It("should create a SQLite file when an output name is given", func() {
		name := filepath.Join(GinkgoT().TempDir(), "run")

		s := MakeBuilder().
			WithoutMonitoring().
			WithOutputFileName(name).
			Build()
		s.AddExecInfo("Model", "test")

		Expect(s.Terminate()).To(Succeed())
		Expect(name + ".sqlite3").To(BeAnExistingFile())
	})

	It("should not allow a monitor port without monitoring", func() {
		Expect(func() {
			MakeBuilder().WithoutMonitoring().WithMonitorPort(8080).Build()
		}).To(Panic())
	})

	It("should serve the monitor", func() {
		s := MakeBuilder().Build()
		defer s.Terminate()

		Expect(s.GetMonitor()).NotTo(BeNil())
		Expect(s.MonitorURL()).To(HavePrefix("http://localhost:"))

		rsp, err := http.Get(s.MonitorURL() + "/api/now")
		Expect(err).NotTo(HaveOccurred())
		defer rsp.Body.Close()

		Expect(rsp.StatusCode).To(Equal(http.StatusOK))
	})
})
