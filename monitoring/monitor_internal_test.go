package monitoring

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/sarchlab/procsim/sim"
)

var _ = Describe("Monitor", func() {
	var (
		k *sim.Kernel
		m *Monitor
	)

	BeforeEach(func() {
		k = sim.NewKernel()
		m = NewMonitor()
		m.RegisterKernel(k)
	})

	AfterEach(func() {
		k.Shutdown()
	})

	get := func(url string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, url, nil)
		m.router().ServeHTTP(rec, req)

		return rec
	}

	It("should fall back to a random port", func() {
		Expect(m.WithPortNumber(80).portNumber).To(Equal(0))
		Expect(m.WithPortNumber(32776).portNumber).To(Equal(32776))
	})

	It("should report the current time", func() {
		rec := get("/api/now")

		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(rec.Body.String()).To(MatchJSON(`{"now":0}`))
	})

	It("should list processes in creation order", func() {
		sim.NewProcess(k, "arrivals", nil)
		sim.NewEntity(k, "machine", nil)

		var rsp []processRsp
		rec := get("/api/processes")
		Expect(json.Unmarshal(rec.Body.Bytes(), &rsp)).To(Succeed())

		Expect(rsp).To(HaveLen(2))
		Expect(rsp[0].Name).To(Equal("arrivals"))
		Expect(rsp[0].State).To(Equal("Idle"))
		Expect(rsp[0].Entity).To(BeFalse())
		Expect(rsp[1].Name).To(Equal("machine"))
		Expect(rsp[1].Entity).To(BeTrue())
	})

	It("should list the event queue in run order", func() {
		late := sim.NewProcess(k, "late", nil)
		early := sim.NewProcess(k, "early", nil)
		Expect(late.ActivateAt(9, false)).To(Succeed())
		Expect(early.ActivateAt(2, false)).To(Succeed())

		var rsp []processRsp
		rec := get("/api/queue")
		Expect(json.Unmarshal(rec.Body.Bytes(), &rsp)).To(Succeed())

		Expect(rsp).To(HaveLen(2))
		Expect(rsp[0].Name).To(Equal("early"))
		Expect(rsp[0].WakeupTime).To(Equal(2.0))
		Expect(rsp[0].State).To(Equal("Scheduled"))
		Expect(rsp[1].Name).To(Equal("late"))
	})

	It("should show the details of a process", func() {
		p := sim.NewProcess(k, "arrivals", nil)

		rec := get("/api/process/" + p.ID())

		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(rec.Body.String()).To(ContainSubstring("arrivals"))
	})

	It("should answer 404 for an unknown process", func() {
		rec := get("/api/process/unknown")

		Expect(rec.Code).To(Equal(http.StatusNotFound))
	})

	It("should track progress bars", func() {
		bar := m.CreateProgressBar("jobs", 10)
		bar.IncrementInProgress(3)
		bar.MoveInProgressToFinished(2)

		var rsp []map[string]any
		rec := get("/api/progress")
		Expect(json.Unmarshal(rec.Body.Bytes(), &rsp)).To(Succeed())
		Expect(rsp).To(HaveLen(1))
		Expect(rsp[0]).To(HaveKeyWithValue("name", "jobs"))
		Expect(rsp[0]).To(HaveKeyWithValue("finished", 2.0))
		Expect(rsp[0]).To(HaveKeyWithValue("in_progress", 1.0))
		Expect(bar.Fraction()).To(BeNumerically("~", 0.2))

		m.CompleteProgressBar(bar)

		rec = get("/api/progress")
		Expect(rec.Body.String()).To(MatchJSON(`[]`))
	})

	It("should pause and continue the kernel", func() {
		Expect(get("/api/pause").Code).To(Equal(http.StatusOK))
		Expect(get("/api/pause").Code).To(Equal(http.StatusOK))
		Expect(get("/api/continue").Code).To(Equal(http.StatusOK))

		root := sim.NewProcess(k, "root", func(p *sim.Process) error {
			return p.Hold(1)
		})
		k.Start()
		Expect(k.Await(root)).To(Succeed())
	})

	It("should serve the index page", func() {
		rec := get("/")

		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(rec.Body.String()).To(ContainSubstring("procsim monitor"))
	})
})
