package sim

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Semaphore", func() {
	var (
		k *Kernel
		s *Semaphore
	)

	BeforeEach(func() {
		k = NewKernel()
		s = NewSemaphore(k, 2)
	})

	AfterEach(func() {
		k.Shutdown()
	})

	It("should hand out free resources without blocking", func() {
		e := NewEntity(k, "e", nil)

		Expect(s.Get(e)).To(Equal(OutcomeDone))
		Expect(s.TryGet(e)).To(Equal(OutcomeDone))
		Expect(s.Available()).To(Equal(int64(0)))

		Expect(s.TryGet(e)).To(Equal(OutcomeWouldBlock))

		Expect(s.Release()).To(Equal(OutcomeDone))
		Expect(s.Available()).To(Equal(int64(1)))
		Expect(s.Capacity()).To(Equal(int64(2)))
	})

	It("should name its outcomes", func() {
		Expect(OutcomeDone.String()).To(Equal("Done"))
		Expect(OutcomeNotDone.String()).To(Equal("NotDone"))
		Expect(OutcomeWouldBlock.String()).To(Equal("WouldBlock"))
		Expect(Outcome(7).String()).To(Equal("Outcome(7)"))
	})

	It("should give released resources to the oldest waiter", func() {
		var (
			t         trace
			available []int64
		)

		user := func(e *Entity) error {
			outcome, err := e.WaitForSemaphore(s)
			if err != nil {
				return err
			}

			if outcome != OutcomeDone {
				return nil
			}

			t.add(e.Process, e.Name())
			available = append(available, s.Available())

			if err := e.Hold(10); err != nil {
				return err
			}

			s.Release()

			return nil
		}

		e1 := NewEntity(k, "e1", user)
		e2 := NewEntity(k, "e2", user)
		e3 := NewEntity(k, "e3", user)
		e4 := NewEntity(k, "e4", user)

		root := NewEntity(k, "root", func(e *Entity) error {
			for _, u := range []*Entity{e1, e2, e3, e4} {
				if err := u.ActivateDelay(0, false); err != nil {
					return err
				}
			}

			return nil
		})

		k.Start()
		Expect(k.Await(root.Process)).To(Succeed())

		Expect(t).To(Equal(trace{"e1@0", "e2@0", "e3@10", "e4@10"}))
		Expect(available).To(Equal([]int64{1, 0, 0, 0}))
		Expect(s.Available()).To(Equal(int64(2)))
		Expect(s.NumberWaiting()).To(Equal(int64(0)))
	})

	It("should count blocked entities", func() {
		var waiting int64

		holder := NewEntity(k, "holder", func(e *Entity) error {
			if _, err := s.Get(e); err != nil {
				return err
			}

			_, err := s.Get(e)

			return err
		})
		blocked := NewEntity(k, "blocked", func(e *Entity) error {
			_, err := s.Get(e)
			return err
		})
		root := NewEntity(k, "root", func(e *Entity) error {
			_ = holder.Activate()
			_ = blocked.ActivateDelay(0, false)

			if err := e.Hold(1); err != nil {
				return err
			}

			waiting = s.NumberWaiting()
			s.Release()

			return nil
		})

		k.Start()
		Expect(k.Await(root.Process)).To(Succeed())

		Expect(waiting).To(Equal(int64(1)))
		Expect(blocked.Terminated()).To(BeTrue())
		Expect(s.Available()).To(Equal(int64(0)))
	})
})
