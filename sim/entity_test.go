package sim

import (
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Entity", func() {
	var (
		k *Kernel
		t trace
	)

	BeforeEach(func() {
		k = NewKernel()
		t = nil
	})

	AfterEach(func() {
		k.Shutdown()
	})

	run := func(root *Entity) {
		k.Start()
		Expect(k.Await(root.Process)).To(Succeed())
	}

	It("should be an entity", func() {
		e := NewEntity(k, "e", nil)

		Expect(e.IsEntity()).To(BeTrue())
		Expect(k.ProcessByID(e.ID())).To(BeIdenticalTo(e.Process))
	})

	It("should refuse to interrupt an entity that is not waiting", func() {
		e := NewEntity(k, "e", nil)
		other := NewEntity(k, "other", nil)

		Expect(other.Interrupt(e, false)).To(MatchError(ErrInvalidOperation))
	})

	Context("when waiting for another entity", func() {
		It("should return when the controller terminates", func() {
			var waitErr error

			controller := NewEntity(k, "controller", func(e *Entity) error {
				return e.Hold(7)
			})
			waiter := NewEntity(k, "waiter", func(e *Entity) error {
				if err := controller.Activate(); err != nil {
					return err
				}

				waitErr = e.WaitFor(controller, false)
				t.add(e.Process, "done")

				return nil
			})

			run(waiter)

			Expect(waitErr).NotTo(HaveOccurred())
			Expect(t).To(Equal(trace{"done@7"}))
			Expect(waiter.Waiting()).To(BeFalse())
		})

		It("should move the controller to the current time", func() {
			var waitErr error

			controller := NewEntity(k, "controller", func(e *Entity) error {
				t.add(e.Process, "controller")
				return nil
			})
			waiter := NewEntity(k, "waiter", func(e *Entity) error {
				if err := controller.ActivateAt(100, false); err != nil {
					return err
				}

				if err := e.Hold(1); err != nil {
					return err
				}

				waitErr = e.WaitFor(controller, true)
				t.add(e.Process, "done")

				return nil
			})

			run(waiter)

			Expect(waitErr).NotTo(HaveOccurred())
			Expect(t).To(Equal(trace{"controller@1", "done@1"}))
		})

		It("should return at once if the controller is gone", func() {
			controller := NewEntity(k, "controller", nil)
			controller.Terminate()

			waiter := NewEntity(k, "waiter", func(e *Entity) error {
				return e.WaitFor(controller, false)
			})

			run(waiter)

			Expect(waiter.Terminated()).To(BeTrue())
		})

		It("should not wait for itself", func() {
			var waitErr error

			waiter := NewEntity(k, "waiter", func(e *Entity) error {
				waitErr = e.WaitFor(e, false)
				return nil
			})

			run(waiter)

			Expect(waitErr).To(MatchError(ErrInvalidOperation))
		})

		It("should be interrupted", func() {
			var waitErr error

			controller := NewEntity(k, "controller", func(e *Entity) error {
				return e.Hold(50)
			})

			var waiter *Entity
			interrupter := NewEntity(k, "interrupter", func(e *Entity) error {
				if err := e.Hold(3); err != nil {
					return err
				}

				return e.Interrupt(waiter, false)
			})
			waiter = NewEntity(k, "waiter", func(e *Entity) error {
				if err := controller.Activate(); err != nil {
					return err
				}

				if err := interrupter.Activate(); err != nil {
					return err
				}

				waitErr = e.WaitFor(controller, false)
				t.add(e.Process, "woken")

				return nil
			})

			run(waiter)

			Expect(waitErr).To(MatchError(ErrInterrupted))
			Expect(t).To(Equal(trace{"woken@3"}))
			Expect(waiter.Interrupted()).To(BeFalse())
		})
	})

	Context("when waiting for a time", func() {
		var (
			waitErr error
			target  *Entity
		)

		BeforeEach(func() {
			waitErr = nil
			target = NewEntity(k, "target", func(e *Entity) error {
				waitErr = e.TimedWait(20)
				t.add(e.Process, "target")

				return nil
			})
		})

		It("should time out", func() {
			run(target)

			Expect(waitErr).NotTo(HaveOccurred())
			Expect(t).To(Equal(trace{"target@20"}))
		})

		It("should be interrupted", func() {
			root := NewEntity(k, "root", func(e *Entity) error {
				if err := target.Activate(); err != nil {
					return err
				}

				if err := e.Hold(5); err != nil {
					return err
				}

				if err := e.Interrupt(target, false); err != nil {
					return err
				}

				t.add(e.Process, "interrupter")

				return nil
			})

			run(root)

			Expect(waitErr).To(MatchError(ErrInterrupted))
			Expect(t).To(Equal(trace{"interrupter@5", "target@5"}))
			Expect(target.Interrupted()).To(BeFalse())
			Expect(target.Waiting()).To(BeFalse())
		})

		It("should let the target run first on an immediate interrupt", func() {
			root := NewEntity(k, "root", func(e *Entity) error {
				if err := target.Activate(); err != nil {
					return err
				}

				if err := e.Hold(5); err != nil {
					return err
				}

				if err := e.Interrupt(target, true); err != nil {
					return err
				}

				t.add(e.Process, "interrupter")

				return nil
			})

			run(root)

			Expect(waitErr).To(MatchError(ErrInterrupted))
			Expect(t).To(Equal(trace{"target@5", "interrupter@5"}))
		})
	})

	Context("when waiting for a trigger", func() {
		var q *TriggerQueue

		BeforeEach(func() {
			q = NewTriggerQueue(k)
		})

		makeWaiter := func(name string, errs map[string]error) *Entity {
			return NewEntity(k, name, func(e *Entity) error {
				errs[name] = e.WaitForTrigger(q)
				t.add(e.Process, name)

				return nil
			})
		}

		It("should wake up waiters in arrival order", func() {
			errs := make(map[string]error)
			waiters := []*Entity{
				makeWaiter("w1", errs),
				makeWaiter("w2", errs),
				makeWaiter("w3", errs),
			}

			root := NewEntity(k, "root", func(e *Entity) error {
				for _, w := range waiters {
					if err := w.ActivateDelay(0, false); err != nil {
						return err
					}
				}

				if err := e.Hold(1); err != nil {
					return err
				}

				for q.Len() > 0 {
					if err := q.TriggerFirst(true); err != nil {
						return err
					}

					if err := e.Hold(1); err != nil {
						return err
					}
				}

				return nil
			})

			run(root)

			Expect(t).To(Equal(trace{"w1@1", "w2@2", "w3@3"}))
			for _, err := range errs {
				Expect(err).NotTo(HaveOccurred())
			}
		})

		It("should trigger all waiters", func() {
			errs := make(map[string]error)
			w1 := makeWaiter("w1", errs)
			w2 := makeWaiter("w2", errs)

			root := NewEntity(k, "root", func(e *Entity) error {
				_ = w1.Activate()
				_ = w2.ActivateDelay(0, false)

				if err := e.Hold(2); err != nil {
					return err
				}

				return q.TriggerAll()
			})

			run(root)

			Expect(t).To(Equal(trace{"w1@2", "w2@2"}))
			Expect(errs).To(HaveKeyWithValue("w1", BeNil()))
			Expect(errs).To(HaveKeyWithValue("w2", BeNil()))
			Expect(q.Len()).To(Equal(0))
		})

		It("should report an interrupted wait", func() {
			errs := make(map[string]error)
			w := makeWaiter("w", errs)

			root := NewEntity(k, "root", func(e *Entity) error {
				if err := w.Activate(); err != nil {
					return err
				}

				if err := e.Hold(2); err != nil {
					return err
				}

				return e.Interrupt(w, false)
			})

			run(root)

			Expect(errs["w"]).To(MatchError(ErrInterrupted))
			Expect(q.Len()).To(Equal(0))
		})

		It("should forget the interrupt once it is reported", func() {
			var (
				triggerErr, waitErr error
				flagAfter           bool
			)

			w := NewEntity(k, "w", func(e *Entity) error {
				triggerErr = e.WaitForTrigger(q)
				flagAfter = e.Interrupted()
				waitErr = e.TimedWait(5)
				t.add(e.Process, "timeout")

				return nil
			})

			root := NewEntity(k, "root", func(e *Entity) error {
				if err := w.Activate(); err != nil {
					return err
				}

				if err := e.Hold(1); err != nil {
					return err
				}

				return e.Interrupt(w, false)
			})

			run(root)

			Expect(triggerErr).To(MatchError(ErrInterrupted))
			Expect(flagAfter).To(BeFalse())
			Expect(waitErr).NotTo(HaveOccurred())
			Expect(t).To(Equal(trace{"timeout@6"}))
		})

		It("should refuse to trigger an empty queue", func() {
			Expect(q.TriggerFirst(true)).To(MatchError(ErrEmpty))
			Expect(q.TriggerAll()).To(MatchError(ErrEmpty))
		})

		It("should refuse to insert a waiting entity twice", func() {
			e := NewEntity(k, "e", nil)

			Expect(q.Insert(e)).To(Succeed())
			Expect(q.Insert(e)).To(MatchError(ErrInvalidOperation))
			Expect(NewTriggerQueue(k).Insert(e)).To(MatchError(ErrInvalidOperation))

			Expect(q.Remove(e)).To(BeTrue())
			Expect(q.Remove(e)).To(BeFalse())
		})

		It("should drop a terminated entity from the queue", func() {
			e := NewEntity(k, "e", nil)
			Expect(q.Insert(e)).To(Succeed())

			e.Terminate()

			Expect(q.Len()).To(Equal(0))
		})

		It("should release waiters on close", func() {
			errs := make(map[string]error)
			w := makeWaiter("w", errs)

			root := NewEntity(k, "root", func(e *Entity) error {
				if err := w.Activate(); err != nil {
					return err
				}

				if err := e.Hold(1); err != nil {
					return err
				}

				q.Close()

				return nil
			})

			run(root)

			Expect(errs).To(HaveKeyWithValue("w", BeNil()))
			Expect(w.Terminated()).To(BeTrue())
		})
	})

	It("should stop waiting on restart", func() {
		var waitErr error

		waiter := NewEntity(k, "waiter", func(e *Entity) error {
			waitErr = e.TimedWait(100)
			if errors.Is(waitErr, ErrRestart) {
				return e.Cancel()
			}

			return nil
		})
		root := NewEntity(k, "root", func(e *Entity) error {
			if err := waiter.Activate(); err != nil {
				return err
			}

			if err := e.Hold(1); err != nil {
				return err
			}

			if err := k.Reset(); err != nil {
				return err
			}

			return e.ResumeMain()
		})

		run(root)

		Expect(waitErr).To(MatchError(ErrRestart))
		Expect(waiter.Waiting()).To(BeFalse())
		Expect(waiter.Idle()).To(BeTrue())
	})
})
