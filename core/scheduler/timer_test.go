package scheduler_test

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/mudler/remindbot/core/scheduler"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("TimerEngine", func() {
	var engine *scheduler.TimerEngine

	BeforeEach(func() {
		engine = scheduler.NewTimerEngine(nil)
	})

	AfterEach(func() {
		engine.Stop()
	})

	It("fires once, no earlier than the requested instant", func() {
		at := time.Now().Add(50 * time.Millisecond)
		fired := make(chan time.Time, 2)
		h := engine.Arm("r1", at, func(scheduler.Handle) { fired <- time.Now() })
		Expect(h).NotTo(BeZero())
		Expect(engine.Len()).To(Equal(1))

		var got time.Time
		Eventually(fired).Should(Receive(&got))
		Expect(got).To(BeTemporally(">=", at))
		Consistently(fired, 100*time.Millisecond).ShouldNot(Receive())
		Expect(engine.Len()).To(Equal(0))
	})

	It("passes the handle to the callback", func() {
		handles := make(chan scheduler.Handle, 1)
		h := engine.Arm("r1", time.Now(), func(h scheduler.Handle) { handles <- h })
		Eventually(handles).Should(Receive(Equal(h)))
	})

	It("fires immediately for instants in the past", func() {
		var fired atomic.Bool
		engine.Arm("r1", time.Now().Add(-time.Hour), func(scheduler.Handle) { fired.Store(true) })
		Eventually(fired.Load).Should(BeTrue())
	})

	It("never runs a callback cancelled before its instant", func() {
		var fired atomic.Bool
		h := engine.Arm("r1", time.Now().Add(50*time.Millisecond), func(scheduler.Handle) { fired.Store(true) })
		Expect(engine.Cancel(h)).To(BeTrue())
		Expect(engine.Cancel(h)).To(BeFalse())
		Consistently(fired.Load, 150*time.Millisecond).Should(BeFalse())
	})

	It("issues distinct handles for the same id", func() {
		a := engine.Arm("r1", time.Now().Add(time.Hour), func(scheduler.Handle) {})
		b := engine.Arm("r1", time.Now().Add(time.Hour), func(scheduler.Handle) {})
		Expect(a).NotTo(Equal(b))
		Expect(engine.Len()).To(Equal(2))
	})

	It("computes delays from the injected clock", func() {
		base := time.Date(2024, 1, 1, 8, 59, 59, 0, time.UTC)
		clock := newFakeClock(base)
		e := scheduler.NewTimerEngine(clock.Now)
		defer e.Stop()

		var fired atomic.Bool
		e.Arm("r1", base.Add(20*time.Millisecond), func(scheduler.Handle) { fired.Store(true) })
		Eventually(fired.Load).Should(BeTrue())
	})

	It("supports concurrent arm and cancel", func() {
		var wg sync.WaitGroup
		var fired atomic.Int32
		for range 50 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				h := engine.Arm("r", time.Now().Add(time.Hour), func(scheduler.Handle) { fired.Add(1) })
				engine.Cancel(h)
			}()
		}
		wg.Wait()
		Expect(engine.Len()).To(Equal(0))
		Expect(fired.Load()).To(BeZero())
	})

	It("stops every timer and refuses new ones", func() {
		var fired atomic.Bool
		engine.Arm("r1", time.Now().Add(30*time.Millisecond), func(scheduler.Handle) { fired.Store(true) })
		engine.Stop()
		Expect(engine.Len()).To(Equal(0))
		Expect(engine.Arm("r2", time.Now(), func(scheduler.Handle) { fired.Store(true) })).To(BeZero())
		Consistently(fired.Load, 100*time.Millisecond).Should(BeFalse())
	})

	It("waits for a running callback on stop", func() {
		started := make(chan struct{})
		var finished atomic.Bool
		engine.Arm("r1", time.Now(), func(scheduler.Handle) {
			close(started)
			time.Sleep(50 * time.Millisecond)
			finished.Store(true)
		})
		Eventually(started).Should(BeClosed())
		engine.Stop()
		Expect(finished.Load()).To(BeTrue())
	})
})
