package scheduler

import (
	"sync"
	"time"

	"github.com/mudler/xlog"
)

// Handle identifies one Arm call. The zero Handle is never issued.
type Handle uint64

// TimerEngine keeps one in-process timer per Arm call. It is safe for
// concurrent use.
//
// A callback runs at most once per Arm, no earlier than the requested instant.
// Cancel before the timer fires guarantees the callback never runs; a callback
// that has already started is allowed to finish.
type TimerEngine struct {
	mu      sync.Mutex
	next    Handle
	timers  map[Handle]*time.Timer
	now     func() time.Time
	stopped bool
	wg      sync.WaitGroup
}

func NewTimerEngine(now func() time.Time) *TimerEngine {
	if now == nil {
		now = time.Now
	}
	return &TimerEngine{
		timers: make(map[Handle]*time.Timer),
		now:    now,
	}
}

// Arm schedules fn to run at the given instant. Instants in the past fire
// immediately. Arm on a stopped engine returns the zero Handle.
func (e *TimerEngine) Arm(id string, at time.Time, fn func(Handle)) Handle {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.stopped {
		xlog.Warn("Timer engine stopped, not arming", "reminder_id", id)
		return 0
	}

	e.next++
	h := e.next
	delay := max(at.Sub(e.now()), 0)

	e.timers[h] = time.AfterFunc(delay, func() {
		e.mu.Lock()
		_, live := e.timers[h]
		delete(e.timers, h)
		if live {
			e.wg.Add(1)
		}
		e.mu.Unlock()

		if !live {
			return
		}
		defer e.wg.Done()

		xlog.Debug("Timer fired", "reminder_id", id, "handle", h)
		fn(h)
	})

	xlog.Debug("Timer armed", "reminder_id", id, "handle", h, "at", at, "delay", delay)
	return h
}

// Cancel disarms a handle. It reports whether the timer was still pending.
func (e *TimerEngine) Cancel(h Handle) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	t, ok := e.timers[h]
	if !ok {
		return false
	}
	t.Stop()
	delete(e.timers, h)
	return true
}

// Len returns the number of armed timers.
func (e *TimerEngine) Len() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.timers)
}

// Stop disarms every timer and waits for running callbacks to return.
func (e *TimerEngine) Stop() {
	e.mu.Lock()
	e.stopped = true
	for h, t := range e.timers {
		t.Stop()
		delete(e.timers, h)
	}
	e.mu.Unlock()

	e.wg.Wait()
}
