package scheduler

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/mudler/xlog"
)

const defaultDeliveryTimeout = 10 * time.Second

// Scheduler creates, fires, re-arms and cancels reminders. Store operations
// are serialized per owner, so a cancel racing a fire of the same reminder
// resolves to exactly one of them.
type Scheduler struct {
	store           ReminderStore
	sink            NotificationSink
	timers          *TimerEngine
	loc             *time.Location
	now             func() time.Time
	deliveryTimeout time.Duration

	locksMu sync.Mutex
	locks   map[int64]*sync.Mutex

	// armed handle per reminder id
	mu      sync.Mutex
	handles map[string]Handle
}

type Option func(*Scheduler)

// WithLocation sets the zone reminder times of day are interpreted in.
func WithLocation(loc *time.Location) Option {
	return func(s *Scheduler) {
		s.loc = loc
	}
}

// WithClock overrides time.Now, for the scheduler and its timers.
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) {
		s.now = now
	}
}

// WithDeliveryTimeout bounds each NotificationSink call.
func WithDeliveryTimeout(d time.Duration) Option {
	return func(s *Scheduler) {
		s.deliveryTimeout = d
	}
}

// NewScheduler creates a new scheduler with the given store and sink
func NewScheduler(store ReminderStore, sink NotificationSink, opts ...Option) *Scheduler {
	s := &Scheduler{
		store:           store,
		sink:            sink,
		loc:             time.Local,
		now:             time.Now,
		deliveryTimeout: defaultDeliveryTimeout,
		locks:           make(map[int64]*sync.Mutex),
		handles:         make(map[string]Handle),
	}
	for _, o := range opts {
		o(s)
	}
	s.timers = NewTimerEngine(s.now)
	return s
}

// Location returns the configured zone.
func (s *Scheduler) Location() *time.Location {
	return s.loc
}

// Create registers a pending reminder and arms its timer. When the store
// cannot be written the reminder is still armed and returned together with
// an error wrapping ErrPersistence: it will not survive a restart.
func (s *Scheduler) Create(ownerID int64, text string, tod TimeOfDay, policy Policy) (*Reminder, error) {
	r, err := NewReminder(ownerID, text, tod, policy)
	if err != nil {
		return nil, err
	}

	unlock := s.lockOwner(ownerID)
	defer unlock()

	r.NextFireAt, err = NextFireTime(tod, policy, s.now(), s.loc)
	if err != nil {
		return nil, err
	}

	storeErr := s.store.Upsert(r)
	if storeErr != nil && !errors.Is(storeErr, ErrPersistence) {
		return nil, storeErr
	}
	if storeErr != nil {
		xlog.Error("Reminder created but not persisted", "owner", ownerID, "reminder_id", r.ID, "error", storeErr)
	}

	s.arm(r)
	remindersCreatedTotal.WithLabelValues(string(r.Policy)).Inc()
	xlog.Info("Reminder created", "owner", ownerID, "reminder_id", r.ID, "policy", r.Policy, "next_fire_at", r.NextFireAt)

	return r.Clone(), storeErr
}

// Cancel disarms and removes a pending reminder. Once it returns, List no
// longer shows the reminder and its callback will not deliver.
func (s *Scheduler) Cancel(ownerID int64, id string) error {
	unlock := s.lockOwner(ownerID)
	defer unlock()

	r, err := s.store.Get(ownerID, id)
	if err != nil {
		return err
	}
	if r.State != StatePending {
		return fmt.Errorf("%w: %s is %s", ErrNotFound, id, r.State)
	}

	s.disarm(id)
	if err := s.store.Remove(ownerID, id); err != nil {
		xlog.Error("Failed to remove cancelled reminder", "owner", ownerID, "reminder_id", id, "error", err)
		return err
	}

	remindersCancelledTotal.Inc()
	xlog.Info("Reminder cancelled", "owner", ownerID, "reminder_id", id)
	return nil
}

// List returns the pending reminders of an owner ordered by next fire time.
func (s *Scheduler) List(ownerID int64) ([]*Reminder, error) {
	unlock := s.lockOwner(ownerID)
	defer unlock()

	all, err := s.store.All(ownerID)
	if err != nil {
		return nil, err
	}
	pending := slices.DeleteFunc(all, func(r *Reminder) bool { return r.State != StatePending })
	slices.SortStableFunc(pending, func(a, b *Reminder) int { return a.NextFireAt.Compare(b.NextFireAt) })
	return pending, nil
}

// Restore loads the store and arms every pending reminder. Reminders whose
// fire time passed while the process was down are moved to their next
// occurrence, or dropped when they fire only once.
func (s *Scheduler) Restore() error {
	reminders, err := s.store.Load()
	if err != nil {
		return fmt.Errorf("failed to load reminders: %w", err)
	}

	now := s.now()
	kept := make([]*Reminder, 0, len(reminders))
	changed := false

	for _, r := range reminders {
		if r.NextFireAt.After(now) {
			remindersRestoredTotal.WithLabelValues("armed").Inc()
			kept = append(kept, r)
			continue
		}
		changed = true
		if !r.Policy.Recurring() {
			remindersRestoredTotal.WithLabelValues("dropped").Inc()
			xlog.Info("Dropping expired one-time reminder", "owner", r.OwnerID, "reminder_id", r.ID, "next_fire_at", r.NextFireAt)
			continue
		}
		next, err := NextFireTime(r.TimeOfDay, r.Policy, now, s.loc)
		if err != nil {
			xlog.Error("Failed to reschedule reminder", "owner", r.OwnerID, "reminder_id", r.ID, "error", err)
			continue
		}
		xlog.Info("Rescheduling missed reminder", "owner", r.OwnerID, "reminder_id", r.ID, "missed", r.NextFireAt, "next_fire_at", next)
		r.NextFireAt = next
		remindersRestoredTotal.WithLabelValues("rescheduled").Inc()
		kept = append(kept, r)
	}

	var storeErr error
	if changed {
		if storeErr = s.store.Save(kept); storeErr != nil {
			xlog.Error("Failed to persist restored reminders", "error", storeErr)
		}
	}

	for _, r := range kept {
		unlock := s.lockOwner(r.OwnerID)
		s.arm(r)
		unlock()
	}

	xlog.Info("Reminders restored", "armed", len(kept), "dropped", len(reminders)-len(kept))
	return storeErr
}

// Armed returns the number of armed timers.
func (s *Scheduler) Armed() int {
	return s.timers.Len()
}

// Stop disarms all timers, waits for in-flight fires and closes the store.
func (s *Scheduler) Stop() {
	s.timers.Stop()
	if err := s.store.Close(); err != nil {
		xlog.Error("Failed to close reminder store", "error", err)
	}
	xlog.Info("Reminder scheduler stopped")
}

// onFire runs on the timer goroutine. A reminder that was cancelled or
// re-armed in the meantime is ignored.
func (s *Scheduler) onFire(ownerID int64, id string, h Handle) {
	unlock := s.lockOwner(ownerID)
	defer unlock()

	s.mu.Lock()
	current, armed := s.handles[id]
	if armed && current == h {
		delete(s.handles, id)
	}
	s.mu.Unlock()
	if !armed || current != h {
		xlog.Debug("Ignoring stale fire", "owner", ownerID, "reminder_id", id)
		return
	}

	r, err := s.store.Get(ownerID, id)
	if err != nil || r.State != StatePending {
		xlog.Debug("Fired reminder no longer pending", "owner", ownerID, "reminder_id", id)
		return
	}

	r.State = StateFiring
	firedAt := r.NextFireAt
	remindersFiredTotal.WithLabelValues(string(r.Policy)).Inc()

	if err := s.deliver(r); err != nil {
		deliveryFailuresTotal.Inc()
		xlog.Error("Failed to deliver reminder", "owner", ownerID, "reminder_id", id, "error", err)
	}

	if !r.Policy.Recurring() {
		r.State = StateCompleted
		if err := s.store.Remove(ownerID, id); err != nil {
			xlog.Error("Failed to remove completed reminder", "owner", ownerID, "reminder_id", id, "error", err)
		}
		xlog.Info("Reminder completed", "owner", ownerID, "reminder_id", id)
		return
	}

	// a late fire must not schedule the next occurrence in the past
	ref := firedAt
	if now := s.now(); now.After(ref) {
		ref = now
	}
	next, err := NextFireTime(r.TimeOfDay, r.Policy, ref, s.loc)
	if err != nil {
		// an unarmed reminder must not stay in the store
		xlog.Error("Failed to compute next occurrence, dropping reminder", "owner", ownerID, "reminder_id", id, "error", err)
		if err := s.store.Remove(ownerID, id); err != nil {
			xlog.Error("Failed to remove unschedulable reminder", "owner", ownerID, "reminder_id", id, "error", err)
		}
		return
	}

	r.NextFireAt = next
	r.State = StatePending
	if err := s.store.Upsert(r); err != nil {
		xlog.Error("Failed to persist re-armed reminder", "owner", ownerID, "reminder_id", id, "error", err)
	}
	s.arm(r)
	xlog.Debug("Reminder re-armed", "owner", ownerID, "reminder_id", id, "next_fire_at", next)
}

// deliver calls the sink with a bounded timeout. A sink that ignores its
// context is abandoned once the timeout expires.
func (s *Scheduler) deliver(r *Reminder) error {
	if s.sink == nil {
		return fmt.Errorf("%w: no notification sink", ErrDelivery)
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.deliveryTimeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- s.sink.Notify(ctx, r.OwnerID, r.Text)
	}()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("%w: %w", ErrDelivery, err)
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("%w: %w", ErrDelivery, ctx.Err())
	}
}

// arm must be called with the owner lock held.
func (s *Scheduler) arm(r *Reminder) {
	s.disarm(r.ID)

	ownerID, id := r.OwnerID, r.ID
	h := s.timers.Arm(id, r.NextFireAt, func(h Handle) {
		s.onFire(ownerID, id, h)
	})
	if h == 0 {
		return
	}

	s.mu.Lock()
	s.handles[id] = h
	s.mu.Unlock()
}

func (s *Scheduler) disarm(id string) {
	s.mu.Lock()
	h, ok := s.handles[id]
	delete(s.handles, id)
	s.mu.Unlock()

	if ok {
		s.timers.Cancel(h)
	}
}

func (s *Scheduler) lockOwner(ownerID int64) func() {
	s.locksMu.Lock()
	l, ok := s.locks[ownerID]
	if !ok {
		l = &sync.Mutex{}
		s.locks[ownerID] = l
	}
	s.locksMu.Unlock()

	l.Lock()
	return l.Unlock
}
