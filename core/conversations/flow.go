package conversations

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/mudler/remindbot/core/scheduler"
	"github.com/mudler/xlog"
)

// Step is the position of an owner in the reminder creation dialog.
type Step int

const (
	StepIdle Step = iota
	StepAwaitingTime
	StepAwaitingTask
	StepAwaitingRepeat
)

func (s Step) String() string {
	switch s {
	case StepAwaitingTime:
		return "awaiting_time"
	case StepAwaitingTask:
		return "awaiting_task"
	case StepAwaitingRepeat:
		return "awaiting_repeat"
	default:
		return "idle"
	}
}

// Creator is the part of the scheduler the dialog completes into.
type Creator interface {
	Create(ownerID int64, text string, tod scheduler.TimeOfDay, policy scheduler.Policy) (*scheduler.Reminder, error)
}

// Draft holds the fields collected so far. It is never persisted.
type Draft struct {
	Step      Step
	TimeOfDay scheduler.TimeOfDay
	Text      string
}

// Flow drives the per-owner dialog Idle -> AwaitingTime -> AwaitingTask ->
// AwaitingRepeat -> Idle. Inputs are serialized per owner only.
type Flow struct {
	creator Creator
	drafts  *ConversationTracker[int64, Draft]

	locksMu sync.Mutex
	locks   map[int64]*sync.Mutex
}

type FlowOption func(*flowOptions)

type flowOptions struct {
	draftTTL time.Duration
	now      func() time.Time
}

// WithDraftTTL discards drafts left untouched for longer than d.
func WithDraftTTL(d time.Duration) FlowOption {
	return func(o *flowOptions) {
		o.draftTTL = d
	}
}

func WithFlowClock(now func() time.Time) FlowOption {
	return func(o *flowOptions) {
		o.now = now
	}
}

func NewFlow(creator Creator, opts ...FlowOption) *Flow {
	o := &flowOptions{now: time.Now}
	for _, opt := range opts {
		opt(o)
	}
	return &Flow{
		creator: creator,
		drafts:  NewConversationTracker[int64, Draft](o.draftTTL, o.now),
		locks:   make(map[int64]*sync.Mutex),
	}
}

// Step returns the current step of an owner. Owners without a live draft
// are Idle.
func (f *Flow) Step(ownerID int64) Step {
	d, ok := f.drafts.Get(ownerID)
	if !ok {
		return StepIdle
	}
	return d.Step
}

// Reset discards the draft of an owner.
func (f *Flow) Reset(ownerID int64) {
	unlock := f.lockOwner(ownerID)
	defer unlock()

	if _, ok := f.drafts.Get(ownerID); ok {
		xlog.Debug("Discarding reminder draft", "owner", ownerID)
	}
	f.drafts.Delete(ownerID)
}

// Start begins a new draft, replacing any draft in progress.
func (f *Flow) Start(ownerID int64) Response {
	unlock := f.lockOwner(ownerID)
	defer unlock()

	f.drafts.Set(ownerID, Draft{Step: StepAwaitingTime})
	return Response{Text: promptTime, Buttons: backKeyboard()}
}

// Input feeds one piece of owner input to the dialog. It reports false when
// the owner has no draft in progress and the input was not consumed.
func (f *Flow) Input(ownerID int64, input string) (Response, bool) {
	unlock := f.lockOwner(ownerID)
	defer unlock()

	d, ok := f.drafts.Get(ownerID)
	if !ok || d.Step == StepIdle {
		return Response{}, false
	}

	if isAbort(input) {
		f.drafts.Delete(ownerID)
		return Response{}, false
	}

	switch d.Step {
	case StepAwaitingTime:
		tod, err := scheduler.ParseTimeOfDay(input)
		if err != nil {
			f.drafts.Set(ownerID, d)
			return Response{Text: errTimeFormat, Buttons: backKeyboard()}, true
		}
		d.TimeOfDay = tod
		d.Step = StepAwaitingTask
		f.drafts.Set(ownerID, d)
		return Response{Text: promptTask, Buttons: backKeyboard()}, true

	case StepAwaitingTask:
		text := strings.TrimSpace(input)
		if text == "" {
			f.drafts.Set(ownerID, d)
			return Response{Text: errEmptyTask, Buttons: backKeyboard()}, true
		}
		d.Text = text
		d.Step = StepAwaitingRepeat
		f.drafts.Set(ownerID, d)
		return Response{Text: promptRepeat, Buttons: policyKeyboard()}, true

	case StepAwaitingRepeat:
		policy, err := scheduler.ParsePolicy(input)
		if err != nil {
			f.drafts.Set(ownerID, d)
			return Response{Text: errPolicy, Buttons: policyKeyboard()}, true
		}
		return f.complete(ownerID, d, policy), true
	}

	return Response{}, false
}

// complete must be called with the owner lock held.
func (f *Flow) complete(ownerID int64, d Draft, policy scheduler.Policy) Response {
	r, err := f.creator.Create(ownerID, d.Text, d.TimeOfDay, policy)
	switch {
	case err == nil:
	case errors.Is(err, scheduler.ErrPersistence) && r != nil:
		f.drafts.Delete(ownerID)
		return Response{
			Text:    created(r) + "\n" + warnNotPersisted,
			Buttons: mainMenuKeyboard(),
		}
	case errors.Is(err, scheduler.ErrValidation):
		// the draft was validated step by step, so only the policy can be off
		f.drafts.Set(ownerID, d)
		return Response{Text: errPolicy, Buttons: policyKeyboard()}
	default:
		xlog.Error("Failed to create reminder", "owner", ownerID, "error", err)
		f.drafts.Delete(ownerID)
		return Response{Text: errCreate, Buttons: mainMenuKeyboard()}
	}

	f.drafts.Delete(ownerID)
	return Response{Text: created(r), Buttons: mainMenuKeyboard()}
}

func created(r *scheduler.Reminder) string {
	return fmt.Sprintf("✅ Reminder set: %s\nNext: %s", r.Label(), r.NextFireAt.Format("Mon 02 Jan 15:04"))
}

func isAbort(input string) bool {
	switch strings.ToLower(strings.TrimSpace(input)) {
	case "cancel", "/cancel", "back", "/back", ActionMainMenu:
		return true
	}
	return false
}

func (f *Flow) lockOwner(ownerID int64) func() {
	f.locksMu.Lock()
	l, ok := f.locks[ownerID]
	if !ok {
		l = &sync.Mutex{}
		f.locks[ownerID] = l
	}
	f.locksMu.Unlock()

	l.Lock()
	return l.Unlock
}
