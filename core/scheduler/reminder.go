package scheduler

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrValidation is returned for malformed input: bad time of day, empty
	// text or an unknown policy.
	ErrValidation = errors.New("invalid reminder")
	// ErrNotFound is returned when no pending reminder matches an owner/id pair.
	ErrNotFound = errors.New("reminder not found")
	// ErrDelivery wraps NotificationSink failures.
	ErrDelivery = errors.New("reminder delivery failed")
	// ErrPersistence is returned when the store could not be written. The
	// in-memory state is still updated and armed timers keep running.
	ErrPersistence = errors.New("reminder store not writable")
)

type Policy string

const (
	PolicyOnce     Policy = "once"
	PolicyDaily    Policy = "daily"
	PolicyWeekdays Policy = "weekdays"
	PolicyWeekends Policy = "weekends"
)

// Policies lists every policy in menu order.
var Policies = []Policy{PolicyDaily, PolicyOnce, PolicyWeekdays, PolicyWeekends}

// ParsePolicy accepts a policy name in any case, with or without the
// "repeat_" prefix used by menu buttons.
func ParsePolicy(s string) (Policy, error) {
	p := Policy(strings.TrimPrefix(strings.ToLower(strings.TrimSpace(s)), "repeat_"))
	if !p.Valid() {
		return "", fmt.Errorf("%w: unknown policy %q", ErrValidation, s)
	}
	return p, nil
}

func (p Policy) Valid() bool {
	switch p {
	case PolicyOnce, PolicyDaily, PolicyWeekdays, PolicyWeekends:
		return true
	}
	return false
}

// Recurring reports whether the reminder is re-armed after firing.
func (p Policy) Recurring() bool {
	return p != PolicyOnce
}

// Matches reports whether a reminder with this policy may fire on the given weekday.
func (p Policy) Matches(d time.Weekday) bool {
	switch p {
	case PolicyWeekdays:
		return d != time.Saturday && d != time.Sunday
	case PolicyWeekends:
		return d == time.Saturday || d == time.Sunday
	}
	return true
}

type State string

const (
	StatePending   State = "pending"
	StateFiring    State = "firing"
	StateCancelled State = "cancelled"
	StateCompleted State = "completed"
)

// TimeOfDay is a wall clock hour and minute in the configured zone.
type TimeOfDay struct {
	Hour   int
	Minute int
}

// ParseTimeOfDay parses "H:MM" or "HH:MM".
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	h, m, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok || len(h) == 0 || len(h) > 2 || len(m) != 2 || !digits(h) || !digits(m) {
		return TimeOfDay{}, fmt.Errorf("%w: time %q is not HH:MM", ErrValidation, s)
	}
	hour, err := strconv.Atoi(h)
	if err != nil {
		return TimeOfDay{}, fmt.Errorf("%w: time %q is not HH:MM", ErrValidation, s)
	}
	minute, err := strconv.Atoi(m)
	if err != nil {
		return TimeOfDay{}, fmt.Errorf("%w: time %q is not HH:MM", ErrValidation, s)
	}
	t := TimeOfDay{Hour: hour, Minute: minute}
	if !t.Valid() {
		return TimeOfDay{}, fmt.Errorf("%w: time %q out of range", ErrValidation, s)
	}
	return t, nil
}

func digits(s string) bool {
	return !strings.ContainsFunc(s, func(r rune) bool { return r < '0' || r > '9' })
}

func (t TimeOfDay) Valid() bool {
	return t.Hour >= 0 && t.Hour < 24 && t.Minute >= 0 && t.Minute < 60
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
}

// Reminder is a single registered reminder of an owner.
type Reminder struct {
	ID         string
	OwnerID    int64
	Text       string
	TimeOfDay  TimeOfDay
	Policy     Policy
	NextFireAt time.Time
	State      State
	CreatedAt  time.Time
}

// NewReminder validates the input and returns a pending reminder with a fresh
// id. NextFireAt is left for the scheduler to compute.
func NewReminder(ownerID int64, text string, tod TimeOfDay, policy Policy) (*Reminder, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("%w: empty text", ErrValidation)
	}
	if !tod.Valid() {
		return nil, fmt.Errorf("%w: time %s out of range", ErrValidation, tod)
	}
	if !policy.Valid() {
		return nil, fmt.Errorf("%w: unknown policy %q", ErrValidation, policy)
	}

	return &Reminder{
		ID:        uuid.New().String(),
		OwnerID:   ownerID,
		Text:      text,
		TimeOfDay: tod,
		Policy:    policy,
		State:     StatePending,
		CreatedAt: time.Now(),
	}, nil
}

// Clone returns a copy that can be handed out without sharing store state.
func (r *Reminder) Clone() *Reminder {
	c := *r
	return &c
}

// Label renders the reminder the way lists show it: "HH:MM - text (policy)".
func (r *Reminder) Label() string {
	return fmt.Sprintf("%s - %s (%s)", r.TimeOfDay, r.Text, r.Policy)
}
