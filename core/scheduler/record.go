package scheduler

import (
	"errors"
	"fmt"
	"time"
)

// errInactive marks a persisted record that is no longer pending and must be
// skipped on load.
var errInactive = errors.New("reminder not active")

// record is the persisted form of a Reminder. The owner id is carried by the
// enclosing structure.
type record struct {
	ID         string    `json:"id"`
	Text       string    `json:"text"`
	TimeOfDay  string    `json:"time"`
	Policy     Policy    `json:"policy"`
	NextFireAt time.Time `json:"next_fire_at"`
	State      State     `json:"state,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

func toRecord(r *Reminder) record {
	return record{
		ID:         r.ID,
		Text:       r.Text,
		TimeOfDay:  r.TimeOfDay.String(),
		Policy:     r.Policy,
		NextFireAt: r.NextFireAt,
		State:      r.State,
		CreatedAt:  r.CreatedAt,
	}
}

func (rec record) reminder(ownerID int64) (*Reminder, error) {
	if rec.ID == "" {
		return nil, fmt.Errorf("%w: missing id", ErrValidation)
	}
	if rec.Text == "" {
		return nil, fmt.Errorf("%w: record %s has empty text", ErrValidation, rec.ID)
	}
	tod, err := ParseTimeOfDay(rec.TimeOfDay)
	if err != nil {
		return nil, err
	}
	if !rec.Policy.Valid() {
		return nil, fmt.Errorf("%w: record %s has unknown policy %q", ErrValidation, rec.ID, rec.Policy)
	}

	state := rec.State
	switch state {
	case "", StateFiring:
		// a fire interrupted by a crash is retried as pending
		state = StatePending
	case StatePending:
	case StateCancelled, StateCompleted:
		return nil, errInactive
	default:
		return nil, fmt.Errorf("%w: record %s has unknown state %q", ErrValidation, rec.ID, rec.State)
	}

	return &Reminder{
		ID:         rec.ID,
		OwnerID:    ownerID,
		Text:       rec.Text,
		TimeOfDay:  tod,
		Policy:     rec.Policy,
		NextFireAt: rec.NextFireAt,
		State:      state,
		CreatedAt:  rec.CreatedAt,
	}, nil
}
