package scheduler

import (
	"context"
)

// ReminderStore defines the interface for reminder persistence.
//
// Implementations keep an in-memory view that is authoritative for reads.
// Writes update the view first and then the durable medium; when the latter
// fails the returned error wraps ErrPersistence and the view keeps the change.
type ReminderStore interface {
	// Load re-reads the durable medium and replaces the in-memory view.
	// Missing storage is an empty set; corrupt records are skipped.
	Load() ([]*Reminder, error)

	// Save replaces the whole persisted set
	Save(reminders []*Reminder) error

	// Upsert inserts or replaces a reminder, keeping its position in the owner's sequence
	Upsert(r *Reminder) error

	// Get retrieves one reminder of an owner
	Get(ownerID int64, id string) (*Reminder, error)

	// All retrieves the reminders of an owner in insertion order
	All(ownerID int64) ([]*Reminder, error)

	// Remove deletes a reminder, returning ErrNotFound if it does not exist
	Remove(ownerID int64, id string) error

	// Close releases resources
	Close() error
}

// NotificationSink delivers a fired reminder to its owner.
type NotificationSink interface {
	Notify(ctx context.Context, ownerID int64, text string) error
}

// NotificationSinkFunc adapts a function to NotificationSink.
type NotificationSinkFunc func(ctx context.Context, ownerID int64, text string) error

func (f NotificationSinkFunc) Notify(ctx context.Context, ownerID int64, text string) error {
	return f(ctx, ownerID, text)
}
