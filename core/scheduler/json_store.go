package scheduler

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/mudler/xlog"
)

// JSONStore implements ReminderStore using JSON file storage. The file maps
// owner ids to ordered reminder sequences.
type JSONStore struct {
	filePath string
	mu       sync.RWMutex
	data     *index
}

// NewJSONStore creates a new JSON-based reminder store and loads the file if present
func NewJSONStore(filePath string) (*JSONStore, error) {
	store := &JSONStore{
		filePath: filePath,
		data:     newIndex(),
	}

	if _, err := store.Load(); err != nil {
		return nil, fmt.Errorf("failed to load store: %w", err)
	}

	return store, nil
}

// Load reads the file, replacing the in-memory view
func (s *JSONStore) Load() ([]*Reminder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	reminders, err := s.read()
	if err != nil {
		return nil, err
	}
	s.data.reset(reminders)
	return s.data.list(), nil
}

// Save replaces the whole set and writes it out
func (s *JSONStore) Save(reminders []*Reminder) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.data.reset(reminders)
	return s.flush()
}

// Upsert inserts or replaces a reminder
func (s *JSONStore) Upsert(r *Reminder) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.data.upsert(r)
	return s.flush()
}

// Get retrieves a reminder by owner and id
func (s *JSONStore) Get(ownerID int64, id string) (*Reminder, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.data.get(ownerID, id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return r, nil
}

// All retrieves the reminders of an owner
func (s *JSONStore) All(ownerID int64) ([]*Reminder, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.data.all(ownerID), nil
}

// Remove deletes a reminder
func (s *JSONStore) Remove(ownerID int64, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.data.remove(ownerID, id) {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return s.flush()
}

// Close releases resources (no-op for JSON store)
func (s *JSONStore) Close() error {
	return nil
}

func (s *JSONStore) read() ([]*Reminder, error) {
	file, err := os.ReadFile(s.filePath)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	// Handle empty file
	if len(file) == 0 {
		return nil, nil
	}

	raw := map[string]json.RawMessage{}
	if err := json.Unmarshal(file, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", s.filePath, err)
	}

	reminders := []*Reminder{}
	for key, value := range raw {
		ownerID, err := strconv.ParseInt(key, 10, 64)
		if err != nil {
			xlog.Error("Skipping reminders of malformed owner", "owner", key, "error", err)
			continue
		}
		var records []json.RawMessage
		if err := json.Unmarshal(value, &records); err != nil {
			xlog.Error("Skipping corrupt reminder list", "owner", ownerID, "error", err)
			continue
		}
		for _, msg := range records {
			var rec record
			if err := json.Unmarshal(msg, &rec); err != nil {
				xlog.Error("Skipping corrupt reminder record", "owner", ownerID, "error", err)
				continue
			}
			r, err := rec.reminder(ownerID)
			if errors.Is(err, errInactive) {
				xlog.Debug("Skipping inactive reminder", "owner", ownerID, "reminder_id", rec.ID, "state", rec.State)
				continue
			}
			if err != nil {
				xlog.Error("Skipping invalid reminder record", "owner", ownerID, "error", err)
				continue
			}
			reminders = append(reminders, r)
		}
	}

	return reminders, nil
}

// flush writes the view to a temporary file and renames it over the store
// file, so a crash mid-write leaves the previous file intact.
func (s *JSONStore) flush() error {
	out := map[string][]record{}
	for _, r := range s.data.list() {
		key := strconv.FormatInt(r.OwnerID, 10)
		out[key] = append(out[key], toRecord(r))
	}

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: failed to marshal data: %w", ErrPersistence, err)
	}

	if err := writeFileAtomic(s.filePath, data); err != nil {
		return fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	return nil
}

func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0644); err != nil {
		return err
	}

	return os.Rename(tmpName, path)
}
