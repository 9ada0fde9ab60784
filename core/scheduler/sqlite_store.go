package scheduler

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/mudler/xlog"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements ReminderStore on a SQLite database. Reads are served
// from the in-memory view; every write is mirrored to the reminders table.
type SQLiteStore struct {
	db   *sql.DB
	mu   sync.RWMutex
	data *index
}

// NewSQLiteStore creates or opens the reminder database at path.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create reminder db dir: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// SQLite only supports one writer at a time
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	store := &SQLiteStore{db: db, data: newIndex()}
	if err := store.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	if _, err := store.Load(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

func (s *SQLiteStore) migrate() error {
	stmts := []string{
		`PRAGMA journal_mode=WAL;`,
		`PRAGMA synchronous=NORMAL;`,
		`PRAGMA busy_timeout=5000;`,
		`CREATE TABLE IF NOT EXISTS reminders (
			id TEXT PRIMARY KEY,
			owner_id INTEGER NOT NULL,
			position INTEGER NOT NULL,
			text TEXT NOT NULL,
			time_of_day TEXT NOT NULL,
			policy TEXT NOT NULL,
			next_fire_at TEXT NOT NULL,
			state TEXT NOT NULL DEFAULT '',
			created_at TEXT NOT NULL DEFAULT ''
		);`,
		`CREATE INDEX IF NOT EXISTS idx_reminders_owner ON reminders(owner_id, position);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("migrate reminders db: %w", err)
		}
	}
	return nil
}

// Load reads every row, replacing the in-memory view
func (s *SQLiteStore) Load() ([]*Reminder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.Query(`SELECT id, owner_id, text, time_of_day, policy, next_fire_at, state, created_at
		FROM reminders ORDER BY owner_id, position`)
	if err != nil {
		return nil, fmt.Errorf("query reminders: %w", err)
	}
	defer rows.Close()

	reminders := []*Reminder{}
	for rows.Next() {
		var (
			rec                 record
			ownerID             int64
			nextFire, createdAt string
			policy, state       string
		)
		if err := rows.Scan(&rec.ID, &ownerID, &rec.Text, &rec.TimeOfDay, &policy, &nextFire, &state, &createdAt); err != nil {
			xlog.Error("Skipping unreadable reminder row", "error", err)
			continue
		}
		rec.Policy = Policy(policy)
		rec.State = State(state)
		if rec.NextFireAt, err = time.Parse(time.RFC3339Nano, nextFire); err != nil {
			xlog.Error("Skipping reminder with malformed next fire time", "owner", ownerID, "reminder_id", rec.ID, "error", err)
			continue
		}
		if createdAt != "" {
			rec.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
		}

		r, err := rec.reminder(ownerID)
		if errors.Is(err, errInactive) {
			continue
		}
		if err != nil {
			xlog.Error("Skipping invalid reminder row", "owner", ownerID, "error", err)
			continue
		}
		reminders = append(reminders, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate reminders: %w", err)
	}

	s.data.reset(reminders)
	return s.data.list(), nil
}

// Save replaces the table content in one transaction
func (s *SQLiteStore) Save(reminders []*Reminder) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.data.reset(reminders)

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM reminders`); err != nil {
		return fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	positions := map[int64]int{}
	for _, r := range s.data.list() {
		if err := insertReminder(tx, r, positions[r.OwnerID]); err != nil {
			return fmt.Errorf("%w: %w", ErrPersistence, err)
		}
		positions[r.OwnerID]++
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	return nil
}

// Upsert inserts or replaces a reminder, appending new ones to the owner's sequence
func (s *SQLiteStore) Upsert(r *Reminder) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.data.upsert(r)

	rec := toRecord(r)
	_, err := s.db.Exec(`INSERT INTO reminders (id, owner_id, position, text, time_of_day, policy, next_fire_at, state, created_at)
		VALUES (?, ?, COALESCE((SELECT MAX(position) + 1 FROM reminders WHERE owner_id = ?), 0), ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			text = excluded.text,
			time_of_day = excluded.time_of_day,
			policy = excluded.policy,
			next_fire_at = excluded.next_fire_at,
			state = excluded.state`,
		rec.ID, r.OwnerID, r.OwnerID, rec.Text, rec.TimeOfDay, string(rec.Policy),
		rec.NextFireAt.Format(time.RFC3339Nano), string(rec.State), rec.CreatedAt.Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	return nil
}

// Get retrieves a reminder by owner and id
func (s *SQLiteStore) Get(ownerID int64, id string) (*Reminder, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.data.get(ownerID, id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return r, nil
}

// All retrieves the reminders of an owner
func (s *SQLiteStore) All(ownerID int64) ([]*Reminder, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.data.all(ownerID), nil
}

// Remove deletes a reminder
func (s *SQLiteStore) Remove(ownerID int64, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.data.remove(ownerID, id) {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if _, err := s.db.Exec(`DELETE FROM reminders WHERE id = ? AND owner_id = ?`, id, ownerID); err != nil {
		return fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	return nil
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func insertReminder(tx *sql.Tx, r *Reminder, position int) error {
	rec := toRecord(r)
	_, err := tx.Exec(`INSERT INTO reminders (id, owner_id, position, text, time_of_day, policy, next_fire_at, state, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, r.OwnerID, position, rec.Text, rec.TimeOfDay, string(rec.Policy),
		rec.NextFireAt.Format(time.RFC3339Nano), string(rec.State), rec.CreatedAt.Format(time.RFC3339Nano))
	return err
}
