package task

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
)

// ErrNotFound is returned when a lookup finds no matching row.
var ErrNotFound = errors.New("task: not found")

// Store is the persistence contract for Task rows. Lease is the sole
// arbitration mechanism for concurrent workers: it is a compare-and-swap
// on LastUpdate, not a persistent lock token, per the design's lease
// model.
type Store interface {
	// PickOldest returns the task with the smallest LastUpdate for the
	// given domain, or ErrNotFound if the domain has no tasks.
	PickOldest(ctx context.Context, domain string) (*Task, error)
	// Lease attempts to claim task by advancing LastUpdate to now,
	// conditioned on the row's LastUpdate still equaling observedAt.
	// Returns true iff the CAS succeeded.
	Lease(ctx context.Context, t *Task, observedAt time.Time) (bool, error)
	// Complete sets date unconditionally; only the worker that holds the
	// lease (by virtue of having just executed run()) calls this.
	Complete(ctx context.Context, t *Task, date string) error
	// EnsureExists inserts a row for (domain, taskType, owner) if one does
	// not already exist. Idempotent.
	EnsureExists(ctx context.Context, domain, taskType, owner string, now time.Time) error
	// GetByTypeAndOwner returns a single task, mainly for tests and
	// diagnostics.
	GetByTypeAndOwner(ctx context.Context, domain, taskType, owner string) (*Task, error)
}

// SQLStore is a Store backed by a SQL database (MySQL in production,
// driven through database/sql + sqlx so the same code works against
// go-sqlmock in tests).
type SQLStore struct {
	db *sqlx.DB
}

// NewSQLStore wraps an existing *sqlx.DB. The caller owns the connection
// lifecycle (see dbpool for the per-worker pooling strategy).
func NewSQLStore(db *sqlx.DB) *SQLStore {
	return &SQLStore{db: db}
}

func (s *SQLStore) PickOldest(ctx context.Context, domain string) (*Task, error) {
	var t Task
	err := s.db.GetContext(ctx, &t,
		`SELECT id, domain, task_type, owner, last_update, date FROM task
		 WHERE domain = ? ORDER BY last_update ASC LIMIT 1`, domain)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (s *SQLStore) Lease(ctx context.Context, t *Task, observedAt time.Time) (bool, error) {
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`UPDATE task SET last_update = ? WHERE id = ? AND last_update = ?`,
		now, t.ID, observedAt)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if n == 1 {
		t.LastUpdate = now
		return true, nil
	}
	return false, nil
}

func (s *SQLStore) Complete(ctx context.Context, t *Task, date string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE task SET date = ? WHERE id = ?`, date, t.ID)
	if err != nil {
		return err
	}
	t.Date = &date
	return nil
}

func (s *SQLStore) EnsureExists(ctx context.Context, domain, taskType, owner string, now time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO task (domain, task_type, owner, last_update, date)
		 VALUES (?, ?, ?, ?, NULL)
		 ON DUPLICATE KEY UPDATE id = id`,
		domain, taskType, owner, now)
	return err
}

func (s *SQLStore) GetByTypeAndOwner(ctx context.Context, domain, taskType, owner string) (*Task, error) {
	var t Task
	err := s.db.GetContext(ctx, &t,
		`SELECT id, domain, task_type, owner, last_update, date FROM task
		 WHERE domain = ? AND task_type = ? AND owner = ?`, domain, taskType, owner)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}
