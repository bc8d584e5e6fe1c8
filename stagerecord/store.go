package stagerecord

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
)

// ErrNotFound is returned when no StageRecord exists for (owner, date).
var ErrNotFound = errors.New("stagerecord: not found")

// mysqlDuplicateKeyErrno is MySQL's error 1062 (ER_DUP_ENTRY), raised when
// the (owner, date) unique constraint is violated by a concurrent insert.
const mysqlDuplicateKeyErrno = 1062

// Store is the persistence contract for StageRecord rows.
type Store interface {
	// Get returns the record for (owner, date), or ErrNotFound.
	Get(ctx context.Context, owner, date string) (*StageRecord, error)
	// GetOrCreate returns the existing record for (owner, date), creating
	// one in state Created if absent. Safe against the insert race: a
	// duplicate-key error on the concurrent insert is treated as "someone
	// else just created it" and the row is re-read.
	GetOrCreate(ctx context.Context, owner, date string) (*StageRecord, error)
	// CASState conditionally updates State from expected to next. Returns
	// true iff the transition was applied.
	CASState(ctx context.Context, id int64, expected, next State) (bool, error)
}

// tableStore is a Store bound to one domain's stage-record table (each
// domain gets its own table per spec.md §6, e.g. jpost_stage_record).
type tableStore struct {
	db    *sqlx.DB
	table string
}

// NewSQLStore returns a Store backed by the named table.
func NewSQLStore(db *sqlx.DB, table string) Store {
	return &tableStore{db: db, table: table}
}

func (s *tableStore) Get(ctx context.Context, owner, date string) (*StageRecord, error) {
	var r StageRecord
	err := s.db.GetContext(ctx, &r,
		`SELECT id, owner, date, state, created_time, last_updated FROM `+s.table+`
		 WHERE owner = ? AND date = ?`, owner, date)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func (s *tableStore) GetOrCreate(ctx context.Context, owner, date string) (*StageRecord, error) {
	existing, err := s.Get(ctx, owner, date)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	now := time.Now().UTC()
	_, insertErr := s.db.ExecContext(ctx,
		`INSERT INTO `+s.table+` (owner, date, state, created_time, last_updated)
		 VALUES (?, ?, ?, ?, ?)`, owner, date, Created, now, now)
	if insertErr != nil {
		var mysqlErr *mysql.MySQLError
		if errors.As(insertErr, &mysqlErr) && mysqlErr.Number == mysqlDuplicateKeyErrno {
			// Lost the creation race; re-read the winner's row.
			return s.Get(ctx, owner, date)
		}
		return nil, insertErr
	}
	return s.Get(ctx, owner, date)
}

func (s *tableStore) CASState(ctx context.Context, id int64, expected, next State) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE `+s.table+` SET state = ?, last_updated = ? WHERE id = ? AND state = ?`,
		next, time.Now().UTC(), id, expected)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}
