package stagerecord

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
)

func newMockStore(t *testing.T) (Store, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	sqlxDB := sqlx.NewDb(db, "mysql")
	return NewSQLStore(sqlxDB, "jpost_stage_record"), mock, func() { _ = db.Close() }
}

func TestTableStore_Get_NotFound(t *testing.T) {
	store, mock, closeFn := newMockStore(t)
	defer closeFn()

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, owner, date, state, created_time, last_updated FROM jpost_stage_record")).
		WithArgs("Hokkaido", "2026-08-01").
		WillReturnRows(sqlmock.NewRows([]string{"id", "owner", "date", "state", "created_time", "last_updated"}))

	_, err := store.Get(context.Background(), "Hokkaido", "2026-08-01")
	if err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestTableStore_GetOrCreate_CreatesWhenAbsent(t *testing.T) {
	store, mock, closeFn := newMockStore(t)
	defer closeFn()

	selectSQL := regexp.QuoteMeta("SELECT id, owner, date, state, created_time, last_updated FROM jpost_stage_record")
	mock.ExpectQuery(selectSQL).
		WithArgs("Hokkaido", "2026-08-01").
		WillReturnRows(sqlmock.NewRows([]string{"id", "owner", "date", "state", "created_time", "last_updated"}))

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO jpost_stage_record")).
		WithArgs("Hokkaido", "2026-08-01", Created, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	mock.ExpectQuery(selectSQL).
		WithArgs("Hokkaido", "2026-08-01").
		WillReturnRows(sqlmock.NewRows([]string{"id", "owner", "date", "state", "created_time", "last_updated"}).
			AddRow(1, "Hokkaido", "2026-08-01", Created, time.Now(), time.Now()))

	rec, err := store.GetOrCreate(context.Background(), "Hokkaido", "2026-08-01")
	if err != nil {
		t.Fatalf("GetOrCreate: %v", err)
	}
	if rec.State != Created {
		t.Fatalf("expected new record in state CREATED, got %s", rec.State)
	}
}

// TestTableStore_GetOrCreate_LosesCreationRace models two workers racing
// GetOrCreate for the same (owner, date): the loser's insert fails with a
// duplicate-key error and it must fall back to reading the winner's row.
func TestTableStore_GetOrCreate_LosesCreationRace(t *testing.T) {
	store, mock, closeFn := newMockStore(t)
	defer closeFn()

	selectSQL := regexp.QuoteMeta("SELECT id, owner, date, state, created_time, last_updated FROM jpost_stage_record")
	mock.ExpectQuery(selectSQL).
		WithArgs("Hokkaido", "2026-08-01").
		WillReturnRows(sqlmock.NewRows([]string{"id", "owner", "date", "state", "created_time", "last_updated"}))

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO jpost_stage_record")).
		WithArgs("Hokkaido", "2026-08-01", Created, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnError(&mysql.MySQLError{Number: mysqlDuplicateKeyErrno, Message: "Duplicate entry"})

	mock.ExpectQuery(selectSQL).
		WithArgs("Hokkaido", "2026-08-01").
		WillReturnRows(sqlmock.NewRows([]string{"id", "owner", "date", "state", "created_time", "last_updated"}).
			AddRow(1, "Hokkaido", "2026-08-01", Created, time.Now(), time.Now()))

	rec, err := store.GetOrCreate(context.Background(), "Hokkaido", "2026-08-01")
	if err != nil {
		t.Fatalf("GetOrCreate: %v", err)
	}
	if rec.ID != 1 {
		t.Fatalf("expected winner's row to be returned, got %+v", rec)
	}
}

// TestTableStore_CASState_SecondCallFails mirrors spec.md §8's
// cas_state(id, X, Y) idempotence property: the first call to move a row
// from X to Y succeeds, a second identical call finds the row no longer
// in X and reports false.
func TestTableStore_CASState_SecondCallFails(t *testing.T) {
	store, mock, closeFn := newMockStore(t)
	defer closeFn()

	updateSQL := regexp.QuoteMeta("UPDATE jpost_stage_record SET state = ?, last_updated = ? WHERE id = ? AND state = ?")

	mock.ExpectExec(updateSQL).
		WithArgs(Basic, sqlmock.AnyArg(), int64(1), Created).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(updateSQL).
		WithArgs(Basic, sqlmock.AnyArg(), int64(1), Created).
		WillReturnResult(sqlmock.NewResult(0, 0))

	ctx := context.Background()
	first, err := store.CASState(ctx, 1, Created, Basic)
	if err != nil {
		t.Fatalf("first CASState: %v", err)
	}
	if !first {
		t.Fatalf("expected first CASState to succeed")
	}

	second, err := store.CASState(ctx, 1, Created, Basic)
	if err != nil {
		t.Fatalf("second CASState: %v", err)
	}
	if second {
		t.Fatalf("expected second CASState to fail, state already advanced")
	}
}

func TestState_Reached(t *testing.T) {
	cases := []struct {
		s, other State
		want     bool
	}{
		{Finished, Created, true},
		{Created, Finished, false},
		{Basic, Basic, true},
		{Detailed, Located, false},
	}
	for _, c := range cases {
		if got := c.s.Reached(c.other); got != c.want {
			t.Errorf("%s.Reached(%s) = %v, want %v", c.s, c.other, got, c.want)
		}
	}
}
