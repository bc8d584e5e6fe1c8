package runner

import (
	"context"
	"time"

	"github.com/asksbj/jpstamp-pipeline/l3"
	"github.com/asksbj/jpstamp-pipeline/task"
)

var logger = l3.Get()

// Stage is the pair of hooks a concrete stage specializes. All scheduling
// logic (cadence gate, status sequencing, date persistence) lives in Base;
// Stage implementations do the actual work and their own StageRecord
// bookkeeping.
type Stage interface {
	// PreRun runs before Start, after the cadence gate has opened. A
	// returned error aborts the run with Failure and performs no record
	// mutation.
	PreRun(ctx context.Context, t *task.Task, effectiveDate time.Time) error
	// Start performs the stage's work for effectiveDate and reports its
	// outcome. On Success, Base advances task.date; Start is responsible
	// for advancing any StageRecord itself.
	Start(ctx context.Context, t *task.Task, effectiveDate time.Time) Status
}

// Base is the cadence gate and template-method executor described in
// spec.md §4.4. Concrete stages embed *Base (or hold one) and supply a
// Stage plus their own IntervalDays.
type Base struct {
	// Name identifies the stage in logs (typically the task type).
	Name string
	// IntervalDays is the minimum business-day spacing between
	// successful runs on the same owner. 0 means "runs at most once per
	// calendar day".
	IntervalDays int
	// Store advances task.date on Success.
	Store task.Store
	// Stage is the concrete hooks.
	Stage Stage
	// Now returns the current instant; overridable for tests. Defaults
	// to time.Now when nil.
	Now func() time.Time
}

func (b *Base) now() time.Time {
	if b.Now != nil {
		return b.Now()
	}
	return time.Now()
}

// effectiveDate implements spec.md §4.4's cadence gate.
//
// Policy is preserved exactly as specified: `next < today` is a STRICT
// comparison, not `<=`. This means an interval-N task runs at most once
// every N+1 days when IntervalDays > 0, and unconditionally once per
// calendar day when IntervalDays == 0. This was flagged as an open
// question (should it be `<=`?) and resolved by keeping the original
// behavior rather than "fixing" it.
func (b *Base) effectiveDate(t *task.Task) (time.Time, bool) {
	today := b.now().UTC().Truncate(24 * time.Hour)

	if !t.HasRunDate() {
		return today, true
	}

	last, err := time.Parse("2006-01-02", t.RunDate())
	if err != nil {
		return today, true
	}
	next := last.AddDate(0, 0, b.IntervalDays)
	if next.Before(today) {
		return today, true
	}
	return time.Time{}, false
}

// Run executes the full cadence-gate + pre_run + start + persist flow and
// returns the resulting Status. It never panics; any panic from Stage is
// the caller's (scheduler's) responsibility to recover, matching spec.md
// §4.5's "worker panic caught at the worker loop boundary".
func (b *Base) Run(ctx context.Context, t *task.Task) Status {
	effDate, ok := b.effectiveDate(t)
	if !ok {
		logger.DebugF("%s: task %s/%s not due yet (last run %s)", b.Name, t.Domain, t.Owner, t.RunDate())
		return NoWorkToDo
	}

	if err := b.Stage.PreRun(ctx, t, effDate); err != nil {
		logger.ErrorF("%s: pre_run failed for %s/%s: %v", b.Name, t.Domain, t.Owner, err)
		return Failure
	}

	status := b.Stage.Start(ctx, t, effDate)

	switch status {
	case Success:
		dateStr := effDate.Format("2006-01-02")
		if err := b.Store.Complete(ctx, t, dateStr); err != nil {
			logger.ErrorF("%s: failed to persist completion date for %s/%s: %v", b.Name, t.Domain, t.Owner, err)
			return Failure
		}
		logger.InfoF("%s: %s/%s advanced to %s", b.Name, t.Domain, t.Owner, dateStr)
	case NotReadyForWork:
		logger.DebugF("%s: %s/%s not ready (prerequisite state not reached)", b.Name, t.Domain, t.Owner)
	case Failure:
		logger.WarnF("%s: %s/%s failed", b.Name, t.Domain, t.Owner)
	case NoWorkToDo:
		logger.DebugF("%s: %s/%s had no work to do", b.Name, t.Domain, t.Owner)
	}

	return status
}
