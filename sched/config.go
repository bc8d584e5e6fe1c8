package sched

import (
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/asksbj/jpstamp-pipeline/dbpool"
	"github.com/asksbj/jpstamp-pipeline/runner"
	"github.com/asksbj/jpstamp-pipeline/task"
)

// Config configures one domain's Scheduler, per spec.md §4.5.
//
// A worker's database access is wired one of two ways:
//
//   - Static: set Runners and Store directly. Every worker shares the
//     same Task Store and Stage Runner instances. This is what the
//     fakes in scheduler_test.go use.
//   - Pooled: set DBPool, NewStore and NewRunners instead. Each worker
//     leases its own *sqlx.DB from DBPool for its lifetime (spec.md §5's
//     per-worker connection affinity) and builds its own Task Store and
//     Stage Runners against that handle.
//
// DBPool, when non-nil, takes precedence over Runners/Store.
type Config struct {
	// Domain is the task domain this scheduler services (e.g. "jpost").
	Domain string
	// WorkerCount is the fixed worker pool size (>= 1).
	WorkerCount int
	// Runners maps task_type -> the Stage Runner that executes it.
	// Ignored when DBPool is set.
	Runners map[string]*runner.Base
	// Store is the Task Store workers pick from and lease against.
	// Ignored when DBPool is set.
	Store task.Store
	// DBPool, when set, hands each worker its own *sqlx.DB for its
	// lifetime; NewStore and NewRunners build that worker's Task Store
	// and Stage Runners from the leased handle.
	DBPool     *dbpool.Pool
	NewStore   func(db *sqlx.DB) task.Store
	NewRunners func(db *sqlx.DB) map[string]*runner.Base
	// Registry performs the startup health check that ensures the full
	// task roster exists before workers start pulling.
	Registry *task.Registry
	// IdleSleep is how long an idle worker waits before re-polling when
	// the picker finds nothing. Defaults to 2s.
	IdleSleep time.Duration
}

func (c Config) idleSleep() time.Duration {
	if c.IdleSleep <= 0 {
		return 2 * time.Second
	}
	return c.IdleSleep
}
