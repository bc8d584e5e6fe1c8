package manholecard

import (
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/asksbj/jpstamp-pipeline/dbpool"
	"github.com/asksbj/jpstamp-pipeline/domain"
	"github.com/asksbj/jpstamp-pipeline/domain/manholecard/stages"
	"github.com/asksbj/jpstamp-pipeline/internal/httpclient"
	"github.com/asksbj/jpstamp-pipeline/runner"
	"github.com/asksbj/jpstamp-pipeline/sched"
	"github.com/asksbj/jpstamp-pipeline/stagerecord"
	"github.com/asksbj/jpstamp-pipeline/task"
)

// IntervalDays is the cadence every manhole_card stage runs at, grounded
// on ManholeCardIngestor.INTERVAL_DAYS / ManholeCardMigrator.INTERVAL_DAYS
// (both 7 in the original — a weekly crawl/migration cadence).
const IntervalDays = 7

// Dependencies are the externally-owned collaborators Build wires into
// the manhole_card domain's scheduler. DB backs one-time startup
// bootstrap (the task registry health check and the prefecture roster);
// DBPool hands each scheduler worker its own long-lived connection for
// task leasing and stage persistence, per spec.md §5's per-worker
// connection affinity.
type Dependencies struct {
	DB         *sqlx.DB
	DBPool     *dbpool.Pool
	Staging    StagingRepository
	Published  PublishedRepository
	HTTPClient *httpclient.Client
}

// Build wires the manhole_card domain's per-prefecture ingest stage and
// domain-global migration stage into a sched.Scheduler, the same shape
// every domain's scheduler assembly takes per spec.md §6. The Task Store
// and Stage Runners are built per-worker from deps.DBPool rather than
// once, so every worker leases and keeps its own *sqlx.DB handle.
func Build(workerCount int, deps Dependencies) *sched.Scheduler {
	prefectures := &domain.SQLPrefectureLister{DB: deps.DB}
	bootstrapStore := task.NewSQLStore(deps.DB)

	registry := &task.Registry{
		Domain:          Domain,
		Store:           bootstrapStore,
		Owners:          domain.OwnerNames(prefectures),
		OwnerTaskTypes:  []string{TaskIngest},
		GlobalTaskTypes: []string{TaskMigrate},
	}

	newStore := func(db *sqlx.DB) task.Store {
		return task.NewSQLStore(db)
	}

	newRunners := func(db *sqlx.DB) map[string]*runner.Base {
		taskStore := task.NewSQLStore(db)
		records := stagerecord.NewSQLStore(db, Domain+"_stage_record")

		ingestStage := &stages.Ingestor{
			Client:      deps.HTTPClient,
			Staging:     deps.Staging,
			Records:     records,
			Prefectures: prefectures,
		}
		migrateStage := &stages.Migrator{
			Staging:     deps.Staging,
			Published:   deps.Published,
			Records:     records,
			Prefectures: prefectures,
		}

		return map[string]*runner.Base{
			TaskIngest: {
				Name:         TaskIngest,
				IntervalDays: IntervalDays,
				Store:        taskStore,
				Stage:        ingestStage,
			},
			TaskMigrate: {
				Name:         TaskMigrate,
				IntervalDays: IntervalDays,
				Store:        taskStore,
				Stage:        migrateStage,
			},
		}
	}

	return sched.New(Domain, sched.Config{
		Domain:      Domain,
		WorkerCount: workerCount,
		DBPool:      deps.DBPool,
		NewStore:    newStore,
		NewRunners:  newRunners,
		Registry:    registry,
		IdleSleep:   2 * time.Second,
	})
}
