package jpost

import (
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/asksbj/jpstamp-pipeline/dbpool"
	"github.com/asksbj/jpstamp-pipeline/domain/jpost/geocode"
	"github.com/asksbj/jpstamp-pipeline/domain/jpost/stages"
	"github.com/asksbj/jpstamp-pipeline/internal/httpclient"
	"github.com/asksbj/jpstamp-pipeline/runner"
	"github.com/asksbj/jpstamp-pipeline/sched"
	"github.com/asksbj/jpstamp-pipeline/stagerecord"
	"github.com/asksbj/jpstamp-pipeline/task"
)

// Dependencies are the externally-owned collaborators Build wires into
// the jpost domain's scheduler. DB backs one-time startup bootstrap (the
// task registry health check and the prefecture roster); DBPool hands
// each scheduler worker its own long-lived connection for task leasing
// and stage persistence, per spec.md §5's per-worker connection
// affinity.
type Dependencies struct {
	DB         *sqlx.DB
	DBPool     *dbpool.Pool
	Repo       Repository
	Geocoder   *geocode.Chain
	HTTPClient *httpclient.Client
}

// IntervalDays is the cadence every jpost stage runs at: at most once
// every other business day, grounded on core/settings.py's
// JPOST_INTERVAL_DAYS default.
const IntervalDays = 1

// Build wires the jpost domain's three per-prefecture stages into a
// sched.Scheduler, following the same Registry+Runners+Store shape every
// domain's scheduler takes per spec.md §6. The Task Store and Stage
// Runners are built per-worker from deps.DBPool rather than once, so
// every worker leases and keeps its own *sqlx.DB handle.
func Build(workerCount int, deps Dependencies) *sched.Scheduler {
	prefectures := &SQLPrefectureLister{DB: deps.DB}
	bootstrapStore := task.NewSQLStore(deps.DB)

	registry := &task.Registry{
		Domain:         Domain,
		Store:          bootstrapStore,
		Owners:         OwnerNames(prefectures),
		OwnerTaskTypes: []string{TaskIngestBasic, TaskIngestDetail, TaskIngestLocation},
	}

	newStore := func(db *sqlx.DB) task.Store {
		return task.NewSQLStore(db)
	}

	newRunners := func(db *sqlx.DB) map[string]*runner.Base {
		taskStore := task.NewSQLStore(db)
		records := stagerecord.NewSQLStore(db, Domain+"_stage_record")

		basicStage := &stages.FukeBasic{
			Client:      deps.HTTPClient,
			Repo:        deps.Repo,
			Records:     records,
			Prefectures: prefectures,
		}
		detailStage := &stages.FukeDetail{
			Client:  deps.HTTPClient,
			Repo:    deps.Repo,
			Records: records,
		}
		locationStage := &stages.PostOfficeLocation{
			Geocoder: deps.Geocoder,
			Repo:     deps.Repo,
			Records:  records,
		}

		return map[string]*runner.Base{
			TaskIngestBasic: {
				Name:         TaskIngestBasic,
				IntervalDays: IntervalDays,
				Store:        taskStore,
				Stage:        basicStage,
			},
			TaskIngestDetail: {
				Name:         TaskIngestDetail,
				IntervalDays: IntervalDays,
				Store:        taskStore,
				Stage:        detailStage,
			},
			TaskIngestLocation: {
				Name:         TaskIngestLocation,
				IntervalDays: IntervalDays,
				Store:        taskStore,
				Stage:        locationStage,
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
