package manholecard

import (
	"path/filepath"

	"github.com/asksbj/jpstamp-pipeline/domain"
	"github.com/asksbj/jpstamp-pipeline/sched"
)

func init() {
	domain.RegisterScheduler(Domain, buildFromBootstrap)
}

// buildFromBootstrap adapts domain.Bootstrap's domain-agnostic
// collaborators into manholecard's own Dependencies, the entry point
// domain.BuildScheduler calls in place of a hand-maintained switch,
// replacing the distilled task_scheduler.py's SCHEDULERS["manhole_card"]
// entry.
func buildFromBootstrap(workerCount int, boot domain.Bootstrap) (*sched.Scheduler, error) {
	return Build(workerCount, Dependencies{
		DB:         boot.DB,
		DBPool:     boot.DBPool,
		Staging:    &FSStagingRepository{Root: filepath.Join(boot.DataRoot, Domain, "staging")},
		Published:  &FSPublishedRepository{Root: filepath.Join(boot.DataRoot, Domain, "published")},
		HTTPClient: boot.HTTPClient,
	}), nil
}
