package domain

import (
	"fmt"
	"sort"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/asksbj/jpstamp-pipeline/dbpool"
	"github.com/asksbj/jpstamp-pipeline/internal/httpclient"
	"github.com/asksbj/jpstamp-pipeline/managers"
	"github.com/asksbj/jpstamp-pipeline/sched"
)

// Bootstrap holds the collaborators every domain scheduler needs
// regardless of its own stages: a database handle for one-time startup
// work, a per-worker connection pool, a shared HTTP client, and the root
// directory for filesystem-backed repositories. A concrete domain's
// SchedulerFactory builds whatever domain-specific Dependencies it needs
// (a geocoder, a staging repository, ...) from these.
type Bootstrap struct {
	DB         *sqlx.DB
	DBPool     *dbpool.Pool
	HTTPClient *httpclient.Client
	DataRoot   string
}

// SchedulerFactory builds one domain's scheduler from a Bootstrap. It
// can fail: assembling domain-specific dependencies (a geocode vendor
// chain, for instance) is not infallible the way Bootstrap's own fields
// are.
type SchedulerFactory func(workerCount int, boot Bootstrap) (*sched.Scheduler, error)

// schedulers is the Go equivalent of task_scheduler.py's SCHEDULERS
// dict: each domain package registers itself here from its own init(),
// rather than cmd/jpstamp-pipeline naming every domain by hand.
var schedulers = managers.NewItemManager[SchedulerFactory]()

// RegisterScheduler registers name's SchedulerFactory. Called once from
// each domain package's init().
func RegisterScheduler(name string, factory SchedulerFactory) {
	schedulers.Register(name, factory)
	registeredNames = append(registeredNames, name)
}

// BuildScheduler looks up name's registered factory and invokes it with
// boot and workerCount.
func BuildScheduler(name string, workerCount int, boot Bootstrap) (*sched.Scheduler, error) {
	factory := schedulers.Get(name)
	if factory == nil {
		return nil, fmt.Errorf("domain: unknown scheduler %q (valid: %s)", name, knownSchedulerNames())
	}
	return factory(workerCount, boot)
}

func knownSchedulerNames() string {
	names := append([]string(nil), registeredNames...)
	sort.Strings(names)
	return strings.Join(names, ", ")
}

// registeredNames tracks registration order for BuildScheduler's error
// message; managers.ItemManager has no Keys() accessor of its own.
var registeredNames []string
