// Command jpstamp-pipeline runs one domain's scheduler: a fixed worker
// pool that repeatedly picks the oldest due task and advances it through
// its stages, until interrupted. Grounded on
// original_source/task_scheduler.py's SCHEDULERS dict + argparse
// interface.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/jmoiron/sqlx"

	"github.com/asksbj/jpstamp-pipeline/cli"
	"github.com/asksbj/jpstamp-pipeline/config"
	"github.com/asksbj/jpstamp-pipeline/dbpool"
	domainpkg "github.com/asksbj/jpstamp-pipeline/domain"
	_ "github.com/asksbj/jpstamp-pipeline/domain/jpost"
	_ "github.com/asksbj/jpstamp-pipeline/domain/manholecard"
	"github.com/asksbj/jpstamp-pipeline/internal/dbconfig"
	"github.com/asksbj/jpstamp-pipeline/internal/httpclient"
	"github.com/asksbj/jpstamp-pipeline/l3"
	"github.com/asksbj/jpstamp-pipeline/migrations"
)

var logger = l3.Get()

func main() {
	// cli.CLI.Execute dispatches on a root command name (see cli/cli.go);
	// "scheduler" is that command, invoked as
	// `jpstamp-pipeline scheduler -s jpost -t 5`.
	app := cli.NewCommand("scheduler", "runs a jpstamp-pipeline domain scheduler", "1.0.0", runScheduler)
	app.Flags = []*cli.Flag{
		{
			Name:    "scheduler",
			Usage:   "domain scheduler to run: jpost or manhole_card",
			Aliases: []string{"s"},
			Default: "jpost",
		},
		{
			Name:    "threads",
			Usage:   "number of worker threads",
			Aliases: []string{"t"},
			Default: config.GetEnvAsString("SCHEDULER_THREADS", "5"),
		},
	}

	c := cli.NewCLI()
	c.AddVersion("1.0.0")
	c.AddCommand(app)

	if err := c.Execute(); err != nil {
		logger.ErrorF("jpstamp-pipeline: %v", err)
		os.Exit(1)
	}
}

func runScheduler(ctx *cli.Context) error {
	domain, _ := ctx.GetFlag("scheduler")
	threadsStr, _ := ctx.GetFlag("threads")

	threads, err := strconv.Atoi(threadsStr)
	if err != nil || threads < 1 {
		logger.ErrorF("jpstamp-pipeline: invalid --threads value %q", threadsStr)
		os.Exit(2)
	}

	taskSettings, err := dbconfig.Load("TASK")
	if err != nil {
		return fmt.Errorf("jpstamp-pipeline: loading TASK_* settings: %w", err)
	}
	db, err := sqlx.Connect("mysql", taskSettings.DSN())
	if err != nil {
		return fmt.Errorf("jpstamp-pipeline: connecting to task database: %w", err)
	}
	defer db.Close()

	if err := migrations.Run(db.DB); err != nil {
		return fmt.Errorf("jpstamp-pipeline: running migrations: %w", err)
	}

	// dbPool hands each scheduler worker its own *sqlx.DB for its
	// lifetime, per spec.md §5's per-worker connection affinity; db
	// itself is only used for one-time startup bootstrap above and the
	// domain registry/prefecture roster reads inside each domain's
	// registered SchedulerFactory.
	dbPool, err := dbpool.New(dbpool.Config{Driver: "mysql", DSN: taskSettings.DSN()}, threads)
	if err != nil {
		return fmt.Errorf("jpstamp-pipeline: building worker connection pool: %w", err)
	}
	defer dbPool.Close()

	httpClient := httpclient.New(httpclient.Options{})
	dataRoot := config.GetEnvAsString("DATA_ROOT", "./data")

	scheduler, err := domainpkg.BuildScheduler(domain, threads, domainpkg.Bootstrap{
		DB:         db,
		DBPool:     dbPool,
		HTTPClient: httpClient,
		DataRoot:   dataRoot,
	})
	if err != nil {
		logger.ErrorF("jpstamp-pipeline: %v", err)
		os.Exit(2)
	}

	if err := scheduler.Start(); err != nil {
		return fmt.Errorf("jpstamp-pipeline: starting %s scheduler: %w", domain, err)
	}
	logger.InfoF("jpstamp-pipeline: %s scheduler running with %d threads", domain, threads)

	waitForSignal()

	if err := scheduler.Stop(); err != nil {
		return fmt.Errorf("jpstamp-pipeline: stopping %s scheduler: %w", domain, err)
	}
	return nil
}

func waitForSignal() {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
}
