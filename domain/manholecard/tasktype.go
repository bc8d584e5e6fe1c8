// Package manholecard wires the municipal "manhole card" collectible
// crawl into the scheduler core: a per-prefecture ingest stage feeding a
// single domain-global migration stage that rolls staged records into a
// published catalog, grounded on
// original_source/manhole_card/etl/{ingestor,migrator,scheduler}.py.
package manholecard

const (
	// Domain identifies this domain's tasks and stage-record table.
	Domain = "manhole_card"

	// TaskIngest crawls one prefecture's manhole card listing page.
	TaskIngest = "INGEST"
	// TaskMigrate rolls every prefecture's staged records into the
	// published ManholeCard/Facility catalog. It is a domain-global task
	// run under task.GlobalOwner.
	TaskMigrate = "MIGRATE"
)
