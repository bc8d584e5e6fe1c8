// Package jpost wires the Japanese post-office commemorative stamp
// ("fuke") crawl into the scheduler core: three per-prefecture stages
// sharing one jpost_stage_record progress row per (prefecture, date).
package jpost

const (
	// Domain identifies this domain's tasks and stage-record table.
	Domain = "jpost"

	// TaskIngestBasic lists a prefecture's fuke posts.
	TaskIngestBasic = "INGEST_BASIC"
	// TaskIngestDetail fetches the per-post detail page.
	TaskIngestDetail = "INGEST_DETAIL"
	// TaskIngestLocation geocodes the post office addresses referenced
	// by a prefecture's fuke posts.
	TaskIngestLocation = "INGEST_LOCATION"
)
