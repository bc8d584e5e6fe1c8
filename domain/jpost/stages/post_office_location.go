package stages

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/asksbj/jpstamp-pipeline/domain/jpost"
	"github.com/asksbj/jpstamp-pipeline/domain/jpost/geocode"
	"github.com/asksbj/jpstamp-pipeline/runner"
	"github.com/asksbj/jpstamp-pipeline/stagerecord"
	"github.com/asksbj/jpstamp-pipeline/task"
)

// PostOfficeLocation geocodes each DETAILED-stage post's office name
// against geocode.Chain and advances the stage record to LOCATED,
// grounded on PostOfficeLocationIngestor._get_location_info and
// _fetch_geo_info (original_source/jpost/etl/ingestors/post_office.py).
type PostOfficeLocation struct {
	Geocoder *geocode.Chain
	Repo     jpost.Repository
	Records  stagerecord.Store
}

// PreRun only guards against unexpected backing-store failures. Whether
// the upstream DETAILED stage has actually run yet is not an error —
// it's the routine, expected case before INGEST_DETAIL has had a chance
// to run, and Start reports it as NotReadyForWork.
func (s *PostOfficeLocation) PreRun(ctx context.Context, t *task.Task, effectiveDate time.Time) error {
	date := effectiveDate.Format("2006-01-02")
	_, err := s.Records.Get(ctx, t.Owner, date)
	if err != nil && !errors.Is(err, stagerecord.ErrNotFound) {
		return fmt.Errorf("post_office_location: loading stage record for %s/%s: %w", t.Owner, date, err)
	}
	return nil
}

func (s *PostOfficeLocation) Start(ctx context.Context, t *task.Task, effectiveDate time.Time) runner.Status {
	date := effectiveDate.Format("2006-01-02")

	rec, err := s.Records.Get(ctx, t.Owner, date)
	if err != nil {
		if errors.Is(err, stagerecord.ErrNotFound) {
			return runner.NotReadyForWork
		}
		logger.ErrorF("post_office_location: %v", err)
		return runner.Failure
	}
	if rec.State.Reached(stagerecord.Located) {
		return runner.Success
	}
	if !rec.State.Reached(stagerecord.Detailed) {
		return runner.NotReadyForWork
	}

	stamps, err := s.Repo.Load(ctx, t.Owner, date)
	if err != nil {
		logger.ErrorF("post_office_location: loading %s/%s: %v", t.Owner, date, err)
		return runner.Failure
	}

	seen := map[string]bool{}
	failed := 0
	attempted := 0
	for _, stamp := range stamps {
		if seen[stamp.PostOfficeName] {
			continue
		}
		seen[stamp.PostOfficeName] = true
		attempted++

		addr, err := s.Geocoder.Lookup(ctx, geocode.Query{
			PostOfficeName: stamp.PostOfficeName,
			PrefectureJA:   stamp.Prefecture,
		})
		if err != nil {
			logger.WarnF("post_office_location: geocoding %q: %v", stamp.PostOfficeName, err)
			failed++
			continue
		}
		if addr == nil {
			logger.DebugF("post_office_location: no geocode result for %q", stamp.PostOfficeName)
			continue
		}
		if err := s.Repo.SaveAddress(ctx, t.Owner, date, stamp.PostOfficeName, addr); err != nil {
			logger.ErrorF("post_office_location: saving address for %q: %v", stamp.PostOfficeName, err)
			failed++
		}
	}
	if attempted > 0 && failed == attempted {
		return runner.Failure
	}

	ok, err := s.Records.CASState(ctx, rec.ID, rec.State, stagerecord.Located)
	if err != nil {
		logger.ErrorF("post_office_location: CASState(%d): %v", rec.ID, err)
		return runner.Failure
	}
	if !ok {
		cur, err := s.Records.Get(ctx, t.Owner, date)
		if err == nil && cur.State.Reached(stagerecord.Located) {
			return runner.Success
		}
		logger.WarnF("post_office_location: lost CAS race advancing %s/%s to LOCATED", t.Owner, date)
		return runner.Failure
	}

	logger.InfoF("post_office_location: %s/%s geocoded %d/%d post offices", t.Owner, date, attempted-failed, attempted)
	return runner.Success
}
