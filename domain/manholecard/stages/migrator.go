package stages

import (
	"context"
	"time"

	"github.com/asksbj/jpstamp-pipeline/domain"
	"github.com/asksbj/jpstamp-pipeline/domain/manholecard"
	"github.com/asksbj/jpstamp-pipeline/runner"
	"github.com/asksbj/jpstamp-pipeline/stagerecord"
	"github.com/asksbj/jpstamp-pipeline/task"
)

// Migrator rolls every prefecture's staged manhole card records into a
// published catalog, resolving each record's free-text Location into
// structured facilities, grounded on ManholeCardMigrator.start(). It runs
// once under task.GlobalOwner and reports NoWorkToDo only when nothing is
// staged at all; otherwise it republishes the full catalog on every run
// and does not check whether the staged data changed since the last one.
type Migrator struct {
	Staging     manholecard.StagingRepository
	Published   manholecard.PublishedRepository
	Records     stagerecord.Store
	Prefectures domain.PrefectureLister
}

func (s *Migrator) PreRun(ctx context.Context, t *task.Task, effectiveDate time.Time) error {
	return nil
}

func (s *Migrator) Start(ctx context.Context, t *task.Task, effectiveDate time.Time) runner.Status {
	date := effectiveDate.Format("2006-01-02")

	staged, err := s.Staging.LoadAll(ctx)
	if err != nil {
		logger.ErrorF("manholecard migrator: loading staged records: %v", err)
		return runner.Failure
	}
	if len(staged) == 0 {
		return runner.NoWorkToDo
	}

	prefs, err := s.Prefectures.List(ctx)
	if err != nil {
		logger.ErrorF("manholecard migrator: listing prefectures: %v", err)
		return runner.Failure
	}
	prefByOwner := make(map[string]domain.Prefecture, len(prefs))
	for _, p := range prefs {
		prefByOwner[p.EnName] = p
	}

	var cards []manholecard.PublishedCard
	for owner, records := range staged {
		pref, ok := prefByOwner[owner]
		if !ok {
			logger.WarnF("manholecard migrator: skipping unknown prefecture owner %q", owner)
			continue
		}
		for _, record := range records {
			cards = append(cards, manholecard.PublishedCard{
				Record:     record,
				Prefecture: pref.FullName,
				Facilities: manholecard.ParseLocations(record.Location, pref.FullName),
			})
		}
	}

	if err := s.Published.Publish(ctx, cards); err != nil {
		logger.ErrorF("manholecard migrator: publishing %d cards: %v", len(cards), err)
		return runner.Failure
	}

	rec, err := s.Records.GetOrCreate(ctx, t.Owner, date)
	if err != nil {
		logger.ErrorF("manholecard migrator: GetOrCreate(%s, %s): %v", t.Owner, date, err)
		return runner.Failure
	}
	if !rec.State.Reached(stagerecord.Finished) {
		ok, err := s.Records.CASState(ctx, rec.ID, rec.State, stagerecord.Finished)
		if err != nil {
			logger.ErrorF("manholecard migrator: CASState(%d): %v", rec.ID, err)
			return runner.Failure
		}
		if !ok {
			cur, err := s.Records.Get(ctx, t.Owner, date)
			if err != nil || !cur.State.Reached(stagerecord.Finished) {
				logger.WarnF("manholecard migrator: lost CAS race advancing %s/%s to FINISHED", t.Owner, date)
				return runner.Failure
			}
		}
	}

	logger.InfoF("manholecard migrator: published %d cards from %d prefectures", len(cards), len(staged))
	return runner.Success
}
