package stages

import (
	"context"
	"testing"
	"time"

	"github.com/asksbj/jpstamp-pipeline/domain/manholecard"
	"github.com/asksbj/jpstamp-pipeline/runner"
	"github.com/asksbj/jpstamp-pipeline/stagerecord"
	"github.com/asksbj/jpstamp-pipeline/task"
)

type fakePublished struct {
	cards []manholecard.PublishedCard
}

func (f *fakePublished) Publish(ctx context.Context, cards []manholecard.PublishedCard) error {
	f.cards = cards
	return nil
}

func TestMigrator_Start_ResolvesLocationsAndAdvancesGlobalRecord(t *testing.T) {
	staging := newFakeStaging()
	staging.buckets["hokkaido"] = []manholecard.Record{
		{
			City:   "Sapporo",
			Series: "Series A",
			Location: "札幌市役所\n" +
				"北海道札幌市中央区北1条西2丁目\n" +
				"電話:011-000-0000",
		},
	}
	published := &fakePublished{}
	records := newFakeStageRecordStore()
	prefs := fixedPrefectureLister{{EnName: "hokkaido", FullName: "北海道", PrefID: 1}}

	stage := &Migrator{
		Staging:     staging,
		Published:   published,
		Records:     records,
		Prefectures: prefs,
	}

	tk := &task.Task{Domain: manholecard.Domain, Type: manholecard.TaskMigrate, Owner: task.GlobalOwner}
	effDate := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)

	if err := stage.PreRun(context.Background(), tk, effDate); err != nil {
		t.Fatalf("PreRun: %v", err)
	}
	status := stage.Start(context.Background(), tk, effDate)
	if status != runner.Success {
		t.Fatalf("expected Success, got %v", status)
	}

	if len(published.cards) != 1 {
		t.Fatalf("expected 1 published card, got %d: %+v", len(published.cards), published.cards)
	}
	card := published.cards[0]
	if card.Record.City != "Sapporo" || card.Prefecture != "北海道" {
		t.Fatalf("unexpected published card: %+v", card)
	}
	if len(card.Facilities) == 0 {
		t.Fatalf("expected at least one resolved facility, got none: %+v", card)
	}

	rec, err := records.Get(context.Background(), task.GlobalOwner, "2026-08-01")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if rec.State != stagerecord.Finished {
		t.Fatalf("expected state FINISHED, got %s", rec.State)
	}
}

func TestMigrator_Start_NoStagedRecordsReturnsNoWorkToDo(t *testing.T) {
	stage := &Migrator{
		Staging:     newFakeStaging(),
		Published:   &fakePublished{},
		Records:     newFakeStageRecordStore(),
		Prefectures: fixedPrefectureLister{},
	}
	tk := &task.Task{Domain: manholecard.Domain, Type: manholecard.TaskMigrate, Owner: task.GlobalOwner}

	status := stage.Start(context.Background(), tk, time.Now())
	if status != runner.NoWorkToDo {
		t.Fatalf("expected NoWorkToDo, got %v", status)
	}
}

func TestMigrator_Start_UnknownPrefectureOwnerIsSkippedNotFailed(t *testing.T) {
	staging := newFakeStaging()
	staging.buckets["atlantis"] = []manholecard.Record{{City: "Nowhere"}}
	published := &fakePublished{}
	records := newFakeStageRecordStore()

	stage := &Migrator{
		Staging:     staging,
		Published:   published,
		Records:     records,
		Prefectures: fixedPrefectureLister{},
	}
	tk := &task.Task{Domain: manholecard.Domain, Type: manholecard.TaskMigrate, Owner: task.GlobalOwner}
	effDate := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)

	status := stage.Start(context.Background(), tk, effDate)
	if status != runner.Success {
		t.Fatalf("expected Success, got %v", status)
	}
	if len(published.cards) != 0 {
		t.Fatalf("expected no cards published for unknown owner, got %+v", published.cards)
	}
}
