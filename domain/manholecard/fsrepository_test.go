package manholecard

import (
	"context"
	"testing"
)

func TestFSStagingRepository_SaveThenLoadAll(t *testing.T) {
	repo := &FSStagingRepository{Root: t.TempDir()}
	ctx := context.Background()

	if err := repo.SaveRecords(ctx, "hokkaido", []Record{{City: "Sapporo", Series: "A"}}); err != nil {
		t.Fatalf("SaveRecords: %v", err)
	}
	if err := repo.SaveRecords(ctx, "aomori", []Record{{City: "Aomori", Series: "B"}}); err != nil {
		t.Fatalf("SaveRecords: %v", err)
	}

	all, err := repo.LoadAll(ctx)
	if err != nil {
		t.Fatalf("LoadAll: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 owners, got %d", len(all))
	}
	if len(all["hokkaido"]) != 1 || all["hokkaido"][0].City != "Sapporo" {
		t.Fatalf("unexpected hokkaido records: %+v", all["hokkaido"])
	}
}

func TestFSStagingRepository_LoadAll_EmptyRootReturnsEmptyMap(t *testing.T) {
	repo := &FSStagingRepository{Root: t.TempDir() + "/does-not-exist"}
	all, err := repo.LoadAll(context.Background())
	if err != nil {
		t.Fatalf("LoadAll: %v", err)
	}
	if len(all) != 0 {
		t.Fatalf("expected empty map, got %+v", all)
	}
}

func TestFSPublishedRepository_PublishThenLoad(t *testing.T) {
	repo := &FSPublishedRepository{Root: t.TempDir()}
	cards := []PublishedCard{
		{Record: Record{City: "Sapporo", Series: "A"}, Prefecture: "北海道", Facilities: []Facility{{Name: "Sapporo City Hall", Address: "北海道札幌市"}}},
	}
	if err := repo.Publish(context.Background(), cards); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	got, err := repo.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(got) != 1 || got[0].Record.City != "Sapporo" {
		t.Fatalf("unexpected published cards: %+v", got)
	}
}
