package task

import (
	"context"
	"testing"
	"time"
)

// fakeStore is an in-memory Store used to test Registry logic without a
// database.
type fakeStore struct {
	rows    map[string]*Task
	nextID  int64
	ensured int
}

func newFakeStore() *fakeStore {
	return &fakeStore{rows: make(map[string]*Task)}
}

func key(domain, taskType, owner string) string {
	return domain + "|" + taskType + "|" + owner
}

func (f *fakeStore) PickOldest(ctx context.Context, domain string) (*Task, error) {
	var oldest *Task
	for _, t := range f.rows {
		if t.Domain != domain {
			continue
		}
		if oldest == nil || t.LastUpdate.Before(oldest.LastUpdate) {
			oldest = t
		}
	}
	if oldest == nil {
		return nil, ErrNotFound
	}
	cp := *oldest
	return &cp, nil
}

func (f *fakeStore) Lease(ctx context.Context, t *Task, observedAt time.Time) (bool, error) {
	row, ok := f.rows[key(t.Domain, t.Type, t.Owner)]
	if !ok {
		return false, ErrNotFound
	}
	if !row.LastUpdate.Equal(observedAt) {
		return false, nil
	}
	row.LastUpdate = time.Now().UTC()
	t.LastUpdate = row.LastUpdate
	return true, nil
}

func (f *fakeStore) Complete(ctx context.Context, t *Task, date string) error {
	row, ok := f.rows[key(t.Domain, t.Type, t.Owner)]
	if !ok {
		return ErrNotFound
	}
	row.Date = &date
	t.Date = &date
	return nil
}

func (f *fakeStore) EnsureExists(ctx context.Context, domain, taskType, owner string, now time.Time) error {
	f.ensured++
	k := key(domain, taskType, owner)
	if _, ok := f.rows[k]; ok {
		return nil
	}
	f.nextID++
	f.rows[k] = &Task{ID: f.nextID, Domain: domain, Type: taskType, Owner: owner, LastUpdate: now}
	return nil
}

func (f *fakeStore) GetByTypeAndOwner(ctx context.Context, domain, taskType, owner string) (*Task, error) {
	row, ok := f.rows[key(domain, taskType, owner)]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *row
	return &cp, nil
}

func TestRegistry_HealthCheck_CreatesOneRowPerDeclaredPair(t *testing.T) {
	store := newFakeStore()
	reg := &Registry{
		Domain: "jpost",
		Store:  store,
		Owners: func(ctx context.Context) ([]string, error) {
			return []string{"Hokkaido", "Tokyo"}, nil
		},
		OwnerTaskTypes:  []string{"INGEST_BASIC", "INGEST_DETAIL"},
		GlobalTaskTypes: []string{"MIGRATE"},
	}

	if err := reg.HealthCheck(context.Background()); err != nil {
		t.Fatalf("HealthCheck: %v", err)
	}

	want := []string{
		key("jpost", "INGEST_BASIC", "Hokkaido"),
		key("jpost", "INGEST_BASIC", "Tokyo"),
		key("jpost", "INGEST_DETAIL", "Hokkaido"),
		key("jpost", "INGEST_DETAIL", "Tokyo"),
		key("jpost", "MIGRATE", GlobalOwner),
	}
	if len(store.rows) != len(want) {
		t.Fatalf("expected %d rows, got %d", len(want), len(store.rows))
	}
	for _, k := range want {
		if _, ok := store.rows[k]; !ok {
			t.Errorf("missing expected row %q", k)
		}
	}
}

func TestRegistry_HealthCheck_IsIdempotent(t *testing.T) {
	store := newFakeStore()
	reg := &Registry{
		Domain: "manhole_card",
		Store:  store,
		Owners: func(ctx context.Context) ([]string, error) {
			return []string{"Aichi"}, nil
		},
		OwnerTaskTypes:  []string{"INGEST"},
		GlobalTaskTypes: []string{"MIGRATE"},
	}

	if err := reg.HealthCheck(context.Background()); err != nil {
		t.Fatalf("first HealthCheck: %v", err)
	}
	rowsAfterFirst := len(store.rows)

	if err := reg.HealthCheck(context.Background()); err != nil {
		t.Fatalf("second HealthCheck: %v", err)
	}
	if len(store.rows) != rowsAfterFirst {
		t.Fatalf("expected no new rows on second run, had %d now have %d", rowsAfterFirst, len(store.rows))
	}
}
