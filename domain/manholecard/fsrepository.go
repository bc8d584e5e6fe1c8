package manholecard

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/asksbj/jpstamp-pipeline/fsutils"
)

// FSStagingRepository stores each owner's staged records as
// root/<owner>/data.json, the Go equivalent of
// ManholeCardIngestor._crawl_prefecture's TMP_ROOT / manhole_card / key /
// data.json staging convention (no per-date partitioning — the original
// rewrites the directory wholesale on every crawl).
type FSStagingRepository struct {
	Root string

	mu sync.Mutex
}

func (r *FSStagingRepository) path(owner string) string {
	return filepath.Join(r.Root, owner, "data.json")
}

func (r *FSStagingRepository) SaveRecords(ctx context.Context, owner string, records []Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	path := r.path(owner)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("manholecard: creating directory for %s: %w", path, err)
	}
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("manholecard: encoding %s: %w", path, err)
	}
	return os.WriteFile(path, data, 0o644)
}

func (r *FSStagingRepository) LoadAll(ctx context.Context) (map[string][]Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entries, err := os.ReadDir(r.Root)
	if os.IsNotExist(err) {
		return map[string][]Record{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("manholecard: reading %s: %w", r.Root, err)
	}

	result := make(map[string][]Record, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		owner := entry.Name()
		path := r.path(owner)
		if !fsutils.FileExists(path) {
			continue
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("manholecard: reading %s: %w", path, err)
		}
		var records []Record
		if err := json.Unmarshal(data, &records); err != nil {
			return nil, fmt.Errorf("manholecard: decoding %s: %w", path, err)
		}
		result[owner] = records
	}
	return result, nil
}

// FSPublishedRepository writes the migration stage's resolved catalog to
// a single root/published.json file.
type FSPublishedRepository struct {
	Root string

	mu sync.Mutex
}

func (r *FSPublishedRepository) path() string {
	return filepath.Join(r.Root, "published.json")
}

func (r *FSPublishedRepository) Publish(ctx context.Context, cards []PublishedCard) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	path := r.path()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("manholecard: creating directory for %s: %w", path, err)
	}
	data, err := json.MarshalIndent(cards, "", "  ")
	if err != nil {
		return fmt.Errorf("manholecard: encoding %s: %w", path, err)
	}
	return os.WriteFile(path, data, 0o644)
}

// Load reads back a previously published catalog; used by tests and by
// anything downstream wanting to inspect the last migration's output.
func (r *FSPublishedRepository) Load() ([]PublishedCard, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	path := r.path()
	if !fsutils.FileExists(path) {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("manholecard: reading %s: %w", path, err)
	}
	var cards []PublishedCard
	if err := json.Unmarshal(data, &cards); err != nil {
		return nil, fmt.Errorf("manholecard: decoding %s: %w", path, err)
	}
	return cards, nil
}
