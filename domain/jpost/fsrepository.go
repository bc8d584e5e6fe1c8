package jpost

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/asksbj/jpstamp-pipeline/domain/jpost/geocode"
	"github.com/asksbj/jpstamp-pipeline/fsutils"
)

// FSRepository stores each (owner, date) bucket's stamps as a JSON file
// under root/<owner>/<date>.json, the Go equivalent of the distilled
// system's TMP_ROOT / key / data.json staging file
// (original_source/jpost/etl/ingestors/post_office.py's
// PostOfficeLocationIngestor._get_location_info).
type FSRepository struct {
	Root string

	mu sync.Mutex
}

func (r *FSRepository) path(owner, date string) string {
	return filepath.Join(r.Root, owner, date+".json")
}

func (r *FSRepository) SaveBasic(ctx context.Context, owner, date string, records []Stamp) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.write(owner, date, records)
}

func (r *FSRepository) Load(ctx context.Context, owner, date string) ([]Stamp, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.read(owner, date)
}

func (r *FSRepository) SaveDetail(ctx context.Context, owner, date, detailID string, info DetailInfo) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	records, err := r.read(owner, date)
	if err != nil {
		return err
	}
	for i := range records {
		if records[i].DetailID == detailID {
			records[i].Description = info.Description
			records[i].Author = info.Author
			records[i].Location = info.Location
		}
	}
	return r.write(owner, date, records)
}

func (r *FSRepository) SaveAddress(ctx context.Context, owner, date, postOfficeName string, addr *geocode.Address) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	records, err := r.read(owner, date)
	if err != nil {
		return err
	}
	for i := range records {
		if records[i].PostOfficeName == postOfficeName {
			records[i].Address = addr
		}
	}
	return r.write(owner, date, records)
}

func (r *FSRepository) read(owner, date string) ([]Stamp, error) {
	path := r.path(owner, date)
	if !fsutils.FileExists(path) {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("jpost: reading %s: %w", path, err)
	}
	var records []Stamp
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("jpost: decoding %s: %w", path, err)
	}
	return records, nil
}

func (r *FSRepository) write(owner, date string, records []Stamp) error {
	path := r.path(owner, date)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("jpost: creating directory for %s: %w", path, err)
	}
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("jpost: encoding %s: %w", path, err)
	}
	return os.WriteFile(path, data, 0o644)
}
