package jpost

import (
	"context"

	"github.com/asksbj/jpstamp-pipeline/domain/jpost/geocode"
)

// Stamp is one fuke post as scraped from a prefecture's listing page,
// grounded on FukeIngestorMixin._parse_stamp_posts's field set
// (original_source/jpost/etl/ingestors/fuke.py).
type Stamp struct {
	DetailID       string           `json:"detail_id"`
	PostOfficeName string           `json:"post_office_name"`
	FukeName       string           `json:"fuke_name"`
	Abolition      bool             `json:"abolition"`
	ImageURL       string           `json:"image_url"`
	Date           string           `json:"date"`
	Prefecture     string           `json:"prefecture"`
	Description    string           `json:"description,omitempty"`
	Author         string           `json:"author,omitempty"`
	Location       string           `json:"location,omitempty"`
	Address        *geocode.Address `json:"address,omitempty"`
}

// DetailInfo is the per-post page's extracted fields, grounded on
// FukeDetailIngestor.DETAIL_LABEL_MAPPING.
type DetailInfo struct {
	Description string
	Author      string
	Location    string
}

// Repository is the narrow persistence boundary every jpost stage talks
// to. Domain data (the scraped stamps themselves) sits outside this
// project's coordination core, per spec.md §1 — only the shape of the
// interface is prescribed, not its backing store.
type Repository interface {
	// SaveBasic replaces owner's stamp list for date with records.
	SaveBasic(ctx context.Context, owner, date string, records []Stamp) error
	// Load returns owner's stamp list for date.
	Load(ctx context.Context, owner, date string) ([]Stamp, error)
	// SaveDetail merges detail info into the record identified by
	// detailID within owner's date bucket.
	SaveDetail(ctx context.Context, owner, date, detailID string, info DetailInfo) error
	// SaveAddress attaches a geocoded address to every record in owner's
	// date bucket whose post office name matches postOfficeName.
	SaveAddress(ctx context.Context, owner, date, postOfficeName string, addr *geocode.Address) error
}
