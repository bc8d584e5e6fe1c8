// Package stages implements the manhole_card domain's two runner.Stage
// values: a per-prefecture listing crawl and a domain-global migration
// that resolves staged records into a published catalog.
package stages

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/asksbj/jpstamp-pipeline/domain"
	"github.com/asksbj/jpstamp-pipeline/domain/manholecard"
	"github.com/asksbj/jpstamp-pipeline/internal/httpclient"
	"github.com/asksbj/jpstamp-pipeline/l3"
	"github.com/asksbj/jpstamp-pipeline/runner"
	"github.com/asksbj/jpstamp-pipeline/stagerecord"
	"github.com/asksbj/jpstamp-pipeline/task"
)

var logger = l3.Get()

// ManholeCardBaseURL is the listing page's base URL. Not present in the
// retrieved core/settings.py (only its name, MANHOLE_CARD_BASE_URL, was
// imported by ingestor.py); this is the Go equivalent target.
const ManholeCardBaseURL = "https://www.gk-p.jp/mhcard/"

var phoneMarkerRE = "電話"

// prefixedPrefID zero-pads a prefecture's numeric id to two digits,
// reproducing ManholeCardIngestor._crawl_prefecture's ad-hoc padding.
func prefixedPrefID(prefID int64) string {
	if prefID < 10 {
		return fmt.Sprintf("0%d", prefID)
	}
	return fmt.Sprintf("%d", prefID)
}

// cleanLocation drops everything from a phone-number marker onward,
// reproducing ManholeCardIngestor._clean_location's truncation.
func cleanLocation(td *goquery.Selection) string {
	if td == nil || td.Length() == 0 {
		return ""
	}
	var parts []string
	td.Contents().EachWithBreak(func(_ int, node *goquery.Selection) bool {
		text := strings.TrimSpace(node.Text())
		if text == "" {
			return true
		}
		lower := strings.ToLower(text)
		if strings.Contains(text, phoneMarkerRE) || strings.Contains(lower, "tel") {
			return false
		}
		parts = append(parts, text)
		return true
	})
	return strings.Join(parts, "\n")
}

// parseManholeCardTable reproduces ManholeCardIngestor._parse_table's
// selector walk over table.table1.cr.
func parseManholeCardTable(html []byte) ([]manholecard.Record, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("stages: parsing manhole card table: %w", err)
	}

	table := doc.Find("table.table1.cr").First()
	if table.Length() == 0 {
		return nil, nil
	}

	body := table.Find("tbody")
	if body.Length() == 0 {
		body = table
	}

	var records []manholecard.Record
	body.Find("tr").Each(func(_ int, tr *goquery.Selection) {
		tds := tr.Find("td")
		if tds.Length() < 6 {
			return
		}

		city := strings.TrimSpace(tds.Eq(0).Text())
		series := strings.TrimSpace(tds.Eq(2).Text())
		releaseDate := strings.TrimSpace(tds.Eq(3).Text())
		location := cleanLocation(tds.Eq(4))
		distributionTime := strings.TrimSpace(tds.Eq(5).Text())

		imgSrc, _ := tds.Eq(1).Find("img").Attr("src")
		imgFilename := ""
		if strings.TrimSpace(imgSrc) != "" {
			parts := strings.Split(strings.TrimSpace(imgSrc), "/")
			imgFilename = parts[len(parts)-1]
		}

		records = append(records, manholecard.Record{
			City:             city,
			Series:           series,
			ReleaseDate:      releaseDate,
			Location:         location,
			DistributionTime: distributionTime,
			ImageFilename:    imgFilename,
		})
	})

	return records, nil
}

// Ingestor crawls one prefecture's manhole card listing page and stores
// the parsed rows as the BASIC stage record for (owner, date), grounded
// on ManholeCardIngestor._crawl_prefecture.
type Ingestor struct {
	Client      *httpclient.Client
	Staging     manholecard.StagingRepository
	Records     stagerecord.Store
	Prefectures domain.PrefectureLister
	// BaseURL overrides ManholeCardBaseURL; tests point it at an
	// httptest.Server.
	BaseURL string
}

func (s *Ingestor) baseURL() string {
	if s.BaseURL != "" {
		return s.BaseURL
	}
	return ManholeCardBaseURL
}

func (s *Ingestor) prefecture(ctx context.Context, owner string) (*domain.Prefecture, error) {
	prefs, err := s.Prefectures.List(ctx)
	if err != nil {
		return nil, err
	}
	for i := range prefs {
		if prefs[i].EnName == owner {
			return &prefs[i], nil
		}
	}
	return nil, fmt.Errorf("stages: unknown prefecture owner %q", owner)
}

func (s *Ingestor) PreRun(ctx context.Context, t *task.Task, effectiveDate time.Time) error {
	_, err := s.prefecture(ctx, t.Owner)
	return err
}

func (s *Ingestor) Start(ctx context.Context, t *task.Task, effectiveDate time.Time) runner.Status {
	date := effectiveDate.Format("2006-01-02")

	pref, err := s.prefecture(ctx, t.Owner)
	if err != nil {
		logger.ErrorF("manholecard ingestor: %v", err)
		return runner.Failure
	}

	rec, err := s.Records.GetOrCreate(ctx, t.Owner, date)
	if err != nil {
		logger.ErrorF("manholecard ingestor: GetOrCreate(%s, %s): %v", t.Owner, date, err)
		return runner.Failure
	}
	if rec.State.Reached(stagerecord.Basic) {
		return runner.Success
	}

	url := fmt.Sprintf("%s?pref=%s", s.baseURL(), prefixedPrefID(pref.PrefID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		logger.ErrorF("manholecard ingestor: building request for %s: %v", url, err)
		return runner.Failure
	}

	body, err := s.Client.Execute(req)
	if err != nil {
		logger.WarnF("manholecard ingestor: fetching %s: %v", url, err)
		return runner.Failure
	}

	records, err := parseManholeCardTable(body)
	if err != nil {
		logger.ErrorF("manholecard ingestor: %v", err)
		return runner.Failure
	}
	if len(records) == 0 {
		logger.InfoF("manholecard ingestor: no records parsed for %s", t.Owner)
		return runner.Failure
	}

	if err := s.Staging.SaveRecords(ctx, t.Owner, records); err != nil {
		logger.ErrorF("manholecard ingestor: saving %d records for %s: %v", len(records), t.Owner, err)
		return runner.Failure
	}

	ok, err := s.Records.CASState(ctx, rec.ID, rec.State, stagerecord.Basic)
	if err != nil {
		logger.ErrorF("manholecard ingestor: CASState(%d): %v", rec.ID, err)
		return runner.Failure
	}
	if !ok {
		cur, err := s.Records.Get(ctx, t.Owner, date)
		if err == nil && cur.State.Reached(stagerecord.Basic) {
			return runner.Success
		}
		logger.WarnF("manholecard ingestor: lost CAS race advancing %s/%s to BASIC", t.Owner, date)
		return runner.Failure
	}

	logger.InfoF("manholecard ingestor: %s/%s staged %d records", t.Owner, date, len(records))
	return runner.Success
}
