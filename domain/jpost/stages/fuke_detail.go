package stages

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/asksbj/jpstamp-pipeline/domain/jpost"
	"github.com/asksbj/jpstamp-pipeline/internal/httpclient"
	"github.com/asksbj/jpstamp-pipeline/runner"
	"github.com/asksbj/jpstamp-pipeline/stagerecord"
	"github.com/asksbj/jpstamp-pipeline/task"
)

// detailLabelMapping reproduces FukeDetailIngestor.DETAIL_LABEL_MAPPING's
// Japanese field labels as they appear on the post's own detail page.
var detailLabelMapping = map[string]string{
	"意匠図案説明": "description",
	"図案作成者名": "author",
	"開設場所":   "location",
}

// detailPageURL mirrors the jpost site's own detail.php link shape, as
// crawled from span.link a[href*='detail.php'] in the listing page.
func detailPageURL(detailID string) string {
	return fmt.Sprintf("%s/detail.php?id=%s", FukeBaseURL, detailID)
}

func parseDetailInfo(html []byte) (jpost.DetailInfo, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return jpost.DetailInfo{}, fmt.Errorf("stages: parsing fuke detail: %w", err)
	}

	fields := map[string]string{}
	doc.Find("div.stampdata dl").Each(func(_ int, dl *goquery.Selection) {
		dt := dl.Find("dt").First()
		dd := dl.Find("dd").First()
		if dt.Length() == 0 || dd.Length() == 0 {
			return
		}
		label := strings.TrimSpace(dt.Text())
		key, ok := detailLabelMapping[label]
		if !ok {
			return
		}
		fields[key] = strings.TrimSpace(dd.Text())
	})

	return jpost.DetailInfo{
		Description: fields["description"],
		Author:      fields["author"],
		Location:    fields["location"],
	}, nil
}

// FukeDetail fetches each BASIC-stage post's own detail page and merges
// its description/author/location fields in, advancing the stage record
// to DETAILED, grounded on FukeDetailIngestor._parse_detail_info.
type FukeDetail struct {
	Client  *httpclient.Client
	Repo    jpost.Repository
	Records stagerecord.Store
}

// PreRun only guards against unexpected backing-store failures. Whether
// the upstream BASIC stage has actually run yet is not an error — it's
// the routine, expected case on a fresh day before INGEST_BASIC has had
// a chance to run, and Start reports it as NotReadyForWork.
func (s *FukeDetail) PreRun(ctx context.Context, t *task.Task, effectiveDate time.Time) error {
	date := effectiveDate.Format("2006-01-02")
	_, err := s.Records.Get(ctx, t.Owner, date)
	if err != nil && !errors.Is(err, stagerecord.ErrNotFound) {
		return fmt.Errorf("fuke_detail: loading stage record for %s/%s: %w", t.Owner, date, err)
	}
	return nil
}

func (s *FukeDetail) Start(ctx context.Context, t *task.Task, effectiveDate time.Time) runner.Status {
	date := effectiveDate.Format("2006-01-02")

	rec, err := s.Records.Get(ctx, t.Owner, date)
	if err != nil {
		if errors.Is(err, stagerecord.ErrNotFound) {
			return runner.NotReadyForWork
		}
		logger.ErrorF("fuke_detail: %v", err)
		return runner.Failure
	}
	if rec.State.Reached(stagerecord.Detailed) {
		return runner.Success
	}
	if !rec.State.Reached(stagerecord.Basic) {
		return runner.NotReadyForWork
	}

	stamps, err := s.Repo.Load(ctx, t.Owner, date)
	if err != nil {
		logger.ErrorF("fuke_detail: loading %s/%s: %v", t.Owner, date, err)
		return runner.Failure
	}

	failed := 0
	for _, stamp := range stamps {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, detailPageURL(stamp.DetailID), nil)
		if err != nil {
			logger.ErrorF("fuke_detail: building request for %s: %v", stamp.DetailID, err)
			failed++
			continue
		}
		body, err := s.Client.Execute(req)
		if err != nil {
			logger.WarnF("fuke_detail: fetching detail %s: %v", stamp.DetailID, err)
			failed++
			continue
		}
		info, err := parseDetailInfo(body)
		if err != nil {
			logger.WarnF("fuke_detail: parsing detail %s: %v", stamp.DetailID, err)
			failed++
			continue
		}
		if err := s.Repo.SaveDetail(ctx, t.Owner, date, stamp.DetailID, info); err != nil {
			logger.ErrorF("fuke_detail: saving detail %s: %v", stamp.DetailID, err)
			failed++
		}
	}
	if failed > 0 && failed == len(stamps) {
		return runner.Failure
	}

	ok, err := s.Records.CASState(ctx, rec.ID, rec.State, stagerecord.Detailed)
	if err != nil {
		logger.ErrorF("fuke_detail: CASState(%d): %v", rec.ID, err)
		return runner.Failure
	}
	if !ok {
		cur, err := s.Records.Get(ctx, t.Owner, date)
		if err == nil && cur.State.Reached(stagerecord.Detailed) {
			return runner.Success
		}
		logger.WarnF("fuke_detail: lost CAS race advancing %s/%s to DETAILED", t.Owner, date)
		return runner.Failure
	}

	logger.InfoF("fuke_detail: %s/%s enriched %d/%d posts", t.Owner, date, len(stamps)-failed, len(stamps))
	return runner.Success
}
