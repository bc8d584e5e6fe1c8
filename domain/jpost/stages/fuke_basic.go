// Package stages implements the concrete runner.Stage values for the
// jpost domain: listing, detail, and location enrichment, each grounded
// on original_source/jpost/etl/ingestors/fuke.py and post_office.py.
package stages

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/asksbj/jpstamp-pipeline/domain/jpost"
	"github.com/asksbj/jpstamp-pipeline/internal/httpclient"
	"github.com/asksbj/jpstamp-pipeline/l3"
	"github.com/asksbj/jpstamp-pipeline/runner"
	"github.com/asksbj/jpstamp-pipeline/stagerecord"
	"github.com/asksbj/jpstamp-pipeline/task"
)

var logger = l3.Get()

// Base URLs for the post office fuke listing pages, grounded on
// core/settings.py's JPOST_BASE_URL and FUKE_BASE_URL.
const (
	JpostBaseURL = "https://www.post.japanpost.jp"
	FukeBaseURL  = JpostBaseURL + "/kitte_hagaki/stamp/fuke"
)

var abolitionMarker = "廃止" // JPTextEnum.ABOLITION, original_source/jpost/enums/text.py

var detailIDRE = regexp.MustCompile(`id=(\d+)`)

// normalizeImageURL reproduces FukeBasicIngestor.normalize_image_url's
// four-way branch over an <img> tag's raw src attribute.
func normalizeImageURL(src string) string {
	src = strings.TrimSpace(src)
	src = strings.ReplaceAll(src, "/./", "/")
	if src == "" {
		return ""
	}
	if strings.HasPrefix(src, "http") {
		return src
	}
	if strings.HasPrefix(src, "//") {
		return "https:" + src
	}
	if strings.HasPrefix(src, "/") {
		return JpostBaseURL + src
	}
	return FukeBaseURL + "/" + src
}

// parseStampPosts reproduces FukeBasicIngestor._parse_stamp_posts's
// selector walk over a prefecture's fuke listing page.
func parseStampPosts(html []byte) ([]jpost.Stamp, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("stages: parsing fuke listing: %w", err)
	}

	var stamps []jpost.Stamp
	doc.Find("div.post").Each(func(_ int, post *goquery.Selection) {
		linkHref, _ := post.Find("span.link a[href*='detail.php']").Attr("href")
		match := detailIDRE.FindStringSubmatch(linkHref)
		if len(match) != 2 {
			return
		}
		detailID := match[1]

		dateVal := strings.TrimSpace(strings.ReplaceAll(post.Find("span.date").First().Text(), "\u00a0", ""))
		imgSrc, _ := post.Find("dt img").Attr("src")
		fukeName := strings.TrimSpace(post.Find("dt img").AttrOr("alt", ""))
		postOfficeName := strings.TrimSpace(post.Find("dd.title").First().Text())
		abolitionText := strings.TrimSpace(post.Find("dd.abolition").First().Text())
		prefectureJA := strings.TrimSpace(post.Find("li.pre").First().Text())

		stamps = append(stamps, jpost.Stamp{
			DetailID:       detailID,
			PostOfficeName: postOfficeName,
			FukeName:       fukeName,
			Abolition:      strings.Contains(abolitionText, abolitionMarker),
			ImageURL:       normalizeImageURL(imgSrc),
			Date:           dateVal,
			Prefecture:     prefectureJA,
		})
	})

	return stamps, nil
}

// FukeBasic lists a prefecture's fuke posts and stores them as the BASIC
// stage record for (owner, date), grounded on FukeBasicIngestor's fetch
// and _parse_stamp_posts.
type FukeBasic struct {
	Client      *httpclient.Client
	Repo        jpost.Repository
	Records     stagerecord.Store
	Prefectures jpost.PrefectureLister
}

func (s *FukeBasic) prefecture(ctx context.Context, owner string) (*jpost.Prefecture, error) {
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

func (s *FukeBasic) PreRun(ctx context.Context, t *task.Task, effectiveDate time.Time) error {
	_, err := s.prefecture(ctx, t.Owner)
	return err
}

func (s *FukeBasic) Start(ctx context.Context, t *task.Task, effectiveDate time.Time) runner.Status {
	date := effectiveDate.Format("2006-01-02")

	pref, err := s.prefecture(ctx, t.Owner)
	if err != nil {
		logger.ErrorF("fuke_basic: %v", err)
		return runner.Failure
	}

	rec, err := s.Records.GetOrCreate(ctx, t.Owner, date)
	if err != nil {
		logger.ErrorF("fuke_basic: GetOrCreate(%s, %s): %v", t.Owner, date, err)
		return runner.Failure
	}
	if rec.State.Reached(stagerecord.Basic) {
		return runner.Success
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pref.JpostURL, nil)
	if err != nil {
		logger.ErrorF("fuke_basic: building request for %s: %v", pref.JpostURL, err)
		return runner.Failure
	}

	body, err := s.Client.Execute(req)
	if err != nil {
		logger.WarnF("fuke_basic: fetching %s: %v", pref.JpostURL, err)
		return runner.Failure
	}

	stamps, err := parseStampPosts(body)
	if err != nil {
		logger.ErrorF("fuke_basic: %v", err)
		return runner.Failure
	}
	for i := range stamps {
		stamps[i].Date = date
	}

	if err := s.Repo.SaveBasic(ctx, t.Owner, date, stamps); err != nil {
		logger.ErrorF("fuke_basic: saving %d stamps for %s/%s: %v", len(stamps), t.Owner, date, err)
		return runner.Failure
	}

	ok, err := s.Records.CASState(ctx, rec.ID, rec.State, stagerecord.Basic)
	if err != nil {
		logger.ErrorF("fuke_basic: CASState(%d): %v", rec.ID, err)
		return runner.Failure
	}
	if !ok {
		cur, err := s.Records.Get(ctx, t.Owner, date)
		if err == nil && cur.State.Reached(stagerecord.Basic) {
			return runner.Success
		}
		logger.WarnF("fuke_basic: lost CAS race advancing %s/%s to BASIC", t.Owner, date)
		return runner.Failure
	}

	logger.InfoF("fuke_basic: %s/%s listed %d posts", t.Owner, date, len(stamps))
	return runner.Success
}
