// Package pagination fetches a club-season appearance listing and at most one continuation page.
package pagination

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/JakeFAU/appearances-scraper/internal/extract"
	"github.com/JakeFAU/appearances-scraper/internal/pacing"
	"github.com/JakeFAU/appearances-scraper/internal/roster"
)

// MaxPage bounds the page numbers considered from pagination controls.
const MaxPage = 10

// ErrSeasonNotApplicable reports that the first page could not be fetched, which
// usually means the club has no data for the season.
var ErrSeasonNotApplicable = errors.New("season not applicable: first page unavailable")

var pageLinkSelectors = []string{
	`a[href*="?page="]`,
	`.pagination a`,
	`.page-numbers a`,
	`a[href*="page="]`,
}

// CandidatePages returns the sorted, distinct page numbers advertised by pagination
// links, never above MaxPage.
func CandidatePages(doc *goquery.Document) []int {
	seen := map[int]struct{}{}
	for _, sel := range pageLinkSelectors {
		doc.Find(sel).Each(func(_ int, a *goquery.Selection) {
			href, _ := a.Attr("href")
			if n, ok := pageParam(href); ok && n >= 1 && n <= MaxPage {
				seen[n] = struct{}{}
			}
		})
	}
	doc.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		n, err := strconv.Atoi(strings.TrimSpace(a.Text()))
		if err == nil && n > 1 && n <= MaxPage {
			seen[n] = struct{}{}
		}
	})

	pages := make([]int, 0, len(seen))
	for n := range seen {
		pages = append(pages, n)
	}
	sort.Ints(pages)
	return pages
}

func pageParam(href string) (int, bool) {
	i := strings.Index(href, "?")
	if i < 0 {
		return 0, false
	}
	q, err := url.ParseQuery(href[i+1:])
	if err != nil {
		return 0, false
	}
	n, err := strconv.Atoi(q.Get("page"))
	if err != nil {
		return 0, false
	}
	return n, true
}

// Fetcher retrieves a page with a bounded number of attempts.
type Fetcher interface {
	Fetch(ctx context.Context, url string, attempts int) (string, error)
}

// Config configures a Walker.
type Config struct {
	// Attempts is the retry budget passed to the fetcher for each page.
	Attempts int
	// PageDelay is the pause before fetching the continuation page.
	PageDelay time.Duration
}

// Result is what a walk collected.
type Result struct {
	Records []roster.PlayerRecord
	Pages   int
	// Markup is the last page fetched successfully.
	Markup string
}

// ContentSize is the size in bytes of the last page fetched.
func (r Result) ContentSize() int {
	return len(r.Markup)
}

// Walker fetches page one of a listing and, when pagination is advertised, page two.
type Walker struct {
	cfg       Config
	fetcher   Fetcher
	extractor extract.Extractor
	pauser    pacing.Pauser
	logger    *zap.Logger
}

// NewWalker builds a Walker. A nil pauser uses the real clock.
func NewWalker(cfg Config, fetcher Fetcher, extractor extract.Extractor, pauser pacing.Pauser, logger *zap.Logger) *Walker {
	if pauser == nil {
		pauser = pacing.Timer{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Walker{cfg: cfg, fetcher: fetcher, extractor: extractor, pauser: pauser, logger: logger.Named("pagination")}
}

// Walk fetches baseURL and at most one continuation page. Failing to fetch the first
// page returns ErrSeasonNotApplicable; failing on the continuation keeps the first page.
func (w *Walker) Walk(ctx context.Context, baseURL string) (Result, error) {
	first, err := w.fetcher.Fetch(ctx, baseURL, w.cfg.Attempts)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %w", ErrSeasonNotApplicable, err)
	}
	res := Result{Pages: 1, Markup: first}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(first))
	if err != nil {
		return res, fmt.Errorf("parse first page: %w", err)
	}
	records, err := w.extractor.Extract(first)
	if err != nil {
		return res, fmt.Errorf("extract first page: %w", err)
	}
	res.Records = append(res.Records, records...)
	w.logger.Debug("page extracted", zap.String("url", baseURL), zap.Int("page", 1), zap.Int("records", len(records)))

	pages := CandidatePages(doc)
	if len(pages) == 0 || pages[len(pages)-1] <= 1 {
		return res, nil
	}

	next := PageURL(baseURL, 2)
	if err := w.pauser.Pause(ctx, w.cfg.PageDelay); err != nil {
		return res, nil
	}
	second, err := w.fetcher.Fetch(ctx, next, w.cfg.Attempts)
	if err != nil {
		w.logger.Warn("continuation page failed, keeping first page",
			zap.String("url", next), zap.Error(err))
		return res, nil
	}
	res.Pages = 2
	res.Markup = second
	records, err = w.extractor.Extract(second)
	if err != nil {
		w.logger.Warn("continuation page unparsable", zap.String("url", next), zap.Error(err))
		return res, nil
	}
	res.Records = append(res.Records, records...)
	w.logger.Debug("page extracted", zap.String("url", next), zap.Int("page", 2), zap.Int("records", len(records)))
	return res, nil
}

// PageURL appends the page query parameter to base.
func PageURL(base string, page int) string {
	sep := "?"
	if strings.Contains(base, "?") {
		sep = "&"
	}
	return base + sep + "page=" + strconv.Itoa(page)
}
