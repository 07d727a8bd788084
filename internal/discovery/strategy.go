// Package discovery determines which seasons a club has appearance data for.
package discovery

import (
	"regexp"
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/JakeFAU/appearances-scraper/internal/roster"
)

var seasonPattern = regexp.MustCompile(`\d{4}-\d{4}`)

// Plausible start years for seasons found in free page text.
const (
	MinStartYear = 2010
	MaxStartYear = 2030
)

// Strategy is one season-finding heuristic. Find reports ok=false when it found nothing.
type Strategy struct {
	Name string
	Find func(doc *goquery.Document) (seasons []roster.Season, ok bool)
}

// DefaultStrategies returns the heuristics in the order they are tried.
func DefaultStrategies() []Strategy {
	return []Strategy{
		{Name: "selector", Find: FromSelector},
		{Name: "links", Find: FromLinks},
		{Name: "text", Find: FromText},
	}
}

// FromSelector reads the option values of the first select control.
func FromSelector(doc *goquery.Document) ([]roster.Season, bool) {
	var seasons []roster.Season
	doc.Find("select").First().Find("option").Each(func(_ int, opt *goquery.Selection) {
		value, _ := opt.Attr("value")
		value = strings.TrimSpace(value)
		if roster.IsSeasonToken(value) {
			seasons = append(seasons, roster.Season(value))
		}
	})
	return seasons, len(seasons) > 0
}

// FromLinks extracts season tokens from links into per-season appearance pages.
func FromLinks(doc *goquery.Document) ([]roster.Season, bool) {
	var seasons []roster.Season
	doc.Find(`a[href*="/appearances/"]`).Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		if token := seasonPattern.FindString(href); token != "" {
			seasons = append(seasons, roster.Season(token))
		}
	})
	return seasons, len(seasons) > 0
}

// FromText scans the page text for season tokens with a plausible start year.
func FromText(doc *goquery.Document) ([]roster.Season, bool) {
	var seasons []roster.Season
	for _, token := range seasonPattern.FindAllString(doc.Text(), -1) {
		season := roster.Season(token)
		if year := season.StartYear(); year >= MinStartYear && year <= MaxStartYear {
			seasons = append(seasons, season)
		}
	}
	return seasons, len(seasons) > 0
}

// Finalize deduplicates seasons, adds current when missing and sorts most recent first.
// The result always contains current.
func Finalize(seasons []roster.Season, current roster.Season) []roster.Season {
	seen := make(map[roster.Season]struct{}, len(seasons)+1)
	out := make([]roster.Season, 0, len(seasons)+1)
	add := func(s roster.Season) {
		if _, ok := seen[s]; ok {
			return
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	for _, s := range seasons {
		add(s)
	}
	add(current)
	sort.Slice(out, func(i, j int) bool { return out[i] > out[j] })
	return out
}
