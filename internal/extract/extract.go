// Package extract turns appearance pages into player records.
package extract

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/JakeFAU/appearances-scraper/internal/roster"
)

// AppearancePath is the path segment that marks links to a player's appearance detail.
const AppearancePath = "/appearances/"

// Extractor parses page markup into player records.
type Extractor interface {
	Extract(markup string) ([]roster.PlayerRecord, error)
}

// TableExtractor reads the first table that links to player appearance pages.
// Appearance counts are the first numeric cell after the name that falls within
// [Min, Max]; failing that, the first positive numeric cell.
type TableExtractor struct {
	Min int
	Max int
}

// NewTableExtractor returns an extractor with the plausible range [1, 50].
func NewTableExtractor() TableExtractor {
	return TableExtractor{Min: 1, Max: 50}
}

// Extract returns the player records found in markup. A page without a roster
// table yields an empty slice and no error.
func (e TableExtractor) Extract(markup string) ([]roster.PlayerRecord, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return nil, fmt.Errorf("parse markup: %w", err)
	}
	return e.ExtractDocument(doc), nil
}

// ExtractDocument is Extract for an already parsed document.
func (e TableExtractor) ExtractDocument(doc *goquery.Document) []roster.PlayerRecord {
	table := rosterTable(doc)
	if table == nil {
		return []roster.PlayerRecord{}
	}

	records := []roster.PlayerRecord{}
	table.Find("tr").Each(func(i int, row *goquery.Selection) {
		if i == 0 {
			return
		}
		if rec, ok := e.row(row); ok {
			records = append(records, rec)
		}
	})
	return records
}

func rosterTable(doc *goquery.Document) *goquery.Selection {
	var found *goquery.Selection
	doc.Find("table").EachWithBreak(func(_ int, table *goquery.Selection) bool {
		if table.Find(appearanceLinkSelector).Length() > 0 {
			found = table
			return false
		}
		return true
	})
	return found
}

const appearanceLinkSelector = `a[href*="` + AppearancePath + `"]`

func (e TableExtractor) row(row *goquery.Selection) (roster.PlayerRecord, bool) {
	cells := row.ChildrenFiltered("td, th")
	if cells.Length() < 2 {
		return roster.PlayerRecord{}, false
	}
	link := row.Find("a[href]").First()
	href, _ := link.Attr("href")
	if !strings.Contains(href, AppearancePath) {
		return roster.PlayerRecord{}, false
	}
	rec := roster.PlayerRecord{
		Name:      strings.TrimSpace(link.Text()),
		SourceURL: href,
		SourceID:  lastSegment(href),
	}

	nameCell := 0
	cells.EachWithBreak(func(i int, cell *goquery.Selection) bool {
		if cell.Find("a[href]").Length() > 0 {
			nameCell = i
			return false
		}
		return true
	})
	rec.Appearances = e.appearances(cells.Slice(nameCell+1, cells.Length()))

	if rec.Name == "" || rec.Appearances <= 0 {
		return roster.PlayerRecord{}, false
	}
	return rec, true
}

func (e TableExtractor) appearances(cells *goquery.Selection) int {
	var numbers []int
	cells.Each(func(_ int, cell *goquery.Selection) {
		if n, ok := wholeNumber(strings.TrimSpace(cell.Text())); ok {
			numbers = append(numbers, n)
		}
	})
	for _, n := range numbers {
		if n >= e.Min && n <= e.Max {
			return n
		}
	}
	for _, n := range numbers {
		if n > 0 {
			return n
		}
	}
	return 0
}

// wholeNumber accepts only strings made entirely of ASCII digits.
func wholeNumber(s string) (int, bool) {
	if s == "" {
		return 0, false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return 0, false
		}
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, false
	}
	return n, true
}

func lastSegment(href string) string {
	if i := strings.IndexAny(href, "?#"); i >= 0 {
		href = href[:i]
	}
	href = strings.TrimRight(href, "/")
	if i := strings.LastIndex(href, "/"); i >= 0 {
		return href[i+1:]
	}
	return href
}
