// Package roster holds the domain types shared by the scraping pipeline: clubs,
// seasons, player records, season results and the failure ledger.
package roster

import (
	"fmt"
	"strconv"
	"strings"
)

// Club is a club to scrape, identified by display name. Immutable once loaded.
type Club struct {
	Name string
	Slug string
}

// NewClub builds a Club whose slug is derived from name.
func NewClub(name string) Club {
	return Club{Name: name, Slug: Slugify(name)}
}

// String returns the club display name.
func (c Club) String() string {
	return c.Name
}

var slugReplacer = strings.NewReplacer(" ", "-", "_", "-")

// Slugify lowercases name and maps spaces and underscores to hyphens.
func Slugify(name string) string {
	return slugReplacer.Replace(strings.ToLower(name))
}

// Season is a competition year token of the form YYYY-YYYY.
type Season string

// ParseSeason validates token and returns it as a Season.
func ParseSeason(token string) (Season, error) {
	if !IsSeasonToken(token) {
		return "", fmt.Errorf("parse season %q: expected YYYY-YYYY", token)
	}
	return Season(token), nil
}

// IsSeasonToken reports whether s has the YYYY-YYYY shape.
func IsSeasonToken(s string) bool {
	if len(s) != 9 || s[4] != '-' {
		return false
	}
	for i := 0; i < len(s); i++ {
		if i == 4 {
			continue
		}
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// StartYear returns the first year of the season, or 0 when malformed.
func (s Season) StartYear() int {
	if !IsSeasonToken(string(s)) {
		return 0
	}
	year, err := strconv.Atoi(string(s[:4]))
	if err != nil {
		return 0
	}
	return year
}

// FileStem returns the season with hyphens replaced by underscores, as used in output file names.
func (s Season) FileStem() string {
	return strings.ReplaceAll(string(s), "-", "_")
}

// String returns the raw token.
func (s Season) String() string {
	return string(s)
}
