// Package input reads the line-oriented club and season lists.
package input

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"

	"github.com/JakeFAU/appearances-scraper/internal/roster"
)

// ParseClubs reads one club per line. Blank lines and lines starting with '#' are ignored.
// When marker is non-empty and matches a line exactly, clubs before it are skipped.
func ParseClubs(r io.Reader, marker string) ([]roster.Club, error) {
	lines, err := readLines(r)
	if err != nil {
		return nil, fmt.Errorf("read clubs: %w", err)
	}
	start := 0
	if marker != "" {
		for i, line := range lines {
			if line == marker {
				start = i
				break
			}
		}
	}
	clubs := make([]roster.Club, 0, len(lines)-start)
	for _, line := range lines[start:] {
		if strings.HasPrefix(line, "#") {
			continue
		}
		clubs = append(clubs, roster.NewClub(line))
	}
	return clubs, nil
}

// LoadClubs opens path and parses it with ParseClubs.
func LoadClubs(path, marker string) ([]roster.Club, error) {
	f, err := os.Open(path) //nolint:gosec // operator-supplied path
	if err != nil {
		return nil, fmt.Errorf("open clubs file: %w", err)
	}
	defer f.Close() //nolint:errcheck // read-only
	return ParseClubs(f, marker)
}

// ParseSeasons reads one season token per line using the club list format.
// Lines that are not YYYY-YYYY tokens are rejected.
func ParseSeasons(r io.Reader) ([]roster.Season, error) {
	lines, err := readLines(r)
	if err != nil {
		return nil, fmt.Errorf("read seasons: %w", err)
	}
	seasons := make([]roster.Season, 0, len(lines))
	for _, line := range lines {
		if strings.HasPrefix(line, "#") {
			continue
		}
		season, err := roster.ParseSeason(line)
		if err != nil {
			return nil, err
		}
		seasons = append(seasons, season)
	}
	return seasons, nil
}

// LoadSeasons parses the optional season list at path.
// It returns ok=false, without error, when path is empty or the file does not exist.
func LoadSeasons(path string) (seasons []roster.Season, ok bool, err error) {
	if path == "" {
		return nil, false, nil
	}
	f, err := os.Open(path) //nolint:gosec // operator-supplied path
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("open seasons file: %w", err)
	}
	defer f.Close() //nolint:errcheck // read-only
	seasons, err = ParseSeasons(f)
	if err != nil {
		return nil, false, err
	}
	return seasons, true, nil
}

func readLines(r io.Reader) ([]string, error) {
	var lines []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		lines = append(lines, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return lines, nil
}
