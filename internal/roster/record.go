package roster

import "time"

// PlayerRecord is one player's appearance count for a club-season.
type PlayerRecord struct {
	Name        string `json:"name"`
	Appearances int    `json:"appearances"`
	SourceURL   string `json:"source_url"`
	SourceID    string `json:"source_id"`
}

// Dedupe keeps one record per distinct name; the first occurrence wins and order is preserved.
func Dedupe(records []PlayerRecord) []PlayerRecord {
	if len(records) == 0 {
		return []PlayerRecord{}
	}
	seen := make(map[string]struct{}, len(records))
	out := make([]PlayerRecord, 0, len(records))
	for _, rec := range records {
		if _, ok := seen[rec.Name]; ok {
			continue
		}
		seen[rec.Name] = struct{}{}
		out = append(out, rec)
	}
	return out
}

// SeasonResult aggregates the players found for one club-season.
type SeasonResult struct {
	Club             string         `json:"club"`
	ClubSlug         string         `json:"club_slug"`
	Season           Season         `json:"season"`
	PlayersCount     int            `json:"players_count"`
	Players          []PlayerRecord `json:"players"`
	TotalAppearances int            `json:"total_appearances"`
	TopPerformer     *PlayerRecord  `json:"top_appearance_maker"`
	Timestamp        int64          `json:"timestamp"`
	RawContentSize   int            `json:"html_length"`
	// Debug marks a result persisted without players so the raw page can be inspected.
	Debug bool `json:"debug,omitempty"`
	// Markup is the last fetched page; only stores that keep debug artifacts write it.
	Markup string `json:"-"`
}

// NewSeasonResult computes totals and the top performer for players.
func NewSeasonResult(club Club, season Season, players []PlayerRecord, contentSize int, at time.Time) SeasonResult {
	if players == nil {
		players = []PlayerRecord{}
	}
	res := SeasonResult{
		Club:           club.Name,
		ClubSlug:       club.Slug,
		Season:         season,
		PlayersCount:   len(players),
		Players:        players,
		Timestamp:      at.Unix(),
		RawContentSize: contentSize,
	}
	for i := range players {
		res.TotalAppearances += players[i].Appearances
		if res.TopPerformer == nil || players[i].Appearances > res.TopPerformer.Appearances {
			top := players[i]
			res.TopPerformer = &top
		}
	}
	return res
}

// Key identifies the club-season the result belongs to.
func (r SeasonResult) Key() string {
	return FailureKey(Club{Name: r.Club, Slug: r.ClubSlug}, r.Season)
}
