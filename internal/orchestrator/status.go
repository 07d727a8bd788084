package orchestrator

import (
	"fmt"
	"time"

	"github.com/JakeFAU/appearances-scraper/internal/roster"
)

// Phase is the per-club state of a run.
type Phase int

// Club phases, in order.
const (
	Idle Phase = iota
	DiscoveringSeasons
	ProcessingSeasons
	Done
)

func (p Phase) String() string {
	switch p {
	case Idle:
		return "idle"
	case DiscoveringSeasons:
		return "discovering_seasons"
	case ProcessingSeasons:
		return "processing_seasons"
	case Done:
		return "done"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// MarshalText renders the phase name in JSON.
func (p Phase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// Status is a point-in-time view of a run.
type Status struct {
	RunID       string        `json:"run_id"`
	StartedAt   time.Time     `json:"started_at"`
	Club        string        `json:"club,omitempty"`
	ClubIndex   int           `json:"club_index"`
	ClubTotal   int           `json:"club_total"`
	Phase       Phase         `json:"phase"`
	Season      roster.Season `json:"season,omitempty"`
	SeasonIndex int           `json:"season_index"`
	SeasonTotal int           `json:"season_total"`
	Stats       roster.Stats  `json:"stats"`
	Failures    int           `json:"failures"`
	Finished    bool          `json:"finished"`
	Canceled    bool          `json:"canceled"`
}
