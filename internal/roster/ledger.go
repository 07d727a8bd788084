package roster

import (
	"sync"
	"time"
)

// FailureKey formats the club-season identifier recorded in the ledger.
func FailureKey(club Club, season Season) string {
	return club.Name + "-" + string(season)
}

// FailureLedger is an append-only, ordered list of club-season identifiers that yielded no data.
type FailureLedger struct {
	mu      sync.Mutex
	entries []string
}

// Append records a failed club-season.
func (l *FailureLedger) Append(club Club, season Season) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, FailureKey(club, season))
}

// Entries returns a copy of every recorded identifier in insertion order.
func (l *FailureLedger) Entries() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]string, len(l.entries))
	copy(out, l.entries)
	return out
}

// Len returns the number of recorded failures.
func (l *FailureLedger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// Stats are the aggregate counters for a run.
type Stats struct {
	Attempted int `json:"attempted"`
	Succeeded int `json:"succeeded"`
}

// Failed returns attempted club-seasons that did not succeed.
func (s Stats) Failed() int {
	return s.Attempted - s.Succeeded
}

// SuccessRate returns the succeeded share as a percentage, 0 when nothing was attempted.
func (s Stats) SuccessRate() float64 {
	if s.Attempted == 0 {
		return 0
	}
	return float64(s.Succeeded) / float64(s.Attempted) * 100
}

// Report is the final outcome of a run.
type Report struct {
	Stats    Stats
	Failures []string
	Canceled bool
	Elapsed  time.Duration
}
