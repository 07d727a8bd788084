package roster

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFailureLedgerAppendOnly(t *testing.T) {
	t.Parallel()

	var ledger FailureLedger
	ledger.Append(NewClub("AFC Example"), "2024-2025")
	ledger.Append(NewClub("Bury"), "2019-2020")

	entries := ledger.Entries()
	assert.Equal(t, []string{"AFC Example-2024-2025", "Bury-2019-2020"}, entries)
	assert.Equal(t, 2, ledger.Len())

	entries[0] = "mutated"
	assert.Equal(t, "AFC Example-2024-2025", ledger.Entries()[0], "Entries returns a copy")
}

func TestStats(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 0.0, Stats{}.SuccessRate())
	s := Stats{Attempted: 4, Succeeded: 3}
	assert.Equal(t, 1, s.Failed())
	assert.InDelta(t, 75.0, s.SuccessRate(), 0.001)
}
