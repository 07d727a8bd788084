package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/appearances-scraper/internal/roster"
)

func TestStore(t *testing.T) {
	t.Parallel()

	s := NewStore()
	res := roster.NewSeasonResult(roster.NewClub("AFC Example"), "2024-2025", nil, 0, time.Now())
	require.NoError(t, s.SaveSeason(context.Background(), res))

	assert.Len(t, s.Results(), 1)
	got, ok := s.Get("AFC Example-2024-2025")
	require.True(t, ok)
	assert.Equal(t, "afc-example", got.ClubSlug)

	_, ok = s.Get("missing")
	assert.False(t, ok)
}
