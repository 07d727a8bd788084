package storage

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/JakeFAU/appearances-scraper/internal/roster"
)

// MockStore is a mock implementation of SeasonStore for testing.
type MockStore struct {
	mock.Mock
}

// SaveSeason is the mock implementation of SaveSeason.
func (m *MockStore) SaveSeason(ctx context.Context, result roster.SeasonResult) error {
	args := m.Called(ctx, result)
	return args.Error(0) //nolint:wrapcheck
}
