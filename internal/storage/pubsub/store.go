// Package pubsub publishes a completion event for every persisted season to a
// Google Cloud Pub/Sub topic.
package pubsub

import (
	"context"
	"encoding/json"
	"fmt"

	"cloud.google.com/go/pubsub"

	"github.com/JakeFAU/appearances-scraper/internal/roster"
)

// EventSeasonSaved is the event attribute set on every message.
const EventSeasonSaved = "season.saved"

// Store publishes season results as JSON messages.
type Store struct {
	topic *pubsub.Topic
}

// New creates a Store publishing to topic.
func New(topic *pubsub.Topic) (*Store, error) {
	if topic == nil {
		return nil, fmt.Errorf("pubsub topic is required")
	}
	return &Store{topic: topic}, nil
}

// SaveSeason publishes result and waits for the server to acknowledge it.
func (s *Store) SaveSeason(ctx context.Context, result roster.SeasonResult) error {
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("marshal season result: %w", err)
	}
	msg := &pubsub.Message{
		Data: data,
		Attributes: map[string]string{
			"event":     EventSeasonSaved,
			"club_slug": result.ClubSlug,
			"season":    string(result.Season),
			"debug":     fmt.Sprintf("%t", result.Debug),
		},
	}
	if _, err := s.topic.Publish(ctx, msg).Get(ctx); err != nil {
		return fmt.Errorf("publish season %s: %w", result.Key(), err)
	}
	return nil
}

// Name identifies the store in logs.
func (*Store) Name() string { return "pubsub" }
