// Package postgres persists season results to Postgres.
package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JakeFAU/appearances-scraper/internal/roster"
)

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// Config controls the Postgres connection pool used for season rows.
type Config struct {
	DSN             string
	Table           string
	MaxConns        int32
	MaxConnLifetime time.Duration
}

type execCloser interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Close()
}

// SeasonStore upserts one row per (club_slug, season).
type SeasonStore struct {
	pool  execCloser
	table string
}

// New creates a Postgres-backed SeasonStore using the provided config.
func New(ctx context.Context, cfg Config) (*SeasonStore, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("storage.postgres.dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	store, err := NewWithPool(pool, cfg.Table)
	if err != nil {
		pool.Close()
		return nil, err
	}
	return store, nil
}

// NewWithPool constructs a store from an existing pool (primarily for testing).
func NewWithPool(pool execCloser, table string) (*SeasonStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if table == "" {
		table = "season_results"
	}
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	return &SeasonStore{pool: pool, table: table}, nil
}

// Close releases the underlying pool resources.
func (s *SeasonStore) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// EnsureSchema creates the season table and its unique key when missing.
func (s *SeasonStore) EnsureSchema(ctx context.Context) error {
	query := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
	club TEXT NOT NULL,
	club_slug TEXT NOT NULL,
	season TEXT NOT NULL,
	players JSONB NOT NULL,
	players_count INTEGER NOT NULL,
	total_appearances INTEGER NOT NULL,
	top_performer TEXT,
	top_performer_appearances INTEGER,
	content_size INTEGER NOT NULL,
	debug BOOLEAN NOT NULL DEFAULT FALSE,
	scraped_at TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (club_slug, season)
)`, s.table)
	if _, err := s.pool.Exec(ctx, query); err != nil {
		return fmt.Errorf("create season table: %w", err)
	}
	return nil
}

// SaveSeason upserts the result keyed by club slug and season.
func (s *SeasonStore) SaveSeason(ctx context.Context, result roster.SeasonResult) error {
	if s == nil || s.pool == nil {
		return fmt.Errorf("season store is not configured")
	}
	if result.ClubSlug == "" || result.Season == "" {
		return fmt.Errorf("club slug and season are required")
	}
	playersJSON, err := json.Marshal(result.Players)
	if err != nil {
		return fmt.Errorf("marshal players: %w", err)
	}
	var topName *string
	var topApps *int
	if result.TopPerformer != nil {
		topName = &result.TopPerformer.Name
		topApps = &result.TopPerformer.Appearances
	}

	query := fmt.Sprintf(`
INSERT INTO %s (
	club,
	club_slug,
	season,
	players,
	players_count,
	total_appearances,
	top_performer,
	top_performer_appearances,
	content_size,
	debug,
	scraped_at
) VALUES (
	$1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11
)
ON CONFLICT (club_slug, season) DO UPDATE SET
	club = EXCLUDED.club,
	players = EXCLUDED.players,
	players_count = EXCLUDED.players_count,
	total_appearances = EXCLUDED.total_appearances,
	top_performer = EXCLUDED.top_performer,
	top_performer_appearances = EXCLUDED.top_performer_appearances,
	content_size = EXCLUDED.content_size,
	debug = EXCLUDED.debug,
	scraped_at = EXCLUDED.scraped_at`, s.table)

	args := []any{
		result.Club,
		result.ClubSlug,
		string(result.Season),
		playersJSON,
		result.PlayersCount,
		result.TotalAppearances,
		topName,
		topApps,
		result.RawContentSize,
		result.Debug,
		time.Unix(result.Timestamp, 0).UTC(),
	}

	if _, err := s.pool.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("upsert season result: %w", err)
	}
	return nil
}

// Name identifies the store in logs.
func (*SeasonStore) Name() string { return "postgres" }
