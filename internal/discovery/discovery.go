package discovery

import (
	"context"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/JakeFAU/appearances-scraper/internal/roster"
)

// Fetcher retrieves a page with a bounded number of attempts.
type Fetcher interface {
	Fetch(ctx context.Context, url string, attempts int) (string, error)
}

// SeasonSource yields the seasons to process for a club.
type SeasonSource interface {
	Seasons(ctx context.Context, club roster.Club) []roster.Season
}

// Config configures a Discoverer.
type Config struct {
	BaseURL  string
	Current  roster.Season
	Attempts int
}

// Discoverer finds seasons on a club's appearance summary page.
type Discoverer struct {
	cfg        Config
	fetcher    Fetcher
	strategies []Strategy
	logger     *zap.Logger
}

// New builds a Discoverer using DefaultStrategies.
func New(cfg Config, fetcher Fetcher, logger *zap.Logger) *Discoverer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Discoverer{
		cfg:        cfg,
		fetcher:    fetcher,
		strategies: DefaultStrategies(),
		logger:     logger.Named("discovery"),
	}
}

// WithStrategies returns a copy of d that tries strategies in order.
func (d *Discoverer) WithStrategies(strategies ...Strategy) *Discoverer {
	cp := *d
	cp.strategies = strategies
	return &cp
}

// SummaryURL is the club page listing its seasons.
func (d *Discoverer) SummaryURL(club roster.Club) string {
	return fmt.Sprintf("%s/%s/appearances", strings.TrimRight(d.cfg.BaseURL, "/"), club.Slug)
}

// Seasons returns the club's seasons, most recent first. It never returns an empty
// slice: when the page cannot be fetched or no strategy finds anything, the result
// is the current season alone.
func (d *Discoverer) Seasons(ctx context.Context, club roster.Club) []roster.Season {
	fallback := []roster.Season{d.cfg.Current}
	url := d.SummaryURL(club)

	markup, err := d.fetcher.Fetch(ctx, url, d.cfg.Attempts)
	if err != nil {
		d.logger.Warn("summary page unavailable, using current season",
			zap.String("club", club.Name), zap.Error(err))
		return fallback
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		d.logger.Warn("summary page unparsable, using current season",
			zap.String("club", club.Name), zap.Error(err))
		return fallback
	}

	for _, strategy := range d.strategies {
		found, ok := strategy.Find(doc)
		if !ok {
			continue
		}
		seasons := Finalize(found, d.cfg.Current)
		d.logger.Info("seasons discovered",
			zap.String("club", club.Name),
			zap.String("strategy", strategy.Name),
			zap.Int("count", len(seasons)))
		return seasons
	}
	d.logger.Info("no seasons discovered, using current season", zap.String("club", club.Name))
	return fallback
}

// Static is a fixed season list shared by every club.
type Static []roster.Season

// Seasons returns a copy of the list.
func (s Static) Seasons(context.Context, roster.Club) []roster.Season {
	out := make([]roster.Season, len(s))
	copy(out, s)
	return out
}
