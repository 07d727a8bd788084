// Package orchestrator runs the club by season sweep: it keeps the proxy healthy,
// discovers seasons, scrapes and persists each club-season, paces requests and
// keeps the failure ledger.
package orchestrator

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/appearances-scraper/internal/discovery"
	"github.com/JakeFAU/appearances-scraper/internal/metrics"
	"github.com/JakeFAU/appearances-scraper/internal/pacing"
	"github.com/JakeFAU/appearances-scraper/internal/pagination"
	"github.com/JakeFAU/appearances-scraper/internal/roster"
	"github.com/JakeFAU/appearances-scraper/internal/storage"
)

// Proxy is the health and restart surface of the challenge-bypass proxy.
type Proxy interface {
	HealthCheck(ctx context.Context) bool
	RestartProxy(ctx context.Context) error
}

// Fetcher is the resilient fetch path used for the preflight check.
type Fetcher interface {
	Fetch(ctx context.Context, url string, attempts int) (string, error)
	PurgeSessions(ctx context.Context) int
}

// Walker fetches the pages of one club-season listing.
type Walker interface {
	Walk(ctx context.Context, baseURL string) (pagination.Result, error)
}

// Season outcomes reported to metrics and logs.
const (
	SeasonSucceeded    = "succeeded"
	SeasonFailed       = "failed"
	SeasonDebug        = "debug"
	SeasonDuplicate    = "duplicate"
	// SeasonMirrorFailed counts seasons saved to the primary store whose mirror copy failed.
	SeasonMirrorFailed = "mirror_failed"
)

// Page classifications for large pages that yielded no players.
const (
	PageErrorPage         = "error_page"
	PageChallengeUnsolved = "challenge_unsolved"
	PageUnknownLayout     = "unknown_layout"
)

// Config tunes a Runner.
type Config struct {
	RunID   string
	BaseURL string
	// DebugMinBytes is the page size above which an empty result is kept for inspection.
	DebugMinBytes    int
	SeasonDelayMin   time.Duration
	SeasonDelayMax   time.Duration
	ClubDelayMin     time.Duration
	ClubDelayMax     time.Duration
	HealthCheckEvery int
	Settle           time.Duration

	PreflightURL      string
	PreflightMinBytes int
	PreflightAttempts int
}

// Deps are the collaborators of a Runner.
type Deps struct {
	Proxy   Proxy
	Fetcher Fetcher
	Seasons discovery.SeasonSource
	Walker  Walker
	// Store is the primary store; a season counts as saved once it succeeds.
	Store   storage.SeasonStore
	// Mirrors receive a copy of every saved season. Their failures are logged, not ledgered.
	Mirrors storage.SeasonStore
	Pauser  pacing.Pauser
	Logger  *zap.Logger
	Now     func() time.Time
}

// Runner executes a sweep. A Runner is meant for a single Run.
type Runner struct {
	cfg     Config
	proxy   Proxy
	fetcher Fetcher
	seasons discovery.SeasonSource
	walker  Walker
	store   storage.SeasonStore
	mirrors storage.SeasonStore
	pauser  pacing.Pauser
	logger  *zap.Logger
	now     func() time.Time

	ledger    roster.FailureLedger
	persisted map[string]struct{}

	mu     sync.RWMutex
	status Status
}

// New builds a Runner.
func New(cfg Config, deps Deps) *Runner {
	if cfg.HealthCheckEvery <= 0 {
		cfg.HealthCheckEvery = 3
	}
	if cfg.PreflightAttempts <= 0 {
		cfg.PreflightAttempts = 2
	}
	r := &Runner{
		cfg:       cfg,
		proxy:     deps.Proxy,
		fetcher:   deps.Fetcher,
		seasons:   deps.Seasons,
		walker:    deps.Walker,
		store:     deps.Store,
		mirrors:   deps.Mirrors,
		pauser:    deps.Pauser,
		logger:    deps.Logger,
		now:       deps.Now,
		persisted: map[string]struct{}{},
	}
	if r.store == nil {
		r.store = storage.NoOp{}
	}
	if r.pauser == nil {
		r.pauser = pacing.Timer{}
	}
	if r.logger == nil {
		r.logger = zap.NewNop()
	}
	r.logger = r.logger.Named("orchestrator")
	if r.now == nil {
		r.now = time.Now
	}
	r.status = Status{RunID: cfg.RunID, Phase: Idle}
	return r
}

// Status returns a snapshot of the run.
func (r *Runner) Status() Status {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.status
}

func (r *Runner) update(fn func(*Status)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fn(&r.status)
}

// Run processes clubs in order. Cancelling ctx stops the run at the next club or
// season boundary; fetches already in flight finish first.
func (r *Runner) Run(ctx context.Context, clubs []roster.Club) roster.Report {
	start := r.now()
	r.update(func(s *Status) {
		s.StartedAt = start
		s.ClubTotal = len(clubs)
	})
	work := context.WithoutCancel(ctx)

	canceled := false
	for i, club := range clubs {
		if ctx.Err() != nil {
			canceled = true
			break
		}
		r.update(func(s *Status) {
			s.Club = club.Name
			s.ClubIndex = i + 1
			s.Phase = Idle
			s.Season = ""
			s.SeasonIndex, s.SeasonTotal = 0, 0
		})
		r.logger.Info("club started",
			zap.String("club", club.Name),
			zap.String("slug", club.Slug),
			zap.Int("index", i+1),
			zap.Int("total", len(clubs)))

		if !r.processClub(ctx, work, club) {
			canceled = true
			break
		}
		if i < len(clubs)-1 {
			delay := pacing.Between(r.cfg.ClubDelayMin, r.cfg.ClubDelayMax)
			r.logger.Info("waiting before next club", zap.Duration("delay", delay))
			if err := r.pauser.Pause(ctx, delay); err != nil {
				canceled = true
				break
			}
		}
	}

	report := r.report(start, canceled)
	r.update(func(s *Status) {
		s.Finished = true
		s.Canceled = canceled
	})
	return report
}

func (r *Runner) report(start time.Time, canceled bool) roster.Report {
	st := r.Status()
	return roster.Report{
		Stats:    st.Stats,
		Failures: r.ledger.Entries(),
		Canceled: canceled,
		Elapsed:  r.now().Sub(start),
	}
}

// processClub returns false when the run was cancelled.
func (r *Runner) processClub(ctx, work context.Context, club roster.Club) (cont bool) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("club aborted by panic", zap.String("club", club.Name), zap.Any("panic", rec))
			metrics.ObserveClub("panic")
			cont = ctx.Err() == nil
		}
		r.update(func(s *Status) { s.Phase = Done })
	}()

	r.update(func(s *Status) { s.Phase = DiscoveringSeasons })
	if !r.ensureHealthy(ctx, work, "before club") {
		r.logger.Error("proxy unavailable, skipping club", zap.String("club", club.Name))
		metrics.ObserveClub("skipped")
		return ctx.Err() == nil
	}

	seasons := r.seasons.Seasons(work, club)
	if len(seasons) == 0 {
		r.logger.Warn("no seasons found, skipping club", zap.String("club", club.Name))
		metrics.ObserveClub("skipped")
		return ctx.Err() == nil
	}
	r.update(func(s *Status) {
		s.Phase = ProcessingSeasons
		s.SeasonTotal = len(seasons)
	})

	succeeded := 0
	for j, season := range seasons {
		if ctx.Err() != nil {
			return false
		}
		if j > 0 && j%r.cfg.HealthCheckEvery == 0 {
			r.ensureHealthy(ctx, work, "periodic")
		}
		r.update(func(s *Status) {
			s.Season = season
			s.SeasonIndex = j + 1
		})

		ok := r.scrapeSeasonSafely(work, club, season)
		if ok {
			succeeded++
		}
		r.update(func(s *Status) {
			s.Stats.Attempted++
			if ok {
				s.Stats.Succeeded++
			}
			s.Failures = r.ledger.Len()
		})
		r.logger.Info("club progress",
			zap.String("club", club.Name),
			zap.Int("processed", j+1),
			zap.Int("seasons", len(seasons)))

		if j < len(seasons)-1 {
			delay := pacing.Between(r.cfg.SeasonDelayMin, r.cfg.SeasonDelayMax)
			if err := r.pauser.Pause(ctx, delay); err != nil {
				return false
			}
		}
	}
	r.logger.Info("club finished",
		zap.String("club", club.Name),
		zap.Int("succeeded", succeeded),
		zap.Int("seasons", len(seasons)))
	metrics.ObserveClub("done")
	return true
}

// ensureHealthy restarts an unhealthy proxy and lets it settle. It reports whether
// the proxy is usable.
func (r *Runner) ensureHealthy(ctx, work context.Context, when string) bool {
	if r.proxy.HealthCheck(work) {
		return true
	}
	r.logger.Warn("proxy unhealthy, restarting", zap.String("when", when))
	if err := r.proxy.RestartProxy(work); err != nil {
		r.logger.Error("proxy restart failed", zap.String("when", when), zap.Error(err))
		return false
	}
	_ = r.pauser.Pause(ctx, r.cfg.Settle)
	return true
}

func (r *Runner) scrapeSeasonSafely(ctx context.Context, club roster.Club, season roster.Season) (ok bool) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("season aborted by panic",
				zap.String("club", club.Name),
				zap.String("season", string(season)),
				zap.Any("panic", rec))
			r.ledger.Append(club, season)
			metrics.ObserveSeason(SeasonFailed, 0)
			ok = false
		}
	}()
	return r.ScrapeSeason(ctx, club, season)
}

// SeasonURL is the appearance listing of a club-season.
func (r *Runner) SeasonURL(club roster.Club, season roster.Season) string {
	return fmt.Sprintf("%s/%s/appearances/%s", strings.TrimRight(r.cfg.BaseURL, "/"), club.Slug, season)
}

// ScrapeSeason fetches, extracts, deduplicates and persists one club-season.
// It reports whether players were persisted; every other outcome is recorded in the ledger.
func (r *Runner) ScrapeSeason(ctx context.Context, club roster.Club, season roster.Season) bool {
	log := r.logger.With(zap.String("club", club.Name), zap.String("season", string(season)))

	walked, err := r.walker.Walk(ctx, r.SeasonURL(club, season))
	if err != nil {
		log.Warn("season unavailable", zap.Error(err))
		r.fail(club, season)
		return false
	}

	players := roster.Dedupe(walked.Records)
	result := roster.NewSeasonResult(club, season, players, walked.ContentSize(), r.now())

	if len(players) > 0 {
		if err := r.persist(ctx, result); err != nil {
			log.Error("persist season failed", zap.Error(err))
			r.fail(club, season)
			return false
		}
		log.Info("season saved",
			zap.Int("players", result.PlayersCount),
			zap.Int("pages", walked.Pages),
			zap.Int("total_appearances", result.TotalAppearances),
			zap.String("top_performer", result.TopPerformer.Name))
		metrics.ObserveSeason(SeasonSucceeded, result.PlayersCount)
		return true
	}

	if walked.ContentSize() > r.cfg.DebugMinBytes {
		result.Debug = true
		result.Markup = walked.Markup
		if err := r.persist(ctx, result); err != nil {
			log.Warn("persist debug page failed", zap.Error(err))
		}
		log.Warn("large page without players",
			zap.Int("bytes", walked.ContentSize()),
			zap.String("page", ClassifyPage(walked.Markup)))
		metrics.ObserveSeason(SeasonDebug, 0)
	} else {
		log.Warn("page too small", zap.Int("bytes", walked.ContentSize()))
		metrics.ObserveSeason(SeasonFailed, 0)
	}
	r.ledger.Append(club, season)
	return false
}

func (r *Runner) fail(club roster.Club, season roster.Season) {
	r.ledger.Append(club, season)
	metrics.ObserveSeason(SeasonFailed, 0)
}

func (r *Runner) persist(ctx context.Context, result roster.SeasonResult) error {
	key := result.Key()
	if _, done := r.persisted[key]; done {
		metrics.ObserveSeason(SeasonDuplicate, 0)
		return fmt.Errorf("season %s already persisted in this run", key)
	}
	if err := r.store.SaveSeason(ctx, result); err != nil {
		return fmt.Errorf("save season %s: %w", key, err)
	}
	r.persisted[key] = struct{}{}
	if r.mirrors != nil {
		if err := r.mirrors.SaveSeason(ctx, result); err != nil {
			r.logger.Warn("mirror store failed, primary copy kept",
				zap.String("key", key),
				zap.Error(err))
			metrics.ObserveSeason(SeasonMirrorFailed, 0)
		}
	}
	return nil
}

// ClassifyPage guesses why a large page produced no players.
func ClassifyPage(markup string) string {
	lower := strings.ToLower(markup)
	switch {
	case strings.Contains(lower, "verify you are human"):
		return PageChallengeUnsolved
	case strings.Contains(lower, "not found"), strings.Contains(lower, "error"):
		return PageErrorPage
	default:
		return PageUnknownLayout
	}
}

// Ledger returns the failures recorded so far.
func (r *Runner) Ledger() []string {
	return r.ledger.Entries()
}
