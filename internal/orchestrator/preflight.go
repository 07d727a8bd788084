package orchestrator

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/JakeFAU/appearances-scraper/internal/roster"
)

// ErrProxyUnavailable means the proxy could not be brought up before the run.
var ErrProxyUnavailable = errors.New("proxy unavailable")

// Preflight readies the proxy before the first club: it restarts an unhealthy
// proxy, clears stale sessions and performs a test fetch. A failed test fetch
// triggers one more restart; only a failed restart is fatal.
func (r *Runner) Preflight(ctx context.Context) error {
	if !r.proxy.HealthCheck(ctx) {
		r.logger.Warn("proxy not healthy at startup, restarting")
		if err := r.proxy.RestartProxy(ctx); err != nil {
			return fmt.Errorf("%w: %w", ErrProxyUnavailable, err)
		}
	}

	purged := r.fetcher.PurgeSessions(ctx)
	r.logger.Info("stale proxy sessions cleared", zap.Int("sessions", purged))

	if r.cfg.PreflightURL == "" {
		return nil
	}
	body, err := r.fetcher.Fetch(ctx, r.cfg.PreflightURL, r.cfg.PreflightAttempts)
	if err == nil && len(body) >= r.cfg.PreflightMinBytes {
		r.logger.Info("proxy test fetch ok", zap.Int("bytes", len(body)))
		return nil
	}
	r.logger.Warn("proxy test fetch failed, restarting",
		zap.String("url", r.cfg.PreflightURL),
		zap.Int("bytes", len(body)),
		zap.Error(err))
	if err := r.proxy.RestartProxy(ctx); err != nil {
		return fmt.Errorf("%w: %w", ErrProxyUnavailable, err)
	}
	return nil
}

// Summarize logs the final report, listing at most limit failures.
func Summarize(logger *zap.Logger, report roster.Report, limit int) {
	if logger == nil {
		return
	}
	logger.Info("run finished",
		zap.Int("attempted", report.Stats.Attempted),
		zap.Int("succeeded", report.Stats.Succeeded),
		zap.Int("failed", report.Stats.Failed()),
		zap.String("success_rate", fmt.Sprintf("%.1f%%", report.Stats.SuccessRate())),
		zap.Duration("elapsed", report.Elapsed),
		zap.Bool("canceled", report.Canceled))

	if len(report.Failures) == 0 {
		return
	}
	shown := report.Failures
	if limit >= 0 && len(shown) > limit {
		shown = shown[:limit]
	}
	for _, f := range shown {
		logger.Warn("failed season", zap.String("key", f))
	}
	if rest := len(report.Failures) - len(shown); rest > 0 {
		logger.Warn(fmt.Sprintf("and %d more", rest))
	}
}
