package resilience

import (
	"context"
	"fmt"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/JakeFAU/appearances-scraper/internal/metrics"
	"github.com/JakeFAU/appearances-scraper/internal/pacing"
)

// Proxy is the challenge-bypass client surface the controller drives.
type Proxy interface {
	HealthCheck(ctx context.Context) bool
	ListSessions(ctx context.Context) ([]string, error)
	CreateSession(ctx context.Context, name string) error
	Fetch(ctx context.Context, url, session string) (string, error)
	DestroySession(ctx context.Context, name string) error
	RestartProxy(ctx context.Context) error
}

// Transition describes one state change of a fetch.
type Transition struct {
	URL     string
	Attempt int
	From    State
	To      State
	Reason  string
}

// Option customizes a Controller.
type Option func(*Controller)

// WithPolicy overrides the backoff policy.
func WithPolicy(p Policy) Option {
	return func(c *Controller) { c.policy = p }
}

// WithPauser replaces the clock used for backoff.
func WithPauser(p pacing.Pauser) Option {
	return func(c *Controller) { c.pauser = p }
}

// WithSpacer enforces a minimum gap between page requests sent to the proxy.
func WithSpacer(s *pacing.Spacer) Option {
	return func(c *Controller) { c.spacer = s }
}

// WithSessionPrefix sets the prefix of generated session names.
func WithSessionPrefix(prefix string) Option {
	return func(c *Controller) { c.prefix = prefix }
}

// WithLogger sets the controller logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Controller) { c.logger = l.Named("resilience") }
}

// WithTransitionHook registers fn to observe every state change.
func WithTransitionHook(fn func(Transition)) Option {
	return func(c *Controller) { c.hook = fn }
}

// Controller fetches URLs through a Proxy with retries and recovery.
type Controller struct {
	proxy  Proxy
	policy Policy
	pauser pacing.Pauser
	spacer *pacing.Spacer
	prefix string
	logger *zap.Logger
	hook   func(Transition)

	seq atomic.Uint64
}

// New builds a Controller around proxy.
func New(proxy Proxy, opts ...Option) *Controller {
	c := &Controller{
		proxy:  proxy,
		policy: DefaultPolicy(),
		pauser: pacing.Timer{},
		prefix: "scraper",
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Proxy returns the wrapped proxy client.
func (c *Controller) Proxy() Proxy {
	return c.proxy
}

// Fetch retrieves url, spending at most attempts attempts. Every session created
// by an attempt is destroyed before the next attempt starts.
func (c *Controller) Fetch(ctx context.Context, url string, attempts int) (string, error) {
	if attempts <= 0 {
		attempts = 1
	}
	seq := c.seq.Add(1)
	state := Attempting
	move := func(attempt int, to State, reason string) {
		c.transition(url, attempt, state, to, reason)
		state = to
	}

	var last error
	for attempt := 0; attempt < attempts; attempt++ {
		if state != Attempting {
			move(attempt, Attempting, "")
		}
		metrics.ObserveFetchAttempt(Attempting.String())
		body, err := c.attempt(ctx, url, seq, attempt)
		if err == nil {
			move(attempt, Succeeded, "")
			return body, nil
		}
		last = err
		out := c.policy.Classify(err, attempt)
		c.logger.Warn("fetch attempt failed",
			zap.String("url", url),
			zap.Int("attempt", attempt+1),
			zap.Int("attempts", attempts),
			zap.String("reason", out.Reason),
			zap.Error(err))

		if out.Next == Restarting {
			move(attempt, Restarting, out.Reason)
			if rerr := c.proxy.RestartProxy(ctx); rerr != nil {
				c.logger.Error("proxy restart failed", zap.Error(rerr))
			}
		}
		if attempt == attempts-1 {
			break
		}
		move(attempt, BackingOff, out.Reason)
		metrics.ObserveBackoff(out.Reason, out.Delay)
		if perr := c.pauser.Pause(ctx, out.Delay); perr != nil {
			return "", fmt.Errorf("backoff %s: %w", url, perr)
		}
	}
	move(attempts-1, Exhausted, "")
	return "", &ExhaustedError{URL: url, Attempts: attempts, Last: last}
}

func (c *Controller) attempt(ctx context.Context, url string, seq uint64, attempt int) (string, error) {
	if !c.proxy.HealthCheck(ctx) {
		c.logger.Warn("proxy unhealthy before attempt, restarting", zap.Int("attempt", attempt+1))
		if err := c.proxy.RestartProxy(ctx); err != nil {
			return "", fmt.Errorf("%w: %w", ErrProxyUnhealthy, err)
		}
	}

	c.PurgeSessions(ctx)

	name := fmt.Sprintf("%s_%d_%d", c.prefix, seq, attempt)
	if err := c.proxy.CreateSession(ctx, name); err != nil {
		return "", fmt.Errorf("create session %s: %w", name, err)
	}
	defer func() {
		// Best effort: a leaked session must not discard the fetch result.
		_ = c.proxy.DestroySession(context.WithoutCancel(ctx), name)
	}()

	if err := c.spacer.Wait(ctx); err != nil {
		return "", fmt.Errorf("wait for request slot: %w", err)
	}
	body, err := c.proxy.Fetch(ctx, url, name)
	if err != nil {
		return "", fmt.Errorf("fetch %s: %w", url, err)
	}
	c.logger.Debug("fetched", zap.String("url", url), zap.Int("bytes", len(body)))
	return body, nil
}

// PurgeSessions destroys every session the proxy reports and returns how many were destroyed.
func (c *Controller) PurgeSessions(ctx context.Context) int {
	sessions, err := c.proxy.ListSessions(ctx)
	if err != nil {
		c.logger.Debug("list sessions failed", zap.Error(err))
		return 0
	}
	destroyed := 0
	for _, name := range sessions {
		if err := c.proxy.DestroySession(ctx, name); err == nil {
			destroyed++
		}
	}
	if destroyed > 0 {
		c.logger.Debug("purged stale sessions", zap.Int("count", destroyed))
	}
	return destroyed
}

func (c *Controller) transition(url string, attempt int, from, to State, reason string) {
	if to != Attempting {
		metrics.ObserveFetchAttempt(to.String())
	}
	if c.hook != nil {
		c.hook(Transition{URL: url, Attempt: attempt, From: from, To: to, Reason: reason})
	}
}
