package flaresolverr

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/JakeFAU/appearances-scraper/internal/metrics"
	"github.com/JakeFAU/appearances-scraper/internal/pacing"
)

const (
	cmdSessionsList    = "sessions.list"
	cmdSessionsCreate  = "sessions.create"
	cmdSessionsDestroy = "sessions.destroy"
	cmdRequestGet      = "request.get"

	statusOK = "ok"
)

// Config tunes the client. Zero values fall back to the defaults of DefaultConfig.
type Config struct {
	Endpoint       string
	HealthTimeout  time.Duration
	CommandTimeout time.Duration
	// MaxTimeout is the proxy-side bound for solving a challenge, sent as maxTimeout.
	MaxTimeout time.Duration
	// RequestTimeout bounds the HTTP call for request.get and must exceed MaxTimeout.
	RequestTimeout time.Duration
	ReadyAttempts  int
	PollInterval   time.Duration
}

// DefaultConfig returns the settings for a local FlareSolverr container.
func DefaultConfig() Config {
	return Config{
		Endpoint:       "http://localhost:8191/v1",
		HealthTimeout:  10 * time.Second,
		CommandTimeout: 30 * time.Second,
		MaxTimeout:     180 * time.Second,
		RequestTimeout: 200 * time.Second,
		ReadyAttempts:  30,
		PollInterval:   2 * time.Second,
	}
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.Endpoint == "" {
		c.Endpoint = def.Endpoint
	}
	if c.HealthTimeout <= 0 {
		c.HealthTimeout = def.HealthTimeout
	}
	if c.CommandTimeout <= 0 {
		c.CommandTimeout = def.CommandTimeout
	}
	if c.MaxTimeout <= 0 {
		c.MaxTimeout = def.MaxTimeout
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = def.RequestTimeout
	}
	if c.ReadyAttempts <= 0 {
		c.ReadyAttempts = def.ReadyAttempts
	}
	if c.PollInterval <= 0 {
		c.PollInterval = def.PollInterval
	}
	return c
}

// Restarter stops and relaunches the proxy process.
type Restarter interface {
	Restart(ctx context.Context) error
}

// Option customizes a Client.
type Option func(*Client)

// WithRestarter sets how RestartProxy relaunches the proxy.
func WithRestarter(r Restarter) Option {
	return func(c *Client) { c.restarter = r }
}

// WithPauser replaces the clock used while waiting for a restarted proxy.
func WithPauser(p pacing.Pauser) Option {
	return func(c *Client) { c.pauser = p }
}

// WithLogger sets the client logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) { c.logger = l.Named("flaresolverr") }
}

// WithHTTPClient overrides the underlying resty client.
func WithHTTPClient(rc *resty.Client) Option {
	return func(c *Client) { c.http = rc }
}

// Client talks to a FlareSolverr endpoint.
type Client struct {
	cfg       Config
	http      *resty.Client
	restarter Restarter
	pauser    pacing.Pauser
	logger    *zap.Logger

	restartMu sync.Mutex
}

// New builds a Client for cfg.
func New(cfg Config, opts ...Option) *Client {
	c := &Client{
		cfg:    cfg.withDefaults(),
		pauser: pacing.Timer{},
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.http == nil {
		c.http = resty.New().
			SetHeader("Content-Type", "application/json").
			SetHeader("Accept", "application/json")
	}
	return c
}

type command struct {
	Cmd        string `json:"cmd"`
	Session    string `json:"session,omitempty"`
	URL        string `json:"url,omitempty"`
	MaxTimeout int64  `json:"maxTimeout,omitempty"`
}

type solution struct {
	URL      string `json:"url"`
	Status   int    `json:"status"`
	Response string `json:"response"`
}

type response struct {
	Status   string    `json:"status"`
	Message  string    `json:"message"`
	Sessions []string  `json:"sessions"`
	Solution *solution `json:"solution"`
}

// HealthCheck probes the endpoint with a GET. An idle, ready proxy rejects GET
// with 405 Method Not Allowed; anything else, including a connection failure, is unhealthy.
func (c *Client) HealthCheck(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.HealthTimeout)
	defer cancel()

	res, err := c.http.R().SetContext(ctx).Get(c.cfg.Endpoint)
	healthy := err == nil && res.StatusCode() == http.StatusMethodNotAllowed
	metrics.ObserveHealthCheck(healthy)
	if !healthy {
		fields := []zap.Field{zap.String("endpoint", c.cfg.Endpoint)}
		if err != nil {
			fields = append(fields, zap.Error(err))
		} else {
			fields = append(fields, zap.Int("status", res.StatusCode()))
		}
		c.logger.Debug("proxy unhealthy", fields...)
	}
	return healthy
}

// ListSessions returns the names of the sessions currently open on the proxy.
func (c *Client) ListSessions(ctx context.Context) ([]string, error) {
	res, err := c.post(ctx, c.cfg.CommandTimeout, command{Cmd: cmdSessionsList})
	if err != nil {
		return nil, err
	}
	return res.Sessions, nil
}

// CreateSession provisions an isolated browsing context named name.
func (c *Client) CreateSession(ctx context.Context, name string) error {
	_, err := c.post(ctx, c.cfg.CommandTimeout, command{Cmd: cmdSessionsCreate, Session: name})
	return err
}

// DestroySession closes the named session. Callers treat failure as non-fatal;
// the error is returned for logging only.
func (c *Client) DestroySession(ctx context.Context, name string) error {
	_, err := c.post(ctx, c.cfg.CommandTimeout, command{Cmd: cmdSessionsDestroy, Session: name})
	if err != nil {
		c.logger.Debug("destroy session failed", zap.String("session", name), zap.Error(err))
	}
	return err
}

// Fetch requests url through the named session and returns the solved page markup.
func (c *Client) Fetch(ctx context.Context, url, session string) (string, error) {
	res, err := c.post(ctx, c.cfg.RequestTimeout, command{
		Cmd:        cmdRequestGet,
		Session:    session,
		URL:        url,
		MaxTimeout: c.cfg.MaxTimeout.Milliseconds(),
	})
	if err != nil {
		return "", err
	}
	if res.Solution == nil {
		return "", &ProxyError{Cmd: cmdRequestGet, StatusCode: http.StatusOK, Message: "response has no solution"}
	}
	return res.Solution.Response, nil
}

// RestartProxy relaunches the proxy and waits until it reports healthy.
// Concurrent calls are serialized.
func (c *Client) RestartProxy(ctx context.Context) error {
	c.restartMu.Lock()
	defer c.restartMu.Unlock()

	if c.restarter == nil {
		metrics.ObserveRestart(false)
		return ErrRestartUnsupported
	}
	c.logger.Warn("restarting proxy")
	if err := c.restarter.Restart(ctx); err != nil {
		metrics.ObserveRestart(false)
		return fmt.Errorf("restart proxy: %w", err)
	}
	for i := 0; i < c.cfg.ReadyAttempts; i++ {
		if c.HealthCheck(ctx) {
			c.logger.Info("proxy ready after restart", zap.Int("polls", i+1))
			metrics.ObserveRestart(true)
			return nil
		}
		if err := c.pauser.Pause(ctx, c.cfg.PollInterval); err != nil {
			metrics.ObserveRestart(false)
			return fmt.Errorf("wait for proxy: %w", err)
		}
	}
	metrics.ObserveRestart(false)
	return ErrNotReady
}

func (c *Client) post(ctx context.Context, timeout time.Duration, cmd command) (*response, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var out response
	res, err := c.http.R().
		SetContext(ctx).
		SetBody(cmd).
		SetResult(&out).
		SetError(&out).
		Post(c.cfg.Endpoint)
	if err != nil {
		if isTimeout(err) {
			metrics.ObserveProxyCommand(cmd.Cmd, "timeout")
			return nil, fmt.Errorf("%s: %w", cmd.Cmd, ErrTimeout)
		}
		metrics.ObserveProxyCommand(cmd.Cmd, "transport_error")
		return nil, &TransportError{Op: cmd.Cmd, Err: err}
	}
	if res.StatusCode() != http.StatusOK {
		metrics.ObserveProxyCommand(cmd.Cmd, "proxy_error")
		msg := out.Message
		if msg == "" {
			msg = truncate(strings.TrimSpace(res.String()), 200)
		}
		return nil, &ProxyError{Cmd: cmd.Cmd, StatusCode: res.StatusCode(), Message: msg}
	}
	if out.Status != statusOK {
		metrics.ObserveProxyCommand(cmd.Cmd, "proxy_error")
		return nil, &ProxyError{Cmd: cmd.Cmd, StatusCode: res.StatusCode(), Message: out.Message}
	}
	metrics.ObserveProxyCommand(cmd.Cmd, "ok")
	return &out, nil
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
