// Package resilience wraps the challenge-bypass proxy with health checks, session
// hygiene, classified backoff and proxy restarts.
//
// A fetch runs as a small state machine: Attempting, then BackingOff or Restarting
// after a failed attempt, back to Attempting, and finally Succeeded or Exhausted
// once the attempt budget is spent. Policy.Classify is the pure transition function.
package resilience

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/JakeFAU/appearances-scraper/internal/flaresolverr"
)

// State is a step of the fetch state machine.
type State int

// Fetch states.
const (
	Attempting State = iota
	BackingOff
	Restarting
	Exhausted
	Succeeded
)

func (s State) String() string {
	switch s {
	case Attempting:
		return "attempting"
	case BackingOff:
		return "backing_off"
	case Restarting:
		return "restarting"
	case Exhausted:
		return "exhausted"
	case Succeeded:
		return "succeeded"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// ErrProxyUnhealthy marks an attempt abandoned because the proxy failed its
// health check and could not be restarted.
var ErrProxyUnhealthy = errors.New("proxy unhealthy")

// Failure reasons reported by Classify.
const (
	ReasonServerError = "server_error"
	ReasonTimeout     = "timeout"
	ReasonChallenge   = "challenge"
	ReasonUnhealthy   = "unhealthy"
	ReasonOther       = "other"
)

// Policy holds the backoff parameters.
type Policy struct {
	// BackoffUnit scales the linear backoff after timeout or challenge messages from the proxy.
	BackoffUnit time.Duration
	// TimeoutBackoffUnit scales the backoff when the proxy did not answer in time.
	TimeoutBackoffUnit time.Duration
	FlatBackoff        time.Duration
	// RestartBackoff is the pause after a proxy restart or a failed one.
	RestartBackoff time.Duration
}

// DefaultPolicy returns the production backoff parameters.
func DefaultPolicy() Policy {
	return Policy{
		BackoffUnit:        10 * time.Second,
		TimeoutBackoffUnit: 15 * time.Second,
		FlatBackoff:        5 * time.Second,
		RestartBackoff:     10 * time.Second,
	}
}

// Outcome is the transition chosen for a failed attempt.
type Outcome struct {
	Next   State
	Delay  time.Duration
	Reason string
}

// Classify maps the error of the zero-based attempt to the next state and delay.
func (p Policy) Classify(err error, attempt int) Outcome {
	var perr *flaresolverr.ProxyError
	switch {
	case errors.As(err, &perr) && perr.ServerError():
		return Outcome{Next: Restarting, Delay: p.RestartBackoff, Reason: ReasonServerError}
	case errors.Is(err, flaresolverr.ErrTimeout):
		return Outcome{Next: BackingOff, Delay: time.Duration(attempt+1) * p.TimeoutBackoffUnit, Reason: ReasonTimeout}
	case perr != nil && recoverableMessage(perr.Message):
		return Outcome{Next: BackingOff, Delay: time.Duration(attempt+1) * p.BackoffUnit, Reason: ReasonChallenge}
	case errors.Is(err, ErrProxyUnhealthy):
		return Outcome{Next: BackingOff, Delay: p.RestartBackoff, Reason: ReasonUnhealthy}
	default:
		return Outcome{Next: BackingOff, Delay: p.FlatBackoff, Reason: ReasonOther}
	}
}

func recoverableMessage(msg string) bool {
	msg = strings.ToLower(msg)
	return strings.Contains(msg, "timeout") || strings.Contains(msg, "challenge")
}

// ExhaustedError is returned once every attempt failed.
type ExhaustedError struct {
	URL      string
	Attempts int
	Last     error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("fetch %s: %d attempts exhausted: %v", e.URL, e.Attempts, e.Last)
}

func (e *ExhaustedError) Unwrap() error {
	return e.Last
}
