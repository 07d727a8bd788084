package resilience

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/appearances-scraper/internal/flaresolverr"
	"github.com/JakeFAU/appearances-scraper/internal/pacing"
)

func newTestController(proxy Proxy, pauser *pacing.Recorder, opts ...Option) *Controller {
	return New(proxy, append([]Option{WithPauser(pauser), WithSessionPrefix("test")}, opts...)...)
}

func TestFetchSucceedsFirstAttempt(t *testing.T) {
	t.Parallel()

	proxy := newScriptedProxy()
	proxy.fetches = []fetchResult{{body: "<html>roster</html>"}}
	pauser := &pacing.Recorder{}
	c := newTestController(proxy, pauser)

	body, err := c.Fetch(context.Background(), "https://example.test/a", 3)
	require.NoError(t, err)
	assert.Equal(t, "<html>roster</html>", body)
	assert.Empty(t, pauser.Delays())
	assert.Equal(t, 0, proxy.openSessions())
	assert.Equal(t, []string{"test_1_0"}, proxy.created)
}

func TestFetchRetriesChallengeWithLinearBackoff(t *testing.T) {
	t.Parallel()

	challenge := &flaresolverr.ProxyError{StatusCode: http.StatusOK, Message: "Error solving the challenge"}
	proxy := newScriptedProxy()
	proxy.fetches = []fetchResult{{err: challenge}, {err: challenge}, {body: "ok"}}
	pauser := &pacing.Recorder{}
	c := newTestController(proxy, pauser)

	body, err := c.Fetch(context.Background(), "https://example.test/a", 3)
	require.NoError(t, err)
	assert.Equal(t, "ok", body)
	assert.Equal(t, []time.Duration{10 * time.Second, 20 * time.Second}, pauser.Delays())
	assert.Equal(t, []string{"test_1_0", "test_1_1", "test_1_2"}, proxy.created)
	assert.Equal(t, 0, proxy.openSessions())
}

func TestFetchNeverExceedsBudget(t *testing.T) {
	t.Parallel()

	for _, budget := range []int{1, 2, 3, 5} {
		proxy := newScriptedProxy()
		for i := 0; i < 10; i++ {
			proxy.fetches = append(proxy.fetches, fetchResult{err: flaresolverr.ErrTimeout})
		}
		pauser := &pacing.Recorder{}
		c := newTestController(proxy, pauser)

		_, err := c.Fetch(context.Background(), "https://example.test/a", budget)
		var exhausted *ExhaustedError
		require.ErrorAs(t, err, &exhausted)
		assert.Equal(t, budget, exhausted.Attempts)
		assert.Len(t, proxy.fetched, budget)
		assert.Len(t, pauser.Delays(), budget-1, "no backoff after the final attempt")
		assert.Equal(t, 0, proxy.openSessions(), "every created session is destroyed")
		assert.ErrorIs(t, err, flaresolverr.ErrTimeout)
	}
}

func TestFetchRestartsOnServerError(t *testing.T) {
	t.Parallel()

	proxy := newScriptedProxy()
	proxy.fetches = []fetchResult{
		{err: &flaresolverr.ProxyError{StatusCode: http.StatusInternalServerError, Message: "boom"}},
		{body: "ok"},
	}
	pauser := &pacing.Recorder{}
	var transitions []Transition
	c := newTestController(proxy, pauser, WithTransitionHook(func(tr Transition) {
		transitions = append(transitions, tr)
	}))

	body, err := c.Fetch(context.Background(), "https://example.test/a", 3)
	require.NoError(t, err)
	assert.Equal(t, "ok", body)
	assert.Equal(t, 1, proxy.restarted)
	assert.Equal(t, []time.Duration{10 * time.Second}, pauser.Delays())

	var states []State
	for _, tr := range transitions {
		states = append(states, tr.To)
	}
	assert.Equal(t, []State{Restarting, BackingOff, Attempting, Succeeded}, states)
	assert.Equal(t, ReasonServerError, transitions[0].Reason)
}

func TestFetchRecoversFromUnhealthyProxyTwice(t *testing.T) {
	t.Parallel()

	proxy := newScriptedProxy()
	proxy.health = []bool{false, false}
	proxy.fetches = []fetchResult{{err: errors.New("connection reset")}, {body: "ok"}}
	pauser := &pacing.Recorder{}
	c := newTestController(proxy, pauser)

	body, err := c.Fetch(context.Background(), "https://example.test/a", 3)
	require.NoError(t, err)
	assert.Equal(t, "ok", body)
	assert.Equal(t, 2, proxy.restarted)
	assert.Len(t, proxy.fetched, 2)
}

func TestFetchUnhealthyRestartFailureExhausts(t *testing.T) {
	t.Parallel()

	proxy := newScriptedProxy()
	proxy.health = []bool{false, false, false}
	boom := errors.New("docker missing")
	proxy.restarts = []error{boom, boom, boom}
	pauser := &pacing.Recorder{}
	var transitions []Transition
	c := newTestController(proxy, pauser, WithTransitionHook(func(tr Transition) {
		transitions = append(transitions, tr)
	}))

	_, err := c.Fetch(context.Background(), "https://example.test/a", 3)
	require.ErrorIs(t, err, ErrProxyUnhealthy)
	assert.Empty(t, proxy.fetched, "no fetch without a healthy proxy")
	assert.Empty(t, proxy.created)
	assert.Equal(t, []time.Duration{10 * time.Second, 10 * time.Second}, pauser.Delays())
	assert.Equal(t, Exhausted, transitions[len(transitions)-1].To)
}

func TestFetchPurgesStaleSessions(t *testing.T) {
	t.Parallel()

	proxy := newScriptedProxy()
	proxy.open["leftover_a"] = struct{}{}
	proxy.open["leftover_b"] = struct{}{}
	c := newTestController(proxy, &pacing.Recorder{})

	_, err := c.Fetch(context.Background(), "https://example.test/a", 1)
	require.NoError(t, err)
	assert.Equal(t, 0, proxy.openSessions())
	assert.Len(t, proxy.destroyed, 3)
}

func TestFetchSessionCreateFailureIsFlatBackoff(t *testing.T) {
	t.Parallel()

	proxy := newScriptedProxy()
	proxy.creates = []error{&flaresolverr.TransportError{Op: "sessions.create", Err: errors.New("refused")}}
	pauser := &pacing.Recorder{}
	c := newTestController(proxy, pauser)

	_, err := c.Fetch(context.Background(), "https://example.test/a", 2)
	require.NoError(t, err)
	assert.Equal(t, []time.Duration{5 * time.Second}, pauser.Delays())
	assert.Equal(t, []string{"test_1_1"}, proxy.created)
}

func TestFetchSessionNamesAreUniqueAcrossFetches(t *testing.T) {
	t.Parallel()

	proxy := newScriptedProxy()
	c := newTestController(proxy, &pacing.Recorder{})
	for i := 0; i < 3; i++ {
		_, err := c.Fetch(context.Background(), "https://example.test/a", 1)
		require.NoError(t, err)
	}
	seen := map[string]bool{}
	for _, name := range proxy.created {
		assert.False(t, seen[name], name)
		seen[name] = true
		assert.True(t, strings.HasPrefix(name, "test_"))
	}
}

func TestFetchBackoffHonoursCancellation(t *testing.T) {
	t.Parallel()

	proxy := newScriptedProxy()
	proxy.fetches = []fetchResult{{err: flaresolverr.ErrTimeout}}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	c := newTestController(proxy, &pacing.Recorder{})

	_, err := c.Fetch(ctx, "https://example.test/a", 3)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, proxy.openSessions())
}

func TestPurgeSessionsCountsDestroyed(t *testing.T) {
	t.Parallel()

	proxy := newScriptedProxy()
	proxy.open["a"] = struct{}{}
	c := New(proxy)
	assert.Equal(t, 1, c.PurgeSessions(context.Background()))
	assert.Equal(t, 0, c.PurgeSessions(context.Background()))
}
