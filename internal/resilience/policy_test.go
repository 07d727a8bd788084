package resilience

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/JakeFAU/appearances-scraper/internal/flaresolverr"
)

func TestClassify(t *testing.T) {
	t.Parallel()

	p := DefaultPolicy()
	tests := []struct {
		name    string
		err     error
		attempt int
		want    Outcome
	}{
		{
			name: "server error restarts",
			err:  fmt.Errorf("fetch: %w", &flaresolverr.ProxyError{StatusCode: http.StatusInternalServerError, Message: "timeout"}),
			want: Outcome{Next: Restarting, Delay: 10 * time.Second, Reason: ReasonServerError},
		},
		{
			name:    "client timeout backs off longer",
			err:     fmt.Errorf("request.get: %w", flaresolverr.ErrTimeout),
			attempt: 1,
			want:    Outcome{Next: BackingOff, Delay: 30 * time.Second, Reason: ReasonTimeout},
		},
		{
			name:    "challenge message backs off linearly",
			err:     &flaresolverr.ProxyError{StatusCode: http.StatusOK, Message: "Error solving the Challenge"},
			attempt: 2,
			want:    Outcome{Next: BackingOff, Delay: 30 * time.Second, Reason: ReasonChallenge},
		},
		{
			name: "proxy timeout message",
			err:  &flaresolverr.ProxyError{StatusCode: http.StatusOK, Message: "Timeout after 180.0 seconds."},
			want: Outcome{Next: BackingOff, Delay: 10 * time.Second, Reason: ReasonChallenge},
		},
		{
			name: "unhealthy proxy",
			err:  fmt.Errorf("%w: %w", ErrProxyUnhealthy, errors.New("docker missing")),
			want: Outcome{Next: BackingOff, Delay: 10 * time.Second, Reason: ReasonUnhealthy},
		},
		{
			name: "other proxy message is flat",
			err:  &flaresolverr.ProxyError{StatusCode: http.StatusOK, Message: "net::ERR_NAME_NOT_RESOLVED"},
			want: Outcome{Next: BackingOff, Delay: 5 * time.Second, Reason: ReasonOther},
		},
		{
			name: "transport error is flat",
			err:  &flaresolverr.TransportError{Op: "request.get", Err: errors.New("connection reset")},
			want: Outcome{Next: BackingOff, Delay: 5 * time.Second, Reason: ReasonOther},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, p.Classify(tt.err, tt.attempt))
		})
	}
}

func TestStateString(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "backing_off", BackingOff.String())
	assert.Equal(t, "exhausted", Exhausted.String())
	assert.Equal(t, "state(42)", State(42).String())
}

func TestExhaustedErrorUnwraps(t *testing.T) {
	t.Parallel()

	err := &ExhaustedError{URL: "u", Attempts: 3, Last: flaresolverr.ErrTimeout}
	assert.ErrorIs(t, err, flaresolverr.ErrTimeout)
	assert.Contains(t, err.Error(), "3 attempts")
}
