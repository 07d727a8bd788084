package flaresolverr

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrTimeout reports that the proxy did not answer within the client-side bound.
var ErrTimeout = errors.New("flaresolverr: request timed out")

// ErrRestartUnsupported is returned by RestartProxy when no Restarter is configured.
var ErrRestartUnsupported = errors.New("flaresolverr: restart not configured")

// ErrNotReady is returned when the proxy does not become healthy after a restart.
var ErrNotReady = errors.New("flaresolverr: proxy not ready after restart")

// ProxyError is a failure reported by the proxy itself, either as a non-200 HTTP
// status or as a non-ok command status.
type ProxyError struct {
	Cmd        string
	StatusCode int
	Message    string
}

func (e *ProxyError) Error() string {
	return fmt.Sprintf("flaresolverr %s: status %d: %s", e.Cmd, e.StatusCode, e.Message)
}

// ServerError reports whether the proxy answered with an HTTP 5xx.
func (e *ProxyError) ServerError() bool {
	return e.StatusCode >= http.StatusInternalServerError
}

// TransportError is a network-level failure talking to the proxy.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("flaresolverr %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
