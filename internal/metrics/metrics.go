// Package metrics exposes Prometheus collectors for the scraper.
package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	proxyCommandsTotal         *prometheus.CounterVec
	proxyHealthChecksTotal     *prometheus.CounterVec
	proxyRestartsTotal         *prometheus.CounterVec
	fetchAttemptsTotal         *prometheus.CounterVec
	fetchBackoffSeconds        *prometheus.HistogramVec
	seasonsTotal               *prometheus.CounterVec
	playersExtractedTotal      prometheus.Counter
	clubsTotal                 *prometheus.CounterVec
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		proxyCommandsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scraper_proxy_commands_total",
				Help: "Commands sent to the challenge-bypass proxy, labeled by command and outcome.",
			},
			[]string{"cmd", "outcome"},
		)

		proxyHealthChecksTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scraper_proxy_health_checks_total",
				Help: "Proxy health probes, labeled by result.",
			},
			[]string{"result"},
		)

		proxyRestartsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scraper_proxy_restarts_total",
				Help: "Proxy restarts, labeled by result.",
			},
			[]string{"result"},
		)

		fetchAttemptsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scraper_fetch_attempts_total",
				Help: "Resilient fetch attempts, labeled by the state entered after the attempt.",
			},
			[]string{"state"},
		)

		fetchBackoffSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "scraper_fetch_backoff_seconds",
				Help:    "Backoff delays applied between fetch attempts, labeled by reason.",
				Buckets: []float64{1, 5, 10, 15, 20, 30, 45, 60},
			},
			[]string{"reason"},
		)

		seasonsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scraper_seasons_total",
				Help: "Processed club-seasons, labeled by status.",
			},
			[]string{"status"},
		)

		playersExtractedTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "scraper_players_extracted_total",
				Help: "Distinct player records persisted.",
			},
		)

		clubsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scraper_clubs_total",
				Help: "Processed clubs, labeled by status.",
			},
			[]string{"status"},
		)

		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests, labeled by method and code.",
			},
			[]string{"method", "code"},
		)

		httpRequestDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Histogram of HTTP request latencies, labeled by method and route.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
			},
			[]string{"method", "route"},
		)
	})
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveProxyCommand counts a proxy command by outcome.
func ObserveProxyCommand(cmd, outcome string) {
	Init()
	proxyCommandsTotal.WithLabelValues(cmd, outcome).Inc()
}

// ObserveHealthCheck counts a health probe.
func ObserveHealthCheck(healthy bool) {
	Init()
	proxyHealthChecksTotal.WithLabelValues(result(healthy)).Inc()
}

// ObserveRestart counts a proxy restart.
func ObserveRestart(ok bool) {
	Init()
	proxyRestartsTotal.WithLabelValues(result(ok)).Inc()
}

// ObserveFetchAttempt counts an attempt by the state it led to.
func ObserveFetchAttempt(state string) {
	Init()
	fetchAttemptsTotal.WithLabelValues(state).Inc()
}

// ObserveBackoff records a backoff delay.
func ObserveBackoff(reason string, delay time.Duration) {
	Init()
	fetchBackoffSeconds.WithLabelValues(reason).Observe(delay.Seconds())
}

// ObserveSeason counts a processed club-season and the players it produced.
func ObserveSeason(status string, players int) {
	Init()
	seasonsTotal.WithLabelValues(status).Inc()
	if players > 0 {
		playersExtractedTotal.Add(float64(players))
	}
}

// ObserveClub counts a processed club.
func ObserveClub(status string) {
	Init()
	clubsTotal.WithLabelValues(status).Inc()
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	Init()
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}

func result(ok bool) string {
	if ok {
		return "ok"
	}
	return "failed"
}
