// Package api hosts the operator status server that runs alongside a scrape.
// Routes:
//   - GET /healthz and /readyz for liveness and proxy readiness.
//   - GET /metrics for Prometheus scraping.
//   - GET /v1/status for the current club, season and counters.
//   - GET /v1/failures for the failure ledger so far.
package api
