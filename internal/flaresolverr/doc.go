// Package flaresolverr is a client for the FlareSolverr challenge-bypass proxy.
//
// The proxy accepts JSON commands over HTTP POST on a single endpoint. This package
// wraps the commands the scraper needs (sessions.list, sessions.create,
// sessions.destroy and request.get), the idle-proxy health probe, and restarts of
// the proxy container. Failures are reported as ErrTimeout, *ProxyError or
// *TransportError so callers can pick a recovery strategy.
package flaresolverr
