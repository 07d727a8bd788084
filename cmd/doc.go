// Package cmd implements the appearances-scraper command line.
//
// The root command loads configuration (file via --config, overridden by SCRAPER_*
// environment variables), wires the proxy client, resilience controller, season
// discovery, pagination walker and season stores, then runs the sweep over the club
// list. The first SIGINT or SIGTERM stops the run at the next season boundary; a
// second one exits immediately.
package cmd
