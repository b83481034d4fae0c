// Package cli implements the insead-events command-line interface.
//
// The root command has two subcommands. sync scrapes the listing and upserts
// every event into the configured store. scrape only prints the aggregated
// events as text, JSON or an iCalendar feed, sorted by date, title or
// location. Exit codes distinguish a clean run, an error and a run that
// completed with per-record sync failures.
package cli
