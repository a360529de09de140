// Command steward is a terminal dashboard for monitored government policy
// sets: it lists every set the scraping pipeline tracks, grouped by category,
// and shows the latest AI change analysis and page snapshot for the one you
// select.
//
// Usage:
//
//	steward                  Start the TUI
//	steward report           Print a markdown digest of all analyses
//	steward events           Show the JSONL event log
//	steward version          Print version information
package main

func main() {
	Execute()
}
