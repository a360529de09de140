package selection

import (
	"strings"
	"time"
	_ "time/tzdata" // display zone must resolve on hosts without a zoneinfo database

	"github.com/araddon/dateparse"
	"github.com/charmbracelet/lipgloss"

	"github.com/abelbrown/steward/internal/policy"
)

// DisplayZone is the fixed zone every timestamp is rendered in, so all viewers
// see the same wall-clock time regardless of their machine settings.
const DisplayZone = "Australia/Sydney"

// displayLayout mirrors the en-AU short date/time style: "1 Jun 2025, 09:00 am".
const displayLayout = "2 Jan 2006, 03:04 pm"

var displayLoc = mustLoadLocation(DisplayZone)

func mustLoadLocation(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		panic("selection: load display zone: " + err.Error())
	}
	return loc
}

// FormatTimestamp renders an upstream timestamp for display. Absent or
// "Unknown" values render as "Unknown"; input that cannot be parsed is
// returned unchanged.
func FormatTimestamp(value string) string {
	v := strings.TrimSpace(value)
	if v == "" || strings.EqualFold(v, policy.Unknown) {
		return policy.Unknown
	}
	t, err := parseTimestamp(v)
	if err != nil {
		return value
	}
	return t.In(displayLoc).Format(displayLayout)
}

// parseTimestamp accepts ISO 8601 as written by the pipeline, and falls back
// to lenient parsing for older manifests. Zone-less values are read as
// display-zone wall time, which is what the pipeline writes.
func parseTimestamp(v string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339Nano, v); err == nil {
		return t, nil
	}
	return dateparse.ParseIn(v, displayLoc)
}

// Accent colors for priority badges.
var priorityColors = map[policy.Priority]lipgloss.Color{
	policy.PriorityCritical: lipgloss.Color("#dc2626"), // red
	policy.PriorityHigh:     lipgloss.Color("#ea580c"), // orange
	policy.PriorityMedium:   lipgloss.Color("#d97706"), // amber
	policy.PriorityLow:      lipgloss.Color("#16a34a"), // green
	policy.PriorityUnknown:  lipgloss.Color("#6b7280"), // gray
}

// PriorityColor maps a priority to its badge accent. Total: anything
// unrecognized gets the unknown color.
func PriorityColor(p policy.Priority) lipgloss.Color {
	return priorityColors[policy.ParsePriority(string(p))]
}
