// Package policy holds the data model for monitored policy sets and the pure
// transforms over it: manifest normalization and category grouping.
package policy

import (
	"net/url"
	"strings"
)

// DefaultCategory is used when a manifest entry has no category.
const DefaultCategory = "Uncategorized"

// Unknown is the display value for absent timestamps.
const Unknown = "Unknown"

// SourceURL is one monitored page within a policy set.
type SourceURL struct {
	URL string `json:"url"`
}

// PolicySet is one monitored topic. Name is unique within a manifest.
type PolicySet struct {
	Name        string
	FileID      string
	URLs        []SourceURL
	Category    string
	LastChecked string
	LastAmended string // empty when never amended
	Hash        string // upstream content hash, may be empty
}

// Valid reports whether the set can be displayed and its artifacts located.
func (p PolicySet) Valid() bool {
	return p.FileID != "" && len(p.URLs) > 0
}

// PrimaryURL returns the first monitored URL, or "" if there is none.
func (p PolicySet) PrimaryURL() string {
	if len(p.URLs) == 0 {
		return ""
	}
	return p.URLs[0].URL
}

// Host returns the host of the primary URL without a leading "www.".
func (p PolicySet) Host() string {
	u, err := url.Parse(p.PrimaryURL())
	if err != nil || u.Host == "" {
		return ""
	}
	return strings.TrimPrefix(u.Hostname(), "www.")
}

// FaviconURL returns an icon lookup URL for the primary URL's domain.
func (p PolicySet) FaviconURL() string {
	host := p.Host()
	if host == "" {
		return ""
	}
	return "https://www.google.com/s2/favicons?sz=32&domain=" + url.QueryEscape(host)
}

// ShortHash returns the first 8 characters of the content hash.
func (p PolicySet) ShortHash() string {
	if len(p.Hash) > 8 {
		return p.Hash[:8]
	}
	return p.Hash
}

// Priority is the urgency assigned to a change by the analysis pipeline.
type Priority string

const (
	PriorityCritical Priority = "critical"
	PriorityHigh     Priority = "high"
	PriorityMedium   Priority = "medium"
	PriorityLow      Priority = "low"
	PriorityUnknown  Priority = "unknown"
)

// ParsePriority maps raw input case-insensitively; anything unrecognized is
// PriorityUnknown.
func ParsePriority(s string) Priority {
	switch p := Priority(strings.ToLower(strings.TrimSpace(s))); p {
	case PriorityCritical, PriorityHigh, PriorityMedium, PriorityLow:
		return p
	default:
		return PriorityUnknown
	}
}

// Label is the badge text, e.g. "LOW".
func (p Priority) Label() string {
	return strings.ToUpper(string(ParsePriority(string(p))))
}

// Analysis is the AI-generated change summary for one policy set.
type Analysis struct {
	Summary  string
	Body     string // markdown
	DateTime string
	Priority Priority
}

// Placeholder text used when artifacts are missing or unreadable.
const (
	PlaceholderSummary  = "No analysis found for this policy set."
	PlaceholderBody     = "This may be the first time this policy set has been scanned, or an error occurred during the last analysis run. Check back after the next scheduled scan."
	PlaceholderSnapshot = "Could not load snapshot. This may be the first time this policy set has been scanned."
)

// PlaceholderAnalysis is shown when no analysis artifact could be read.
func PlaceholderAnalysis() Analysis {
	return Analysis{
		Summary:  PlaceholderSummary,
		Body:     PlaceholderBody,
		DateTime: Unknown,
		Priority: PriorityLow,
	}
}
