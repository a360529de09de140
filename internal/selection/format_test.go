package selection

import (
	"testing"

	"github.com/charmbracelet/lipgloss"

	"github.com/abelbrown/steward/internal/policy"
)

func TestFormatTimestamp(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"2025-06-01T09:00:00+10:00", "1 Jun 2025, 09:00 am"},
		{"2025-01-15T00:00:00Z", "15 Jan 2025, 11:00 am"}, // AEDT is UTC+11
		{"2025-06-01T03:30:00.123Z", "1 Jun 2025, 01:30 pm"},
		{"2025-06-01 14:05:00", "1 Jun 2025, 02:05 pm"}, // zone-less reads as Sydney wall time
		{"", "Unknown"},
		{"   ", "Unknown"},
		{"Unknown", "Unknown"},
		{"unknown", "Unknown"},
		{"???", "???"},
		{"not a date", "not a date"},
	}

	for _, tt := range tests {
		if got := FormatTimestamp(tt.in); got != tt.want {
			t.Errorf("FormatTimestamp(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestPriorityColor(t *testing.T) {
	tests := []struct {
		in   policy.Priority
		want lipgloss.Color
	}{
		{policy.PriorityCritical, "#dc2626"},
		{policy.PriorityHigh, "#ea580c"},
		{policy.PriorityMedium, "#d97706"},
		{policy.PriorityLow, "#16a34a"},
		{policy.PriorityUnknown, "#6b7280"},
		{policy.Priority("HIGH"), "#ea580c"},
		{policy.Priority("urgent"), "#6b7280"},
		{policy.Priority(""), "#6b7280"},
	}

	for _, tt := range tests {
		if got := PriorityColor(tt.in); got != tt.want {
			t.Errorf("PriorityColor(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
