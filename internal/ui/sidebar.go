package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/abelbrown/steward/internal/policy"
	"github.com/abelbrown/steward/internal/selection"
)

// linesPerEntry is the rendered height of one policy set: name + meta line.
const linesPerEntry = 2

// sidebarEntry is one visible policy set with the category it is listed under.
type sidebarEntry struct {
	Category string
	Set      policy.PolicySet
}

// flatten lists the index in display order: categories sorted, manifest order
// within each category. Sets whose name does not contain filter
// (case-insensitive) are skipped.
func flatten(idx policy.Index, filter string) []sidebarEntry {
	needle := strings.ToLower(strings.TrimSpace(filter))
	var out []sidebarEntry
	for _, cat := range idx.Categories() {
		for _, s := range idx.Sets(cat) {
			if needle != "" && !strings.Contains(strings.ToLower(s.Name), needle) {
				continue
			}
			out = append(out, sidebarEntry{Category: cat, Set: s})
		}
	}
	return out
}

// sidebarTitle is the count header, e.g. "Monitored Policy Sets (3)".
func sidebarTitle(n int) string {
	return fmt.Sprintf("Monitored Policy Sets (%d)", n)
}

// renderEntries renders category headers and entries, scrolled so the cursor
// stays visible within height lines.
func renderEntries(entries []sidebarEntry, cursor int, active string, width, height int) string {
	if len(entries) == 0 || height < 1 {
		return ""
	}

	var b strings.Builder
	scrollOffset := calcScrollOffset(entries, cursor, height)
	currentCat := ""
	if scrollOffset > 0 {
		currentCat = entries[scrollOffset-1].Category
	}
	rendered := 0

	for i := scrollOffset; i < len(entries) && rendered < height; i++ {
		e := entries[i]
		if e.Category != currentCat {
			currentCat = e.Category
			b.WriteString(CategoryHeader.Render(truncateRunes(e.Category, width-2)))
			b.WriteString("\n")
			rendered++
			if rendered >= height {
				break
			}
		}

		b.WriteString(renderEntryLine(e.Set, i == cursor, e.Set.Name == active, width))
		b.WriteString("\n")
		rendered++
		if rendered >= height {
			break
		}
		b.WriteString(ItemMeta.Render(truncateRunes(entryMeta(e.Set), width-4)))
		b.WriteString("\n")
		rendered++
	}

	return b.String()
}

// calcScrollOffset finds the smallest entry index such that all lines from
// that index through the cursor (including category headers) fit within
// height.
func calcScrollOffset(entries []sidebarEntry, cursor, height int) int {
	if len(entries) == 0 || cursor < 0 {
		return 0
	}
	if cursor >= len(entries) {
		cursor = len(entries) - 1
	}

	offset := 0
	if need := (cursor + 1) * linesPerEntry; need > height {
		offset = cursor - height/linesPerEntry + 1
		if offset < 0 {
			offset = 0
		}
	}
	for offset <= cursor {
		if visibleLineCount(entries, offset, cursor) <= height {
			return offset
		}
		offset++
	}
	return cursor
}

// visibleLineCount counts how many lines entries[from..to] render to,
// including any category headers within that range.
func visibleLineCount(entries []sidebarEntry, from, to int) int {
	lines := 0
	currentCat := ""
	if from > 0 {
		currentCat = entries[from-1].Category
	}
	for i := from; i <= to && i < len(entries); i++ {
		if entries[i].Category != currentCat {
			currentCat = entries[i].Category
			lines++
		}
		lines += linesPerEntry
	}
	return lines
}

func renderEntryLine(s policy.PolicySet, underCursor, active bool, width int) string {
	name := truncateRunes(s.Name, width-2)
	var style lipgloss.Style
	switch {
	case underCursor:
		style = SelectedItem
	case active:
		style = ActiveItem
	default:
		style = NormalItem
	}
	if underCursor && width > 2 {
		style = style.Width(width)
	}
	return style.Render(name)
}

// entryMeta is the second line of an entry: host and check/amend timestamps.
func entryMeta(s policy.PolicySet) string {
	parts := make([]string, 0, 3)
	if h := s.Host(); h != "" {
		parts = append(parts, h)
	}
	parts = append(parts, "checked "+selection.FormatTimestamp(s.LastChecked))
	if s.LastAmended != "" {
		parts = append(parts, "amended "+selection.FormatTimestamp(s.LastAmended))
	}
	return strings.Join(parts, " · ")
}
