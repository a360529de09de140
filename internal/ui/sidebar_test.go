package ui

import (
	"strings"
	"testing"

	"github.com/abelbrown/steward/internal/policy"
)

func entriesFor(cats ...string) []sidebarEntry {
	var out []sidebarEntry
	for i, c := range cats {
		out = append(out, sidebarEntry{Category: c, Set: policy.PolicySet{Name: c + string(rune('a'+i))}})
	}
	return out
}

func TestFlattenOrdersAndFilters(t *testing.T) {
	idx := policy.Group([]policy.PolicySet{
		{Name: "Zeta", Category: "B"},
		{Name: "Alpha", Category: "A"},
		{Name: "Beta Rules", Category: "B"},
	})

	var names []string
	for _, e := range flatten(idx, "") {
		names = append(names, e.Category+"/"+e.Set.Name)
	}
	if got := strings.Join(names, ","); got != "A/Alpha,B/Zeta,B/Beta Rules" {
		t.Errorf("flatten = %s", got)
	}

	got := flatten(idx, "  RULES ")
	if len(got) != 1 || got[0].Set.Name != "Beta Rules" {
		t.Errorf("filter should be trimmed and case-insensitive, got %+v", got)
	}
}

func TestVisibleLineCountIncludesHeaders(t *testing.T) {
	entries := entriesFor("A", "A", "B")
	// header A + 2 entries + header B + 1 entry
	if got := visibleLineCount(entries, 0, 2); got != 2+3*linesPerEntry {
		t.Errorf("visibleLineCount = %d", got)
	}
	// starting mid-category: no header for A, header for B
	if got := visibleLineCount(entries, 1, 2); got != 1+2*linesPerEntry {
		t.Errorf("visibleLineCount from 1 = %d", got)
	}
}

func TestCalcScrollOffsetKeepsCursorVisible(t *testing.T) {
	entries := entriesFor("A", "A", "A", "A", "B", "B", "B", "B")
	for cursor := range entries {
		for _, height := range []int{3, 5, 8, 30} {
			off := calcScrollOffset(entries, cursor, height)
			if off > cursor {
				t.Fatalf("cursor=%d height=%d: offset %d past cursor", cursor, height, off)
			}
			if height >= 1+linesPerEntry && visibleLineCount(entries, off, cursor) > height {
				t.Errorf("cursor=%d height=%d: offset %d does not fit", cursor, height, off)
			}
		}
	}
	if calcScrollOffset(nil, 0, 10) != 0 {
		t.Error("empty list should not scroll")
	}
}

func TestRenderEntriesFitsHeight(t *testing.T) {
	entries := entriesFor("A", "A", "B", "B", "C", "C")
	out := renderEntries(entries, 5, "", 40, 7)
	if lines := strings.Count(out, "\n"); lines > 7 {
		t.Errorf("rendered %d lines into 7", lines)
	}
	if !strings.Contains(out, entries[5].Set.Name) {
		t.Errorf("cursor entry should be visible:\n%s", out)
	}
	if !strings.Contains(out, "C") {
		t.Error("category header for the cursor entry should be visible")
	}
}

func TestEntryMeta(t *testing.T) {
	s := policy.PolicySet{
		URLs:        []policy.SourceURL{{URL: "https://www.example.gov/x"}},
		LastChecked: "2025-06-01T09:00:00+10:00",
	}
	if got := entryMeta(s); got != "example.gov · checked 1 Jun 2025, 09:00 am" {
		t.Errorf("entryMeta = %q", got)
	}

	s.LastAmended = "Unknown"
	if got := entryMeta(s); !strings.HasSuffix(got, "amended Unknown") {
		t.Errorf("entryMeta with amend = %q", got)
	}
}

func TestSidebarTitle(t *testing.T) {
	if got := sidebarTitle(3); got != "Monitored Policy Sets (3)" {
		t.Errorf("sidebarTitle = %q", got)
	}
}
