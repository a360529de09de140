package policy

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func sampleSets() []PolicySet {
	mk := func(name, cat string) PolicySet {
		return PolicySet{Name: name, FileID: name, URLs: []SourceURL{{URL: "https://" + name}}, Category: cat}
	}
	return []PolicySet{
		mk("openai-terms", "Terms"),
		mk("gov-ai-policy", "Government"),
		mk("anthropic-usage", "Terms"),
		mk("privacy-act", "Privacy"),
		mk("misc", ""),
		mk("gov-guidance", "Government"),
	}
}

func names(sets []PolicySet) []string {
	out := make([]string, len(sets))
	for i, s := range sets {
		out[i] = s.Name
	}
	return out
}

func TestGroupCategoriesSorted(t *testing.T) {
	idx := Group(sampleSets())

	want := []string{"Government", "Privacy", "Terms", DefaultCategory}
	if diff := cmp.Diff(want, idx.Categories()); diff != "" {
		t.Errorf("categories mismatch (-want +got):\n%s", diff)
	}
}

func TestGroupKeepsManifestOrderWithinCategory(t *testing.T) {
	idx := Group(sampleSets())

	if diff := cmp.Diff([]string{"gov-ai-policy", "gov-guidance"}, names(idx.Sets("Government"))); diff != "" {
		t.Errorf("Government order (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"openai-terms", "anthropic-usage"}, names(idx.Sets("Terms"))); diff != "" {
		t.Errorf("Terms order (-want +got):\n%s", diff)
	}
}

func TestGroupIsStableAndComplete(t *testing.T) {
	sets := sampleSets()
	first := Group(sets)
	second := Group(sets)

	if diff := cmp.Diff(first.Ordered(), second.Ordered()); diff != "" {
		t.Errorf("grouping not deterministic (-first +second):\n%s", diff)
	}

	flat := first.Ordered()
	if len(flat) != len(sets) || first.Len() != len(sets) {
		t.Fatalf("expected %d sets after flattening, got %d", len(sets), len(flat))
	}
	seen := make(map[string]int)
	for _, s := range flat {
		seen[s.Name]++
	}
	for _, s := range sets {
		if seen[s.Name] != 1 {
			t.Errorf("%s appears %d times", s.Name, seen[s.Name])
		}
	}
}

func TestGroupEmpty(t *testing.T) {
	idx := Group(nil)
	if idx.Len() != 0 || len(idx.Categories()) != 0 {
		t.Errorf("empty input should give empty index, got %d sets", idx.Len())
	}
	if got := idx.Sets("anything"); len(got) != 0 {
		t.Errorf("unknown category should be empty, got %v", got)
	}
}

func TestGrouperMemoizesOnSameSlice(t *testing.T) {
	var g Grouper
	sets := sampleSets()

	a := g.Group(sets)
	b := g.Group(sets)
	if g.Runs() != 1 {
		t.Errorf("same slice should not regroup, runs = %d", g.Runs())
	}
	if diff := cmp.Diff(a.Ordered(), b.Ordered()); diff != "" {
		t.Errorf("cached index differs:\n%s", diff)
	}

	g.Group(sampleSets())
	if g.Runs() != 2 {
		t.Errorf("new slice should regroup, runs = %d", g.Runs())
	}

	g.Group(sets[:3])
	if g.Runs() != 3 {
		t.Errorf("resliced input should regroup, runs = %d", g.Runs())
	}
}

func TestIndexAccessorsReturnCopies(t *testing.T) {
	idx := Group(sampleSets())
	cats := idx.Categories()
	cats[0] = "mutated"
	if idx.Categories()[0] == "mutated" {
		t.Error("Categories should return a copy")
	}
	terms := idx.Sets("Terms")
	terms[0].Name = "mutated"
	if idx.Sets("Terms")[0].Name == "mutated" {
		t.Error("Sets should return a copy")
	}
}
