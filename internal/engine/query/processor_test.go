package query

import (
	"fmt"
	"reflect"
	"testing"

	"github.com/secid-mx/community-search/internal/engine/index"
)

// buildSnapshot indexes title-field postings for each doc's terms.
func buildSnapshot(t *testing.T, docs map[string][]string) *index.Snapshot {
	t.Helper()
	store := index.NewStore()
	err := store.Mutate(func(b *index.Builder) error {
		for id, terms := range docs {
			key := index.DocKey{Type: index.TypeJob, ID: id}
			for pos, term := range terms {
				b.PutPosting(term, &index.Posting{
					Doc:       key,
					Field:     index.FieldTitle,
					Positions: []int{pos},
					Frequency: 1,
				})
			}
			b.PutDocument(&index.Document{ID: id, Type: index.TypeJob, Title: "t"})
		}
		return nil
	})
	if err != nil {
		t.Fatalf("building snapshot: %v", err)
	}
	return store.Active()
}

func defaultOptions() Options {
	return Options{ShortTermLength: 4}
}

func TestExpandExactOnly(t *testing.T) {
	snap := buildSnapshot(t, map[string][]string{"1": {"machine", "learn"}})
	exps := New().Expand(snap, []string{"machine"}, defaultOptions())
	if len(exps) != 1 {
		t.Fatalf("got %d expansions", len(exps))
	}
	if len(exps[0].Variants) != 1 || !exps[0].Variants[0].Exact {
		t.Fatalf("variants = %+v, want only the exact term", exps[0].Variants)
	}
}

func TestExpandExactTermAlwaysAccepted(t *testing.T) {
	// Even when the term is not in the dictionary.
	snap := buildSnapshot(t, map[string][]string{"1": {"other"}})
	exps := New().Expand(snap, []string{"missing"}, defaultOptions())
	if len(exps[0].Variants) == 0 || exps[0].Variants[0].Term != "missing" {
		t.Fatalf("variants = %+v", exps[0].Variants)
	}
}

func TestExpandTypoTolerance(t *testing.T) {
	snap := buildSnapshot(t, map[string][]string{"1": {"machine", "learn"}})
	opts := defaultOptions()
	opts.TypoTolerance = true

	exps := New().Expand(snap, []string{"machne"}, opts)
	variants := exps[0].Variants
	if len(variants) != 2 {
		t.Fatalf("variants = %+v, want exact + machine", variants)
	}
	if variants[0].Term != "machne" || !variants[0].Exact {
		t.Errorf("first variant = %+v, want the exact query term", variants[0])
	}
	if variants[1].Term != "machine" || variants[1].Distance != 1 {
		t.Errorf("second variant = %+v, want machine at distance 1", variants[1])
	}
}

func TestExpandShortTermsGetTighterBudget(t *testing.T) {
	// "data" has 4 runes, at the short-term threshold, so only distance 1 is
	// allowed: "dates" (distance 2) must not be accepted.
	snap := buildSnapshot(t, map[string][]string{"1": {"date", "dates"}})
	opts := defaultOptions()
	opts.TypoTolerance = true

	exps := New().Expand(snap, []string{"data"}, opts)
	for _, v := range exps[0].Variants {
		if v.Term == "dates" {
			t.Errorf("distance-2 variant accepted for a short term: %+v", v)
		}
	}
	found := false
	for _, v := range exps[0].Variants {
		if v.Term == "date" {
			found = true
		}
	}
	if !found {
		t.Error("distance-1 variant missing for a short term")
	}
}

func TestExpandFuzzyPrefix(t *testing.T) {
	snap := buildSnapshot(t, map[string][]string{"1": {"development", "developer"}})
	opts := defaultOptions()
	opts.FuzzyMatching = true

	exps := New().Expand(snap, []string{"develop"}, opts)
	got := make(map[string]bool)
	for _, v := range exps[0].Variants {
		got[v.Term] = true
	}
	if !got["development"] || !got["developer"] {
		t.Errorf("prefix variants missing: %+v", exps[0].Variants)
	}
}

func TestExpandNoPrefixForShortTerms(t *testing.T) {
	snap := buildSnapshot(t, map[string][]string{"1": {"golang"}})
	opts := defaultOptions()
	opts.FuzzyMatching = true

	exps := New().Expand(snap, []string{"go"}, opts)
	if len(exps[0].Variants) != 1 {
		t.Errorf("two-rune prefix expanded: %+v", exps[0].Variants)
	}
}

func TestExpandDeterministicOrder(t *testing.T) {
	snap := buildSnapshot(t, map[string][]string{
		"1": {"taller", "talleres", "tallera", "tallero"},
	})
	opts := defaultOptions()
	opts.TypoTolerance = true
	opts.FuzzyMatching = true

	first := New().Expand(snap, []string{"taller"}, opts)
	for i := 0; i < 5; i++ {
		again := New().Expand(snap, []string{"taller"}, opts)
		if len(again[0].Variants) != len(first[0].Variants) {
			t.Fatalf("variant count changed between runs")
		}
		for j := range first[0].Variants {
			if again[0].Variants[j] != first[0].Variants[j] {
				t.Fatalf("variant order changed: %+v vs %+v", first[0].Variants, again[0].Variants)
			}
		}
	}
}

func TestExpandCapKeepsClosestVariants(t *testing.T) {
	// 100 dictionary terms sit within edit distance 2 of the query term, well
	// over the per-term cap. The cap must keep the closest candidates and
	// accept the same set on every call, regardless of dictionary iteration
	// order.
	terms := make([]string, 0, 100)
	for i := 0; i < 100; i++ {
		terms = append(terms, fmt.Sprintf("zzterm%03d", i))
	}
	snap := buildSnapshot(t, map[string][]string{"1": terms})
	opts := defaultOptions()
	opts.TypoTolerance = true

	first := New().Expand(snap, []string{"zzterm00x"}, opts)
	variants := first[0].Variants
	if len(variants) != maxVariantsPerTerm+1 {
		t.Fatalf("variant count = %d, want exact term + %d capped", len(variants), maxVariantsPerTerm)
	}
	for i := 2; i < len(variants); i++ {
		a, b := variants[i-1], variants[i]
		if a.Distance > b.Distance || (a.Distance == b.Distance && a.Term > b.Term) {
			t.Fatalf("variants not ordered by (distance, term) at %d: %+v then %+v", i, a, b)
		}
	}
	accepted := make(map[string]bool, len(variants))
	for _, v := range variants {
		accepted[v.Term] = true
	}
	// Every distance-1 candidate outranks the distance-2 crowd and survives.
	for i := 0; i < 10; i++ {
		if term := fmt.Sprintf("zzterm%03d", i); !accepted[term] {
			t.Errorf("distance-1 candidate %q evicted by the cap", term)
		}
	}

	for run := 0; run < 10; run++ {
		again := New().Expand(snap, []string{"zzterm00x"}, opts)
		if !reflect.DeepEqual(again[0].Variants, variants) {
			t.Fatalf("accepted variant set changed between identical calls")
		}
	}
}

func TestRetrieveANDSemantics(t *testing.T) {
	snap := buildSnapshot(t, map[string][]string{
		"both":      {"data", "scientist"},
		"data-only": {"data", "engineer"},
		"sci-only":  {"scientist", "lead"},
	})
	exps := New().Expand(snap, []string{"data", "scientist"}, defaultOptions())
	matches := New().Retrieve(snap, exps)
	if len(matches) != 1 {
		t.Fatalf("matches = %d, want 1", len(matches))
	}
	if matches[0].Key.ID != "both" {
		t.Errorf("matched %q, want the document containing every term", matches[0].Key.ID)
	}
	if len(matches[0].Terms) != 2 {
		t.Errorf("term match count = %d, want 2", len(matches[0].Terms))
	}
}

func TestRetrieveUnmatchedTermEmptiesResult(t *testing.T) {
	snap := buildSnapshot(t, map[string][]string{"1": {"data"}})
	exps := New().Expand(snap, []string{"data", "unicorn"}, defaultOptions())
	if matches := New().Retrieve(snap, exps); len(matches) != 0 {
		t.Errorf("matches = %d, want 0 under AND semantics", len(matches))
	}
}

func TestRetrieveUnionsVariants(t *testing.T) {
	// A document containing only the corrected spelling must still match the
	// misspelled query term through its typo variant.
	snap := buildSnapshot(t, map[string][]string{"1": {"machine"}})
	opts := defaultOptions()
	opts.TypoTolerance = true
	exps := New().Expand(snap, []string{"machne"}, opts)

	matches := New().Retrieve(snap, exps)
	if len(matches) != 1 {
		t.Fatalf("matches = %d, want 1", len(matches))
	}
	tm := matches[0].Terms[0]
	if tm.Exact {
		t.Error("variant-only match flagged exact")
	}
	fm, ok := tm.Fields[index.FieldTitle]
	if !ok || fm.Exact {
		t.Errorf("field match = %+v, want non-exact title match", fm)
	}
}

func TestRetrieveMergesPositionsSorted(t *testing.T) {
	store := index.NewStore()
	key := index.DocKey{Type: index.TypeJob, ID: "1"}
	err := store.Mutate(func(b *index.Builder) error {
		b.PutPosting("data", &index.Posting{Doc: key, Field: index.FieldTitle, Positions: []int{4, 0, 2}, Frequency: 3})
		b.PutDocument(&index.Document{ID: "1", Type: index.TypeJob, Title: "t"})
		return nil
	})
	if err != nil {
		t.Fatalf("mutate: %v", err)
	}
	snap := store.Active()

	exps := New().Expand(snap, []string{"data"}, defaultOptions())
	matches := New().Retrieve(snap, exps)
	positions := matches[0].Terms[0].Fields[index.FieldTitle].Positions
	for i := 1; i < len(positions); i++ {
		if positions[i-1] > positions[i] {
			t.Fatalf("positions not sorted: %v", positions)
		}
	}
}
