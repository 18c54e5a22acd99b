package suggest

import (
	"fmt"
	"testing"

	"github.com/secid-mx/community-search/pkg/config"
)

func testStore() *Store {
	return NewStore(config.DefaultSuggest())
}

func TestSuggestByPrefix(t *testing.T) {
	s := testStore()
	s.RecordQuery("data scientist")
	s.RecordQuery("data engineer")
	s.RecordQuery("database administrator")
	s.RecordQuery("golang developer")

	got := s.Suggest("data")
	if len(got) != 3 {
		t.Fatalf("suggestions = %d, want 3: %+v", len(got), got)
	}
	for _, sg := range got {
		if sg.Text == "golang developer" {
			t.Errorf("non-prefix entry suggested: %+v", sg)
		}
	}
}

func TestSuggestFrequencyRanking(t *testing.T) {
	s := testStore()
	for i := 0; i < 5; i++ {
		s.RecordQuery("data scientist")
	}
	s.RecordQuery("data engineer")

	got := s.Suggest("data")
	if len(got) < 2 {
		t.Fatalf("suggestions = %+v", got)
	}
	if got[0].Text != "data scientist" {
		t.Errorf("top suggestion = %q, want the more frequent query", got[0].Text)
	}
	if got[0].Score <= got[1].Score {
		t.Errorf("scores not descending: %f, %f", got[0].Score, got[1].Score)
	}
}

func TestSuggestClosenessBreaksFrequencyTies(t *testing.T) {
	s := testStore()
	s.RecordQuery("go")
	s.RecordQuery("golang developer advocate")

	got := s.Suggest("go")
	if len(got) != 2 {
		t.Fatalf("suggestions = %+v", got)
	}
	if got[0].Text != "go" {
		t.Errorf("closest completion not ranked first: %+v", got)
	}
}

func TestSuggestMinPrefixLength(t *testing.T) {
	s := testStore()
	s.RecordQuery("golang")
	if got := s.Suggest("g"); len(got) != 0 {
		t.Errorf("single-rune prefix returned %+v", got)
	}
	if got := s.Suggest("go"); len(got) != 1 {
		t.Errorf("two-rune prefix returned %+v", got)
	}
}

func TestSuggestNormalizesPrefix(t *testing.T) {
	s := testStore()
	s.RecordQuery("programación en go")
	if got := s.Suggest("PROGRAMACIÓN"); len(got) != 1 {
		t.Errorf("accented upper-case prefix returned %+v", got)
	}
	// Original casing and accents are preserved in the suggestion text.
	got := s.Suggest("progra")
	if len(got) != 1 || got[0].Text != "programación en go" {
		t.Errorf("suggestion text = %+v, want original form", got)
	}
}

func TestSuggestLimit(t *testing.T) {
	cfg := config.DefaultSuggest()
	s := NewStore(cfg)
	for i := 0; i < 20; i++ {
		s.RecordQuery(fmt.Sprintf("query number %d", i))
	}
	if got := s.Suggest("query"); len(got) != cfg.Limit {
		t.Errorf("suggestions = %d, want limit %d", len(got), cfg.Limit)
	}
}

func TestQueryKindOutranksTitleKind(t *testing.T) {
	s := testStore()
	s.AddTerm("remote work", KindTitle, "")
	s.RecordQuery("remote jobs")

	got := s.Suggest("remote")
	if len(got) != 2 {
		t.Fatalf("suggestions = %+v", got)
	}
	if got[0].Type != KindQuery {
		t.Errorf("top suggestion kind = %q, want query over title at equal frequency", got[0].Type)
	}
}

func TestTermPromotedToQueryKind(t *testing.T) {
	s := testStore()
	s.AddTerm("mentoría", KindTag, "community")
	s.RecordQuery("mentoría")

	got := s.Suggest("mento")
	if len(got) != 1 {
		t.Fatalf("suggestions = %+v", got)
	}
	if got[0].Type != KindQuery {
		t.Errorf("kind = %q, want promotion to query", got[0].Type)
	}
	if got[0].Category != "community" {
		t.Errorf("category = %q, want preserved", got[0].Category)
	}
}

func TestStoreSizeBounded(t *testing.T) {
	cfg := config.DefaultSuggest()
	cfg.MaxStoreSize = 3
	s := NewStore(cfg)
	for i := 0; i < 10; i++ {
		s.RecordQuery(fmt.Sprintf("entry %d", i))
	}
	if got := s.Len(); got != 3 {
		t.Errorf("store size = %d, want capped at 3", got)
	}
	// Existing entries still accumulate counts at capacity.
	s.RecordQuery("entry 0")
	if got := s.Suggest("entry 0"); len(got) != 1 || got[0].Score <= 1 {
		t.Errorf("existing entry not bumped at capacity: %+v", got)
	}
}

func TestSuggestOverlongEntriesIgnored(t *testing.T) {
	s := testStore()
	long := make([]byte, maxSuggestionLength+10)
	for i := range long {
		long[i] = 'a'
	}
	s.RecordQuery(string(long))
	if s.Len() != 0 {
		t.Error("overlong entry stored")
	}
}

func TestSuggestDeterministic(t *testing.T) {
	s := testStore()
	for _, q := range []string{"data scientist", "data engineer", "data analyst", "data architect"} {
		s.RecordQuery(q)
	}
	first := s.Suggest("data")
	for i := 0; i < 5; i++ {
		again := s.Suggest("data")
		if len(again) != len(first) {
			t.Fatal("suggestion count changed between calls")
		}
		for j := range first {
			if first[j] != again[j] {
				t.Fatalf("order changed: %+v vs %+v", first, again)
			}
		}
	}
}
