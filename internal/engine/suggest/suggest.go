// Package suggest generates autocomplete suggestions from a frequency-ranked
// store of past query strings and high-value content terms (tags, titles).
// Lookups walk a prefix trie; ranking combines historical frequency with
// prefix-match closeness. The store is updated by successful queries under
// its own lock, decoupled from the search read path.
package suggest

import (
	"sort"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/secid-mx/community-search/internal/engine/tokenizer"
	"github.com/secid-mx/community-search/pkg/config"
)

// Kind classifies where a suggestion came from.
type Kind string

const (
	KindQuery Kind = "query"
	KindTag   Kind = "tag"
	KindTitle Kind = "title"
)

// kindWeight breaks ties between sources: past queries beat tags beat titles.
var kindWeight = map[Kind]float64{
	KindQuery: 1.2,
	KindTag:   1.1,
	KindTitle: 1.0,
}

// Suggestion is one ranked autocomplete candidate.
type Suggestion struct {
	Text     string  `json:"text"`
	Type     Kind    `json:"type"`
	Score    float64 `json:"score"`
	Category string  `json:"category,omitempty"`
}

const maxSuggestionLength = 64

type entry struct {
	text     string
	kind     Kind
	category string
	count    int
}

type node struct {
	children map[rune]*node
	terminal bool
}

func newNode() *node {
	return &node{children: make(map[rune]*node)}
}

// Store is the suggestion frequency store.
type Store struct {
	mu        sync.RWMutex
	entries   map[string]*entry
	root      *node
	limit     int
	minPrefix int
	maxSize   int
}

// NewStore creates a Store from configuration.
func NewStore(cfg config.SuggestConfig) *Store {
	return &Store{
		entries:   make(map[string]*entry),
		root:      newNode(),
		limit:     cfg.Limit,
		minPrefix: cfg.MinPrefixLen,
		maxSize:   cfg.MaxStoreSize,
	}
}

// RecordQuery bumps the frequency of a successful query string. Invoked by
// the search call internally and by the UI for accepted suggestions.
func (s *Store) RecordQuery(queryText string) {
	s.record(queryText, KindQuery, "")
}

// AddTerm records a high-value content term (a tag or a title) so it can be
// suggested even before anyone has searched for it.
func (s *Store) AddTerm(text string, kind Kind, category string) {
	s.record(text, kind, category)
}

func (s *Store) record(text string, kind Kind, category string) {
	normalized := normalizeText(text)
	if normalized == "" || len(normalized) > maxSuggestionLength {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.entries[normalized]; ok {
		e.count++
		// Past queries are the strongest signal; a term later seen as a
		// query is promoted.
		if kind == KindQuery && e.kind != KindQuery {
			e.kind = KindQuery
		}
		return
	}
	if len(s.entries) >= s.maxSize {
		return
	}
	s.entries[normalized] = &entry{
		text:     strings.TrimSpace(text),
		kind:     kind,
		category: category,
		count:    1,
	}
	s.insert(normalized)
}

func (s *Store) insert(key string) {
	n := s.root
	for _, r := range key {
		child, ok := n.children[r]
		if !ok {
			child = newNode()
			n.children[r] = child
		}
		n = child
	}
	n.terminal = true
}

// Suggest returns the top suggestions for the raw query prefix, ranked by
// frequency and prefix-match closeness.
func (s *Store) Suggest(prefix string) []Suggestion {
	normalized := normalizeText(prefix)
	if utf8.RuneCountInString(normalized) < s.minPrefix {
		return []Suggestion{}
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := s.root
	for _, r := range normalized {
		child, ok := n.children[r]
		if !ok {
			return []Suggestion{}
		}
		n = child
	}

	// Bound trie exploration; the heap of candidates is ranked afterwards.
	const maxCompletions = 256
	keys := make([]string, 0, 32)
	collect(n, normalized, &keys, maxCompletions)

	suggestions := make([]Suggestion, 0, len(keys))
	for _, key := range keys {
		e, ok := s.entries[key]
		if !ok {
			continue
		}
		extra := utf8.RuneCountInString(key) - utf8.RuneCountInString(normalized)
		closeness := 1.0 / (1.0 + 0.25*float64(extra))
		suggestions = append(suggestions, Suggestion{
			Text:     e.text,
			Type:     e.kind,
			Score:    float64(e.count) * closeness * kindWeight[e.kind],
			Category: e.category,
		})
	}
	sort.Slice(suggestions, func(i, j int) bool {
		if suggestions[i].Score != suggestions[j].Score {
			return suggestions[i].Score > suggestions[j].Score
		}
		return suggestions[i].Text < suggestions[j].Text
	})
	if len(suggestions) > s.limit {
		suggestions = suggestions[:s.limit]
	}
	return suggestions
}

// Len returns the number of stored suggestion entries.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

func collect(n *node, prefix string, keys *[]string, max int) {
	if len(*keys) >= max {
		return
	}
	if n.terminal {
		*keys = append(*keys, prefix)
	}
	// Deterministic child order keeps repeated lookups stable.
	runes := make([]rune, 0, len(n.children))
	for r := range n.children {
		runes = append(runes, r)
	}
	sort.Slice(runes, func(i, j int) bool { return runes[i] < runes[j] })
	for _, r := range runes {
		collect(n.children[r], prefix+string(r), keys, max)
		if len(*keys) >= max {
			return
		}
	}
}

// normalizeText lower-cases, folds accents, and collapses whitespace.
func normalizeText(text string) string {
	return strings.Join(strings.Fields(tokenizer.Normalize(text)), " ")
}
