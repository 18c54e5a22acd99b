// Package query turns normalised query terms into candidate documents. Each
// term is expanded with typo-tolerant alternatives (bounded edit distance
// over the snapshot's term dictionary) and fuzzy prefix matches, then
// candidates are resolved with AND-of-term semantics: a document must contain
// at least one accepted variant of every query term. Pure OR semantics would
// flood results; AND keeps precision reasonable.
package query

import (
	"sort"
	"unicode/utf8"

	"github.com/secid-mx/community-search/internal/engine/index"
)

const (
	// maxVariantsPerTerm bounds how many expanded variants one query term
	// may accept; the closest candidates win.
	maxVariantsPerTerm = 64
	// minPrefixRunes is the minimum query-term length for fuzzy prefix
	// expansion; shorter prefixes match too much of the dictionary.
	minPrefixRunes = 3
)

// Options controls term expansion for one search call.
type Options struct {
	FuzzyMatching bool
	TypoTolerance bool
	// ShortTermLength is the term length (in runes) at or below which typo
	// expansion allows edit distance 1; longer terms allow distance 2.
	ShortTermLength int
}

// Variant is one accepted index term for a query term.
type Variant struct {
	Term     string
	Exact    bool
	Distance int
}

// Expansion is the accepted variant set of one query term.
type Expansion struct {
	QueryTerm string
	Variants  []Variant
}

// FieldMatch accumulates how one query term matched one field of one
// document, merged across accepted variants.
type FieldMatch struct {
	Frequency int
	Positions []int
	Exact     bool
}

// TermMatch is the per-field match data of one query term in one document.
type TermMatch struct {
	Fields map[index.Field]*FieldMatch
	Exact  bool
}

// DocMatch is a candidate document with match data for every query term, in
// query order.
type DocMatch struct {
	Key   index.DocKey
	Terms []*TermMatch
}

// Processor expands and resolves queries against index snapshots.
type Processor struct{}

// New creates a Processor.
func New() *Processor {
	return &Processor{}
}

// Expand computes the accepted variant set for each query term. The exact
// term is always accepted (whether or not it is indexed); expansions are
// drawn from the snapshot's term dictionary.
func (p *Processor) Expand(snap *index.Snapshot, terms []string, opts Options) []Expansion {
	expansions := make([]Expansion, 0, len(terms))
	for _, term := range terms {
		exp := Expansion{
			QueryTerm: term,
			Variants:  []Variant{{Term: term, Exact: true}},
		}
		if opts.TypoTolerance || opts.FuzzyMatching {
			exp.Variants = append(exp.Variants, p.expandTerm(snap, term, opts)...)
		}
		expansions = append(expansions, exp)
	}
	return expansions
}

func (p *Processor) expandTerm(snap *index.Snapshot, term string, opts Options) []Variant {
	maxDist := 2
	if utf8.RuneCountInString(term) <= opts.ShortTermLength {
		maxDist = 1
	}
	allowPrefix := opts.FuzzyMatching && utf8.RuneCountInString(term) >= minPrefixRunes

	variants := make([]Variant, 0, 8)
	snap.ScanTerms(func(candidate string) bool {
		if candidate == term {
			return true
		}
		if opts.TypoTolerance {
			if dist, ok := editDistanceWithin(term, candidate, maxDist); ok {
				variants = append(variants, Variant{Term: candidate, Distance: dist})
				return true
			}
		}
		if allowPrefix && len(candidate) > len(term) && candidate[:len(term)] == term {
			variants = append(variants, Variant{Term: candidate, Distance: maxDist})
		}
		return true
	})
	// Dictionary scan order is unspecified, so every in-budget candidate is
	// collected before the cap: sort closest-first, then truncate. Identical
	// calls on the same snapshot accept identical variant sets.
	sort.Slice(variants, func(i, j int) bool {
		if variants[i].Distance != variants[j].Distance {
			return variants[i].Distance < variants[j].Distance
		}
		return variants[i].Term < variants[j].Term
	})
	if len(variants) > maxVariantsPerTerm {
		variants = variants[:maxVariantsPerTerm]
	}
	return variants
}

// Retrieve resolves expansions to candidate documents: the union of postings
// across each term's variants, intersected across query terms. Candidates
// are returned in unspecified order with per-term match data attached.
func (p *Processor) Retrieve(snap *index.Snapshot, expansions []Expansion) []DocMatch {
	if len(expansions) == 0 {
		return nil
	}
	perTerm := make([]map[index.DocKey]*TermMatch, len(expansions))
	for i, exp := range expansions {
		perTerm[i] = p.matchTerm(snap, exp)
		if len(perTerm[i]) == 0 {
			// AND semantics: one unmatched term empties the result.
			return nil
		}
	}

	// Intersect starting from the smallest candidate set.
	smallest := 0
	for i := range perTerm {
		if len(perTerm[i]) < len(perTerm[smallest]) {
			smallest = i
		}
	}
	matches := make([]DocMatch, 0, len(perTerm[smallest]))
	for key := range perTerm[smallest] {
		terms := make([]*TermMatch, len(expansions))
		inAll := true
		for i := range perTerm {
			tm, ok := perTerm[i][key]
			if !ok {
				inAll = false
				break
			}
			terms[i] = tm
		}
		if inAll {
			matches = append(matches, DocMatch{Key: key, Terms: terms})
		}
	}
	for _, m := range matches {
		for _, tm := range m.Terms {
			for _, fm := range tm.Fields {
				sort.Ints(fm.Positions)
			}
		}
	}
	return matches
}

// matchTerm unions postings over a term's accepted variants.
func (p *Processor) matchTerm(snap *index.Snapshot, exp Expansion) map[index.DocKey]*TermMatch {
	docs := make(map[index.DocKey]*TermMatch)
	for _, variant := range exp.Variants {
		postings := snap.Postings(variant.Term)
		if postings == nil {
			continue
		}
		for key, fields := range postings {
			tm, ok := docs[key]
			if !ok {
				tm = &TermMatch{Fields: make(map[index.Field]*FieldMatch, len(fields))}
				docs[key] = tm
			}
			tm.Exact = tm.Exact || variant.Exact
			for field, posting := range fields {
				fm, ok := tm.Fields[field]
				if !ok {
					fm = &FieldMatch{}
					tm.Fields[field] = fm
				}
				fm.Frequency += posting.Frequency
				fm.Positions = append(fm.Positions, posting.Positions...)
				fm.Exact = fm.Exact || variant.Exact
			}
		}
	}
	return docs
}
