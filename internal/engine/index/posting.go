package index

// Posting records the occurrences of one term in one field of one document.
// Frequency always equals len(Positions); Positions are term offsets in
// tokenization order, ascending.
type Posting struct {
	Doc       DocKey
	Field     Field
	Positions []int
	Frequency int
}

// FieldPostings maps an indexed field to its posting for a single
// (term, document) pair. A term appears at most once per (document, field).
type FieldPostings map[Field]*Posting

// TermPostings maps document identity to the per-field postings of one term.
type TermPostings map[DocKey]FieldPostings

// DocSet is a set of document identities.
type DocSet map[DocKey]struct{}
