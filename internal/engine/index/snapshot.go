package index

import (
	"sync"
	"sync/atomic"
)

// Snapshot is an immutable view of the index: the inverted index, the
// document store, and the facet value store. Once published via Store.Mutate
// a snapshot is never modified; readers may hold it for the duration of a
// search without locking.
type Snapshot struct {
	version  uint64
	postings map[string]TermPostings
	docs     map[DocKey]*Document
	facets   map[FacetField]map[string]DocSet
}

func emptySnapshot(version uint64) *Snapshot {
	facets := make(map[FacetField]map[string]DocSet, len(FacetFields))
	for _, f := range FacetFields {
		facets[f] = make(map[string]DocSet)
	}
	return &Snapshot{
		version:  version,
		postings: make(map[string]TermPostings),
		docs:     make(map[DocKey]*Document),
		facets:   facets,
	}
}

// Version returns the snapshot's generation number. It increases with every
// publish and doubles as a cache-invalidation token.
func (s *Snapshot) Version() uint64 { return s.version }

// DocCount returns the number of documents in the snapshot.
func (s *Snapshot) DocCount() int { return len(s.docs) }

// TermCount returns the size of the term dictionary.
func (s *Snapshot) TermCount() int { return len(s.postings) }

// Postings returns the postings of a term, or nil if the term is not
// indexed. The returned map must be treated as read-only.
func (s *Snapshot) Postings(term string) TermPostings {
	return s.postings[term]
}

// Document returns the stored document snapshot for a key.
func (s *Snapshot) Document(key DocKey) (*Document, bool) {
	doc, ok := s.docs[key]
	return doc, ok
}

// ScanTerms calls fn for every term in the dictionary until fn returns
// false. Iteration order is unspecified; callers needing determinism must
// sort their collected results.
func (s *Snapshot) ScanTerms(fn func(term string) bool) {
	for term := range s.postings {
		if !fn(term) {
			return
		}
	}
}

// FacetValues returns the value → document-set mapping for one facet
// dimension. The returned maps must be treated as read-only.
func (s *Snapshot) FacetValues(f FacetField) map[string]DocSet {
	return s.facets[f]
}

// Builder constructs the next snapshot from a base one, copying inner
// structures lazily: only the terms and facet values a write touches are
// cloned, everything else is shared with the (immutable) base.
type Builder struct {
	snap        *Snapshot
	dirtyTerms  map[string]bool
	dirtyFacets map[FacetField]map[string]bool
}

func newBuilder(base *Snapshot) *Builder {
	next := &Snapshot{
		version:  base.version + 1,
		postings: make(map[string]TermPostings, len(base.postings)),
		docs:     make(map[DocKey]*Document, len(base.docs)),
		facets:   make(map[FacetField]map[string]DocSet, len(base.facets)),
	}
	for term, tp := range base.postings {
		next.postings[term] = tp
	}
	for key, doc := range base.docs {
		next.docs[key] = doc
	}
	for f, values := range base.facets {
		copied := make(map[string]DocSet, len(values))
		for v, set := range values {
			copied[v] = set
		}
		next.facets[f] = copied
	}
	dirtyFacets := make(map[FacetField]map[string]bool, len(FacetFields))
	for _, f := range FacetFields {
		dirtyFacets[f] = make(map[string]bool)
	}
	return &Builder{
		snap:        next,
		dirtyTerms:  make(map[string]bool),
		dirtyFacets: dirtyFacets,
	}
}

// Document returns the working copy's current document for a key.
func (b *Builder) Document(key DocKey) (*Document, bool) {
	doc, ok := b.snap.docs[key]
	return doc, ok
}

// ownTerm returns a mutable postings map for term, cloning the shared one on
// first touch.
func (b *Builder) ownTerm(term string) TermPostings {
	tp, ok := b.snap.postings[term]
	if !ok {
		tp = make(TermPostings)
		b.snap.postings[term] = tp
		b.dirtyTerms[term] = true
		return tp
	}
	if !b.dirtyTerms[term] {
		cloned := make(TermPostings, len(tp)+1)
		for key, fields := range tp {
			cloned[key] = fields
		}
		b.snap.postings[term] = cloned
		b.dirtyTerms[term] = true
		tp = cloned
	}
	return tp
}

// ownFacetSet returns a mutable document set for a facet value, cloning the
// shared one on first touch.
func (b *Builder) ownFacetSet(f FacetField, value string) DocSet {
	values := b.snap.facets[f]
	set, ok := values[value]
	if !ok {
		set = make(DocSet)
		values[value] = set
		b.dirtyFacets[f][value] = true
		return set
	}
	if !b.dirtyFacets[f][value] {
		cloned := make(DocSet, len(set)+1)
		for key := range set {
			cloned[key] = struct{}{}
		}
		values[value] = cloned
		b.dirtyFacets[f][value] = true
		set = cloned
	}
	return set
}

// PutPosting records one (term, document, field) posting. If the pair is
// already present, positions append and the frequency accumulates.
func (b *Builder) PutPosting(term string, p *Posting) {
	tp := b.ownTerm(term)
	fields, ok := tp[p.Doc]
	if !ok {
		fields = make(FieldPostings, 2)
		tp[p.Doc] = fields
		fields[p.Field] = p
		return
	}
	// Clone the field map so postings shared with the base snapshot stay
	// intact.
	cloned := make(FieldPostings, len(fields)+1)
	for f, existing := range fields {
		cloned[f] = existing
	}
	tp[p.Doc] = cloned
	if existing, found := cloned[p.Field]; found {
		merged := &Posting{
			Doc:       p.Doc,
			Field:     p.Field,
			Positions: append(append([]int(nil), existing.Positions...), p.Positions...),
		}
		merged.Frequency = len(merged.Positions)
		cloned[p.Field] = merged
		return
	}
	cloned[p.Field] = p
}

// RemoveDocFromTerm deletes every posting of a document under a term,
// dropping the term from the dictionary when its postings list empties.
func (b *Builder) RemoveDocFromTerm(term string, key DocKey) {
	tp := b.ownTerm(term)
	delete(tp, key)
	if len(tp) == 0 {
		delete(b.snap.postings, term)
	}
}

// AddFacet records a document under a facet value.
func (b *Builder) AddFacet(f FacetField, value string, key DocKey) {
	if value == "" {
		return
	}
	b.ownFacetSet(f, value)[key] = struct{}{}
}

// RemoveFacet removes a document from a facet value. Empty buckets are
// pruned, never kept at zero.
func (b *Builder) RemoveFacet(f FacetField, value string, key DocKey) {
	if value == "" {
		return
	}
	set := b.ownFacetSet(f, value)
	delete(set, key)
	if len(set) == 0 {
		delete(b.snap.facets[f], value)
	}
}

// PutDocument stores the document snapshot.
func (b *Builder) PutDocument(doc *Document) {
	b.snap.docs[doc.Key()] = doc
}

// RemoveDocument deletes the document snapshot.
func (b *Builder) RemoveDocument(key DocKey) {
	delete(b.snap.docs, key)
}

// Store owns the active snapshot pointer. Reads are wait-free; writers
// serialise on the store's mutex and publish a new snapshot atomically.
type Store struct {
	active atomic.Pointer[Snapshot]
	mu     sync.Mutex
}

// NewStore creates a Store with an empty initial snapshot, so an unbuilt
// index is a valid (empty) state rather than a fault.
func NewStore() *Store {
	s := &Store{}
	s.active.Store(emptySnapshot(0))
	return s
}

// Active returns the current snapshot.
func (s *Store) Active() *Snapshot {
	return s.active.Load()
}

// Mutate runs fn against a working copy of the active snapshot and
// atomically publishes the result unless fn fails. Writers are serialised;
// in-flight readers keep the snapshot they started with.
func (s *Store) Mutate(fn func(b *Builder) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	b := newBuilder(s.active.Load())
	if err := fn(b); err != nil {
		return err
	}
	s.active.Store(b.snap)
	return nil
}
