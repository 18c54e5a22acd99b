// Package indexer builds and maintains Index Store entries from documents
// supplied by the content-producing platform modules. Every write runs
// against a working copy of the active snapshot and publishes it atomically,
// so concurrent searches never observe a half-written index.
package indexer

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/secid-mx/community-search/internal/engine/index"
	"github.com/secid-mx/community-search/internal/engine/suggest"
	"github.com/secid-mx/community-search/internal/engine/tokenizer"
)

// Indexer exposes the write side of the engine.
type Indexer struct {
	store       *index.Store
	suggestions *suggest.Store
	logger      *slog.Logger
	now         func() time.Time
}

// New creates an Indexer over the given store. suggestions may be nil when
// autocomplete feeding is not wanted (tests, bulk rebuilds).
func New(store *index.Store, suggestions *suggest.Store) *Indexer {
	return &Indexer{
		store:       store,
		suggestions: suggestions,
		logger:      slog.Default().With("component", "indexer"),
		now:         time.Now,
	}
}

// AddDocument indexes a document. Indexing an identity that already exists
// replaces it, never duplicates postings.
func (ix *Indexer) AddDocument(doc *index.Document) error {
	_, err := ix.upsert(doc)
	return err
}

// UpdateDocument re-indexes a document, first removing all prior postings
// and facet entries for its identity. The boolean reports whether a previous
// version existed; updating an unknown identity is a no-op insert, not an
// error.
func (ix *Indexer) UpdateDocument(doc *index.Document) (bool, error) {
	return ix.upsert(doc)
}

// RemoveDocument deletes a document's postings and decrements its facet
// buckets. Removing an unknown identity is a no-op signalled by the boolean.
func (ix *Indexer) RemoveDocument(ct index.ContentType, id string) (bool, error) {
	if _, err := index.ParseContentType(string(ct)); err != nil {
		return false, err
	}
	key := index.DocKey{Type: ct, ID: id}
	existed := false
	err := ix.store.Mutate(func(b *index.Builder) error {
		existed = ix.remove(b, key)
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("removing document %s: %w", key, err)
	}
	if existed {
		ix.logger.Debug("document removed", "doc", key.String())
	}
	return existed, nil
}

// BulkIndex indexes a batch of documents in a single snapshot publish, so a
// full rebuild costs one pointer swap instead of one per document. Searches
// keep running against the previous snapshot until the batch lands.
func (ix *Indexer) BulkIndex(docs []*index.Document) error {
	for _, doc := range docs {
		if err := doc.Validate(); err != nil {
			return err
		}
	}
	err := ix.store.Mutate(func(b *index.Builder) error {
		for _, doc := range docs {
			ix.add(b, ix.prepare(doc))
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("bulk indexing %d documents: %w", len(docs), err)
	}
	ix.logger.Info("bulk index complete", "docs", len(docs))
	return nil
}

// DocCount returns the number of documents in the active snapshot.
func (ix *Indexer) DocCount() int {
	return ix.store.Active().DocCount()
}

func (ix *Indexer) upsert(doc *index.Document) (bool, error) {
	if err := doc.Validate(); err != nil {
		return false, err
	}
	prepared := ix.prepare(doc)
	replaced := false
	err := ix.store.Mutate(func(b *index.Builder) error {
		replaced = ix.remove(b, prepared.Key())
		ix.add(b, prepared)
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("indexing document %s: %w", prepared.Key(), err)
	}
	ix.logger.Debug("document indexed",
		"doc", prepared.Key().String(),
		"language", prepared.Language,
		"replaced", replaced,
	)
	return replaced, nil
}

// prepare copies the document and fills in the derived fields (language,
// date-range bucket) without mutating the caller's value.
func (ix *Indexer) prepare(doc *index.Document) *index.Document {
	prepared := *doc
	prepared.Tags = append([]string(nil), doc.Tags...)
	if prepared.Language == "" {
		sample := prepared.Title + " " + prepared.Description
		prepared.Language = string(tokenizer.DetectLanguage(sample))
	}
	prepared.DateBucket = index.DateBucketFor(prepared.Metadata.CreatedAt, ix.now())
	return &prepared
}

// add writes postings and facet entries for a prepared document. The caller
// must have removed any previous version of the identity first.
func (ix *Indexer) add(b *index.Builder, doc *index.Document) {
	key := doc.Key()
	lang := tokenizer.Language(doc.Language)
	for _, field := range index.IndexedFields {
		text := doc.FieldText(field)
		if text == "" {
			continue
		}
		for term, posting := range fieldPostings(key, field, text, lang) {
			b.PutPosting(term, posting)
		}
	}
	for _, facetField := range index.FacetFields {
		for _, value := range doc.FacetValues(facetField) {
			b.AddFacet(facetField, tokenizer.Normalize(value), key)
		}
	}
	b.PutDocument(doc)

	if ix.suggestions != nil {
		for _, tag := range doc.Tags {
			ix.suggestions.AddTerm(tag, suggest.KindTag, doc.Metadata.Category)
		}
		ix.suggestions.AddTerm(doc.Title, suggest.KindTitle, doc.Metadata.Category)
	}
}

// remove deletes all postings and facet entries of the stored version of a
// document, leaving nothing orphaned. It reports whether the identity
// existed.
func (ix *Indexer) remove(b *index.Builder, key index.DocKey) bool {
	doc, ok := b.Document(key)
	if !ok {
		return false
	}
	lang := tokenizer.Language(doc.Language)
	for _, field := range index.IndexedFields {
		text := doc.FieldText(field)
		if text == "" {
			continue
		}
		// Re-tokenizing the stored snapshot reproduces exactly the terms
		// that were written for it; the tokenizer is deterministic.
		for term := range fieldPostings(key, field, text, lang) {
			b.RemoveDocFromTerm(term, key)
		}
	}
	for _, facetField := range index.FacetFields {
		for _, value := range doc.FacetValues(facetField) {
			b.RemoveFacet(facetField, tokenizer.Normalize(value), key)
		}
	}
	b.RemoveDocument(key)
	return true
}

// fieldPostings tokenizes one field and groups the tokens into per-term
// postings.
func fieldPostings(key index.DocKey, field index.Field, text string, lang tokenizer.Language) map[string]*index.Posting {
	tokens := tokenizer.Tokenize(text, lang)
	postings := make(map[string]*index.Posting, len(tokens))
	for _, tok := range tokens {
		p, exists := postings[tok.Term]
		if !exists {
			p = &index.Posting{
				Doc:       key,
				Field:     field,
				Positions: make([]int, 0, 4),
			}
			postings[tok.Term] = p
		}
		p.Positions = append(p.Positions, tok.Position)
		p.Frequency = len(p.Positions)
	}
	return postings
}
