// Package facet counts documents per facet dimension over the full filtered
// candidate set, never the page slice. Each dimension is counted ignoring its
// own filter (standard faceted-search semantics) so the UI can show what each
// option would add or remove.
package facet

import (
	"container/heap"

	"github.com/secid-mx/community-search/internal/engine/index"
)

// Bucket is one (value, count) pair of a facet dimension.
type Bucket struct {
	Value string `json:"value"`
	Count int    `json:"count"`
}

// Set holds the buckets of every facet dimension, count-descending and
// capped at the aggregator's limit.
type Set struct {
	ContentTypes []Bucket `json:"contentTypes"`
	Categories   []Bucket `json:"categories"`
	Authors      []Bucket `json:"authors"`
	Tags         []Bucket `json:"tags"`
	DateRanges   []Bucket `json:"dateRanges"`
}

// Aggregator computes facet sets from index snapshots.
type Aggregator struct {
	limit int
}

// New creates an Aggregator that caps every dimension at limit buckets.
func New(limit int) *Aggregator {
	return &Aggregator{limit: limit}
}

// Aggregate counts facet values over candidates, the post-minScore candidate
// set before facet filters. For each dimension the candidate is admitted if
// it passes every filter except that dimension's own.
func (a *Aggregator) Aggregate(snap *index.Snapshot, candidates index.DocSet, filters index.Filters) Set {
	return Set{
		ContentTypes: a.dimension(snap, candidates, filters, index.FacetContentType),
		Categories:   a.dimension(snap, candidates, filters, index.FacetCategory),
		Authors:      a.dimension(snap, candidates, filters, index.FacetAuthor),
		Tags:         a.dimension(snap, candidates, filters, index.FacetTags),
		DateRanges:   a.dimension(snap, candidates, filters, index.FacetDateRange),
	}
}

func (a *Aggregator) dimension(snap *index.Snapshot, candidates index.DocSet, filters index.Filters, dim index.FacetField) []Bucket {
	values := snap.FacetValues(dim)
	if len(values) == 0 || len(candidates) == 0 {
		return []Bucket{}
	}
	// Walk the facet value store and intersect each value's document set
	// with the dimension-exempt filtered candidates.
	counts := make(map[string]int)
	for value, docs := range values {
		count := 0
		for key := range candidates {
			if _, ok := docs[key]; !ok {
				continue
			}
			doc, ok := snap.Document(key)
			if !ok {
				continue
			}
			if filters.Matches(doc, dim) {
				count++
			}
		}
		if count > 0 {
			counts[value] = count
		}
	}
	return a.top(counts)
}

// top selects the limit highest-count buckets with a bounded min-heap,
// returned count-descending with value ascending as the deterministic
// tie-break.
func (a *Aggregator) top(counts map[string]int) []Bucket {
	h := &bucketHeap{}
	heap.Init(h)
	for value, count := range counts {
		heap.Push(h, Bucket{Value: value, Count: count})
		if h.Len() > a.limit {
			heap.Pop(h)
		}
	}
	buckets := make([]Bucket, h.Len())
	for i := len(buckets) - 1; i >= 0; i-- {
		buckets[i] = heap.Pop(h).(Bucket)
	}
	return buckets
}

type bucketHeap []Bucket

func (h bucketHeap) Len() int { return len(h) }

func (h bucketHeap) Less(i, j int) bool {
	if h[i].Count != h[j].Count {
		return h[i].Count < h[j].Count
	}
	return h[i].Value > h[j].Value
}

func (h bucketHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *bucketHeap) Push(x interface{}) {
	*h = append(*h, x.(Bucket))
}

func (h *bucketHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}
