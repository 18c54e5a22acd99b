// Package engine composes the search pipeline: query processing, scoring,
// facet aggregation, sorting, pagination, highlighting, and suggestion
// bookkeeping, all against an immutable index snapshot.
package engine

import (
	"github.com/secid-mx/community-search/internal/engine/facet"
	"github.com/secid-mx/community-search/internal/engine/highlight"
	"github.com/secid-mx/community-search/internal/engine/index"
	"github.com/secid-mx/community-search/internal/engine/suggest"
)

// Sort field and direction values accepted in a SearchRequest.
const (
	SortRelevance = "relevance"
	SortDate      = "date"
	SortTitle     = "title"

	DirectionAsc  = "asc"
	DirectionDesc = "desc"
)

// TypeAll in a contentTypes filter means "no type restriction".
const TypeAll = "all"

// RequestFilters narrows results. Values are matched case- and
// accent-insensitively.
type RequestFilters struct {
	ContentTypes []string `json:"contentTypes,omitempty"`
	Language     string   `json:"language,omitempty"`
	Category     string   `json:"category,omitempty"`
	Tags         []string `json:"tags,omitempty"`
	AuthorID     string   `json:"authorId,omitempty"`
}

// SortSpec selects result ordering. An empty field means relevance.
type SortSpec struct {
	Field     string `json:"field,omitempty"`
	Direction string `json:"direction,omitempty"`
}

// Options toggles per-request engine behaviour.
type Options struct {
	FuzzyMatching    bool    `json:"fuzzyMatching"`
	TypoTolerance    bool    `json:"typoTolerance"`
	HighlightResults bool    `json:"highlightResults"`
	IncludeContent   bool    `json:"includeContent"`
	MinScore         float64 `json:"minScore"`
	MaxResults       int     `json:"maxResults"`
}

// SearchRequest is the engine's input contract.
type SearchRequest struct {
	Query   string         `json:"query"`
	Filters RequestFilters `json:"filters"`
	Sort    SortSpec       `json:"sort"`
	Page    int            `json:"page"`
	Limit   int            `json:"limit"`
	Options Options        `json:"options"`
}

// ScoredDocument is one result: the document snapshot, its normalised
// relevance score, and highlights when requested.
type ScoredDocument struct {
	Document   *index.Document            `json:"document"`
	Score      float64                    `json:"score"`
	Highlights []highlight.FieldHighlight `json:"highlights,omitempty"`
}

// SearchResponse is the engine's output contract. Total counts every
// document passing filters and minScore, independent of pagination.
type SearchResponse struct {
	Results      []ScoredDocument     `json:"results"`
	Total        int                  `json:"total"`
	Page         int                  `json:"page"`
	TotalPages   int                  `json:"totalPages"`
	Suggestions  []suggest.Suggestion `json:"suggestions"`
	Facets       facet.Set            `json:"facets"`
	Query        string               `json:"query"`
	SearchTimeMS int64                `json:"searchTimeMs"`
	HasMore      bool                 `json:"hasMore"`
}
