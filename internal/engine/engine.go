package engine

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/secid-mx/community-search/internal/engine/facet"
	"github.com/secid-mx/community-search/internal/engine/highlight"
	"github.com/secid-mx/community-search/internal/engine/index"
	"github.com/secid-mx/community-search/internal/engine/query"
	"github.com/secid-mx/community-search/internal/engine/ranker"
	"github.com/secid-mx/community-search/internal/engine/suggest"
	"github.com/secid-mx/community-search/internal/engine/tokenizer"
	"github.com/secid-mx/community-search/pkg/config"
	pkgerrors "github.com/secid-mx/community-search/pkg/errors"
	"github.com/secid-mx/community-search/pkg/resilience"
)

// Engine answers search calls against the active index snapshot. A search is
// a pure function of (snapshot, request) aside from suggestion-frequency
// bookkeeping.
type Engine struct {
	store       *index.Store
	suggestions *suggest.Store
	cfg         config.EngineConfig
	processor   *query.Processor
	ranker      *ranker.Ranker
	facets      *facet.Aggregator
	highlighter *highlight.Highlighter
	logger      *slog.Logger
	now         func() time.Time
}

// New creates an Engine over the given index store and suggestion store.
func New(store *index.Store, suggestions *suggest.Store, cfg config.EngineConfig) *Engine {
	return &Engine{
		store:       store,
		suggestions: suggestions,
		cfg:         cfg,
		processor:   query.New(),
		ranker:      ranker.New(cfg),
		facets:      facet.New(cfg.FacetLimit),
		highlighter: highlight.New(cfg),
		logger:      slog.Default().With("component", "search-engine"),
		now:         time.Now,
	}
}

// Search validates the request, runs the pipeline under the per-request
// timeout, and assembles the response. On timeout the call fails wholesale;
// partial results would make totals and facet counts untrustworthy.
func (e *Engine) Search(ctx context.Context, req SearchRequest) (*SearchResponse, error) {
	start := e.now()
	parsed, err := e.validate(req)
	if err != nil {
		return nil, err
	}

	var resp *SearchResponse
	err = resilience.WithTimeout(ctx, e.cfg.QueryTimeout, "search", func(ctx context.Context) error {
		var searchErr error
		resp, searchErr = e.run(ctx, parsed)
		return searchErr
	})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, pkgerrors.Newf(pkgerrors.ErrQueryTimeout, 504,
				"query %q after %s", req.Query, e.now().Sub(start).Round(time.Millisecond))
		}
		return nil, err
	}

	resp.SearchTimeMS = e.now().Sub(start).Milliseconds()
	if resp.Total > 0 {
		e.suggestions.RecordQuery(req.Query)
	}
	e.logger.Debug("search completed",
		"query", req.Query,
		"total", resp.Total,
		"returned", len(resp.Results),
		"elapsed_ms", resp.SearchTimeMS,
	)
	return resp, nil
}

// RecordQuery feeds the suggestion store directly, used by the UI when a
// member accepts a suggestion without running a full search.
func (e *Engine) RecordQuery(queryText string) {
	e.suggestions.RecordQuery(queryText)
}

// Suggest returns autocomplete suggestions for the raw query prefix.
func (e *Engine) Suggest(prefix string) []suggest.Suggestion {
	return e.suggestions.Suggest(prefix)
}

// SuggestionCount reports how many suggestion entries are stored.
func (e *Engine) SuggestionCount() int {
	return e.suggestions.Len()
}

// parsedRequest is a validated SearchRequest with typed filters and
// defaulted pagination.
type parsedRequest struct {
	raw      SearchRequest
	filters  index.Filters
	language tokenizer.Language
	sortKey  string
	sortAsc  bool
	page     int
	limit    int
	offset   int
}

func (e *Engine) validate(req SearchRequest) (parsedRequest, error) {
	p := parsedRequest{raw: req}

	if strings.TrimSpace(req.Query) == "" {
		return p, pkgerrors.New(pkgerrors.ErrInvalidRequest, 400, "query is required")
	}
	if len(req.Query) > e.cfg.MaxQueryLength {
		return p, pkgerrors.Newf(pkgerrors.ErrInvalidRequest, 400,
			"query exceeds %d characters", e.cfg.MaxQueryLength)
	}
	if req.Page < 0 {
		return p, pkgerrors.New(pkgerrors.ErrInvalidRequest, 400, "page must not be negative")
	}
	if req.Limit < 0 {
		return p, pkgerrors.New(pkgerrors.ErrInvalidRequest, 400, "limit must be positive")
	}
	if req.Options.MinScore < 0 || req.Options.MinScore > 1 {
		return p, pkgerrors.New(pkgerrors.ErrInvalidRequest, 400, "minScore must be in [0,1]")
	}
	if req.Options.MaxResults < 0 {
		return p, pkgerrors.New(pkgerrors.ErrInvalidRequest, 400, "maxResults must not be negative")
	}

	p.page = req.Page
	p.limit = req.Limit
	if p.limit == 0 {
		p.limit = e.cfg.DefaultLimit
	}
	if p.limit > e.cfg.MaxResults {
		p.limit = e.cfg.MaxResults
	}
	p.offset = p.page * p.limit
	if p.page > 0 && p.limit > 0 && p.offset/p.limit != p.page {
		return p, pkgerrors.New(pkgerrors.ErrInvalidRequest, 400, "page is out of range")
	}

	for _, raw := range req.Filters.ContentTypes {
		if raw == TypeAll {
			p.filters.ContentTypes = nil
			break
		}
		ct, err := index.ParseContentType(raw)
		if err != nil {
			return p, err
		}
		p.filters.ContentTypes = append(p.filters.ContentTypes, ct)
	}
	switch req.Filters.Language {
	case "", string(tokenizer.LangES), string(tokenizer.LangEN):
		p.filters.Language = req.Filters.Language
		p.language = tokenizer.Language(req.Filters.Language)
	default:
		return p, pkgerrors.Newf(pkgerrors.ErrInvalidRequest, 400,
			"language %q is not supported", req.Filters.Language)
	}
	p.filters.Category = tokenizer.Normalize(req.Filters.Category)
	p.filters.AuthorID = req.Filters.AuthorID
	for _, tag := range req.Filters.Tags {
		p.filters.Tags = append(p.filters.Tags, tokenizer.Normalize(tag))
	}

	p.sortKey = req.Sort.Field
	if p.sortKey == "" {
		p.sortKey = SortRelevance
	}
	switch p.sortKey {
	case SortRelevance, SortDate, SortTitle:
	default:
		return p, pkgerrors.Newf(pkgerrors.ErrInvalidRequest, 400,
			"sort field %q is not supported", req.Sort.Field)
	}
	switch req.Sort.Direction {
	case "":
		// Relevance and date default to descending, title to ascending.
		p.sortAsc = p.sortKey == SortTitle
	case DirectionAsc:
		p.sortAsc = true
	case DirectionDesc:
		p.sortAsc = false
	default:
		return p, pkgerrors.Newf(pkgerrors.ErrInvalidRequest, 400,
			"sort direction %q is not supported", req.Sort.Direction)
	}
	return p, nil
}

type scoredMatch struct {
	key   index.DocKey
	doc   *index.Document
	score float64
}

func (e *Engine) run(ctx context.Context, p parsedRequest) (*SearchResponse, error) {
	snap := e.store.Active()
	resp := e.emptyResponse(p)
	if snap == nil || snap.DocCount() == 0 {
		// An empty index is a valid state, not a fault.
		return resp, nil
	}

	tokens := tokenizer.Tokenize(p.raw.Query, p.language)
	if len(tokens) == 0 {
		return resp, nil
	}
	terms := make([]string, len(tokens))
	for i, tok := range tokens {
		terms[i] = tok.Term
	}

	opts := query.Options{
		FuzzyMatching:   p.raw.Options.FuzzyMatching,
		TypoTolerance:   p.raw.Options.TypoTolerance,
		ShortTermLength: e.cfg.ShortTermLength,
	}
	expansions := e.processor.Expand(snap, terms, opts)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	matches := e.processor.Retrieve(snap, expansions)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// Score every matched document and prune below minScore before any
	// counting: pruned documents contribute to neither totals nor facets.
	now := e.now()
	scored := make([]scoredMatch, 0, len(matches))
	base := make(index.DocSet, len(matches))
	for _, m := range matches {
		doc, ok := snap.Document(m.Key)
		if !ok {
			continue
		}
		score := e.ranker.Score(doc, m, now)
		if score < p.raw.Options.MinScore {
			continue
		}
		scored = append(scored, scoredMatch{key: m.Key, doc: doc, score: score})
		base[m.Key] = struct{}{}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	resp.Facets = e.facets.Aggregate(snap, base, p.filters)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	final := scored[:0]
	for _, sm := range scored {
		if p.filters.Matches(sm.doc, index.FacetNone) {
			final = append(final, sm)
		}
	}
	e.sortMatches(final, p)
	if p.raw.Options.MaxResults > 0 && len(final) > p.raw.Options.MaxResults {
		final = final[:p.raw.Options.MaxResults]
	}

	resp.Total = len(final)
	resp.TotalPages = totalPages(resp.Total, p.limit)

	pageSlice := paginate(final, p.offset, p.limit)
	accepted := acceptedTerms(expansions)
	resp.Results = make([]ScoredDocument, 0, len(pageSlice))
	for _, sm := range pageSlice {
		result := ScoredDocument{
			Document: presentDocument(sm.doc, p.raw.Options.IncludeContent),
			Score:    sm.score,
		}
		if p.raw.Options.HighlightResults {
			result.Highlights = e.highlighter.Document(sm.doc, accepted)
		}
		resp.Results = append(resp.Results, result)
	}
	resp.HasMore = p.offset+len(resp.Results) < resp.Total
	return resp, nil
}

func (e *Engine) emptyResponse(p parsedRequest) *SearchResponse {
	return &SearchResponse{
		Results:     []ScoredDocument{},
		Page:        p.page,
		Suggestions: e.suggestions.Suggest(p.raw.Query),
		Facets: facet.Set{
			ContentTypes: []facet.Bucket{},
			Categories:   []facet.Bucket{},
			Authors:      []facet.Bucket{},
			Tags:         []facet.Bucket{},
			DateRanges:   []facet.Bucket{},
		},
		Query: p.raw.Query,
	}
}

// sortMatches orders candidates by the requested key with deterministic
// tie-breaks: relevance falls back to createdAt desc then id asc.
func (e *Engine) sortMatches(matches []scoredMatch, p parsedRequest) {
	less := func(a, b scoredMatch) bool {
		switch p.sortKey {
		case SortDate:
			at, bt := a.doc.Metadata.CreatedAt, b.doc.Metadata.CreatedAt
			if !at.Equal(bt) {
				if p.sortAsc {
					return at.Before(bt)
				}
				return at.After(bt)
			}
		case SortTitle:
			atitle, btitle := tokenizer.Normalize(a.doc.Title), tokenizer.Normalize(b.doc.Title)
			if atitle != btitle {
				if p.sortAsc {
					return atitle < btitle
				}
				return atitle > btitle
			}
		default:
			if a.score != b.score {
				if p.sortAsc {
					return a.score < b.score
				}
				return a.score > b.score
			}
			at, bt := a.doc.Metadata.CreatedAt, b.doc.Metadata.CreatedAt
			if !at.Equal(bt) {
				return at.After(bt)
			}
		}
		return a.key.String() < b.key.String()
	}
	sort.Slice(matches, func(i, j int) bool { return less(matches[i], matches[j]) })
}

func paginate(matches []scoredMatch, offset, limit int) []scoredMatch {
	if offset >= len(matches) {
		return nil
	}
	end := offset + limit
	if end > len(matches) {
		end = len(matches)
	}
	return matches[offset:end]
}

func totalPages(total, limit int) int {
	if total == 0 {
		return 0
	}
	return (total + limit - 1) / limit
}

// acceptedTerms collects every index term accepted by the expansion, the
// vocabulary the highlighter marks up.
func acceptedTerms(expansions []query.Expansion) map[string]struct{} {
	accepted := make(map[string]struct{}, len(expansions)*2)
	for _, exp := range expansions {
		for _, v := range exp.Variants {
			accepted[v.Term] = struct{}{}
		}
	}
	return accepted
}

// presentDocument returns the response view of a document, dropping the full
// body unless the caller asked for it.
func presentDocument(doc *index.Document, includeContent bool) *index.Document {
	if includeContent || doc.Content == "" {
		return doc
	}
	trimmed := *doc
	trimmed.Content = ""
	return &trimmed
}
