// Package server exposes the search engine over HTTP: search, autocomplete,
// document upserts and removals, bulk reindex, and cache administration.
package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/secid-mx/community-search/internal/analytics"
	"github.com/secid-mx/community-search/internal/engine"
	"github.com/secid-mx/community-search/internal/engine/index"
	"github.com/secid-mx/community-search/internal/engine/indexer"
	"github.com/secid-mx/community-search/internal/ingest"
	pkgerrors "github.com/secid-mx/community-search/pkg/errors"
	"github.com/secid-mx/community-search/pkg/logger"
	"github.com/secid-mx/community-search/pkg/metrics"
	"github.com/secid-mx/community-search/pkg/middleware"
)

// Handler serves the search HTTP API.
type Handler struct {
	engine     *engine.Engine
	indexer    *indexer.Indexer
	store      *index.Store
	loader     *ingest.Loader
	cache      *ResponseCache
	collector  *analytics.Collector
	metrics    *metrics.Metrics
	logger     *slog.Logger
	reindexing atomic.Bool
}

// New creates a Handler. loader, cache, and collector may be nil; the
// corresponding endpoints degrade rather than fail.
func New(
	eng *engine.Engine,
	idx *indexer.Indexer,
	store *index.Store,
	loader *ingest.Loader,
	cache *ResponseCache,
	collector *analytics.Collector,
	m *metrics.Metrics,
) *Handler {
	return &Handler{
		engine:    eng,
		indexer:   idx,
		store:     store,
		loader:    loader,
		cache:     cache,
		collector: collector,
		metrics:   m,
		logger:    slog.Default().With("component", "search-handler"),
	}
}

// Search handles POST /api/v1/search.
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()
	log := logger.FromContext(ctx)

	var req engine.SearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, pkgerrors.New(pkgerrors.ErrInvalidRequest, 400, "malformed request body"))
		return
	}

	var (
		resp     *engine.SearchResponse
		err      error
		cacheHit bool
	)
	if h.cache != nil {
		resp, cacheHit, err = h.cache.GetOrCompute(ctx, req, h.store.Active().Version(), func() (*engine.SearchResponse, error) {
			return h.engine.Search(ctx, req)
		})
	} else {
		resp, err = h.engine.Search(ctx, req)
	}
	if err != nil {
		h.trackSearchOutcome("error")
		log.Error("search failed", "query", req.Query, "error", err)
		h.writeError(w, err)
		return
	}

	latencyMs := time.Since(start).Milliseconds()
	cacheStatus := "miss"
	if cacheHit {
		cacheStatus = "hit"
		if resp.Total > 0 {
			// Served from cache; the query still counts as suggestion demand.
			h.engine.RecordQuery(req.Query)
		}
	}
	if h.metrics != nil {
		h.metrics.SearchLatency.WithLabelValues(cacheStatus).Observe(time.Since(start).Seconds())
		h.metrics.SearchResultsCount.Observe(float64(resp.Total))
		if cacheHit {
			h.metrics.CacheHitsTotal.Inc()
		} else if h.cache != nil {
			h.metrics.CacheMissesTotal.Inc()
		}
	}
	outcome := "results"
	if resp.Total == 0 {
		outcome = "zero_results"
	}
	h.trackSearchOutcome(outcome)

	log.Info("search completed",
		"query", req.Query,
		"total", resp.Total,
		"returned", len(resp.Results),
		"cache_hit", cacheHit,
		"latency_ms", latencyMs,
	)
	if h.collector != nil {
		eventType := analytics.EventSearch
		if resp.Total == 0 {
			eventType = analytics.EventZeroResult
		}
		h.collector.Track(analytics.SearchEvent{
			Type:      eventType,
			Query:     req.Query,
			Language:  req.Filters.Language,
			Total:     resp.Total,
			Returned:  len(resp.Results),
			Page:      resp.Page,
			LatencyMs: latencyMs,
			CacheHit:  cacheHit,
			Timestamp: time.Now().UTC(),
			RequestID: middleware.GetRequestID(ctx),
		})
	}

	h.writeJSON(w, http.StatusOK, resp)
}

// Suggest handles GET /api/v1/suggest?q=prefix.
func (h *Handler) Suggest(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	prefix := r.URL.Query().Get("q")
	if prefix == "" {
		h.writeError(w, pkgerrors.New(pkgerrors.ErrInvalidRequest, 400, "query parameter 'q' is required"))
		return
	}

	suggestions := h.engine.Suggest(prefix)
	if h.metrics != nil {
		h.metrics.SuggestLookupsTotal.Inc()
	}
	if h.collector != nil {
		h.collector.Track(analytics.SuggestEvent{
			Type:      analytics.EventSuggest,
			Prefix:    prefix,
			Returned:  len(suggestions),
			Timestamp: time.Now().UTC(),
			RequestID: middleware.GetRequestID(ctx),
		})
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"suggestions": suggestions})
}

// UpsertDocument handles PUT /api/v1/documents.
func (h *Handler) UpsertDocument(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContext(r.Context())

	var doc index.Document
	if err := json.NewDecoder(r.Body).Decode(&doc); err != nil {
		h.writeError(w, pkgerrors.New(pkgerrors.ErrInvalidRequest, 400, "malformed document body"))
		return
	}

	replaced, err := h.indexer.UpdateDocument(&doc)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if h.metrics != nil {
		h.metrics.DocsIndexedTotal.WithLabelValues(string(doc.Type)).Inc()
		h.metrics.SnapshotSwapsTotal.Inc()
		h.metrics.IndexedDocuments.Set(float64(h.store.Active().DocCount()))
	}
	if h.collector != nil {
		h.collector.Track(analytics.IndexEvent{
			Type:        analytics.EventIndex,
			DocumentKey: doc.Key().String(),
			Action:      ingest.ActionUpsert,
			Timestamp:   time.Now().UTC(),
		})
	}
	log.Info("document upserted", "type", doc.Type, "id", doc.ID, "replaced", replaced)

	status := http.StatusCreated
	if replaced {
		status = http.StatusOK
	}
	h.writeJSON(w, status, map[string]any{
		"key":      doc.Key().String(),
		"replaced": replaced,
	})
}

// DeleteDocument handles DELETE /api/v1/documents/{type}/{id}.
func (h *Handler) DeleteDocument(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContext(r.Context())

	ct, err := index.ParseContentType(r.PathValue("type"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	id := r.PathValue("id")

	removed, err := h.indexer.RemoveDocument(ct, id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if !removed {
		h.writeError(w, pkgerrors.Newf(pkgerrors.ErrDocumentNotFound, 404, "document %s:%s not found", ct, id))
		return
	}
	if h.metrics != nil {
		h.metrics.DocsRemovedTotal.Inc()
		h.metrics.SnapshotSwapsTotal.Inc()
		h.metrics.IndexedDocuments.Set(float64(h.store.Active().DocCount()))
	}
	if h.collector != nil {
		h.collector.Track(analytics.IndexEvent{
			Type:        analytics.EventIndex,
			DocumentKey: fmt.Sprintf("%s:%s", ct, id),
			Action:      ingest.ActionDelete,
			Timestamp:   time.Now().UTC(),
		})
	}
	log.Info("document deleted", "type", ct, "id", id)
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// Reindex handles POST /api/v1/reindex. The rebuild runs inline; the platform
// triggers it from a deploy hook and waits for the result.
func (h *Handler) Reindex(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContext(r.Context())

	if h.loader == nil {
		h.writeError(w, pkgerrors.New(pkgerrors.ErrIndexUnavailable, 503, "reindexing is not configured"))
		return
	}
	if !h.reindexing.CompareAndSwap(false, true) {
		h.writeError(w, pkgerrors.New(pkgerrors.ErrInvalidRequest, 409, "a reindex is already in progress"))
		return
	}
	defer h.reindexing.Store(false)

	start := time.Now()
	count, err := h.loader.Reindex(r.Context())
	if err != nil {
		log.Error("reindex failed", "error", err)
		h.writeError(w, err)
		return
	}
	if h.metrics != nil {
		h.metrics.ReindexDuration.Observe(time.Since(start).Seconds())
		h.metrics.SnapshotSwapsTotal.Inc()
		h.metrics.IndexedDocuments.Set(float64(h.store.Active().DocCount()))
	}
	log.Info("reindex completed", "documents", count, "duration", time.Since(start))
	h.writeJSON(w, http.StatusOK, map[string]any{
		"documents":  count,
		"durationMs": time.Since(start).Milliseconds(),
	})
}

// CacheStats handles GET /api/v1/cache/stats.
func (h *Handler) CacheStats(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeJSON(w, http.StatusOK, map[string]string{"status": "disabled"})
		return
	}
	hits, misses := h.cache.Stats()
	total := hits + misses
	var hitRate float64
	if total > 0 {
		hitRate = float64(hits) / float64(total) * 100
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"hits":     hits,
		"misses":   misses,
		"total":    total,
		"hit_rate": fmt.Sprintf("%.1f%%", hitRate),
	})
}

// CacheInvalidate handles POST /api/v1/cache/invalidate.
func (h *Handler) CacheInvalidate(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeError(w, pkgerrors.New(pkgerrors.ErrIndexUnavailable, 503, "caching is disabled"))
		return
	}
	deleted, err := h.cache.Invalidate(r.Context())
	if err != nil {
		h.logger.Error("cache invalidation failed", "error", err)
		h.writeError(w, pkgerrors.New(pkgerrors.ErrInternal, 500, "cache invalidation failed"))
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"status":       "invalidated",
		"keys_deleted": deleted,
	})
}

// Stats handles GET /api/v1/index/stats.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	snap := h.store.Active()
	h.writeJSON(w, http.StatusOK, map[string]any{
		"documents":       snap.DocCount(),
		"terms":           snap.TermCount(),
		"snapshotVersion": snap.Version(),
		"suggestions":     h.engine.SuggestionCount(),
	})
}

func (h *Handler) trackSearchOutcome(outcome string) {
	if h.metrics != nil {
		h.metrics.SearchQueriesTotal.WithLabelValues(outcome).Inc()
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	status := pkgerrors.HTTPStatusCode(err)
	message := err.Error()
	var appErr *pkgerrors.AppError
	if errors.As(err, &appErr) {
		message = appErr.Message
	}
	h.writeJSON(w, status, map[string]string{"error": message})
}
