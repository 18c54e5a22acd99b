package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/secid-mx/community-search/internal/analytics"
	"github.com/secid-mx/community-search/internal/engine"
	"github.com/secid-mx/community-search/internal/engine/index"
	"github.com/secid-mx/community-search/internal/engine/indexer"
	"github.com/secid-mx/community-search/internal/engine/suggest"
	"github.com/secid-mx/community-search/internal/ingest"
	"github.com/secid-mx/community-search/internal/server"
	"github.com/secid-mx/community-search/pkg/config"
	"github.com/secid-mx/community-search/pkg/health"
	"github.com/secid-mx/community-search/pkg/kafka"
	"github.com/secid-mx/community-search/pkg/logger"
	"github.com/secid-mx/community-search/pkg/metrics"
	"github.com/secid-mx/community-search/pkg/middleware"
	"github.com/secid-mx/community-search/pkg/postgres"
	pkgredis "github.com/secid-mx/community-search/pkg/redis"
)

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting community search", "port", cfg.Server.Port)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New()

	store := index.NewStore()
	suggestions := suggest.NewStore(cfg.Suggest)
	idx := indexer.New(store, suggestions)
	eng := engine.New(store, suggestions, cfg.Engine)

	var loader *ingest.Loader
	pgClient, err := postgres.New(cfg.Postgres)
	if err != nil {
		slog.Warn("postgres unavailable, bulk reindex disabled", "error", err)
	} else {
		defer pgClient.Close()
		loader = ingest.NewLoader(pgClient, idx)
		if count, err := loader.Reindex(ctx); err != nil {
			slog.Error("initial index load failed", "error", err)
		} else {
			slog.Info("initial index loaded", "documents", count)
			m.IndexedDocuments.Set(float64(store.Active().DocCount()))
		}
	}

	var responseCache *server.ResponseCache
	redisClient, err := pkgredis.NewClient(cfg.Redis)
	if err != nil {
		slog.Warn("redis unavailable, response caching disabled", "error", err)
	} else {
		defer redisClient.Close()
		responseCache = server.NewResponseCache(redisClient, cfg.Redis)
		slog.Info("response cache enabled",
			"addr", cfg.Redis.Addr,
			"ttl", cfg.Redis.CacheTTL,
		)
	}

	analyticsProducer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.QueryAnalytics)
	defer analyticsProducer.Close()
	collector := analytics.NewCollector(analyticsProducer, 10000)
	collector.Start(ctx)
	defer collector.Close()
	slog.Info("analytics collector started", "topic", cfg.Kafka.Topics.QueryAnalytics)

	contentConsumer := kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.ContentEvents, ingest.HandleMessage(idx, m))
	ingestConsumer := ingest.NewConsumer(contentConsumer)
	go func() {
		if err := ingestConsumer.Start(ctx); err != nil {
			slog.Error("ingest consumer error", "error", err)
		}
	}()
	slog.Info("ingest consumer started", "topic", cfg.Kafka.Topics.ContentEvents)

	checker := health.NewChecker()
	checker.Register("index", func(ctx context.Context) health.ComponentHealth {
		snap := store.Active()
		return health.ComponentHealth{
			Status:  health.StatusUp,
			Message: fmt.Sprintf("%d documents, snapshot v%d", snap.DocCount(), snap.Version()),
		}
	})
	checker.Register("redis", func(ctx context.Context) health.ComponentHealth {
		if redisClient == nil {
			return health.ComponentHealth{Status: health.StatusDegraded, Message: "not configured"}
		}
		if err := redisClient.Ping(ctx); err != nil {
			return health.ComponentHealth{Status: health.StatusDegraded, Message: err.Error()}
		}
		return health.ComponentHealth{Status: health.StatusUp}
	})
	checker.Register("postgres", func(ctx context.Context) health.ComponentHealth {
		if pgClient == nil {
			return health.ComponentHealth{Status: health.StatusDegraded, Message: "not configured"}
		}
		if err := pgClient.Ping(ctx); err != nil {
			return health.ComponentHealth{Status: health.StatusDegraded, Message: err.Error()}
		}
		return health.ComponentHealth{Status: health.StatusUp}
	})

	h := server.New(eng, idx, store, loader, responseCache, collector, m)

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/search", h.Search)
	mux.HandleFunc("GET /api/v1/suggest", h.Suggest)
	mux.HandleFunc("PUT /api/v1/documents", h.UpsertDocument)
	mux.HandleFunc("DELETE /api/v1/documents/{type}/{id}", h.DeleteDocument)
	mux.HandleFunc("POST /api/v1/reindex", h.Reindex)
	mux.HandleFunc("GET /api/v1/index/stats", h.Stats)
	mux.HandleFunc("GET /api/v1/cache/stats", h.CacheStats)
	mux.HandleFunc("POST /api/v1/cache/invalidate", h.CacheInvalidate)
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())
	if cfg.Metrics.Enabled {
		mux.Handle("GET /metrics", metrics.Handler())
	}

	var chain http.Handler = mux
	chain = middleware.Metrics(m)(chain)
	chain = middleware.Timeout(cfg.Server.WriteTimeout)(chain)
	chain = middleware.RequestID(chain)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      chain,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		<-ctx.Done()
		slog.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
	}()

	slog.Info("community search listening", "addr", srv.Addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}

	slog.Info("community search stopped")
}
