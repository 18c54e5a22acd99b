package ingest

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/lib/pq"
	"golang.org/x/sync/errgroup"

	"github.com/secid-mx/community-search/internal/engine/index"
	"github.com/secid-mx/community-search/internal/engine/indexer"
	"github.com/secid-mx/community-search/pkg/postgres"
	"github.com/secid-mx/community-search/pkg/resilience"
)

// Loader rebuilds the index from the platform's PostgreSQL content database.
// Each content type loads from its own table; the loads run in parallel and
// the combined document set is published as a single snapshot swap.
type Loader struct {
	db     *postgres.Client
	idx    *indexer.Indexer
	logger *slog.Logger
}

// NewLoader creates a Loader reading from db and writing through idx.
func NewLoader(db *postgres.Client, idx *indexer.Indexer) *Loader {
	return &Loader{
		db:     db,
		idx:    idx,
		logger: slog.Default().With("component", "reindex-loader"),
	}
}

// Reindex loads every indexable row from PostgreSQL and bulk-indexes the
// result. It returns the number of documents indexed.
func (l *Loader) Reindex(ctx context.Context) (int, error) {
	start := time.Now()

	var (
		mu   sync.Mutex
		docs []*index.Document
	)
	g, gctx := errgroup.WithContext(ctx)
	for _, load := range []struct {
		name string
		fn   func(context.Context) ([]*index.Document, error)
	}{
		{"jobs", l.loadJobs},
		{"events", l.loadEvents},
		{"forum_posts", l.loadForumPosts},
		{"resources", l.loadResources},
		{"profiles", l.loadProfiles},
	} {
		g.Go(func() error {
			var loaded []*index.Document
			err := resilience.Retry(gctx, "load-"+load.name, resilience.RetryConfig{}, func() error {
				var err error
				loaded, err = load.fn(gctx)
				return err
			})
			if err != nil {
				return fmt.Errorf("loading %s: %w", load.name, err)
			}
			l.logger.Info("table loaded", "table", load.name, "rows", len(loaded))
			mu.Lock()
			docs = append(docs, loaded...)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}

	if err := l.idx.BulkIndex(docs); err != nil {
		return 0, fmt.Errorf("bulk indexing: %w", err)
	}
	l.logger.Info("reindex complete",
		"documents", len(docs),
		"duration", time.Since(start),
	)
	return len(docs), nil
}

func (l *Loader) loadJobs(ctx context.Context) ([]*index.Document, error) {
	const q = `
		SELECT id, title, description, requirements, tags, category, location, company, created_at
		FROM jobs
		WHERE status = 'published'`
	return l.query(ctx, q, func(rows *sql.Rows) (*index.Document, error) {
		var (
			doc          index.Document
			requirements sql.NullString
			location     sql.NullString
			company      sql.NullString
			category     sql.NullString
		)
		if err := rows.Scan(&doc.ID, &doc.Title, &doc.Description, &requirements,
			pq.Array(&doc.Tags), &category, &location, &company, &doc.Metadata.CreatedAt); err != nil {
			return nil, err
		}
		doc.Type = index.TypeJob
		doc.Content = requirements.String
		doc.Metadata.Category = category.String
		doc.Metadata.Location = location.String
		doc.Metadata.Company = company.String
		return &doc, nil
	})
}

func (l *Loader) loadEvents(ctx context.Context) ([]*index.Document, error) {
	const q = `
		SELECT id, title, description, agenda, tags, category, location, created_at
		FROM events
		WHERE status = 'published'`
	return l.query(ctx, q, func(rows *sql.Rows) (*index.Document, error) {
		var (
			doc      index.Document
			agenda   sql.NullString
			location sql.NullString
			category sql.NullString
		)
		if err := rows.Scan(&doc.ID, &doc.Title, &doc.Description, &agenda,
			pq.Array(&doc.Tags), &category, &location, &doc.Metadata.CreatedAt); err != nil {
			return nil, err
		}
		doc.Type = index.TypeEvent
		doc.Content = agenda.String
		doc.Metadata.Category = category.String
		doc.Metadata.Location = location.String
		return &doc, nil
	})
}

func (l *Loader) loadForumPosts(ctx context.Context) ([]*index.Document, error) {
	const q = `
		SELECT id, title, body, tags, category, author_id, created_at
		FROM forum_posts
		WHERE deleted_at IS NULL`
	return l.query(ctx, q, func(rows *sql.Rows) (*index.Document, error) {
		var (
			doc      index.Document
			body     sql.NullString
			category sql.NullString
			authorID sql.NullString
		)
		if err := rows.Scan(&doc.ID, &doc.Title, &body,
			pq.Array(&doc.Tags), &category, &authorID, &doc.Metadata.CreatedAt); err != nil {
			return nil, err
		}
		doc.Type = index.TypeForum
		doc.Content = body.String
		doc.Metadata.Category = category.String
		doc.Metadata.AuthorID = authorID.String
		return &doc, nil
	})
}

func (l *Loader) loadResources(ctx context.Context) ([]*index.Document, error) {
	const q = `
		SELECT id, title, description, body, tags, category, author_id, created_at
		FROM resources
		WHERE status = 'published'`
	return l.query(ctx, q, func(rows *sql.Rows) (*index.Document, error) {
		var (
			doc      index.Document
			body     sql.NullString
			category sql.NullString
			authorID sql.NullString
		)
		if err := rows.Scan(&doc.ID, &doc.Title, &doc.Description, &body,
			pq.Array(&doc.Tags), &category, &authorID, &doc.Metadata.CreatedAt); err != nil {
			return nil, err
		}
		doc.Type = index.TypeResource
		doc.Content = body.String
		doc.Metadata.Category = category.String
		doc.Metadata.AuthorID = authorID.String
		return &doc, nil
	})
}

func (l *Loader) loadProfiles(ctx context.Context) ([]*index.Document, error) {
	const q = `
		SELECT user_id, display_name, headline, bio, skills, created_at
		FROM profiles
		WHERE searchable = TRUE`
	return l.query(ctx, q, func(rows *sql.Rows) (*index.Document, error) {
		var (
			doc      index.Document
			headline sql.NullString
			bio      sql.NullString
		)
		if err := rows.Scan(&doc.ID, &doc.Title, &headline, &bio,
			pq.Array(&doc.Tags), &doc.Metadata.CreatedAt); err != nil {
			return nil, err
		}
		doc.Type = index.TypeProfile
		doc.Description = headline.String
		doc.Content = bio.String
		doc.Metadata.AuthorID = doc.ID
		return &doc, nil
	})
}

func (l *Loader) query(ctx context.Context, q string, scan func(*sql.Rows) (*index.Document, error)) ([]*index.Document, error) {
	rows, err := l.db.DB.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("querying: %w", err)
	}
	defer rows.Close()

	var docs []*index.Document
	for rows.Next() {
		doc, err := scan(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating rows: %w", err)
	}
	return docs, nil
}
