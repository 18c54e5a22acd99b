package benchmark

import (
	"fmt"
	"testing"
	"time"

	"github.com/secid-mx/community-search/internal/engine/index"
	"github.com/secid-mx/community-search/internal/engine/indexer"
	"github.com/secid-mx/community-search/internal/engine/suggest"
	"github.com/secid-mx/community-search/pkg/config"
)

var benchTerms = []string{
	"data", "scientist", "golang", "backend", "community",
	"workshop", "mentoring", "analytics", "remote", "senior",
}

func benchDoc(i int) *index.Document {
	t1 := benchTerms[i%len(benchTerms)]
	t2 := benchTerms[(i+1)%len(benchTerms)]
	t3 := benchTerms[(i+3)%len(benchTerms)]
	return &index.Document{
		ID:          fmt.Sprintf("doc-%d", i),
		Type:        index.ContentTypes[i%len(index.ContentTypes)],
		Title:       fmt.Sprintf("%s %s position", t1, t2),
		Description: fmt.Sprintf("looking for %s experience with %s and %s", t1, t2, t3),
		Tags:        []string{t2, t3},
		Language:    "en",
		Metadata: index.Metadata{
			CreatedAt: time.Now().Add(-time.Duration(i%90) * 24 * time.Hour),
			Category:  t3,
			AuthorID:  fmt.Sprintf("user-%d", i%100),
		},
	}
}

func newBenchIndexer() *indexer.Indexer {
	store := index.NewStore()
	return indexer.New(store, suggest.NewStore(config.DefaultSuggest()))
}

// BenchmarkIndexerAdd measures per-document insert throughput including the
// snapshot swap each write publishes.
func BenchmarkIndexerAdd(b *testing.B) {
	ix := newBenchIndexer()
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if err := ix.AddDocument(benchDoc(i)); err != nil {
			b.Fatal(err)
		}
	}
}

// BenchmarkIndexerAddPreloaded measures insert cost as the copy-on-write
// builder's clone surface grows with corpus size.
func BenchmarkIndexerAddPreloaded(b *testing.B) {
	sizes := []int{100, 1000, 5000}
	for _, preload := range sizes {
		b.Run(fmt.Sprintf("preload_%d", preload), func(b *testing.B) {
			ix := newBenchIndexer()
			for i := 0; i < preload; i++ {
				if err := ix.AddDocument(benchDoc(i)); err != nil {
					b.Fatal(err)
				}
			}
			b.ReportAllocs()
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				if err := ix.AddDocument(benchDoc(preload + i)); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

// BenchmarkBulkIndex measures batch throughput where the whole batch shares a
// single snapshot swap.
func BenchmarkBulkIndex(b *testing.B) {
	sizes := []int{100, 1000, 10000}
	for _, size := range sizes {
		docs := make([]*index.Document, size)
		for i := range docs {
			docs[i] = benchDoc(i)
		}
		b.Run(fmt.Sprintf("docs_%d", size), func(b *testing.B) {
			b.ReportAllocs()
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				ix := newBenchIndexer()
				if err := ix.BulkIndex(docs); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

// BenchmarkIndexerUpdate measures in-place replacement, which removes the old
// postings before writing the new ones.
func BenchmarkIndexerUpdate(b *testing.B) {
	ix := newBenchIndexer()
	for i := 0; i < 5000; i++ {
		if err := ix.AddDocument(benchDoc(i)); err != nil {
			b.Fatal(err)
		}
	}
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := ix.UpdateDocument(benchDoc(i % 5000)); err != nil {
			b.Fatal(err)
		}
	}
}

// BenchmarkSnapshotReads measures lock-free snapshot access under concurrent
// readers while a writer keeps swapping versions.
func BenchmarkSnapshotReads(b *testing.B) {
	store := index.NewStore()
	ix := indexer.New(store, suggest.NewStore(config.DefaultSuggest()))
	for i := 0; i < 5000; i++ {
		if err := ix.AddDocument(benchDoc(i)); err != nil {
			b.Fatal(err)
		}
	}
	stop := make(chan struct{})
	go func() {
		i := 5000
		for {
			select {
			case <-stop:
				return
			default:
				ix.AddDocument(benchDoc(i))
				i++
			}
		}
	}()
	defer close(stop)

	b.ReportAllocs()
	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			snap := store.Active()
			_ = snap.DocCount()
		}
	})
}
