package middleware

import (
	"context"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/secid-mx/community-search/pkg/logger"
)

// Timeout bounds each request with a derived deadline. When the handler is
// still running at the deadline a 504 is written and the handler's own late
// writes are discarded.
func Timeout(limit time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), limit)
			defer cancel()

			gw := &guardedWriter{inner: w}
			done := make(chan struct{})
			go func() {
				defer close(done)
				next.ServeHTTP(gw, r.WithContext(ctx))
			}()

			select {
			case <-done:
			case <-ctx.Done():
				if gw.claim() {
					logger.FromContext(ctx).Warn("request deadline exceeded",
						"method", r.Method,
						"path", r.URL.Path,
						"limit", limit,
					)
					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusGatewayTimeout)
					w.Write([]byte(`{"error":"request timeout"}`))
				}
				<-done
			}
		})
	}
}

// guardedWriter lets exactly one of the handler goroutine and the timeout
// path touch the underlying ResponseWriter.
type guardedWriter struct {
	inner   http.ResponseWriter
	claimed atomic.Bool
	mine    bool
}

// claim reserves the writer; the first caller wins.
func (g *guardedWriter) claim() bool {
	return g.claimed.CompareAndSwap(false, true)
}

func (g *guardedWriter) Header() http.Header {
	return g.inner.Header()
}

func (g *guardedWriter) WriteHeader(code int) {
	if g.mine || g.claim() {
		g.mine = true
		g.inner.WriteHeader(code)
	}
}

func (g *guardedWriter) Write(b []byte) (int, error) {
	if g.mine || g.claim() {
		g.mine = true
		return g.inner.Write(b)
	}
	return len(b), nil
}
