package api

import (
	"context"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
)

// TimeoutMiddleware adds request timeout to prevent long-running requests
func TimeoutMiddleware(timeout time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), timeout)
			defer cancel()
			r = r.WithContext(ctx)

			tw := &timeoutWriter{w: w, h: make(http.Header)}
			done := make(chan struct{}, 1)
			go func() {
				defer func() {
					if p := recover(); p != nil {
						zap.S().Errorw("panic while serving request",
							"path", r.URL.Path,
							"requestId", RequestID(ctx),
							"panic", p)
						tw.fail(http.StatusInternalServerError, `{"error": "Internal server error"}`)
					}
					done <- struct{}{}
				}()
				next.ServeHTTP(tw, r)
			}()

			select {
			case <-done:
			case <-ctx.Done():
				if ctx.Err() == context.DeadlineExceeded {
					zap.S().Warnw("request timeout",
						"path", r.URL.Path,
						"method", r.Method,
						"requestId", RequestID(ctx),
						"timeout", timeout)
					tw.fail(http.StatusRequestTimeout, `{"error": "Request timeout", "message": "The request took too long to process"}`)
				}
			}
		})
	}
}

// timeoutWriter stops the handler goroutine from writing once the middleware has answered.
// The handler gets its own header map, copied onto the real response under mu, so a late
// handler never touches the headers the middleware is writing.
type timeoutWriter struct {
	w       http.ResponseWriter
	h       http.Header
	mu      sync.Mutex
	wrote   bool
	aborted bool
}

func (tw *timeoutWriter) Header() http.Header {
	return tw.h
}

func (tw *timeoutWriter) WriteHeader(code int) {
	tw.mu.Lock()
	defer tw.mu.Unlock()
	if tw.aborted || tw.wrote {
		return
	}
	tw.writeHeaderLocked(code)
}

func (tw *timeoutWriter) Write(b []byte) (int, error) {
	tw.mu.Lock()
	defer tw.mu.Unlock()
	if tw.aborted {
		return 0, http.ErrHandlerTimeout
	}
	if !tw.wrote {
		tw.writeHeaderLocked(http.StatusOK)
	}
	return tw.w.Write(b)
}

func (tw *timeoutWriter) writeHeaderLocked(code int) {
	tw.wrote = true
	dst := tw.w.Header()
	for k, vv := range tw.h {
		dst[k] = append([]string(nil), vv...)
	}
	tw.w.WriteHeader(code)
}

// fail answers with body unless the handler already started its response
func (tw *timeoutWriter) fail(code int, body string) {
	tw.mu.Lock()
	defer tw.mu.Unlock()
	if tw.wrote || tw.aborted {
		tw.aborted = true
		return
	}
	tw.aborted = true
	tw.w.Header().Set("Content-Type", "application/json")
	tw.w.WriteHeader(code)
	tw.w.Write([]byte(body))
}
