package server

import (
	"log/slog"
	"net/http"
	"runtime"

	"github.com/dustin/go-humanize"
	"github.com/secmon-lab/gcu/pkg/utils"
)

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// Logging is a middleware to log HTTP access
func Logging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		reqID, ctx := utils.CtxRequestID(ctx)
		logger := utils.CtxLogger(ctx)
		logger = logger.With(
			slog.Any("request_id", reqID),
			slog.Group("http",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.String("remote", r.RemoteAddr),
			),
		)
		ctx = utils.CtxWithLogger(ctx, logger)

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r.WithContext(ctx))

		logger.Info("http access",
			slog.Int("status", rec.status),
			slog.Any("query", r.URL.Query()),
			slog.Any("header", r.Header),
			slog.String("user_agent", r.UserAgent()),
		)
	})
}

type ReadMemStatsFn func(m *runtime.MemStats)

// MemoryLimit rejects requests with 429 while the heap in use exceeds limit bytes
func MemoryLimit(limit uint64, read ReadMemStatsFn) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var m runtime.MemStats
			read(&m)
			if m.HeapAlloc > limit {
				utils.CtxLogger(r.Context()).Warn("Memory limit exceeded",
					"limit", humanize.Bytes(limit),
					"heap", humanize.Bytes(m.HeapAlloc),
				)
				http.Error(w, "Memory limit exceeded", http.StatusTooManyRequests)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
