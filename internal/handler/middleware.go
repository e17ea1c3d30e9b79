package handler

import (
	"net/http"
	"runtime/debug"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"
	"go.uber.org/zap"
)

// Router builds the API routes. events serves the SSE stream.
func (h *Handler) Router(events http.Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(h.Recover)
	r.Use(cors.AllowAll().Handler)
	r.Use(h.Logger)

	r.Get("/api/databases", h.ListDatabases)
	r.Get("/api/databases/{db}/bookmarks", h.GetBookmarks)
	r.Post("/api/databases/{db}/transactions", h.RunTransaction)

	if events != nil {
		r.Method(http.MethodGet, "/events", events)
	}
	return r
}

// Logger logs one line per request
func (h *Handler) Logger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		h.log.Debug("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Int("bytes", ww.BytesWritten()),
			zap.Duration("elapsed", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())))
	})
}

// Recover turns a panic into a 500 response
func (h *Handler) Recover(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				h.log.Error("panic serving request",
					zap.Any("panic", rec),
					zap.String("path", r.URL.Path),
					zap.ByteString("stack", debug.Stack()))
				h.writeError(w, "Internal server error", "", http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, r)
	})
}
