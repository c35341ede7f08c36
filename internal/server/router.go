package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/starford/quire/internal/index"
)

// Options wires the router to the rest of the application.
type Options struct {
	// SiteDir is the published output directory served at /.
	SiteDir string
	Index   index.PageIndex
	// Events, if non-nil, is mounted at GET /api/events.
	Events http.Handler
	// Metrics, if non-nil, is mounted at GET /metrics.
	Metrics http.Handler
	// RequestLog enables chi's request logger.
	RequestLog bool
}

// NewRouter creates the preview server router.
func NewRouter(opts Options) chi.Router {
	h := NewHandler(opts.Index)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	if opts.RequestLog {
		r.Use(middleware.Logger)
	}
	r.Use(middleware.Recoverer)

	r.Get("/health/live", Live)
	r.Get("/health/ready", h.Ready)

	r.Route("/api", func(r chi.Router) {
		r.Get("/chapters", h.ListChapters)
		r.Get("/search", h.Search)
		if opts.Events != nil {
			r.Get("/events", opts.Events.ServeHTTP)
		}
	})

	if opts.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", opts.Metrics)
	}

	// The output directory is swapped by rename on every rebuild, so it is
	// resolved per request rather than opened once.
	r.With(NoCache).Handle("/*", http.FileServer(http.Dir(opts.SiteDir)))

	return r
}
