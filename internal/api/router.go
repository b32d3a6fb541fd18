// Package api exposes the CAT service over HTTP/JSON.
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/abhisek/catengine/internal/cat"
	"github.com/abhisek/catengine/internal/logger"
	"github.com/abhisek/catengine/internal/metrics"
)

// UserHeader carries the caller identity set by the upstream gateway.
const UserHeader = "X-User-ID"

// Options configures the router.
type Options struct {
	CORSOrigins []string
	Timeout     time.Duration
	Metrics     *metrics.Metrics
	Log         *logger.Logger
}

// NewRouter builds the HTTP handler for svc.
func NewRouter(svc *cat.Service, opts Options) http.Handler {
	if opts.Log == nil {
		opts.Log = logger.Nop()
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	origins := opts.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"http://localhost:3000"}
	}

	h := &handlers{svc: svc, log: opts.Log}

	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Recoverer)
	r.Use(requestLogger(opts.Log), observe(opts.Metrics))
	r.Use(middleware.Timeout(opts.Timeout))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", UserHeader},
		ExposedHeaders:   []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Method(http.MethodGet, "/metrics", opts.Metrics.Handler())

	r.Route("/v1/cat", func(cr chi.Router) {
		cr.Use(requireUser)
		cr.Post("/tests", h.createTest)
		cr.Route("/sessions/{sessionID}", func(sr chi.Router) {
			sr.Get("/", h.report)
			sr.Get("/next", h.next)
			sr.Post("/answers", h.submit)
			sr.Post("/abandon", h.abandon)
		})
	})
	return r
}
