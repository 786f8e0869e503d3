package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRouter creates the HTTP router with configured routes, middleware, and
// handlers: download management, manual cleanup, health check, and the
// Prometheus metrics endpoint.
func NewRouter(service DownloadService, cleaner CleanupRunner, logger *slog.Logger) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Logger)

	handler := NewDownloadHandler(service, cleaner, logger)

	r.Route("/downloads", func(r chi.Router) {
		r.Post("/", handler.CreateDownload)
		r.Get("/", handler.ListDownloads)
		r.Get("/{jobID}", handler.GetDownload)
		r.Delete("/{jobID}", handler.CancelDownload)
		r.Post("/{jobID}/resume", handler.ResumeDownload)
	})

	r.Post("/cleanup", handler.TriggerCleanup)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Handle("/metrics", promhttp.Handler())

	return r
}
