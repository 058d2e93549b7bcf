package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
)

const (
	rateLimitRequests = 100
	rateLimitWindow   = 15 * time.Minute
)

// NewRouter wires the HTTP surface: health plus the rate-limited
// scraping routes.
func NewRouter(h *Handlers) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(recoverJSON(h))
	r.Use(middleware.Timeout(120 * time.Second))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/api/health", h.Health)

	r.Route("/api/scraping", func(r chi.Router) {
		r.Use(httprate.Limit(
			rateLimitRequests,
			rateLimitWindow,
			httprate.WithKeyFuncs(httprate.KeyByIP),
			httprate.WithLimitHandler(tooManyRequests),
		))

		r.Get("/search", h.Search)
		r.Get("/compare", h.Compare)
		r.Get("/product", h.Product)
		r.Post("/trigger", h.Trigger)
		r.Get("/stats", h.Stats)
		r.Delete("/cache", h.ClearCache)

		r.NotFound(h.UnknownEndpoint)
	})

	return r
}

func tooManyRequests(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusTooManyRequests)
	json.NewEncoder(w).Encode(map[string]string{
		"error": "too many requests, please try again later",
	})
}

// recoverJSON converts panics into a generic JSON 500. The panic value
// is logged server-side only.
func recoverJSON(h *Handlers) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					h.logger.Error("panic in handler", "path", r.URL.Path, "panic", rec)
					h.respondError(w, http.StatusInternalServerError, "internal server error")
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}
