package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/buildmart/price-scout/internal/aggregate"
	"github.com/buildmart/price-scout/internal/scrape"
)

type Handlers struct {
	agg    *aggregate.Aggregator
	logger *slog.Logger
}

func NewHandlers(agg *aggregate.Aggregator, logger *slog.Logger) *Handlers {
	return &Handlers{
		agg:    agg,
		logger: logger.With("component", "api"),
	}
}

func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().UTC(),
		"scrapers":  h.agg.Sources(),
		"uptime":    h.agg.Uptime().Seconds(),
	})
}

func (h *Handlers) Search(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.URL.Query().Get("query"))
	if query == "" {
		h.respondError(w, http.StatusBadRequest, "query parameter is required")
		return
	}

	opts := aggregate.SearchOptions{
		Sources:    csvParam(r, "sources"),
		MaxResults: intParam(r, "maxResults", 10),
		Category:   r.URL.Query().Get("category"),
	}

	result, err := h.agg.Search(r.Context(), query, opts)
	if err != nil {
		h.respondAggregateError(w, err)
		return
	}

	h.respondJSON(w, http.StatusOK, map[string]any{
		"query":        result.Query,
		"results":      result.Products,
		"totalResults": result.TotalResults,
		"timestamp":    time.Now().UTC(),
	})
}

func (h *Handlers) Compare(w http.ResponseWriter, r *http.Request) {
	productName := strings.TrimSpace(r.URL.Query().Get("productName"))
	if productName == "" {
		h.respondError(w, http.StatusBadRequest, "productName parameter is required")
		return
	}

	view, err := h.agg.Compare(r.Context(), productName, csvParam(r, "sources"))
	if err != nil {
		h.respondAggregateError(w, err)
		return
	}

	h.respondJSON(w, http.StatusOK, map[string]any{
		"productName": view.ProductName,
		"comparison":  view.BySource,
		"bestPrice":   view.BestPrice,
		"timestamp":   time.Now().UTC(),
	})
}

func (h *Handlers) Product(w http.ResponseWriter, r *http.Request) {
	url := strings.TrimSpace(r.URL.Query().Get("url"))
	source := strings.TrimSpace(r.URL.Query().Get("source"))
	if url == "" || source == "" {
		h.respondError(w, http.StatusBadRequest, "url and source parameters are required")
		return
	}

	listing, err := h.agg.Product(r.Context(), url, source)
	if err != nil {
		h.respondAggregateError(w, err)
		return
	}
	if listing == nil {
		h.respondError(w, http.StatusNotFound, "failed to extract product from "+source)
		return
	}

	h.respondJSON(w, http.StatusOK, map[string]any{
		"product":   listing,
		"source":    source,
		"timestamp": time.Now().UTC(),
	})
}

type triggerRequest struct {
	Source string         `json:"source"`
	Action string         `json:"action"`
	Params map[string]any `json:"params"`
}

func (h *Handlers) Trigger(w http.ResponseWriter, r *http.Request) {
	var req triggerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Source == "" || req.Action == "" {
		h.respondError(w, http.StatusBadRequest, "source and action are required")
		return
	}

	result, err := h.agg.Trigger(r.Context(), req.Source, req.Action, req.Params)
	if err != nil {
		h.respondAggregateError(w, err)
		return
	}

	h.respondJSON(w, http.StatusOK, map[string]any{
		"id":        uuid.NewString(),
		"source":    req.Source,
		"action":    req.Action,
		"result":    result,
		"timestamp": time.Now().UTC(),
	})
}

func (h *Handlers) Stats(w http.ResponseWriter, r *http.Request) {
	stats := h.agg.Stats(r.Context())
	h.respondJSON(w, http.StatusOK, map[string]any{
		"scrapers":   stats.Scrapers,
		"cacheStats": stats.Cache,
		"timestamp":  time.Now().UTC(),
	})
}

func (h *Handlers) ClearCache(w http.ResponseWriter, r *http.Request) {
	cleared := h.agg.ClearCache(r.Context())
	h.respondJSON(w, http.StatusOK, map[string]any{
		"message":      "cache cleared",
		"itemsCleared": cleared,
		"timestamp":    time.Now().UTC(),
	})
}

// UnknownEndpoint answers unmatched /api/scraping/* paths with the
// valid endpoint list.
func (h *Handlers) UnknownEndpoint(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, http.StatusNotFound, map[string]any{
		"error": "unknown endpoint: " + r.URL.Path,
		"validEndpoints": []string{
			"GET /api/scraping/search",
			"GET /api/scraping/compare",
			"GET /api/scraping/product",
			"POST /api/scraping/trigger",
			"GET /api/scraping/stats",
			"DELETE /api/scraping/cache",
		},
	})
}

// respondAggregateError maps pipeline errors onto HTTP statuses:
// request-shape problems become 400s, everything else a safe 500.
func (h *Handlers) respondAggregateError(w http.ResponseWriter, err error) {
	var unknownSource *scrape.ErrUnknownSource
	var unknownAction *aggregate.ErrUnknownAction
	var invalidParams *aggregate.ErrInvalidParams

	switch {
	case errors.As(err, &unknownSource), errors.As(err, &unknownAction), errors.As(err, &invalidParams):
		h.respondError(w, http.StatusBadRequest, err.Error())
	default:
		h.logger.Error("request failed", "error", err)
		h.respondError(w, http.StatusInternalServerError, "internal server error")
	}
}

func (h *Handlers) respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

func (h *Handlers) respondError(w http.ResponseWriter, status int, message string) {
	h.respondJSON(w, status, map[string]string{"error": message})
}

func csvParam(r *http.Request, name string) []string {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil
	}

	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func intParam(r *http.Request, name string, def int) int {
	if raw := r.URL.Query().Get(name); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			return n
		}
	}
	return def
}
