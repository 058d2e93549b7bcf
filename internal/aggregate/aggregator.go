package aggregate

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/buildmart/price-scout/internal/cache"
	"github.com/buildmart/price-scout/internal/models"
	"github.com/buildmart/price-scout/internal/scrape"
	"github.com/buildmart/price-scout/internal/validate"
)

// ErrUnknownAction is returned by Trigger for an unsupported action.
type ErrUnknownAction struct {
	Action string
}

func (e *ErrUnknownAction) Error() string {
	return fmt.Sprintf("unknown action: %s (valid: search, scrape)", e.Action)
}

// ErrInvalidParams is returned by Trigger when the action's required
// params are missing.
type ErrInvalidParams struct {
	Reason string
}

func (e *ErrInvalidParams) Error() string {
	return e.Reason
}

// SearchOptions narrows a fan-out search.
type SearchOptions struct {
	// Sources restricts the fan-out to the named adapters; empty means
	// every registered adapter.
	Sources    []string
	MaxResults int
	Category   string
}

// ServiceStats is the aggregate operational snapshot.
type ServiceStats struct {
	Scrapers map[string]scrape.Stats `json:"scrapers"`
	Cache    cache.Stats             `json:"cache_stats"`
	Uptime   float64                 `json:"uptime_seconds"`
}

// Aggregator orchestrates the pipeline: cache check, settle-all
// fan-out across adapters, validation, merge, rank, cache.
type Aggregator struct {
	registry  *scrape.Registry
	cache     cache.Store
	validator *validate.Validator
	logger    *slog.Logger
	ttl       time.Duration
	started   time.Time
}

func New(registry *scrape.Registry, store cache.Store, validator *validate.Validator, ttl time.Duration) *Aggregator {
	if ttl <= 0 {
		ttl = cache.DefaultTTL
	}
	return &Aggregator{
		registry:  registry,
		cache:     store,
		validator: validator,
		logger:    slog.Default().With("component", "aggregator"),
		ttl:       ttl,
		started:   time.Now(),
	}
}

// Search fans the query out to the selected adapters concurrently and
// returns the merged, validated, ranked listings. A failing adapter is
// logged and excluded; only an unknown source name is an error. All
// adapters failing still yields an empty result, since absent
// marketplace data is an expected business outcome.
func (a *Aggregator) Search(ctx context.Context, query string, opts SearchOptions) (*models.SearchResult, error) {
	if opts.MaxResults <= 0 {
		opts.MaxResults = 10
	}

	key := searchKey(query, opts)
	if data, ok := a.cache.Get(ctx, key); ok {
		var cached models.SearchResult
		if err := json.Unmarshal(data, &cached); err == nil {
			a.logger.Debug("cache hit", "query", query)
			return &cached, nil
		}
		a.cache.Delete(ctx, key)
	}

	adapters, err := a.registry.Resolve(opts.Sources)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	merged := a.fanout(ctx, adapters, query, opts.MaxResults)

	batch := a.validator.ValidateBatch(merged)
	if len(batch.CommonIssues) > 0 {
		// A systemic issue usually means a marketplace changed markup.
		a.logger.Warn("common extraction issues in batch",
			"query", query, "issues", batch.CommonIssues)
	}

	accepted := make([]models.ProductListing, 0, len(merged))
	for i := range merged {
		if !batch.Results[i].Valid {
			a.logger.Debug("dropping invalid listing",
				"url", merged[i].URL, "errors", batch.Results[i].Errors)
			continue
		}
		a.validator.Sanitize(&merged[i])
		if merged[i].Category == "" || merged[i].Category == "unknown" {
			merged[i].Category = models.InferCategory(merged[i].Title, "component")
		}
		if opts.Category != "" {
			if adapter, err := a.registry.Get(merged[i].Source); err == nil && !adapter.IsRelevant(&merged[i], opts.Category) {
				continue
			}
		}
		accepted = append(accepted, merged[i])
	}

	if dups := validate.FindDuplicates(accepted); len(dups) > 0 {
		a.logger.Info("duplicate listings across sources", "pairs", len(dups))
	}

	rankListings(query, accepted)
	if len(accepted) > opts.MaxResults {
		accepted = accepted[:opts.MaxResults]
	}

	result := &models.SearchResult{
		Query:        query,
		Products:     accepted,
		TotalResults: len(accepted),
		SearchTime:   time.Since(start).Seconds(),
	}

	if data, err := json.Marshal(result); err == nil {
		a.cache.Set(ctx, key, data, a.ttl)
	}

	return result, nil
}

// Compare groups one search's listings by source and picks the
// cheapest across all of them.
func (a *Aggregator) Compare(ctx context.Context, productName string, sources []string) (*models.ComparisonView, error) {
	result, err := a.Search(ctx, productName, SearchOptions{Sources: sources, MaxResults: 10})
	if err != nil {
		return nil, err
	}

	view := &models.ComparisonView{
		ProductName: productName,
		BySource:    make(map[string][]models.ProductListing),
	}

	for _, l := range result.Products {
		view.BySource[l.Source] = append(view.BySource[l.Source], l)
	}
	view.BestPrice = bestPrice(result.Products)

	return view, nil
}

// Product fetches a single listing by URL through the named adapter.
// A nil listing with nil error means extraction found nothing.
func (a *Aggregator) Product(ctx context.Context, url, source string) (*models.ProductListing, error) {
	adapter, err := a.registry.Get(source)
	if err != nil {
		return nil, err
	}

	key := "product:" + source + ":" + url
	if data, ok := a.cache.Get(ctx, key); ok {
		var cached models.ProductListing
		if err := json.Unmarshal(data, &cached); err == nil {
			return &cached, nil
		}
		a.cache.Delete(ctx, key)
	}

	l, err := adapter.Product(ctx, url)
	if err != nil {
		return nil, err
	}
	if l == nil {
		return nil, nil
	}

	if res := a.validator.Validate(l); !res.Valid {
		a.logger.Debug("extracted product failed validation", "url", url, "errors", res.Errors)
		return nil, nil
	}
	a.validator.Sanitize(l)

	if data, err := json.Marshal(l); err == nil {
		a.cache.Set(ctx, key, data, a.ttl)
	}

	return l, nil
}

// Trigger runs a named adapter action directly, for manual operation.
func (a *Aggregator) Trigger(ctx context.Context, source, action string, params map[string]any) (any, error) {
	adapter, err := a.registry.Get(source)
	if err != nil {
		return nil, err
	}

	switch action {
	case "search":
		query, _ := params["query"].(string)
		if query == "" {
			return nil, &ErrInvalidParams{Reason: "search action requires a query param"}
		}
		max := paramInt(params, "maxResults", 10)
		return adapter.SearchProducts(ctx, query, max)
	case "scrape":
		url, _ := params["url"].(string)
		if url == "" {
			return nil, &ErrInvalidParams{Reason: "scrape action requires a url param"}
		}
		return adapter.Product(ctx, url)
	default:
		return nil, &ErrUnknownAction{Action: action}
	}
}

func (a *Aggregator) Stats(ctx context.Context) ServiceStats {
	scrapers := make(map[string]scrape.Stats)
	for _, name := range a.registry.Names() {
		if adapter, err := a.registry.Get(name); err == nil {
			scrapers[name] = adapter.Stats()
		}
	}

	return ServiceStats{
		Scrapers: scrapers,
		Cache:    a.cache.GetStats(ctx),
		Uptime:   time.Since(a.started).Seconds(),
	}
}

func (a *Aggregator) Sources() []string {
	return a.registry.Names()
}

func (a *Aggregator) ClearCache(ctx context.Context) int {
	return a.cache.Clear(ctx)
}

func (a *Aggregator) Uptime() time.Duration {
	return time.Since(a.started)
}

type sourceResult struct {
	source   string
	listings []models.ProductListing
	err      error
}

// fanout launches every adapter concurrently and settles all of them:
// each failure is captured and logged with its source, never
// propagated to siblings.
func (a *Aggregator) fanout(ctx context.Context, adapters []scrape.Adapter, query string, maxResults int) []models.ProductListing {
	ch := make(chan sourceResult, len(adapters))

	for _, adapter := range adapters {
		go func(ad scrape.Adapter) {
			listings, err := ad.SearchProducts(ctx, query, maxResults)
			ch <- sourceResult{source: ad.Name(), listings: listings, err: err}
		}(adapter)
	}

	var merged []models.ProductListing
	failed := 0
	for range adapters {
		r := <-ch
		if r.err != nil {
			failed++
			a.logger.Warn("source search failed", "source", r.source, "query", query, "error", r.err)
			continue
		}
		merged = append(merged, r.listings...)
	}

	if failed == len(adapters) && len(adapters) > 0 {
		a.logger.Warn("all sources failed", "query", query)
	}

	return merged
}

func searchKey(query string, opts SearchOptions) string {
	return strings.ToLower(strings.Join([]string{
		"search", strings.TrimSpace(query),
		strings.Join(opts.Sources, ","),
		strconv.Itoa(opts.MaxResults),
		opts.Category,
	}, "|"))
}

func paramInt(params map[string]any, key string, def int) int {
	switch v := params[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	case string:
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}
