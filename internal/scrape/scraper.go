package scrape

import (
	"context"
	"time"

	"github.com/buildmart/price-scout/internal/fetch"
	"github.com/buildmart/price-scout/internal/models"
)

// Adapter is the per-marketplace extraction strategy. Implementations
// normalize marketplace-specific markup into the shared ProductListing
// shape.
type Adapter interface {
	Name() string

	// BuildSearchURL returns the marketplace's search URL for a term.
	BuildSearchURL(term string) string

	// ExtractProductLinks pulls candidate product URLs out of a
	// search-results page, capped at the source's link limit.
	ExtractProductLinks(html string) []string

	// ExtractListing parses a product page into a listing. A nil return
	// means the markup did not match, which is treated as "no data",
	// not as an error.
	ExtractListing(html, url string) *models.ProductListing

	// SearchProducts runs the full search flow: build URL, fetch,
	// extract links, then fetch each detail page sequentially under the
	// adapter's own rate limit. Individual detail failures are skipped.
	SearchProducts(ctx context.Context, term string, maxResults int) ([]models.ProductListing, error)

	// Product fetches and extracts a single listing by URL.
	Product(ctx context.Context, url string) (*models.ProductListing, error)

	// IsRelevant keyword-matches the listing title against a
	// category-specific or generic allow-list to drop off-topic noise.
	IsRelevant(l *models.ProductListing, category string) bool

	Stats() Stats
}

// Stats is a snapshot of one adapter's request counters and its
// fetcher's recent failures.
type Stats struct {
	Source       string              `json:"source"`
	Requests     int64               `json:"requests"`
	Errors       int64               `json:"errors"`
	LastActivity time.Time           `json:"last_activity,omitempty"`
	RecentErrors []fetch.ErrorRecord `json:"recent_errors,omitempty"`
}
