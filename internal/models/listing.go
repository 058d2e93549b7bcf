package models

import (
	"time"
)

// Availability describes stock state as reported by a marketplace.
type Availability string

const (
	InStock      Availability = "in_stock"
	OutOfStock   Availability = "out_of_stock"
	LimitedStock Availability = "limited"
	UnknownStock Availability = "unknown"
)

// Money is a parsed price with its ISO-4217 currency code and the raw
// display text it was parsed from.
type Money struct {
	Value    float64 `json:"value" validate:"gt=0"`
	Currency string  `json:"currency" validate:"required"`
	Display  string  `json:"display,omitempty"`
}

// ProductListing is one scraped product record from one marketplace.
// The URL is the listing's identity within a source: re-scraping the
// same URL replaces the previous record.
type ProductListing struct {
	Title         string            `json:"title" validate:"required"`
	Price         Money             `json:"price"`
	OriginalPrice *Money            `json:"original_price,omitempty"`
	URL           string            `json:"url" validate:"required,url"`
	Source        string            `json:"source" validate:"required"`
	Rating        *float64          `json:"rating,omitempty"`
	ReviewCount   *int              `json:"review_count,omitempty"`
	Availability  Availability      `json:"availability"`
	Images        []string          `json:"images,omitempty"`
	Description   string            `json:"description,omitempty"`
	Attributes    map[string]string `json:"attributes,omitempty"`
	Category      string            `json:"category,omitempty"`
	ScrapedAt     time.Time         `json:"scraped_at"`
}

func NewListing(source, url string) *ProductListing {
	return &ProductListing{
		URL:          url,
		Source:       source,
		Availability: UnknownStock,
		ScrapedAt:    time.Now(),
	}
}

// HasPrice reports whether a usable price was parsed for the listing.
func (l *ProductListing) HasPrice() bool {
	return l.Price.Value > 0
}

// Discounted reports whether the listing carries a valid pre-discount price.
func (l *ProductListing) Discounted() bool {
	return l.OriginalPrice != nil && l.OriginalPrice.Value >= l.Price.Value
}

// SearchResult is the merged outcome of one fan-out search. It is
// constructed per request and lives only in the cache.
type SearchResult struct {
	Query        string           `json:"query"`
	Products     []ProductListing `json:"products"`
	TotalResults int              `json:"total_results"`
	SearchTime   float64          `json:"search_time"`
}

// ComparisonView groups one search's listings by source and carries the
// cheapest listing across all of them. Derived from a SearchResult,
// never cached on its own.
type ComparisonView struct {
	ProductName string                      `json:"product_name"`
	BySource    map[string][]ProductListing `json:"by_source"`
	BestPrice   *ProductListing             `json:"best_price,omitempty"`
}
