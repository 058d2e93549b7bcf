package scrape

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/buildmart/price-scout/internal/fetch"
	"github.com/buildmart/price-scout/internal/models"
	"github.com/buildmart/price-scout/internal/ratelimit"
)

// relevanceTerms are per-category allow-lists used to drop off-topic
// search-result noise before it reaches the aggregator.
var relevanceTerms = map[string][]string{
	"processor":   {"processor", "procesador", "cpu", "ryzen", "intel", "core i", "threadripper", "athlon"},
	"graphics":    {"graphics", "gpu", "video card", "geforce", "rtx", "gtx", "radeon", "tarjeta de video"},
	"motherboard": {"motherboard", "mainboard", "tarjeta madre", "am4", "am5", "lga", "b550", "b650", "z690", "z790"},
	"memory":      {"ram", "memory", "memoria", "ddr4", "ddr5", "dimm", "sodimm"},
	"storage":     {"ssd", "hdd", "nvme", "m.2", "hard drive", "disco duro", "sata"},
	"case":        {"case", "tower", "chassis", "gabinete", "atx"},
	"power":       {"power supply", "psu", "fuente", "80 plus", "modular"},
	"cooling":     {"cooler", "cooling", "fan", "aio", "heatsink", "ventilador", "liquid"},
}

var genericTerms = []string{
	"pc", "gaming", "computer", "computadora", "desktop", "component", "componente",
	"processor", "procesador", "cpu", "gpu", "graphics", "tarjeta", "motherboard",
	"ram", "memoria", "ssd", "nvme", "cooler", "fuente", "gabinete", "ryzen",
	"intel", "geforce", "radeon", "rtx", "gtx", "ddr4", "ddr5",
}

// base carries the machinery every adapter shares: its fetcher, rate
// limiter, counters, and the generic search composition.
type base struct {
	name     string
	fetcher  *fetch.Fetcher
	limiter  *ratelimit.AdaptiveLimiter
	mode     fetch.Mode
	maxLinks int
	logger   *slog.Logger

	requests atomic.Int64
	errCount atomic.Int64

	mu           sync.Mutex
	lastActivity time.Time
}

func newBase(name string, f *fetch.Fetcher, limiter *ratelimit.AdaptiveLimiter, mode fetch.Mode, maxLinks int) base {
	return base{
		name:     name,
		fetcher:  f,
		limiter:  limiter,
		mode:     mode,
		maxLinks: maxLinks,
		logger:   slog.Default().With("component", "scraper", "source", name),
	}
}

func (b *base) Name() string {
	return b.name
}

func (b *base) Stats() Stats {
	b.mu.Lock()
	last := b.lastActivity
	b.mu.Unlock()

	return Stats{
		Source:       b.name,
		Requests:     b.requests.Load(),
		Errors:       b.errCount.Load(),
		LastActivity: last,
		RecentErrors: b.fetcher.Errors(),
	}
}

// fetchPage wraps the fetcher with the adapter's counters and adaptive
// backoff bookkeeping.
func (b *base) fetchPage(ctx context.Context, url string) (string, error) {
	b.requests.Add(1)
	b.mu.Lock()
	b.lastActivity = time.Now()
	b.mu.Unlock()

	html, err := b.fetcher.Fetch(ctx, url, b.mode)
	if err != nil {
		b.errCount.Add(1)
		if b.limiter != nil {
			b.limiter.RecordError()
		}
		return "", err
	}

	if b.limiter != nil {
		b.limiter.RecordSuccess()
	}
	return html, nil
}

func (b *base) isRelevant(l *models.ProductListing, category string) bool {
	if l == nil || l.Title == "" {
		return false
	}

	terms, ok := relevanceTerms[strings.ToLower(category)]
	if !ok {
		terms = genericTerms
	}

	title := strings.ToLower(l.Title)
	for _, term := range terms {
		if strings.Contains(title, term) {
			return true
		}
	}
	return false
}

// searchProducts is the flow every adapter composes: search page fetch,
// link extraction, then sequential detail fetches under the adapter's
// own rate limit. A failed detail fetch is logged and skipped, it never
// aborts the batch.
func searchProducts(ctx context.Context, a Adapter, b *base, term string, maxResults int) ([]models.ProductListing, error) {
	if maxResults <= 0 {
		maxResults = 10
	}

	searchURL := a.BuildSearchURL(term)
	html, err := b.fetchPage(ctx, searchURL)
	if err != nil {
		return nil, err
	}

	links := a.ExtractProductLinks(html)
	b.logger.Info("extracted product links", "term", term, "count", len(links))

	listings := make([]models.ProductListing, 0, maxResults)
	for _, link := range links {
		if len(listings) >= maxResults {
			break
		}
		if err := ctx.Err(); err != nil {
			return listings, err
		}

		page, err := b.fetchPage(ctx, link)
		if err != nil {
			b.logger.Warn("skipping product link", "url", link, "error", err)
			continue
		}

		l := a.ExtractListing(page, link)
		if l == nil {
			b.logger.Debug("no listing extracted", "url", link)
			continue
		}
		if !a.IsRelevant(l, "") {
			b.logger.Debug("dropping off-topic listing", "url", link, "title", l.Title)
			continue
		}

		listings = append(listings, *l)
	}

	return listings, nil
}

// product fetches and extracts one listing by URL.
func product(ctx context.Context, a Adapter, b *base, url string) (*models.ProductListing, error) {
	html, err := b.fetchPage(ctx, url)
	if err != nil {
		return nil, err
	}
	return a.ExtractListing(html, url), nil
}
