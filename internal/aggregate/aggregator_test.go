package aggregate

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/buildmart/price-scout/internal/cache"
	"github.com/buildmart/price-scout/internal/models"
	"github.com/buildmart/price-scout/internal/scrape"
	"github.com/buildmart/price-scout/internal/validate"
)

type fakeAdapter struct {
	name        string
	listings    []models.ProductListing
	product     *models.ProductListing
	err         error
	searchCalls atomic.Int64
}

func (f *fakeAdapter) Name() string                           { return f.name }
func (f *fakeAdapter) BuildSearchURL(term string) string      { return "https://example.com/s?q=" + term }
func (f *fakeAdapter) ExtractProductLinks(html string) []string { return nil }
func (f *fakeAdapter) ExtractListing(html, url string) *models.ProductListing {
	return nil
}

func (f *fakeAdapter) SearchProducts(ctx context.Context, term string, maxResults int) ([]models.ProductListing, error) {
	f.searchCalls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	return f.listings, nil
}

func (f *fakeAdapter) Product(ctx context.Context, url string) (*models.ProductListing, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.product, nil
}

func (f *fakeAdapter) IsRelevant(l *models.ProductListing, category string) bool { return true }
func (f *fakeAdapter) Stats() scrape.Stats                                       { return scrape.Stats{Source: f.name} }

func mkListing(source, title string, price float64) models.ProductListing {
	return models.ProductListing{
		Title:        title,
		Price:        models.Money{Value: price, Currency: "USD"},
		URL:          fmt.Sprintf("https://%s.example.com/%s/%f", source, title, price),
		Source:       source,
		Availability: models.InStock,
		ScrapedAt:    time.Now(),
	}
}

func newTestAggregator(t *testing.T, adapters ...scrape.Adapter) *Aggregator {
	t.Helper()

	registry := scrape.NewRegistry()
	for _, a := range adapters {
		registry.Register(a)
	}

	store := cache.NewMemoryCache(time.Minute)
	t.Cleanup(store.Close)

	return New(registry, store, validate.New(), time.Minute)
}

func TestSearchMergesSources(t *testing.T) {
	amazon := &fakeAdapter{name: "amazon", listings: []models.ProductListing{
		mkListing("amazon", "RTX 4070 Gaming GPU", 599.99),
		mkListing("amazon", "RTX 4070 Ti Gaming GPU", 789.99),
		mkListing("amazon", "RTX 4070 Super GPU", 699.99),
	}}
	meli := &fakeAdapter{name: "mercadolibre_mx", listings: []models.ProductListing{
		mkListing("mercadolibre_mx", "Tarjeta RTX 4070 12GB", 610.00),
		mkListing("mercadolibre_mx", "RTX 4070 Founders", 589.00),
		mkListing("mercadolibre_mx", "RTX 4070 Dual OC", 605.00),
	}}
	agg := newTestAggregator(t, amazon, meli)

	result, err := agg.Search(context.Background(), "RTX 4070",
		SearchOptions{Sources: []string{"amazon", "mercadolibre_mx"}, MaxResults: 5})
	require.NoError(t, err)

	assert.LessOrEqual(t, result.TotalResults, 5)
	assert.Len(t, result.Products, result.TotalResults)
	for _, l := range result.Products {
		assert.Contains(t, []string{"amazon", "mercadolibre_mx"}, l.Source)
		assert.Greater(t, l.Price.Value, 0.0)
	}
}

func TestSearchPartialFailure(t *testing.T) {
	working := &fakeAdapter{name: "amazon", listings: []models.ProductListing{
		mkListing("amazon", "Intel Core i7 14700K", 399.99),
	}}
	broken := &fakeAdapter{name: "mercadolibre_mx", err: errors.New("marketplace timeout")}
	agg := newTestAggregator(t, working, broken)

	result, err := agg.Search(context.Background(), "Intel i7", SearchOptions{})
	require.NoError(t, err, "a failing source must not surface an error")

	require.Equal(t, 1, result.TotalResults)
	assert.Equal(t, "amazon", result.Products[0].Source)
}

func TestSearchAllSourcesFailed(t *testing.T) {
	a := &fakeAdapter{name: "amazon", err: errors.New("blocked")}
	b := &fakeAdapter{name: "mercadolibre_mx", err: errors.New("timeout")}
	agg := newTestAggregator(t, a, b)

	result, err := agg.Search(context.Background(), "Intel i7", SearchOptions{})
	require.NoError(t, err, "no marketplace data is a valid business outcome, not a failure")
	assert.Zero(t, result.TotalResults)
}

func TestSearchUnknownSource(t *testing.T) {
	agg := newTestAggregator(t, &fakeAdapter{name: "amazon"})

	_, err := agg.Search(context.Background(), "Intel i7",
		SearchOptions{Sources: []string{"walmart"}})

	var unknown *scrape.ErrUnknownSource
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, "walmart", unknown.Source)
}

func TestSearchUsesCache(t *testing.T) {
	adapter := &fakeAdapter{name: "amazon", listings: []models.ProductListing{
		mkListing("amazon", "Samsung 990 Pro SSD", 129.99),
	}}
	agg := newTestAggregator(t, adapter)

	first, err := agg.Search(context.Background(), "990 pro", SearchOptions{})
	require.NoError(t, err)

	second, err := agg.Search(context.Background(), "990 pro", SearchOptions{})
	require.NoError(t, err)

	assert.Equal(t, int64(1), adapter.searchCalls.Load(), "second search must be served from cache")
	assert.Equal(t, first.TotalResults, second.TotalResults)
}

func TestSearchDropsInvalidListings(t *testing.T) {
	noPrice := mkListing("amazon", "Corsair RM850x PSU", 0)
	adapter := &fakeAdapter{name: "amazon", listings: []models.ProductListing{
		mkListing("amazon", "Corsair RM750x PSU", 109.99),
		noPrice,
	}}
	agg := newTestAggregator(t, adapter)

	result, err := agg.Search(context.Background(), "Corsair PSU", SearchOptions{})
	require.NoError(t, err)

	require.Equal(t, 1, result.TotalResults)
	assert.Equal(t, "Corsair RM750x PSU", result.Products[0].Title)
}

func TestSearchRanksByRelevanceThenPrice(t *testing.T) {
	adapter := &fakeAdapter{name: "amazon", listings: []models.ProductListing{
		mkListing("amazon", "USB Cable", 9.99),
		mkListing("amazon", "Ryzen 9 7950X Processor", 549.99),
		mkListing("amazon", "Ryzen 9 7950X Processor Bundle", 599.99),
		mkListing("amazon", "Ryzen 9 7900X Processor", 429.99),
	}}
	agg := newTestAggregator(t, adapter)

	result, err := agg.Search(context.Background(), "Ryzen 9 7950X", SearchOptions{})
	require.NoError(t, err)
	require.Equal(t, 4, result.TotalResults)

	// both full matches first, cheaper one leading; partial match next;
	// the irrelevant cable last
	assert.Equal(t, "Ryzen 9 7950X Processor", result.Products[0].Title)
	assert.Equal(t, "Ryzen 9 7950X Processor Bundle", result.Products[1].Title)
	assert.Equal(t, "Ryzen 9 7900X Processor", result.Products[2].Title)
	assert.Equal(t, "USB Cable", result.Products[3].Title)
}

func TestSearchTagsCategories(t *testing.T) {
	adapter := &fakeAdapter{name: "amazon", listings: []models.ProductListing{
		mkListing("amazon", "Corsair Vengeance DDR5 32GB", 149.99),
		mkListing("amazon", "Mystery Widget", 19.99),
	}}
	agg := newTestAggregator(t, adapter)

	result, err := agg.Search(context.Background(), "Vengeance Widget", SearchOptions{})
	require.NoError(t, err)
	require.Equal(t, 2, result.TotalResults)

	byTitle := map[string]string{}
	for _, l := range result.Products {
		byTitle[l.Title] = l.Category
	}
	assert.Equal(t, "memory", byTitle["Corsair Vengeance DDR5 32GB"])
	assert.Equal(t, "component", byTitle["Mystery Widget"])
}

func TestRankListingsUnpricedLast(t *testing.T) {
	listings := []models.ProductListing{
		{Title: "Intel i7 no price"},
		{Title: "Intel i7 priced", Price: models.Money{Value: 310, Currency: "USD"}},
	}

	rankListings("Intel i7", listings)

	assert.Equal(t, "Intel i7 priced", listings[0].Title)
	assert.Equal(t, "Intel i7 no price", listings[1].Title)
}

func TestCompareBestPrice(t *testing.T) {
	amazon := &fakeAdapter{name: "amazon", listings: []models.ProductListing{
		mkListing("amazon", "Intel i7 14700K box", 310),
		mkListing("amazon", "Intel i7 14700K tray", 299),
		mkListing("amazon", "Intel i7 14700KF", 320),
	}}
	meli := &fakeAdapter{name: "mercadolibre_mx", listings: []models.ProductListing{
		mkListing("mercadolibre_mx", "Intel i7 14700K nuevo", 305),
		mkListing("mercadolibre_mx", "Intel i7 14700K sellado", 315),
	}}
	agg := newTestAggregator(t, amazon, meli)

	view, err := agg.Compare(context.Background(), "Intel i7", nil)
	require.NoError(t, err)

	require.NotNil(t, view.BestPrice)
	assert.Equal(t, 299.0, view.BestPrice.Price.Value)
	assert.Equal(t, "amazon", view.BestPrice.Source)
	assert.Len(t, view.BySource["amazon"], 3)
	assert.Len(t, view.BySource["mercadolibre_mx"], 2)
}

func TestCompareNoUsablePrices(t *testing.T) {
	adapter := &fakeAdapter{name: "amazon", err: errors.New("blocked")}
	agg := newTestAggregator(t, adapter)

	view, err := agg.Compare(context.Background(), "Intel i7", nil)
	require.NoError(t, err)
	assert.Nil(t, view.BestPrice)
	assert.Empty(t, view.BySource)
}

func TestProduct(t *testing.T) {
	listing := mkListing("amazon", "WD Black SN850X", 89.99)
	adapter := &fakeAdapter{name: "amazon", product: &listing}
	agg := newTestAggregator(t, adapter)

	got, err := agg.Product(context.Background(), listing.URL, "amazon")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "WD Black SN850X", got.Title)
}

func TestProductUnknownSource(t *testing.T) {
	agg := newTestAggregator(t, &fakeAdapter{name: "amazon"})

	_, err := agg.Product(context.Background(), "https://example.com/p", "ebay")

	var unknown *scrape.ErrUnknownSource
	require.ErrorAs(t, err, &unknown)
}

func TestProductExtractionMiss(t *testing.T) {
	agg := newTestAggregator(t, &fakeAdapter{name: "amazon"})

	got, err := agg.Product(context.Background(), "https://example.com/p", "amazon")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestTrigger(t *testing.T) {
	listing := mkListing("amazon", "be quiet! Dark Rock Pro 5", 99.90)
	adapter := &fakeAdapter{
		name:     "amazon",
		listings: []models.ProductListing{listing},
		product:  &listing,
	}
	agg := newTestAggregator(t, adapter)

	t.Run("search action", func(t *testing.T) {
		result, err := agg.Trigger(context.Background(), "amazon", "search",
			map[string]any{"query": "dark rock", "maxResults": float64(5)})
		require.NoError(t, err)

		listings, ok := result.([]models.ProductListing)
		require.True(t, ok)
		assert.Len(t, listings, 1)
	})

	t.Run("scrape action", func(t *testing.T) {
		result, err := agg.Trigger(context.Background(), "amazon", "scrape",
			map[string]any{"url": listing.URL})
		require.NoError(t, err)
		assert.NotNil(t, result)
	})

	t.Run("unknown action", func(t *testing.T) {
		_, err := agg.Trigger(context.Background(), "amazon", "reindex", nil)
		var unknown *ErrUnknownAction
		require.ErrorAs(t, err, &unknown)
	})

	t.Run("missing query param", func(t *testing.T) {
		_, err := agg.Trigger(context.Background(), "amazon", "search", nil)
		var invalid *ErrInvalidParams
		require.ErrorAs(t, err, &invalid)
	})

	t.Run("unknown source", func(t *testing.T) {
		_, err := agg.Trigger(context.Background(), "ebay", "search",
			map[string]any{"query": "x"})
		var unknown *scrape.ErrUnknownSource
		require.ErrorAs(t, err, &unknown)
	})
}

func TestStats(t *testing.T) {
	agg := newTestAggregator(t,
		&fakeAdapter{name: "amazon"},
		&fakeAdapter{name: "mercadolibre_mx"})

	stats := agg.Stats(context.Background())

	assert.Contains(t, stats.Scrapers, "amazon")
	assert.Contains(t, stats.Scrapers, "mercadolibre_mx")
	assert.GreaterOrEqual(t, stats.Uptime, 0.0)
}

func TestClearCache(t *testing.T) {
	adapter := &fakeAdapter{name: "amazon", listings: []models.ProductListing{
		mkListing("amazon", "NZXT H7 Flow Case", 129.99),
	}}
	agg := newTestAggregator(t, adapter)

	_, err := agg.Search(context.Background(), "H7 Flow", SearchOptions{})
	require.NoError(t, err)

	assert.Equal(t, 1, agg.ClearCache(context.Background()))

	_, err = agg.Search(context.Background(), "H7 Flow", SearchOptions{})
	require.NoError(t, err)
	assert.Equal(t, int64(2), adapter.searchCalls.Load())
}
