package scrape

import (
	"context"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/buildmart/price-scout/internal/fetch"
	"github.com/buildmart/price-scout/internal/models"
	"github.com/buildmart/price-scout/internal/ratelimit"
)

// AdapterConfig carries the knobs shared by all adapter constructors.
// Each adapter builds its own fetcher and rate limiter from it, so
// throttling stays per-source.
type AdapterConfig struct {
	Timeout   time.Duration
	Delay     time.Duration
	Renderer  fetch.Renderer
	Proxy     string
	Overrides Overrides
}

func (c AdapterConfig) newFetcher(acceptLang string) (*fetch.Fetcher, *ratelimit.AdaptiveLimiter) {
	delay := c.Delay
	if delay <= 0 {
		delay = 2 * time.Second
	}
	limiter := ratelimit.NewAdaptiveLimiter(delay, delay*2)
	f := fetch.New(fetch.Options{
		Timeout:     c.Timeout,
		AcceptLang:  acceptLang,
		Renderer:    c.Renderer,
		Limiter:     limiter,
		ProxyServer: c.Proxy,
	})
	return f, limiter
}

const amazonBaseURL = "https://www.amazon.com"

func defaultAmazonSelectors() Selectors {
	return Selectors{
		ResultLink:    "div[data-component-type='s-search-result'] h2 a",
		Title:         "#productTitle",
		Price:         ".a-price .a-offscreen",
		OriginalPrice: "span.a-price.a-text-price[data-a-strike='true'] .a-offscreen, .basisPrice .a-offscreen",
		Rating:        "#acrPopover span.a-icon-alt",
		ReviewCount:   "#acrCustomerReviewText",
		Availability:  "#availability span",
		Image:         "#landingImage, #imgTagWrapperId img",
		Description:   "#feature-bullets li span.a-list-item",
		AttrRow:       "#productDetails_techSpec_section_1 tr, #productDetails_detailBullets_sections1 tr",
		AttrKey:       "th",
		AttrValue:     "td",
	}
}

// Amazon scrapes amazon.com. Listings there are populated client-side
// behind bot checks, so it fetches in rendered mode.
type Amazon struct {
	base
	sel Selectors
}

func NewAmazon(cfg AdapterConfig) *Amazon {
	f, limiter := cfg.newFetcher("en-US,en;q=0.9")

	sel := defaultAmazonSelectors()
	if cfg.Overrides != nil {
		cfg.Overrides.Apply("amazon", &sel)
	}

	return &Amazon{
		base: newBase("amazon", f, limiter, fetch.ModeRendered, 20),
		sel:  sel,
	}
}

func (a *Amazon) BuildSearchURL(term string) string {
	return amazonBaseURL + "/s?k=" + url.QueryEscape(term)
}

func (a *Amazon) ExtractProductLinks(html string) []string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil
	}

	seen := make(map[string]struct{})
	var links []string

	doc.Find(a.sel.ResultLink).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		href, ok := s.Attr("href")
		if !ok || href == "" {
			return true
		}
		if strings.HasPrefix(href, "/") {
			href = amazonBaseURL + href
		}
		// Sponsored placements redirect through /gp/slredirect.
		if strings.Contains(href, "/slredirect/") {
			return true
		}
		if _, dup := seen[href]; dup {
			return true
		}
		seen[href] = struct{}{}
		links = append(links, href)
		return len(links) < a.maxLinks
	})

	return links
}

func (a *Amazon) ExtractListing(html, pageURL string) *models.ProductListing {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil
	}

	title := strings.TrimSpace(doc.Find(a.sel.Title).First().Text())
	if title == "" {
		return nil
	}

	l := models.NewListing(a.name, pageURL)
	l.Title = title

	priceText := strings.TrimSpace(doc.Find(a.sel.Price).First().Text())
	if val, err := ParsePrice(priceText, DotDecimal); err == nil {
		l.Price = models.Money{
			Value:    val,
			Currency: CurrencyFromText(priceText, "USD"),
			Display:  priceText,
		}
	}

	origText := strings.TrimSpace(doc.Find(a.sel.OriginalPrice).First().Text())
	if val, err := ParsePrice(origText, DotDecimal); err == nil && val >= l.Price.Value {
		l.OriginalPrice = &models.Money{
			Value:    val,
			Currency: CurrencyFromText(origText, "USD"),
			Display:  origText,
		}
	}

	// "4.5 out of 5 stars"
	ratingText := doc.Find(a.sel.Rating).First().Text()
	if fields := strings.Fields(ratingText); len(fields) > 0 {
		if val, err := strconv.ParseFloat(fields[0], 64); err == nil {
			l.Rating = &val
		}
	}

	// "1,234 ratings"
	reviewText := doc.Find(a.sel.ReviewCount).First().Text()
	if fields := strings.Fields(reviewText); len(fields) > 0 {
		digits := strings.ReplaceAll(fields[0], ",", "")
		if n, err := strconv.Atoi(digits); err == nil {
			l.ReviewCount = &n
		}
	}

	l.Availability = amazonAvailability(doc.Find(a.sel.Availability).First().Text())

	if src, ok := doc.Find(a.sel.Image).First().Attr("src"); ok && src != "" {
		l.Images = []string{src}
	}

	var bullets []string
	doc.Find(a.sel.Description).Each(func(_ int, s *goquery.Selection) {
		if text := strings.TrimSpace(s.Text()); text != "" {
			bullets = append(bullets, text)
		}
	})
	l.Description = strings.Join(bullets, " ")

	attrs := make(map[string]string)
	doc.Find(a.sel.AttrRow).Each(func(_ int, row *goquery.Selection) {
		key := normalizeAttrKey(row.Find(a.sel.AttrKey).First().Text())
		val := strings.TrimSpace(row.Find(a.sel.AttrValue).First().Text())
		if key != "" && val != "" {
			attrs[key] = val
		}
	})
	if len(attrs) > 0 {
		l.Attributes = attrs
	}

	l.Category = models.InferCategory(l.Title, "unknown")

	return l
}

func (a *Amazon) SearchProducts(ctx context.Context, term string, maxResults int) ([]models.ProductListing, error) {
	return searchProducts(ctx, a, &a.base, term, maxResults)
}

func (a *Amazon) Product(ctx context.Context, url string) (*models.ProductListing, error) {
	return product(ctx, a, &a.base, url)
}

func (a *Amazon) IsRelevant(l *models.ProductListing, category string) bool {
	return a.isRelevant(l, category)
}

func amazonAvailability(text string) models.Availability {
	lower := strings.ToLower(strings.TrimSpace(text))
	switch {
	case lower == "":
		return models.UnknownStock
	case strings.Contains(lower, "only") && strings.Contains(lower, "left"):
		return models.LimitedStock
	case strings.Contains(lower, "out of stock"), strings.Contains(lower, "unavailable"):
		return models.OutOfStock
	case strings.Contains(lower, "in stock"):
		return models.InStock
	default:
		return models.UnknownStock
	}
}

func normalizeAttrKey(key string) string {
	key = strings.ToLower(strings.TrimSpace(key))
	key = strings.ReplaceAll(key, " ", "_")
	return strings.Trim(key, ":_")
}
