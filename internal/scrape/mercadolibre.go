package scrape

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/buildmart/price-scout/internal/fetch"
	"github.com/buildmart/price-scout/internal/models"
)

// MercadoLibreCountry parameterizes the MercadoLibre adapter per
// national site: domain, currency, and number formatting all differ.
type MercadoLibreCountry struct {
	Code       string
	TLD        string
	Currency   string
	Locale     PriceLocale
	AcceptLang string
}

var (
	MercadoLibreMX = MercadoLibreCountry{
		Code:       "mx",
		TLD:        "com.mx",
		Currency:   "MXN",
		Locale:     DotDecimal,
		AcceptLang: "es-MX,es;q=0.9",
	}
	MercadoLibreAR = MercadoLibreCountry{
		Code:       "ar",
		TLD:        "com.ar",
		Currency:   "ARS",
		Locale:     CommaDecimal,
		AcceptLang: "es-AR,es;q=0.9",
	}
)

func defaultMercadoLibreSelectors() Selectors {
	return Selectors{
		ResultLink:    "li.ui-search-layout__item a.ui-search-link, a.poly-component__title",
		Title:         "h1.ui-pdp-title",
		Price:         ".ui-pdp-price__second-line .andes-money-amount__fraction",
		PriceFraction: ".ui-pdp-price__second-line .andes-money-amount__cents",
		OriginalPrice: "s.andes-money-amount--previous .andes-money-amount__fraction",
		Rating:        ".ui-pdp-review__rating",
		ReviewCount:   ".ui-pdp-review__amount",
		Availability:  ".ui-pdp-stock-information__title, .ui-pdp-buybox__quantity__available",
		Image:         "figure.ui-pdp-gallery__figure img",
		Description:   ".ui-pdp-description__content",
		AttrRow:       ".andes-table__row",
		AttrKey:       "th",
		AttrValue:     "td",
	}
}

// MercadoLibre scrapes one national MercadoLibre site. Product pages
// are server-rendered, so it fetches in plain HTTP mode.
type MercadoLibre struct {
	base
	country MercadoLibreCountry
	sel     Selectors
}

func NewMercadoLibre(country MercadoLibreCountry, cfg AdapterConfig) *MercadoLibre {
	f, limiter := cfg.newFetcher(country.AcceptLang)

	name := "mercadolibre_" + country.Code
	sel := defaultMercadoLibreSelectors()
	if cfg.Overrides != nil {
		cfg.Overrides.Apply(name, &sel)
	}

	return &MercadoLibre{
		base:    newBase(name, f, limiter, fetch.ModeHTTP, 25),
		country: country,
		sel:     sel,
	}
}

func (m *MercadoLibre) BuildSearchURL(term string) string {
	slug := strings.ReplaceAll(strings.TrimSpace(term), " ", "-")
	return fmt.Sprintf("https://listado.mercadolibre.%s/%s", m.country.TLD, slug)
}

func (m *MercadoLibre) ExtractProductLinks(html string) []string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil
	}

	seen := make(map[string]struct{})
	var links []string

	doc.Find(m.sel.ResultLink).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		href, ok := s.Attr("href")
		if !ok || !strings.HasPrefix(href, "http") {
			return true
		}
		// Tracking params make the same article look like distinct URLs.
		if i := strings.Index(href, "#"); i > 0 {
			href = href[:i]
		}
		if _, dup := seen[href]; dup {
			return true
		}
		seen[href] = struct{}{}
		links = append(links, href)
		return len(links) < m.maxLinks
	})

	return links
}

func (m *MercadoLibre) ExtractListing(html, pageURL string) *models.ProductListing {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil
	}

	title := strings.TrimSpace(doc.Find(m.sel.Title).First().Text())
	if title == "" {
		return nil
	}

	l := models.NewListing(m.name, pageURL)
	l.Title = title

	if val, display, ok := m.parseSplitPrice(doc, m.sel.Price, m.sel.PriceFraction); ok {
		l.Price = models.Money{
			Value:    val,
			Currency: m.country.Currency,
			Display:  display,
		}
	}

	origText := strings.TrimSpace(doc.Find(m.sel.OriginalPrice).First().Text())
	if val, err := ParsePrice(origText, m.country.Locale); err == nil && val >= l.Price.Value {
		l.OriginalPrice = &models.Money{
			Value:    val,
			Currency: m.country.Currency,
			Display:  origText,
		}
	}

	ratingText := strings.TrimSpace(doc.Find(m.sel.Rating).First().Text())
	if val, err := strconv.ParseFloat(strings.ReplaceAll(ratingText, ",", "."), 64); err == nil {
		l.Rating = &val
	}

	// "(123)"
	reviewText := strings.Trim(strings.TrimSpace(doc.Find(m.sel.ReviewCount).First().Text()), "()")
	if n, err := strconv.Atoi(reviewText); err == nil {
		l.ReviewCount = &n
	}

	l.Availability = meliAvailability(doc.Find(m.sel.Availability).First().Text())

	if src, ok := doc.Find(m.sel.Image).First().Attr("src"); ok && src != "" {
		l.Images = []string{src}
	}

	l.Description = strings.TrimSpace(doc.Find(m.sel.Description).First().Text())

	attrs := make(map[string]string)
	doc.Find(m.sel.AttrRow).Each(func(_ int, row *goquery.Selection) {
		key := normalizeAttrKey(row.Find(m.sel.AttrKey).First().Text())
		val := strings.TrimSpace(row.Find(m.sel.AttrValue).First().Text())
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

// parseSplitPrice handles MercadoLibre's fraction/cents markup, where
// the integer part and the cents live in separate elements.
func (m *MercadoLibre) parseSplitPrice(doc *goquery.Document, fractionSel, centsSel string) (float64, string, bool) {
	fraction := strings.TrimSpace(doc.Find(fractionSel).First().Text())
	if fraction == "" {
		return 0, "", false
	}

	val, err := ParsePrice(fraction, m.country.Locale)
	if err != nil {
		return 0, "", false
	}

	display := fraction
	cents := strings.TrimSpace(doc.Find(centsSel).First().Text())
	if cents != "" {
		if c, err := strconv.Atoi(cents); err == nil {
			val += float64(c) / 100
			display = fraction + "." + cents
		}
	}

	return val, display, true
}

func (m *MercadoLibre) SearchProducts(ctx context.Context, term string, maxResults int) ([]models.ProductListing, error) {
	return searchProducts(ctx, m, &m.base, term, maxResults)
}

func (m *MercadoLibre) Product(ctx context.Context, url string) (*models.ProductListing, error) {
	return product(ctx, m, &m.base, url)
}

func (m *MercadoLibre) IsRelevant(l *models.ProductListing, category string) bool {
	return m.isRelevant(l, category)
}

func meliAvailability(text string) models.Availability {
	lower := strings.ToLower(strings.TrimSpace(text))
	switch {
	case lower == "":
		return models.UnknownStock
	case strings.Contains(lower, "última") || strings.Contains(lower, "ultimas") || strings.Contains(lower, "últimas"):
		return models.LimitedStock
	case strings.Contains(lower, "sin stock") || strings.Contains(lower, "agotado"):
		return models.OutOfStock
	case strings.Contains(lower, "stock disponible") || strings.Contains(lower, "disponible"):
		return models.InStock
	default:
		return models.UnknownStock
	}
}
