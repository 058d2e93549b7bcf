package aggregate

import (
	"sort"
	"strings"

	"github.com/buildmart/price-scout/internal/models"
)

// relevanceScore counts how many query terms appear in the title.
func relevanceScore(query, title string) int {
	lowerTitle := strings.ToLower(title)
	score := 0
	for _, term := range strings.Fields(strings.ToLower(query)) {
		if strings.Contains(lowerTitle, term) {
			score++
		}
	}
	return score
}

// rankListings orders by descending relevance, then ascending price.
// Listings with no parsed price sort last within their relevance tier.
func rankListings(query string, listings []models.ProductListing) {
	type ranked struct {
		listing models.ProductListing
		score   int
	}

	rs := make([]ranked, len(listings))
	for i := range listings {
		rs[i] = ranked{listing: listings[i], score: relevanceScore(query, listings[i].Title)}
	}

	sort.SliceStable(rs, func(i, j int) bool {
		if rs[i].score != rs[j].score {
			return rs[i].score > rs[j].score
		}

		pi, pj := rs[i].listing.HasPrice(), rs[j].listing.HasPrice()
		switch {
		case pi && pj:
			return rs[i].listing.Price.Value < rs[j].listing.Price.Value
		case pi:
			return true
		default:
			return false
		}
	})

	for i := range rs {
		listings[i] = rs[i].listing
	}
}

// bestPrice returns the cheapest listing with a usable price, or nil
// when nothing is priced.
func bestPrice(listings []models.ProductListing) *models.ProductListing {
	var best *models.ProductListing
	for i := range listings {
		if !listings[i].HasPrice() {
			continue
		}
		if best == nil || listings[i].Price.Value < best.Price.Value {
			best = &listings[i]
		}
	}
	return best
}
