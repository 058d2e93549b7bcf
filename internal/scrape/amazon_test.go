package scrape

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/buildmart/price-scout/internal/models"
)

const amazonProductHTML = `<!DOCTYPE html>
<html>
<body>
	<span id="productTitle"> NVIDIA GeForce RTX 4070 Graphics Card 12GB GDDR6X </span>
	<div class="a-section">
		<span class="a-price"><span class="a-offscreen">$599.99</span></span>
		<span class="a-price a-text-price" data-a-strike="true"><span class="a-offscreen">$649.99</span></span>
	</div>
	<span id="acrPopover"><span class="a-icon-alt">4.7 out of 5 stars</span></span>
	<span id="acrCustomerReviewText">1,234 ratings</span>
	<div id="availability"><span>In Stock</span></div>
	<div id="imgTagWrapperId"><img id="landingImage" src="https://m.media-amazon.com/images/I/rtx4070.jpg"/></div>
	<div id="feature-bullets">
		<ul>
			<li><span class="a-list-item">12GB GDDR6X memory</span></li>
			<li><span class="a-list-item">DLSS 3 support</span></li>
		</ul>
	</div>
	<table id="productDetails_techSpec_section_1">
		<tr><th>Brand</th><td>NVIDIA</td></tr>
		<tr><th>Memory Size</th><td>12 GB</td></tr>
	</table>
</body>
</html>`

const amazonSearchHTML = `<!DOCTYPE html>
<html>
<body>
	<div data-component-type="s-search-result" data-asin="B0A1">
		<h2><a href="/dp/B0A1/rtx-4070">RTX 4070 Card A</a></h2>
	</div>
	<div data-component-type="s-search-result" data-asin="B0A2">
		<h2><a href="https://www.amazon.com/dp/B0A2">RTX 4070 Card B</a></h2>
	</div>
	<div data-component-type="s-search-result" data-asin="B0A3">
		<h2><a href="/gp/slredirect/picassoRedirect.html/ref=sspa">Sponsored thing</a></h2>
	</div>
	<div data-component-type="s-search-result" data-asin="B0A1">
		<h2><a href="/dp/B0A1/rtx-4070">RTX 4070 Card A duplicate</a></h2>
	</div>
</body>
</html>`

func TestAmazonBuildSearchURL(t *testing.T) {
	a := NewAmazon(AdapterConfig{})

	url := a.BuildSearchURL("RTX 4070")
	assert.Equal(t, "https://www.amazon.com/s?k=RTX+4070", url)
}

func TestAmazonExtractProductLinks(t *testing.T) {
	a := NewAmazon(AdapterConfig{})

	links := a.ExtractProductLinks(amazonSearchHTML)

	require.Len(t, links, 2, "sponsored redirects and duplicates must be dropped")
	assert.Equal(t, "https://www.amazon.com/dp/B0A1/rtx-4070", links[0])
	assert.Equal(t, "https://www.amazon.com/dp/B0A2", links[1])
}

func TestAmazonExtractListing(t *testing.T) {
	a := NewAmazon(AdapterConfig{})

	l := a.ExtractListing(amazonProductHTML, "https://www.amazon.com/dp/B0A1")
	require.NotNil(t, l)

	assert.Equal(t, "NVIDIA GeForce RTX 4070 Graphics Card 12GB GDDR6X", l.Title)
	assert.Equal(t, "amazon", l.Source)
	assert.InDelta(t, 599.99, l.Price.Value, 0.001)
	assert.Equal(t, "USD", l.Price.Currency)

	require.NotNil(t, l.OriginalPrice)
	assert.InDelta(t, 649.99, l.OriginalPrice.Value, 0.001)

	require.NotNil(t, l.Rating)
	assert.InDelta(t, 4.7, *l.Rating, 0.001)

	require.NotNil(t, l.ReviewCount)
	assert.Equal(t, 1234, *l.ReviewCount)

	assert.Equal(t, models.InStock, l.Availability)
	assert.Equal(t, []string{"https://m.media-amazon.com/images/I/rtx4070.jpg"}, l.Images)
	assert.Contains(t, l.Description, "12GB GDDR6X memory")
	assert.Equal(t, "NVIDIA", l.Attributes["brand"])
	assert.Equal(t, "graphics", l.Category)
	assert.False(t, l.ScrapedAt.IsZero())
}

func TestAmazonExtractListingNoTitle(t *testing.T) {
	a := NewAmazon(AdapterConfig{})

	l := a.ExtractListing("<html><body><p>captcha page</p></body></html>", "https://www.amazon.com/dp/B0A1")
	assert.Nil(t, l, "unmatched markup must yield no listing, not an error")
}

func TestAmazonAvailability(t *testing.T) {
	tests := []struct {
		text     string
		expected models.Availability
	}{
		{"In Stock", models.InStock},
		{"Only 3 left in stock - order soon.", models.LimitedStock},
		{"Currently unavailable.", models.OutOfStock},
		{"Temporarily out of stock.", models.OutOfStock},
		{"", models.UnknownStock},
		{"Ships within 2 weeks", models.UnknownStock},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			assert.Equal(t, tt.expected, amazonAvailability(tt.text))
		})
	}
}

func TestAmazonIsRelevant(t *testing.T) {
	a := NewAmazon(AdapterConfig{})

	gpu := &models.ProductListing{Title: "MSI GeForce RTX 4070 Ventus"}
	assert.True(t, a.IsRelevant(gpu, "graphics"))
	assert.True(t, a.IsRelevant(gpu, ""))

	offTopic := &models.ProductListing{Title: "Stainless Steel Kitchen Knife Set"}
	assert.False(t, a.IsRelevant(offTopic, "graphics"))
	assert.False(t, a.IsRelevant(offTopic, ""))
}

func TestAmazonSelectorOverrides(t *testing.T) {
	overrides := Overrides{
		"amazon": {Title: "#newTitleNode"},
	}
	a := NewAmazon(AdapterConfig{Overrides: overrides})

	assert.Equal(t, "#newTitleNode", a.sel.Title)
	// untouched fields keep their defaults
	assert.Equal(t, defaultAmazonSelectors().Price, a.sel.Price)
}
