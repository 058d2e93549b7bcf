package scrape

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Selectors is one source's CSS selector table. Marketplaces change
// their markup without notice, so these are configuration, not
// constants: a YAML file can override any subset per source.
type Selectors struct {
	ResultLink    string `yaml:"result_link"`
	Title         string `yaml:"title"`
	Price         string `yaml:"price"`
	PriceFraction string `yaml:"price_fraction"`
	OriginalPrice string `yaml:"original_price"`
	Rating        string `yaml:"rating"`
	ReviewCount   string `yaml:"review_count"`
	Availability  string `yaml:"availability"`
	Image         string `yaml:"image"`
	Description   string `yaml:"description"`
	AttrRow       string `yaml:"attr_row"`
	AttrKey       string `yaml:"attr_key"`
	AttrValue     string `yaml:"attr_value"`
}

// Overrides maps source name to a partial selector table.
type Overrides map[string]Selectors

// LoadOverrides reads a YAML file of per-source selector overrides.
func LoadOverrides(path string) (Overrides, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read selectors file: %w", err)
	}

	var o Overrides
	if err := yaml.Unmarshal(data, &o); err != nil {
		return nil, fmt.Errorf("failed to parse selectors file: %w", err)
	}
	return o, nil
}

// Apply merges non-empty override fields for the named source into s.
func (o Overrides) Apply(source string, s *Selectors) {
	ov, ok := o[source]
	if !ok {
		return
	}

	merge := func(dst *string, src string) {
		if src != "" {
			*dst = src
		}
	}

	merge(&s.ResultLink, ov.ResultLink)
	merge(&s.Title, ov.Title)
	merge(&s.Price, ov.Price)
	merge(&s.PriceFraction, ov.PriceFraction)
	merge(&s.OriginalPrice, ov.OriginalPrice)
	merge(&s.Rating, ov.Rating)
	merge(&s.ReviewCount, ov.ReviewCount)
	merge(&s.Availability, ov.Availability)
	merge(&s.Image, ov.Image)
	merge(&s.Description, ov.Description)
	merge(&s.AttrRow, ov.AttrRow)
	merge(&s.AttrKey, ov.AttrKey)
	merge(&s.AttrValue, ov.AttrValue)
}
