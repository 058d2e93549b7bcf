package validate

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"

	"github.com/buildmart/price-scout/internal/models"
)

var whitespacePattern = regexp.MustCompile(`\s+`)

var knownCurrencies = map[string]struct{}{
	"USD": {}, "MXN": {}, "ARS": {}, "BRL": {}, "EUR": {}, "GBP": {},
	"CLP": {}, "COP": {}, "PEN": {}, "UYU": {}, "CAD": {},
}

// Result is one listing's validation outcome. Errors block acceptance;
// warnings are advisory.
type Result struct {
	Valid    bool     `json:"valid"`
	Errors   []string `json:"errors,omitempty"`
	Warnings []string `json:"warnings,omitempty"`
}

// BatchResult aggregates per-item results. CommonIssues lists any issue
// hitting at least 10% of the batch, an early-warning signal that a
// marketplace changed its markup.
type BatchResult struct {
	Total        int      `json:"total"`
	Valid        int      `json:"valid"`
	Invalid      int      `json:"invalid"`
	ErrorCount   int      `json:"error_count"`
	WarningCount int      `json:"warning_count"`
	Results      []Result `json:"results"`
	CommonIssues []string `json:"common_issues,omitempty"`
}

// DuplicatePair points at two listings judged to be the same article:
// matching normalized title and source domain. Disposition is the
// aggregator's call, so pairs are reported, never merged here.
type DuplicatePair struct {
	First  int    `json:"first"`
	Second int    `json:"second"`
	Title  string `json:"title"`
	Domain string `json:"domain"`
}

// Validator checks extracted listings against structural rules and
// cleans up the ones that pass.
type Validator struct {
	v *validator.Validate
}

func New() *Validator {
	return &Validator{v: validator.New()}
}

// Validate runs the two-tier check: structural errors that reject the
// listing, then advisory warnings.
func (dv *Validator) Validate(l *models.ProductListing) Result {
	var res Result

	if l == nil {
		res.Errors = append(res.Errors, "listing is nil")
		return res
	}

	if err := dv.v.Struct(l); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			for _, fe := range verrs {
				res.Errors = append(res.Errors, structuralMessage(fe))
			}
		} else {
			res.Errors = append(res.Errors, err.Error())
		}
	}

	title := strings.TrimSpace(l.Title)
	if l.Title != "" && title == "" {
		res.Errors = append(res.Errors, "title must not be blank")
	}

	if l.OriginalPrice != nil {
		if l.OriginalPrice.Value <= 0 {
			res.Errors = append(res.Errors, "original price must be positive")
		} else if l.OriginalPrice.Value < l.Price.Value {
			res.Errors = append(res.Errors, "original price is below current price")
		}
	}

	if title != "" {
		if len(title) < 3 {
			res.Warnings = append(res.Warnings, "title is very short")
		} else if len(title) > 250 {
			res.Warnings = append(res.Warnings, "title is unusually long")
		}
	}

	if l.Price.Value > 0 && (l.Price.Value < 1 || l.Price.Value > 100000) {
		res.Warnings = append(res.Warnings, "price outside plausible range")
	}

	if l.Price.Currency != "" {
		if _, ok := knownCurrencies[strings.ToUpper(l.Price.Currency)]; !ok {
			res.Warnings = append(res.Warnings, "unrecognized currency code")
		}
	}

	if l.Rating != nil && (*l.Rating < 0 || *l.Rating > 5) {
		res.Warnings = append(res.Warnings, "rating outside expected range")
	}

	if l.ReviewCount != nil && *l.ReviewCount < 0 {
		res.Warnings = append(res.Warnings, "negative review count")
	}

	res.Valid = len(res.Errors) == 0
	return res
}

// Sanitize cleans a listing in place after a successful validation:
// whitespace collapse, character filtering, range clamps, currency
// normalization, and image URL filtering.
func (dv *Validator) Sanitize(l *models.ProductListing) *models.ProductListing {
	if l == nil {
		return nil
	}

	l.Title = cleanText(l.Title)
	l.Description = cleanText(l.Description)

	if l.Rating != nil {
		r := *l.Rating
		if r < 0 {
			r = 0
		} else if r > 5 {
			r = 5
		}
		l.Rating = &r
	}

	if l.ReviewCount != nil && *l.ReviewCount < 0 {
		zero := 0
		l.ReviewCount = &zero
	}

	l.Price.Currency = strings.ToUpper(strings.TrimSpace(l.Price.Currency))
	if l.OriginalPrice != nil {
		l.OriginalPrice.Currency = strings.ToUpper(strings.TrimSpace(l.OriginalPrice.Currency))
	}

	if len(l.Images) > 0 {
		var images []string
		seen := make(map[string]struct{})
		for _, img := range l.Images {
			img = strings.TrimSpace(img)
			if !wellFormedURL(img) {
				continue
			}
			if _, dup := seen[img]; dup {
				continue
			}
			seen[img] = struct{}{}
			images = append(images, img)
		}
		l.Images = images
	}

	for k, v := range l.Attributes {
		l.Attributes[k] = cleanText(v)
	}

	return l
}

// ValidateBatch validates every listing and derives aggregate counts
// plus the common-issues list.
func (dv *Validator) ValidateBatch(listings []models.ProductListing) BatchResult {
	batch := BatchResult{
		Total:   len(listings),
		Results: make([]Result, 0, len(listings)),
	}

	issueCounts := make(map[string]int)
	issueOrder := []string{}

	for i := range listings {
		res := dv.Validate(&listings[i])
		batch.Results = append(batch.Results, res)

		if res.Valid {
			batch.Valid++
		} else {
			batch.Invalid++
		}
		batch.ErrorCount += len(res.Errors)
		batch.WarningCount += len(res.Warnings)

		for _, issue := range append(append([]string{}, res.Errors...), res.Warnings...) {
			if issueCounts[issue] == 0 {
				issueOrder = append(issueOrder, issue)
			}
			issueCounts[issue]++
		}
	}

	for _, issue := range issueOrder {
		if float64(issueCounts[issue]) >= 0.1*float64(batch.Total) {
			batch.CommonIssues = append(batch.CommonIssues, issue)
		}
	}

	return batch
}

// FindDuplicates reports listing pairs whose normalized title and
// source domain match. Symmetric in input order.
func FindDuplicates(listings []models.ProductListing) []DuplicatePair {
	type dupKey struct {
		title  string
		domain string
	}

	firstSeen := make(map[dupKey]int)
	var pairs []DuplicatePair

	for i := range listings {
		key := dupKey{
			title:  normalizeTitle(listings[i].Title),
			domain: sourceDomain(&listings[i]),
		}
		if key.title == "" {
			continue
		}

		if j, ok := firstSeen[key]; ok {
			pairs = append(pairs, DuplicatePair{
				First:  j,
				Second: i,
				Title:  key.title,
				Domain: key.domain,
			})
			continue
		}
		firstSeen[key] = i
	}

	return pairs
}

func normalizeTitle(title string) string {
	return whitespacePattern.ReplaceAllString(strings.ToLower(strings.TrimSpace(title)), " ")
}

func sourceDomain(l *models.ProductListing) string {
	if u, err := url.Parse(l.URL); err == nil && u.Host != "" {
		return u.Host
	}
	return l.Source
}

func cleanText(text string) string {
	text = whitespacePattern.ReplaceAllString(text, " ")
	text = strings.Map(func(r rune) rune {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r), r == ' ':
			return r
		case strings.ContainsRune(`.,;:!?()[]/"'%+&#°-_$€£`, r):
			return r
		default:
			return -1
		}
	}, text)
	return strings.TrimSpace(text)
}

func wellFormedURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

func structuralMessage(fe validator.FieldError) string {
	switch fe.StructNamespace() {
	case "ProductListing.Title":
		return "title is required"
	case "ProductListing.URL":
		if fe.Tag() == "url" {
			return "url is not a well-formed absolute URL"
		}
		return "url is required"
	case "ProductListing.Source":
		return "source is required"
	case "ProductListing.Price.Value":
		return "price must be a positive number"
	case "ProductListing.Price.Currency":
		return "price currency is required"
	case "ProductListing.OriginalPrice.Value":
		return "original price must be a positive number"
	case "ProductListing.OriginalPrice.Currency":
		return "original price currency is required"
	default:
		return fmt.Sprintf("%s failed %s validation", fe.StructNamespace(), fe.Tag())
	}
}
