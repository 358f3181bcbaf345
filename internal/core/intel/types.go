package intel

import (
	"net/url"
	"strings"
	"time"

	"prodintel/internal/core/batch"
)

// Product is one cleaned offering attributed to a provider. It reads the
// well-known competitor product fields; records extracted under a custom
// schema simply come out sparse.
type Product struct {
	Competitor      string    `json:"competitor"`
	Domain          string    `json:"domain"`
	Name            string    `json:"product_name"`
	Category        string    `json:"category,omitempty"`
	PriceMonthly    string    `json:"price_monthly,omitempty"`
	PriceAnnual     string    `json:"price_annual,omitempty"`
	Excess          string    `json:"excess,omitempty"`
	Features        []string  `json:"features,omitempty"`
	SpecialOffers   []string  `json:"special_offers,omitempty"`
	TermsConditions string    `json:"terms_conditions,omitempty"`
	SourceURLs      []string  `json:"source_urls"`
	ExtractedAt     time.Time `json:"extracted_at"`
}

const defaultCategory = "General"

// Clean flattens a batch result into presentable products. Rows without a
// product name are dropped and a missing category defaults to "General".
func Clean(result batch.BatchResult) []Product {
	var out []Product
	for _, p := range FromOutcomes(result) {
		if strings.TrimSpace(p.Name) == "" {
			continue
		}
		if strings.TrimSpace(p.Category) == "" {
			p.Category = defaultCategory
		}
		out = append(out, p)
	}
	return out
}

// FromOutcomes flattens successful outcomes into products, attributing each to
// the entry's label or, when no label was given, the URL's host.
func FromOutcomes(result batch.BatchResult) []Product {
	var products []Product
	for _, o := range result {
		if !o.OK() {
			continue
		}
		for _, rec := range o.Records {
			products = append(products, fromRecord(rec, o.Entry.Label))
		}
	}
	return products
}

func fromRecord(rec batch.ExtractedRecord, label string) Product {
	domain := domainOf(rec.SourceURL)
	competitor := strings.TrimSpace(label)
	if competitor == "" {
		competitor = domain
	}
	var sources []string
	if rec.SourceURL != "" {
		sources = []string{rec.SourceURL}
	}
	return Product{
		Competitor:      competitor,
		Domain:          domain,
		Name:            rec.String("product_name"),
		Category:        rec.String("category"),
		PriceMonthly:    rec.String("price_monthly"),
		PriceAnnual:     rec.String("price_annual"),
		Excess:          rec.String("excess"),
		Features:        rec.Strings("features"),
		SpecialOffers:   rec.Strings("special_offers"),
		TermsConditions: rec.String("terms_conditions"),
		SourceURLs:      sources,
		ExtractedAt:     rec.ExtractedAt,
	}
}

func domainOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Host)
}
