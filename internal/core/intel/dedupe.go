package intel

import (
	"regexp"
	"strconv"
	"strings"
)

// DedupeStats reports what merging removed, for job status payloads.
type DedupeStats struct {
	InputCount        int `json:"input_count"`
	OutputCount       int `json:"output_count"`
	DuplicatesRemoved int `json:"duplicates_removed"`
}

var (
	spaceRe    = regexp.MustCompile(`\s+`)
	currencyRe = regexp.MustCompile(`[£$€]`)
	numberRe   = regexp.MustCompile(`[\d]+(?:\.[\d]+)?`)
)

// Dedupe removes duplicates that come from the same provider but different
// pages, keyed by provider, normalized name and normalized prices. Duplicates
// merge their source URLs and opportunistically fill blanks in the survivor.
func Dedupe(products []Product) ([]Product, DedupeStats) {
	if len(products) == 0 {
		return nil, DedupeStats{}
	}

	type key struct {
		provider, name, monthly, annual, excess string
	}

	seen := make(map[key]int, len(products))
	var out []Product

	for _, p := range products {
		k := key{
			provider: strings.ToLower(p.Competitor),
			name:     normalizeText(p.Name),
			monthly:  NormalizeMoney(p.PriceMonthly),
			annual:   NormalizeMoney(p.PriceAnnual),
			excess:   NormalizeMoney(p.Excess),
		}

		idx, dup := seen[k]
		if !dup {
			seen[k] = len(out)
			out = append(out, p)
			continue
		}

		existing := &out[idx]
		for _, src := range p.SourceURLs {
			if src != "" && !contains(existing.SourceURLs, src) {
				existing.SourceURLs = append(existing.SourceURLs, src)
			}
		}
		// Fill blanks from later duplicates
		if existing.Category == "" {
			existing.Category = p.Category
		}
		if existing.TermsConditions == "" {
			existing.TermsConditions = p.TermsConditions
		}
		if len(existing.SpecialOffers) == 0 {
			existing.SpecialOffers = p.SpecialOffers
		}
		if len(existing.Features) == 0 {
			existing.Features = p.Features
		}
	}

	stats := DedupeStats{
		InputCount:        len(products),
		OutputCount:       len(out),
		DuplicatesRemoved: len(products) - len(out),
	}
	return out, stats
}

// NormalizeMoney reduces a price string to currency plus amount so " £15.50 a
// month" and "£15.50/mo" compare equal. Strings without a clear amount pass
// through unchanged.
func NormalizeMoney(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	currency := currencyRe.FindString(s)
	num := numberRe.FindString(strings.ReplaceAll(s, ",", ""))
	if currency != "" && num != "" {
		return currency + num
	}
	return s
}

// NumericPrice extracts the first numeric amount from a price string.
func NumericPrice(s string) (float64, bool) {
	num := numberRe.FindString(strings.ReplaceAll(s, ",", ""))
	if num == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

func normalizeText(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return spaceRe.ReplaceAllString(s, " ")
}

func contains(list []string, v string) bool {
	for _, el := range list {
		if el == v {
			return true
		}
	}
	return false
}
