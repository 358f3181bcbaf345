package intel

import (
	"sort"
	"strings"
)

const maxTopFeatures = 10

// PriceStats summarizes the numeric amounts found across one price field.
type PriceStats struct {
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
	Avg   float64 `json:"avg"`
	Count int     `json:"count"`
}

// PriceRange carries monthly and annual stats side by side.
type PriceRange struct {
	Monthly PriceStats `json:"monthly"`
	Annual  PriceStats `json:"annual"`
}

// FeatureCount is a feature string with how many products list it.
type FeatureCount struct {
	Feature string `json:"feature"`
	Count   int    `json:"count"`
}

// Provider is one competitor's aggregated profile: its products plus the
// derived signals the analysis prompts consume.
type Provider struct {
	Name        string         `json:"name"`
	Domain      string         `json:"domain"`
	URLs        []string       `json:"urls"`
	Products    []Product      `json:"products"`
	Categories  []string       `json:"categories"`
	Prices      PriceRange     `json:"price_range"`
	TopFeatures []FeatureCount `json:"top_features"`
	IsBaseline  bool           `json:"is_baseline"`
}

// GroupProviders buckets products by provider and computes each provider's
// profile. The provider whose name or domain matches baseline is flagged and
// sorted first; the rest follow alphabetically.
func GroupProviders(products []Product, baseline string) []Provider {
	byName := make(map[string]*Provider)
	var order []string

	for _, p := range products {
		name := p.Competitor
		if name == "" {
			name = p.Domain
		}
		if name == "" {
			name = "Unknown"
		}

		prov, ok := byName[name]
		if !ok {
			prov = &Provider{Name: name, Domain: p.Domain}
			byName[name] = prov
			order = append(order, name)
		}
		if prov.Domain == "" {
			prov.Domain = p.Domain
		}
		prov.Products = append(prov.Products, p)
		for _, u := range p.SourceURLs {
			if u != "" && !contains(prov.URLs, u) {
				prov.URLs = append(prov.URLs, u)
			}
		}
	}

	out := make([]Provider, 0, len(order))
	for _, name := range order {
		prov := byName[name]
		prov.Categories = categoriesOf(prov.Products)
		prov.Prices = PriceRangeOf(prov.Products)
		prov.TopFeatures = topFeaturesOf(prov.Products)
		prov.IsBaseline = matchesBaseline(prov.Name, prov.Domain, baseline)
		out = append(out, *prov)
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].IsBaseline != out[j].IsBaseline {
			return out[i].IsBaseline
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// Baseline returns the provider flagged as the baseline, if any.
func Baseline(providers []Provider) (Provider, bool) {
	for _, p := range providers {
		if p.IsBaseline {
			return p, true
		}
	}
	return Provider{}, false
}

func matchesBaseline(name, domain, baseline string) bool {
	b := squash(baseline)
	if b == "" {
		return false
	}
	return strings.Contains(squash(name), b) || strings.Contains(squash(domain), b)
}

// squash lowercases and drops non-alphanumerics so "British Gas" matches
// "britishgas.co.uk".
func squash(s string) string {
	var sb strings.Builder
	for _, r := range strings.ToLower(s) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			sb.WriteRune(r)
		}
	}
	return sb.String()
}

func categoriesOf(products []Product) []string {
	var cats []string
	for _, p := range products {
		c := strings.TrimSpace(p.Category)
		if c != "" && !contains(cats, c) {
			cats = append(cats, c)
		}
	}
	sort.Strings(cats)
	return cats
}

// PriceRangeOf parses the numeric amounts out of the free-text price fields
// and summarizes them per field.
func PriceRangeOf(products []Product) PriceRange {
	var monthly, annual []float64
	for _, p := range products {
		if v, ok := NumericPrice(p.PriceMonthly); ok {
			monthly = append(monthly, v)
		}
		if v, ok := NumericPrice(p.PriceAnnual); ok {
			annual = append(annual, v)
		}
	}
	return PriceRange{Monthly: statsOf(monthly), Annual: statsOf(annual)}
}

func statsOf(values []float64) PriceStats {
	if len(values) == 0 {
		return PriceStats{}
	}
	s := PriceStats{Min: values[0], Max: values[0], Count: len(values)}
	var sum float64
	for _, v := range values {
		if v < s.Min {
			s.Min = v
		}
		if v > s.Max {
			s.Max = v
		}
		sum += v
	}
	s.Avg = sum / float64(len(values))
	return s
}

func topFeaturesOf(products []Product) []FeatureCount {
	counts := make(map[string]int)
	var order []string
	for _, p := range products {
		for _, f := range p.Features {
			f = strings.TrimSpace(f)
			if f == "" {
				continue
			}
			key := strings.ToLower(f)
			if counts[key] == 0 {
				order = append(order, f)
			}
			counts[key]++
		}
	}

	out := make([]FeatureCount, 0, len(order))
	for _, f := range order {
		out = append(out, FeatureCount{Feature: f, Count: counts[strings.ToLower(f)]})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Feature < out[j].Feature
	})
	if len(out) > maxTopFeatures {
		out = out[:maxTopFeatures]
	}
	return out
}
