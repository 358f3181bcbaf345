package intel

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"prodintel/internal/core/batch"
)

func record(url string, fields map[string]any) batch.ExtractedRecord {
	return batch.ExtractedRecord{
		Fields:      fields,
		SourceURL:   url,
		ExtractedAt: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestFromOutcomesFlattensSuccesses(t *testing.T) {
	result := batch.BatchResult{
		{
			Index: 0,
			Entry: batch.UrlEntry{Raw: "https://www.britishgas.co.uk/home-cover", Label: "British Gas"},
			Records: []batch.ExtractedRecord{
				record("https://www.britishgas.co.uk/home-cover", map[string]any{
					"product_name":  "HomeCare Two",
					"price_monthly": "£15.50",
					"features":      []string{"Annual boiler service", "Central heating cover"},
				}),
			},
		},
		{
			Index: 1,
			Entry: batch.UrlEntry{Raw: "https://bad.example.com"},
			Err:   &batch.ItemError{Kind: batch.ErrKindFetch, Message: "connection refused"},
		},
		{
			Index: 2,
			Entry: batch.UrlEntry{Raw: "https://www.corgihomeplan.co.uk/plans"},
			Records: []batch.ExtractedRecord{
				record("https://www.corgihomeplan.co.uk/plans", map[string]any{
					"product_name":  "Corgi Complete",
					"price_monthly": "£21",
				}),
			},
		},
	}

	products := FromOutcomes(result)
	require.Len(t, products, 2)

	assert.Equal(t, "British Gas", products[0].Competitor)
	assert.Equal(t, "www.britishgas.co.uk", products[0].Domain)
	assert.Equal(t, "HomeCare Two", products[0].Name)
	assert.Equal(t, "£15.50", products[0].PriceMonthly)
	assert.Equal(t, []string{"Annual boiler service", "Central heating cover"}, products[0].Features)
	assert.Equal(t, []string{"https://www.britishgas.co.uk/home-cover"}, products[0].SourceURLs)

	// No label on the second entry: the domain stands in for the competitor.
	assert.Equal(t, "www.corgihomeplan.co.uk", products[1].Competitor)
}

func TestCleanDropsBlankNamesAndDefaultsCategory(t *testing.T) {
	result := batch.BatchResult{
		{
			Index: 0,
			Entry: batch.UrlEntry{Raw: "https://a.example/plans"},
			Records: []batch.ExtractedRecord{
				record("https://a.example/plans", map[string]any{"product_name": "Plan A"}),
				record("https://a.example/plans", map[string]any{"price_monthly": "£9"}),
				record("https://a.example/plans", map[string]any{"product_name": "  "}),
			},
		},
	}

	products := Clean(result)
	require.Len(t, products, 1)
	assert.Equal(t, "Plan A", products[0].Name)
	assert.Equal(t, "General", products[0].Category)
}

func TestDedupeMergesSameProductAcrossPages(t *testing.T) {
	products := []Product{
		{
			Competitor:   "British Gas",
			Name:         "HomeCare Two",
			PriceMonthly: "£15.50 a month",
			SourceURLs:   []string{"https://a.example/page1"},
		},
		{
			Competitor:      "British Gas",
			Name:            "homecare  two",
			PriceMonthly:    "£15.50",
			Category:        "boiler cover",
			SpecialOffers:   []string{"First 3 months free"},
			TermsConditions: "12 month contract",
			Features:        []string{"Annual service"},
			SourceURLs:      []string{"https://a.example/page2"},
		},
	}

	out, stats := Dedupe(products)
	require.Len(t, out, 1)
	assert.Equal(t, 2, stats.InputCount)
	assert.Equal(t, 1, stats.OutputCount)
	assert.Equal(t, 1, stats.DuplicatesRemoved)

	merged := out[0]
	assert.Equal(t, []string{"https://a.example/page1", "https://a.example/page2"}, merged.SourceURLs)
	assert.Equal(t, "boiler cover", merged.Category)
	assert.Equal(t, "12 month contract", merged.TermsConditions)
	assert.Equal(t, []string{"First 3 months free"}, merged.SpecialOffers)
	assert.Equal(t, []string{"Annual service"}, merged.Features)
}

func TestDedupeKeepsDistinctPrices(t *testing.T) {
	products := []Product{
		{Competitor: "Acme", Name: "Plan A", PriceMonthly: "£10"},
		{Competitor: "Acme", Name: "Plan A", PriceMonthly: "£12"},
		{Competitor: "Other", Name: "Plan A", PriceMonthly: "£10"},
	}

	out, stats := Dedupe(products)
	assert.Len(t, out, 3)
	assert.Zero(t, stats.DuplicatesRemoved)
}

func TestDedupeEmpty(t *testing.T) {
	out, stats := Dedupe(nil)
	assert.Nil(t, out)
	assert.Zero(t, stats.InputCount)
}

func TestNormalizeMoney(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"£15.50 a month", "£15.50"},
		{"£15.50/mo", "£15.50"},
		{"  £1,200 per year ", "£1200"},
		{"$9.99", "$9.99"},
		{"15.50", "15.50"},
		{"Call for a quote", "Call for a quote"},
		{"", ""},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, NormalizeMoney(tc.in), "input %q", tc.in)
	}
}

func TestNumericPrice(t *testing.T) {
	v, ok := NumericPrice("from £1,299 per year")
	require.True(t, ok)
	assert.InDelta(t, 1299, v, 0.001)

	v, ok = NumericPrice("£15.50/mo")
	require.True(t, ok)
	assert.InDelta(t, 15.5, v, 0.001)

	_, ok = NumericPrice("N/A")
	assert.False(t, ok)
}

func TestGroupProvidersProfiles(t *testing.T) {
	products := []Product{
		{
			Competitor:   "Corgi HomePlan",
			Domain:       "www.corgihomeplan.co.uk",
			Name:         "Corgi Complete",
			Category:     "home cover",
			PriceMonthly: "£21",
			Features:     []string{"Boiler cover", "Drains"},
			SourceURLs:   []string{"https://www.corgihomeplan.co.uk/plans"},
		},
		{
			Competitor:   "British Gas",
			Domain:       "www.britishgas.co.uk",
			Name:         "HomeCare Two",
			Category:     "boiler cover",
			PriceMonthly: "£15.50",
			PriceAnnual:  "£186",
			Features:     []string{"Boiler cover", "Annual service"},
			SourceURLs:   []string{"https://www.britishgas.co.uk/home-cover"},
		},
		{
			Competitor:   "British Gas",
			Domain:       "www.britishgas.co.uk",
			Name:         "HomeCare Four",
			Category:     "home cover",
			PriceMonthly: "£24",
			Features:     []string{"Boiler cover", "Electrics"},
			SourceURLs:   []string{"https://www.britishgas.co.uk/home-cover"},
		},
	}

	providers := GroupProviders(products, "British Gas")
	require.Len(t, providers, 2)

	// Baseline sorts first.
	bg := providers[0]
	assert.True(t, bg.IsBaseline)
	assert.Equal(t, "British Gas", bg.Name)
	assert.Len(t, bg.Products, 2)
	assert.Equal(t, []string{"boiler cover", "home cover"}, bg.Categories)
	assert.Equal(t, []string{"https://www.britishgas.co.uk/home-cover"}, bg.URLs)

	assert.Equal(t, 2, bg.Prices.Monthly.Count)
	assert.InDelta(t, 15.5, bg.Prices.Monthly.Min, 0.001)
	assert.InDelta(t, 24, bg.Prices.Monthly.Max, 0.001)
	assert.InDelta(t, 19.75, bg.Prices.Monthly.Avg, 0.001)
	assert.Equal(t, 1, bg.Prices.Annual.Count)

	// Features sort by frequency, ties alphabetically.
	require.NotEmpty(t, bg.TopFeatures)
	assert.Equal(t, "Boiler cover", bg.TopFeatures[0].Feature)
	assert.Equal(t, 2, bg.TopFeatures[0].Count)

	other := providers[1]
	assert.False(t, other.IsBaseline)
	assert.Equal(t, "Corgi HomePlan", other.Name)
}

func TestGroupProvidersBaselineMatchesDomain(t *testing.T) {
	products := []Product{
		{Domain: "www.britishgas.co.uk", Name: "HomeCare One"},
		{Competitor: "Acme", Domain: "acme.example", Name: "Plan"},
	}

	providers := GroupProviders(products, "British Gas")
	found, ok := Baseline(providers)
	require.True(t, ok)
	assert.Equal(t, "www.britishgas.co.uk", found.Domain)
}

func TestGroupProvidersNoBaseline(t *testing.T) {
	providers := GroupProviders([]Product{{Competitor: "Acme", Name: "P"}}, "")
	_, ok := Baseline(providers)
	assert.False(t, ok)
	require.Len(t, providers, 1)
	assert.False(t, providers[0].IsBaseline)
}
