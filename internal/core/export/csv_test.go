package export

import (
	"bytes"
	"encoding/csv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"prodintel/internal/core/batch"
	"prodintel/internal/core/intel"
)

func parseCSV(t *testing.T, buf *bytes.Buffer) [][]string {
	t.Helper()
	rows, err := csv.NewReader(buf).ReadAll()
	require.NoError(t, err)
	return rows
}

func TestWriteOutcomesOneRowPerOutcome(t *testing.T) {
	schema := batch.DefaultSchema()
	result := batch.BatchResult{
		{
			Index: 0,
			Entry: batch.UrlEntry{Raw: "https://a.example/plans", Label: "Acme"},
			Records: []batch.ExtractedRecord{
				{
					Fields: map[string]any{
						"product_name":  "Plan A",
						"price_monthly": "£9.99",
						"features":      []string{"Boiler cover", "Callouts"},
					},
					SourceURL:   "https://a.example/plans",
					ExtractedAt: time.Now(),
				},
				{
					Fields:    map[string]any{"product_name": "Plan B"},
					SourceURL: "https://a.example/plans",
				},
			},
		},
		{
			Index: 1,
			Entry: batch.UrlEntry{Raw: "https://down.example"},
			Err:   &batch.ItemError{Kind: batch.ErrKindFetch, Message: "connection refused"},
		},
		{
			Index: 2,
			Entry: batch.UrlEntry{Raw: "not-a-url"},
			Err:   &batch.ItemError{Kind: batch.ErrKindInput, Message: "unsupported scheme \"\""},
		},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteOutcomes(&buf, result, schema))

	rows := parseCSV(t, &buf)
	require.Len(t, rows, 4) // header + one row per outcome

	wantHeader := append(schema.FieldNames(), "source_url", "status", "error")
	assert.Equal(t, wantHeader, rows[0])

	// Success row carries the first record's fields.
	assert.Equal(t, "Plan A", rows[1][0])
	assert.Equal(t, "£9.99", rows[1][2])
	assert.Equal(t, "Boiler cover | Callouts", rows[1][5])
	assert.Equal(t, "https://a.example/plans", rows[1][8])
	assert.Equal(t, "success", rows[1][9])
	assert.Equal(t, "", rows[1][10])

	// Failure rows keep their slot with blank fields and the error kind.
	assert.Equal(t, "", rows[2][0])
	assert.Equal(t, "https://down.example", rows[2][8])
	assert.Equal(t, "fetch_error", rows[2][9])
	assert.Equal(t, "connection refused", rows[2][10])

	assert.Equal(t, "input_error", rows[3][9])
}

func TestWriteOutcomesEmptyResult(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteOutcomes(&buf, nil, batch.DefaultSchema()))

	rows := parseCSV(t, &buf)
	require.Len(t, rows, 1)
}

func TestWriteProducts(t *testing.T) {
	products := []intel.Product{
		{
			Competitor:    "British Gas",
			Name:          "HomeCare Two",
			Category:      "boiler cover",
			PriceMonthly:  "£15.50",
			PriceAnnual:   "£186",
			Excess:        "£60",
			Features:      []string{"Annual service", "Unlimited callouts"},
			SpecialOffers: []string{"First month free"},
			SourceURLs:    []string{"https://a.example/1", "https://a.example/2"},
		},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteProducts(&buf, products))

	rows := parseCSV(t, &buf)
	require.Len(t, rows, 2)

	assert.Equal(t, productColumns, rows[0])
	assert.Equal(t, "British Gas", rows[1][0])
	assert.Equal(t, "HomeCare Two", rows[1][1])
	assert.Equal(t, "Annual service | Unlimited callouts", rows[1][6])
	assert.Equal(t, "First month free", rows[1][7])
	assert.Equal(t, "https://a.example/1 | https://a.example/2", rows[1][9])
}

func TestWriteProductsEmptyHasHeaderOnly(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteProducts(&buf, nil))

	rows := parseCSV(t, &buf)
	require.Len(t, rows, 1)
	assert.Equal(t, productColumns, rows[0])
}

func TestSanitizeName(t *testing.T) {
	assert.Equal(t, "products_job-1.csv", sanitizeName("products_job:1.csv"))
	assert.Equal(t, "a_b", sanitizeName("a b"))
}
