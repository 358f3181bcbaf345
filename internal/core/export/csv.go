package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"prodintel/internal/core/batch"
	"prodintel/internal/core/intel"
)

// listSeparator joins multi-value fields inside a single CSV cell.
const listSeparator = " | "

// WriteOutcomes writes the per-URL run report: exactly one row per outcome, in
// input order, successes and failures alike. Columns are the schema fields
// followed by source_url, status and error. A success row carries its first
// extracted record; a failure row carries blank fields, the error kind as
// status and the captured message.
func WriteOutcomes(w io.Writer, result batch.BatchResult, schema batch.ExtractionSchema) error {
	cw := csv.NewWriter(w)
	fields := schema.FieldNames()

	header := make([]string, 0, len(fields)+3)
	header = append(header, fields...)
	header = append(header, "source_url", "status", "error")
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	for _, o := range result {
		row := make([]string, 0, len(header))
		for _, f := range fields {
			if !o.OK() || len(o.Records) == 0 {
				row = append(row, "")
				continue
			}
			row = append(row, cellValue(o.Records[0], f, schema))
		}
		row = append(row, o.Entry.Raw)
		if o.OK() {
			row = append(row, "success", "")
		} else {
			row = append(row, string(o.Err.Kind), o.Err.Message)
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("failed to write row %d: %w", o.Index, err)
		}
	}

	cw.Flush()
	return cw.Error()
}

func cellValue(rec batch.ExtractedRecord, field string, schema batch.ExtractionSchema) string {
	if f, ok := schema.Field(field); ok && f.List {
		return strings.Join(rec.Strings(field), listSeparator)
	}
	return rec.String(field)
}

// productColumns is the preferred product table order; anything the struct
// grows later lands after these.
var productColumns = []string{
	"competitor",
	"product_name",
	"category",
	"price_monthly",
	"price_annual",
	"excess",
	"features",
	"special_offers",
	"terms_conditions",
	"source_url",
}

// WriteProducts writes the flattened product table, one row per product.
// List values are joined with " | "; a product seen on several pages carries
// all of its source URLs in one cell.
func WriteProducts(w io.Writer, products []intel.Product) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(productColumns); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	for i, p := range products {
		row := []string{
			p.Competitor,
			p.Name,
			p.Category,
			p.PriceMonthly,
			p.PriceAnnual,
			p.Excess,
			strings.Join(p.Features, listSeparator),
			strings.Join(p.SpecialOffers, listSeparator),
			p.TermsConditions,
			strings.Join(p.SourceURLs, listSeparator),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("failed to write row %d: %w", i, err)
		}
	}

	cw.Flush()
	return cw.Error()
}
