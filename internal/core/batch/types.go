package batch

import (
	"strings"
	"time"
)

// UrlEntry is one input URL plus optional metadata. Entries are immutable once
// a run starts; the pipeline never rewrites or deduplicates them.
type UrlEntry struct {
	Raw   string `json:"url"`
	Label string `json:"label,omitempty"` // e.g. competitor name from a CSV column
}

// FetchResult is the fetcher's success payload: LLM-ready page content plus
// transport metadata. Produced by a Fetcher, consumed by an Extractor.
type FetchResult struct {
	URL         string `json:"url"`
	Content     string `json:"content"`
	ContentType string `json:"content_type,omitempty"`
	StatusCode  int    `json:"status_code,omitempty"`
	Rendered    bool   `json:"rendered,omitempty"` // headless-browser fallback produced the content
}

// ExtractedRecord is one structured product extracted from a page. Field values
// are strings or []string keyed by schema field name; a field the page didn't
// yield is simply absent. Records are never mutated after creation.
type ExtractedRecord struct {
	Fields      map[string]any `json:"fields"`
	SourceURL   string         `json:"source_url"`
	ExtractedAt time.Time      `json:"extracted_at"`
}

// String returns the named field as a trimmed string, "" when absent or not scalar.
func (r ExtractedRecord) String(field string) string {
	v, ok := r.Fields[field]
	if !ok {
		return ""
	}
	s, ok := v.(string)
	if !ok {
		return ""
	}
	return strings.TrimSpace(s)
}

// Strings returns the named field as a string slice, nil when absent.
func (r ExtractedRecord) Strings(field string) []string {
	v, ok := r.Fields[field]
	if !ok {
		return nil
	}
	switch t := v.(type) {
	case []string:
		return t
	case string:
		if t == "" {
			return nil
		}
		return []string{t}
	}
	return nil
}

// ItemOutcome is the per-URL result: exactly one of Records or Err is set.
// A page listing several products yields one record per product; the
// single-product page is the base case with exactly one.
type ItemOutcome struct {
	Index   int               `json:"index"`
	Entry   UrlEntry          `json:"entry"`
	Records []ExtractedRecord `json:"records,omitempty"`
	Err     *ItemError        `json:"error,omitempty"`
}

// OK reports whether the item succeeded.
func (o ItemOutcome) OK() bool { return o.Err == nil }

// BatchResult is the ordered outcome sequence, one entry per input URL in
// input order. On cancellation it holds only the completed outcomes, still in
// input order, each carrying its original Index.
type BatchResult []ItemOutcome

// Records flattens all successful outcomes into a single record list,
// preserving outcome order.
func (br BatchResult) Records() []ExtractedRecord {
	var out []ExtractedRecord
	for _, o := range br {
		out = append(out, o.Records...)
	}
	return out
}

// Failures returns the failed outcomes in order.
func (br BatchResult) Failures() []ItemOutcome {
	var out []ItemOutcome
	for _, o := range br {
		if !o.OK() {
			out = append(out, o)
		}
	}
	return out
}

// Summary aggregates run totals for job status payloads and CLI output.
type Summary struct {
	TotalURLs      int            `json:"total_urls"`
	Succeeded      int            `json:"succeeded"`
	Failed         int            `json:"failed"`
	Products       int            `json:"products"`
	FailuresByKind map[string]int `json:"failures_by_kind,omitempty"`
}

// Summarize computes totals over a (possibly partial) result.
func (br BatchResult) Summarize() Summary {
	s := Summary{TotalURLs: len(br), FailuresByKind: map[string]int{}}
	for _, o := range br {
		if o.OK() {
			s.Succeeded++
			s.Products += len(o.Records)
			continue
		}
		s.Failed++
		s.FailuresByKind[string(o.Err.Kind)]++
	}
	if len(s.FailuresByKind) == 0 {
		s.FailuresByKind = nil
	}
	return s
}

// Progress is the non-blocking per-item completion event the runner emits so
// an observer (job trace, CLI) can render incremental feedback.
type Progress struct {
	Index     int         `json:"index"`
	Completed int         `json:"completed"`
	Total     int         `json:"total"`
	Outcome   ItemOutcome `json:"outcome"`
}
