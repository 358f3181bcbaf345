package batch

import (
	"encoding/csv"
	"fmt"
	"io"
	"net/url"
	"strings"
)

// ValidateURL accepts absolute http/https URLs with a host. Anything else is
// an input error; the entry still occupies its batch slot as a failure.
func ValidateURL(raw string) error {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("unparseable url: %v", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("missing host")
	}
	return nil
}

// ParseURLText splits pasted text into entries, one URL per line. Blank and
// whitespace-only lines are skipped; malformed entries are kept so the run can
// reject them individually instead of aborting the batch.
func ParseURLText(s string) []UrlEntry {
	var entries []UrlEntry
	for _, line := range strings.Split(s, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		entries = append(entries, UrlEntry{Raw: line})
	}
	return entries
}

// ParseURLCSV reads entries from a CSV with a `url` column and an optional
// `competitor` (or `label`) column. A headerless single-column file is treated
// as a plain URL list.
func ParseURLCSV(r io.Reader) ([]UrlEntry, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	rows, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}

	urlCol, labelCol := -1, -1
	for i, h := range rows[0] {
		switch strings.ToLower(strings.TrimSpace(h)) {
		case "url", "urls", "link":
			if urlCol == -1 {
				urlCol = i
			}
		case "competitor", "label", "provider":
			if labelCol == -1 {
				labelCol = i
			}
		}
	}

	start := 1
	if urlCol == -1 {
		// No recognizable header: take the first column and keep row 0 as data.
		urlCol = 0
		start = 0
	}

	var entries []UrlEntry
	for _, row := range rows[start:] {
		if urlCol >= len(row) {
			continue
		}
		raw := strings.TrimSpace(row[urlCol])
		if raw == "" {
			continue
		}
		e := UrlEntry{Raw: raw}
		if labelCol >= 0 && labelCol < len(row) {
			e.Label = strings.TrimSpace(row[labelCol])
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// Dedupe removes repeated URLs preserving first-seen order. This is an
// app-level convenience for handlers and the CLI; Run itself never
// deduplicates.
func Dedupe(entries []UrlEntry) []UrlEntry {
	seen := make(map[string]struct{}, len(entries))
	out := make([]UrlEntry, 0, len(entries))
	for _, e := range entries {
		if _, dup := seen[e.Raw]; dup {
			continue
		}
		seen[e.Raw] = struct{}{}
		out = append(out, e)
	}
	return out
}
