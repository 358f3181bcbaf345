package fetch

import (
	"regexp"
	"sort"
	"strings"

	html2markdown "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/PuerkitoBio/goquery"

	"prodintel/internal/utils/markdown"
)

// Many pages put pricing and product cards far beyond the first N characters,
// so naive prefix truncation drops exactly the content we need. The condenser
// always keeps a head slice for context (title, H1) and then windows around
// pricing signals, merging overlaps and capping the total.
const (
	headWindow    = 8000
	windowBefore  = 1200
	windowAfter   = 2400
	maxInputChars = 60000
	snipMarker    = "\n\n<!-- SNIP -->\n\n"
)

var pricingPatterns = []*regexp.Regexp{
	regexp.MustCompile(`[£$€]\s*\d`),
	regexp.MustCompile(`(?i)\b(per\s+month|a\s+month)\b`),
	regexp.MustCompile(`(?i)\bmonthly\b`),
	regexp.MustCompile(`(?i)\bannually\b|\byear\b`),
	regexp.MustCompile(`(?i)\bexcess\b|\bdeductible\b`),
	regexp.MustCompile(`(?i)\bcover\b|\bplan\b|\bpremium\b|\boptions\b`),
}

// PrepareForExtraction reduces a fetched document to a compact text the model
// can work with. HTML is converted to markdown first, everything else is
// condensed as-is.
func PrepareForExtraction(content, contentType string) string {
	if isHTML(content, contentType) {
		md := markdown.ConvertHTMLToMarkdown(content)
		if strings.TrimSpace(md) == "" {
			// Unusual markup the cleaner refused, fall back to a raw conversion
			conv := html2markdown.NewConverter("", true, nil)
			if out, err := conv.ConvertString(content); err == nil {
				md = out
			}
		}
		if strings.TrimSpace(md) != "" {
			content = md
		}
	}
	return Condense(content, maxInputChars)
}

func isHTML(content, contentType string) bool {
	ct := strings.ToLower(contentType)
	if strings.Contains(ct, "html") || strings.Contains(ct, "xhtml") {
		return true
	}
	head := content
	if len(head) > 512 {
		head = head[:512]
	}
	head = strings.ToLower(head)
	return strings.Contains(head, "<!doctype html") || strings.Contains(head, "<html")
}

// Condense keeps the head of the document plus windows around pricing signals,
// merged in order and capped at maxChars. Elided stretches are marked so the
// model knows content was cut.
func Condense(content string, maxChars int) string {
	if content == "" {
		return ""
	}
	if maxChars <= 0 {
		maxChars = maxInputChars
	}

	type span struct{ start, end int }

	head := headWindow
	if head > len(content) {
		head = len(content)
	}
	spans := []span{{0, head}}

	for _, re := range pricingPatterns {
		for _, loc := range re.FindAllStringIndex(content, -1) {
			start := loc[0] - windowBefore
			if start < 0 {
				start = 0
			}
			end := loc[1] + windowAfter
			if end > len(content) {
				end = len(content)
			}
			spans = append(spans, span{start, end})
		}
	}

	sort.Slice(spans, func(i, j int) bool { return spans[i].start < spans[j].start })

	var merged []span
	for _, sp := range spans {
		if len(merged) == 0 || sp.start > merged[len(merged)-1].end {
			merged = append(merged, sp)
		} else if sp.end > merged[len(merged)-1].end {
			merged[len(merged)-1].end = sp.end
		}
	}

	var parts []string
	total := 0
	for _, sp := range merged {
		if total >= maxChars {
			break
		}
		chunk := content[sp.start:sp.end]
		if strings.TrimSpace(chunk) == "" {
			continue
		}
		if remaining := maxChars - total; len(chunk) > remaining {
			chunk = chunk[:remaining]
		}
		parts = append(parts, chunk)
		total += len(chunk)
	}

	return strings.Join(parts, snipMarker)
}

// LooksLikeAppShell reports whether the document is a client-side rendering
// shell with no server-rendered content worth extracting.
func LooksLikeAppShell(html string) bool {
	if html == "" {
		return false
	}
	lower := strings.ToLower(html)
	if !strings.Contains(lower, "<script") {
		return false
	}

	text := visibleText(html)
	if len(text) >= 400 {
		return false
	}

	markers := []string{`id="root"`, `id="app"`, `id="__next"`, "data-reactroot", "ng-version", "data-server-rendered"}
	for _, m := range markers {
		if strings.Contains(lower, m) {
			return true
		}
	}
	return len(text) < 150
}

func visibleText(html string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return html
	}
	doc.Find("script, style, noscript").Remove()
	return strings.TrimSpace(doc.Find("body").Text())
}
