package markdown

import (
	"bytes"
	"regexp"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/PuerkitoBio/goquery"
)

// ConvertHTMLToMarkdown converts a product page to markdown and strips the
// chrome around it. Promotional banners and quote forms are deliberately kept:
// special offers and excess options usually live there.
func ConvertHTMLToMarkdown(html string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return ""
	}

	// Work from the main content area when the page declares one
	var contentSelection *goquery.Selection
	mainTags := []string{"main", "[role=\"main\"]", "article", "#content", "#main"}
	for _, tag := range mainTags {
		if doc.Find(tag).Length() > 0 {
			contentSelection = doc.Find(tag).First()
			break
		}
	}
	if contentSelection == nil {
		contentSelection = doc.Find("body")
	}

	// Remove non-content elements
	contentSelection.Find("script, style, noscript, nav, iframe, svg").Each(func(_ int, s *goquery.Selection) { s.Remove() })
	contentSelection.Find("[role=\"navigation\"], [role=\"banner\"], [role=\"contentinfo\"], [aria-label*=\"cookie\" i]").Each(func(_ int, s *goquery.Selection) { s.Remove() })

	// Remove elements whose class or id mark them as site chrome. Pricing
	// cards often sit in elements classed "plan-card" or "offer-banner",
	// so the keyword list stays away from plan/offer/promo terms.
	keywords := []string{
		"cookie", "consent", "navbar", "nav-", "menu-", "footer-links",
		"pagination", "share", "search-", "signup", "signin", "login",
		"breadcrumbs", "breadcrumb", "sidebar", "skip-link",
	}

	contentSelection.Find("[class], [id]").Each(func(_ int, sel *goquery.Selection) {
		classVal, _ := sel.Attr("class")
		idVal, _ := sel.Attr("id")
		lower := strings.ToLower(classVal + " " + idVal)
		for _, kw := range keywords {
			if strings.Contains(lower, kw) {
				sel.Remove()
				break
			}
		}
	})

	body, err := contentSelection.Html()
	if err != nil {
		return ""
	}

	conv := md.NewConverter("", true, nil)
	out, err := conv.ConvertString(body)
	if err != nil {
		return ""
	}

	out = RemoveDuplicateLines(out)
	out = CleanMarkdownBoilerplate(out)

	out = regexp.MustCompile(`\n{3,}`).ReplaceAllString(out, "\n\n")
	return strings.TrimSpace(out)
}

// RemoveDuplicateLines drops repeated link and date lines. Product grids
// repeat the same "view plan" links dozens of times and they carry nothing
// for extraction.
func RemoveDuplicateLines(markdown string) string {
	var cleanedContent bytes.Buffer
	lines := strings.Split(markdown, "\n")

	seenLinks := make(map[string]bool)
	seenDates := make(map[string]bool)
	for _, line := range lines {
		trimmedLine := strings.TrimSpace(line)

		normalizedLine := normalizedContent(trimmedLine)

		if isLinkLine(trimmedLine) {
			if seenLinks[normalizedLine] {
				continue
			}
			seenLinks[normalizedLine] = true
		}

		if isDateLine(trimmedLine) {
			if seenDates[normalizedLine] {
				continue
			}
			seenDates[normalizedLine] = true
		}

		cleanedContent.WriteString(trimmedLine + "\n")
	}

	return cleanedContent.String()
}

func normalizedContent(line string) string {
	line = normalizeLinks(line)
	line = normalizeDates(line)
	return line
}

func normalizeDates(line string) string {
	datePattern := `\b\d{4}/\d{2}/\d{2}\b|\b\d{2}/\d{2}/\d{4}\b|\b[A-Za-z]{3} \d{1,2}, \d{4}\b`
	re := regexp.MustCompile(datePattern)
	return re.ReplaceAllString(line, "DATE")
}

func normalizeLinks(line string) string {
	linkPattern := `https?://[^\s)]+`
	re := regexp.MustCompile(linkPattern)
	return re.ReplaceAllString(line, "LINK")
}

func isLinkLine(line string) bool {
	// Matches lines that are only a markdown image or link
	linkPattern := `^!?\[[^\]]*\]\((https?:\/\/[^\)]+)\)(\]\([^\)]+\))?$`
	re := regexp.MustCompile(linkPattern)
	return re.MatchString(line)
}

func isDateLine(line string) bool {
	// Matches lines like "Sep 12, 2024" with optional trailing backslash
	datePattern := `^[A-Za-z]{3}\s\d{1,2},\s\d{4}\\?$`
	re := regexp.MustCompile(datePattern)
	return re.MatchString(line)
}

// CleanMarkdownBoilerplate removes markdown-level noise after conversion
func CleanMarkdownBoilerplate(mdText string) string {
	lines := strings.Split(mdText, "\n")
	out := make([]string, 0, len(lines))

	imgRe := regexp.MustCompile(`!\[[^\]]*\]\([^\)]+\)`) // markdown images

	for _, l := range lines {
		line := strings.TrimSpace(l)
		if line == "" {
			continue
		}

		// Drop pure image lines
		if imgRe.MatchString(line) && len(strings.TrimSpace(imgRe.ReplaceAllString(line, ""))) == 0 {
			continue
		}

		line = stripInvisibleRunes(line)

		out = append(out, line)
	}

	cleaned := strings.Join(out, "\n")
	cleaned = regexp.MustCompile(`\n{3,}`).ReplaceAllString(cleaned, "\n\n")
	return strings.TrimSpace(cleaned)
}

// stripInvisibleRunes removes control and zero-width characters that confuse
// downstream JSON parsing of model replies quoting this content.
func stripInvisibleRunes(text string) string {
	controlCharsPattern := `[\x00-\x08\x0B\x0C\x0E-\x1F]`
	re := regexp.MustCompile(controlCharsPattern)
	text = re.ReplaceAllString(text, "")

	invisibleChars := []string{
		"​", // zero-width space
		"‌", // zero-width non-joiner
		"‍", // zero-width joiner
		"‎", // left-to-right mark
		"‏", // right-to-left mark
		" ", // line separator
		" ", // paragraph separator
		"\uFEFF", // byte order mark
		"�", // replacement character (indicates malformed UTF-8)
	}
	for _, char := range invisibleChars {
		text = strings.ReplaceAll(text, char, "")
	}

	return text
}
