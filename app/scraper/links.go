package scraper

import (
	"fmt"
	"net/url"
	"path"
	"regexp"
	"strings"
	"time"

	"golang.org/x/net/html"
)

// FileLink is a downloadable document discovered on a course page.
type FileLink struct {
	Filename string
	URL      string
}

// hrefPatterns covers direct file extensions plus the Moodle resource,
// pluginfile, forced-download and assignment link shapes.
var hrefPatterns = []string{
	".pdf", ".docx", ".doc", ".pptx", ".ppt", ".xlsx", ".xls",
	"resource/view.php", "pluginfile.php", "forcedownload=1",
	"mod/assign/view.php",
}

// textIndicators flags anchors whose visible text suggests course material
// even when the href alone gives nothing away.
var textIndicators = []string{
	"handbook", "guide", "syllabus", "lecture", "notes", "assignment",
	"document", "resource", "material", "reading", "pdf", "doc", "ppt",
}

var (
	docExtSuffixRe = regexp.MustCompile(`(?i)\.(pdf|docx?|pptx?|xlsx?)$`)
	docExtInURLRe  = regexp.MustCompile(`(?i)\.(pdf|docx?|pptx?|xlsx?)($|\?)`)
	resourceViewRe = regexp.MustCompile(`(?i)/(resource|mod/resource)/view\.php`)
	unsafeCharRe   = regexp.MustCompile(`[^\w\-. ]`)

	pdfURLRe  = regexp.MustCompile(`(?i)\.pdf`)
	pptURLRe  = regexp.MustCompile(`(?i)\.pptx?`)
	docURLRe  = regexp.MustCompile(`(?i)\.docx?`)
	xlsxURLRe = regexp.MustCompile(`(?i)\.xlsx?`)
)

// extractFileLinks runs three passes over the page and unions the results:
// href shapes, anchor-text indicators, then everything linked from the
// General section. Duplicates are dropped by absolute URL, first hit wins.
func extractFileLinks(doc *html.Node, baseURL string) []FileLink {
	base, err := url.Parse(baseURL)
	if err != nil {
		base = &url.URL{}
	}

	var links []FileLink

	for _, a := range anchors(doc) {
		href := attr(a, "href")
		if !matchesAnyPattern(href) {
			continue
		}
		absURL := resolveURL(base, href)
		if absURL == "" {
			continue
		}
		if filename := filenameFromLink(nodeText(a), absURL); filename != "" {
			links = append(links, FileLink{Filename: filename, URL: absURL})
		}
	}

	for _, a := range anchors(doc) {
		text := strings.ToLower(nodeText(a))
		if !containsAnyIndicator(text) {
			continue
		}
		absURL := resolveURL(base, attr(a, "href"))
		if absURL == "" || !isDocumentURL(absURL) {
			continue
		}
		if filename := filenameFromLink(nodeText(a), absURL); filename != "" {
			links = append(links, FileLink{Filename: filename, URL: absURL})
		}
	}

	generalSections := findAll(doc, func(n *html.Node) bool {
		if n.Type != html.ElementNode {
			return false
		}
		if hasClass(n, "section") && hasClass(n, "main") && attr(n, "id") == "section-0" {
			return true
		}
		return attr(n, "aria-label") == "General"
	})
	for _, section := range generalSections {
		for _, a := range anchors(section) {
			absURL := resolveURL(base, attr(a, "href"))
			if absURL == "" {
				continue
			}
			if !isDocumentURL(absURL) && !strings.Contains(absURL, "view.php") {
				continue
			}
			if filename := filenameFromLink(nodeText(a), absURL); filename != "" {
				links = append(links, FileLink{Filename: filename, URL: absURL})
			}
		}
	}

	seen := make(map[string]bool, len(links))
	unique := links[:0]
	for _, link := range links {
		if seen[link.URL] {
			continue
		}
		seen[link.URL] = true
		unique = append(unique, link)
	}
	return unique
}

func matchesAnyPattern(href string) bool {
	for _, p := range hrefPatterns {
		if strings.Contains(href, p) {
			return true
		}
	}
	return false
}

func containsAnyIndicator(text string) bool {
	for _, indicator := range textIndicators {
		if strings.Contains(text, indicator) {
			return true
		}
	}
	return false
}

func resolveURL(base *url.URL, href string) string {
	if href == "" {
		return ""
	}
	ref, err := url.Parse(href)
	if err != nil {
		return ""
	}
	return base.ResolveReference(ref).String()
}

func isDocumentURL(rawURL string) bool {
	if rawURL == "" {
		return false
	}
	if docExtInURLRe.MatchString(rawURL) {
		return true
	}
	if resourceViewRe.MatchString(rawURL) {
		return true
	}
	if strings.Contains(rawURL, "pluginfile.php") {
		return true
	}
	if strings.Contains(rawURL, "forcedownload=1") {
		return true
	}
	if strings.Contains(rawURL, "mod/assign/view.php") {
		return true
	}
	for _, indicator := range []string{"download=1", "filedown.php"} {
		if strings.Contains(rawURL, indicator) {
			return true
		}
	}
	return false
}

// filenameFromLink derives a filename for a discovered link, trying in
// order: the trailing pluginfile path segment, the sanitized anchor text
// of a resource link with an inferred extension, the URL basename, and
// finally a generic timestamped name.
func filenameFromLink(linkText, rawURL string) string {
	var filename string

	if strings.Contains(rawURL, "pluginfile.php") {
		urlPath := strings.SplitN(rawURL, "?", 2)[0]
		if candidate := path.Base(urlPath); len(candidate) > 3 {
			filename = candidate
		}
	}

	linkText = strings.TrimSpace(linkText)
	if filename == "" && resourceViewRe.MatchString(rawURL) && linkText != "" {
		filename = unsafeCharRe.ReplaceAllString(linkText, "_")
		if !docExtSuffixRe.MatchString(filename) {
			lower := strings.ToLower(linkText)
			switch {
			case strings.Contains(lower, "handbook") || strings.Contains(lower, "guide") || strings.Contains(lower, "syllabus"):
				filename += ".docx"
			case strings.Contains(lower, "lecture") || strings.Contains(lower, "slides") || strings.Contains(lower, "presentation"):
				filename += ".pptx"
			default:
				filename += ".pdf"
			}
		}
	}

	if filename == "" {
		filename = path.Base(strings.SplitN(rawURL, "?", 2)[0])
	}

	if filename != "" && !docExtSuffixRe.MatchString(filename) {
		filename += inferExtension(strings.ToLower(linkText), rawURL)
	}

	filename = unsafeCharRe.ReplaceAllString(filename, "_")

	if len(filename) < 3 {
		if linkText != "" {
			filename = unsafeCharRe.ReplaceAllString(linkText, "_") + ".pdf"
		} else {
			hint := "document"
			if strings.Contains(rawURL, "resource") {
				hint = "resource"
			} else if strings.Contains(rawURL, "assign") {
				hint = "assignment"
			}
			filename = fmt.Sprintf("%s_%s.pdf", hint, time.Now().Format("20060102150405"))
		}
	}

	return filename
}

func inferExtension(linkText, rawURL string) string {
	switch {
	case strings.Contains(linkText, "pdf") || pdfURLRe.MatchString(rawURL):
		return ".pdf"
	case strings.Contains(linkText, "powerpoint") || strings.Contains(linkText, "slides") ||
		strings.Contains(linkText, "presentation") || strings.Contains(linkText, ".ppt") ||
		pptURLRe.MatchString(rawURL):
		return ".pptx"
	case strings.Contains(linkText, "word") || strings.Contains(linkText, "handbook") ||
		strings.Contains(linkText, "guide") || strings.Contains(linkText, "doc") ||
		docURLRe.MatchString(rawURL):
		return ".docx"
	case strings.Contains(linkText, "excel") || strings.Contains(linkText, "spreadsheet") ||
		strings.Contains(linkText, "data") || xlsxURLRe.MatchString(rawURL):
		return ".xlsx"
	default:
		return ".pdf"
	}
}
