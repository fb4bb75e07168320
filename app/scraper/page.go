package scraper

import (
	"log"
	"strings"

	"golang.org/x/net/html"
)

// extractPageText renders a Moodle course page as markdown-ish plain text:
// title, course header, then section by section with activity names and
// descriptions, announcements and sidebar blocks last.
func extractPageText(doc *html.Node) string {
	var content []string

	if title := findFirst(doc, func(n *html.Node) bool { return isElement(n, "title") }); title != nil {
		content = append(content, "# "+nodeText(title)+"\n")
	}

	if header := findFirst(doc, byTagAndClass("div", "page-header-headings")); header != nil {
		content = append(content, "## Course Header: "+nodeText(header)+"\n")
	}

	if summary := findFirst(doc, byTagAndClass("div", "course-summary")); summary != nil {
		content = append(content, "## Course Summary\n", nodeText(summary)+"\n")
	}

	if contentHeader := findFirst(doc, byTagAndClass("div", "course-content-header")); contentHeader != nil {
		content = append(content, "## Course Content Header\n", nodeText(contentHeader)+"\n")
	}

	if mainContent := findFirst(doc, byTagAndClass("div", "course-content")); mainContent != nil {
		content = append(content, "## Course Content\n")

		if intro := findFirst(mainContent, byTagAndClass("div", "summary")); intro != nil {
			content = append(content, "### Introduction\n", nodeText(intro)+"\n")
		}

		for _, section := range findAll(mainContent, byTagAndClass("li", "section")) {
			if name := findFirst(section, byTagAndClass("h3", "sectionname")); name != nil {
				content = append(content, "\n### "+nodeText(name)+"\n")
			} else {
				content = append(content, "\n### Unnamed Section\n")
			}

			if sectionSummary := findFirst(section, byTagAndClass("div", "summary")); sectionSummary != nil {
				content = append(content, nodeText(sectionSummary)+"\n")
			}

			activities := findAll(section, func(n *html.Node) bool {
				return isElement(n, "div", "li") && hasAnyClass(n, "activity", "modtype")
			})
			for _, activity := range activities {
				name := findFirst(activity, func(n *html.Node) bool {
					return isElement(n, "span", "div") && hasAnyClass(n, "instancename", "activityname")
				})
				if name != nil {
					content = append(content, "\n#### "+nodeText(name)+"\n")
				}

				descriptions := findAll(activity, func(n *html.Node) bool {
					return isElement(n, "div", "span") &&
						hasAnyClass(n, "contentafterlink", "contentwithoutlink", "activity-content")
				})
				for _, d := range descriptions {
					if text := nodeText(d); text != "" {
						content = append(content, text+"\n")
					}
				}
			}
		}
	}

	announcements := findFirst(doc, func(n *html.Node) bool {
		return isElement(n, "div") && hasAnyClass(n, "block_news_items", "block_latest_announcements")
	})
	if announcements != nil {
		content = append(content, "\n## Announcements\n")
		for _, item := range findAll(announcements, byTagAndClass("div", "info")) {
			content = append(content, "- "+nodeText(item)+"\n")
		}
	}

	for _, block := range findAll(doc, byTagAndClass("div", "block")) {
		blockTitle := findFirst(block, byTagAndClass("h3", "card-title"))
		if blockTitle == nil {
			continue
		}
		titleText := nodeText(blockTitle)
		if titleText == "" {
			continue
		}
		content = append(content, "\n## "+titleText+"\n")
		for _, card := range findAll(block, byTagAndClass("div", "card-text")) {
			if text := nodeText(card); text != "" {
				content = append(content, text+"\n")
			}
		}
	}

	log.Printf("✅ Extracted %d sections of content from course page\n", len(content))
	return strings.Join(content, "\n")
}
