package scraper

import "strings"

// Page is one scraped document, reduced to readable text.
type Page struct {
	URL     string `json:"url"`
	Title   string `json:"title,omitempty"`
	Content string `json:"content"`
}

// SourceLabel returns the provenance label for records scraped from site.
func SourceLabel(site string) string {
	return "web: " + site
}

func truncate(content string, maxChars int) string {
	content = strings.TrimSpace(content)
	if maxChars <= 0 {
		return content
	}
	runes := []rune(content)
	if len(runes) <= maxChars {
		return content
	}
	return string(runes[:maxChars])
}
