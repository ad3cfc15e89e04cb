package scraper

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
	"github.com/go-shiori/go-readability"
	"github.com/rs/zerolog/log"
	"golang.org/x/net/html"

	"jan-server/services/grant-scout/internal/domain/search"
)

const minQueryTermLen = 3

// Crawler fetches a site's search page, follows the links that look relevant
// to the query and reduces each page to markdown.
type Crawler struct {
	client   *resty.Client
	maxPages int
	maxChars int
}

// NewCrawler creates an in-process crawler.
func NewCrawler(userAgent string, requestTimeout time.Duration, maxPages, maxChars int) *Crawler {
	if requestTimeout <= 0 {
		requestTimeout = 15 * time.Second
	}
	if maxPages <= 0 {
		maxPages = 5
	}
	transport := &http.Transport{
		MaxIdleConns:        50,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
		ForceAttemptHTTP2:   true,
	}
	client := resty.New().
		SetHeader("User-Agent", userAgent).
		SetHeader("Accept", "text/html,application/xhtml+xml").
		SetTimeout(requestTimeout).
		SetRetryCount(0).
		SetTransport(transport)

	return &Crawler{client: client, maxPages: maxPages, maxChars: maxChars}
}

// Crawl returns the readable pages found for query on site. The search page
// itself is returned when no linked page looks relevant.
func (c *Crawler) Crawl(ctx context.Context, site search.Site, query string) ([]Page, error) {
	searchURL := SearchPageURL(site, query)
	body, err := c.fetch(ctx, searchURL)
	if err != nil {
		return nil, err
	}

	links, err := relevantLinks(body, searchURL, query, c.maxPages)
	if err != nil {
		return nil, fmt.Errorf("parse search page %s: %w", searchURL, err)
	}
	if len(links) == 0 {
		page := c.toPage(searchURL, body)
		if page.Content == "" {
			return nil, nil
		}
		return []Page{page}, nil
	}

	pages := make([]Page, 0, len(links))
	for _, link := range links {
		if err := ctx.Err(); err != nil {
			break
		}
		body, err := c.fetch(ctx, link)
		if err != nil {
			log.Debug().Err(err).Str("site", site.Name).Str("url", link).Msg("skipping page")
			continue
		}
		if page := c.toPage(link, body); page.Content != "" {
			pages = append(pages, page)
		}
	}
	if len(pages) == 0 && ctx.Err() != nil {
		return nil, ctx.Err()
	}
	return pages, nil
}

func (c *Crawler) fetch(ctx context.Context, target string) ([]byte, error) {
	resp, err := c.client.R().
		SetContext(ctx).
		Get(target)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("fetch %s: %w", target, err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("fetch %s: HTTP %d", target, resp.StatusCode())
	}
	return resp.Body(), nil
}

// toPage reduces an HTML document to its main content as markdown, falling
// back to all visible text.
func (c *Crawler) toPage(pageURL string, body []byte) Page {
	page := Page{URL: pageURL}

	if parsed, err := url.Parse(pageURL); err == nil {
		if article, err := readability.FromReader(bytes.NewReader(body), parsed); err == nil {
			page.Title = strings.TrimSpace(article.Title)
			if markdown, err := htmltomarkdown.ConvertString(article.Content); err == nil {
				page.Content = markdown
			} else {
				page.Content = article.TextContent
			}
		}
	}
	if strings.TrimSpace(page.Content) == "" {
		page.Content = extractVisibleText(body)
	}
	page.Content = truncate(page.Content, c.maxChars)
	return page
}

// relevantLinks returns up to limit same-host links whose text or address
// mentions a query term, best matches first.
func relevantLinks(body []byte, pageURL, query string, limit int) ([]string, error) {
	base, err := url.Parse(pageURL)
	if err != nil {
		return nil, err
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	terms := queryTerms(query)
	if len(terms) == 0 {
		return nil, nil
	}

	type scored struct {
		url   string
		score int
	}
	seen := map[string]struct{}{base.String(): {}}
	var found []scored

	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		href = strings.TrimSpace(href)
		if href == "" || strings.HasPrefix(href, "#") {
			return
		}
		ref, err := url.Parse(href)
		if err != nil {
			return
		}
		abs := base.ResolveReference(ref)
		if abs.Scheme != "http" && abs.Scheme != "https" {
			return
		}
		if !strings.EqualFold(abs.Hostname(), base.Hostname()) {
			return
		}
		abs.Fragment = ""
		key := abs.String()
		if _, ok := seen[key]; ok {
			return
		}

		haystack := strings.ToLower(s.Text() + " " + abs.Path)
		score := 0
		for _, term := range terms {
			if strings.Contains(haystack, term) {
				score++
			}
		}
		if score == 0 {
			return
		}
		seen[key] = struct{}{}
		found = append(found, scored{url: key, score: score})
	})

	sort.SliceStable(found, func(i, j int) bool {
		return found[i].score > found[j].score
	})
	if len(found) > limit {
		found = found[:limit]
	}
	links := make([]string, len(found))
	for i, f := range found {
		links[i] = f.url
	}
	return links, nil
}

func queryTerms(query string) []string {
	var terms []string
	for _, field := range strings.Fields(strings.ToLower(query)) {
		field = strings.Trim(field, ".,;:!?\"'()")
		if len([]rune(field)) >= minQueryTermLen {
			terms = append(terms, field)
		}
	}
	return terms
}

func extractVisibleText(htmlBytes []byte) string {
	doc, err := html.Parse(bytes.NewReader(htmlBytes))
	if err != nil {
		return ""
	}

	var builder strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "script", "style", "noscript", "template":
				return
			}
		}
		if n.Type == html.TextNode {
			if val := strings.TrimSpace(n.Data); val != "" {
				if builder.Len() > 0 {
					builder.WriteString(" ")
				}
				builder.WriteString(val)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return builder.String()
}
