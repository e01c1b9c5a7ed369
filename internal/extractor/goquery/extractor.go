// Package goqueryextractor implements crawler.LinkExtractor with goquery.
package goqueryextractor

import (
	"bytes"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/JakeFAU/asyncspider/internal/crawler"
)

const anchorSelector = "a[href]"

// Extractor pulls anchor targets out of HTML documents.
type Extractor struct{}

var _ crawler.LinkExtractor = (*Extractor)(nil)

// New returns an Extractor.
func New() *Extractor {
	return &Extractor{}
}

// ExtractLinks returns every http(s) anchor target in body, resolved against
// baseURL and normalized, in document order without repeats.
func (e *Extractor) ExtractLinks(body []byte, baseURL string) ([]string, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base url: %w", err)
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	seen := make(map[string]struct{})
	var links []string
	doc.Find(anchorSelector).Each(func(_ int, sel *goquery.Selection) {
		href, ok := sel.Attr("href")
		if !ok || strings.TrimSpace(href) == "" {
			return
		}
		resolved, err := crawler.ResolveURL(base, href)
		if err != nil || !crawler.IsCrawlable(resolved) {
			return
		}
		if _, dup := seen[resolved]; dup {
			return
		}
		seen[resolved] = struct{}{}
		links = append(links, resolved)
	})
	return links, nil
}
