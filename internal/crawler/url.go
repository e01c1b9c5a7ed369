package crawler

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// ErrNotAbsolute is returned when a URL has no scheme or host.
var ErrNotAbsolute = errors.New("url is not absolute")

// NormalizeURL standardizes an absolute URL so equal resources compare equal as strings.
// It lowercases the scheme and host, removes default ports and drops the fragment.
// Path and query are kept as given.
func NormalizeURL(rawURL string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return "", fmt.Errorf("parse url: %w", err)
	}
	if !isAbsolute(u) {
		return "", fmt.Errorf("%q: %w", rawURL, ErrNotAbsolute)
	}
	return normalize(u), nil
}

// ResolveURL resolves href against base and normalizes the result.
func ResolveURL(base *url.URL, href string) (string, error) {
	ref, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return "", fmt.Errorf("parse href: %w", err)
	}
	resolved := base.ResolveReference(ref)
	if !isAbsolute(resolved) {
		return "", fmt.Errorf("%q: %w", href, ErrNotAbsolute)
	}
	return normalize(resolved), nil
}

// IsAbsoluteURL reports whether raw parses as a URL with both a scheme and a host.
func IsAbsoluteURL(raw string) bool {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return false
	}
	return isAbsolute(u)
}

// IsCrawlable reports whether the URL uses a scheme the fetcher can retrieve.
func IsCrawlable(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return u.Scheme == "http" || u.Scheme == "https"
}

func isAbsolute(u *url.URL) bool {
	return u.Scheme != "" && u.Host != ""
}

func normalize(u *url.URL) string {
	n := *u
	n.Scheme = strings.ToLower(n.Scheme)
	n.Host = strings.ToLower(n.Host)

	if n.Scheme == "http" && strings.HasSuffix(n.Host, ":80") {
		n.Host = strings.TrimSuffix(n.Host, ":80")
	}
	if n.Scheme == "https" && strings.HasSuffix(n.Host, ":443") {
		n.Host = strings.TrimSuffix(n.Host, ":443")
	}

	n.Fragment = ""
	n.RawFragment = ""
	return n.String()
}
