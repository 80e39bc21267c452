package crawler

import (
	"fmt"
	"net/url"
	"strings"
)

// CanonicalURL standardizes a URL for seen-set membership: lowercased
// scheme and host, default ports stripped, fragment dropped, query sorted,
// trailing slash normalized. Two links to the same detail page must compare
// equal or the dedup invariant breaks.
func CanonicalURL(rawURL string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return "", fmt.Errorf("parse url: %w", err)
	}
	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	if u.Scheme == "http" {
		u.Host = strings.TrimSuffix(u.Host, ":80")
	}
	if u.Scheme == "https" {
		u.Host = strings.TrimSuffix(u.Host, ":443")
	}
	u.Fragment = ""
	u.RawQuery = u.Query().Encode()
	if u.Path != "/" {
		u.Path = strings.TrimSuffix(u.Path, "/")
	}
	return u.String(), nil
}

// ResolveLink makes href absolute against base. Used by adapters whose list
// pages emit relative detail links.
func ResolveLink(base, href string) (string, error) {
	b, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("parse base url: %w", err)
	}
	h, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return "", fmt.Errorf("parse href: %w", err)
	}
	return b.ResolveReference(h).String(), nil
}
