// Package links extracts navigable URLs from HTML pages.
package links

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/soda-recon/soda/pkg/defaults"
	"github.com/soda-recon/soda/pkg/scope"
)

// skippedPrefixes are hrefs that never name a page.
var skippedPrefixes = []string{"javascript:", "mailto:", "tel:", "data:", "#", "{"}

// Extract returns the absolute http(s) URLs referenced by any element with
// an href in html, resolved against baseURL. Fragments are stripped and the
// query is kept. Static assets are dropped. With sameDomainOnly, links to
// hosts other than baseURL's (ignoring a leading "www.") are dropped.
// Order is first-seen; duplicates are removed. Unparsable input yields nil.
func Extract(html, baseURL string, sameDomainOnly bool) []string {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil
	}
	baseHost := scope.StripWWW(base.Host)

	var out []string
	seen := make(map[string]struct{})
	doc.Find("[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		href = strings.TrimSpace(href)
		if hasSkippedPrefix(href) {
			return
		}

		u, err := base.Parse(href)
		if err != nil || !scope.IsHTTP(u) {
			return
		}
		if sameDomainOnly && scope.StripWWW(u.Host) != baseHost {
			return
		}
		if IsStatic(u.Path) {
			return
		}

		u.Fragment = ""
		u.RawFragment = ""
		key := u.Scheme + "://" + u.Host + u.EscapedPath()
		if u.RawQuery != "" {
			key += "?" + u.RawQuery
		}
		if _, dup := seen[key]; dup {
			return
		}
		seen[key] = struct{}{}
		out = append(out, key)
	})
	return out
}

func hasSkippedPrefix(href string) bool {
	for _, p := range skippedPrefixes {
		if strings.HasPrefix(href, p) {
			return true
		}
	}
	return false
}

// IsStatic reports whether path ends in a static-asset extension.
func IsStatic(path string) bool {
	lower := strings.ToLower(path)
	for _, ext := range defaults.StaticExtensions {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}
	return false
}
