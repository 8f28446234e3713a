// Package scope holds the URL geometry shared by both traversal engines:
// canonical forms, directory depth and ancestry, directory/file
// classification, and the domain boundary of a target.
package scope

import (
	"net/url"
	"strings"
)

// Canonical returns rawURL without its query string and fragment. It is the
// dedup key of every traversal set. Canonical is idempotent.
func Canonical(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		s, _, _ := strings.Cut(rawURL, "#")
		s, _, _ = strings.Cut(s, "?")
		return s
	}
	return u.Scheme + "://" + u.Host + u.EscapedPath()
}

// segments returns the non-empty path segments of rawURL.
func segments(rawURL string) []string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil
	}
	var parts []string
	for _, p := range strings.Split(u.EscapedPath(), "/") {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return parts
}

// Depth is the number of non-empty path segments of rawURL.
func Depth(rawURL string) int {
	return len(segments(rawURL))
}

// IsDirectory reports whether rawURL looks like a directory: the root, a
// trailing slash, or a last segment without a dot.
func IsDirectory(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	path := u.EscapedPath()
	if path == "" || path == "/" || strings.HasSuffix(path, "/") {
		return true
	}
	last := path[strings.LastIndex(path, "/")+1:]
	return !strings.Contains(last, ".")
}

// AncestorAt returns the directory of rawURL made of its first level path
// segments, with a trailing slash: AncestorAt("http://h/a/b/c", 1) is
// "http://h/a/". It returns "" when rawURL is shallower than level.
func AncestorAt(rawURL string, level int) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	parts := segments(rawURL)
	if len(parts) < level {
		return ""
	}
	if level <= 0 {
		return u.Scheme + "://" + u.Host + "/"
	}
	return u.Scheme + "://" + u.Host + "/" + strings.Join(parts[:level], "/") + "/"
}

// ParentDir returns the directory containing rawURL's last path segment:
// ParentDir("http://h/a/b.html") is "http://h/a/".
func ParentDir(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	path := u.EscapedPath()
	if path == "" {
		path = "/"
	}
	return u.Scheme + "://" + u.Host + path[:strings.LastIndex(path, "/")+1]
}

// TruncationMarker is the "parent/*" record that replaces an over-dense
// directory's children.
func TruncationMarker(parent string) string {
	return strings.TrimRight(parent, "/") + "/*"
}

// IsHTTP reports whether u is an absolute http(s) URL.
func IsHTTP(u *url.URL) bool {
	return u != nil && u.Host != "" && (u.Scheme == "http" || u.Scheme == "https")
}

// StartURL gives a bare-host URL its root path: "http://h" becomes
// "http://h/". Anything else is returned unchanged.
func StartURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Path != "" || u.Host == "" {
		return raw
	}
	u.Path = "/"
	return u.String()
}
