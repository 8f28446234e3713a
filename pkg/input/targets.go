package input

import (
	"errors"
	"net/url"
	"path/filepath"
	"strings"
)

// ErrNoTarget is returned for an empty target.
var ErrNoTarget = errors.New("input: no target specified")

// ReportsDir is the parent of the default per-target output directories.
const ReportsDir = "reports"

// unsafeChars are replaced by "_" in directory names.
const unsafeChars = `:/\<>"|?*`

// NormalizeTarget trims raw and gives it an https:// scheme when it has none.
func NormalizeTarget(raw string) (string, error) {
	t := strings.TrimSpace(raw)
	if t == "" {
		return "", ErrNoTarget
	}
	if !strings.Contains(t, "://") {
		t = "https://" + t
	}
	u, err := url.Parse(t)
	if err != nil {
		return "", err
	}
	if u.Host == "" {
		return "", ErrNoTarget
	}
	return t, nil
}

// DirName is the directory name of a target: its host, plus its path when
// there is one, with unsafe characters replaced by "_".
// "https://site.test:8443/docs/v2/" becomes "site.test_8443_docs_v2".
func DirName(target string) string {
	u, err := url.Parse(target)
	if err != nil || u.Host == "" {
		return sanitize(target)
	}
	name := sanitize(u.Host)
	if p := strings.Trim(u.Path, "/"); p != "" {
		name += "_" + sanitize(p)
	}
	return name
}

// OutputDir is the default output directory of target.
func OutputDir(target string) string {
	return filepath.Join(ReportsDir, DirName(target))
}

func sanitize(s string) string {
	return strings.Map(func(r rune) rune {
		if strings.ContainsRune(unsafeChars, r) {
			return '_'
		}
		return r
	}, s)
}
