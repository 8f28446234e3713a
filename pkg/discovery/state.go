package discovery

import (
	"context"
	"maps"
	"net/url"
	"slices"
	"strconv"
	"strings"

	"github.com/soda-recon/soda/pkg/defaults"
	"github.com/soda-recon/soda/pkg/result"
	"github.com/soda-recon/soda/pkg/scope"
)

type set map[string]struct{}

func (s set) has(u string) bool { _, ok := s[u]; return ok }
func (s set) add(u string)      { s[u] = struct{}{} }
func (s set) sorted() []string  { return slices.Sorted(maps.Keys(s)) }

// state is the bookkeeping of one run. Every URL in it is canonical except
// the root, which is kept as given.
type state struct {
	scope       *scope.Scope
	root        string
	maxChildren int

	levels    map[int]set
	known     set
	visited   set
	pending   set
	files     set
	truncated []string
	cutDirs   []string
	pages     int

	params     *result.ParamIndex
	subdomains result.SubdomainSet
}

func newState(sc *scope.Scope, root string, maxChildren int) *state {
	s := &state{
		scope:       sc,
		root:        root,
		maxChildren: maxChildren,
		levels:      make(map[int]set),
		known:       set{},
		visited:     set{},
		pending:     set{},
		files:       set{},
		params:      result.NewParamIndex(defaults.MaxParamValues),
		subdomains:  result.SubdomainSet{},
	}
	s.known.add(root)
	s.visited.add(root)
	return s
}

// level returns level l, creating it.
func (s *state) level(l int) set {
	lv, ok := s.levels[l]
	if !ok {
		lv = set{}
		s.levels[l] = lv
	}
	return lv
}

// inScope records the subdomain or GET parameters of link and returns its
// canonical form when it belongs to the target site.
func (s *state) inScope(link string) (string, bool) {
	u, err := url.Parse(link)
	if err != nil || !scope.IsHTTP(u) {
		return "", false
	}
	switch s.scope.ClassifyURL(u) {
	case scope.Subdomain:
		s.subdomains.Add(scope.SubdomainName(u))
		return "", false
	case scope.Foreign:
		return "", false
	}
	s.params.Record(u)
	return scope.Canonical(link), true
}

func (s *state) addFile(u string) {
	if !s.known.has(u) {
		s.files.add(u)
		s.known.add(u)
	}
}

func (s *state) addToLevel(u string, l int) {
	if !s.known.has(u) && !s.underCut(u) {
		s.level(l).add(u)
		s.known.add(u)
	}
}

// underCut reports whether u lies below a directory that was truncated.
// Nothing below a truncation marker is explored.
func (s *state) underCut(u string) bool {
	for _, dir := range s.cutDirs {
		if u != dir && strings.HasPrefix(u, dir) {
			return true
		}
	}
	return false
}

// admitAncestor adds the level-l directory above u to level l.
func (s *state) admitAncestor(u string, l int) {
	a := scope.AncestorAt(u, l)
	if a == "" || s.scope.Excluded(a) {
		return
	}
	s.addToLevel(a, l)
}

// seed sorts the phase 0 candidates into level 1, files and pending.
func (s *state) seed(candidates []string) {
	s.level(1)
	for _, c := range candidates {
		u, ok := s.inScope(c)
		if !ok || s.known.has(u) || s.scope.Excluded(u) {
			continue
		}
		switch depth := scope.Depth(u); {
		case depth == 0:
		case depth == 1:
			if scope.IsDirectory(u) {
				s.addToLevel(u, 1)
			} else {
				s.addFile(u)
			}
		default:
			s.admitAncestor(u, 1)
			if scope.IsDirectory(u) {
				s.pending.add(u)
			} else {
				s.addFile(u)
			}
		}
	}
}

// parentOf is the directory a level-l URL is grouped under.
func (s *state) parentOf(u string, l int) string {
	if l == 1 {
		return s.root
	}
	if p := scope.AncestorAt(u, l-1); p != "" {
		return p
	}
	return s.root
}

// truncation is one directory collapsed into its marker.
type truncation struct {
	parent   string
	marker   string
	children int
}

// plan groups the unvisited URLs of level l by parent. Groups larger than
// maxChildren are truncated: their children leave the level and Known so
// they are never fetched. It returns the URLs to visit, the truncations and
// how many URLs were unvisited before grouping.
func (s *state) plan(l int) (visit []string, cut []truncation, unvisited int) {
	groups := make(map[string][]string)
	for _, u := range s.level(l).sorted() {
		if s.visited.has(u) {
			continue
		}
		unvisited++
		p := s.parentOf(u, l)
		groups[p] = append(groups[p], u)
	}

	for _, parent := range slices.Sorted(maps.Keys(groups)) {
		children := groups[parent]
		if len(children) <= s.maxChildren {
			visit = append(visit, children...)
			continue
		}
		for _, c := range children {
			delete(s.levels[l], c)
			delete(s.known, c)
		}
		s.cutDirs = append(s.cutDirs, strings.TrimRight(parent, "/")+"/")
		cut = append(cut, truncation{parent: parent, marker: s.addMarker(parent), children: len(children)})
	}
	return visit, cut, unvisited
}

func (s *state) addMarker(parent string) string {
	m := scope.TruncationMarker(parent)
	if !slices.Contains(s.truncated, m) {
		s.truncated = append(s.truncated, m)
	}
	return m
}

// expand sorts the links of a page into level target, files and pending.
func (s *state) expand(ctx context.Context, links []string, target int) {
	for _, link := range links {
		if ctx.Err() != nil {
			return
		}
		u, ok := s.inScope(link)
		if !ok || s.visited.has(u) || s.scope.Excluded(u) {
			continue
		}
		switch depth := scope.Depth(u); {
		case depth == target:
			if scope.IsDirectory(u) {
				s.addToLevel(u, target)
			} else {
				s.addFile(u)
			}
		case depth > target:
			s.admitAncestor(u, target)
			if !scope.IsDirectory(u) {
				s.addFile(u)
			} else if !s.known.has(u) && !s.underCut(u) {
				s.pending.add(u)
			}
		}
	}
}

// reconcile moves pending URLs that sit exactly at level target into it
// and admits the level-target ancestor of deeper ones, which stay pending.
// Pending URLs below a truncated directory are dropped.
func (s *state) reconcile(ctx context.Context, target int) {
	next := set{}
	for _, p := range s.pending.sorted() {
		if ctx.Err() != nil {
			break
		}
		if s.scope.Classify(p) != scope.SameSite || s.visited.has(p) || s.scope.Excluded(p) || s.underCut(p) {
			continue
		}
		switch depth := scope.Depth(p); {
		case depth == target:
			s.addToLevel(p, target)
		case depth > target:
			s.admitAncestor(p, target)
			next.add(p)
		}
	}
	s.pending = next
}

// assemble builds the ordered URL list: the root, each level sorted, files
// grouped by directory, then the truncation markers.
func (s *state) assemble() (urls []string, byLevel map[string][]string, maxReached int) {
	urls = []string{s.root}
	seen := set{s.root: {}}
	byLevel = make(map[string][]string, len(s.levels))

	for _, l := range slices.Sorted(maps.Keys(s.levels)) {
		list := s.levels[l].sorted()
		if list == nil {
			list = []string{}
		}
		byLevel[strconv.Itoa(l)] = list
		for _, u := range list {
			if !seen.has(u) {
				seen.add(u)
				urls = append(urls, u)
			}
		}
		if len(list) > 0 {
			maxReached = l
		}
	}

	byParent := make(map[string][]string)
	for _, f := range s.files.sorted() {
		p := scope.ParentDir(f)
		byParent[p] = append(byParent[p], f)
	}
	for _, parent := range slices.Sorted(maps.Keys(byParent)) {
		files := byParent[parent]
		if len(files) > s.maxChildren {
			s.addMarker(parent)
			continue
		}
		for _, f := range files {
			if !seen.has(f) {
				seen.add(f)
				urls = append(urls, f)
			}
		}
	}

	for _, m := range s.truncated {
		if !seen.has(m) {
			seen.add(m)
			urls = append(urls, m)
		}
	}
	return urls, byLevel, maxReached
}
