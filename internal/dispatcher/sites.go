// Package dispatcher is the HTTP entry point: it maps hosts to distributors,
// resolves routes, runs the middleware pipeline, and invokes handlers.
package dispatcher

import (
	"net"
	"sort"
	"strings"
)

// SiteTable maps request hosts and path prefixes onto distributor ids. The
// table is immutable; hot reload swaps in a fresh one.
type SiteTable struct {
	// host -> path prefix -> "code@tag". The host "*" catches requests no
	// other entry claims.
	domains map[string]map[string]string
	// alias host -> canonical host
	aliases map[string]string

	// prefixes per host, longest first, precomputed for lookup
	ordered map[string][]string
}

// NewSiteTable builds a lookup table from domain and alias maps.
func NewSiteTable(domains map[string]map[string]string, aliases map[string]string) *SiteTable {
	t := &SiteTable{
		domains: make(map[string]map[string]string, len(domains)),
		aliases: make(map[string]string, len(aliases)),
		ordered: make(map[string][]string, len(domains)),
	}
	for host, routes := range domains {
		host = strings.ToLower(host)
		normalized := make(map[string]string, len(routes))
		prefixes := make([]string, 0, len(routes))
		for prefix, dist := range routes {
			prefix = "/" + strings.Trim(prefix, "/")
			normalized[prefix] = dist
			prefixes = append(prefixes, prefix)
		}
		sort.Slice(prefixes, func(i, j int) bool {
			if len(prefixes[i]) != len(prefixes[j]) {
				return len(prefixes[i]) > len(prefixes[j])
			}
			return prefixes[i] < prefixes[j]
		})
		t.domains[host] = normalized
		t.ordered[host] = prefixes
	}
	for alias, canonical := range aliases {
		t.aliases[strings.ToLower(alias)] = strings.ToLower(canonical)
	}
	return t
}

// Resolve maps (host, path) to a distributor id and the mount prefix that
// claimed the path. Aliases collapse to their canonical host first; within a
// host the longest matching path prefix wins.
func (t *SiteTable) Resolve(host, path string) (string, string, bool) {
	host = strings.ToLower(stripPort(host))
	if canonical, ok := t.aliases[host]; ok {
		host = canonical
	}

	if dist, mount, ok := t.resolveHost(host, path); ok {
		return dist, mount, true
	}
	return t.resolveHost("*", path)
}

func (t *SiteTable) resolveHost(host, path string) (string, string, bool) {
	routes, ok := t.domains[host]
	if !ok {
		return "", "", false
	}
	for _, prefix := range t.ordered[host] {
		if prefix == "/" || path == prefix || strings.HasPrefix(path, prefix+"/") {
			return routes[prefix], prefix, true
		}
	}
	return "", "", false
}

func stripPort(host string) string {
	if h, _, err := net.SplitHostPort(host); err == nil {
		return h
	}
	return host
}
