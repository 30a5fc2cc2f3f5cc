package search

import (
	"net/url"
	"strings"
)

// NormalizeDomain lower-cases a host or URL and strips the scheme, port, path and
// a leading "www.".
func NormalizeDomain(raw string) string {
	s := strings.ToLower(strings.TrimSpace(raw))
	if s == "" {
		return ""
	}
	if strings.Contains(s, "://") {
		if u, err := url.Parse(s); err == nil {
			s = u.Host
		}
	}
	if i := strings.IndexAny(s, "/?#"); i >= 0 {
		s = s[:i]
	}
	if i := strings.LastIndex(s, ":"); i >= 0 {
		s = s[:i]
	}
	return strings.TrimPrefix(s, "www.")
}

// DomainSet is a normalized allow-list. An empty set allows everything.
type DomainSet map[string]struct{}

func NewDomainSet(domains []string) DomainSet {
	set := make(DomainSet, len(domains))
	for _, d := range domains {
		if d = NormalizeDomain(d); d != "" {
			set[d] = struct{}{}
		}
	}
	return set
}

// Allows reports whether the host of rawURL is in the set.
func (s DomainSet) Allows(rawURL string) bool {
	if len(s) == 0 {
		return true
	}
	_, ok := s[NormalizeDomain(rawURL)]
	return ok
}
