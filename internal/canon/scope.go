package canon

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/gobwas/glob"
)

// Scope decides whether a URL belongs to a crawl job's allowed area. The zero
// value and a nil *Scope allow everything.
type Scope struct {
	exact    map[string]struct{}
	suffixes []string
	include  []glob.Glob
	exclude  []glob.Glob
}

// NewScope compiles a domain allow-list and include/exclude glob patterns.
// Domain entries match the host exactly or any subdomain of it; a leading
// "*." or "." is accepted and means the same thing. Patterns support * and ?
// and match the whole URL, case-insensitively.
func NewScope(domains, include, exclude []string) (*Scope, error) {
	s := &Scope{exact: make(map[string]struct{})}
	for _, raw := range domains {
		value := strings.TrimSpace(strings.ToLower(raw))
		value = strings.TrimPrefix(value, "*.")
		value = strings.Trim(value, ".")
		if value == "" {
			continue
		}
		s.exact[value] = struct{}{}
		s.suffixes = append(s.suffixes, "."+value)
	}
	var err error
	if s.include, err = compilePatterns(include); err != nil {
		return nil, fmt.Errorf("include patterns: %w", err)
	}
	if s.exclude, err = compilePatterns(exclude); err != nil {
		return nil, fmt.Errorf("exclude patterns: %w", err)
	}
	return s, nil
}

func compilePatterns(patterns []string) ([]glob.Glob, error) {
	var out []glob.Glob
	for _, raw := range patterns {
		p := strings.TrimSpace(strings.ToLower(raw))
		if p == "" {
			continue
		}
		g, err := glob.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("compile %q: %w", raw, err)
		}
		out = append(out, g)
	}
	return out, nil
}

// AllowsHost applies the domain allow-list.
func (s *Scope) AllowsHost(host string) bool {
	if s == nil || len(s.exact) == 0 {
		return true
	}
	host = strings.TrimSuffix(strings.ToLower(host), ".")
	if _, ok := s.exact[host]; ok {
		return true
	}
	for _, suffix := range s.suffixes {
		if strings.HasSuffix(host, suffix) {
			return true
		}
	}
	return false
}

// MatchesPatterns applies the exclude and include lists to rawURL.
func (s *Scope) MatchesPatterns(rawURL string) bool {
	if s == nil {
		return true
	}
	target := strings.ToLower(rawURL)
	for _, g := range s.exclude {
		if g.Match(target) {
			return false
		}
	}
	if len(s.include) == 0 {
		return true
	}
	for _, g := range s.include {
		if g.Match(target) {
			return true
		}
	}
	return false
}

// Allows combines the host and pattern checks.
func (s *Scope) Allows(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	return s.AllowsHost(u.Hostname()) && s.MatchesPatterns(rawURL)
}
