package permission

import (
	"fmt"
	"sort"
	"strings"
)

type endpointPattern struct {
	method    string
	segments  []string
	wildcards int
	key       string
	perm      string
}

// EndpointMap maps "METHOD:/path" keys to required permissions.
type EndpointMap struct {
	exact    map[string]string
	patterns []endpointPattern
}

// NewEndpointMap validates and indexes entries.
func NewEndpointMap(entries map[string]string) (*EndpointMap, error) {
	m := &EndpointMap{exact: make(map[string]string, len(entries))}

	for key, perm := range entries {
		method, path, ok := strings.Cut(key, ":")
		if !ok || method == "" || !strings.HasPrefix(path, "/") {
			return nil, fmt.Errorf("%w: %q", ErrInvalidEndpoint, key)
		}
		if err := Validate(perm); err != nil {
			return nil, fmt.Errorf("endpoint %q: %w", key, err)
		}
		method = strings.ToUpper(method)

		segs := splitPath(path)
		wild := 0
		for _, s := range segs {
			if s == "*" {
				wild++
			}
		}
		if wild == 0 {
			m.exact[method+":"+path] = perm
			continue
		}
		m.patterns = append(m.patterns, endpointPattern{
			method:    method,
			segments:  segs,
			wildcards: wild,
			key:       method + ":" + path,
			perm:      perm,
		})
	}

	sort.Slice(m.patterns, func(i, j int) bool {
		if m.patterns[i].wildcards != m.patterns[j].wildcards {
			return m.patterns[i].wildcards < m.patterns[j].wildcards
		}
		return m.patterns[i].key < m.patterns[j].key
	})
	return m, nil
}

// Resolve returns the permission required by method and path. ok is false
// when no entry applies.
func (m *EndpointMap) Resolve(method, path string) (perm string, ok bool) {
	if m == nil {
		return "", false
	}
	method = strings.ToUpper(method)
	if perm, ok := m.exact[method+":"+path]; ok {
		return perm, true
	}

	segs := splitPath(path)
	for _, p := range m.patterns {
		if p.method == method && p.matches(segs) {
			return p.perm, true
		}
	}
	return "", false
}

func (p endpointPattern) matches(segs []string) bool {
	if len(segs) != len(p.segments) {
		return false
	}
	for i, want := range p.segments {
		if want == "*" {
			if segs[i] == "" {
				return false
			}
			continue
		}
		if want != segs[i] {
			return false
		}
	}
	return true
}

func splitPath(path string) []string {
	return strings.Split(strings.TrimPrefix(path, "/"), "/")
}

// PublicPaths is a set of path prefixes that bypass authorization.
type PublicPaths []string

// IsPublic reports whether path equals a listed prefix or lies beneath it.
func (pp PublicPaths) IsPublic(path string) bool {
	for _, p := range pp {
		if path == p || strings.HasPrefix(path, strings.TrimSuffix(p, "/")+"/") {
			return true
		}
	}
	return false
}
