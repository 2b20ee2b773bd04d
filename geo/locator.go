package geo

import (
	"context"
	"fmt"
	"net/netip"
	"sort"
	"strings"
)

// Location is a coarse geographic position. The zero value means unknown.
type Location struct {
	Country string
	City    string
}

// Known reports whether the country is resolved.
func (l Location) Known() bool { return l.Country != "" }

// Locator resolves an IP address to a Location.
type Locator interface {
	Lookup(ctx context.Context, ip string) (Location, error)
}

// Unknown resolves every address to the zero Location.
type Unknown struct{}

func (Unknown) Lookup(context.Context, string) (Location, error) { return Location{}, nil }

type prefixEntry struct {
	prefix netip.Prefix
	loc    Location
}

// StaticLocator resolves addresses against a fixed table of prefixes using
// longest-prefix match.
type StaticLocator struct {
	entries []prefixEntry
}

// NewStaticLocator parses table keys as CIDR prefixes or single addresses.
// Country codes are upper-cased.
func NewStaticLocator(table map[string]Location) (*StaticLocator, error) {
	s := &StaticLocator{entries: make([]prefixEntry, 0, len(table))}
	for k, loc := range table {
		p, err := parsePrefix(k)
		if err != nil {
			return nil, err
		}
		loc.Country = strings.ToUpper(loc.Country)
		s.entries = append(s.entries, prefixEntry{prefix: p, loc: loc})
	}
	sort.Slice(s.entries, func(i, j int) bool {
		return s.entries[i].prefix.Bits() > s.entries[j].prefix.Bits()
	})
	return s, nil
}

// Lookup returns the location of the most specific matching prefix.
// Unparsable addresses resolve to the zero Location without error.
func (s *StaticLocator) Lookup(_ context.Context, ip string) (Location, error) {
	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return Location{}, nil
	}
	addr = addr.Unmap()
	for _, e := range s.entries {
		if e.prefix.Contains(addr) {
			return e.loc, nil
		}
	}
	return Location{}, nil
}

func parsePrefix(s string) (netip.Prefix, error) {
	if strings.Contains(s, "/") {
		p, err := netip.ParsePrefix(s)
		if err != nil {
			return netip.Prefix{}, fmt.Errorf("geo: invalid prefix %q: %w", s, err)
		}
		return p.Masked(), nil
	}
	addr, err := netip.ParseAddr(s)
	if err != nil {
		return netip.Prefix{}, fmt.Errorf("geo: invalid address %q: %w", s, err)
	}
	addr = addr.Unmap()
	return netip.PrefixFrom(addr, addr.BitLen()), nil
}
