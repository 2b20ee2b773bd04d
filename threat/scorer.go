package threat

import (
	"net/http"
	"strings"
)

const (
	PatternWeight          = 25
	SuspiciousHeaderWeight = 15
	CrawlerWeight          = 10
	MaxScore               = 100
)

// Match records one pattern hit.
type Match struct {
	Category Category
	Pattern  string
}

// Assessment is the outcome of scoring one request.
type Assessment struct {
	Score             int
	Matches           []Match
	SuspiciousHeaders []string
	Crawler           bool
}

// Categories returns the distinct matched categories in first-seen order.
func (a Assessment) Categories() []string {
	var out []string
	seen := make(map[Category]bool, len(a.Matches))
	for _, m := range a.Matches {
		if seen[m.Category] {
			continue
		}
		seen[m.Category] = true
		out = append(out, string(m.Category))
	}
	return out
}

// Scorer computes heuristic threat scores.
type Scorer struct {
	patterns          []Pattern
	suspiciousHeaders []string
	crawlerMarkers    []string
}

// NewScorer returns a scorer over patterns. A nil slice selects
// DefaultPatterns.
func NewScorer(patterns []Pattern) *Scorer {
	if patterns == nil {
		patterns = DefaultPatterns()
	}
	return &Scorer{
		patterns:          patterns,
		suspiciousHeaders: DefaultSuspiciousHeaders(),
		crawlerMarkers:    DefaultCrawlerMarkers(),
	}
}

// Score inspects the path, query, headers and user agent of req. Every
// matching pattern contributes PatternWeight; the presence of any suspicious
// proxy header contributes SuspiciousHeaderWeight once; a crawler user agent
// contributes CrawlerWeight.
func (s *Scorer) Score(req Request) Assessment {
	var a Assessment

	content := strings.ToLower(req.Path + " " + req.RawQuery)
	for _, p := range s.patterns {
		if p.Match(content) {
			a.Matches = append(a.Matches, Match{Category: p.Category, Pattern: p.Source})
			a.Score += PatternWeight
		}
	}

	for _, name := range s.suspiciousHeaders {
		if headerPresent(req.Header, name) {
			a.SuspiciousHeaders = append(a.SuspiciousHeaders, name)
		}
	}
	if len(a.SuspiciousHeaders) > 0 {
		a.Score += SuspiciousHeaderWeight
	}

	ua := strings.ToLower(req.UserAgent)
	for _, marker := range s.crawlerMarkers {
		if strings.Contains(ua, marker) {
			a.Crawler = true
			a.Score += CrawlerWeight
			break
		}
	}

	if a.Score > MaxScore {
		a.Score = MaxScore
	}
	return a
}

func headerPresent(h http.Header, name string) bool {
	if h == nil {
		return false
	}
	_, ok := h[http.CanonicalHeaderKey(name)]
	return ok
}
