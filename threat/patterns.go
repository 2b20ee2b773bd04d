package threat

import "regexp"

// Category names a family of attack patterns.
type Category string

const (
	SQLInjection     Category = "sql_injection"
	XSS              Category = "xss"
	PathTraversal    Category = "path_traversal"
	CommandInjection Category = "command_injection"
)

// Pattern is one compiled detector within a category.
type Pattern struct {
	Category Category
	Source   string
	re       *regexp.Regexp
}

// Match reports whether s contains the pattern.
func (p Pattern) Match(s string) bool { return p.re.MatchString(s) }

var defaultPatternSources = []struct {
	category Category
	sources  []string
}{
	{SQLInjection, []string{
		`union\s+select`, `drop\s+table`, `insert\s+into`,
		`delete\s+from`, `update\s+set`, `exec\s*\(`,
		`sp_executesql`, `xp_cmdshell`,
	}},
	{XSS, []string{
		`<script[^>]*>`, `javascript:`, `onload\s*=`,
		`onerror\s*=`, `onclick\s*=`, `eval\s*\(`,
	}},
	{PathTraversal, []string{
		`\.\./`, `\.\.\\`, `%2e%2e%2f`, `%2e%2e%5c`,
	}},
	{CommandInjection, []string{
		`;\s*cat\s+`, `;\s*ls\s+`, `;\s*pwd`, `;\s*id`,
		`\|\s*cat\s+`, `\|\s*ls\s+`, `&&\s*cat\s+`,
	}},
}

// DefaultPatterns returns the built-in detector set in a stable order.
func DefaultPatterns() []Pattern {
	var out []Pattern
	for _, group := range defaultPatternSources {
		for _, src := range group.sources {
			out = append(out, MustPattern(group.category, src))
		}
	}
	return out
}

// NewPattern compiles a case-insensitive detector.
func NewPattern(category Category, source string) (Pattern, error) {
	re, err := regexp.Compile(`(?i)` + source)
	if err != nil {
		return Pattern{}, err
	}
	return Pattern{Category: category, Source: source, re: re}, nil
}

// MustPattern is like NewPattern but panics on a bad expression.
func MustPattern(category Category, source string) Pattern {
	p, err := NewPattern(category, source)
	if err != nil {
		panic(err)
	}
	return p
}

// DefaultBlockedAgents lists scanner user-agent substrings that are refused
// outright.
func DefaultBlockedAgents() []string {
	return []string{"sqlmap", "nikto", "nmap", "masscan", "zap", "burp", "w3af", "skipfish", "gobuster"}
}

// DefaultSuspiciousHeaders lists proxy-override headers that add to a score.
func DefaultSuspiciousHeaders() []string {
	return []string{"X-Forwarded-Host", "X-Original-URL", "X-Rewrite-URL"}
}

// DefaultCrawlerMarkers lists user-agent substrings that identify automated
// clients.
func DefaultCrawlerMarkers() []string {
	return []string{"bot", "crawler", "spider", "scraper"}
}
