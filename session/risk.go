package session

import (
	"sort"
	"time"
)

const (
	// NewCountryRisk is the minimum risk for a login from an unseen country.
	NewCountryRisk = 75
	// ConcurrencyRisk is the minimum risk when the session cap is reached.
	ConcurrencyRisk = 50
)

// Policy configures session lifetimes and the concurrency cap.
type Policy struct {
	MaxConcurrent int
	Timeout       time.Duration
	RememberMeTTL time.Duration
}

// DefaultPolicy returns a 3 session cap, 120 minute sessions, and 30 day
// remember-me sessions.
func DefaultPolicy() Policy {
	return Policy{
		MaxConcurrent: 3,
		Timeout:       120 * time.Minute,
		RememberMeTTL: 30 * 24 * time.Hour,
	}
}

// Expiry returns the expiry for a session created at now.
func (p Policy) Expiry(now time.Time, rememberMe bool) time.Time {
	if rememberMe {
		return now.Add(p.RememberMeTTL)
	}
	return now.Add(p.Timeout)
}

// Assessment is the outcome of evaluating a new session.
type Assessment struct {
	NewCountry        bool
	PreviousCountries []string
	CapReached        bool
	Evict             *Session
}

// Risk applies the login anomaly rules.
type Risk struct {
	policy Policy
}

// NewRisk returns a Risk evaluator for policy.
func NewRisk(policy Policy) *Risk {
	return &Risk{policy: policy}
}

// Policy returns the evaluator's policy.
func (r *Risk) Policy() Policy {
	return r.policy
}

// Evaluate applies the new-country and concurrency rules to candidate, given
// the user's currently active sessions. It mutates candidate's risk fields and
// never touches active.
func (r *Risk) Evaluate(candidate *Session, active []*Session) Assessment {
	var a Assessment

	seen := make(map[string]struct{}, len(active))
	for _, s := range active {
		if s.Country == "" {
			continue
		}
		if _, ok := seen[s.Country]; !ok {
			seen[s.Country] = struct{}{}
			a.PreviousCountries = append(a.PreviousCountries, s.Country)
		}
	}
	sort.Strings(a.PreviousCountries)

	if len(seen) > 0 && candidate.Country != "" {
		if _, ok := seen[candidate.Country]; !ok {
			a.NewCountry = true
			candidate.IsSuspicious = true
			candidate.RaiseRisk(NewCountryRisk)
		}
	}

	if r.policy.MaxConcurrent > 0 && len(active) >= r.policy.MaxConcurrent {
		a.CapReached = true
		candidate.RaiseRisk(ConcurrencyRisk)
		a.Evict = Oldest(active)
	}

	return a
}

// Oldest returns the session with the earliest creation time. Ties are broken
// by session id so the choice is deterministic.
func Oldest(sessions []*Session) *Session {
	var oldest *Session
	for _, s := range sessions {
		if s == nil {
			continue
		}
		if oldest == nil ||
			s.CreatedAt.Before(oldest.CreatedAt) ||
			(s.CreatedAt.Equal(oldest.CreatedAt) && s.ID < oldest.ID) {
			oldest = s
		}
	}
	return oldest
}
