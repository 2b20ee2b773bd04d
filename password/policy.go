package password

import (
	"errors"
	"strings"
	"unicode"
	"unicode/utf8"
)

const specialChars = "!@#$%^&*()_+-=[]{}|;:,.<>?"

var commonPatterns = []string{
	"password", "123456", "qwerty", "admin", "letmein",
	"welcome", "monkey", "dragon", "master", "shadow",
}

var (
	ErrTooShort       = errors.New("password too short")
	ErrTooLong        = errors.New("password too long")
	ErrMissingUpper   = errors.New("password needs an uppercase letter")
	ErrMissingLower   = errors.New("password needs a lowercase letter")
	ErrMissingDigit   = errors.New("password needs a digit")
	ErrMissingSpecial = errors.New("password needs a special character")
)

// Policy describes the composition rules new passwords must meet.
type Policy struct {
	MinLength      int
	MaxLength      int
	RequireUpper   bool
	RequireLower   bool
	RequireDigit   bool
	RequireSpecial bool
}

// DefaultPolicy returns the 12..128 character, four-class policy.
func DefaultPolicy() Policy {
	return Policy{
		MinLength:      12,
		MaxLength:      128,
		RequireUpper:   true,
		RequireLower:   true,
		RequireDigit:   true,
		RequireSpecial: true,
	}
}

// Report is the outcome of a policy check.
type Report struct {
	Valid    bool
	Errors   []error
	Warnings []string
	Strength int
}

// Validate checks pw against the policy and computes a 0..100 strength score.
func (p Policy) Validate(pw string) Report {
	r := Report{Valid: true}
	fail := func(err error) {
		r.Valid = false
		r.Errors = append(r.Errors, err)
	}

	n := utf8.RuneCountInString(pw)
	if p.MinLength > 0 && n < p.MinLength {
		fail(ErrTooShort)
	}
	if p.MaxLength > 0 && n > p.MaxLength {
		fail(ErrTooLong)
	}

	var upper, lower, digit, special bool
	unique := make(map[rune]struct{}, n)
	for _, c := range pw {
		unique[c] = struct{}{}
		switch {
		case unicode.IsUpper(c):
			upper = true
		case unicode.IsLower(c):
			lower = true
		case unicode.IsDigit(c):
			digit = true
		case strings.ContainsRune(specialChars, c):
			special = true
		}
	}

	if p.RequireUpper && !upper {
		fail(ErrMissingUpper)
	}
	if p.RequireLower && !lower {
		fail(ErrMissingLower)
	}
	if p.RequireDigit && !digit {
		fail(ErrMissingDigit)
	}
	if p.RequireSpecial && !special {
		fail(ErrMissingSpecial)
	}

	score := min(n*2, 25)
	if upper {
		score += 10
	}
	if lower {
		score += 10
	}
	if digit {
		score += 15
	}
	if special {
		score += 20
	}
	score += min(len(unique)*2, 20)
	score = min(score, 100)

	switch {
	case score < 60:
		r.Warnings = append(r.Warnings, "weak")
	case score < 80:
		r.Warnings = append(r.Warnings, "moderate")
	}

	lowered := strings.ToLower(pw)
	for _, pattern := range commonPatterns {
		if strings.Contains(lowered, pattern) {
			r.Warnings = append(r.Warnings, "common pattern")
			score = max(0, score-20)
			break
		}
	}

	r.Strength = score
	return r
}

// Err joins the policy violations, or returns nil when the password is valid.
func (r Report) Err() error {
	if r.Valid {
		return nil
	}
	return errors.Join(r.Errors...)
}
