package authguard

import "time"

// SecurityReport summarizes the effective security posture of an Engine.
type SecurityReport struct {
	SigningAlgorithm string
	AccessTTL        time.Duration
	RefreshTTL       time.Duration

	PasswordHasher string
	BcryptCost     int
	Argon2         PasswordConfigReport

	LockoutEnabled     bool
	LockoutMaxAttempts int
	LockoutDuration    time.Duration

	MaxConcurrentSessions int
	SessionTimeout        time.Duration

	ThreatScoringEnabled bool
	BlockThreshold       int
	RateLimitedPaths     int

	SecretSealingEnabled bool
	AuditBuffered        bool
	NotificationsEnabled bool

	Warnings []string
}

// PasswordConfigReport mirrors the argon2id parameters.
type PasswordConfigReport struct {
	Memory      uint32
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// SecurityReport returns the posture summary with any lint warnings.
func (e *Engine) SecurityReport() SecurityReport {
	if e == nil {
		return SecurityReport{}
	}
	c := e.config

	r := SecurityReport{
		SigningAlgorithm: c.Token.SigningMethod,
		AccessTTL:        c.Token.AccessTTL,
		RefreshTTL:       c.Token.RefreshTTL,
		PasswordHasher:   c.Crypto.PasswordHasher,

		LockoutEnabled: c.Lockout.Enabled,

		MaxConcurrentSessions: c.Session.MaxConcurrent,
		SessionTimeout:        c.Session.Timeout,

		ThreatScoringEnabled: c.Threat.Enabled,

		SecretSealingEnabled: e.sealer != nil,
		AuditBuffered:        e.audit != nil,
		NotificationsEnabled: e.notifier != nil,

		Warnings: c.Lint(),
	}
	if r.PasswordHasher == "" {
		r.PasswordHasher = "bcrypt"
	}
	if r.PasswordHasher == "argon2id" {
		r.Argon2 = PasswordConfigReport{
			Memory:      c.Crypto.Argon2.Memory,
			Time:        c.Crypto.Argon2.Time,
			Parallelism: c.Crypto.Argon2.Parallelism,
			SaltLength:  c.Crypto.Argon2.SaltLength,
			KeyLength:   c.Crypto.Argon2.KeyLength,
		}
	} else {
		r.BcryptCost = c.Crypto.BcryptCost
	}
	if r.LockoutEnabled {
		r.LockoutMaxAttempts = c.Lockout.MaxAttempts
		r.LockoutDuration = c.Lockout.Duration
	}
	if r.ThreatScoringEnabled {
		r.BlockThreshold = c.Threat.BlockThreshold
		r.RateLimitedPaths = len(c.Threat.RateLimits)
	}
	return r
}
