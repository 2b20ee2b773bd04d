package authguard

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/MrEthical07/authguard/internal/rate"
	"github.com/MrEthical07/authguard/password"
	"github.com/MrEthical07/authguard/threat"
)

// Config holds every Engine tunable. Start from [DefaultConfig] and override
// fields; [Builder.Build] validates the result.
type Config struct {
	Token   TokenConfig
	Session SessionConfig
	Lockout LockoutConfig
	Threat  ThreatConfig
	Crypto  CryptoConfig
	Store   StoreConfig
	Audit   AuditConfig
	Metrics MetricsConfig
	Notify  NotifyConfig
}

/*
====================================
TOKEN CONFIG
====================================
*/

// TokenConfig configures access and refresh token signing.
type TokenConfig struct {
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	SigningMethod string // "hs256" (default) or "ed25519"
	PrivateKey    []byte
	PublicKey     []byte
	Issuer        string
	Audience      string
	// ClockSkew bounds how far in the future iat may lie.
	ClockSkew time.Duration
	KeyID     string
}

/*
====================================
SESSION CONFIG
====================================
*/

// SessionConfig configures session lifetimes and the concurrency cap.
type SessionConfig struct {
	MaxConcurrent int
	Timeout       time.Duration
	RememberMeTTL time.Duration
	// Retention keeps ended sessions readable after expiry.
	Retention time.Duration
}

/*
====================================
LOCKOUT CONFIG
====================================
*/

// LockoutConfig configures the failed-login state machine.
type LockoutConfig struct {
	Enabled     bool
	MaxAttempts int
	Duration    time.Duration
	// Window bounds how long failures count towards the threshold. Zero keeps
	// them until the next successful login.
	Window time.Duration
}

/*
====================================
THREAT CONFIG
====================================
*/

// ThreatConfig configures request scoring, rate limits and blocking.
type ThreatConfig struct {
	Enabled          bool
	BlockThreshold   int
	MonitorThreshold int
	HighThreatBlock  time.Duration
	RateLimitBlock   time.Duration
	MonitorTTL       time.Duration
	// RateLimits maps exact paths to rules such as "5/minute".
	RateLimits       map[string]string
	DefaultRateLimit string
	BlockedAgents    []string
	PublicPaths      []string
}

/*
====================================
CRYPTO CONFIG
====================================
*/

// CryptoConfig selects the password hasher and the master secret used for
// sealing and signing.
type CryptoConfig struct {
	PasswordHasher string // "bcrypt" (default) or "argon2id"
	BcryptCost     int
	Argon2         password.Argon2Config
	// MasterKey enables Engine.Seal/Open and Engine.Sign/VerifySignature.
	MasterKey  []byte
	SealerSalt []byte
}

/*
====================================
STORE CONFIG
====================================
*/

// StoreConfig configures Redis key namespacing and operation deadlines.
type StoreConfig struct {
	Prefix string
	// ThreatPrefix namespaces blocklist keys. Empty keeps the bare
	// blocked_ip:{ip} and threat_monitoring:{ip} keys.
	ThreatPrefix     string
	OperationTimeout time.Duration
}

// AuditConfig configures security event delivery.
type AuditConfig struct {
	Enabled     bool
	BufferSize  int
	DropIfFull  bool
	SinkTimeout time.Duration
}

// MetricsConfig toggles in-process counters.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

// NotifyConfig configures user notifications on security events.
type NotifyConfig struct {
	Enabled     bool
	QueueSize   int
	RatePerSec  float64
	Burst       int
	SendTimeout time.Duration
}

/*
====================================
DEFAULT CONFIG
====================================
*/

// DefaultConfig returns production defaults. Token keys are left empty and
// must be supplied.
func DefaultConfig() Config {
	return Config{
		Token: TokenConfig{
			AccessTTL:     15 * time.Minute,
			RefreshTTL:    30 * 24 * time.Hour,
			SigningMethod: "hs256",
			Issuer:        "makko-intelligence-auth",
			Audience:      "tumataxi-app",
			ClockSkew:     60 * time.Second,
		},
		Session: SessionConfig{
			MaxConcurrent: 3,
			Timeout:       120 * time.Minute,
			RememberMeTTL: 30 * 24 * time.Hour,
			Retention:     24 * time.Hour,
		},
		Lockout: LockoutConfig{
			Enabled:     true,
			MaxAttempts: 5,
			Duration:    30 * time.Minute,
		},
		Threat: ThreatConfig{
			Enabled:          true,
			BlockThreshold:   80,
			MonitorThreshold: 50,
			HighThreatBlock:  time.Hour,
			RateLimitBlock:   300 * time.Second,
			MonitorTTL:       time.Hour,
			RateLimits: map[string]string{
				"/auth/login":          "5/minute",
				"/auth/register":       "3/minute",
				"/auth/reset-password": "2/hour",
			},
			DefaultRateLimit: "100/minute",
			BlockedAgents:    threat.DefaultBlockedAgents(),
		},
		Crypto: CryptoConfig{
			PasswordHasher: "bcrypt",
			BcryptCost:     password.DefaultBcryptCost,
			Argon2:         password.DefaultArgon2Config(),
		},
		Store: StoreConfig{
			Prefix:           "ag",
			OperationTimeout: 2 * time.Second,
		},
		Audit: AuditConfig{
			Enabled:     true,
			BufferSize:  1024,
			DropIfFull:  true,
			SinkTimeout: 2 * time.Second,
		},
		Metrics: MetricsConfig{
			Enabled:                 true,
			EnableLatencyHistograms: true,
		},
		Notify: NotifyConfig{
			Enabled:     true,
			QueueSize:   256,
			RatePerSec:  10,
			Burst:       20,
			SendTimeout: 5 * time.Second,
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.Token.PrivateKey = cloneBytes(cfg.Token.PrivateKey)
	out.Token.PublicKey = cloneBytes(cfg.Token.PublicKey)
	out.Crypto.MasterKey = cloneBytes(cfg.Crypto.MasterKey)
	out.Crypto.SealerSalt = cloneBytes(cfg.Crypto.SealerSalt)
	if cfg.Threat.RateLimits != nil {
		out.Threat.RateLimits = make(map[string]string, len(cfg.Threat.RateLimits))
		for k, v := range cfg.Threat.RateLimits {
			out.Threat.RateLimits[k] = v
		}
	}
	out.Threat.BlockedAgents = append([]string(nil), cfg.Threat.BlockedAgents...)
	out.Threat.PublicPaths = append([]string(nil), cfg.Threat.PublicPaths...)
	return out
}

func cloneBytes(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

/*
====================================
VALIDATION
====================================
*/

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	// Token
	if c.Token.AccessTTL <= 0 {
		return errors.New("Token AccessTTL must be > 0")
	}
	if c.Token.RefreshTTL <= 0 {
		return errors.New("Token RefreshTTL must be > 0")
	}
	if c.Token.RefreshTTL <= c.Token.AccessTTL {
		return errors.New("Token RefreshTTL must exceed AccessTTL")
	}
	switch c.Token.SigningMethod {
	case "hs256":
		if len(c.Token.PrivateKey) < 32 {
			return errors.New("hs256 requires a PrivateKey of at least 32 bytes")
		}
	case "ed25519":
		if len(c.Token.PublicKey) == 0 {
			return errors.New("ed25519 requires PublicKey")
		}
	default:
		return errors.New("unsupported Token SigningMethod")
	}
	if c.Token.ClockSkew < 0 || c.Token.ClockSkew > 10*time.Minute {
		return errors.New("Token ClockSkew must be within [0, 10m]")
	}

	// Session
	if c.Session.MaxConcurrent < 0 {
		return errors.New("Session MaxConcurrent must be >= 0")
	}
	if c.Session.Timeout <= 0 {
		return errors.New("Session Timeout must be > 0")
	}
	if c.Session.RememberMeTTL < c.Session.Timeout {
		return errors.New("Session RememberMeTTL must be >= Timeout")
	}
	if c.Session.Retention < 0 {
		return errors.New("Session Retention must be >= 0")
	}

	// Lockout
	if c.Lockout.Enabled {
		if c.Lockout.MaxAttempts <= 0 {
			return errors.New("Lockout MaxAttempts must be > 0")
		}
		if c.Lockout.Duration <= 0 {
			return errors.New("Lockout Duration must be > 0")
		}
		if c.Lockout.Window < 0 {
			return errors.New("Lockout Window must be >= 0")
		}
	}

	// Threat
	if c.Threat.Enabled {
		if c.Threat.MonitorThreshold < 0 || c.Threat.BlockThreshold > 100 {
			return errors.New("Threat thresholds must lie within [0, 100]")
		}
		if c.Threat.MonitorThreshold >= c.Threat.BlockThreshold {
			return errors.New("Threat MonitorThreshold must be below BlockThreshold")
		}
		if c.Threat.HighThreatBlock <= 0 || c.Threat.RateLimitBlock <= 0 || c.Threat.MonitorTTL <= 0 {
			return errors.New("Threat block durations must be > 0")
		}
		if _, _, err := c.Threat.rules(); err != nil {
			return err
		}
	}

	// Crypto
	switch c.Crypto.PasswordHasher {
	case "bcrypt", "":
	case "argon2id":
		if c.Crypto.Argon2.Memory < 8*1024 {
			return errors.New("Crypto Argon2 Memory must be >= 8192 KB")
		}
		if c.Crypto.Argon2.Time < 1 || c.Crypto.Argon2.Parallelism < 1 {
			return errors.New("Crypto Argon2 Time and Parallelism must be >= 1")
		}
	default:
		return errors.New("Crypto PasswordHasher must be 'bcrypt' or 'argon2id'")
	}
	if len(c.Crypto.MasterKey) > 0 && len(c.Crypto.MasterKey) < 32 {
		return errors.New("Crypto MasterKey must be at least 32 bytes")
	}

	// Store
	if c.Store.Prefix == "" {
		return errors.New("Store Prefix must be set")
	}
	if c.Store.OperationTimeout <= 0 {
		return errors.New("Store OperationTimeout must be > 0")
	}

	// Audit
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0")
	}

	// Notify
	if c.Notify.Enabled {
		if c.Notify.QueueSize <= 0 {
			return errors.New("Notify QueueSize must be > 0")
		}
		if c.Notify.RatePerSec <= 0 || c.Notify.Burst <= 0 {
			return errors.New("Notify RatePerSec and Burst must be > 0")
		}
	}

	return nil
}

func (t ThreatConfig) rules() (map[string]rate.Rule, rate.Rule, error) {
	out := make(map[string]rate.Rule, len(t.RateLimits))
	for path, raw := range t.RateLimits {
		r, err := rate.ParseRule(raw)
		if err != nil {
			return nil, rate.Rule{}, fmt.Errorf("Threat RateLimits[%s]: %w", path, err)
		}
		out[path] = r
	}
	var def rate.Rule
	if strings.TrimSpace(t.DefaultRateLimit) != "" {
		r, err := rate.ParseRule(t.DefaultRateLimit)
		if err != nil {
			return nil, rate.Rule{}, fmt.Errorf("Threat DefaultRateLimit: %w", err)
		}
		def = r
	}
	return out, def, nil
}

// Lint returns advisory warnings for a configuration that validates but is
// weaker than the defaults.
func (c *Config) Lint() []string {
	var out []string
	if !c.Lockout.Enabled {
		out = append(out, "lockout is disabled; password guessing is only rate limited")
	}
	if c.Lockout.Enabled && c.Lockout.MaxAttempts > 10 {
		out = append(out, "lockout MaxAttempts above 10")
	}
	if !c.Threat.Enabled {
		out = append(out, "threat scoring is disabled")
	}
	if c.Token.AccessTTL > time.Hour {
		out = append(out, "access tokens live longer than one hour")
	}
	if c.Crypto.PasswordHasher != "argon2id" && c.Crypto.BcryptCost != 0 && c.Crypto.BcryptCost < 10 {
		out = append(out, "bcrypt cost below 10")
	}
	if c.Audit.Enabled && c.Audit.DropIfFull {
		out = append(out, "audit events are dropped when the buffer is full")
	}
	if c.Session.MaxConcurrent == 0 {
		out = append(out, "concurrent session cap is disabled")
	}
	return out
}
