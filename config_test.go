package authguard

import (
	"strings"
	"testing"
	"time"
)

func TestDefaultConfigValues(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Token.AccessTTL != 15*time.Minute || cfg.Token.RefreshTTL != 30*24*time.Hour {
		t.Fatalf("unexpected token ttls: %v / %v", cfg.Token.AccessTTL, cfg.Token.RefreshTTL)
	}
	if cfg.Lockout.MaxAttempts != 5 || cfg.Lockout.Duration != 30*time.Minute {
		t.Fatalf("unexpected lockout defaults: %+v", cfg.Lockout)
	}
	if cfg.Session.MaxConcurrent != 3 || cfg.Session.Timeout != 120*time.Minute {
		t.Fatalf("unexpected session defaults: %+v", cfg.Session)
	}
	if cfg.Threat.RateLimits["/auth/reset-password"] != "2/hour" || cfg.Threat.DefaultRateLimit != "100/minute" {
		t.Fatalf("unexpected rate limits: %v", cfg.Threat.RateLimits)
	}

	// Keys are deliberately absent.
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected default config without a signing key to fail validation")
	}
	cfg.Token.PrivateKey = testSigningKey
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config with key: %v", err)
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*Config)
		wantValid bool
	}{
		{"baseline", func(*Config) {}, true},
		{"zero access ttl", func(c *Config) { c.Token.AccessTTL = 0 }, false},
		{"refresh not longer than access", func(c *Config) { c.Token.RefreshTTL = c.Token.AccessTTL }, false},
		{"short hmac key", func(c *Config) { c.Token.PrivateKey = []byte("tiny") }, false},
		{"unknown signing method", func(c *Config) { c.Token.SigningMethod = "rs256" }, false},
		{"ed25519 without public key", func(c *Config) { c.Token.SigningMethod = "ed25519" }, false},
		{"clock skew too large", func(c *Config) { c.Token.ClockSkew = time.Hour }, false},
		{"negative session cap", func(c *Config) { c.Session.MaxConcurrent = -1 }, false},
		{"uncapped sessions", func(c *Config) { c.Session.MaxConcurrent = 0 }, true},
		{"remember-me shorter than timeout", func(c *Config) { c.Session.RememberMeTTL = time.Minute }, false},
		{"lockout without attempts", func(c *Config) { c.Lockout.MaxAttempts = 0 }, false},
		{"lockout disabled ignores attempts", func(c *Config) {
			c.Lockout.Enabled = false
			c.Lockout.MaxAttempts = 0
		}, true},
		{"monitor above block", func(c *Config) { c.Threat.MonitorThreshold = 90 }, false},
		{"block threshold above 100", func(c *Config) { c.Threat.BlockThreshold = 120 }, false},
		{"bad rate rule", func(c *Config) { c.Threat.RateLimits["/x"] = "many/minute" }, false},
		{"bad default rule", func(c *Config) { c.Threat.DefaultRateLimit = "5/fortnight" }, false},
		{"unknown hasher", func(c *Config) { c.Crypto.PasswordHasher = "md5" }, false},
		{"weak argon2 memory", func(c *Config) {
			c.Crypto.PasswordHasher = "argon2id"
			c.Crypto.Argon2.Memory = 1024
		}, false},
		{"short master key", func(c *Config) { c.Crypto.MasterKey = []byte("short") }, false},
		{"empty prefix", func(c *Config) { c.Store.Prefix = "" }, false},
		{"zero op timeout", func(c *Config) { c.Store.OperationTimeout = 0 }, false},
		{"audit without buffer", func(c *Config) { c.Audit.BufferSize = 0 }, false},
		{"notify without rate", func(c *Config) { c.Notify.RatePerSec = 0 }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.Token.PrivateKey = testSigningKey
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantValid && err != nil {
				t.Fatalf("expected valid, got %v", err)
			}
			if !tt.wantValid && err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestConfigIsClonedByBuilder(t *testing.T) {
	cfg := testConfig()
	cfg.Token.PrivateKey = []byte(strings.Repeat("k", 32))
	cfg.Threat.RateLimits = map[string]string{"/auth/login": "5/minute"}
	b := New().WithConfig(cfg)

	cfg.Token.PrivateKey[0] = 'X'
	cfg.Threat.RateLimits["/auth/login"] = "1/hour"
	if b.config.Token.PrivateKey[0] == 'X' {
		t.Fatal("builder shares the caller's key buffer")
	}
	if b.config.Threat.RateLimits["/auth/login"] != "5/minute" {
		t.Fatal("builder shares the caller's rate limit map")
	}
}

func TestConfigLint(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Token.PrivateKey = testSigningKey
	cfg.Audit.DropIfFull = false
	if ws := cfg.Lint(); len(ws) != 0 {
		t.Fatalf("expected no warnings, got %v", ws)
	}

	cfg.Lockout.Enabled = false
	cfg.Threat.Enabled = false
	cfg.Crypto.BcryptCost = 6
	cfg.Session.MaxConcurrent = 0
	ws := cfg.Lint()
	for _, want := range []string{"lockout", "threat scoring", "bcrypt cost", "session cap"} {
		found := false
		for _, w := range ws {
			if strings.Contains(w, want) {
				found = true
			}
		}
		if !found {
			t.Errorf("missing warning about %q in %v", want, ws)
		}
	}
}
