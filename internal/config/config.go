// Package config loads process settings for the authguard binaries from an
// optional .env file, an optional YAML file and AUTHGUARD_* environment
// variables, in increasing precedence.
package config

import (
	"encoding/base64"
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/MrEthical07/authguard"
)

// EnvPrefix is prepended to every environment variable name.
const EnvPrefix = "AUTHGUARD"

// Settings is the flat process configuration.
type Settings struct {
	HTTPAddr        string        `mapstructure:"http_addr"`
	AllowedOrigins  []string      `mapstructure:"allowed_origins"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	SampleInterval  time.Duration `mapstructure:"sample_interval"`

	RedisAddr     string `mapstructure:"redis_addr"`
	RedisPassword string `mapstructure:"redis_password"`
	RedisDB       int    `mapstructure:"redis_db"`
	PostgresDSN   string `mapstructure:"postgres_dsn"`

	// SigningKey and PublicKey are base64 encoded.
	SigningKey    string        `mapstructure:"signing_key"`
	PublicKey     string        `mapstructure:"public_key"`
	SigningMethod string        `mapstructure:"signing_method"`
	Issuer        string        `mapstructure:"issuer"`
	AccessTTL     time.Duration `mapstructure:"access_ttl"`
	RefreshTTL    time.Duration `mapstructure:"refresh_ttl"`
	// MasterKey is base64 encoded; empty disables sealing and signing.
	MasterKey      string `mapstructure:"master_key"`
	PasswordHasher string `mapstructure:"password_hasher"`
	BcryptCost     int    `mapstructure:"bcrypt_cost"`

	MaxSessions     int           `mapstructure:"max_sessions"`
	SessionTimeout  time.Duration `mapstructure:"session_timeout"`
	LockoutEnabled  bool          `mapstructure:"lockout_enabled"`
	LockoutAttempts int           `mapstructure:"lockout_attempts"`
	LockoutDuration time.Duration `mapstructure:"lockout_duration"`
	ThreatEnabled   bool          `mapstructure:"threat_enabled"`
	BlockThreshold  int           `mapstructure:"block_threshold"`
	KeyPrefix       string        `mapstructure:"key_prefix"`
	// RegisterRoles are the roles self-service registration may request.
	// The first is the default; an empty list disables /auth/register.
	RegisterRoles []string `mapstructure:"register_roles"`

	AuditEnabled   bool `mapstructure:"audit_enabled"`
	NotifyEnabled  bool `mapstructure:"notify_enabled"`
	MetricsEnabled bool `mapstructure:"metrics_enabled"`

	LogLevel      string `mapstructure:"log_level"`
	LogFile       string `mapstructure:"log_file"`
	LogMaxSizeMB  int    `mapstructure:"log_max_size_mb"`
	LogMaxBackups int    `mapstructure:"log_max_backups"`
	LogMaxAgeDays int    `mapstructure:"log_max_age_days"`
	LogCompress   bool   `mapstructure:"log_compress"`
}

func setDefaults(v *viper.Viper) {
	def := authguard.DefaultConfig()

	v.SetDefault("http_addr", ":8080")
	v.SetDefault("allowed_origins", []string{})
	v.SetDefault("shutdown_timeout", 15*time.Second)
	v.SetDefault("sample_interval", 15*time.Second)

	v.SetDefault("redis_addr", "localhost:6379")
	v.SetDefault("redis_password", "")
	v.SetDefault("redis_db", 0)
	v.SetDefault("postgres_dsn", "")

	v.SetDefault("signing_key", "")
	v.SetDefault("public_key", "")
	v.SetDefault("signing_method", def.Token.SigningMethod)
	v.SetDefault("issuer", def.Token.Issuer)
	v.SetDefault("access_ttl", def.Token.AccessTTL)
	v.SetDefault("refresh_ttl", def.Token.RefreshTTL)
	v.SetDefault("master_key", "")
	v.SetDefault("password_hasher", def.Crypto.PasswordHasher)
	v.SetDefault("bcrypt_cost", def.Crypto.BcryptCost)

	v.SetDefault("max_sessions", def.Session.MaxConcurrent)
	v.SetDefault("session_timeout", def.Session.Timeout)
	v.SetDefault("lockout_enabled", def.Lockout.Enabled)
	v.SetDefault("lockout_attempts", def.Lockout.MaxAttempts)
	v.SetDefault("lockout_duration", def.Lockout.Duration)
	v.SetDefault("threat_enabled", def.Threat.Enabled)
	v.SetDefault("block_threshold", def.Threat.BlockThreshold)
	v.SetDefault("key_prefix", def.Store.Prefix)
	v.SetDefault("register_roles", []string{"passenger", "driver"})

	v.SetDefault("audit_enabled", def.Audit.Enabled)
	v.SetDefault("notify_enabled", def.Notify.Enabled)
	v.SetDefault("metrics_enabled", def.Metrics.Enabled)

	v.SetDefault("log_level", "info")
	v.SetDefault("log_file", "")
	v.SetDefault("log_max_size_mb", 100)
	v.SetDefault("log_max_backups", 5)
	v.SetDefault("log_max_age_days", 30)
	v.SetDefault("log_compress", true)
}

// Load reads envFile (ignored when missing), then configFile when non-empty,
// then the environment.
func Load(envFile, configFile string) (*Settings, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", envFile, err)
		}
	}

	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	s.AllowedOrigins = splitList(strings.Join(s.AllowedOrigins, ","))
	s.RegisterRoles = splitList(strings.Join(s.RegisterRoles, ","))
	return &s, nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// EngineConfig maps s onto authguard.DefaultConfig. Keys are decoded from
// base64; the result still goes through Builder validation.
func (s *Settings) EngineConfig() (authguard.Config, error) {
	cfg := authguard.DefaultConfig()

	key, err := decodeKey("signing_key", s.SigningKey)
	if err != nil {
		return cfg, err
	}
	pub, err := decodeKey("public_key", s.PublicKey)
	if err != nil {
		return cfg, err
	}
	master, err := decodeKey("master_key", s.MasterKey)
	if err != nil {
		return cfg, err
	}

	cfg.Token.PrivateKey = key
	cfg.Token.PublicKey = pub
	cfg.Token.SigningMethod = s.SigningMethod
	cfg.Token.Issuer = s.Issuer
	cfg.Token.AccessTTL = s.AccessTTL
	cfg.Token.RefreshTTL = s.RefreshTTL

	cfg.Crypto.MasterKey = master
	cfg.Crypto.PasswordHasher = s.PasswordHasher
	cfg.Crypto.BcryptCost = s.BcryptCost

	cfg.Session.MaxConcurrent = s.MaxSessions
	cfg.Session.Timeout = s.SessionTimeout

	cfg.Lockout.Enabled = s.LockoutEnabled
	cfg.Lockout.MaxAttempts = s.LockoutAttempts
	cfg.Lockout.Duration = s.LockoutDuration

	cfg.Threat.Enabled = s.ThreatEnabled
	cfg.Threat.BlockThreshold = s.BlockThreshold

	cfg.Store.Prefix = s.KeyPrefix
	cfg.Audit.Enabled = s.AuditEnabled
	cfg.Notify.Enabled = s.NotifyEnabled
	cfg.Metrics.Enabled = s.MetricsEnabled
	return cfg, nil
}

func decodeKey(name, raw string) ([]byte, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	b, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		if b, err = base64.RawURLEncoding.DecodeString(raw); err != nil {
			return nil, fmt.Errorf("%s: not base64", name)
		}
	}
	return b, nil
}
