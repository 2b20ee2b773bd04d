package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	s, err := Load("", "")
	require.NoError(t, err)

	assert.Equal(t, ":8080", s.HTTPAddr)
	assert.Equal(t, "localhost:6379", s.RedisAddr)
	assert.Equal(t, 15*time.Minute, s.AccessTTL)
	assert.True(t, s.LockoutEnabled)
	assert.Equal(t, "info", s.LogLevel)
	assert.Equal(t, []string{"passenger", "driver"}, s.RegisterRoles)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("AUTHGUARD_HTTP_ADDR", ":9090")
	t.Setenv("AUTHGUARD_ACCESS_TTL", "5m")
	t.Setenv("AUTHGUARD_LOCKOUT_ATTEMPTS", "7")
	t.Setenv("AUTHGUARD_ALLOWED_ORIGINS", "https://a.example, https://b.example")
	t.Setenv("AUTHGUARD_REGISTER_ROLES", "passenger")

	s, err := Load("", "")
	require.NoError(t, err)
	assert.Equal(t, ":9090", s.HTTPAddr)
	assert.Equal(t, 5*time.Minute, s.AccessTTL)
	assert.Equal(t, 7, s.LockoutAttempts)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, s.AllowedOrigins)
	assert.Equal(t, []string{"passenger"}, s.RegisterRoles)
}

func TestLoadDotEnvAndFile(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(envFile, []byte("AUTHGUARD_REDIS_DB=3\n"), 0o600))
	t.Cleanup(func() { _ = os.Unsetenv("AUTHGUARD_REDIS_DB") })

	cfgFile := filepath.Join(dir, "authguard.yaml")
	require.NoError(t, os.WriteFile(cfgFile, []byte("max_sessions: 3\nlog_level: debug\n"), 0o600))

	s, err := Load(envFile, cfgFile)
	require.NoError(t, err)
	assert.Equal(t, 3, s.RedisDB)
	assert.Equal(t, 3, s.MaxSessions)
	assert.Equal(t, "debug", s.LogLevel)

	_, err = Load(filepath.Join(dir, "missing.env"), "")
	assert.NoError(t, err)
}

func TestEngineConfig(t *testing.T) {
	s, err := Load("", "")
	require.NoError(t, err)
	s.SigningKey = "MDEyMzQ1Njc4OWFiY2RlZjAxMjM0NTY3ODlhYmNkZWY="
	s.MaxSessions = 2

	cfg, err := s.EngineConfig()
	require.NoError(t, err)
	assert.Equal(t, []byte("0123456789abcdef0123456789abcdef"), cfg.Token.PrivateKey)
	assert.Equal(t, 2, cfg.Session.MaxConcurrent)
	assert.Nil(t, cfg.Crypto.MasterKey)

	s.MasterKey = "%%%"
	_, err = s.EngineConfig()
	assert.ErrorContains(t, err, "master_key")
}
