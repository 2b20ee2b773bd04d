package logging

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestParseLevel(t *testing.T) {
	lvl, err := ParseLevel(" WARN ")
	require.NoError(t, err)
	assert.Equal(t, zapcore.WarnLevel, lvl)

	_, err = ParseLevel("verbose")
	assert.Error(t, err)
}

func TestNewWithSinkWritesJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithSink(zapcore.InfoLevel, zapcore.AddSync(&buf))

	logger.Debug("hidden")
	logger.Info("login succeeded", zap.String("user_id", "u1"))
	require.NoError(t, logger.Sync())

	var line map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &line))
	assert.Equal(t, "login succeeded", line["msg"])
	assert.Equal(t, "u1", line["user_id"])
	assert.Equal(t, "authguard", line["service"])
	assert.Contains(t, line, "ts")
}

func TestNewRotatingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "authguard.log")
	logger, closeFn, err := New(Options{Level: "info", File: path, MaxSizeMB: 1})
	require.NoError(t, err)

	logger.Warn("threat blocked", zap.String("ip", "198.51.100.20"))
	require.NoError(t, closeFn())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"ip":"198.51.100.20"`)
}
