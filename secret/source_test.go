package secret

import (
	"bytes"
	"encoding/base64"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenIsURLSafe(t *testing.T) {
	tok, err := GenerateSecureToken(32)
	require.NoError(t, err)

	raw, err := base64.RawURLEncoding.DecodeString(tok)
	require.NoError(t, err)
	assert.Len(t, raw, 32)

	other, err := GenerateSecureToken(32)
	require.NoError(t, err)
	assert.NotEqual(t, tok, other)
}

func TestOTPDigits(t *testing.T) {
	src := NewSource(nil)
	code, err := src.OTP(6)
	require.NoError(t, err)
	assert.Regexp(t, `^[0-9]{6}$`, code)

	_, err = src.OTP(4)
	assert.Error(t, err)
}

func TestBackupCodesShape(t *testing.T) {
	codes, err := Default().BackupCodes(10)
	require.NoError(t, err)
	require.Len(t, codes, 10)

	shape := regexp.MustCompile(`^[0-9A-F]{4}-[0-9A-F]{4}$`)
	for _, c := range codes {
		assert.Regexp(t, shape, c)
	}
}

func TestSourceReadFailureIsCryptoError(t *testing.T) {
	src := NewSource(bytes.NewReader([]byte{1, 2}))
	_, err := src.Bytes(16)
	assert.ErrorIs(t, err, ErrCrypto)
}

func TestHexLength(t *testing.T) {
	h, err := Default().Hex(32)
	require.NoError(t, err)
	assert.Len(t, h, 64)
}
