package authguard

import (
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncryptDecryptRoundTrip(t *testing.T) {
	env := newTestEnv(t)

	sealed, err := env.engine.Encrypt("JBSWY3DPEHPK3PXP")
	require.NoError(t, err)
	assert.NotContains(t, sealed, "JBSWY3DPEHPK3PXP")

	plain, err := env.engine.Decrypt(sealed)
	require.NoError(t, err)
	assert.Equal(t, "JBSWY3DPEHPK3PXP", plain)

	tampered := []byte(sealed)
	if tampered[len(tampered)-2] == 'A' {
		tampered[len(tampered)-2] = 'B'
	} else {
		tampered[len(tampered)-2] = 'A'
	}
	_, err = env.engine.Decrypt(string(tampered))
	require.ErrorIs(t, err, ErrCryptoFailure)

	_, err = env.engine.Decrypt("!!not base64!!")
	require.ErrorIs(t, err, ErrCryptoFailure)
}

func TestEncryptWithoutMasterKey(t *testing.T) {
	env := newTestEnv(t, func(c *Config) { c.Crypto.MasterKey = nil })

	_, err := env.engine.Encrypt("x")
	require.ErrorIs(t, err, ErrCryptoFailure)
	_, err = env.engine.Sign("x")
	require.ErrorIs(t, err, ErrCryptoFailure)
	assert.False(t, env.engine.VerifySignature("x", "sig", time.Minute))
}

func TestSignAndVerify(t *testing.T) {
	env := newTestEnv(t)

	sig, err := env.engine.Sign("reset:u1")
	require.NoError(t, err)
	assert.True(t, env.engine.VerifySignature("reset:u1", sig, time.Hour))
	assert.False(t, env.engine.VerifySignature("reset:u2", sig, time.Hour))
	assert.False(t, env.engine.VerifySignature("reset:u1", sig, 0))
}

func TestGenerateCodes(t *testing.T) {
	env := newTestEnv(t)

	codes, err := env.engine.GenerateBackupCodes(10)
	require.NoError(t, err)
	require.Len(t, codes, 10)
	shape := regexp.MustCompile(`^[0-9A-F]{4}-[0-9A-F]{4}$`)
	for _, c := range codes {
		assert.Regexp(t, shape, c)
	}

	otp, err := env.engine.GenerateOTP(6)
	require.NoError(t, err)
	assert.Regexp(t, `^[0-9]{6}$`, otp)
}
