package secret

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignVerify(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	clock := func() time.Time { return now }

	s, err := NewSigner(bytes.Repeat([]byte{1}, 32), clock)
	require.NoError(t, err)

	sig := s.Sign("user-42:reset")
	assert.True(t, strings.HasSuffix(sig, ":1700000000"))
	assert.True(t, s.Verify("user-42:reset", sig, time.Hour))
	assert.False(t, s.Verify("user-43:reset", sig, time.Hour))
}

func TestVerifyRejectsExpiredSignature(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	s, err := NewSigner(bytes.Repeat([]byte{1}, 32), func() time.Time { return now })
	require.NoError(t, err)

	sig := s.Sign("payload")
	now = now.Add(2 * time.Hour)

	assert.False(t, s.Verify("payload", sig, time.Hour))
	assert.True(t, s.Verify("payload", sig, 3*time.Hour))
	assert.False(t, s.Verify("payload", sig, 0))
	assert.False(t, s.Verify("payload", sig, -time.Hour))
}

func TestVerifyRejectsDigitShiftedIntoData(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	s, err := NewSigner(bytes.Repeat([]byte{1}, 32), func() time.Time { return now })
	require.NoError(t, err)

	sig := s.Sign("amount=5")
	mac, ts, _ := strings.Cut(sig, ":")
	require.Equal(t, "1700000000", ts)

	forged := mac + ":" + ts[1:]
	assert.False(t, s.Verify("amount=51", forged, 100*365*24*time.Hour))
	assert.True(t, s.Verify("amount=5", sig, time.Minute))
}

func TestVerifyRejectsMalformedSignature(t *testing.T) {
	s, err := NewSigner(bytes.Repeat([]byte{1}, 32), nil)
	require.NoError(t, err)

	for _, sig := range []string{"", "abc", ":123", "zz:123", "00:notanumber"} {
		assert.False(t, s.Verify("payload", sig, time.Hour), sig)
	}
}

func TestVerifyRejectsTimestampSwap(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	s, err := NewSigner(bytes.Repeat([]byte{1}, 32), func() time.Time { return now })
	require.NoError(t, err)

	sig := s.Sign("payload")
	mac, _, _ := strings.Cut(sig, ":")
	assert.False(t, s.Verify("payload", mac+":1700000001", time.Hour))
}
