package jwt

import (
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"strings"
	"testing"
	"time"

	gjwt "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testKey = []byte("0123456789abcdef0123456789abcdef")

type fakeClock struct{ now time.Time }

func (c *fakeClock) Now() time.Time { return c.now }

func newTestManager(t *testing.T, clock *fakeClock) *Manager {
	t.Helper()
	m, err := NewManager(Config{
		AccessTTL:     15 * time.Minute,
		RefreshTTL:    30 * 24 * time.Hour,
		SigningMethod: MethodHS256,
		PrivateKey:    testKey,
		Issuer:        "authguard",
		Audience:      "api",
		Now:           clock.Now,
	})
	require.NoError(t, err)
	return m
}

func TestIssueAndVerifyAccess(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	m := newTestManager(t, clock)

	tok, issued, err := m.IssueAccess("u-1", "admin", "s-1", 0)
	require.NoError(t, err)

	claims, err := m.Verify(tok, TypeAccess)
	require.NoError(t, err)
	assert.Equal(t, "u-1", claims.Subject)
	assert.Equal(t, "admin", claims.Role)
	assert.Equal(t, "s-1", claims.SessionID)
	assert.Equal(t, issued.ID, claims.ID)
	assert.Equal(t, TypeAccess, claims.TokenType)
	assert.WithinDuration(t, clock.now.Add(15*time.Minute), claims.ExpiresAt.Time, time.Second)
}

func TestVerifyRejectsWrongType(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	m := newTestManager(t, clock)

	access, _, err := m.IssueAccess("u-1", "admin", "s-1", 0)
	require.NoError(t, err)
	_, err = m.Verify(access, TypeRefresh)
	assert.ErrorIs(t, err, ErrInvalidToken)

	refresh, err := m.IssueRefresh("u-1", "s-1", "")
	require.NoError(t, err)
	_, err = m.Verify(refresh.Token, TypeAccess)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyRejectsExpired(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	m := newTestManager(t, clock)

	tok, _, err := m.IssueAccess("u-1", "admin", "s-1", time.Minute)
	require.NoError(t, err)

	clock.now = clock.now.Add(2 * time.Minute)
	_, err = m.Verify(tok, TypeAccess)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyClockSkewOnIssuedAt(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	m := newTestManager(t, clock)

	tok, _, err := m.IssueAccess("u-1", "admin", "s-1", time.Hour)
	require.NoError(t, err)

	clock.now = clock.now.Add(-30 * time.Second)
	_, err = m.Verify(tok, TypeAccess)
	assert.NoError(t, err)

	clock.now = clock.now.Add(-60 * time.Second)
	_, err = m.Verify(tok, TypeAccess)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyRejectsForgedSignature(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	m := newTestManager(t, clock)

	other, err := NewManager(Config{
		AccessTTL:     time.Minute,
		RefreshTTL:    time.Hour,
		SigningMethod: MethodHS256,
		PrivateKey:    []byte("ffffffffffffffffffffffffffffffff"),
		Issuer:        "authguard",
		Audience:      "api",
		Now:           clock.Now,
	})
	require.NoError(t, err)

	tok, _, err := other.IssueAccess("u-1", "super_admin", "s-1", 0)
	require.NoError(t, err)
	_, err = m.Verify(tok, TypeAccess)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyRejectsIssuerAudienceMismatch(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	m := newTestManager(t, clock)

	other, err := NewManager(Config{
		AccessTTL:     time.Minute,
		RefreshTTL:    time.Hour,
		SigningMethod: MethodHS256,
		PrivateKey:    testKey,
		Issuer:        "someone-else",
		Audience:      "api",
		Now:           clock.Now,
	})
	require.NoError(t, err)

	tok, _, err := other.IssueAccess("u-1", "admin", "s-1", 0)
	require.NoError(t, err)
	_, err = m.Verify(tok, TypeAccess)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyRejectsAlgorithmSwitch(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	m, err := NewManager(Config{
		AccessTTL:     time.Minute,
		RefreshTTL:    time.Hour,
		SigningMethod: MethodEd25519,
		PrivateKey:    priv,
		PublicKey:     pub,
	})
	require.NoError(t, err)

	claims := Claims{
		SessionID: "s1",
		TokenType: TypeAccess,
		RegisteredClaims: gjwt.RegisteredClaims{
			Subject:   "u1",
			IssuedAt:  gjwt.NewNumericDate(time.Now()),
			ExpiresAt: gjwt.NewNumericDate(time.Now().Add(time.Minute)),
		},
	}
	forged, err := gjwt.NewWithClaims(gjwt.SigningMethodHS256, claims).SignedString([]byte(pub))
	require.NoError(t, err)

	_, err = m.Verify(forged, TypeAccess)
	assert.ErrorIs(t, err, ErrInvalidToken)

	valid, _, err := m.IssueAccess("u1", "driver", "s1", 0)
	require.NoError(t, err)
	_, err = m.Verify(valid, TypeAccess)
	assert.NoError(t, err)
}

func TestIssueRefreshKeepsFamily(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	m := newTestManager(t, clock)

	first, err := m.IssueRefresh("u-1", "s-1", "")
	require.NoError(t, err)
	require.NotEmpty(t, first.FamilyID)
	assert.Equal(t, HashToken(first.Token), first.TokenHash)
	assert.Len(t, first.TokenHash, 64)

	next, err := m.IssueRefresh("u-1", "s-1", first.FamilyID)
	require.NoError(t, err)
	assert.Equal(t, first.FamilyID, next.FamilyID)
	assert.NotEqual(t, first.Token, next.Token)
	assert.NotEqual(t, first.TokenID, next.TokenID)

	claims, err := m.Verify(next.Token, TypeRefresh)
	require.NoError(t, err)
	assert.Equal(t, first.FamilyID, claims.FamilyID)
}

func TestDecodeUnsafeIgnoresSignatureAndExpiry(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	m := newTestManager(t, clock)

	tok, _, err := m.IssueAccess("u-1", "admin", "s-9", time.Minute)
	require.NoError(t, err)
	clock.now = clock.now.Add(time.Hour)

	parts := strings.Split(tok, ".")
	tampered := parts[0] + "." + parts[1] + ".AAAA"

	claims := m.DecodeUnsafe(tampered)
	require.NotNil(t, claims)
	assert.Equal(t, "s-9", claims.SessionID)

	assert.Nil(t, m.DecodeUnsafe("garbage"))
}

func TestNewManagerValidation(t *testing.T) {
	_, err := NewManager(Config{AccessTTL: time.Minute, RefreshTTL: time.Hour, SigningMethod: MethodHS256, PrivateKey: []byte("short")})
	assert.Error(t, err)

	_, err = NewManager(Config{AccessTTL: 0, RefreshTTL: time.Hour, SigningMethod: MethodHS256, PrivateKey: testKey})
	assert.Error(t, err)

	_, err = NewManager(Config{AccessTTL: time.Minute, RefreshTTL: time.Hour, SigningMethod: "rs512", PrivateKey: testKey})
	assert.Error(t, err)

	_, err = NewManager(Config{AccessTTL: time.Minute, RefreshTTL: time.Hour, SigningMethod: MethodEd25519})
	assert.True(t, err != nil && !errors.Is(err, ErrInvalidToken))
}
