package authguard

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrEthical07/authguard/internal/audit"
)

func register(env *testEnv, identifier, pw, role string) (*LoginResult, error) {
	return env.engine.Register(context.Background(), Registration{
		Identifier: identifier,
		Password:   pw,
		Role:       role,
	}, SessionContext{IP: usIP, UserAgent: testUA})
}

func TestRegisterCreatesPendingAccountWithSession(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	res, err := register(env, "  bob@example.com ", testPassword, "passenger")
	require.NoError(t, err)
	assert.Equal(t, "bob@example.com", res.Identity.Identifier)
	assert.Equal(t, "passenger", res.Identity.Role)
	require.NotNil(t, res.Tokens)
	assert.Equal(t, res.Session.ID, res.Tokens.SessionID)
	assert.Equal(t, res.Identity.UserID, res.Session.UserID)

	rec := env.creds.get(res.Identity.UserID)
	assert.Equal(t, AccountPending, rec.Status)
	assert.NotEqual(t, testPassword, rec.PasswordHash)
	assert.NotEmpty(t, rec.PasswordSalt)

	registered := env.events.ofType(audit.TypeAccountRegistered)
	require.Len(t, registered, 1)
	assert.Equal(t, res.Identity.UserID, registered[0].UserID)
	assert.Equal(t, "pending", registered[0].Metadata["status"])
	assert.Equal(t, uint64(1), env.engine.MetricsSnapshot().Counters[MetricAccountRegistered])

	// Pending accounts hold a session but cannot rotate until activated.
	_, err = env.engine.RotateTokens(ctx, res.Tokens.RefreshToken)
	assert.ErrorIs(t, err, ErrAccountInactive)
}

func TestRegisterActiveAccountCanLogin(t *testing.T) {
	env := newTestEnv(t)

	res, err := env.engine.Register(context.Background(), Registration{
		Identifier: "carol@example.com",
		Password:   testPassword,
		Role:       "driver",
		Status:     AccountActive,
	}, SessionContext{IP: usIP, UserAgent: testUA})
	require.NoError(t, err)

	login, err := env.engine.Login(context.Background(), "carol@example.com", testPassword,
		SessionContext{IP: usIP, UserAgent: testUA}, false)
	require.NoError(t, err)
	assert.Equal(t, res.Identity.UserID, login.Identity.UserID)
}

func TestRegisterRejectsTakenIdentifier(t *testing.T) {
	env := newTestEnv(t)

	_, err := register(env, "alice@example.com", testPassword, "passenger")
	require.ErrorIs(t, err, ErrAccountExists)
	assert.Equal(t, KindAccountExists, KindOf(err))
	assert.Equal(t, "account already exists", err.Error())

	rejected := env.events.ofType(audit.TypeRegistrationRejected)
	require.Len(t, rejected, 1)
	assert.Equal(t, "identifier taken", rejected[0].Details)
	assert.Empty(t, env.events.ofType(audit.TypeSessionCreated))
}

func TestRegisterStoreConflictIsAccountExists(t *testing.T) {
	env := newTestEnv(t)
	env.creds.failCreate = fmt.Errorf("%w: unique violation", ErrCredentialExists)

	_, err := register(env, "dave@example.com", testPassword, "passenger")
	require.ErrorIs(t, err, ErrAccountExists)
	assert.Len(t, env.events.ofType(audit.TypeRegistrationRejected), 1)
}

func TestRegisterStoreFailure(t *testing.T) {
	env := newTestEnv(t)
	env.creds.failCreate = fmt.Errorf("%w: conn reset", ErrStoreFailure)

	_, err := register(env, "erin@example.com", testPassword, "passenger")
	require.ErrorIs(t, err, ErrStoreUnavailable)
	assert.Empty(t, env.events.ofType(audit.TypeAccountRegistered))
}

func TestRegisterWeakPassword(t *testing.T) {
	env := newTestEnv(t)

	_, err := register(env, "frank@example.com", "short", "passenger")
	require.ErrorIs(t, err, ErrWeakPassword)

	var ae *Error
	require.True(t, errors.As(err, &ae))
	assert.NotEmpty(t, ae.Violations)

	_, err = env.creds.GetCredentialByIdentifier(context.Background(), "frank@example.com")
	assert.ErrorIs(t, err, ErrCredentialNotFound)
}

func TestRegisterValidatesInput(t *testing.T) {
	env := newTestEnv(t)

	_, err := register(env, "   ", testPassword, "passenger")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = register(env, "gina@example.com", testPassword, "pilot")
	assert.ErrorIs(t, err, ErrPermissionDenied)
}

type readOnlyCredentials struct{ CredentialStore }

func TestRegisterRequiresCredentialCreator(t *testing.T) {
	env := newTestEnv(t)

	engine, err := New().
		WithConfig(testConfig()).
		WithRedis(env.rdb).
		WithCredentialStore(readOnlyCredentials{env.creds}).
		Build()
	require.NoError(t, err)
	t.Cleanup(engine.Close)

	_, err = engine.Register(context.Background(), Registration{
		Identifier: "hank@example.com", Password: testPassword, Role: "passenger",
	}, SessionContext{IP: usIP, UserAgent: testUA})
	require.Error(t, err)
	assert.Equal(t, KindUnknown, KindOf(err))
}
