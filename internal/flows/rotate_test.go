package flows

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrEthical07/authguard/jwt"
	"github.com/MrEthical07/authguard/refresh"
)

type rotateFixture struct {
	mr     *miniredis.Miniredis
	jwt    *jwt.Manager
	store  *refresh.RedisStore
	active bool
	deps   RotateDeps
}

func newRotateFixture(t *testing.T) *rotateFixture {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	m, err := jwt.NewManager(jwt.Config{
		AccessTTL:     15 * time.Minute,
		RefreshTTL:    24 * time.Hour,
		SigningMethod: jwt.MethodHS256,
		PrivateKey:    []byte("0123456789abcdef0123456789abcdef"),
		Issuer:        "authguard",
		Audience:      "api",
	})
	require.NoError(t, err)

	f := &rotateFixture{
		mr:     mr,
		jwt:    m,
		store:  refresh.NewRedisStore(rdb, "test", 24*time.Hour),
		active: true,
	}
	f.deps = RotateDeps{
		Now: time.Now,
		VerifyRefresh: func(tok string) (*jwt.Claims, error) {
			return m.Verify(tok, jwt.TypeRefresh)
		},
		IssueRefresh: m.IssueRefresh,
		IssueAccess: func(sub, role, sid string) (string, *jwt.Claims, error) {
			return m.IssueAccess(sub, role, sid, 0)
		},
		Account: func(context.Context, string) (string, bool, error) {
			return "driver", f.active, nil
		},
		Store: f.store,
	}
	return f
}

func (f *rotateFixture) login(t *testing.T) *jwt.RefreshIssue {
	t.Helper()
	issue, err := f.jwt.IssueRefresh("u1", "s1", "")
	require.NoError(t, err)
	now := time.Now()
	require.NoError(t, f.store.Save(context.Background(), &refresh.Record{
		TokenHash: issue.TokenHash,
		UserID:    "u1",
		SessionID: "s1",
		FamilyID:  issue.FamilyID,
		ExpiresAt: issue.ExpiresAt,
		CreatedAt: now,
	}))
	return issue
}

func TestRotateIssuesSuccessorInSameFamily(t *testing.T) {
	f := newRotateFixture(t)
	first := f.login(t)

	res := RunRotate(context.Background(), RotateInput{Token: first.Token, IP: "192.0.2.1"}, f.deps)
	require.Equal(t, RotateFailureNone, res.Failure, "%v", res.Err)
	assert.Equal(t, first.FamilyID, res.Refresh.FamilyID)
	assert.NotEqual(t, first.Token, res.Refresh.Token)
	assert.Equal(t, "driver", res.Role)
	assert.Equal(t, "driver", res.AccessClaims.Role)

	rec, err := f.store.Get(context.Background(), res.Refresh.TokenHash)
	require.NoError(t, err)
	assert.Equal(t, "192.0.2.1", rec.IP)
	assert.False(t, rec.Used)
}

func TestRotateReuseRevokesFamily(t *testing.T) {
	f := newRotateFixture(t)
	first := f.login(t)
	ctx := context.Background()

	ok := RunRotate(ctx, RotateInput{Token: first.Token}, f.deps)
	require.Equal(t, RotateFailureNone, ok.Failure)

	replay := RunRotate(ctx, RotateInput{Token: first.Token}, f.deps)
	require.Equal(t, RotateFailureReuse, replay.Failure)
	assert.Equal(t, refresh.RotateAlreadyUsed, replay.Status)
	assert.Equal(t, first.FamilyID, replay.Claims.FamilyID)

	// the legitimate successor died with the family
	after := RunRotate(ctx, RotateInput{Token: ok.Refresh.Token}, f.deps)
	assert.Equal(t, RotateFailureReuse, after.Failure)
	assert.Equal(t, refresh.RotateFamilyRevoked, after.Status)

	revoked, err := f.store.FamilyRevoked(ctx, first.FamilyID)
	require.NoError(t, err)
	assert.True(t, revoked)
}

func TestRotateRejectsBadTokens(t *testing.T) {
	f := newRotateFixture(t)
	res := RunRotate(context.Background(), RotateInput{Token: "not-a-jwt"}, f.deps)
	assert.Equal(t, RotateFailureInvalidToken, res.Failure)

	access, _, err := f.jwt.IssueAccess("u1", "driver", "s1", 0)
	require.NoError(t, err)
	res = RunRotate(context.Background(), RotateInput{Token: access}, f.deps)
	assert.Equal(t, RotateFailureInvalidToken, res.Failure, "access tokens cannot be rotated")
}

func TestRotateUnknownRecordIsReuse(t *testing.T) {
	f := newRotateFixture(t)
	issue, err := f.jwt.IssueRefresh("u1", "s1", "")
	require.NoError(t, err)

	res := RunRotate(context.Background(), RotateInput{Token: issue.Token}, f.deps)
	assert.Equal(t, RotateFailureReuse, res.Failure)
	assert.Equal(t, refresh.RotateNotFound, res.Status)
}

func TestRotateInactiveAccount(t *testing.T) {
	f := newRotateFixture(t)
	first := f.login(t)
	f.active = false

	res := RunRotate(context.Background(), RotateInput{Token: first.Token}, f.deps)
	assert.Equal(t, RotateFailureInactive, res.Failure)

	rec, err := f.store.Get(context.Background(), first.TokenHash)
	require.NoError(t, err)
	assert.True(t, rec.Revoked)
}

func TestRotateInactiveAccountSurfacesRevokeError(t *testing.T) {
	f := newRotateFixture(t)
	first := f.login(t)
	f.deps.Account = func(context.Context, string) (string, bool, error) {
		f.mr.Close()
		return "driver", false, nil
	}

	res := RunRotate(context.Background(), RotateInput{Token: first.Token}, f.deps)
	assert.Equal(t, RotateFailureInactive, res.Failure)
	require.Error(t, res.Err)
	assert.ErrorIs(t, res.Err, refresh.ErrRedisUnavailable)
	assert.Zero(t, res.FamilyRevoked)
}

func TestRotateAccountLookupFailure(t *testing.T) {
	f := newRotateFixture(t)
	first := f.login(t)
	f.deps.Account = func(context.Context, string) (string, bool, error) {
		return "", false, errors.New("db down")
	}
	res := RunRotate(context.Background(), RotateInput{Token: first.Token}, f.deps)
	assert.Equal(t, RotateFailureAccountLookup, res.Failure)
}

func TestRotateConcurrentSingleWinner(t *testing.T) {
	f := newRotateFixture(t)
	first := f.login(t)

	var (
		wg      sync.WaitGroup
		wins    atomic.Int32
		reuses  atomic.Int32
		start   = make(chan struct{})
		workers = 16
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			res := RunRotate(context.Background(), RotateInput{Token: first.Token}, f.deps)
			switch res.Failure {
			case RotateFailureNone:
				wins.Add(1)
			case RotateFailureReuse:
				reuses.Add(1)
			}
		}()
	}
	close(start)
	wg.Wait()

	assert.Equal(t, int32(1), wins.Load())
	assert.Equal(t, int32(workers-1), reuses.Load())
}
