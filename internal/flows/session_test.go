package flows

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrEthical07/authguard/geo"
	"github.com/MrEthical07/authguard/refresh"
	"github.com/MrEthical07/authguard/session"
)

type sessionFixture struct {
	now      time.Time
	seq      int
	sessions *session.RedisStore
	refresh  *refresh.RedisStore
	deps     SessionDeps
}

func newSessionFixture(t *testing.T) *sessionFixture {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	locator, err := geo.NewStaticLocator(map[string]geo.Location{
		"203.0.113.0/24":  {Country: "US", City: "Austin"},
		"198.51.100.0/24": {Country: "BR", City: "Recife"},
	})
	require.NoError(t, err)

	f := &sessionFixture{
		now:      time.Now().Truncate(time.Millisecond),
		sessions: session.NewRedisStore(rdb, "test", 30*24*time.Hour, time.Hour),
		refresh:  refresh.NewRedisStore(rdb, "test", 30*24*time.Hour),
	}
	clock := func() time.Time { return f.now }
	f.deps = SessionDeps{
		Now: clock,
		NewID: func() (string, error) {
			f.seq++
			return fmt.Sprintf("sess-%02d", f.seq), nil
		},
		NewToken:   func() (string, error) { return fmt.Sprintf("token-%02d", f.seq), nil },
		Locator:    locator,
		Classifier: geo.UAClassifier{},
		Risk:       session.NewRisk(session.DefaultPolicy()),
		Store:      f.sessions,
		Revoke:     RevokeDeps{Now: clock, Sessions: f.sessions, Refresh: f.refresh},
	}
	return f
}

func (f *sessionFixture) create(t *testing.T, ip string) SessionResult {
	t.Helper()
	res := RunCreateSession(context.Background(), SessionInput{
		UserID:    "u1",
		IP:        ip,
		UserAgent: "Mozilla/5.0 (X11; Linux x86_64; rv:121.0) Gecko/20100101 Firefox/121.0",
	}, f.deps)
	require.Equal(t, SessionFailureNone, res.Failure, "%v", res.Err)
	f.now = f.now.Add(time.Second)
	return res
}

func TestCreateSessionPopulatesContext(t *testing.T) {
	f := newSessionFixture(t)
	res := f.create(t, "203.0.113.10")

	s := res.Session
	assert.Equal(t, "US", s.Country)
	assert.Equal(t, "Austin", s.City)
	assert.Equal(t, "Firefox", s.Browser)
	assert.Equal(t, "Linux", s.OS)
	assert.Equal(t, geo.DeviceDesktop, s.DeviceType)
	assert.Len(t, s.Fingerprint, 16)
	assert.Equal(t, session.HashToken(s.Token), s.TokenHash)
	assert.Equal(t, s.CreatedAt.Add(120*time.Minute), s.ExpiresAt)

	stored, err := f.sessions.Get(context.Background(), s.ID)
	require.NoError(t, err)
	assert.Equal(t, s.TokenHash, stored.TokenHash)
	assert.Empty(t, stored.Token)
}

func TestCreateSessionRememberMe(t *testing.T) {
	f := newSessionFixture(t)
	res := RunCreateSession(context.Background(), SessionInput{UserID: "u1", RememberMe: true}, f.deps)
	require.Equal(t, SessionFailureNone, res.Failure)
	assert.Equal(t, res.Session.CreatedAt.Add(30*24*time.Hour), res.Session.ExpiresAt)
}

func TestCreateSessionFlagsNewCountry(t *testing.T) {
	f := newSessionFixture(t)
	f.create(t, "203.0.113.10")

	res := f.create(t, "198.51.100.20")
	assert.True(t, res.Assessment.NewCountry)
	assert.Equal(t, []string{"US"}, res.Assessment.PreviousCountries)
	assert.True(t, res.Session.IsSuspicious)
	assert.GreaterOrEqual(t, res.Session.RiskScore, session.NewCountryRisk)
	assert.Equal(t, session.StatusActive, res.Session.Status)
}

func TestCreateSessionEvictsOldestAtCap(t *testing.T) {
	f := newSessionFixture(t)
	ctx := context.Background()

	first := f.create(t, "203.0.113.10").Session
	require.NoError(t, f.refresh.Save(ctx, &refresh.Record{
		TokenHash: "h1", UserID: "u1", SessionID: first.ID, FamilyID: "fam",
		ExpiresAt: f.now.Add(time.Hour), CreatedAt: f.now,
	}))
	f.create(t, "203.0.113.11")
	f.create(t, "203.0.113.12")

	res := f.create(t, "203.0.113.13")
	assert.Equal(t, []string{first.ID}, res.Evicted)
	assert.True(t, res.Assessment.CapReached)
	assert.GreaterOrEqual(t, res.Session.RiskScore, session.ConcurrencyRisk)

	evicted, err := f.sessions.Get(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, session.StatusRevoked, evicted.Status)

	rec, err := f.refresh.Get(ctx, "h1")
	require.NoError(t, err)
	assert.True(t, rec.Revoked, "refresh tokens of the evicted session are revoked")

	active, err := f.sessions.ListActive(ctx, "u1", f.now)
	require.NoError(t, err)
	assert.Len(t, active, 3)
}

func TestCreateSessionRandomFailure(t *testing.T) {
	f := newSessionFixture(t)
	f.deps.NewID = func() (string, error) { return "", errors.New("entropy") }
	res := RunCreateSession(context.Background(), SessionInput{UserID: "u1"}, f.deps)
	assert.Equal(t, SessionFailureRandom, res.Failure)
}

func TestRevokeSessionIsIdempotent(t *testing.T) {
	f := newSessionFixture(t)
	s := f.create(t, "203.0.113.10").Session

	changed, err := RunRevokeSession(context.Background(), s.ID, f.deps.Revoke)
	require.NoError(t, err)
	assert.True(t, changed)

	changed, err = RunRevokeSession(context.Background(), s.ID, f.deps.Revoke)
	require.NoError(t, err)
	assert.False(t, changed)

	_, err = RunRevokeSession(context.Background(), "missing", f.deps.Revoke)
	assert.ErrorIs(t, err, session.ErrNotFound)
}
