package postgres

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrEthical07/authguard"
)

func newMock(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		_ = db.Close()
	})
	return New(db), mock
}

var credentialCols = []string{
	"user_id", "identifier", "role", "status", "password_hash", "password_salt",
	"failed_attempts", "locked_until", "last_login_at", "last_login_ip",
}

func TestGetCredentialByIdentifier(t *testing.T) {
	s, mock := newMock(t)
	locked := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	mock.ExpectQuery("select .+ from credentials where lower\\(identifier\\) = lower\\(\\$1\\)").
		WithArgs("Alice@Example.com").
		WillReturnRows(sqlmock.NewRows(credentialCols).
			AddRow("u1", "alice@example.com", "driver", "active", "hash", "salt", 3, locked, nil, ""))

	rec, err := s.GetCredentialByIdentifier(context.Background(), "Alice@Example.com")
	require.NoError(t, err)
	assert.Equal(t, "u1", rec.UserID)
	assert.Equal(t, authguard.AccountActive, rec.Status)
	assert.Equal(t, 3, rec.FailedAttempts)
	require.NotNil(t, rec.LockedUntil)
	assert.True(t, rec.LockedUntil.Equal(locked))
	assert.Nil(t, rec.LastLoginAt)
}

func TestGetCredentialNotFound(t *testing.T) {
	s, mock := newMock(t)
	mock.ExpectQuery("select .+ from credentials where user_id = \\$1").
		WithArgs("ghost").
		WillReturnError(sql.ErrNoRows)

	_, err := s.GetCredentialByID(context.Background(), "ghost")
	assert.ErrorIs(t, err, authguard.ErrCredentialNotFound)
}

func TestDriverErrorsAreStoreFailures(t *testing.T) {
	s, mock := newMock(t)
	mock.ExpectQuery("select .+ from credentials").WillReturnError(errors.New("connection refused"))

	_, err := s.GetCredentialByID(context.Background(), "u1")
	assert.ErrorIs(t, err, authguard.ErrStoreFailure)
	assert.NotErrorIs(t, err, authguard.ErrCredentialNotFound)
}

func TestUpdateLockState(t *testing.T) {
	s, mock := newMock(t)
	until := time.Now().Add(15 * time.Minute)

	mock.ExpectExec("update credentials set failed_attempts = \\$2, locked_until = \\$3 where user_id = \\$1").
		WithArgs("u1", 5, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, s.UpdateLockState(context.Background(), "u1", 5, &until))

	mock.ExpectExec("update credentials set failed_attempts").
		WithArgs("missing", 0, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))
	assert.ErrorIs(t, s.UpdateLockState(context.Background(), "missing", 0, nil), authguard.ErrCredentialNotFound)
}

func TestRecordLogin(t *testing.T) {
	s, mock := newMock(t)
	mock.ExpectExec("update credentials set last_login_at = \\$2, last_login_ip = \\$3").
		WithArgs("u1", sqlmock.AnyArg(), "203.0.113.10").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, s.RecordLogin(context.Background(), "u1", time.Now(), "203.0.113.10"))
}

func TestCreateCredentialDefaultsToActive(t *testing.T) {
	s, mock := newMock(t)
	mock.ExpectExec("insert into credentials").
		WithArgs("u2", "bob@example.com", "passenger", "active", "h", "s").
		WillReturnResult(sqlmock.NewResult(1, 1))

	require.NoError(t, s.CreateCredential(context.Background(), authguard.CredentialRecord{
		UserID: "u2", Identifier: "bob@example.com", Role: "passenger", PasswordHash: "h", PasswordSalt: "s",
	}))
}

func TestCreateCredentialDuplicateIdentifier(t *testing.T) {
	s, mock := newMock(t)
	mock.ExpectExec("insert into credentials").
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "credentials_identifier_key"})

	err := s.CreateCredential(context.Background(), authguard.CredentialRecord{
		UserID: "u3", Identifier: "bob@example.com", Role: "passenger", PasswordHash: "h", PasswordSalt: "s",
	})
	require.ErrorIs(t, err, authguard.ErrCredentialExists)
	assert.NotErrorIs(t, err, authguard.ErrStoreFailure)
}

func TestAppendAndListSecurityEvents(t *testing.T) {
	s, mock := newMock(t)
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	ev := authguard.SecurityEvent{
		ID:         "01HZX0000000000000000000AA",
		Type:       "token_reuse_detected",
		Severity:   authguard.SeverityCritical,
		IP:         "203.0.113.10",
		UserID:     "u1",
		SessionID:  "s1",
		Confidence: 95,
		Details:    "refresh token reused",
		Metadata:   map[string]string{"token_family": "f1"},
		Timestamp:  at,
	}

	mock.ExpectExec("insert into security_events .+ on conflict \\(id\\) do nothing").
		WithArgs(ev.ID, ev.Type, "critical", ev.IP, ev.UserID, ev.SessionID, 95, ev.Details,
			[]byte(`{"token_family":"f1"}`), at).
		WillReturnResult(sqlmock.NewResult(1, 1))
	require.NoError(t, s.AppendSecurityEvent(context.Background(), ev))

	mock.ExpectQuery("select .+ from security_events").
		WithArgs("u1", 100).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "event_type", "severity", "ip", "user_id", "session_id", "confidence", "details", "metadata", "created_at",
		}).AddRow(ev.ID, ev.Type, "critical", ev.IP, ev.UserID, ev.SessionID, 95, ev.Details, []byte(`{"token_family":"f1"}`), at))

	list, err := s.ListSecurityEvents(context.Background(), "u1", 0)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, ev, list[0])
}
