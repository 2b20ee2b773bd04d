package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/MrEthical07/authguard"
)

const credentialColumns = `user_id, identifier, role, status, password_hash, password_salt,
	failed_attempts, locked_until, last_login_at, coalesce(last_login_ip, '')`

func scanCredential(row *sql.Row) (*authguard.CredentialRecord, error) {
	var (
		rec       authguard.CredentialRecord
		status    string
		locked    sql.NullTime
		lastLogin sql.NullTime
	)
	err := row.Scan(&rec.UserID, &rec.Identifier, &rec.Role, &status, &rec.PasswordHash, &rec.PasswordSalt,
		&rec.FailedAttempts, &locked, &lastLogin, &rec.LastLoginIP)
	if err != nil {
		return nil, err
	}
	rec.Status = authguard.AccountStatus(status)
	rec.LockedUntil = timePtr(locked)
	rec.LastLoginAt = timePtr(lastLogin)
	return &rec, nil
}

// GetCredentialByIdentifier looks a credential up by login identifier.
// Identifiers compare case-insensitively.
func (s *Store) GetCredentialByIdentifier(ctx context.Context, identifier string) (*authguard.CredentialRecord, error) {
	rec, err := scanCredential(s.db.QueryRowContext(ctx,
		`select `+credentialColumns+` from credentials where lower(identifier) = lower($1)`, identifier))
	if err != nil {
		return nil, storeErr("get credential by identifier", err)
	}
	return rec, nil
}

// GetCredentialByID looks a credential up by user id.
func (s *Store) GetCredentialByID(ctx context.Context, userID string) (*authguard.CredentialRecord, error) {
	rec, err := scanCredential(s.db.QueryRowContext(ctx,
		`select `+credentialColumns+` from credentials where user_id = $1`, userID))
	if err != nil {
		return nil, storeErr("get credential by id", err)
	}
	return rec, nil
}

// UpdateLockState mirrors the lockout counter and deadline.
func (s *Store) UpdateLockState(ctx context.Context, userID string, failedAttempts int, lockedUntil *time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`update credentials set failed_attempts = $2, locked_until = $3 where user_id = $1`,
		userID, failedAttempts, nullTime(lockedUntil))
	if err != nil {
		return storeErr("update lock state", err)
	}
	return requireRow(res, "update lock state")
}

// RecordLogin stores the last successful login and clears the mirrored lock.
func (s *Store) RecordLogin(ctx context.Context, userID string, at time.Time, ip string) error {
	res, err := s.db.ExecContext(ctx,
		`update credentials set last_login_at = $2, last_login_ip = $3, failed_attempts = 0, locked_until = null
		where user_id = $1`,
		userID, at.UTC(), ip)
	if err != nil {
		return storeErr("record login", err)
	}
	return requireRow(res, "record login")
}

// CreateCredential inserts rec. PasswordHash and PasswordSalt must come from
// Engine.HashPassword.
func (s *Store) CreateCredential(ctx context.Context, rec authguard.CredentialRecord) error {
	if rec.Status == "" {
		rec.Status = authguard.AccountActive
	}
	_, err := s.db.ExecContext(ctx,
		`insert into credentials (user_id, identifier, role, status, password_hash, password_salt, failed_attempts)
		values ($1, $2, $3, $4, $5, $6, 0)`,
		rec.UserID, rec.Identifier, rec.Role, string(rec.Status), rec.PasswordHash, rec.PasswordSalt)
	if err != nil {
		return storeErr("create credential", err)
	}
	return nil
}

// SetStatus changes the account lifecycle state.
func (s *Store) SetStatus(ctx context.Context, userID string, status authguard.AccountStatus) error {
	res, err := s.db.ExecContext(ctx, `update credentials set status = $2 where user_id = $1`, userID, string(status))
	if err != nil {
		return storeErr("set status", err)
	}
	return requireRow(res, "set status")
}

func requireRow(res sql.Result, op string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return storeErr(op, err)
	}
	if n == 0 {
		return authguard.ErrCredentialNotFound
	}
	return nil
}
