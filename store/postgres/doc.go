// Package postgres implements authguard.CredentialStore and
// authguard.EventStore on database/sql with the pgx driver.
//
// The package does not create or migrate tables. It expects:
//
//	credentials(user_id text primary key, identifier text unique, role text,
//	    status text, password_hash text, password_salt text,
//	    failed_attempts int, locked_until timestamptz null,
//	    last_login_at timestamptz null, last_login_ip text)
//
//	security_events(id text primary key, event_type text, severity text,
//	    ip text, user_id text, session_id text, confidence int,
//	    details text, metadata jsonb, created_at timestamptz)
//
// Missing rows map to authguard.ErrCredentialNotFound; every other driver
// error is wrapped with authguard.ErrStoreFailure.
package postgres
