// Package session models authenticated sessions, evaluates their login risk,
// and persists them in Redis.
//
// # Risk rules
//
// [Risk.Evaluate] is pure: given the candidate session and the user's active
// sessions it flags a login from a country absent from every active session
// (risk at least 75) and, when the concurrency cap is reached, selects the
// single oldest active session for eviction (risk at least 50).
//
// # Lifecycle
//
// Sessions move forward only: active to expired or revoked. [Store.End] is
// idempotent and never rewrites an ended session.
//
// # Architecture boundaries
//
// This package owns the [Session] model, the risk evaluator, and the [Store].
// It does not interpret tokens, emit security events, or resolve geography;
// the Engine supplies location and device data.
//
// # What this package must NOT do
//
//   - Import authguard, jwt, or refresh.
//   - Persist the plaintext session token.
package session
