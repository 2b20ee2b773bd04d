// Package authguard is an authentication and session integrity engine: password
// verification with account lockout, risk-scored sessions, signed access tokens
// with rotating refresh token families, role-based authorization and request
// threat scoring.
//
// Engine methods are safe to call from multiple goroutines after initialization
// through [Builder.Build]. Every mutable counter lives in Redis, so several
// processes can share one Engine configuration.
//
// # Architecture boundaries
//
// authguard is the public surface. It exposes [Engine], [Builder], [Config], the
// typed [Error] with its closed set of [Kind] values, and the persistence
// interfaces [CredentialStore] and [EventStore]. Token signing, refresh
// families, session storage, permissions and threat scoring live in their own
// packages; flow orchestration and audit dispatch live under internal/.
//
// # What this package must NOT do
//
//   - Reveal why a credential or token was rejected. Error() returns a generic
//     message; the reason is logged.
//   - Retry failed Redis or store calls. They surface as KindStoreUnavailable.
//   - Block an authentication flow on event delivery or user notification.
//
// # Performance contract
//
// ValidateAccess on an access token makes no Redis round-trip. Refresh rotation
// is one conditional script call plus one family revocation on reuse.
package authguard
