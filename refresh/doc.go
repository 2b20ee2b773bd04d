// Package refresh persists refresh-token records and enforces the single-use
// rotation protocol over token families.
//
// # Records and families
//
// A [Record] is keyed by the hex SHA-256 of the refresh token string. Every
// record belongs to a family: the lineage of tokens produced by successive
// rotations from one login. [Store.Rotate] marks the presented record used and
// stores its successor in one atomic step. Revoking a family marks every member
// revoked and leaves a family tombstone so successors minted later are dead on
// arrival.
//
// # Architecture boundaries
//
// This package owns record storage and the compare-and-swap rotation. Token
// signing belongs to package jwt; deciding that a failed rotation is a reuse
// signal and emitting the security event belongs to the Engine.
//
// # What this package must NOT do
//
//   - Import authguard, jwt, or session.
//   - Store refresh tokens in plaintext.
//   - Retry a rotation internally.
package refresh
