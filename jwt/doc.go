// Package jwt issues and verifies the engine's signed tokens: short-lived
// access tokens and refresh tokens that carry a family identifier.
//
// # Verification
//
// [Manager.Verify] rejects a token on signature mismatch, wrong algorithm,
// wrong token_type, expiry in the past, issuer/audience mismatch, or an iat
// further in the future than the configured clock skew (60s by default). Every
// rejection wraps [ErrInvalidToken]; the wrapped reason is for internal logs
// only.
//
// # Architecture boundaries
//
// This package is stateless. Refresh-token persistence, family tracking, and
// reuse detection live in package refresh and the Engine.
//
// # What this package must NOT do
//
//   - Import authguard, refresh, or session.
//   - Make authorization decisions from [Manager.DecodeUnsafe] output.
package jwt
