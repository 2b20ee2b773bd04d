// Package secret provides the symmetric primitives used by the engine: secure
// random tokens, one-time codes, HMAC signatures with freshness checks, and
// authenticated encryption.
//
// # Failure semantics
//
// Every cryptographic failure is reported as [ErrCrypto]. Callers must treat it
// as fatal to the current operation. There is no "unsigned" or "plaintext"
// fallback anywhere in this package.
//
// # Architecture boundaries
//
// This package owns key derivation, sealing, signing, and randomness only. It
// does not persist keys and does not know about users, sessions, or tokens.
//
// # What this package must NOT do
//
//   - Import authguard or any sibling package.
//   - Log key material, plaintexts, or signatures.
//   - Retry a failed operation with weaker parameters.
package secret
