// Package password implements salted password hashing, verification, and the
// password strength policy.
//
// # Hashers
//
// [Bcrypt] is the default [Hasher]. It hashes SHA-256(password||salt) so that
// the whole input stays inside bcrypt's 72 byte window, at a fixed cost of 12
// unless configured otherwise. [Argon2] is an alternative Hasher producing PHC
// strings:
//
//	$argon2id$v=19$m=<memory>,t=<time>,p=<threads>$<salt>$<hash>
//
// Both report parameter drift through NeedsUpgrade so the caller can re-hash on
// the next successful login.
//
// # Architecture boundaries
//
// This package owns hashing, verification, and policy evaluation only. Lockout
// and credential storage belong to the Engine.
//
// # What this package must NOT do
//
//   - Store or retrieve passwords. Callers supply plaintext and receive hashes.
//   - Import authguard or any sibling package.
//   - Log plaintext passwords or hash parameters at runtime.
package password
