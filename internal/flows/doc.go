// Package flows contains pure-function orchestrators for the Engine's
// multi-step operations.
//
// Each flow function (RunVerifyCredentials, RunCreateSession, RunRotate,
// RunRevokeSession) accepts a typed dependency struct and returns a result
// value carrying either the outcome or a failure kind. The Engine maps failure
// kinds to its public error kinds and records security events.
//
// # Architecture boundaries
//
// Flow functions coordinate calls to the credential lookup, password hasher,
// lockout tracker, session and refresh stores, and token manager. They do NOT
// own any of these resources; ownership stays with the Engine.
//
// # What this package must NOT do
//
//   - Hold mutable state between calls.
//   - Import authguard (to avoid import cycles).
//   - Emit security events or metrics directly.
package flows
