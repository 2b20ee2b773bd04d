// Package notify delivers user-facing security notifications (lockout,
// suspicious location) without ever slowing down or failing an
// authentication flow.
//
// [Dispatcher] accepts notifications into a bounded queue and delivers them
// from a single worker, throttled by a token bucket. A full queue drops the
// notification and counts it.
//
// # What this package must NOT do
//
//   - Block the caller of Dispatcher.Send.
//   - Return delivery errors to authentication flows.
//   - Carry secrets (passwords, tokens) in notification bodies.
package notify
