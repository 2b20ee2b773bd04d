// Package limiters holds the account lockout state machine.
//
// # Lockout
//
// [Lockout] counts failed credential checks per user in Redis. The counter
// increment, the threshold check, and setting locked_until happen in one Lua
// script, so concurrent failures cannot skip the lock. Lock state is strictly
// time based: a user is locked only while locked_until lies in the future.
//
// All methods are nil-safe: a nil *Lockout reports unlocked and records nothing.
//
// # Architecture boundaries
//
// The package counts and gates. The Engine decides when to consult it, emits
// the security event, and mirrors state onto the credential record.
//
// # What this package must NOT do
//
//   - Import authguard or any sibling package.
//   - Clear an active lock on anything but an explicit Reset.
package limiters
