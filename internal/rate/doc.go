// Package rate implements the per-source, per-endpoint sliding-window request
// limiter used by the threat pipeline.
//
// # Window semantics
//
// Each (ip, path) pair owns one sorted set, {prefix}:rl:{ip}:{path}, scored by
// request time in milliseconds. One script trims entries older than the
// window, counts the rest and records the request only when the count is
// below the rule's limit, so a denied request never extends the window. The
// set's expiry is refreshed to the window length on every recorded hit.
//
// # What this package must NOT do
//
//   - Decide blocklisting. The threat pipeline owns consequences.
//   - Be imported outside the authguard module.
package rate
