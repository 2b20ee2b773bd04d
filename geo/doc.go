// Package geo resolves client addresses to coarse locations and user agents
// to device descriptions.
//
// Both lookups are best effort. An address or agent that cannot be resolved
// yields the zero [Location] or [UnknownDevice]; risk rules treat unknown
// values as "no signal" rather than as a new location.
package geo
