// Package middleware adapts the authguard Engine to net/http.
//
// # Handlers
//
//   - [Guard] scores the request, then validates the bearer token and the
//     endpoint permission.
//   - [Shield] only scores the request. It fronts public surfaces such as
//     the login endpoint.
//   - [SecurityHeaders] sets the hardening response headers and a request id.
//
// Engine errors are mapped to status codes by [WriteError]; bodies carry the
// generic public message only.
//
// # What this package must NOT do
//
//   - Parse or create JWTs directly.
//   - Access Redis.
//   - Make authorization decisions beyond what the Engine returns.
package middleware
