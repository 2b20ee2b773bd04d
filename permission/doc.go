// Package permission resolves roles to permissions and endpoints to the
// permission they require.
//
// # Permission strings
//
// A permission is either the global wildcard "*" or "resource:action", where
// action may itself be "*" to grant every action on the resource. A role
// holding "*" is the super role.
//
// # Endpoint patterns
//
// [EndpointMap] keys have the form "METHOD:/path". A "*" path segment matches
// exactly one non-empty segment. Exact keys win over patterns; among patterns
// the one with fewer wildcards wins.
//
// # Architecture boundaries
//
// This package is a pure in-memory data structure with no I/O. Authorizer and
// EndpointMap are immutable after construction and safe for concurrent use.
//
// # What this package must NOT do
//
//   - Access Redis, databases, or the network.
//   - Import authguard, jwt, or session.
//   - Mutate role bindings after construction.
package permission
