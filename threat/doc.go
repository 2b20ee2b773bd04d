// Package threat inspects inbound requests and decides whether they may
// proceed.
//
// # Evaluation order
//
// [Pipeline.Evaluate] runs, in order: the IP blocklist, the scanner
// user-agent denylist, the per-endpoint rate limit, and finally pattern
// scoring. The first stage that rejects ends evaluation. Rate-limit
// violations and high scores place the source IP on the blocklist for a
// bounded time.
//
// # Scoring
//
// [Scorer] adds a fixed weight per matched attack pattern on the lowercased
// "path query" string, plus weights for proxy-override headers and crawler
// user agents. The total is capped at 100.
//
// # Architecture boundaries
//
// The pipeline returns a [Decision]. Turning a decision into a typed error and
// a security event is the caller's job.
//
// # What this package must NOT do
//
//   - Import authguard.
//   - Read request bodies.
package threat
