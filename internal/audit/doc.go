// Package audit models security events and delivers them asynchronously to
// sinks.
//
// # Components
//
//   - [Event]: append-only security record with a ULID, type, severity,
//     confidence, and string metadata.
//   - [Sink]: event consumer. Implementations cover channels, JSON lines,
//     zap loggers, and durable stores.
//   - [Dispatcher]: buffered async relay with drop-if-full or block-if-full
//     semantics and a bounded per-event sink timeout.
//
// # Architecture boundaries
//
// This package owns event shape, buffering and sink delivery. It does NOT
// decide which events to emit; that belongs to the Engine and flow functions.
//
// # What this package must NOT do
//
//   - Filter or suppress events based on business logic.
//   - Import authguard or any sibling internal package.
//   - Let a sink failure reach an authentication flow.
package audit
