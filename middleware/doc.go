// Package middleware exposes HTTP guards for embedders that render
// server-side on top of tendergate.Engine session state.
//
// # Guards
//
//   - [RequireSession] rejects requests while no live session exists.
//   - [RequireCapability] additionally runs the capability check.
//
// Each guard reads the engine's current session snapshot and injects it
// into the request context for handlers downstream.
//
// # Architecture boundaries
//
// This package translates HTTP semantics into Engine reads. It does NOT
// make authorization decisions itself; all rule evaluation lives in the
// permission package, reached through the Engine.
//
// # What this package must NOT do
//
//   - Call the remote API or Redis (Engine handles I/O).
//   - Cache session state across requests.
package middleware
