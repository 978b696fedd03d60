// Package tendergate is the authorization and session engine of a
// multi-tenant tender-procurement portal. It owns the decision logic the
// portal's presentation layer consumes: authenticated-session lifecycle
// with expiry and forced logout, a pure permission evaluator over roles,
// organization membership and per-member grants, the one-time-code flows
// shared by registration and password reset (with persisted resend
// cooldowns), the multi-step organizational login state machine, and the
// bidder/issuer verification-code request lifecycle that gates tender
// applications.
//
// The engine mirrors server-side enforcement; it is a gate, not a security
// boundary. Every remote decision remains authoritative; the engine exists
// so that a denial is visible before a doomed network round-trip, and so
// that session and cooldown state survive process restarts.
//
// # Architecture boundaries
//
// tendergate is the public surface. It exposes [Engine], [Builder],
// [Config], the flow types ([OTPFlow], [TeamLoginFlow],
// [VerificationWatcher]) and value types. The backend is reached only
// through the caller-supplied [RemoteAPI]. Durable state lives only behind
// [session.Store] and [CooldownTimer]; no other component reads or writes
// those keys.
//
// # Concurrency contract
//
// Engine methods are safe to call from multiple goroutines after
// initialization through [Builder.Build]. Asynchronous completions
// (permission fetches, best-effort server logout, watcher polls) are tagged
// with the session generation captured at launch and discarded when stale,
// so a slow response can never resurrect a logged-out session.
package tendergate
