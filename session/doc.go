// Package session persists the minimal authenticated-session state that
// must survive a process restart: the opaque token, its expiry, and a
// serialized subject snapshot for optimistic restore.
//
// The snapshot is encoded in a versioned binary format and stored under a
// single key per storage namespace. Only this package touches that key;
// everything else goes through the engine. Expiry is enforced twice: the
// stored TTL lets the backend reap dead snapshots, and Load ignores any
// snapshot whose recorded expiry has passed regardless of TTL drift.
package session
