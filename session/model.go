package session

import "time"

// SubjectRecord is the flat, storage-facing form of an authenticated
// subject. The engine converts to and from its richer domain type; this
// package never interprets the fields.
type SubjectRecord struct {
	ID             string
	Email          string
	Name           string
	Role           string
	OrganizationID string
	MemberRole     string
}

// Snapshot is what a reload restores: token, expiry, and the subject as
// last seen. The snapshot is optimistic; the engine still confirms it
// with a who-am-I call before trusting the subject.
type Snapshot struct {
	Token     string
	ExpiresAt int64 // unix milliseconds
	Subject   SubjectRecord
}

// Expired reports whether the snapshot's recorded expiry has passed.
func (s *Snapshot) Expired(now time.Time) bool {
	return now.UnixMilli() > s.ExpiresAt
}
