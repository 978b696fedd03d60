package permission

// Capability is one named boolean in an organization's grant record.
// The set is closed: capabilities are enumerated here and nowhere else.
type Capability uint8

const (
	// CapCreateTenders gates tender creation.
	CapCreateTenders Capability = iota
	// CapEditTenders gates tender edits.
	CapEditTenders
	// CapDeleteTenders gates tender deletion.
	CapDeleteTenders
	// CapViewApplications gates reading tender applications.
	CapViewApplications
	// CapAcceptReject gates accepting and rejecting applications.
	CapAcceptReject
	// CapManageVerificationRequests gates approving and rejecting
	// verification-code requests.
	CapManageVerificationRequests
	// CapManageTeam gates organization membership management.
	CapManageTeam

	capCount
)

// Wire names as stored by the backend's team-member grant records.
var capNames = [capCount]string{
	CapCreateTenders:              "canCreateTenders",
	CapEditTenders:                "canEditTenders",
	CapDeleteTenders:              "canDeleteTenders",
	CapViewApplications:           "canViewApplications",
	CapAcceptReject:               "canAcceptReject",
	CapManageVerificationRequests: "canManageVerificationRequests",
	CapManageTeam:                 "canManageTeam",
}

// String returns the capability's wire name.
func (c Capability) String() string {
	if c >= capCount {
		return "unknown"
	}
	return capNames[c]
}

// Capabilities lists every member of the closed set, in bit order.
func Capabilities() []Capability {
	out := make([]Capability, capCount)
	for i := range out {
		out[i] = Capability(i)
	}
	return out
}

// Set is a fetched permission snapshot: a bitmask over [Capability].
// A nil *Set means "no snapshot" and denies every organization-gated
// action; it is never treated as an implicit allow.
type Set struct {
	bits uint16
}

// Has reports whether the capability is granted. Safe on a nil receiver.
func (s *Set) Has(c Capability) bool {
	if s == nil || c >= capCount {
		return false
	}
	return s.bits&(1<<uint(c)) != 0
}

// Grant sets the capability bit. Unknown capabilities are ignored.
func (s *Set) Grant(c Capability) {
	if s == nil || c >= capCount {
		return
	}
	s.bits |= 1 << uint(c)
}

// FromGrants decodes a wire grant record. Absent entries are false and
// unknown keys are ignored, so a backend rollout of a new capability never
// widens an old client's set.
func FromGrants(grants map[string]bool) *Set {
	s := &Set{}
	for i := Capability(0); i < capCount; i++ {
		if grants[capNames[i]] {
			s.Grant(i)
		}
	}
	return s
}

// Full returns a set with every capability granted. Used for the
// synthesized team-leader identity when no explicit grant record exists.
func Full() *Set {
	s := &Set{}
	for i := Capability(0); i < capCount; i++ {
		s.Grant(i)
	}
	return s
}

// Grants re-encodes the set as a wire grant record.
func (s *Set) Grants() map[string]bool {
	out := make(map[string]bool, capCount)
	for i := Capability(0); i < capCount; i++ {
		out[capNames[i]] = s.Has(i)
	}
	return out
}
