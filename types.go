package tendergate

import (
	"context"
	"errors"
	"time"

	"github.com/procurity/tendergate/permission"
)

// Role is the portal-level role of an authenticated subject.
type Role string

const (
	// RoleAdmin bypasses all permission evaluation.
	RoleAdmin Role = "admin"
	// RoleIssuer publishes tenders, either individually or through an organization.
	RoleIssuer Role = "issuer"
	// RoleBidder applies to tenders.
	RoleBidder Role = "bidder"
	// RoleTeamMember belongs to an organization and acts under granted capabilities.
	RoleTeamMember Role = "team_member"
)

// MemberRole is a subject's role inside its organization.
type MemberRole string

const (
	// MemberTeamLeader owns the organization's permission grants.
	MemberTeamLeader MemberRole = "team_leader"
	// MemberRegular is an ordinary organization member.
	MemberRegular MemberRole = "member"
)

// Subject is the authenticated user as mirrored from the backend. It is
// created on a successful login, registration, code verification or team
// login, replaced wholesale on profile update, and destroyed on logout or
// expiry.
type Subject struct {
	ID             string
	Email          string
	Name           string
	Role           Role
	OrganizationID string     // empty for individual operators
	MemberRole     MemberRole // set only for organization-scoped subjects
}

// OrganizationScoped reports whether the subject acts through an
// organization and therefore needs a fetched permission snapshot.
func (s Subject) OrganizationScoped() bool {
	return s.OrganizationID != ""
}

func (s Subject) permissionView() permission.Subject {
	return permission.Subject{
		ID:             s.ID,
		OrganizationID: s.OrganizationID,
		Admin:          s.Role == RoleAdmin,
	}
}

// SessionState is the read-only session snapshot exposed to the
// presentation layer.
type SessionState struct {
	// Subject is nil when no session is established.
	Subject *Subject
	// Permissions is nil for individual operators, while a fetch is in
	// flight, and after a failed fetch. Nil always denies.
	Permissions *permission.Set
	// ExpiresAt is the zero time when no session is established.
	ExpiresAt time.Time
	// Loading is true between Init being called and its completion.
	Loading bool
}

// Authenticated reports whether a live, unexpired subject is present.
func (st SessionState) Authenticated() bool {
	return st.Subject != nil && time.Now().Before(st.ExpiresAt)
}

// Member is one selectable identity behind an organization's shared login
// email.
type Member struct {
	ID   string
	Name string
	Role MemberRole
}

// TeamDirectory is the organization lookup result driving the team login
// flow.
type TeamDirectory struct {
	OrganizationName string
	Members          []Member
}

// TeamMemberGrant is one member's capability grants as stored by the
// organization's team leader.
type TeamMemberGrant struct {
	UserID string
	Grants map[string]bool
}

// RequestStatus is the lifecycle state of a verification request.
type RequestStatus string

const (
	// RequestPending awaits an issuer decision.
	RequestPending RequestStatus = "pending"
	// RequestApproved carries an access code until used or expired.
	RequestApproved RequestStatus = "approved"
	// RequestRejected is terminal.
	RequestRejected RequestStatus = "rejected"
	// RequestUsed is terminal; the code was consumed by an application.
	RequestUsed RequestStatus = "used"
)

// VerificationRequest models the bidder-requests-access-code workflow that
// gates tender application submission. Transitions are pending→approved→used
// and pending→rejected; rejected and used admit no further transition.
type VerificationRequest struct {
	ID              string
	BidderID        string
	TenderID        string
	Status          RequestStatus
	Code            string
	RejectionReason string
	CreatedAt       time.Time
	ApprovedAt      time.Time
	RejectedAt      time.Time
	ExpiresAt       time.Time
}

// Terminal reports whether the request admits no further transition.
func (r VerificationRequest) Terminal() bool {
	return r.Status == RequestRejected || r.Status == RequestUsed
}

// Open reports whether the request blocks a duplicate for the same
// (bidder, tender) pair: pending, or approved but not yet used.
func (r VerificationRequest) Open() bool {
	return r.Status == RequestPending || r.Status == RequestApproved
}

// Usable reports whether the request's code may be consumed at the given
// instant. An approved request past its expiry is unusable before the
// server ever sees it.
func (r VerificationRequest) Usable(now time.Time) bool {
	if r.Status != RequestApproved || r.Code == "" {
		return false
	}
	if !r.ExpiresAt.IsZero() && now.After(r.ExpiresAt) {
		return false
	}
	return true
}

// AuthPayload is a token plus the subject it authenticates, returned by
// every RemoteAPI call that establishes a session.
type AuthPayload struct {
	Token   string
	Subject Subject
}

// LoginReply is the outcome of RemoteAPI.Login. Exactly one of Subject
// authentication (Token non-empty) or TeamLoginEmail (shared organization
// email, caller must redirect into the team login flow) is populated.
type LoginReply struct {
	Token          string
	Subject        Subject
	TeamLoginEmail string
}

// ResendInfo is the backend's answer to a code resend. RetryAfterSeconds
// is the server-suggested cooldown; zero means the client default applies.
type ResendInfo struct {
	RetryAfterSeconds int
}

// Registration is the input to RemoteAPI.Register.
type Registration struct {
	Email    string
	Password string
	Name     string
	Role     Role
}

// ProfileUpdate is the input to RemoteAPI.UpdateProfile. Zero-valued
// fields are left unchanged by the backend.
type ProfileUpdate struct {
	Name  string
	Email string
}

// RemoteAPI is the network boundary the engine drives. Callers implement
// it against the portal backend; the engine never interprets transport
// detail beyond the [APIError] taxonomy.
//
// Every method honors context cancellation. Errors should be *APIError
// where the backend reported a classified failure; anything else is
// treated as a transport failure.
type RemoteAPI interface {
	Login(ctx context.Context, email, password string) (LoginReply, error)
	Me(ctx context.Context) (Subject, error)
	Register(ctx context.Context, reg Registration) error
	UpdateProfile(ctx context.Context, update ProfileUpdate) (Subject, error)
	Logout(ctx context.Context) error

	VerifyRegistrationCode(ctx context.Context, email, code string) (AuthPayload, error)
	VerifyResetCode(ctx context.Context, email, code string) error
	ResetPassword(ctx context.Context, email, code, newPassword string) error
	ResendRegistrationCode(ctx context.Context, email string) (ResendInfo, error)
	ResendResetCode(ctx context.Context, email string) (ResendInfo, error)

	LookupOrganizationMembers(ctx context.Context, email string) (TeamDirectory, error)
	TeamLogin(ctx context.Context, email, memberID, password string) (AuthPayload, error)

	GetTeamMembers(ctx context.Context, organizationID string) ([]TeamMemberGrant, error)

	CreateVerificationRequest(ctx context.Context, tenderID string) (VerificationRequest, error)
	ListMyVerificationRequests(ctx context.Context) ([]VerificationRequest, error)
	ListAllVerificationRequests(ctx context.Context) ([]VerificationRequest, error)
	ApproveVerificationRequest(ctx context.Context, requestID string) (VerificationRequest, error)
	RejectVerificationRequest(ctx context.Context, requestID, reason string) (VerificationRequest, error)
}

// APICode classifies a backend-reported failure. The engine maps codes to
// sentinel errors before anything reaches the presentation layer.
type APICode string

const (
	// CodeInvalidCredentials covers bad email/password pairs.
	CodeInvalidCredentials APICode = "invalid_credentials"
	// CodeUnverifiedEmail means the account exists but never confirmed its
	// registration code.
	CodeUnverifiedEmail APICode = "unverified_email"
	// CodeCodeInvalid covers invalid or expired one-time codes.
	CodeCodeInvalid APICode = "code_invalid"
	// CodeNotFound covers unknown emails, accounts, or requests.
	CodeNotFound APICode = "not_found"
	// CodeAlreadyVerified is returned by a registration resend for an
	// account that already completed verification.
	CodeAlreadyVerified APICode = "already_verified"
	// CodeDuplicateRequest means an open verification request already
	// exists for the (bidder, tender) pair.
	CodeDuplicateRequest APICode = "duplicate_request"
	// CodeOrganizationNotFound means the shared email resolves to no
	// organization.
	CodeOrganizationNotFound APICode = "organization_not_found"
	// CodePermissionDenied is the server-side authorization failure.
	CodePermissionDenied APICode = "permission_denied"
	// CodeSessionExpired covers 401-class responses.
	CodeSessionExpired APICode = "session_expired"
	// CodeRequestTerminal means the request is rejected or used and admits
	// no transition.
	CodeRequestTerminal APICode = "request_terminal"
	// CodeCodeUsed means the access code was already consumed.
	CodeCodeUsed APICode = "code_used"
)

// APIError is a classified backend failure. RemoteAPI implementations
// return it for server-reported errors; plain errors are treated as
// transport failures.
type APIError struct {
	Code    APICode
	Message string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return string(e.Code) + ": " + e.Message
	}
	return string(e.Code)
}

func apiCode(err error) (APICode, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code, true
	}
	return "", false
}
