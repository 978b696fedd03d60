package permission

// Subject is the minimal view of an authenticated user the evaluator
// needs: identity, tenancy, and whether the portal role is admin.
type Subject struct {
	ID             string
	OrganizationID string
	Admin          bool
}

// ResourceKind identifies what a resource is, for the action mapping.
type ResourceKind string

const (
	// KindTender is a published or draft tender.
	KindTender ResourceKind = "tender"
	// KindApplication is a bidder's application to a tender.
	KindApplication ResourceKind = "application"
	// KindTeam is an organization's member roster.
	KindTeam ResourceKind = "team"
	// KindVerification is a verification-code request.
	KindVerification ResourceKind = "verification"
)

// Resource is the minimal view of the acted-upon object: its kind, owner,
// and owning organization (empty for individually owned resources).
type Resource struct {
	Kind           ResourceKind
	OwnerID        string
	OrganizationID string
}

// Action names an operation on a resource kind.
type Action string

const (
	// ActionCreate creates a resource of the given kind.
	ActionCreate Action = "create"
	// ActionEdit mutates an existing resource.
	ActionEdit Action = "edit"
	// ActionDelete removes a resource.
	ActionDelete Action = "delete"
	// ActionView reads a resource.
	ActionView Action = "view"
	// ActionAccept accepts an application.
	ActionAccept Action = "accept"
	// ActionReject rejects an application or verification request.
	ActionReject Action = "reject"
	// ActionManage administers a team roster or the verification queue.
	ActionManage Action = "manage"
)

type mapping struct {
	kind   ResourceKind
	action Action
}

// The fixed action table. Anything absent denies, fail closed. Tender
// view is handled before the lookup: it is never permission-gated at this
// layer.
var actionCaps = map[mapping]Capability{
	{KindTender, ActionCreate}:       CapCreateTenders,
	{KindTender, ActionEdit}:         CapEditTenders,
	{KindTender, ActionDelete}:       CapDeleteTenders,
	{KindApplication, ActionView}:    CapViewApplications,
	{KindApplication, ActionAccept}:  CapAcceptReject,
	{KindApplication, ActionReject}:  CapAcceptReject,
	{KindTeam, ActionManage}:         CapManageTeam,
	{KindVerification, ActionManage}: CapManageVerificationRequests,
	{KindVerification, ActionReject}: CapManageVerificationRequests,
}

// CanPerform decides whether the subject may apply action to resource
// given the fetched permission set. It is pure and total: it never panics
// and unknown inputs resolve to false.
//
// Rule order is load-bearing:
//
//  1. Admin subjects are allowed unconditionally.
//  2. Individual operators (no organization) are allowed exactly on
//     resources they own. This is the only ownership-based path.
//  3. A nil set denies; a failed or missing permission fetch is never an
//     allow.
//  4. A resource tagged with a different organization denies, even when
//     the mapped capability is granted (cross-tenant isolation).
//  5. Otherwise the fixed action table maps to one capability; unmapped
//     pairs deny.
func CanPerform(subject Subject, set *Set, resource Resource, action Action) bool {
	if subject.Admin {
		return true
	}

	if subject.OrganizationID == "" {
		return resource.OwnerID != "" && resource.OwnerID == subject.ID
	}

	if set == nil {
		return false
	}

	if resource.OrganizationID != "" && resource.OrganizationID != subject.OrganizationID {
		return false
	}

	if resource.Kind == KindTender && action == ActionView {
		return true
	}

	c, ok := actionCaps[mapping{resource.Kind, action}]
	if !ok {
		return false
	}
	return set.Has(c)
}
